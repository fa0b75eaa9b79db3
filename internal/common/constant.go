// Package common holds constants and sentinel errors shared by the chat
// client, the sync engine and the relay. Match errors with errors.Is.
package common

// AuthorizationHeader is the gRPC metadata key carrying the relay bearer token.
const AuthorizationHeader = "authorization"

// BearerPrefix precedes the token inside AuthorizationHeader.
const BearerPrefix = "Bearer "
