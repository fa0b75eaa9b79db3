// Package store defines the contract of the replicated key/value tree the
// chat client synchronises through.
//
// A store is a tree of JSON records addressed by Path. Writes are
// last-write-wins per path and are eventually delivered to every live
// subscriber of the parent path, the writer included, possibly more than
// once and in no particular order relative to other paths. Backends live in
// the memstore, replica and remote sub-packages.
package store
