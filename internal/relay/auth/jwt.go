// Package auth issues and verifies the bearer tokens relay clients present.
package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the user id the token was
// issued for.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return tokenString, nil
}

// GetUserIDFromToken verifies tokenString and returns its user id.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// verification yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", errors.Mark(errors.Wrap(err, "parse token"), common.ErrInvalidToken)
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
