package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserID is returned when the token parses but carries no user identity.
var ErrNoUserID = errors.New("auth: token carries no user id")

// tokenClaims is the subset of platform JWT claims the agent cares about.
type tokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserIDFromToken extracts the user id from the platform JWT without
// verifying the signature. Verification is the backend's job; the agent only
// needs the id to scope its notification topic and snapshot fetches.
func UserIDFromToken(token string) (string, error) {
	parser := jwt.NewParser()

	claims := &tokenClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("auth: malformed token: %w", err)
	}

	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrNoUserID
}
