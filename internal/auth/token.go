// Package auth reads identity out of the bearer token issued by the chat
// server. Signatures are not verified here; the server does that.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNoUserID is returned when no known claim carries a user id.
var ErrNoUserID = errors.New("token has no user id claim")

var userIDClaims = []string{"sub", "id", "userId", "user_id"}

// Claims is the subset of token claims the client cares about.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Parse decodes tokenString without verifying its signature.
func Parse(tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	var out Claims
	for _, key := range userIDClaims {
		if id := claimString(claims[key]); id != "" {
			out.UserID = id
			break
		}
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if out.UserID == "" {
		return out, ErrNoUserID
	}
	return out, nil
}

// UserID returns the user id carried by tokenString.
func UserID(tokenString string) (string, error) {
	c, err := Parse(tokenString)
	return c.UserID, err
}

// Expired reports whether the claims carry an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func claimString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
