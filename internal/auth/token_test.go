package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"sub", jwt.MapClaims{"sub": "u-1"}, "u-1"},
		{"id", jwt.MapClaims{"id": "65f0a1"}, "65f0a1"},
		{"userId", jwt.MapClaims{"userId": "abc"}, "abc"},
		{"numeric", jwt.MapClaims{"id": 42}, "42"},
		{"sub wins", jwt.MapClaims{"sub": "first", "id": "second"}, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserID(sign(t, tt.claims))
			if err != nil {
				t.Fatalf("UserID: %v", err)
			}
			if got != tt.want {
				t.Errorf("UserID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserIDMissing(t *testing.T) {
	_, err := UserID(sign(t, jwt.MapClaims{"role": "member"}))
	if !errors.Is(err, ErrNoUserID) {
		t.Errorf("err = %v, want ErrNoUserID", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := Parse("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestExpired(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Unix()
	c, err := Parse(sign(t, jwt.MapClaims{"sub": "u", "exp": exp}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.Expired(time.Now()) {
		t.Error("Expired() = false for past exp")
	}
	if (Claims{}).Expired(time.Now()) {
		t.Error("claims without exp reported expired")
	}
}
