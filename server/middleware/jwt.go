package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TOKEN_COOKIE_NAME = "jwt-dlp-bridge"
	TOKEN_HEADER_NAME = "X-Authentication"
	tokenLifetime     = 30 * 24 * time.Hour
)

// IssueToken signs a token for username, valid for thirty days.
func IssueToken(secret, username string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tokenLifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TOKEN_COOKIE_NAME); err == nil && c.Value != "" {
		return c.Value
	}
	if t := r.Header.Get(TOKEN_HEADER_NAME); t != "" {
		return t
	}
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return t
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("token")
}

func validate(secret, raw string) error {
	if raw == "" {
		return errors.New("authentication token required")
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}

	return nil
}

// Authenticated rejects requests without a valid token signed with secret.
func Authenticated(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := validate(secret, tokenFromRequest(r)); err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
