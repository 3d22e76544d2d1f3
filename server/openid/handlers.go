package openid

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	stateCookie = "oid-state"
	tokenCookie = "oid-token"
)

var errNotWhitelisted = errors.New("email not allowed")

type claims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// allowed reports whether email may sign in. An empty whitelist admits
// everyone the provider authenticates.
func (p *Provider) allowed(email string) bool {
	if len(p.whitelist) == 0 {
		return true
	}
	return slices.ContainsFunc(p.whitelist, func(e string) bool {
		return strings.EqualFold(e, email)
	})
}

func (p *Provider) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state), http.StatusFound)
}

func (p *Provider) SignIn(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	}

	token, err := p.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	rawIdToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusBadGateway)
		return
	}

	idToken, err := p.verifier.Verify(r.Context(), rawIdToken)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !p.allowed(c.Email) {
		slog.Warn("openid sign in refused", slog.String("email", c.Email))
		http.Error(w, errNotWhitelisted.Error(), http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    rawIdToken,
		Path:     "/",
		Expires:  idToken.Expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

func (p *Provider) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

// Middleware admits requests carrying a valid ID token of a whitelisted
// user.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(tokenCookie)
		if err != nil || c.Value == "" {
			http.Error(w, "openid authentication required", http.StatusUnauthorized)
			return
		}

		idToken, err := p.verifier.Verify(r.Context(), c.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		var cl claims
		if err := idToken.Claims(&cl); err != nil || !p.allowed(cl.Email) {
			http.Error(w, errNotWhitelisted.Error(), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
