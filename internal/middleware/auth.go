// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package middleware holds the HTTP middleware: token authentication,
// Prometheus instrumentation, and request IDs.
package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gymtrack/gymtrackd/internal/config"
	"github.com/gymtrack/gymtrackd/internal/logging"
	"github.com/gymtrack/gymtrackd/internal/models"
)

// Auth implements the two-tier static token scheme: the read token grants
// read access, the write token grants read and write. Tokens arrive either
// in the X-Auth-Token header or as the password of HTTP Basic auth (the
// username is ignored), which keeps plain curl and webhook senders simple.
type Auth struct {
	writeToken string
	readToken  string
}

// NewAuth builds the middleware from the configured tokens.
func NewAuth(cfg config.AuthConfig) *Auth {
	return &Auth{writeToken: cfg.WriteToken, readToken: cfg.ReadToken}
}

// token extracts the presented credential, or "".
func (a *Auth) token(r *http.Request) string {
	if t := r.Header.Get("X-Auth-Token"); t != "" {
		return t
	}
	if _, password, ok := r.BasicAuth(); ok {
		return password
	}
	return ""
}

func tokenMatches(presented, expected string) bool {
	return expected != "" &&
		subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// RequireRead admits requests carrying the read or write token.
func (a *Auth) RequireRead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := a.token(r)
		if tokenMatches(t, a.readToken) || tokenMatches(t, a.writeToken) {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, r)
	})
}

// RequireWrite admits requests carrying the write token only.
func (a *Auth) RequireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenMatches(a.token(r), a.writeToken) {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	logging.Warn().
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Msg("Rejected unauthenticated request")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    "AUTHENTICATION_ERROR",
			Message: "missing or invalid auth token",
		},
	})
}
