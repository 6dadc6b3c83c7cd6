// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/linksync/internal/logging"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// ErrMissingToken is passed to the deny func when no bearer token was sent.
var ErrMissingToken = errors.New("missing bearer token")

// AnonymousSubject is the subject used when authentication is disabled.
const AnonymousSubject = "anonymous"

// ContextWithClaims returns ctx carrying claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the authenticated caller, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// DenyFunc writes the response for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates requests according to the configured mode.
type Middleware struct {
	jwt  *JWTManager
	mode string
	deny DenyFunc
}

// NewMiddleware builds the authentication middleware. mode is "jwt" or
// "none"; jwtManager may be nil only in "none" mode.
func NewMiddleware(jwtManager *JWTManager, mode string, deny DenyFunc) *Middleware {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return &Middleware{jwt: jwtManager, mode: mode, deny: deny}
}

// Authenticate attaches the caller's claims to the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == "none" {
			claims := &Claims{Role: RoleAdmin}
			claims.Subject = AnonymousSubject
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			m.deny(w, r, ErrMissingToken)
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token validation failed")
			m.deny(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
