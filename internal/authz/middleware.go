// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package authz

import (
	"errors"
	"net/http"

	"github.com/tomtom215/linksync/internal/auth"
	"github.com/tomtom215/linksync/internal/logging"
)

// ErrForbidden is passed to the deny func when the role lacks permission.
var ErrForbidden = errors.New("forbidden")

// Middleware enforces the policy for requests already authenticated by
// auth.Middleware.
type Middleware struct {
	enforcer *Enforcer
	deny     auth.DenyFunc
}

// NewMiddleware builds the authorization middleware.
func NewMiddleware(enforcer *Enforcer, deny auth.DenyFunc) *Middleware {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		}
	}
	return &Middleware{enforcer: enforcer, deny: deny}
}

// Authorize rejects requests whose role may not call method on path.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			m.deny(w, r, ErrForbidden)
			return
		}

		allowed, err := m.enforcer.Enforce(claims.Role, r.URL.Path, r.Method)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization check failed")
			m.deny(w, r, err)
			return
		}
		if !allowed {
			logging.Ctx(r.Context()).Debug().
				Str("subject", claims.Subject).
				Str("role", claims.Role).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("Request denied")
			m.deny(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
