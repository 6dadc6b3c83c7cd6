// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/linksync/internal/auth"
	"github.com/tomtom215/linksync/internal/authz"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
	"github.com/tomtom215/linksync/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeProviderAuth     = "PROVIDER_AUTH_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// classifyError maps a service error to status, code, message and details.
// Provider auth is checked first: a failed long-URL lookup wraps it inside
// a validation error, but the caller cannot fix it.
func classifyError(err error) (status int, code, message string, details any) {
	var (
		reqErr   *validation.RequestValidationError
		fieldErr *models.ValidationError
	)
	switch {
	case errors.Is(err, provider.ErrAuth):
		return http.StatusBadGateway, ErrCodeProviderAuth, "provider rejected the configured credentials", nil
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, ErrCodeValidation, reqErr.Error(), reqErr.Details()
	case errors.As(err, &fieldErr):
		var d any
		if fieldErr.Field != "" {
			d = map[string]any{"field": fieldErr.Field}
		}
		return http.StatusBadRequest, ErrCodeValidation, err.Error(), d
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidation, err.Error(), nil
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "resource not found", nil
	case errors.Is(err, models.ErrConcurrencyConflict):
		return http.StatusConflict, ErrCodeConflict, "a sync run is already in progress", nil
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "internal server error", nil
	}
}

// respondServiceError writes the envelope for err. Server-side failures are
// logged; their text never reaches the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := classifyError(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	respondError(w, r, status, code, message, details)
}

// denyUnauthenticated and denyForbidden adapt auth failures to the envelope.
func denyUnauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	msg := "invalid token"
	if errors.Is(err, auth.ErrMissingToken) {
		msg = "missing bearer token"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="linksync"`)
	respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, msg, nil)
}

func denyForbidden(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, authz.ErrForbidden) {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "authorization check failed", nil)
		return
	}
	respondError(w, r, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions", nil)
}
