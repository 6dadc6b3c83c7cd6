// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	lookupFailed := fmt.Errorf("%w: %w", models.NewValidationError("input", "cannot resolve"), provider.ErrAuth)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", models.NewValidationError("title", "too long"), http.StatusBadRequest, ErrCodeValidation},
		{"wrapped validation", fmt.Errorf("ingest: %w", models.ErrValidation), http.StatusBadRequest, ErrCodeValidation},
		{"not found", fmt.Errorf("link x: %w", models.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{"conflict", models.ErrConcurrencyConflict, http.StatusConflict, ErrCodeConflict},
		{"provider auth", provider.ErrAuth, http.StatusBadGateway, ErrCodeProviderAuth},
		{"provider auth inside validation", lookupFailed, http.StatusBadGateway, ErrCodeProviderAuth},
		{"other", errors.New("disk full"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, code, msg, _ := classifyError(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("classifyError() = %d %s, want %d %s", status, code, tt.wantStatus, tt.wantCode)
			}
			if status == http.StatusInternalServerError && msg == tt.err.Error() {
				t.Error("internal error text leaked to client")
			}
		})
	}
}
