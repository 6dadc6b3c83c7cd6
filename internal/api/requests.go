// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/validation"
)

const maxBodyBytes = 64 << 10

type ingestRequest struct {
	Input string  `json:"input" validate:"required,max=2048"`
	Title *string `json:"title,omitempty" validate:"omitempty,max=500"`
}

type updateLinkRequest struct {
	Title *string `json:"title" validate:"omitempty,max=500"`
}

type reassignRequest struct {
	From string `json:"from" validate:"required,project_id"`
	To   string `json:"to" validate:"required,project_id"`
}

type listLinksQuery struct {
	Status string `json:"status" validate:"omitempty,link_status"`
	Limit  int    `json:"limit" validate:"gte=1,lte=500"`
	Offset int    `json:"offset" validate:"gte=0"`
}

type snapshotQuery struct {
	From string `json:"from" validate:"omitempty,date"`
	To   string `json:"to" validate:"omitempty,date"`
}

type listRunsQuery struct {
	Limit int `json:"limit" validate:"gte=0,lte=100"`
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return models.NewValidationError("body", "request body is required")
		case errors.As(err, &tooLarge):
			return models.NewValidationError("body", "request body exceeds %d bytes", tooLarge.Limit)
		default:
			return models.NewValidationError("body", "invalid JSON: %v", err)
		}
	}
	return validation.ValidateStruct(dst)
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

// dateRange converts validated YYYY-MM-DD bounds. Missing bounds are zero.
func (q *snapshotQuery) dateRange() (from, to time.Time, err error) {
	if q.From != "" {
		from, _ = time.Parse(models.DateLayout, q.From)
	}
	if q.To != "" {
		to, _ = time.Parse(models.DateLayout, q.To)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, models.NewValidationError("from", "must not be after to (%s > %s)", q.From, q.To)
	}
	return from, to, nil
}

func (q *listLinksQuery) filter() models.LinkFilter {
	return models.LinkFilter{Status: models.LinkStatus(q.Status), Limit: q.Limit, Offset: q.Offset}
}
