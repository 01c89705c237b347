// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/recsync/internal/validation"
)

// PageRequest is a limit/offset pair from the query string.
//
// Limit 0 means the endpoint default. The recommendation engine clamps
// larger limits to its maximum.
type PageRequest struct {
	Limit  int `json:"limit" validate:"gte=0,lte=1000"`
	Offset int `json:"offset" validate:"gte=0"`
}

// DLQListRequest filters the DLQ listing.
type DLQListRequest struct {
	PageRequest
	Category string `json:"category" validate:"omitempty,oneof=unknown connection timeout validation database capacity dependency conflict"`
}

// parsePage reads limit and offset. Non-numeric values are reported as
// validation failures rather than silently replaced.
func parsePage(r *http.Request) (PageRequest, *validation.RequestValidationError) {
	var page PageRequest
	var bad []string

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad = append(bad, "limit")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad = append(bad, "offset")
		}
		page.Offset = n
	}
	if len(bad) > 0 {
		return page, validation.NewFieldError("integer", bad...)
	}

	return page, validation.ValidateStruct(&page)
}
