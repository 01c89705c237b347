// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() returned nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type ratingLike struct {
	UserID uuid.UUID `json:"userId" validate:"notnil_uuid"`
	Stars  int       `json:"stars" validate:"min=1,max=5"`
	Kind   string    `json:"interactionType" validate:"oneof=LIKE DISLIKE WATCH"`
}

type genreList struct {
	Genres []string `json:"genres" validate:"dive,genre"`
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input interface{}
	}{
		{"rating bounds low", &ratingLike{UserID: uuid.New(), Stars: 1, Kind: "LIKE"}},
		{"rating bounds high", &ratingLike{UserID: uuid.New(), Stars: 5, Kind: "WATCH"}},
		{"known genres", &genreList{Genres: []string{"FANTASY", "sci-fi", "young adult"}}},
		{"empty genres", &genreList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(tt.input); err != nil {
				t.Errorf("ValidateStruct() = %v, want nil", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     interface{}
		wantField string
		wantTag   string
	}{
		{"nil user id", &ratingLike{Stars: 3, Kind: "LIKE"}, "userId", "notnil_uuid"},
		{"stars too low", &ratingLike{UserID: uuid.New(), Stars: 0, Kind: "LIKE"}, "stars", "min"},
		{"stars too high", &ratingLike{UserID: uuid.New(), Stars: 6, Kind: "LIKE"}, "stars", "max"},
		{"unknown kind", &ratingLike{UserID: uuid.New(), Stars: 3, Kind: "SHARE"}, "interactionType", "oneof"},
		{"unknown genre", &genreList{Genres: []string{"FANTASY", "COOKING"}}, "genres[1]", "genre"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), err)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	single := ValidateStruct(&ratingLike{UserID: uuid.New(), Stars: 9, Kind: "LIKE"})
	apiErr := single.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if apiErr.Message != "stars must be at most 5" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "stars" {
		t.Errorf("Details[field] = %v, want stars", apiErr.Details["field"])
	}

	multi := ValidateStruct(&ratingLike{Stars: 0, Kind: "NOPE"})
	apiErr = multi.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Fatalf("Details[fields] = %v, want 3 entries", apiErr.Details["fields"])
	}
	if !strings.Contains(apiErr.Message, "; ") {
		t.Errorf("multi-error message should be joined: %q", apiErr.Message)
	}
}

func TestMetricLabel(t *testing.T) {
	t.Parallel()

	err := ValidateStruct(&ratingLike{})
	if err.MetricLabel() != "validation" {
		t.Errorf("MetricLabel() = %q, want validation", err.MetricLabel())
	}
}

func TestNewFieldError(t *testing.T) {
	t.Parallel()

	verr := NewFieldError("integer", "limit", "offset")
	if len(verr.Errors()) != 2 {
		t.Fatalf("Errors() len = %d, want 2", len(verr.Errors()))
	}
	if got := verr.Errors()[0].Error(); got != "limit must be an integer" {
		t.Errorf("message = %q", got)
	}
	if api := verr.ToAPIError(); api.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", api.Code)
	}
}
