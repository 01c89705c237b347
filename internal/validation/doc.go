// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the event decoder and the API
// handlers. Field names in errors are the JSON names, so messages line up
// with what producers and clients actually send.
//
// Custom tags:
//   - genre: the string parses as one of the 15 known genres
//   - notnil_uuid: a uuid.UUID field is not uuid.Nil
//
// Example:
//
//	type ratingPayload struct {
//	    UserID uuid.UUID `json:"userId" validate:"notnil_uuid"`
//	    Stars  int       `json:"stars" validate:"min=1,max=5"`
//	}
//
//	if verr := validation.ValidateStruct(&p); verr != nil {
//	    return verr
//	}
package validation
