// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/validation"
)

// Kind identifies an event variant.
type Kind string

const (
	KindItemCreated        Kind = "item-created"
	KindItemUpdated        Kind = "item-updated"
	KindItemDeleted        Kind = "item-deleted"
	KindInteractionCreated Kind = "interaction-created"
	KindRatingCreated      Kind = "rating-created"
	KindPopularityUpdated  Kind = "popularity-updated"
)

// Kinds returns every event kind in a fixed order.
func Kinds() []Kind {
	return []Kind{
		KindItemCreated,
		KindItemUpdated,
		KindItemDeleted,
		KindInteractionCreated,
		KindRatingCreated,
		KindPopularityUpdated,
	}
}

// Event is the closed set of inbound domain events. Only the types in this
// file implement it.
type Event interface {
	Kind() Kind
	// AggregateID is the item or user the event mutates.
	AggregateID() uuid.UUID
	sealed()
}

// ItemCreated registers a new catalog item with its genres.
type ItemCreated struct {
	ItemID uuid.UUID
	Genres []genre.Genre
}

// ItemUpdated replaces an item's genre list.
type ItemUpdated struct {
	ItemID uuid.UUID
	Genres []genre.Genre
}

// ItemDeleted removes an item.
type ItemDeleted struct {
	ItemID uuid.UUID
}

// InteractionCreated is a LIKE, DISLIKE or WATCH by a user on an item.
type InteractionCreated struct {
	InteractionID int64
	UserID        uuid.UUID
	ItemID        uuid.UUID
	Type          models.InteractionKind
	Value         float64
	OccurredAt    time.Time
}

// RatingCreated is a 1..5 star rating by a user on an item.
type RatingCreated struct {
	UserID uuid.UUID
	ItemID uuid.UUID
	Stars  int
}

// PopularityUpdated carries a recomputed popularity score for an item.
type PopularityUpdated struct {
	ItemID uuid.UUID
	Score  float64
}

func (ItemCreated) Kind() Kind        { return KindItemCreated }
func (ItemUpdated) Kind() Kind        { return KindItemUpdated }
func (ItemDeleted) Kind() Kind        { return KindItemDeleted }
func (InteractionCreated) Kind() Kind { return KindInteractionCreated }
func (RatingCreated) Kind() Kind      { return KindRatingCreated }
func (PopularityUpdated) Kind() Kind  { return KindPopularityUpdated }

func (e ItemCreated) AggregateID() uuid.UUID        { return e.ItemID }
func (e ItemUpdated) AggregateID() uuid.UUID        { return e.ItemID }
func (e ItemDeleted) AggregateID() uuid.UUID        { return e.ItemID }
func (e InteractionCreated) AggregateID() uuid.UUID { return e.UserID }
func (e RatingCreated) AggregateID() uuid.UUID      { return e.UserID }
func (e PopularityUpdated) AggregateID() uuid.UUID  { return e.ItemID }

func (ItemCreated) sealed()        {}
func (ItemUpdated) sealed()        {}
func (ItemDeleted) sealed()        {}
func (InteractionCreated) sealed() {}
func (RatingCreated) sealed()      {}
func (PopularityUpdated) sealed()  {}

// Wire payloads. Field names follow the producing services.

type itemPayload struct {
	BookID uuid.UUID `json:"bookId" validate:"notnil_uuid"`
	Genres []string  `json:"genres" validate:"dive,genre"`
}

type itemDeletedPayload struct {
	BookID uuid.UUID `json:"bookId" validate:"notnil_uuid"`
}

type interactionPayload struct {
	ID               int64     `json:"id"`
	UserID           uuid.UUID `json:"userId" validate:"notnil_uuid"`
	MediaID          uuid.UUID `json:"mediaId" validate:"notnil_uuid"`
	InteractionType  string    `json:"interactionType" validate:"required"`
	InteractionValue float64   `json:"interactionValue"`
	Timestamp        LocalTime `json:"timestamp"`
}

type ratingPayload struct {
	UserID uuid.UUID `json:"userId" validate:"notnil_uuid"`
	BookID uuid.UUID `json:"bookId" validate:"notnil_uuid"`
	Stars  int       `json:"stars" validate:"min=1,max=5"`
}

type popularityPayload struct {
	BookID          uuid.UUID `json:"bookId" validate:"notnil_uuid"`
	PopularityScore float64   `json:"popularityScore" validate:"gte=0"`
}

// TopicMap binds each event kind to the topic it arrives on.
type TopicMap map[Kind]string

// DefaultTopics returns the topic names used by the catalog and engagement
// services.
func DefaultTopics() TopicMap {
	return TopicMap{
		KindItemCreated:        "created-book",
		KindItemUpdated:        "updated-book",
		KindItemDeleted:        "deleted-book",
		KindInteractionCreated: "engagement-created",
		KindRatingCreated:      "created-rating",
		KindPopularityUpdated:  "book-popularity-updated",
	}
}

// Decoder resolves raw topic payloads into Events.
type Decoder struct {
	kinds map[string]Kind
}

// NewDecoder builds a decoder for the given topic bindings. Every kind must
// be bound to a distinct, non-empty topic.
func NewDecoder(topics TopicMap) (*Decoder, error) {
	kinds := make(map[string]Kind, len(topics))
	for _, k := range Kinds() {
		topic, ok := topics[k]
		if !ok || topic == "" {
			return nil, fmt.Errorf("%w: no topic for %s", ErrInvalidConfig, k)
		}
		if other, dup := kinds[topic]; dup {
			return nil, fmt.Errorf("%w: topic %q bound to %s and %s", ErrInvalidConfig, topic, other, k)
		}
		kinds[topic] = k
	}
	return &Decoder{kinds: kinds}, nil
}

// KindOf returns the event kind bound to topic.
func (d *Decoder) KindOf(topic string) (Kind, bool) {
	k, ok := d.kinds[topic]
	return k, ok
}

// Decode parses payload received on topic. Every failure is a
// PermanentError: no retry can fix an unknown topic or a malformed payload.
func (d *Decoder) Decode(topic string, payload []byte) (Event, error) {
	kind, ok := d.kinds[topic]
	if !ok {
		return nil, NewPermanentError("decode event", fmt.Errorf("%w: %q", ErrUnknownTopic, topic))
	}

	switch kind {
	case KindItemCreated, KindItemUpdated:
		var p itemPayload
		if err := unmarshalValid(payload, &p); err != nil {
			return nil, err
		}
		genres, err := genre.ParseAll(p.Genres)
		if err != nil {
			return nil, NewPermanentError("invalid genres", err)
		}
		genres = genre.Dedupe(genres)
		if kind == KindItemCreated {
			return ItemCreated{ItemID: p.BookID, Genres: genres}, nil
		}
		return ItemUpdated{ItemID: p.BookID, Genres: genres}, nil

	case KindItemDeleted:
		var p itemDeletedPayload
		if err := unmarshalValid(payload, &p); err != nil {
			return nil, err
		}
		return ItemDeleted{ItemID: p.BookID}, nil

	case KindInteractionCreated:
		var p interactionPayload
		if err := unmarshalValid(payload, &p); err != nil {
			return nil, err
		}
		typ, err := models.ParseInteractionKind(p.InteractionType)
		if err != nil || typ == models.KindRating {
			return nil, NewPermanentError("invalid interactionType",
				fmt.Errorf("%q is not one of LIKE, DISLIKE, WATCH", p.InteractionType))
		}
		return InteractionCreated{
			InteractionID: p.ID,
			UserID:        p.UserID,
			ItemID:        p.MediaID,
			Type:          typ,
			Value:         p.InteractionValue,
			OccurredAt:    p.Timestamp.Time,
		}, nil

	case KindRatingCreated:
		var p ratingPayload
		if err := unmarshalValid(payload, &p); err != nil {
			return nil, err
		}
		return RatingCreated{UserID: p.UserID, ItemID: p.BookID, Stars: p.Stars}, nil

	case KindPopularityUpdated:
		var p popularityPayload
		if err := unmarshalValid(payload, &p); err != nil {
			return nil, err
		}
		return PopularityUpdated{ItemID: p.BookID, Score: p.PopularityScore}, nil
	}

	return nil, NewPermanentError("decode event", fmt.Errorf("%w: kind %s", ErrUnknownTopic, kind))
}

func unmarshalValid(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return NewPermanentError("malformed payload", err)
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return NewPermanentError("invalid payload", verr)
	}
	return nil
}

// LocalTime accepts ISO-8601 date-times with or without a zone offset, and
// the [y,M,d,h,m,s,ns] array form. Values without a zone are read as UTC.
type LocalTime struct {
	time.Time
}

var localTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *LocalTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if b[0] == '[' {
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("parse timestamp array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("parse timestamp array: need at least 3 fields, got %d", len(parts))
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2],
			parts[3], parts[4], parts[5], parts[6], time.UTC)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range localTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unsupported format", s)
}

// MarshalJSON writes RFC 3339 in UTC.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
