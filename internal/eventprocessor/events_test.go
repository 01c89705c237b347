// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
	"github.com/tomtom215/recsync/internal/models"
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	dec, err := NewDecoder(DefaultTopics())
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	return dec
}

func TestNewDecoder_Validation(t *testing.T) {
	t.Parallel()

	missing := DefaultTopics()
	delete(missing, KindRatingCreated)
	if _, err := NewDecoder(missing); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing topic: err = %v, want ErrInvalidConfig", err)
	}

	dup := DefaultTopics()
	dup[KindItemUpdated] = dup[KindItemCreated]
	if _, err := NewDecoder(dup); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("duplicate topic: err = %v, want ErrInvalidConfig", err)
	}

	empty := DefaultTopics()
	empty[KindItemDeleted] = ""
	if _, err := NewDecoder(empty); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("empty topic: err = %v, want ErrInvalidConfig", err)
	}
}

func TestDecoder_KindOf(t *testing.T) {
	t.Parallel()
	dec := newTestDecoder(t)

	for kind, topic := range DefaultTopics() {
		got, ok := dec.KindOf(topic)
		if !ok || got != kind {
			t.Errorf("KindOf(%q) = %s, %v; want %s", topic, got, ok, kind)
		}
	}
	if _, ok := dec.KindOf("no-such-topic"); ok {
		t.Error("KindOf(unknown) reported a kind")
	}
}

func TestDecoder_DecodeItems(t *testing.T) {
	t.Parallel()
	dec := newTestDecoder(t)
	id := uuid.New()

	payload := fmt.Sprintf(`{"bookId":%q,"genres":["horror","Fantasy","sci-fi","HORROR"]}`, id)

	ev, err := dec.Decode("created-book", []byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	created, ok := ev.(ItemCreated)
	if !ok {
		t.Fatalf("Decode() = %T, want ItemCreated", ev)
	}
	if created.ItemID != id {
		t.Errorf("ItemID = %s, want %s", created.ItemID, id)
	}
	want := []genre.Genre{genre.Fantasy, genre.SciFi, genre.Horror}
	if fmt.Sprint(created.Genres) != fmt.Sprint(want) {
		t.Errorf("Genres = %v, want %v", created.Genres, want)
	}
	if created.AggregateID() != id || created.Kind() != KindItemCreated {
		t.Errorf("AggregateID/Kind = %s/%s", created.AggregateID(), created.Kind())
	}

	ev, err = dec.Decode("updated-book", []byte(fmt.Sprintf(`{"bookId":%q,"genres":[]}`, id)))
	if err != nil {
		t.Fatalf("Decode(updated) error = %v", err)
	}
	if upd, ok := ev.(ItemUpdated); !ok || len(upd.Genres) != 0 {
		t.Errorf("Decode(updated) = %#v", ev)
	}

	ev, err = dec.Decode("deleted-book", []byte(fmt.Sprintf(`{"bookId":%q}`, id)))
	if err != nil {
		t.Fatalf("Decode(deleted) error = %v", err)
	}
	if del, ok := ev.(ItemDeleted); !ok || del.ItemID != id {
		t.Errorf("Decode(deleted) = %#v", ev)
	}
}

func TestDecoder_DecodeInteraction(t *testing.T) {
	t.Parallel()
	dec := newTestDecoder(t)
	user, item := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		timestamp string
		wantTime  time.Time
	}{
		{"zone-less", `"2024-03-01T10:15:30"`, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)},
		{"offset", `"2024-03-01T12:15:30+02:00"`, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)},
		{"array", `[2024,3,1,10,15,30]`, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)},
		{"null", `null`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := fmt.Sprintf(`{"id":42,"userId":%q,"mediaId":%q,"interactionType":"like","interactionValue":0.5,"timestamp":%s}`,
				user, item, tt.timestamp)

			ev, err := dec.Decode("engagement-created", []byte(payload))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			got, ok := ev.(InteractionCreated)
			if !ok {
				t.Fatalf("Decode() = %T", ev)
			}
			if got.InteractionID != 42 || got.UserID != user || got.ItemID != item {
				t.Errorf("ids = %d %s %s", got.InteractionID, got.UserID, got.ItemID)
			}
			if got.Type != models.KindLike || got.Value != 0.5 {
				t.Errorf("Type/Value = %s/%v", got.Type, got.Value)
			}
			if !got.OccurredAt.Equal(tt.wantTime) {
				t.Errorf("OccurredAt = %v, want %v", got.OccurredAt, tt.wantTime)
			}
			if got.AggregateID() != user {
				t.Error("interaction must be keyed by user")
			}
		})
	}
}

func TestDecoder_DecodeRatingAndPopularity(t *testing.T) {
	t.Parallel()
	dec := newTestDecoder(t)
	user, item := uuid.New(), uuid.New()

	ev, err := dec.Decode("created-rating", []byte(fmt.Sprintf(`{"userId":%q,"bookId":%q,"stars":4}`, user, item)))
	if err != nil {
		t.Fatalf("Decode(rating) error = %v", err)
	}
	if r, ok := ev.(RatingCreated); !ok || r.Stars != 4 || r.ItemID != item || r.UserID != user {
		t.Errorf("Decode(rating) = %#v", ev)
	}

	ev, err = dec.Decode("book-popularity-updated", []byte(fmt.Sprintf(`{"bookId":%q,"popularityScore":12.5}`, item)))
	if err != nil {
		t.Fatalf("Decode(popularity) error = %v", err)
	}
	if p, ok := ev.(PopularityUpdated); !ok || p.Score != 12.5 {
		t.Errorf("Decode(popularity) = %#v", ev)
	}
}

func TestDecoder_DecodeRejects(t *testing.T) {
	t.Parallel()
	dec := newTestDecoder(t)
	id := uuid.New()

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"unknown topic", "other-topic", `{}`},
		{"malformed json", "created-book", `{"bookId":`},
		{"missing id", "created-book", `{"genres":["FANTASY"]}`},
		{"unknown genre", "created-book", fmt.Sprintf(`{"bookId":%q,"genres":["POETRY"]}`, id)},
		{"rating as interaction", "engagement-created", fmt.Sprintf(`{"userId":%q,"mediaId":%q,"interactionType":"RATING"}`, id, id)},
		{"unknown interaction", "engagement-created", fmt.Sprintf(`{"userId":%q,"mediaId":%q,"interactionType":"SHARE"}`, id, id)},
		{"missing interaction type", "engagement-created", fmt.Sprintf(`{"userId":%q,"mediaId":%q}`, id, id)},
		{"stars too high", "created-rating", fmt.Sprintf(`{"userId":%q,"bookId":%q,"stars":6}`, id, id)},
		{"stars zero", "created-rating", fmt.Sprintf(`{"userId":%q,"bookId":%q,"stars":0}`, id, id)},
		{"negative popularity", "book-popularity-updated", fmt.Sprintf(`{"bookId":%q,"popularityScore":-1}`, id)},
		{"bad timestamp", "engagement-created", fmt.Sprintf(`{"userId":%q,"mediaId":%q,"interactionType":"LIKE","timestamp":"yesterday"}`, id, id)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.Decode(tt.topic, []byte(tt.payload))
			if err == nil {
				t.Fatal("Decode() succeeded, want error")
			}
			if !IsPermanentError(err) {
				t.Errorf("err = %v, want PermanentError", err)
			}
		})
	}
}

func TestLocalTime_MarshalJSON(t *testing.T) {
	t.Parallel()

	lt := LocalTime{Time: time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))}
	b, err := json.Marshal(lt)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2024-03-01T11:00:00Z"` {
		t.Errorf("Marshal = %s", b)
	}

	b, _ = json.Marshal(LocalTime{})
	if string(b) != "null" {
		t.Errorf("Marshal(zero) = %s", b)
	}
}
