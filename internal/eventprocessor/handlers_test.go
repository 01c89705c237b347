// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/store"
)

func newTestHandlers(t *testing.T) (*Handlers, *store.ItemStore, *store.ProfileStore) {
	t.Helper()
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	items := store.NewItemStore(db, store.DefaultRelevanceConfig())
	profiles := store.NewProfileStore(db)
	return NewHandlers(items, profiles, models.DefaultWeights()), items, profiles
}

func TestHandlers_LikeUpdatesProfile(t *testing.T) {
	t.Parallel()
	h, _, profiles := newTestHandlers(t)
	ctx := context.Background()
	item, user := uuid.New(), uuid.New()

	if err := h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Fantasy}}); err != nil {
		t.Fatalf("ItemCreated error = %v", err)
	}
	if err := h.Handle(ctx, InteractionCreated{UserID: user, ItemID: item, Type: models.KindLike}); err != nil {
		t.Fatalf("InteractionCreated error = %v", err)
	}

	p, err := profiles.Get(ctx, user)
	if err != nil {
		t.Fatalf("profiles.Get() error = %v", err)
	}
	if p.GenreScores["FANTASY"] != 1 {
		t.Errorf("GenreScores[FANTASY] = %v, want 1", p.GenreScores["FANTASY"])
	}
	if p.TotalLikes != 1 || !p.HasInteracted(item) {
		t.Errorf("profile = %+v", p)
	}
}

func TestHandlers_DuplicateCreateIsNoOp(t *testing.T) {
	t.Parallel()
	h, items, _ := newTestHandlers(t)
	ctx := context.Background()
	item := uuid.New()

	if err := h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Fantasy}}); err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Horror}}); err != nil {
		t.Fatalf("redelivered create error = %v, want nil", err)
	}

	f, _ := items.Get(ctx, item)
	if len(f.Genres) != 1 || f.Genres[0] != genre.Fantasy {
		t.Errorf("redelivered create changed genres to %v", f.Genres)
	}
}

func TestHandlers_UpdateReplacesGenres(t *testing.T) {
	t.Parallel()
	h, items, _ := newTestHandlers(t)
	ctx := context.Background()
	item := uuid.New()

	_ = h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Fantasy}})
	if err := h.Handle(ctx, ItemUpdated{ItemID: item, Genres: []genre.Genre{genre.Horror}}); err != nil {
		t.Fatalf("ItemUpdated error = %v", err)
	}

	f, err := items.Get(ctx, item)
	if err != nil {
		t.Fatal(err)
	}
	fantasy, _ := genre.Index(genre.Fantasy)
	horror, _ := genre.Index(genre.Horror)
	if f.Embedding[fantasy] != 0 || f.Embedding[horror] != 1 {
		t.Errorf("Embedding = %v, want only HORROR set", f.Embedding)
	}
}

func TestHandlers_MissingItemIsRetryable(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandlers(t)
	ctx := context.Background()

	tests := []struct {
		name string
		ev   Event
	}{
		{"rating", RatingCreated{UserID: uuid.New(), ItemID: uuid.New(), Stars: 5}},
		{"interaction", InteractionCreated{UserID: uuid.New(), ItemID: uuid.New(), Type: models.KindWatch}},
		{"update", ItemUpdated{ItemID: uuid.New(), Genres: []genre.Genre{genre.Romance}}},
		{"popularity", PopularityUpdated{ItemID: uuid.New(), Score: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Handle(ctx, tt.ev)
			if !IsRetryableError(err) {
				t.Fatalf("err = %v, want RetryableError", err)
			}
			if CategoryOf(err) != ErrorCategoryDependency {
				t.Errorf("category = %s, want dependency", CategoryOf(err))
			}
			if !errors.Is(err, store.ErrNotFound) {
				t.Errorf("err = %v, want wrapped ErrNotFound", err)
			}
		})
	}
}

func TestHandlers_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	h, items, _ := newTestHandlers(t)
	ctx := context.Background()
	item := uuid.New()

	_ = h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Classics}})
	for i := 0; i < 2; i++ {
		if err := h.Handle(ctx, ItemDeleted{ItemID: item}); err != nil {
			t.Fatalf("delete %d error = %v", i+1, err)
		}
	}
	if _, err := items.Get(ctx, item); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestHandlers_ReplayRatingAfterItemArrives(t *testing.T) {
	t.Parallel()
	h, _, profiles := newTestHandlers(t)
	dec := newTestDecoder(t)
	ctx := context.Background()
	item, user := uuid.New(), uuid.New()

	entry := &DLQEntry{
		ID:      "rating-1",
		Topic:   "created-rating",
		Payload: []byte(fmt.Sprintf(`{"userId":%q,"bookId":%q,"stars":5}`, user, item)),
	}
	replay := h.Replay(dec)

	if err := replay(ctx, entry); !IsRetryableError(err) {
		t.Fatalf("replay before item exists err = %v, want retryable", err)
	}

	if err := h.Handle(ctx, ItemCreated{ItemID: item, Genres: []genre.Genre{genre.Fantasy, genre.SciFi}}); err != nil {
		t.Fatal(err)
	}
	if err := replay(ctx, entry); err != nil {
		t.Fatalf("replay after item exists error = %v", err)
	}

	p, err := profiles.Get(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if p.GenreScores["FANTASY"] != 5 || p.GenreScores["SCI_FI"] != 5 {
		t.Errorf("GenreScores = %v, want FANTASY=5 SCI_FI=5", p.GenreScores)
	}
	if p.TotalRatings != 1 {
		t.Errorf("TotalRatings = %d, want 1", p.TotalRatings)
	}
	if p.TotalEngagementScore != 5 {
		t.Errorf("TotalEngagementScore = %v, want 5 (promoter)", p.TotalEngagementScore)
	}
}

func TestHandlers_TopicHandler(t *testing.T) {
	t.Parallel()
	h, items, _ := newTestHandlers(t)
	dec := newTestDecoder(t)
	item := uuid.New()

	handler := h.TopicHandler(dec, "created-book")

	msg := message.NewMessage(uuid.NewString(), []byte(fmt.Sprintf(`{"bookId":%q,"genres":["ROMANCE"]}`, item)))
	if err := handler(msg); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if _, err := items.Get(context.Background(), item); err != nil {
		t.Errorf("item not stored: %v", err)
	}

	bad := message.NewMessage(uuid.NewString(), []byte(`not json`))
	if err := handler(bad); !IsPermanentError(err) {
		t.Errorf("malformed payload err = %v, want permanent", err)
	}
}

func TestHandlers_CanceledContextIsRetryable(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandlers(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.Handle(ctx, ItemCreated{ItemID: uuid.New(), Genres: []genre.Genre{genre.Fantasy}})
	if !IsRetryableError(err) || CategoryOf(err) != ErrorCategoryTimeout {
		t.Errorf("err = %v (category %s), want retryable timeout", err, CategoryOf(err))
	}
}
