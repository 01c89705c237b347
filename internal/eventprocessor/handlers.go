// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/recsync/internal/genre"
	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
	"github.com/tomtom215/recsync/internal/models"
	"github.com/tomtom215/recsync/internal/store"
)

// ItemFeatures is the item feature store as seen by the handlers.
type ItemFeatures interface {
	Create(ctx context.Context, itemID uuid.UUID, genres []genre.Genre) (*models.ItemFeature, error)
	Update(ctx context.Context, itemID uuid.UUID, genres []genre.Genre) (*models.ItemFeature, error)
	Delete(ctx context.Context, itemID uuid.UUID) error
	Get(ctx context.Context, itemID uuid.UUID) (*models.ItemFeature, error)
	SetPopularity(ctx context.Context, itemID uuid.UUID, score float64) error
}

// UserProfiles is the user profile store as seen by the handlers.
type UserProfiles interface {
	Mutate(ctx context.Context, userID uuid.UUID, fn func(p *models.UserProfile) error) (*models.UserProfile, error)
}

// Handlers applies decoded events to the feature stores. Items are
// replaced wholesale; profiles are merged.
type Handlers struct {
	items    ItemFeatures
	profiles UserProfiles
	weights  models.Weights
	log      *logging.EventLogger
	now      func() time.Time
}

// NewHandlers creates the event handlers.
func NewHandlers(items ItemFeatures, profiles UserProfiles, weights models.Weights) *Handlers {
	return &Handlers{
		items:    items,
		profiles: profiles,
		weights:  weights,
		log:      logging.NewEventLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle dispatches ev to the handler for its variant.
func (h *Handlers) Handle(ctx context.Context, ev Event) error {
	start := time.Now()
	kind := string(ev.Kind())
	metrics.RecordEventReceived(kind)

	var err error
	switch e := ev.(type) {
	case ItemCreated:
		err = h.handleItemCreated(ctx, e)
	case ItemUpdated:
		err = h.handleItemUpdated(ctx, e)
	case ItemDeleted:
		err = h.handleItemDeleted(ctx, e)
	case InteractionCreated:
		err = h.applyToProfile(ctx, e.UserID, e.ItemID, e.Type, e.Value)
	case RatingCreated:
		err = h.applyToProfile(ctx, e.UserID, e.ItemID, models.KindRating, float64(e.Stars))
	case PopularityUpdated:
		err = h.handlePopularityUpdated(ctx, e)
	default:
		err = NewPermanentError("unsupported event", fmt.Errorf("%T", ev))
	}

	metrics.RecordEventProcessed(kind, outcome(err), time.Since(start))
	if err == nil {
		h.log.Applied(ctx, kind, ev.AggregateID().String(), time.Since(start))
	}
	return err
}

func (h *Handlers) handleItemCreated(ctx context.Context, e ItemCreated) error {
	_, err := h.items.Create(ctx, e.ItemID, e.Genres)
	if errors.Is(err, store.ErrConflict) {
		// Redelivery of a create we already applied.
		h.log.NoOp(ctx, string(e.Kind()), e.ItemID.String(), "item already exists")
		return nil
	}
	return storeError("create item", err)
}

func (h *Handlers) handleItemUpdated(ctx context.Context, e ItemUpdated) error {
	_, err := h.items.Update(ctx, e.ItemID, e.Genres)
	return storeError("update item", err)
}

func (h *Handlers) handleItemDeleted(ctx context.Context, e ItemDeleted) error {
	return storeError("delete item", h.items.Delete(ctx, e.ItemID))
}

func (h *Handlers) handlePopularityUpdated(ctx context.Context, e PopularityUpdated) error {
	return storeError("set popularity", h.items.SetPopularity(ctx, e.ItemID, e.Score))
}

// applyToProfile merges one interaction into the user's profile using the
// item's current genres. The item must exist; an interaction that arrives
// before its item is retried.
func (h *Handlers) applyToProfile(ctx context.Context, userID, itemID uuid.UUID, kind models.InteractionKind, value float64) error {
	item, err := h.items.Get(ctx, itemID)
	if err != nil {
		return storeError("get item", err)
	}

	_, err = h.profiles.Mutate(ctx, userID, func(p *models.UserProfile) error {
		p.ApplyInteraction(item, kind, value, h.weights, h.now())
		return nil
	})
	return storeError("update profile", err)
}

// storeError maps store sentinels to the intake error taxonomy.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return NewRetryableErrorWithCategory(ErrorCategoryDependency, op, err)
	case errors.Is(err, store.ErrVersionConflict):
		return NewRetryableErrorWithCategory(ErrorCategoryConflict, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewRetryableErrorWithCategory(ErrorCategoryTimeout, op, err)
	default:
		return NewRetryableErrorWithCategory(ErrorCategoryDatabase, op, err)
	}
}

// TopicHandler returns the watermill handler for one topic: decode the
// payload, then apply it.
func (h *Handlers) TopicHandler(dec *Decoder, topic string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		ctx := logging.ContextWithMessageID(msg.Context(), msg.UUID)
		ev, err := dec.Decode(topic, msg.Payload)
		if err != nil {
			h.log.Rejected(ctx, topic, err)
			label := "unknown"
			if kind, ok := dec.KindOf(topic); ok {
				label = string(kind)
			}
			metrics.RecordEventProcessed(label, outcome(err), 0)
			return err
		}
		return h.Handle(ctx, ev)
	}
}

// Replay decodes a dead-lettered payload and applies it again.
func (h *Handlers) Replay(dec *Decoder) RetryHandler {
	return func(ctx context.Context, entry *DLQEntry) error {
		ev, err := dec.Decode(entry.Topic, entry.Payload)
		if err != nil {
			return err
		}
		return h.Handle(logging.ContextWithMessageID(ctx, entry.ID), ev)
	}
}
