// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/recsync/internal/logging"
	"github.com/tomtom215/recsync/internal/metrics"
)

// MetadataAttempts records how many in-process attempts a dead-lettered
// message got.
const MetadataAttempts = "dlq_attempts"

// DeadLetter retries retryable handler failures in-process and then moves
// the message to the DLQ. Permanent failures skip the retries. A message is
// acked once it is safely in the DLQ; it is nacked only when the DLQ itself
// refuses the entry or the context ends mid-backoff.
//
// With a retry budget set, retries stop early once the next backoff would
// end past the budget measured from receipt. The budget must stay below the
// broker's ack wait: after that the message context is canceled and the
// message is redelivered instead of dead-lettered.
type DeadLetter struct {
	policy  *RetryPolicy
	dlq     DeadLetterQueue
	decoder *Decoder
	log     *logging.EventLogger
	budget  time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDeadLetter creates the dead-letter middleware factory. decoder may be
// nil; it only labels entries with their event kind.
func NewDeadLetter(policy *RetryPolicy, dlq DeadLetterQueue, decoder *Decoder) *DeadLetter {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	return &DeadLetter{
		policy:  policy,
		dlq:     dlq,
		decoder: decoder,
		log:     logging.NewEventLogger(),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// SetRetryBudget caps the time spent retrying one message (0 = no cap).
func (d *DeadLetter) SetRetryBudget(budget time.Duration) {
	d.budget = budget
}

// RetryBudgetFor returns the retry budget for a broker ack wait, leaving a
// fifth of it for the DLQ write and the ack itself.
func RetryBudgetFor(ackWait time.Duration) time.Duration {
	return ackWait - ackWait/5
}

// ForTopic returns the middleware for the handler consuming topic.
func (d *DeadLetter) ForTopic(topic string) message.HandlerMiddleware {
	var kind Kind
	if d.decoder != nil {
		kind, _ = d.decoder.KindOf(topic)
	}

	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := logging.ContextWithMessageID(msg.Context(), msg.UUID)
			received := d.now()

			var err error
			attempt := 0
			for ; ; attempt++ {
				var produced []*message.Message
				produced, err = h(msg)
				if err == nil {
					return produced, nil
				}
				if !d.policy.ShouldRetry(err, attempt) {
					break
				}

				backoff := d.policy.CalculateBackoff(attempt)
				if d.budget > 0 && d.now().Sub(received)+backoff >= d.budget {
					d.log.BudgetExhausted(ctx, topic, attempt+1, d.budget, err)
					break
				}
				metrics.RecordEventRetry(topic)
				d.log.Retrying(ctx, topic, attempt+1, backoff, err)
				if sleepErr := d.sleep(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("retry of %s interrupted: %w", msg.UUID, sleepErr)
				}
			}

			attempts := attempt + 1
			entry := NewDLQEntry(topic, kind, msg, err)
			entry.Metadata[MetadataAttempts] = strconv.Itoa(attempts)
			if addErr := d.dlq.Add(ctx, entry); addErr != nil {
				return nil, fmt.Errorf("dead-letter %s: %w (handler error: %v)", msg.UUID, addErr, err)
			}

			d.log.DeadLettered(ctx, topic, entry.Category.String(), attempts, err)
			return nil, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
