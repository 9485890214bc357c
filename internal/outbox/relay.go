// Package outbox relays audit events committed to the outbox table onto
// Kafka, one topic per event category.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"heirloom/internal/platform/kafka"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/tx"
)

type Store interface {
	ClaimPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type Metrics interface {
	AddOutboxRelayed(n int)
	IncOutboxFailures()
}

// Relay moves outbox rows to Kafka. A batch is published and acknowledged
// inside one transaction; a failed publish rolls back and the rows are
// retried on the next tick. Delivery is at least once.
type Relay struct {
	store       Store
	runner      tx.Runner
	publisher   Publisher
	topicPrefix string
	batchSize   int
	logger      *slog.Logger
	metrics     Metrics
	now         func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(store Store, runner tx.Runner, publisher Publisher, topicPrefix string, opts ...Option) *Relay {
	r := &Relay{
		store:       store,
		runner:      runner,
		publisher:   publisher,
		topicPrefix: topicPrefix,
		batchSize:   100,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce publishes at most one batch and returns how many rows it sent.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var sent int
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.store.ClaimPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, kafka.Message{
				Topic: kafka.AuditTopic(r.topicPrefix, audit.EventCategory(e.AggregateType)),
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type": e.EventType,
					"outbox_id":  e.ID.String(),
				},
			})
			ids = append(ids, e.ID)
		}
		if err := r.publisher.Publish(ctx, msgs...); err != nil {
			return err
		}
		if err := r.store.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		sent = len(entries)
		return nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncOutboxFailures()
		}
		return 0, err
	}
	if r.metrics != nil && sent > 0 {
		r.metrics.AddOutboxRelayed(sent)
	}
	return sent, nil
}

// Run relays on every tick until ctx is cancelled. A full batch is followed
// immediately by another attempt. Errors are logged and retried.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		sent, err := r.RelayOnce(ctx)
		if err != nil {
			if r.logger != nil {
				r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
			return
		}
		if sent < r.batchSize {
			return
		}
	}
}
