// Package compliance provides the audit publisher services emit through.
//
// Writes are synchronous: the caller blocks until the event reaches the store.
// Compliance-category events (succession releases, legacy marking) are
// fail-closed: a persistence error is returned and logged as critical.
// Operations-category events are best-effort and only logged on failure.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/requestcontext"
)

// Publisher emits audit events to an outbox-backed store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes an audit event to the store.
// Returns an error for compliance events that fail to persist; the caller
// decides whether its operation must fail.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Subject == "" {
		return fmt.Errorf("audit event requires Subject")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if event.Category != audit.CategoryCompliance {
			if p.logger != nil {
				p.logger.WarnContext(ctx, "audit event dropped",
					"action", event.Action,
					"subject", event.Subject,
					"error", err,
				)
			}
			return nil
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}

	return nil
}
