// Package outbox relays committed ledger events from the credit_outbox table
// to Kafka.
package outbox

import (
	"context"
	"time"

	"github.com/richardliu001/pharmacy-credit/internal/metrics"
	"github.com/richardliu001/pharmacy-credit/internal/model"
	"go.uber.org/zap"
)

// Store is the part of the repository the relay drives.
type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

type Relay struct {
	store    Store
	log      *zap.SugaredLogger
	batch    int
	interval time.Duration
}

func NewRelay(store Store, log *zap.SugaredLogger, batch int, interval time.Duration) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{store: store, log: log, batch: batch, interval: interval}
}

// RunOnce publishes up to one batch of pending events in id order and
// returns how many were marked processed. It stops at the first publish
// failure so a customer's events never reach Kafka out of order.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, evt := range events {
		if err := r.store.PublishEvent(ctx, evt); err != nil {
			metrics.OutboxPublished.WithLabelValues("failed").Inc()
			r.log.Errorw("publish outbox event", "id", evt.ID, "event_type", evt.EventType, "error", err)
			return sent, err
		}
		// at-least-once: a failed mark means the event is published again
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			r.log.Errorw("mark outbox processed", "id", evt.ID, "error", err)
			return sent, err
		}
		metrics.OutboxPublished.WithLabelValues("published").Inc()
		sent++
	}
	return sent, nil
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Infow("outbox relay started", "batch", r.batch, "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Warnw("outbox relay pass incomplete", "sent", n, "error", err)
				continue
			}
			if n > 0 {
				r.log.Infow("outbox events sent", "count", n)
			}
		}
	}
}
