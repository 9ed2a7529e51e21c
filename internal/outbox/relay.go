package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/repository"
)

// Publisher sends an event to the broker. The event type doubles as the
// routing key.
type Publisher interface {
	Publish(ctx context.Context, id, routingKey string, body []byte) error
}

// Relay drains the outbox table into the broker. It polls on a fixed
// interval, publishes pending rows one at a time, and bumps the attempt
// counter on failure. Rows that reach MaxAttempts are left in the table and
// reported through logs and the outbox_events_total{result="dead"} counter;
// the `outbox dead` command lists them.
//
// Delivery is at-least-once: a crash between publish and MarkProcessed
// republishes the row on the next tick, so consumers must be idempotent.
type Relay struct {
	Outbox      repository.OutboxRepository
	Pub         Publisher
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int

	log *zap.Logger
}

func NewRelay(outbox repository.OutboxRepository, pub Publisher, interval time.Duration, batchSize, maxAttempts int, log *zap.Logger) *Relay {
	return &Relay{
		Outbox:      outbox,
		Pub:         pub,
		Interval:    interval,
		BatchSize:   batchSize,
		MaxAttempts: maxAttempts,
		log:         log,
	}
}

// Run polls until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started",
		zap.Duration("interval", r.Interval),
		zap.Int("batch_size", r.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.ProcessBatch(ctx); err != nil {
				r.log.Error("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch fetches one batch of pending rows and pushes each to the
// broker. A publish failure only affects that row; the rest of the batch
// still runs.
func (r *Relay) ProcessBatch(ctx context.Context) error {
	events, err := r.Outbox.FetchUnprocessed(ctx, r.BatchSize, r.MaxAttempts)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := r.publishOne(ctx, ev); err != nil {
			r.log.Warn("publish failed",
				zap.String("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Int("attempts", ev.Attempts+1),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *Relay) publishOne(ctx context.Context, ev model.OutboxEvent) error {
	if err := r.Pub.Publish(ctx, ev.ID, ev.EventType, ev.Payload); err != nil {
		metrics.OutboxEventsTotal.WithLabelValues("failed").Inc()
		if incErr := r.Outbox.IncrementAttempts(ctx, ev.ID); incErr != nil {
			r.log.Error("increment attempts failed", zap.String("event_id", ev.ID), zap.Error(incErr))
		}
		if ev.Attempts+1 >= r.MaxAttempts {
			metrics.OutboxEventsTotal.WithLabelValues("dead").Inc()
			r.log.Error("outbox event exhausted retries, left for operator review",
				zap.String("event_id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Int("attempts", ev.Attempts+1),
			)
		}
		return err
	}

	if err := r.Outbox.MarkProcessed(ctx, ev.ID); err != nil {
		// The message is already out; the row will be republished next tick
		// and consumers have to dedupe. Better than losing the event.
		r.log.Error("mark processed failed", zap.String("event_id", ev.ID), zap.Error(err))
		return err
	}

	metrics.OutboxEventsTotal.WithLabelValues("published").Inc()
	return nil
}
