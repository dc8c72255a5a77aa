package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
)

const (
	opTrackOnce = "track_once"
	opTrack     = "track"

	defaultDispatchConcurrency = 64
	defaultWriteTimeout        = 15 * time.Second
)

// Ledger is the rewards sink. Both writes may fail; callers never retry.
type Ledger interface {
	TrackOnce(ctx context.Context, userID, eventType, dedupeKey string, payload map[string]any) error
	Track(ctx context.Context, userID, eventType string, payload map[string]any) error
}

// Dispatcher forwards trackable events without blocking the caller.
type Dispatcher interface {
	Submit(ev event.Trackable)
	InFlight() int
	Drain(ctx context.Context) error
}

type DispatchOptions struct {
	// MaxConcurrency bounds simultaneous ledger writes; <= 0 uses the default.
	MaxConcurrency int64
	// WriteTimeout bounds a single ledger write; <= 0 uses the default.
	WriteTimeout time.Duration
}

// DispatchQueue is a fire-and-forget task group over the ledger.
//
// [ERROR_ISOLATION] A failed write is logged and dropped. Nothing is surfaced
// to the submitter and nothing is retried, so ledger instability degrades
// reward recording but never stalls ingestion.
type DispatchQueue struct {
	ledger   Ledger
	logger   *slog.Logger
	slots    *semaphore.Weighted
	timeout  time.Duration
	inflight *taskGroup[event.Trackable]
}

func NewDispatchQueue(ledger Ledger, logger *slog.Logger, opts DispatchOptions) *DispatchQueue {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultDispatchConcurrency
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &DispatchQueue{
		ledger:   ledger,
		logger:   logger,
		slots:    semaphore.NewWeighted(opts.MaxConcurrency),
		timeout:  opts.WriteTimeout,
		inflight: newTaskGroup[event.Trackable](),
	}
}

// Submit registers the event as in flight and forwards it in the background.
// It returns immediately; waiting for a write slot happens off the caller.
func (q *DispatchQueue) Submit(ev event.Trackable) {
	id := q.inflight.add(ev)
	dispatchesInFlight.Inc()
	go q.forward(id, ev)
}

// InFlight returns the number of unsettled writes.
func (q *DispatchQueue) InFlight() int {
	return q.inflight.size()
}

// Drain waits for all outstanding writes to settle or for ctx to end.
func (q *DispatchQueue) Drain(ctx context.Context) error {
	if err := q.inflight.wait(ctx); err != nil {
		return fmt.Errorf("drain dispatch queue (%d outstanding): %w", q.InFlight(), err)
	}
	return nil
}

func (q *DispatchQueue) forward(id uuid.UUID, ev event.Trackable) {
	// [SETTLEMENT] Runs on success, failure and panic alike.
	defer func() {
		q.inflight.done(id)
		dispatchesInFlight.Dec()
	}()

	defer func() {
		if r := recover(); r != nil {
			dispatchesTotal.WithLabelValues(operation(ev), "panic").Inc()
			q.logger.Error("LEDGER_WRITE_PANIC",
				"err", r,
				"stack", string(debug.Stack()),
				"event_type", ev.EventType,
				"user_id", ev.UserID,
			)
		}
	}()

	// Acquire only fails on a cancelled context, and Background never is.
	_ = q.slots.Acquire(context.Background(), 1)
	defer q.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	op := operation(ev)

	var err error
	if ev.HasDedupeKey() {
		err = q.ledger.TrackOnce(ctx, ev.UserID, ev.EventType, ev.DedupeKey, ev.Payload)
	} else {
		err = q.ledger.Track(ctx, ev.UserID, ev.EventType, ev.Payload)
	}

	if err != nil {
		dispatchesTotal.WithLabelValues(op, "failed").Inc()
		q.logger.Error("LEDGER_WRITE_FAILED",
			"err", err,
			"operation", op,
			"event_type", ev.EventType,
			"user_id", ev.UserID,
			"dedupe_key", ev.DedupeKey,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	dispatchesTotal.WithLabelValues(op, "ok").Inc()
	q.logger.Debug("LEDGER_WRITE_COMPLETED",
		"operation", op,
		"event_type", ev.EventType,
		"user_id", ev.UserID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func operation(ev event.Trackable) string {
	if ev.HasDedupeKey() {
		return opTrackOnce
	}
	return opTrack
}
