package persistence

import (
	"context"
	"log/slog"
	"time"
)

// Recorder decouples instrument polling loops from sqlite write latency.
// Readings are queued and written by one background goroutine; a full
// queue drops the oldest reading rather than stalling the poller.
type Recorder struct {
	logger *slog.Logger
	repo   *ReadingRepo
	queue  chan Reading
}

func NewRecorder(logger *slog.Logger, repo *ReadingRepo, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}

	return &Recorder{
		logger: logger.With("component", "recorder"),
		repo:   repo,
		queue:  make(chan Reading, capacity),
	}
}

// Record queues one reading. It never blocks.
func (r *Recorder) Record(rd Reading) {
	if rd.RecordedAt.IsZero() {
		rd.RecordedAt = time.Now().UTC()
	}

	for {
		select {
		case r.queue <- rd:
			return
		default:
		}

		select {
		case dropped := <-r.queue:
			r.logger.Warn("reading dropped, queue full", "source", dropped.Source, "name", dropped.Name)
		default:
		}
	}
}

// Start drains the queue until ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rd := <-r.queue:
				r.insertWithRetry(ctx, rd)
			}
		}
	}()
}

func (r *Recorder) insertWithRetry(ctx context.Context, rd Reading) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.repo.Insert(ctx, rd)
		if err == nil {
			return
		}
		r.logger.Error("reading insert failed", "source", rd.Source, "attempt", attempt, "error", err)
		if attempt == maxAttempts {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
		}
	}
}
