package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/logging"
)

// Queue hands job IDs to a Runner, in process or through a broker.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Runner executes queued jobs under the ImportLimiter.
type Runner struct {
	service *Service
	limiter *ImportLimiter
}

// NewRunner creates a Runner. Runs have no deadline of their own; see
// WithCommandTimeout for bounding each command.
func NewRunner(s *Service, limiter *ImportLimiter) *Runner {
	return &Runner{service: s, limiter: limiter}
}

// Limiter exposes the limiter for status reporting and shutdown draining.
func (r *Runner) Limiter() *ImportLimiter { return r.limiter }

// Handle runs one job. ctx only governs waiting for a slot: once started, a
// run is not cancelled, so the workbook and job are always written.
//
// Fatal errors are logged and swallowed: redelivery cannot fix them, and
// once rows were submitted it would submit them twice. Anything else is
// returned so the queue can retry.
func (r *Runner) Handle(ctx context.Context, jobID string) error {
	logger := logging.WithFields(ctx, "job_id", jobID)

	if err := r.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("wait for run slot: %w", err)
	}
	defer r.limiter.Release()

	outcome, err := r.service.RunImport(context.WithoutCancel(ctx), jobID)
	switch {
	case err == nil:
		for _, f := range outcome.Failures() {
			logger.Debug("row not imported", "row", f.RowIndex, "kind", f.Kind, "error", f.Err)
		}
		return nil
	case IsFatal(err):
		logger.Error("import failed", "error", err, "fatal", true)
		return nil
	default:
		logger.Error("import failed", "error", err)
		return err
	}
}

// LocalQueue runs jobs in-process. Enqueue never blocks longer than ctx.
type LocalQueue struct {
	runner  *Runner
	pending chan string
	wg      sync.WaitGroup
	retry   time.Duration
}

// NewLocalQueue creates a queue holding up to buffer pending jobs.
func NewLocalQueue(r *Runner, buffer int) *LocalQueue {
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalQueue{runner: r, pending: make(chan string, buffer), retry: 5 * time.Second}
}

func (q *LocalQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.pending <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes jobs until ctx is done, then waits for started runs.
func (q *LocalQueue) Run(ctx context.Context) error {
	slog.Info("local import queue started", "buffer", cap(q.pending))
	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			return nil
		case id := <-q.pending:
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				q.handle(ctx, id)
			}()
		}
	}
}

func (q *LocalQueue) handle(ctx context.Context, id string) {
	err := q.runner.Handle(ctx, id)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	// Transient failure: try again later unless shutting down.
	select {
	case <-ctx.Done():
	case <-time.After(q.retry):
		if err := q.Enqueue(ctx, id); err != nil {
			slog.Warn("requeue failed", "job_id", id, "error", err)
		}
	}
}
