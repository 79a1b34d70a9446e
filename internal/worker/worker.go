package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sessions is the part of the session manager the worker drives.
type Sessions interface {
	AutosaveAll(ctx context.Context) (int, error)
	Prune(ctx context.Context, maxIdle time.Duration) int
}

// Worker periodically autosaves changed sessions and drops idle ones
type Worker struct {
	id       string
	sessions Sessions
	interval time.Duration
	maxIdle  time.Duration
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new worker instance. A maxIdle of zero keeps idle sessions.
func New(sessions Sessions, interval, maxIdle time.Duration, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("autosave-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:       workerID,
		sessions: sessions,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the autosave loop until Stop is called. A final pass runs on
// shutdown so no changed session is lost.
func (w *Worker) Start() error {
	if w.interval <= 0 {
		w.log.Info("Autosave disabled", "worker_id", w.id)
		<-w.ctx.Done()
		return nil
	}

	w.log.Info("Worker starting", "worker_id", w.id, "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			w.RunOnce(shutdownCtx)
			return nil
		case <-ticker.C:
			w.RunOnce(w.ctx)
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// RunOnce performs one autosave pass followed by idle pruning.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	saved, err := w.sessions.AutosaveAll(ctx)
	if err != nil {
		// Failed sessions stay dirty and are retried on the next pass
		w.log.Error("Autosave pass had failures", "error", err, "worker_id", w.id)
	}

	var pruned int
	if w.maxIdle > 0 {
		pruned = w.sessions.Prune(ctx, w.maxIdle)
	}

	if saved > 0 || pruned > 0 {
		w.log.Info("Autosave pass complete",
			"worker_id", w.id,
			"saved", saved,
			"pruned", pruned,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
