package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/config"
	"github.com/Jaydeep869/Counter-Finger-Game/internal/redis"
)

// BestScoreSource yields each user's best ledger score.
type BestScoreSource interface {
	BestScores(ctx context.Context) (map[uuid.UUID]int64, error)
}

// ReconcileWorker periodically rebuilds the Redis rank mirror from the
// ledger, repairing any drift left by best-effort mirror updates.
type ReconcileWorker struct {
	ledger  BestScoreSource
	mirror  *redis.RankMirror
	config  *config.ReconcileConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	ledger BestScoreSource,
	mirror *redis.RankMirror,
	cfg *config.ReconcileConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		ledger: ledger,
		mirror: mirror,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reconcile process
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconcile process
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

// run is the main worker loop
func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.Error("reconcile cycle failed", "error", err)
			}
		}
	}
}

// Reconcile rebuilds the rank mirror from the ledger's per-user best
// scores. Also used at startup so the mirror survives a Redis flush.
func (w *ReconcileWorker) Reconcile(ctx context.Context) error {
	startTime := time.Now()

	best, err := w.ledger.BestScores(ctx)
	if err != nil {
		return err
	}

	if err := w.mirror.Reset(ctx); err != nil {
		return err
	}
	if err := w.mirror.BatchSetScores(ctx, best); err != nil {
		return err
	}

	w.logger.Info("rank mirror reconciled",
		"users", len(best),
		"duration", time.Since(startTime),
	)
	return nil
}
