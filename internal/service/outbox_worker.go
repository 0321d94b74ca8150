package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
)

type outboxRepository interface {
	ListUnprocessed(ctx context.Context, limit int) ([]models.ApprovalOutbox, error)
	MarkProcessed(ctx context.Context, id string, processedAt time.Time) error
	MirrorUpsert(ctx context.Context, entry *models.ApprovalOutbox) error
}

// OutboxWorker drains mirror propagation records into the general review
// queue. Delivery is at-least-once: a crash between upsert and mark leaves
// the record unprocessed and the next drain replays the idempotent upsert.
type OutboxWorker struct {
	repo     outboxRepository
	interval time.Duration
	batch    int
	clock    clock.Clock
	logger   *zap.Logger
	done     chan struct{}
}

// NewOutboxWorker constructs a worker.
func NewOutboxWorker(repo outboxRepository, interval time.Duration, clk clock.Clock, logger *zap.Logger) *OutboxWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxWorker{repo: repo, interval: interval, batch: 50, clock: clk, logger: logger, done: make(chan struct{})}
}

// Start launches the drain loop until the context is cancelled.
func (w *OutboxWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.DrainOnce(ctx); err != nil {
					w.logger.Warn("outbox drain failed", zap.Error(err))
				}
			}
		}
	}()
}

// Wait blocks until the drain loop has exited.
func (w *OutboxWorker) Wait() {
	<-w.done
}

// DrainOnce propagates one batch of unprocessed records and returns how many
// were mirrored.
func (w *OutboxWorker) DrainOnce(ctx context.Context) (int, error) {
	entries, err := w.repo.ListUnprocessed(ctx, w.batch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range entries {
		entry := entries[i]
		if err := w.repo.MirrorUpsert(ctx, &entry); err != nil {
			w.logger.Warn("mirror upsert failed", zap.String("outbox", entry.ID), zap.Error(err))
			continue
		}
		if err := w.repo.MarkProcessed(ctx, entry.ID, w.clock.Now()); err != nil {
			// The upsert landed; a replay on the next drain is harmless.
			w.logger.Warn("mark processed failed", zap.String("outbox", entry.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}
