package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// SyncFacade exposes the subset of application functionality required by the worker.
type SyncFacade interface {
	UnsyncedDeliveries(ctx context.Context, limit int) ([]model.DeliverySync, error)
	SyncOrder(ctx context.Context, s model.DeliverySync) error
}

// Reconciler periodically replays delivery statuses into orders whose mirror
// was lost, using a pool of workers.
type Reconciler struct {
	facade    SyncFacade
	interval  time.Duration
	batchSize int
	workers   int
	logger    *slog.Logger

	jobs   chan model.DeliverySync
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewReconciler constructs the reconciliation worker pool.
func NewReconciler(facade SyncFacade, interval time.Duration, batchSize, workers int, logger *slog.Logger) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Reconciler{
		facade:    facade,
		interval:  interval,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
		jobs:      make(chan model.DeliverySync, batchSize),
	}
}

// Start launches background reconciliation.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx)
	}

	r.wg.Add(1)
	go r.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reconciler) dispatch(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.jobs)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	pending, err := r.facade.UnsyncedDeliveries(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("fetch unsynced deliveries failed", slog.String("error", err.Error()))
		return
	}
	if len(pending) > 0 {
		r.logger.Debug("reconciling orders", slog.Int("count", len(pending)))
	}
	for _, s := range pending {
		select {
		case <-ctx.Done():
			return
		case r.jobs <- s:
		}
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-r.jobs:
			if !ok {
				return
			}
			r.reconcile(ctx, s)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, s model.DeliverySync) {
	if err := r.facade.SyncOrder(ctx, s); err != nil {
		r.logger.Error("order reconciliation failed",
			slog.String("order_id", s.OrderID),
			slog.String("delivery_id", s.DeliveryID),
			slog.String("delivery_status", string(s.DeliveryStatus)),
			slog.String("error", err.Error()),
		)
	}
}
