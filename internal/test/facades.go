package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// SyncFacadeStub mimics worker interactions with the platform facade.
type SyncFacadeStub struct {
	Batches    [][]model.DeliverySync
	UnsyncedFn func(context.Context, int) ([]model.DeliverySync, error)
	SyncFn     func(context.Context, model.DeliverySync) error
	Synced     []model.DeliverySync
	mu         sync.Mutex
	calls      int32
}

// Lock exposes internal mutex for external synchronization.
func (s *SyncFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *SyncFacadeStub) Unlock() { s.mu.Unlock() }

// UnsyncedDeliveries returns batches from the configured queue.
func (s *SyncFacadeStub) UnsyncedDeliveries(ctx context.Context, limit int) ([]model.DeliverySync, error) {
	if s.UnsyncedFn != nil {
		return s.UnsyncedFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.calls, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	time.Sleep(10 * time.Millisecond)
	return nil, nil
}

// SyncOrder records sync requests.
func (s *SyncFacadeStub) SyncOrder(ctx context.Context, d model.DeliverySync) error {
	if s.SyncFn != nil {
		if err := s.SyncFn(ctx, d); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Synced = append(s.Synced, d)
	return nil
}

// SyncedCount returns the number of recorded syncs.
func (s *SyncFacadeStub) SyncedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Synced)
}

// HealthCheckerStub reports a configured health result.
type HealthCheckerStub struct {
	Err error
}

// HealthCheck returns the configured error.
func (s HealthCheckerStub) HealthCheck(ctx context.Context) error {
	return s.Err
}
