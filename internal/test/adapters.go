package test

import (
	"context"
	"sync"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// CatalogStub serves catalog entries from maps.
type CatalogStub struct {
	Items       map[string]*model.CatalogItem
	Restaurants map[string]*model.Restaurant
	ItemErr     error
	RestErr     error

	mu    sync.Mutex
	calls int
}

// SetPrice changes the live price of an item.
func (s *CatalogStub) SetPrice(id string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.Items[id]; ok {
		item.Price = price
	}
}

// ItemCalls returns how many item lookups were made.
func (s *CatalogStub) ItemCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// GetItem returns a copy of the configured item.
func (s *CatalogStub) GetItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.ItemErr != nil {
		return nil, s.ItemErr
	}
	item, ok := s.Items[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

// GetRestaurant returns a copy of the configured restaurant.
func (s *CatalogStub) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RestErr != nil {
		return nil, s.RestErr
	}
	r, ok := s.Restaurants[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// NotifierStub records notifications.
type NotifierStub struct {
	Err error

	mu   sync.Mutex
	sent []model.Notification
}

// Notify stores the notification.
func (s *NotifierStub) Notify(ctx context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.Err
}

// Sent returns the recorded notifications.
func (s *NotifierStub) Sent() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Notification(nil), s.sent...)
}
