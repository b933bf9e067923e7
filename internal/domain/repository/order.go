package repository

import (
	"context"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	ListExcludingStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	// UpdateStatus moves the order from one status to another. It fails with
	// ErrConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) error
	Delete(ctx context.Context, id string) error
}
