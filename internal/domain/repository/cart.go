package repository

import (
	"context"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

// CartRepository manages cart lines keyed by owner, restaurant and item.
type CartRepository interface {
	// Merge inserts the line or adds its quantity to the existing line for the
	// same (owner, restaurant, item) triple, refreshing price data.
	Merge(ctx context.Context, line *model.CartLine) (*model.CartLine, error)
	GetByID(ctx context.Context, id string) (*model.CartLine, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartLine, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.CartLine, error)
	ListByOwnerAndRestaurant(ctx context.Context, ownerID, restaurantID string) ([]model.CartLine, error)
	Delete(ctx context.Context, id string) error
	// DeleteByOwner removes the owner's lines, limited to one restaurant when
	// restaurantID is not empty.
	DeleteByOwner(ctx context.Context, ownerID, restaurantID string) (int64, error)
	// Consume takes the snapshotted quantities of lines out of the owner's
	// cart. A line is removed when its stored quantity does not exceed the
	// snapshot and reduced otherwise; lines outside the snapshot are kept.
	Consume(ctx context.Context, ownerID string, lines []model.CartLine) (int64, error)
	DistinctRestaurants(ctx context.Context, ownerID string) ([]string, error)
}
