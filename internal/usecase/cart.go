package usecase

import (
	"context"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/domain/repository"
)

// CatalogProvider resolves menu items and restaurants from the catalog service.
type CatalogProvider interface {
	GetItem(ctx context.Context, id string) (*model.CatalogItem, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
}

// CartUseCase manages per-user pending purchase intents.
type CartUseCase struct {
	carts   repository.CartRepository
	catalog CatalogProvider
	logger  *slog.Logger
}

// NewCartUseCase constructs CartUseCase.
func NewCartUseCase(carts repository.CartRepository, catalog CatalogProvider, logger *slog.Logger) *CartUseCase {
	return &CartUseCase{carts: carts, catalog: catalog, logger: logger}
}

// AddLine prices the item from the catalog and merges it into the owner's cart.
func (u *CartUseCase) AddLine(ctx context.Context, ownerID, restaurantID, catalogItemID string, quantity int) (*model.CartLine, error) {
	switch {
	case ownerID == "":
		return nil, fmt.Errorf("%w: owner is required", domainErrors.ErrValidation)
	case restaurantID == "":
		return nil, fmt.Errorf("%w: restaurant is required", domainErrors.ErrValidation)
	case catalogItemID == "":
		return nil, fmt.Errorf("%w: catalog item is required", domainErrors.ErrValidation)
	case quantity < 1 || quantity > model.MaxLineQuantity:
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", domainErrors.ErrValidation, model.MaxLineQuantity)
	}

	item, err := u.catalog.GetItem(ctx, catalogItemID)
	if err != nil {
		return nil, err
	}
	if item.RestaurantID != "" && item.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: item %s is not sold by restaurant %s", domainErrors.ErrValidation, catalogItemID, restaurantID)
	}

	line := &model.CartLine{
		OwnerID:         ownerID,
		RestaurantID:    restaurantID,
		CatalogItemID:   catalogItemID,
		Quantity:        quantity,
		UnitPrice:       item.Price,
		DisplayName:     item.Name,
		ImageRef:        item.ImageRef,
		PrepTimeMinutes: item.PrepTimeMinutes,
	}
	line.Recalculate()

	return u.carts.Merge(ctx, line)
}

// SetQuantity replaces the quantity of a line owned by ownerID.
func (u *CartUseCase) SetQuantity(ctx context.Context, ownerID, lineID string, quantity int) (*model.CartLine, error) {
	if quantity < 1 || quantity > model.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 1 and %d", domainErrors.ErrValidation, model.MaxLineQuantity)
	}
	if _, err := u.ownedLine(ctx, ownerID, lineID); err != nil {
		return nil, err
	}
	return u.carts.UpdateQuantity(ctx, lineID, quantity)
}

// RemoveLine deletes a line owned by ownerID.
func (u *CartUseCase) RemoveLine(ctx context.Context, ownerID, lineID string) error {
	if _, err := u.ownedLine(ctx, ownerID, lineID); err != nil {
		return err
	}
	return u.carts.Delete(ctx, lineID)
}

// ownedLine hides lines of other users behind ErrNotFound.
func (u *CartUseCase) ownedLine(ctx context.Context, ownerID, lineID string) (*model.CartLine, error) {
	line, err := u.carts.GetByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: cart line %s", domainErrors.ErrNotFound, lineID)
	}
	return line, nil
}

// ListForOwner returns every line of the owner enriched with live catalog data.
func (u *CartUseCase) ListForOwner(ctx context.Context, ownerID string) ([]model.CartLineView, error) {
	lines, err := u.carts.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return u.enrich(ctx, lines), nil
}

// ListForOwnerAndRestaurant returns the owner's lines for a single restaurant.
func (u *CartUseCase) ListForOwnerAndRestaurant(ctx context.Context, ownerID, restaurantID string) ([]model.CartLineView, error) {
	lines, err := u.carts.ListByOwnerAndRestaurant(ctx, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}
	return u.enrich(ctx, lines), nil
}

// Clear removes the owner's lines, optionally only those of one restaurant.
func (u *CartUseCase) Clear(ctx context.Context, ownerID, restaurantID string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner is required", domainErrors.ErrValidation)
	}
	return u.carts.DeleteByOwner(ctx, ownerID, restaurantID)
}

// DistinctRestaurants lists restaurants the owner has lines for.
func (u *CartUseCase) DistinctRestaurants(ctx context.Context, ownerID string) ([]string, error) {
	return u.carts.DistinctRestaurants(ctx, ownerID)
}

func (u *CartUseCase) enrich(ctx context.Context, lines []model.CartLine) []model.CartLineView {
	views := make([]model.CartLineView, 0, len(lines))
	for _, line := range lines {
		view := model.CartLineView{CartLine: line}
		item, err := u.catalog.GetItem(ctx, line.CatalogItemID)
		if err != nil {
			u.logger.Debug("cart line enrichment skipped",
				slog.String("line_id", line.ID),
				slog.String("catalog_item_id", line.CatalogItemID),
				slog.Any("error", err),
			)
		} else {
			view.Item = item
		}
		views = append(views, view)
	}
	return views
}
