package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const cartColumns = `id, owner_id, restaurant_id, catalog_item_id, quantity, unit_price, line_total,
                     display_name, image_ref, prep_time_minutes, created_at, updated_at`

func scanCartLine(row pgx.Row) (*model.CartLine, error) {
	var l model.CartLine
	err := row.Scan(&l.ID, &l.OwnerID, &l.RestaurantID, &l.CatalogItemID, &l.Quantity, &l.UnitPrice, &l.LineTotal,
		&l.DisplayName, &l.ImageRef, &l.PrepTimeMinutes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *cartRepository) Merge(ctx context.Context, line *model.CartLine) (*model.CartLine, error) {
	const query = `INSERT INTO cart_lines (id, owner_id, restaurant_id, catalog_item_id, quantity, unit_price, line_total,
                                           display_name, image_ref, prep_time_minutes)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
                   ON CONFLICT (owner_id, restaurant_id, catalog_item_id) DO UPDATE
                   SET quantity = cart_lines.quantity + EXCLUDED.quantity,
                       unit_price = EXCLUDED.unit_price,
                       line_total = EXCLUDED.unit_price * (cart_lines.quantity + EXCLUDED.quantity),
                       display_name = EXCLUDED.display_name,
                       image_ref = EXCLUDED.image_ref,
                       prep_time_minutes = EXCLUDED.prep_time_minutes,
                       updated_at = NOW()
                   RETURNING ` + cartColumns

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	id := line.ID
	if id == "" {
		id = uuid.NewString()
	}
	line.Recalculate()

	merged, err := scanCartLine(r.storage.pool.QueryRow(ctx, query, id, line.OwnerID, line.RestaurantID, line.CatalogItemID,
		line.Quantity, line.UnitPrice, line.LineTotal, line.DisplayName, line.ImageRef, line.PrepTimeMinutes))
	if err != nil {
		return nil, classify("merge cart line", err)
	}
	return merged, nil
}

func (r *cartRepository) GetByID(ctx context.Context, id string) (*model.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_lines WHERE id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	line, err := scanCartLine(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("get cart line", err)
	}
	return line, nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartLine, error) {
	const query = `UPDATE cart_lines SET quantity=$2, line_total=unit_price*$2, updated_at=NOW()
                   WHERE id=$1
                   RETURNING ` + cartColumns

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	line, err := scanCartLine(r.storage.pool.QueryRow(ctx, query, id, quantity))
	if err != nil {
		return nil, classify("update cart quantity", err)
	}
	return line, nil
}

func (r *cartRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_lines WHERE owner_id=$1 ORDER BY created_at`
	return r.list(ctx, "list cart lines", query, ownerID)
}

func (r *cartRepository) ListByOwnerAndRestaurant(ctx context.Context, ownerID, restaurantID string) ([]model.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_lines WHERE owner_id=$1 AND restaurant_id=$2 ORDER BY created_at`
	return r.list(ctx, "list restaurant cart lines", query, ownerID, restaurantID)
}

func (r *cartRepository) list(ctx context.Context, op, query string, args ...any) ([]model.CartLine, error) {
	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var result []model.CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		result = append(result, *line)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return result, nil
}

func (r *cartRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM cart_lines WHERE id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return classify("delete cart line", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cart line %s", domainErrors.ErrNotFound, id)
	}
	return nil
}

func (r *cartRepository) DeleteByOwner(ctx context.Context, ownerID, restaurantID string) (int64, error) {
	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	var (
		query = `DELETE FROM cart_lines WHERE owner_id=$1`
		args  = []any{ownerID}
	)
	if restaurantID != "" {
		query += ` AND restaurant_id=$2`
		args = append(args, restaurantID)
	}

	tag, err := r.storage.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify("clear cart", err)
	}
	return tag.RowsAffected(), nil
}

func (r *cartRepository) Consume(ctx context.Context, ownerID string, lines []model.CartLine) (int64, error) {
	const query = `WITH consumed AS (
                       SELECT * FROM unnest($2::text[], $3::int[]) AS c(id, quantity)
                   ), removed AS (
                       DELETE FROM cart_lines l USING consumed c
                       WHERE l.owner_id=$1 AND l.id=c.id AND l.quantity<=c.quantity
                       RETURNING l.id
                   ), reduced AS (
                       UPDATE cart_lines l
                       SET quantity=l.quantity-c.quantity, line_total=l.unit_price*(l.quantity-c.quantity), updated_at=NOW()
                       FROM consumed c
                       WHERE l.owner_id=$1 AND l.id=c.id AND l.quantity>c.quantity
                       RETURNING l.id
                   )
                   SELECT (SELECT COUNT(*) FROM removed) + (SELECT COUNT(*) FROM reduced)`

	if len(lines) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(lines))
	quantities := make([]int32, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
		quantities = append(quantities, int32(line.Quantity))
	}

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	var affected int64
	if err := r.storage.pool.QueryRow(ctx, query, ownerID, ids, quantities).Scan(&affected); err != nil {
		return 0, classify("consume cart lines", err)
	}
	return affected, nil
}

func (r *cartRepository) DistinctRestaurants(ctx context.Context, ownerID string) ([]string, error) {
	const query = `SELECT DISTINCT restaurant_id FROM cart_lines WHERE owner_id=$1 ORDER BY restaurant_id`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	rows, err := r.storage.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, classify("list cart restaurants", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("list cart restaurants", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list cart restaurants", err)
	}
	return result, nil
}
