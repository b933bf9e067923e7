package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const orderColumns = `id, owner_id, restaurant_id, items, subtotal, delivery_charge, total_amount, payment_method,
                      address_no, address_street, latitude, longitude, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o     model.Order
		items []byte
	)
	err := row.Scan(&o.ID, &o.OwnerID, &o.RestaurantID, &items, &o.Subtotal, &o.DeliveryCharge, &o.TotalAmount, &o.PaymentMethod,
		&o.DeliveryAddress.No, &o.DeliveryAddress.Street, &o.DeliveryCoordinates.Lat, &o.DeliveryCoordinates.Lng,
		&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	const query = `INSERT INTO orders (id, owner_id, restaurant_id, items, subtotal, delivery_charge, total_amount, payment_method,
                                       address_no, address_street, latitude, longitude, status)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
                   RETURNING created_at, updated_at`

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	err = r.storage.pool.QueryRow(ctx, query, order.ID, order.OwnerID, order.RestaurantID, items, order.Subtotal,
		order.DeliveryCharge, order.TotalAmount, order.PaymentMethod, order.DeliveryAddress.No, order.DeliveryAddress.Street,
		order.DeliveryCoordinates.Lat, order.DeliveryCoordinates.Lng, order.Status).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return classify("create order", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("get order", err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.list(ctx, "list orders", query)
}

func (r *orderRepository) ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status=$1 ORDER BY created_at DESC`
	return r.list(ctx, "list orders by status", query, status)
}

func (r *orderRepository) ListExcludingStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status<>$1 ORDER BY created_at DESC`
	return r.list(ctx, "list orders excluding status", query, status)
}

func (r *orderRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Order, error) {
	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		result = append(result, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return result, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) error {
	const query = `UPDATE orders SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	tag, err := r.storage.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return classify("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return r.storage.missOrConflict(ctx, `SELECT status FROM orders WHERE id=$1`, "order", id)
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM orders WHERE id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return classify("delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s", domainErrors.ErrNotFound, id)
	}
	return nil
}

// missOrConflict explains a guarded update that touched no rows: the record
// is either gone or its status moved on.
func (s *Storage) missOrConflict(ctx context.Context, query, entity, id string) error {
	var status string
	if err := s.pool.QueryRow(ctx, query, id).Scan(&status); err != nil {
		return classify("lookup "+entity, err)
	}
	return fmt.Errorf("%w: %s %s is %s", domainErrors.ErrConflict, entity, id, status)
}
