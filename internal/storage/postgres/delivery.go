package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const deliveryColumns = `id, order_id, COALESCE(driver_id, ''), status, pickup_address, dropoff_address,
                         pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
                         accepted_at, picked_up_at, delivered_at, canceled_at,
                         proof_photos, estimated_time, actual_time, delivery_charge, payment_method, customer_signature`

func scanDelivery(row pgx.Row) (*model.DeliveryOrder, error) {
	var d model.DeliveryOrder
	err := row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.Status, &d.PickupAddress, &d.DropoffAddress,
		&d.PickupLocation.Lat, &d.PickupLocation.Lng, &d.DropoffLocation.Lat, &d.DropoffLocation.Lng,
		&d.AcceptedAt, &d.PickedUpAt, &d.DeliveredAt, &d.CanceledAt,
		&d.ProofPhotos, &d.EstimatedTime, &d.ActualTime, &d.DeliveryCharge, &d.PaymentMethod, &d.CustomerSignature)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deliveryRepository) Create(ctx context.Context, d *model.DeliveryOrder) error {
	const query = `INSERT INTO delivery_orders (id, order_id, driver_id, status, pickup_address, dropoff_address,
                                                pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, accepted_at,
                                                proof_photos, estimated_time, delivery_charge, payment_method)
                   VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ProofPhotos == nil {
		d.ProofPhotos = []string{}
	}

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	_, err := r.storage.pool.Exec(ctx, query, d.ID, d.OrderID, d.DriverID, d.Status, d.PickupAddress, d.DropoffAddress,
		d.PickupLocation.Lat, d.PickupLocation.Lng, d.DropoffLocation.Lat, d.DropoffLocation.Lng, d.AcceptedAt,
		d.ProofPhotos, d.EstimatedTime, d.DeliveryCharge, d.PaymentMethod)
	if err != nil {
		return classify("create delivery", err)
	}
	return nil
}

func (r *deliveryRepository) Reassign(ctx context.Context, d *model.DeliveryOrder) error {
	const query = `UPDATE delivery_orders
                   SET driver_id = NULLIF($2, ''), status = $3, pickup_address = $4, dropoff_address = $5,
                       pickup_lat = $6, pickup_lng = $7, dropoff_lat = $8, dropoff_lng = $9, accepted_at = $10,
                       picked_up_at = NULL, delivered_at = NULL, canceled_at = NULL, proof_photos = '{}',
                       estimated_time = $11, actual_time = NULL, delivery_charge = $12, payment_method = $13,
                       customer_signature = ''
                   WHERE order_id = $1 AND status = 'Cancelled'
                   RETURNING id`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	var id string
	err := r.storage.pool.QueryRow(ctx, query, d.OrderID, d.DriverID, d.Status, d.PickupAddress, d.DropoffAddress,
		d.PickupLocation.Lat, d.PickupLocation.Lng, d.DropoffLocation.Lat, d.DropoffLocation.Lng, d.AcceptedAt,
		d.EstimatedTime, d.DeliveryCharge, d.PaymentMethod).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: order %s already has an active delivery", domainErrors.ErrConflict, d.OrderID)
		}
		return classify("reassign delivery", err)
	}

	d.ID = id
	d.PickedUpAt, d.DeliveredAt, d.CanceledAt, d.ActualTime = nil, nil, nil, nil
	d.ProofPhotos = []string{}
	d.CustomerSignature = ""
	return nil
}

func (r *deliveryRepository) GetByID(ctx context.Context, id string) (*model.DeliveryOrder, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_orders WHERE id=$1`
	return r.get(ctx, "get delivery", query, id)
}

func (r *deliveryRepository) GetByOrderID(ctx context.Context, orderID string) (*model.DeliveryOrder, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_orders WHERE order_id=$1`
	return r.get(ctx, "get delivery by order", query, orderID)
}

func (r *deliveryRepository) get(ctx context.Context, op, query, arg string) (*model.DeliveryOrder, error) {
	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	d, err := scanDelivery(r.storage.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, classify(op, err)
	}
	return d, nil
}

func (r *deliveryRepository) ListByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_orders
              WHERE driver_id=$1
              ORDER BY delivered_at DESC NULLS LAST, accepted_at DESC`
	return r.list(ctx, "list driver deliveries", query, driverID)
}

func (r *deliveryRepository) ListActiveByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_orders
              WHERE driver_id=$1 AND status IN ('DeliveryAccepted', 'OutForDelivery', 'PickedUp')
              ORDER BY accepted_at DESC`
	return r.list(ctx, "list active driver deliveries", query, driverID)
}

func (r *deliveryRepository) list(ctx context.Context, op, query string, args ...any) ([]model.DeliveryOrder, error) {
	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	rows, err := r.storage.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var result []model.DeliveryOrder
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return result, nil
}

func (r *deliveryRepository) Advance(ctx context.Context, id string, from, to model.DeliveryStatus, pickedUpAt *time.Time) error {
	const query = `UPDATE delivery_orders SET status=$3, picked_up_at=COALESCE($4, picked_up_at)
                   WHERE id=$1 AND status=$2`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	tag, err := r.storage.pool.Exec(ctx, query, id, from, to, pickedUpAt)
	if err != nil {
		return classify("advance delivery", err)
	}
	if tag.RowsAffected() == 0 {
		return r.storage.missOrConflict(ctx, `SELECT status FROM delivery_orders WHERE id=$1`, "delivery", id)
	}
	return nil
}

func (r *deliveryRepository) Cancel(ctx context.Context, id string, from model.DeliveryStatus, canceledAt time.Time) error {
	const query = `UPDATE delivery_orders SET status='Cancelled', canceled_at=$3, driver_id=NULL
                   WHERE id=$1 AND status=$2`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	tag, err := r.storage.pool.Exec(ctx, query, id, from, canceledAt)
	if err != nil {
		return classify("cancel delivery", err)
	}
	if tag.RowsAffected() == 0 {
		return r.storage.missOrConflict(ctx, `SELECT status FROM delivery_orders WHERE id=$1`, "delivery", id)
	}
	return nil
}

// Complete marks the delivery delivered and credits the driver ledger in the
// same transaction. The update only matches the assignment the completion was
// computed from, so a delivery cancelled and re-accepted in between is never
// credited to the previous driver. Ledger counters are only ever changed by
// relative increments so concurrent completions cannot lose updates.
func (r *deliveryRepository) Complete(ctx context.Context, c model.DeliveryCompletion) (bool, error) {
	const completeQuery = `UPDATE delivery_orders
                           SET status='Delivered', delivered_at=$2, actual_time=$3, customer_signature=$4, proof_photos=$5
                           WHERE id=$1 AND status IN ('DeliveryAccepted', 'OutForDelivery', 'PickedUp')
                             AND COALESCE(driver_id, '')=$6 AND accepted_at=$7`
	const creditQuery = `UPDATE driver_profiles
                         SET total_deliveries = total_deliveries + 1,
                             total_earnings = total_earnings + $2
                         WHERE id = $1`

	photos := c.ProofPhotos
	if photos == nil {
		photos = []string{}
	}

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	credited := false
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, completeQuery, c.DeliveryID, c.DeliveredAt, c.ActualTime, c.CustomerSignature, photos, c.DriverID, c.AcceptedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: delivery %s is not active or was reassigned", domainErrors.ErrConflict, c.DeliveryID)
		}

		if c.DriverID == "" {
			r.storage.logger.Warn("completed delivery has no driver to credit", slog.String("delivery_id", c.DeliveryID))
			return nil
		}
		tag, err = tx.Exec(ctx, creditQuery, c.DriverID, c.DeliveryCharge)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			r.storage.logger.Warn("driver profile missing, ledger not credited",
				slog.String("delivery_id", c.DeliveryID),
				slog.String("driver_id", c.DriverID),
			)
			return nil
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, classify("complete delivery", err)
	}
	return credited, nil
}

// ListUnsynced returns deliveries whose order status lags behind the mirror
// of the delivery status. Mirrors only move forward, except that a cancelled
// delivery releases an order still in the delivery phase back to Prepared.
func (r *deliveryRepository) ListUnsynced(ctx context.Context, limit int) ([]model.DeliverySync, error) {
	const query = `SELECT d.id, d.order_id, d.status, o.status
                   FROM delivery_orders d
                   JOIN orders o ON o.id = d.order_id
                   WHERE o.status NOT IN ('Delivered', 'Cancelled')
                     AND (
                          (d.status = 'DeliveryAccepted' AND o.status IN ('Pending', 'Confirmed', 'Preparing', 'Prepared'))
                       OR (d.status IN ('OutForDelivery', 'PickedUp') AND o.status IN ('Pending', 'Confirmed', 'Preparing', 'Prepared', 'DeliveryAccepted'))
                       OR (d.status = 'Delivered')
                       OR (d.status = 'Cancelled' AND o.status IN ('DeliveryAccepted', 'OutForDelivery'))
                     )
                   ORDER BY d.accepted_at NULLS FIRST
                   LIMIT $1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("list unsynced deliveries", err)
	}
	defer rows.Close()

	var result []model.DeliverySync
	for rows.Next() {
		var s model.DeliverySync
		if err := rows.Scan(&s.DeliveryID, &s.OrderID, &s.DeliveryStatus, &s.OrderStatus); err != nil {
			return nil, classify("list unsynced deliveries", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list unsynced deliveries", err)
	}
	return result, nil
}
