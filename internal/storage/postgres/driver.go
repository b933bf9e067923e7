package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const driverColumns = `id, user_id, name, vehicle_type, is_online, address, latitude, longitude,
                       total_deliveries, total_earnings, average_rating`

func scanDriver(row pgx.Row) (*model.DriverProfile, error) {
	var (
		p        model.DriverProfile
		lat, lng *float64
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.VehicleType, &p.IsOnline, &p.Address, &lat, &lng,
		&p.TotalDeliveries, &p.TotalEarnings, &p.AverageRating)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.CurrentLocation = &model.Coordinates{Lat: *lat, Lng: *lng}
	}
	return &p, nil
}

func (r *driverRepository) GetByID(ctx context.Context, id string) (*model.DriverProfile, error) {
	query := `SELECT ` + driverColumns + ` FROM driver_profiles WHERE id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	p, err := scanDriver(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("get driver", err)
	}
	return p, nil
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID string) (*model.DriverProfile, error) {
	query := `SELECT ` + driverColumns + ` FROM driver_profiles WHERE user_id=$1`

	ctx, cancel := r.storage.withTimeout(ctx)
	defer cancel()

	p, err := scanDriver(r.storage.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, classify("get driver by user", err)
	}
	return p, nil
}
