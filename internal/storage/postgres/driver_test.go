package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
)

var driverRowColumns = []string{"id", "user_id", "name", "vehicle_type", "is_online", "address", "latitude", "longitude",
	"total_deliveries", "total_earnings", "average_rating"}

func TestDriverRepository(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &driverRepository{storage: storage}

	lat, lng := 6.9271, 79.8612
	mock.ExpectQuery("FROM driver_profiles WHERE id=").WithArgs("d1").WillReturnRows(
		pgxmockv3.NewRows(driverRowColumns).AddRow("d1", "u9", "Nimal", "bike", true, "Colombo", &lat, &lng, 12, 3400.0, 4.8))
	p, err := repo.GetByID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.CurrentLocation == nil || p.CurrentLocation.Lat != lat || p.TotalDeliveries != 12 || p.TotalEarnings != 3400 {
		t.Fatalf("unexpected profile: %+v", p)
	}

	mock.ExpectQuery("FROM driver_profiles WHERE user_id=").WithArgs("u9").WillReturnRows(
		pgxmockv3.NewRows(driverRowColumns).AddRow("d1", "u9", "Nimal", "bike", false, "", nil, nil, 0, 0.0, 0.0))
	p, err = repo.GetByUserID(context.Background(), "u9")
	if err != nil || p.CurrentLocation != nil || p.UserID != "u9" {
		t.Fatalf("unexpected profile: %+v err=%v", p, err)
	}

	mock.ExpectQuery("FROM driver_profiles WHERE user_id=").WithArgs("nobody").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByUserID(context.Background(), "nobody"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("FROM driver_profiles WHERE id=").WithArgs("d2").WillReturnError(errors.New("down"))
	if _, err := repo.GetByID(context.Background(), "d2"); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
