package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

var cartRowColumns = []string{"id", "owner_id", "restaurant_id", "catalog_item_id", "quantity", "unit_price", "line_total",
	"display_name", "image_ref", "prep_time_minutes", "created_at", "updated_at"}

func TestCartRepositoryMerge(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &cartRepository{storage: storage}

	now := time.Now()
	line := &model.CartLine{OwnerID: "u1", RestaurantID: "r1", CatalogItemID: "i1", Quantity: 2, UnitPrice: 500, DisplayName: "Kottu"}

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (owner_id, restaurant_id, catalog_item_id) DO UPDATE")).
		WithArgs(pgxmockv3.AnyArg(), "u1", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "", 0).
		WillReturnRows(pgxmockv3.NewRows(cartRowColumns).
			AddRow("l1", "u1", "r1", "i1", 5, 500.0, 2500.0, "Kottu", "", 0, now, now))

	merged, err := repo.Merge(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.Quantity != 5 || merged.LineTotal != 2500 {
		t.Fatalf("unexpected merged line: %+v", merged)
	}
	if line.LineTotal != 1000 {
		t.Fatalf("expected line total recomputed before insert, got %v", line.LineTotal)
	}

	mock.ExpectQuery("INSERT INTO cart_lines").WillReturnError(errors.New("down"))
	if _, err := repo.Merge(context.Background(), line); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCartRepositoryGetAndUpdate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &cartRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("SELECT id, owner_id").WithArgs("l1").WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).AddRow("l1", "u1", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "img", 10, now, now))
	line, err := repo.GetByID(context.Background(), "l1")
	if err != nil || line.OwnerID != "u1" || line.PrepTimeMinutes != 10 {
		t.Fatalf("unexpected line: %+v err=%v", line, err)
	}

	mock.ExpectQuery("SELECT id, owner_id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE cart_lines SET quantity=$2, line_total=unit_price*$2")).WithArgs("l1", 4).WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).AddRow("l1", "u1", "r1", "i1", 4, 500.0, 2000.0, "Kottu", "img", 10, now, now))
	line, err = repo.UpdateQuantity(context.Background(), "l1", 4)
	if err != nil || line.LineTotal != 2000 {
		t.Fatalf("unexpected line: %+v err=%v", line, err)
	}

	mock.ExpectQuery("UPDATE cart_lines").WithArgs("missing", 4).WillReturnError(pgx.ErrNoRows)
	if _, err := repo.UpdateQuantity(context.Background(), "missing", 4); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCartRepositoryList(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &cartRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("FROM cart_lines WHERE owner_id=").WithArgs("u1").WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).
			AddRow("l1", "u1", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "", 0, now, now).
			AddRow("l2", "u1", "r2", "i9", 1, 300.0, 300.0, "Tea", "", 0, now, now))
	lines, err := repo.ListByOwner(context.Background(), "u1")
	if err != nil || len(lines) != 2 {
		t.Fatalf("unexpected result: %v err=%v", lines, err)
	}

	mock.ExpectQuery("FROM cart_lines WHERE owner_id=\\$1 AND restaurant_id=\\$2").WithArgs("u1", "r1").WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).AddRow("l1", "u1", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "", 0, now, now))
	lines, err = repo.ListByOwnerAndRestaurant(context.Background(), "u1", "r1")
	if err != nil || len(lines) != 1 || lines[0].RestaurantID != "r1" {
		t.Fatalf("unexpected result: %v err=%v", lines, err)
	}

	mock.ExpectQuery("FROM cart_lines WHERE owner_id=").WithArgs("u2").WillReturnError(errors.New("query"))
	if _, err := repo.ListByOwner(context.Background(), "u2"); err == nil {
		t.Fatal("expected error")
	}

	mock.ExpectQuery("FROM cart_lines WHERE owner_id=").WithArgs("u3").WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).AddRow(1, "u3", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "", 0, now, now))
	if _, err := repo.ListByOwner(context.Background(), "u3"); err == nil {
		t.Fatal("expected scan error")
	}

	mock.ExpectQuery("FROM cart_lines WHERE owner_id=").WithArgs("u4").WillReturnRows(
		pgxmockv3.NewRows(cartRowColumns).
			AddRow("l1", "u4", "r1", "i1", 2, 500.0, 1000.0, "Kottu", "", 0, now, now).
			RowError(0, errors.New("row")))
	if _, err := repo.ListByOwner(context.Background(), "u4"); err == nil {
		t.Fatal("expected row error")
	}

	mock.ExpectQuery("SELECT DISTINCT restaurant_id FROM cart_lines").WithArgs("u1").WillReturnRows(
		pgxmockv3.NewRows([]string{"restaurant_id"}).AddRow("r1").AddRow("r2"))
	ids, err := repo.DistinctRestaurants(context.Background(), "u1")
	if err != nil || len(ids) != 2 || ids[0] != "r1" {
		t.Fatalf("unexpected restaurants: %v err=%v", ids, err)
	}

	mock.ExpectQuery("SELECT DISTINCT restaurant_id FROM cart_lines").WithArgs("u2").WillReturnError(errors.New("query"))
	if _, err := repo.DistinctRestaurants(context.Background(), "u2"); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCartRepositoryDelete(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &cartRepository{storage: storage}

	mock.ExpectExec("DELETE FROM cart_lines WHERE id=").WithArgs("l1").WillReturnResult(pgxmockv3.NewResult("DELETE", 1))
	if err := repo.Delete(context.Background(), "l1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("DELETE FROM cart_lines WHERE id=").WithArgs("missing").WillReturnResult(pgxmockv3.NewResult("DELETE", 0))
	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("DELETE FROM cart_lines WHERE id=").WithArgs("err").WillReturnError(errors.New("exec"))
	if err := repo.Delete(context.Background(), "err"); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	mock.ExpectExec("DELETE FROM cart_lines WHERE owner_id=\\$1 AND restaurant_id=\\$2").WithArgs("u1", "r1").
		WillReturnResult(pgxmockv3.NewResult("DELETE", 2))
	removed, err := repo.DeleteByOwner(context.Background(), "u1", "r1")
	if err != nil || removed != 2 {
		t.Fatalf("unexpected result: removed=%d err=%v", removed, err)
	}

	mock.ExpectExec("DELETE FROM cart_lines WHERE owner_id=\\$1$").WithArgs("u1").WillReturnResult(pgxmockv3.NewResult("DELETE", 3))
	removed, err = repo.DeleteByOwner(context.Background(), "u1", "")
	if err != nil || removed != 3 {
		t.Fatalf("unexpected result: removed=%d err=%v", removed, err)
	}

	mock.ExpectExec("DELETE FROM cart_lines WHERE owner_id=").WithArgs("u2").WillReturnError(errors.New("exec"))
	if _, err := repo.DeleteByOwner(context.Background(), "u2", ""); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCartRepositoryConsume(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &cartRepository{storage: storage}

	lines := []model.CartLine{{ID: "l1", Quantity: 2}, {ID: "l2", Quantity: 1}}

	mock.ExpectQuery(regexp.QuoteMeta("unnest($2::text[], $3::int[])")).
		WithArgs("u1", []string{"l1", "l2"}, []int32{2, 1}).
		WillReturnRows(pgxmockv3.NewRows([]string{"affected"}).AddRow(int64(2)))
	affected, err := repo.Consume(context.Background(), "u1", lines)
	if err != nil || affected != 2 {
		t.Fatalf("unexpected result: affected=%d err=%v", affected, err)
	}

	if affected, err := repo.Consume(context.Background(), "u1", nil); err != nil || affected != 0 {
		t.Fatalf("empty snapshot must not touch the store: affected=%d err=%v", affected, err)
	}

	mock.ExpectQuery("WITH consumed AS").WithArgs("u1", []string{"l1", "l2"}, []int32{2, 1}).
		WillReturnError(errors.New("down"))
	if _, err := repo.Consume(context.Background(), "u1", lines); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
