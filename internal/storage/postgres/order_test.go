package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

var orderRowColumns = []string{"id", "owner_id", "restaurant_id", "items", "subtotal", "delivery_charge", "total_amount",
	"payment_method", "address_no", "address_street", "latitude", "longitude", "status", "created_at", "updated_at"}

const orderItemsJSON = `[{"catalog_item_id":"i1","name":"Kottu","quantity":2,"unit_price":500,"line_total":1000},` +
	`{"catalog_item_id":"i2","name":"Rice","quantity":1,"unit_price":600,"line_total":600}]`

func addOrderRow(rows *pgxmockv3.Rows, id string, status model.OrderStatus, now time.Time) *pgxmockv3.Rows {
	return rows.AddRow(id, "u1", "r1", []byte(orderItemsJSON), 1600.0, 200.0, 1800.0, model.PaymentMethodCard,
		"12", "Main St", 6.9271, 79.8612, status, now, now)
}

func TestOrderRepositoryCreate(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()
	order := &model.Order{
		OwnerID:             "u1",
		RestaurantID:        "r1",
		Items:               []model.OrderItem{{CatalogItemID: "i1", Name: "Kottu", Quantity: 2, UnitPrice: 500, LineTotal: 1000}},
		Subtotal:            1000,
		DeliveryCharge:      200,
		TotalAmount:         1200,
		PaymentMethod:       model.PaymentMethodCashOnDelivery,
		DeliveryAddress:     model.Address{No: "12", Street: "Main St"},
		DeliveryCoordinates: model.Coordinates{Lat: 6.9, Lng: 79.8},
		Status:              model.OrderStatusPending,
	}

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(pgxmockv3.AnyArg(), "u1", "r1", pgxmockv3.AnyArg(), 1000.0, 200.0, 1200.0, model.PaymentMethodCashOnDelivery,
			"12", "Main St", 6.9, 79.8, model.OrderStatusPending).
		WillReturnRows(pgxmockv3.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID == "" || !order.CreatedAt.Equal(now) {
		t.Fatalf("expected generated id and timestamps, got %+v", order)
	}

	mock.ExpectQuery("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: "23505"})
	if err := repo.Create(context.Background(), order); !errors.Is(err, domainErrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	mock.ExpectQuery("INSERT INTO orders").WillReturnError(errors.New("insert"))
	if err := repo.Create(context.Background(), order); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryGetAndList(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	now := time.Now()
	mock.ExpectQuery("FROM orders WHERE id=").WithArgs("o1").WillReturnRows(
		addOrderRow(pgxmockv3.NewRows(orderRowColumns), "o1", model.OrderStatusPending, now))
	order, err := repo.GetByID(context.Background(), "o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.Items) != 2 || order.Items[1].LineTotal != 600 || order.Subtotal != 1600 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.DeliveryAddress.Street != "Main St" || order.DeliveryCoordinates.Lng != 79.8612 {
		t.Fatalf("unexpected address: %+v", order)
	}

	mock.ExpectQuery("FROM orders WHERE id=").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("FROM orders WHERE id=").WithArgs("broken").WillReturnRows(
		pgxmockv3.NewRows(orderRowColumns).AddRow("broken", "u1", "r1", []byte("{"), 1.0, 0.0, 1.0, model.PaymentMethodCard,
			"1", "St", 0.0, 0.0, model.OrderStatusPending, now, now))
	if _, err := repo.GetByID(context.Background(), "broken"); err == nil {
		t.Fatal("expected decode error")
	}

	mock.ExpectQuery("FROM orders ORDER BY created_at DESC").WillReturnRows(
		addOrderRow(addOrderRow(pgxmockv3.NewRows(orderRowColumns), "o1", model.OrderStatusPending, now), "o2", model.OrderStatusDelivered, now))
	orders, err := repo.List(context.Background())
	if err != nil || len(orders) != 2 {
		t.Fatalf("unexpected result: %v err=%v", orders, err)
	}

	mock.ExpectQuery("FROM orders WHERE status=").WithArgs(model.OrderStatusDelivered).WillReturnRows(
		addOrderRow(pgxmockv3.NewRows(orderRowColumns), "o2", model.OrderStatusDelivered, now))
	orders, err = repo.ListByStatus(context.Background(), model.OrderStatusDelivered)
	if err != nil || len(orders) != 1 || orders[0].Status != model.OrderStatusDelivered {
		t.Fatalf("unexpected result: %v err=%v", orders, err)
	}

	mock.ExpectQuery("FROM orders WHERE status<>").WithArgs(model.OrderStatusDelivered).WillReturnRows(
		addOrderRow(pgxmockv3.NewRows(orderRowColumns), "o1", model.OrderStatusPreparing, now))
	orders, err = repo.ListExcludingStatus(context.Background(), model.OrderStatusDelivered)
	if err != nil || len(orders) != 1 || orders[0].Status != model.OrderStatusPreparing {
		t.Fatalf("unexpected result: %v err=%v", orders, err)
	}

	mock.ExpectQuery("FROM orders ORDER BY created_at DESC").WillReturnError(errors.New("query"))
	if _, err := repo.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	mock.ExpectExec("UPDATE orders SET status=").WithArgs("o1", model.OrderStatusPending, model.OrderStatusConfirmed).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	if err := repo.UpdateStatus(context.Background(), "o1", model.OrderStatusPending, model.OrderStatusConfirmed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status=").WithArgs("o1", model.OrderStatusPending, model.OrderStatusConfirmed).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM orders WHERE id=").WithArgs("o1").
		WillReturnRows(pgxmockv3.NewRows([]string{"status"}).AddRow("Preparing"))
	if err := repo.UpdateStatus(context.Background(), "o1", model.OrderStatusPending, model.OrderStatusConfirmed); !errors.Is(err, domainErrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status=").WithArgs("gone", model.OrderStatusPending, model.OrderStatusConfirmed).
		WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM orders WHERE id=").WithArgs("gone").WillReturnError(pgx.ErrNoRows)
	if err := repo.UpdateStatus(context.Background(), "gone", model.OrderStatusPending, model.OrderStatusConfirmed); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("UPDATE orders SET status=").WithArgs("o1", model.OrderStatusPending, model.OrderStatusConfirmed).
		WillReturnError(context.DeadlineExceeded)
	if err := repo.UpdateStatus(context.Background(), "o1", model.OrderStatusPending, model.OrderStatusConfirmed); !errors.Is(err, domainErrors.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestOrderRepositoryDelete(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()
	repo := &orderRepository{storage: storage}

	mock.ExpectExec("DELETE FROM orders WHERE id=").WithArgs("o1").WillReturnResult(pgxmockv3.NewResult("DELETE", 1))
	if err := repo.Delete(context.Background(), "o1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec("DELETE FROM orders WHERE id=").WithArgs("o2").WillReturnResult(pgxmockv3.NewResult("DELETE", 0))
	if err := repo.Delete(context.Background(), "o2"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("DELETE FROM orders WHERE id=").WithArgs("o3").WillReturnError(errors.New("exec"))
	if err := repo.Delete(context.Background(), "o3"); err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
