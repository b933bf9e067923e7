package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
)

func (p *platform) putPreparedOrder(id string) {
	p.orders.Put(model.Order{
		ID:                  id,
		OwnerID:             customer.ID,
		RestaurantID:        "r1",
		Status:              model.OrderStatusPrepared,
		DeliveryCharge:      250,
		PaymentMethod:       model.PaymentMethodCard,
		DeliveryAddress:     model.Address{No: "12", Street: "Galle Rd"},
		DeliveryCoordinates: model.Coordinates{Lat: 6.90, Lng: 79.86},
	})
}

func acceptDelivery(t *testing.T, p *platform, orderID string) dto.DeliveryResponse {
	t.Helper()
	resp := performRequest(t, http.MethodPost, "/deliveries", "/deliveries", NewDeliveryHandler(p.facade).Accept, &driverOne, dto.AcceptDeliveryRequest{
		OrderID:        orderID,
		PickupAddress:  "Hotel de Kottu",
		PickupLocation: dto.Coordinates{Latitude: 6.93, Longitude: 79.85},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("accept: %d %s", resp.Code, resp.Body)
	}
	return decode[dto.DeliveryResponse](t, resp)
}

func TestDeliveryHandlerAccept(t *testing.T) {
	p := newPlatform()
	p.putPreparedOrder("o1")
	h := NewDeliveryHandler(p.facade)

	delivery := acceptDelivery(t, p, "o1")
	if delivery.Status != string(model.DeliveryStatusAccepted) || delivery.DriverID != "d1" || delivery.EstimatedTime < 1 {
		t.Fatalf("unexpected delivery %+v", delivery)
	}
	if delivery.DropoffAddress != "12, Galle Rd" || delivery.ProofPhotos == nil {
		t.Fatalf("unexpected dropoff %+v", delivery)
	}

	body := dto.AcceptDeliveryRequest{OrderID: "o1", PickupLocation: dto.Coordinates{Latitude: 6.93, Longitude: 79.85}}
	resp := performRequest(t, http.MethodPost, "/deliveries", "/deliveries", h.Accept, &driverOne, body)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double accept, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries", "/deliveries", h.Accept, &customer, body)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-driver, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries", "/deliveries", h.Accept, &driverOne, "[]")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", resp.Code)
	}

	p.putPreparedOrder("o2")
	resp = performRequest(t, http.MethodPost, "/deliveries", "/deliveries", h.Accept, &driverOne,
		dto.AcceptDeliveryRequest{OrderID: "o2", PickupLocation: dto.Coordinates{Latitude: 120, Longitude: 0}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid pickup, got %d", resp.Code)
	}
}

func TestDeliveryHandlerLifecycle(t *testing.T) {
	p := newPlatform()
	p.putPreparedOrder("o1")
	h := NewDeliveryHandler(p.facade)
	delivery := acceptDelivery(t, p, "o1")
	path := "/deliveries/" + delivery.ID

	resp := performRequest(t, http.MethodPatch, "/deliveries/:id/status", path+"/status", h.UpdateStatus, &driverOne, dto.StatusRequest{Status: "Delivered"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-transit status, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodPatch, "/deliveries/:id/status", path+"/status", h.UpdateStatus, &driverOne, dto.StatusRequest{Status: "PickedUp"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.Code, resp.Body)
	}
	if picked := decode[dto.DeliveryResponse](t, resp); picked.PickedUpAt == nil {
		t.Fatalf("expected pickup stamp, got %+v", picked)
	}

	resp = performRequest(t, http.MethodGet, "/deliveries/mine/active", "/deliveries/mine/active", h.MineActive, &driverOne, nil)
	if list := decode[[]dto.DeliveryResponse](t, resp); len(list) != 1 {
		t.Fatalf("expected one active delivery, got %+v", list)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries/:id/complete", path+"/complete", h.Complete, &driverOne, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected completion without body, got %d %s", resp.Code, resp.Body)
	}
	completed := decode[dto.DeliveryResponse](t, resp)
	if completed.Status != string(model.DeliveryStatusDelivered) || completed.ActualTime == nil || *completed.ActualTime > 1 {
		t.Fatalf("unexpected completion %+v", completed)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries/:id/complete", path+"/complete", h.Complete, &driverOne,
		dto.CompleteDeliveryRequest{CustomerSignature: "late", ProofPhotos: []string{"door.jpg"}})
	if resp.Code != http.StatusOK || decode[dto.DeliveryResponse](t, resp).CustomerSignature != "" {
		t.Fatalf("replayed completion must return the stored record, got %d %s", resp.Code, resp.Body)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries/:id/cancel", path+"/cancel", h.Cancel, &driverOne, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when cancelling a delivered record, got %d", resp.Code)
	}

	resp = performRequest(t, http.MethodGet, "/drivers/me", "/drivers/me", h.DriverProfile, &driverOne, nil)
	profile := decode[dto.DriverProfileResponse](t, resp)
	if profile.TotalDeliveries != 1 || profile.TotalEarnings != 250 || profile.Name != "Nimal" {
		t.Fatalf("unexpected ledger %+v", profile)
	}

	resp = performRequest(t, http.MethodGet, "/deliveries/mine", "/deliveries/mine", h.Mine, &driverOne, nil)
	if list := decode[[]dto.DeliveryResponse](t, resp); len(list) != 1 {
		t.Fatalf("expected delivery history, got %+v", list)
	}

	order, err := p.orders.GetByID(context.Background(), "o1")
	if err != nil || order.Status != model.OrderStatusDelivered {
		t.Fatalf("expected order mirrored to Delivered, got %+v err=%v", order, err)
	}
}

func TestDeliveryHandlerCompleteRejectsMalformedBody(t *testing.T) {
	p := newPlatform()
	p.putPreparedOrder("o1")
	delivery := acceptDelivery(t, p, "o1")

	resp := performRequest(t, http.MethodPost, "/deliveries/:id/complete", "/deliveries/"+delivery.ID+"/complete",
		NewDeliveryHandler(p.facade).Complete, &driverOne, `{"proof_photos": "not-a-list"}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDeliveryHandlerVisibility(t *testing.T) {
	p := newPlatform()
	p.putPreparedOrder("o1")
	h := NewDeliveryHandler(p.facade)
	delivery := acceptDelivery(t, p, "o1")

	resp := performRequest(t, http.MethodGet, "/deliveries/:id", "/deliveries/"+delivery.ID, h.Get, &customer, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected owner to see delivery, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/deliveries/by-order/:orderId", "/deliveries/by-order/o1", h.ByOrder, &stranger, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	resp = performRequest(t, http.MethodGet, "/deliveries/by-order/:orderId", "/deliveries/by-order/missing", h.ByOrder, &restaurant, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestDeliveryHandlerRelayToken(t *testing.T) {
	p := newPlatform()
	p.putPreparedOrder("o1")
	h := NewDeliveryHandler(p.facade)
	delivery := acceptDelivery(t, p, "o1")
	target := "/deliveries/" + delivery.ID + "/relay-token"

	resp := performRequest(t, http.MethodPost, "/deliveries/:id/relay-token", target, h.RelayToken, &driverOne, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", resp.Code, resp.Body)
	}
	grant := decode[dto.RelayTokenResponse](t, resp)
	if grant.Role != string(auth.RelayRoleDriver) || !strings.HasSuffix(grant.Path, delivery.ID+"/location") {
		t.Fatalf("unexpected grant %+v", grant)
	}
	claims, err := p.tokens.Verify(grant.Token)
	if err != nil || claims.DeliveryID != delivery.ID || claims.Subject != driverOne.ID {
		t.Fatalf("unexpected claims %+v err=%v", claims, err)
	}

	resp = performRequest(t, http.MethodPost, "/deliveries/:id/relay-token", target, h.RelayToken, &stranger, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}
