package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/relay"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
)

type relayFixture struct {
	server *httptest.Server
	tokens *auth.RoomTokens
	hub    *relay.Hub
	access *relayAccessStub
}

// relayAccessStub admits every listener and, once a room has an assignment,
// only the assigned driver as publisher.
type relayAccessStub struct {
	mu       sync.Mutex
	assigned map[string]string
}

func (s *relayAccessStub) assign(deliveryID, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assigned == nil {
		s.assigned = make(map[string]string)
	}
	s.assigned[deliveryID] = subject
}

func (s *relayAccessStub) AuthorizeRelay(ctx context.Context, claims auth.RoomClaims) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	driver, ok := s.assigned[claims.DeliveryID]
	if !ok || claims.Role != auth.RelayRoleDriver || driver == claims.Subject {
		return nil
	}
	return domainErrors.ErrForbidden
}

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	hub := relay.NewHub(relay.Options{SinglePublisher: true}, nil, discardLogger())
	t.Cleanup(hub.Close)
	tokens := auth.NewRoomTokens("relay-secret", auth.Options{})
	access := &relayAccessStub{}

	router := gin.New()
	router.GET("/ws/deliveries/:id/location", NewRelayHandler(hub, tokens, access, discardLogger()).Stream)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &relayFixture{server: server, tokens: tokens, hub: hub, access: access}
}

func (f *relayFixture) token(t *testing.T, deliveryID, subject string, role auth.RelayRole) string {
	t.Helper()
	token, _, err := f.tokens.Issue(deliveryID, subject, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (f *relayFixture) dial(deliveryID, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/deliveries/" + deliveryID + "/location?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func (f *relayFixture) mustDial(t *testing.T, deliveryID, subject string, role auth.RelayRole) *websocket.Conn {
	t.Helper()
	conn, _, err := f.dial(deliveryID, f.token(t, deliveryID, subject, role))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var v T
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func TestRelayHandlerBroadcastsDriverLocation(t *testing.T) {
	f := newRelayFixture(t)
	driver := f.mustDial(t, "d1", "driver-1", auth.RelayRoleDriver)
	watcher := f.mustDial(t, "d1", "u1", auth.RelayRoleCustomer)
	other := f.mustDial(t, "d2", "u2", auth.RelayRoleCustomer)

	if size := f.hub.RoomSize("d1"); size != 2 {
		t.Fatalf("expected two members in room, got %d", size)
	}

	want := relay.Location{Latitude: 6.9271, Longitude: 79.8612}
	if err := driver.WriteJSON(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := readJSON[relay.Location](t, watcher); got != want {
		t.Fatalf("watcher got %+v", got)
	}
	if got := readJSON[relay.Location](t, driver); got != want {
		t.Fatalf("publisher must receive its own update, got %+v", got)
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("update leaked into another delivery room")
	}
}

func TestRelayHandlerRejectsBadTokens(t *testing.T) {
	f := newRelayFixture(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
		{"other room", f.token(t, "d2", "u1", auth.RelayRoleCustomer)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := f.dial("d1", tt.token)
			if err == nil {
				_ = conn.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %+v", resp)
			}
		})
	}
	if size := f.hub.RoomSize("d1"); size != 0 {
		t.Fatalf("rejected clients must not join, got %d", size)
	}
}

func TestRelayHandlerNotices(t *testing.T) {
	f := newRelayFixture(t)
	driver := f.mustDial(t, "d1", "driver-1", auth.RelayRoleDriver)
	watcher := f.mustDial(t, "d1", "u1", auth.RelayRoleCustomer)
	impostor := f.mustDial(t, "d1", "driver-2", auth.RelayRoleDriver)

	if err := watcher.WriteJSON(relay.Location{Latitude: 1, Longitude: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if notice := readJSON[dto.ErrorResponse](t, watcher); !strings.Contains(notice.Error, "driver") {
		t.Fatalf("unexpected notice %+v", notice)
	}

	if err := driver.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if notice := readJSON[dto.ErrorResponse](t, driver); notice.Error != "malformed location" {
		t.Fatalf("unexpected notice %+v", notice)
	}

	if err := driver.WriteJSON(relay.Location{Latitude: 95, Longitude: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if notice := readJSON[dto.ErrorResponse](t, driver); notice.Error != relay.ErrInvalidLocation.Error() {
		t.Fatalf("unexpected notice %+v", notice)
	}

	want := relay.Location{Latitude: 6.9, Longitude: 79.8}
	if err := driver.WriteJSON(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readJSON[relay.Location](t, watcher); got != want {
		t.Fatalf("unexpected update %+v", got)
	}

	if err := impostor.WriteJSON(relay.Location{Latitude: 0, Longitude: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var sawUpdate, sawNotice bool
	for i := 0; i < 2; i++ {
		frame := readJSON[map[string]any](t, impostor)
		switch {
		case frame["error"] == relay.ErrPublisherMismatch.Error():
			sawNotice = true
		case frame["latitude"] == want.Latitude && frame["longitude"] == want.Longitude:
			sawUpdate = true
		default:
			t.Fatalf("unexpected frame %v", frame)
		}
	}
	if !sawUpdate || !sawNotice {
		t.Fatalf("expected the room update and a publisher notice, update=%v notice=%v", sawUpdate, sawNotice)
	}
}

func TestRelayHandlerLeavesRoomOnDisconnect(t *testing.T) {
	f := newRelayFixture(t)
	f.mustDial(t, "d1", "driver-1", auth.RelayRoleDriver)
	watcher, _, err := f.dial("d1", f.token(t, "d1", "u1", auth.RelayRoleCustomer))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_ = watcher.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = watcher.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.RoomSize("d1") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected room to shrink, size %d", f.hub.RoomSize("d1"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayHandlerClosesOnHubShutdown(t *testing.T) {
	f := newRelayFixture(t)
	watcher := f.mustDial(t, "d1", "u1", auth.RelayRoleCustomer)

	f.hub.Close()

	_ = watcher.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := watcher.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}

	conn, resp, err := f.dial("d1", f.token(t, "d1", "u1", auth.RelayRoleCustomer))
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected closed hub to refuse clients")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
}

func TestRelayHandlerReassignmentRevokesOldDriver(t *testing.T) {
	f := newRelayFixture(t)
	f.access.assign("d1", "driver-1")
	oldDriver := f.mustDial(t, "d1", "driver-1", auth.RelayRoleDriver)
	watcher := f.mustDial(t, "d1", "u1", auth.RelayRoleCustomer)

	first := relay.Location{Latitude: 6.9, Longitude: 79.8}
	if err := oldDriver.WriteJSON(first); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readJSON[relay.Location](t, watcher); got != first {
		t.Fatalf("unexpected update %+v", got)
	}

	f.access.assign("d1", "driver-2")
	f.hub.Revoke("d1")

	_ = oldDriver.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := oldDriver.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("expected policy violation close, got %v", err)
		}
		break
	}

	conn, resp, err := f.dial("d1", f.token(t, "d1", "driver-1", auth.RelayRoleDriver))
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected stale driver token to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	newDriver := f.mustDial(t, "d1", "driver-2", auth.RelayRoleDriver)
	next := relay.Location{Latitude: 6.95, Longitude: 79.85}
	if err := newDriver.WriteJSON(next); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readJSON[relay.Location](t, watcher); got != next {
		t.Fatalf("reassigned driver must reach the room, got %+v", got)
	}
	if size := f.hub.RoomSize("d1"); size != 2 {
		t.Fatalf("expected watcher and new driver in room, got %d", size)
	}
}
