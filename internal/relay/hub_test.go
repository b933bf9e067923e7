package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func receive(t *testing.T, sub *Subscription) Location {
	t.Helper()
	select {
	case loc, ok := <-sub.Updates():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return loc
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for location")
	}
	return Location{}
}

func expectSilence(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case loc, ok := <-sub.Updates():
		if ok {
			t.Fatalf("unexpected location %+v", loc)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription was not closed")
		}
	}
}

func mustJoin(t *testing.T, h *Hub, deliveryID string) *Subscription {
	t.Helper()
	sub, err := h.Join(deliveryID, Member{Subject: "watcher"})
	if err != nil {
		t.Fatalf("join %s: %v", deliveryID, err)
	}
	return sub
}

func TestHubBroadcastsWithinRoomOnly(t *testing.T) {
	h := NewHub(Options{SinglePublisher: true}, nil, discardLogger())
	defer h.Close()

	driver := mustJoin(t, h, "d1")
	customer := mustJoin(t, h, "d1")
	other := mustJoin(t, h, "d2")

	loc := Location{Latitude: 6.9271, Longitude: 79.8612}
	if err := h.Publish(context.Background(), "d1", "driver-1", loc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := receive(t, customer); got != loc {
		t.Fatalf("customer got %+v", got)
	}
	if got := receive(t, driver); got != loc {
		t.Fatalf("publisher must receive its own update, got %+v", got)
	}
	expectSilence(t, other)
}

func TestHubPreservesOrderPerRoom(t *testing.T) {
	h := NewHub(Options{SubscriberBuffer: 32}, nil, discardLogger())
	defer h.Close()
	sub := mustJoin(t, h, "d1")

	for i := 0; i < 20; i++ {
		if err := h.Publish(context.Background(), "d1", "driver-1", Location{Latitude: float64(i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 0; i < 20; i++ {
		if got := receive(t, sub); got.Latitude != float64(i) {
			t.Fatalf("expected update %d, got %+v", i, got)
		}
	}
}

func TestHubSinglePublisher(t *testing.T) {
	h := NewHub(Options{SinglePublisher: true}, nil, discardLogger())
	defer h.Close()
	sub := mustJoin(t, h, "d1")
	ctx := context.Background()

	if err := h.Publish(ctx, "d1", "driver-1", Location{Latitude: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Publish(ctx, "d1", "driver-2", Location{Latitude: 2}); !errors.Is(err, ErrPublisherMismatch) {
		t.Fatalf("expected publisher mismatch, got %v", err)
	}

	h.Revoke("d1")
	if err := h.Publish(ctx, "d1", "driver-1", Location{Latitude: 3}); !errors.Is(err, ErrPublisherRevoked) {
		t.Fatalf("revoked publisher must not reclaim the room, got %v", err)
	}
	if err := h.Publish(ctx, "d1", "driver-2", Location{Latitude: 4}); err != nil {
		t.Fatalf("revoked room must accept a new publisher: %v", err)
	}
	if err := h.Publish(ctx, "d1", "driver-1", Location{Latitude: 5}); !errors.Is(err, ErrPublisherRevoked) {
		t.Fatalf("expected revoked publisher to stay out, got %v", err)
	}
	if got := receive(t, sub); got.Latitude != 1 {
		t.Fatalf("unexpected first update %+v", got)
	}
	if got := receive(t, sub); got.Latitude != 4 {
		t.Fatalf("unexpected second update %+v", got)
	}
}

func TestHubMultiplePublishersWhenUnrestricted(t *testing.T) {
	h := NewHub(Options{}, nil, discardLogger())
	defer h.Close()
	mustJoin(t, h, "d1")

	for _, publisher := range []string{"driver-1", "driver-2"} {
		if err := h.Publish(context.Background(), "d1", publisher, Location{Latitude: 1}); err != nil {
			t.Fatalf("unexpected error for %s: %v", publisher, err)
		}
	}
}

func TestHubRejectsInvalidInput(t *testing.T) {
	h := NewHub(Options{}, nil, discardLogger())
	defer h.Close()

	if err := h.Publish(context.Background(), "d1", "p", Location{Latitude: 91}); !errors.Is(err, ErrInvalidLocation) {
		t.Fatalf("expected invalid location, got %v", err)
	}
	if _, err := h.Join("", Member{}); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("expected error for empty room, got %v", err)
	}
	if err := h.Publish(context.Background(), "empty-room", "p", Location{}); err != nil {
		t.Fatalf("publishing to an empty room must be dropped silently: %v", err)
	}
}

func TestHubReclaimsEmptyRooms(t *testing.T) {
	h := NewHub(Options{SinglePublisher: true}, nil, discardLogger())
	defer h.Close()

	first := mustJoin(t, h, "d1")
	second := mustJoin(t, h, "d1")
	if size := h.RoomSize("d1"); size != 2 {
		t.Fatalf("expected 2 members, got %d", size)
	}
	if err := h.Publish(context.Background(), "d1", "driver-1", Location{Latitude: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Close()
	first.Close()
	second.Close()
	if size := h.RoomSize("d1"); size != 0 {
		t.Fatalf("expected room to be reclaimed, got %d members", size)
	}
	expectClosed(t, first)

	fresh := mustJoin(t, h, "d1")
	if err := h.Publish(context.Background(), "d1", "driver-2", Location{Latitude: 2}); err != nil {
		t.Fatalf("a new room must not keep the old claim: %v", err)
	}
	if got := receive(t, fresh); got.Latitude != 2 {
		t.Fatalf("unexpected update %+v", got)
	}
}

func TestHubEvictsSlowSubscriber(t *testing.T) {
	h := NewHub(Options{SubscriberBuffer: 1}, nil, discardLogger())
	defer h.Close()
	slow := mustJoin(t, h, "d1")

	for i := 0; i < 3; i++ {
		if err := h.Publish(context.Background(), "d1", "driver-1", Location{Latitude: float64(i)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expectClosed(t, slow)
	if !slow.Evicted() {
		t.Fatal("expected subscriber to be marked evicted")
	}
	if size := h.RoomSize("d1"); size != 0 {
		t.Fatalf("expected evicted subscriber to leave, got %d members", size)
	}
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(Options{}, nil, discardLogger())
	sub := mustJoin(t, h, "d1")

	h.Close()
	h.Close()
	expectClosed(t, sub)
	sub.Close()

	if _, err := h.Join("d1", Member{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed hub, got %v", err)
	}
	if err := h.Publish(context.Background(), "d1", "p", Location{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed hub, got %v", err)
	}
}

func TestHubConcurrentRoomsStayIsolated(t *testing.T) {
	h := NewHub(Options{SubscriberBuffer: 64, SinglePublisher: true}, nil, discardLogger())
	defer h.Close()

	const rooms, updates = 20, 30
	subs := make([]*Subscription, rooms)
	for i := range subs {
		subs[i] = mustJoin(t, h, fmt.Sprintf("d%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(room int) {
			defer wg.Done()
			id := fmt.Sprintf("d%d", room)
			for n := 0; n < updates; n++ {
				loc := Location{Latitude: float64(room), Longitude: float64(n)}
				if err := h.Publish(context.Background(), id, "driver-"+id, loc); err != nil {
					t.Errorf("publish %s: %v", id, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i, sub := range subs {
		for n := 0; n < updates; n++ {
			got := receive(t, sub)
			if got.Latitude != float64(i) || got.Longitude != float64(n) {
				t.Fatalf("room d%d got foreign or reordered update %+v at %d", i, got, n)
			}
		}
	}
}

type memoryBroker struct {
	mu         sync.Mutex
	deliver    []func(string, Location)
	publishErr error
	closed     bool
}

func (b *memoryBroker) Publish(ctx context.Context, deliveryID string, loc Location) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	for _, fn := range b.deliver {
		fn(deliveryID, loc)
	}
	return nil
}

func (b *memoryBroker) Subscribe(ctx context.Context, deliver func(string, Location)) error {
	b.mu.Lock()
	b.deliver = append(b.deliver, deliver)
	b.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (b *memoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *memoryBroker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deliver)
}

func TestHubBridgesInstancesThroughBroker(t *testing.T) {
	broker := &memoryBroker{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewHub(Options{SinglePublisher: true}, broker, discardLogger())
	b := NewHub(Options{SinglePublisher: true}, broker, discardLogger())
	a.Start(ctx)
	b.Start(ctx)
	defer a.Close()
	defer b.Close()

	deadline := time.Now().Add(waitTimeout)
	for broker.subscribers() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("hubs did not subscribe to the broker")
		}
		time.Sleep(5 * time.Millisecond)
	}

	local := mustJoin(t, a, "d1")
	remote := mustJoin(t, b, "d1")

	loc := Location{Latitude: 7, Longitude: 80}
	if err := a.Publish(ctx, "d1", "driver-1", loc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := receive(t, remote); got != loc {
		t.Fatalf("remote instance got %+v", got)
	}
	if got := receive(t, local); got != loc {
		t.Fatalf("local instance got %+v", got)
	}
	expectSilence(t, local)
}

func TestHubFallsBackToLocalDeliveryWhenBrokerFails(t *testing.T) {
	broker := &memoryBroker{publishErr: errors.New("connection refused")}
	h := NewHub(Options{}, broker, discardLogger())
	defer h.Close()
	sub := mustJoin(t, h, "d1")

	if err := h.Publish(context.Background(), "d1", "driver-1", Location{Latitude: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := receive(t, sub); got.Latitude != 5 {
		t.Fatalf("unexpected update %+v", got)
	}
}

func TestHubRevokeClosesPublisherConnections(t *testing.T) {
	h := NewHub(Options{SinglePublisher: true}, nil, discardLogger())
	defer h.Close()
	ctx := context.Background()

	watcher := mustJoin(t, h, "d1")
	oldDriver, err := h.Join("d1", Member{Subject: "driver-1", Publisher: true})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := oldDriver.Publish(ctx, Location{Latitude: 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := receive(t, watcher); got.Latitude != 1 {
		t.Fatalf("unexpected update %+v", got)
	}

	h.Revoke("d1")

	for range oldDriver.Updates() {
	}
	if !oldDriver.Revoked() {
		t.Fatal("expected publisher subscription to be revoked")
	}
	if err := oldDriver.Publish(ctx, Location{Latitude: 2}); !errors.Is(err, ErrPublisherRevoked) {
		t.Fatalf("expected revoked error, got %v", err)
	}
	if size := h.RoomSize("d1"); size != 1 {
		t.Fatalf("listeners must stay in the room, got %d members", size)
	}

	newDriver, err := h.Join("d1", Member{Subject: "driver-2", Publisher: true})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer newDriver.Close()
	if err := newDriver.Publish(ctx, Location{Latitude: 3}); err != nil {
		t.Fatalf("reassigned driver must publish: %v", err)
	}
	if got := receive(t, watcher); got.Latitude != 3 {
		t.Fatalf("unexpected update %+v", got)
	}
	if err := h.Publish(ctx, "d1", "driver-1", Location{Latitude: 4}); !errors.Is(err, ErrPublisherRevoked) {
		t.Fatalf("expected revoked old driver, got %v", err)
	}
}

func TestHubRevokeUnknownRoomIsNoop(t *testing.T) {
	h := NewHub(Options{SinglePublisher: true}, nil, discardLogger())
	defer h.Close()
	h.Revoke("missing")
	if size := h.RoomSize("missing"); size != 0 {
		t.Fatalf("unexpected room of %d members", size)
	}
}
