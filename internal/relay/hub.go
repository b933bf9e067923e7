// Package relay fans out live driver locations to everyone watching a delivery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/fooddelivery/internal/domain/model"
)

const (
	shardCount        = 32
	roomQueueSize     = 64
	defaultSubsBuffer = 16
	resubscribeDelay  = time.Second
)

var (
	// ErrPublisherMismatch is returned when a second publisher writes into a claimed room.
	ErrPublisherMismatch = errors.New("room is claimed by another publisher")
	// ErrPublisherRevoked is returned to a publisher whose assignment was withdrawn.
	ErrPublisherRevoked = errors.New("publisher was revoked from the room")
	// ErrInvalidLocation is returned for coordinates out of range.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrInvalidRoom is returned for an empty delivery id.
	ErrInvalidRoom = errors.New("invalid relay room")
	// ErrClosed is returned after the hub has been shut down.
	ErrClosed = errors.New("relay hub closed")
)

// Location is a single position update.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the location holds finite in-range coordinates.
func (l Location) Valid() bool {
	return model.Coordinates{Lat: l.Latitude, Lng: l.Longitude}.Valid()
}

// Options tune hub behaviour.
type Options struct {
	SubscriberBuffer int
	SinglePublisher  bool
}

// Hub owns the rooms of the relay. Rooms are created on first join and
// dropped when the last subscriber leaves.
type Hub struct {
	shards  [shardCount]*shard
	opts    Options
	broker  Broker
	logger  *slog.Logger
	nextID  atomic.Uint64
	closed  atomic.Bool
	rooms   sync.WaitGroup
	workers sync.WaitGroup
	cancel  context.CancelFunc
}

type shard struct {
	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	id    string
	queue chan Location
	done  chan struct{}

	mu          sync.Mutex
	subscribers map[uint64]*Subscription
	publisher   string
	revoked     map[string]struct{}
}

// Member identifies who joins a room. Publisher marks the assigned driver's
// connection.
type Member struct {
	Subject   string
	Publisher bool
}

// Subscription is one member of a room.
type Subscription struct {
	id         uint64
	deliveryID string
	member     Member
	updates    chan Location
	hub        *Hub
	closed     bool
	evicted    atomic.Bool
	revoked    atomic.Bool
}

// NewHub constructs a hub. broker may be nil for a single instance relay.
func NewHub(opts Options, broker Broker, logger *slog.Logger) *Hub {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubsBuffer
	}
	h := &Hub{opts: opts, broker: broker, logger: logger}
	for i := range h.shards {
		h.shards[i] = &shard{rooms: make(map[string]*room)}
	}
	return h
}

// Start begins consuming the broker feed, if any.
func (h *Hub) Start(ctx context.Context) {
	if h.broker == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.workers.Add(1)
	go func() {
		defer h.workers.Done()
		for {
			err := h.broker.Subscribe(ctx, h.deliver)
			if ctx.Err() != nil {
				return
			}
			h.logger.Error("relay broker subscription stopped", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()
}

// Join adds a subscriber to the delivery's room, creating it if needed.
func (h *Hub) Join(deliveryID string, m Member) (*Subscription, error) {
	if deliveryID == "" {
		return nil, fmt.Errorf("%w: empty delivery id", ErrInvalidRoom)
	}
	if h.closed.Load() {
		return nil, ErrClosed
	}

	s := h.shardFor(deliveryID)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[deliveryID]
	if !ok {
		r = &room{
			id:          deliveryID,
			queue:       make(chan Location, roomQueueSize),
			done:        make(chan struct{}),
			subscribers: make(map[uint64]*Subscription),
			revoked:     make(map[string]struct{}),
		}
		s.rooms[deliveryID] = r
		h.rooms.Add(1)
		go h.run(r)
	}

	sub := &Subscription{
		id:         h.nextID.Add(1),
		deliveryID: deliveryID,
		member:     m,
		updates:    make(chan Location, h.opts.SubscriberBuffer),
		hub:        h,
	}
	r.mu.Lock()
	r.subscribers[sub.id] = sub
	r.mu.Unlock()
	return sub, nil
}

// Publish broadcasts a location to every member of the room, the publisher
// included. Updates for rooms without members are dropped.
func (h *Hub) Publish(ctx context.Context, deliveryID, publisherID string, loc Location) error {
	if !loc.Valid() {
		return ErrInvalidLocation
	}
	if h.closed.Load() {
		return ErrClosed
	}

	if r := h.lookup(deliveryID); r != nil {
		if err := h.claim(r, publisherID); err != nil {
			return err
		}
	}

	if h.broker != nil {
		err := h.broker.Publish(ctx, deliveryID, loc)
		if err == nil {
			return nil
		}
		h.logger.Warn("relay broker publish failed, delivering locally",
			slog.String("delivery_id", deliveryID),
			slog.Any("error", err),
		)
	}
	return h.dispatch(ctx, deliveryID, loc)
}

// Revoke withdraws the room from its current publisher: the claim is
// dropped, the claimant and every publisher connection are barred from
// publishing again, and those connections are closed. Listeners stay.
func (h *Hub) Revoke(deliveryID string) {
	s := h.shardFor(deliveryID)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[deliveryID]
	if !ok {
		return
	}
	r.mu.Lock()
	if r.publisher != "" {
		r.revoked[r.publisher] = struct{}{}
		r.publisher = ""
	}
	for id, sub := range r.subscribers {
		if !sub.member.Publisher {
			continue
		}
		if sub.member.Subject != "" {
			r.revoked[sub.member.Subject] = struct{}{}
		}
		sub.revoked.Store(true)
		delete(r.subscribers, id)
		sub.close()
	}
	empty := len(r.subscribers) == 0
	r.mu.Unlock()

	if empty {
		delete(s.rooms, deliveryID)
		close(r.done)
	}
}

// RoomSize returns the number of subscribers in the room.
func (h *Hub) RoomSize(deliveryID string) int {
	r := h.lookup(deliveryID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// Close tears down every room and stops the broker feed.
func (h *Hub) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.workers.Wait()

	for _, s := range h.shards {
		s.mu.Lock()
		for id, r := range s.rooms {
			r.mu.Lock()
			for subID, sub := range r.subscribers {
				delete(r.subscribers, subID)
				sub.close()
			}
			r.mu.Unlock()
			close(r.done)
			delete(s.rooms, id)
		}
		s.mu.Unlock()
	}
	h.rooms.Wait()
}

func (h *Hub) deliver(deliveryID string, loc Location) {
	if err := h.dispatch(context.Background(), deliveryID, loc); err != nil {
		h.logger.Debug("relay update dropped", slog.String("delivery_id", deliveryID), slog.Any("error", err))
	}
}

func (h *Hub) dispatch(ctx context.Context, deliveryID string, loc Location) error {
	r := h.lookup(deliveryID)
	if r == nil {
		return nil
	}
	select {
	case r.queue <- loc:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) claim(r *room, publisherID string) error {
	if !h.opts.SinglePublisher || publisherID == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, revoked := r.revoked[publisherID]; revoked {
		return ErrPublisherRevoked
	}
	switch r.publisher {
	case "":
		r.publisher = publisherID
	case publisherID:
	default:
		return ErrPublisherMismatch
	}
	return nil
}

// run is the single writer of the room: updates leave in the order they were queued.
func (h *Hub) run(r *room) {
	defer h.rooms.Done()
	for {
		select {
		case <-r.done:
			return
		case loc := <-r.queue:
			for _, slow := range r.fanOut(loc) {
				h.logger.Warn("relay subscriber evicted",
					slog.String("delivery_id", r.id),
					slog.Uint64("subscription_id", slow.id),
				)
				slow.evicted.Store(true)
				h.leave(slow)
			}
		}
	}
}

func (r *room) fanOut(loc Location) []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var slow []*Subscription
	for _, sub := range r.subscribers {
		select {
		case sub.updates <- loc:
		default:
			slow = append(slow, sub)
		}
	}
	return slow
}

func (h *Hub) leave(sub *Subscription) {
	s := h.shardFor(sub.deliveryID)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[sub.deliveryID]
	if !ok {
		return
	}
	r.mu.Lock()
	if _, member := r.subscribers[sub.id]; member {
		delete(r.subscribers, sub.id)
		sub.close()
	}
	empty := len(r.subscribers) == 0
	r.mu.Unlock()

	if empty {
		delete(s.rooms, sub.deliveryID)
		close(r.done)
	}
}

func (h *Hub) lookup(deliveryID string) *room {
	s := h.shardFor(deliveryID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[deliveryID]
}

func (h *Hub) shardFor(deliveryID string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(deliveryID))
	return h.shards[f.Sum32()%shardCount]
}

// Updates streams locations of the room. The channel is closed when the
// subscription ends.
func (s *Subscription) Updates() <-chan Location {
	return s.updates
}

// DeliveryID returns the room the subscription belongs to.
func (s *Subscription) DeliveryID() string {
	return s.deliveryID
}

// Evicted reports whether the hub dropped the subscriber for falling behind.
func (s *Subscription) Evicted() bool {
	return s.evicted.Load()
}

// Revoked reports whether the subscription was closed by Revoke.
func (s *Subscription) Revoked() bool {
	return s.revoked.Load()
}

// Publish sends loc into the subscription's room as its member. A revoked
// subscription can no longer publish.
func (s *Subscription) Publish(ctx context.Context, loc Location) error {
	if s.revoked.Load() {
		return ErrPublisherRevoked
	}
	return s.hub.Publish(ctx, s.deliveryID, s.member.Subject, loc)
}

// Close leaves the room. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.leave(s)
}

// close must be called with the room lock held.
func (s *Subscription) close() {
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}
