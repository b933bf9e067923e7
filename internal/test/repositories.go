package test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/domain/model"
	"github.com/polkiloo/fooddelivery/internal/domain/repository"
)

// CartRepositoryStub keeps cart lines in memory, merging on (owner, restaurant, item).
type CartRepositoryStub struct {
	MergeFn         func(context.Context, *model.CartLine) (*model.CartLine, error)
	DeleteByOwnerFn func(context.Context, string, string) (int64, error)
	ConsumeFn       func(context.Context, string, []model.CartLine) (int64, error)
	Err             error

	mu    sync.Mutex
	lines map[string]*model.CartLine
	next  int
}

// NewCartRepositoryStub constructs an empty cart store.
func NewCartRepositoryStub() *CartRepositoryStub {
	return &CartRepositoryStub{lines: make(map[string]*model.CartLine)}
}

// Put stores a line as is.
func (s *CartRepositoryStub) Put(line model.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	s.lines[line.ID] = &line
}

func (s *CartRepositoryStub) init() {
	if s.lines == nil {
		s.lines = make(map[string]*model.CartLine)
	}
}

// Merge adds quantity to the existing line of the triple or stores a new one.
func (s *CartRepositoryStub) Merge(ctx context.Context, line *model.CartLine) (*model.CartLine, error) {
	if s.MergeFn != nil {
		return s.MergeFn(ctx, line)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	for _, existing := range s.lines {
		if existing.OwnerID == line.OwnerID && existing.RestaurantID == line.RestaurantID && existing.CatalogItemID == line.CatalogItemID {
			if existing.Quantity+line.Quantity > model.MaxLineQuantity {
				return nil, fmt.Errorf("%w: cart line quantity out of range", domainErrors.ErrValidation)
			}
			existing.Quantity += line.Quantity
			existing.UnitPrice = line.UnitPrice
			existing.DisplayName = line.DisplayName
			existing.ImageRef = line.ImageRef
			existing.PrepTimeMinutes = line.PrepTimeMinutes
			existing.Recalculate()
			existing.UpdatedAt = time.Now()
			copied := *existing
			return &copied, nil
		}
	}
	s.next++
	stored := *line
	if stored.ID == "" {
		stored.ID = fmt.Sprintf("line-%d", s.next)
	}
	stored.Recalculate()
	stored.CreatedAt = time.Now().Add(time.Duration(s.next) * time.Millisecond)
	stored.UpdatedAt = stored.CreatedAt
	s.lines[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

// GetByID returns a copy of the stored line.
func (s *CartRepositoryStub) GetByID(ctx context.Context, id string) (*model.CartLine, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *line
	return &copied, nil
}

// UpdateQuantity replaces the quantity and recomputes the line total.
func (s *CartRepositoryStub) UpdateQuantity(ctx context.Context, id string, quantity int) (*model.CartLine, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	line.Quantity = quantity
	line.Recalculate()
	copied := *line
	return &copied, nil
}

// ListByOwner returns the owner's lines in insertion order.
func (s *CartRepositoryStub) ListByOwner(ctx context.Context, ownerID string) ([]model.CartLine, error) {
	return s.filter(func(l *model.CartLine) bool { return l.OwnerID == ownerID })
}

// ListByOwnerAndRestaurant returns the owner's lines of one restaurant.
func (s *CartRepositoryStub) ListByOwnerAndRestaurant(ctx context.Context, ownerID, restaurantID string) ([]model.CartLine, error) {
	return s.filter(func(l *model.CartLine) bool { return l.OwnerID == ownerID && l.RestaurantID == restaurantID })
}

func (s *CartRepositoryStub) filter(keep func(*model.CartLine) bool) ([]model.CartLine, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.CartLine
	for _, line := range s.lines {
		if keep(line) {
			result = append(result, *line)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// Delete removes a line.
func (s *CartRepositoryStub) Delete(ctx context.Context, id string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lines[id]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(s.lines, id)
	return nil
}

// DeleteByOwner removes the owner's lines, optionally of a single restaurant.
func (s *CartRepositoryStub) DeleteByOwner(ctx context.Context, ownerID, restaurantID string) (int64, error) {
	if s.DeleteByOwnerFn != nil {
		return s.DeleteByOwnerFn(ctx, ownerID, restaurantID)
	}
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, line := range s.lines {
		if line.OwnerID == ownerID && (restaurantID == "" || line.RestaurantID == restaurantID) {
			delete(s.lines, id)
			removed++
		}
	}
	return removed, nil
}

// Consume removes or reduces the snapshotted lines of the owner.
func (s *CartRepositoryStub) Consume(ctx context.Context, ownerID string, lines []model.CartLine) (int64, error) {
	if s.ConsumeFn != nil {
		return s.ConsumeFn(ctx, ownerID, lines)
	}
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, consumed := range lines {
		line, ok := s.lines[consumed.ID]
		if !ok || line.OwnerID != ownerID {
			continue
		}
		affected++
		if line.Quantity <= consumed.Quantity {
			delete(s.lines, consumed.ID)
			continue
		}
		line.Quantity -= consumed.Quantity
		line.Recalculate()
	}
	return affected, nil
}

// DistinctRestaurants returns sorted restaurant ids of the owner's lines.
func (s *CartRepositoryStub) DistinctRestaurants(ctx context.Context, ownerID string) ([]string, error) {
	lines, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, line := range lines {
		if _, ok := seen[line.RestaurantID]; !ok {
			seen[line.RestaurantID] = struct{}{}
			ids = append(ids, line.RestaurantID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// OrderUpdateCall records a guarded status write.
type OrderUpdateCall struct {
	OrderID string
	From    model.OrderStatus
	To      model.OrderStatus
}

// OrderRepositoryStub keeps orders in memory and records status writes.
type OrderRepositoryStub struct {
	CreateFn       func(context.Context, *model.Order) error
	UpdateStatusFn func(context.Context, string, model.OrderStatus, model.OrderStatus) error
	Err            error

	mu          sync.Mutex
	orders      map[string]*model.Order
	updateCalls []OrderUpdateCall
	next        int
}

// NewOrderRepositoryStub constructs an empty order store.
func NewOrderRepositoryStub() *OrderRepositoryStub {
	return &OrderRepositoryStub{orders: make(map[string]*model.Order)}
}

// Put stores an order as is.
func (s *OrderRepositoryStub) Put(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = make(map[string]*model.Order)
	}
	s.orders[order.ID] = &order
}

// UpdateCalls returns the status writes that reached the store.
func (s *OrderRepositoryStub) UpdateCalls() []OrderUpdateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OrderUpdateCall(nil), s.updateCalls...)
}

// Create stores the order, assigning an id when missing.
func (s *OrderRepositoryStub) Create(ctx context.Context, order *model.Order) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, order)
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = make(map[string]*model.Order)
	}
	s.next++
	if order.ID == "" {
		order.ID = fmt.Sprintf("order-%d", s.next)
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	stored.Items = append([]model.OrderItem(nil), order.Items...)
	s.orders[order.ID] = &stored
	return nil
}

// GetByID returns a copy of the stored order.
func (s *OrderRepositoryStub) GetByID(ctx context.Context, id string) (*model.Order, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *order
	copied.Items = append([]model.OrderItem(nil), order.Items...)
	return &copied, nil
}

// List returns every order.
func (s *OrderRepositoryStub) List(ctx context.Context) ([]model.Order, error) {
	return s.filter(func(*model.Order) bool { return true })
}

// ListByStatus returns orders in the status.
func (s *OrderRepositoryStub) ListByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return s.filter(func(o *model.Order) bool { return o.Status == status })
}

// ListExcludingStatus returns orders not in the status.
func (s *OrderRepositoryStub) ListExcludingStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	return s.filter(func(o *model.Order) bool { return o.Status != status })
}

func (s *OrderRepositoryStub) filter(keep func(*model.Order) bool) ([]model.Order, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Order
	for _, order := range s.orders {
		if keep(order) {
			result = append(result, *order)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpdateStatus performs a guarded status write.
func (s *OrderRepositoryStub) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) error {
	if s.UpdateStatusFn != nil {
		if err := s.UpdateStatusFn(ctx, id, from, to); err != nil {
			return err
		}
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if order.Status != from {
		return domainErrors.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	s.updateCalls = append(s.updateCalls, OrderUpdateCall{OrderID: id, From: from, To: to})
	return nil
}

// Delete removes the order.
func (s *OrderRepositoryStub) Delete(ctx context.Context, id string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return domainErrors.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// DriverRepositoryStub keeps driver profiles in memory and serialises ledger credits.
type DriverRepositoryStub struct {
	Err error

	mu       sync.Mutex
	profiles map[string]*model.DriverProfile
}

// NewDriverRepositoryStub constructs a store with the given profiles.
func NewDriverRepositoryStub(profiles ...model.DriverProfile) *DriverRepositoryStub {
	s := &DriverRepositoryStub{profiles: make(map[string]*model.DriverProfile)}
	for _, p := range profiles {
		p := p
		s.profiles[p.ID] = &p
	}
	return s
}

// GetByID returns a copy of the profile.
func (s *DriverRepositoryStub) GetByID(ctx context.Context, id string) (*model.DriverProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

// GetByUserID returns the profile owned by the user.
func (s *DriverRepositoryStub) GetByUserID(ctx context.Context, userID string) (*model.DriverProfile, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.UserID == userID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// Credit increments the ledger of a driver. It reports whether the profile exists.
func (s *DriverRepositoryStub) Credit(driverID string, amount float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[driverID]
	if !ok {
		return false
	}
	p.TotalDeliveries++
	p.TotalEarnings += amount
	return true
}

// DeliveryRepositoryStub keeps deliveries in memory; completions credit Drivers.
type DeliveryRepositoryStub struct {
	Drivers        *DriverRepositoryStub
	CompleteFn     func(context.Context, model.DeliveryCompletion) (bool, error)
	ListUnsyncedFn func(context.Context, int) ([]model.DeliverySync, error)
	Err            error

	mu         sync.Mutex
	deliveries map[string]*model.DeliveryOrder
	next       int
}

// NewDeliveryRepositoryStub constructs an empty delivery store crediting drivers.
func NewDeliveryRepositoryStub(drivers *DriverRepositoryStub) *DeliveryRepositoryStub {
	return &DeliveryRepositoryStub{Drivers: drivers, deliveries: make(map[string]*model.DeliveryOrder)}
}

// Put stores a delivery as is.
func (s *DeliveryRepositoryStub) Put(d model.DeliveryOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		s.deliveries = make(map[string]*model.DeliveryOrder)
	}
	s.deliveries[d.ID] = &d
}

// Create stores the delivery unless the order already has one.
func (s *DeliveryRepositoryStub) Create(ctx context.Context, d *model.DeliveryOrder) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		s.deliveries = make(map[string]*model.DeliveryOrder)
	}
	for _, existing := range s.deliveries {
		if existing.OrderID == d.OrderID {
			return domainErrors.ErrConflict
		}
	}
	s.next++
	if d.ID == "" {
		d.ID = fmt.Sprintf("delivery-%d", s.next)
	}
	stored := *d
	s.deliveries[d.ID] = &stored
	return nil
}

// Reassign hands a cancelled delivery of the order to a new driver.
func (s *DeliveryRepositoryStub) Reassign(ctx context.Context, d *model.DeliveryOrder) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.deliveries {
		if existing.OrderID != d.OrderID {
			continue
		}
		if existing.Status != model.DeliveryStatusCancelled {
			return domainErrors.ErrConflict
		}
		d.ID = id
		d.PickedUpAt, d.DeliveredAt, d.CanceledAt, d.ActualTime = nil, nil, nil, nil
		stored := *d
		s.deliveries[id] = &stored
		return nil
	}
	return domainErrors.ErrConflict
}

// GetByID returns a copy of the delivery.
func (s *DeliveryRepositoryStub) GetByID(ctx context.Context, id string) (*model.DeliveryOrder, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

// GetByOrderID returns the delivery of the order.
func (s *DeliveryRepositoryStub) GetByOrderID(ctx context.Context, orderID string) (*model.DeliveryOrder, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.OrderID == orderID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

// ListByDriver returns the driver's deliveries, most recently delivered first.
func (s *DeliveryRepositoryStub) ListByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	list, err := s.filter(func(d *model.DeliveryOrder) bool { return d.DriverID == driverID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].DeliveredAt, list[j].DeliveredAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return list, nil
}

// ListActiveByDriver returns the driver's deliveries in progress.
func (s *DeliveryRepositoryStub) ListActiveByDriver(ctx context.Context, driverID string) ([]model.DeliveryOrder, error) {
	return s.filter(func(d *model.DeliveryOrder) bool { return d.DriverID == driverID && !d.Status.Terminal() })
}

func (s *DeliveryRepositoryStub) filter(keep func(*model.DeliveryOrder) bool) ([]model.DeliveryOrder, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.DeliveryOrder
	for _, d := range s.deliveries {
		if keep(d) {
			result = append(result, *d)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Advance performs a guarded status write.
func (s *DeliveryRepositoryStub) Advance(ctx context.Context, id string, from, to model.DeliveryStatus, pickedUpAt *time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if d.Status != from {
		return domainErrors.ErrConflict
	}
	d.Status = to
	if pickedUpAt != nil {
		d.PickedUpAt = pickedUpAt
	}
	return nil
}

// Cancel performs a guarded cancellation and detaches the driver.
func (s *DeliveryRepositoryStub) Cancel(ctx context.Context, id string, from model.DeliveryStatus, canceledAt time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if d.Status != from {
		return domainErrors.ErrConflict
	}
	d.Status = model.DeliveryStatusCancelled
	d.CanceledAt = &canceledAt
	d.DriverID = ""
	return nil
}

// Complete marks the delivery delivered and credits the driver ledger.
func (s *DeliveryRepositoryStub) Complete(ctx context.Context, c model.DeliveryCompletion) (bool, error) {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, c)
	}
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	d, ok := s.deliveries[c.DeliveryID]
	if !ok || d.Status.Terminal() || d.DriverID != c.DriverID || d.AcceptedAt == nil || !d.AcceptedAt.Equal(c.AcceptedAt) {
		s.mu.Unlock()
		return false, domainErrors.ErrConflict
	}
	deliveredAt, actual := c.DeliveredAt, c.ActualTime
	d.Status = model.DeliveryStatusDelivered
	d.DeliveredAt = &deliveredAt
	d.ActualTime = &actual
	d.CustomerSignature = c.CustomerSignature
	d.ProofPhotos = append([]string(nil), c.ProofPhotos...)
	s.mu.Unlock()

	if s.Drivers == nil || c.DriverID == "" {
		return false, nil
	}
	return s.Drivers.Credit(c.DriverID, c.DeliveryCharge), nil
}

// ListUnsynced returns configured entries.
func (s *DeliveryRepositoryStub) ListUnsynced(ctx context.Context, limit int) ([]model.DeliverySync, error) {
	if s.ListUnsyncedFn != nil {
		return s.ListUnsyncedFn(ctx, limit)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, nil
}

var (
	_ repository.CartRepository     = (*CartRepositoryStub)(nil)
	_ repository.OrderRepository    = (*OrderRepositoryStub)(nil)
	_ repository.DeliveryRepository = (*DeliveryRepositoryStub)(nil)
	_ repository.DriverRepository   = (*DriverRepositoryStub)(nil)
)
