package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Carts() CartRepository
	Orders() OrderRepository
	Deliveries() DeliveryRepository
	Drivers() DriverRepository
}
