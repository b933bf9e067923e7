package model

// NotificationEvent names a status-relevant event sent to a recipient.
type NotificationEvent string

const (
	NotificationOrderPlaced       NotificationEvent = "order_placed"
	NotificationOrderStatus       NotificationEvent = "order_status_changed"
	NotificationDeliveryAccepted  NotificationEvent = "delivery_accepted"
	NotificationDeliveryStatus    NotificationEvent = "delivery_status_changed"
	NotificationDeliveryCompleted NotificationEvent = "delivery_completed"
	NotificationDeliveryCancelled NotificationEvent = "delivery_cancelled"
)

// Notification is a fire-and-forget message to the notification service.
type Notification struct {
	RecipientID string
	Event       NotificationEvent
	OrderID     string
	DeliveryID  string
	Status      string
}
