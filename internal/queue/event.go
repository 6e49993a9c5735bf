// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationQueueName is the durable queue notification events travel
// through. Delivery transports (email, Telegram) consume from it; the
// engine side only publishes.
const NotificationQueueName = "booking.notifications"

// NotificationEvent is published whenever the engine changes booking
// state on a user's behalf: creation, extension, reassignment after an
// outage, a conflict that needs their decision, or a split. It carries
// enough information for downstream consumers to deliver the message
// without querying the primary database.
type NotificationEvent struct {
	Event     string `json:"event"`
	UserID    uint64 `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}
