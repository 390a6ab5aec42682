package domain

import "time"

// Notification is a news feed entry. Notifications are immutable and unique by
// (Message, Generation), which is how repeat deliveries are recognised.
type Notification struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	Generation string    `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
}

// DedupKey is the identity used to detect repeat deliveries.
func (n *Notification) DedupKey() string {
	return NotificationDedupKey(n.Message, n.Generation)
}

// NotificationDedupKey joins message and generation with a separator that cannot
// occur in a decimal generation.
func NotificationDedupKey(message, generation string) string {
	return generation + "|" + message
}
