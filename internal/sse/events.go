// Package sse implements Server-Sent Events for live album activity.
package sse

import (
	"time"

	"github.com/sharedalbum/album-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventNotificationCreated carries a new news feed entry.
	EventNotificationCreated EventType = "notification.created"
	// EventThumbnailCreated is sent when a photo finished processing.
	EventThumbnailCreated EventType = "thumbnail.created"
	// EventThumbnailDeleted is sent when a photo and its thumbnail were removed.
	EventThumbnailDeleted EventType = "thumbnail.deleted"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is a message delivered to SSE clients. Data is serialised as a JSON object.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ThumbnailDeletedEventData identifies a removed thumbnail.
type ThumbnailDeletedEventData struct {
	ThumbnailKey  string `json:"thumbnail_key"`
	ThumbnailName string `json:"thumbnail_name"`
}

// NewNotificationCreatedEvent wraps n.
func NewNotificationCreatedEvent(n *domain.Notification) Event {
	return Event{
		Type:      EventNotificationCreated,
		Data:      n,
		Timestamp: time.Now(),
	}
}

// NewThumbnailCreatedEvent wraps ref.
func NewThumbnailCreatedEvent(ref *domain.ThumbnailReference) Event {
	return Event{
		Type:      EventThumbnailCreated,
		Data:      ref,
		Timestamp: time.Now(),
	}
}

// NewThumbnailDeletedEvent announces the removal of key.
func NewThumbnailDeletedEvent(key, name string) Event {
	return Event{
		Type:      EventThumbnailDeleted,
		Data:      ThumbnailDeletedEventData{ThumbnailKey: key, ThumbnailName: name},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      map[string]any{},
		Timestamp: time.Now(),
	}
}
