package domain

import "time"

// EventType is the kind of change a storage notification reports.
type EventType string

// Event types published by the object storage service.
const (
	EventObjectFinalize       EventType = "OBJECT_FINALIZE"
	EventObjectDelete         EventType = "OBJECT_DELETE"
	EventObjectArchive        EventType = "OBJECT_ARCHIVE"
	EventObjectMetadataUpdate EventType = "OBJECT_METADATA_UPDATE"
)

// IsRemoval reports whether the event takes a photo generation out of the album.
func (t EventType) IsRemoval() bool {
	return t == EventObjectDelete || t == EventObjectArchive
}

// StorageEvent is a decoded storage change notification.
type StorageEvent struct {
	Type       EventType `json:"type"`
	ObjectID   string    `json:"object_id"`
	Bucket     string    `json:"bucket"`
	Generation string    `json:"generation"`

	// Set when a finalize replaced an existing live object.
	OverwroteGeneration string `json:"overwrote_generation,omitempty"`
	// Set when a delete or archive was caused by a newer upload.
	OverwrittenByGeneration string `json:"overwritten_by_generation,omitempty"`

	MessageID   string    `json:"message_id"`
	PublishTime time.Time `json:"publish_time"`
}

// Message returns the activity message describing the event. An empty message
// means the event does not concern the album and is ignored.
func (e StorageEvent) Message() string {
	return NotificationMessage(e.ObjectID, e.Type, e.OverwroteGeneration, e.OverwrittenByGeneration)
}

// NotificationMessage builds the news feed line for an event on photoName.
func NotificationMessage(photoName string, eventType EventType, overwroteGeneration, overwrittenByGeneration string) string {
	switch eventType {
	case EventObjectFinalize:
		if overwroteGeneration != "" {
			return photoName + " was uploaded and overwrote an older version of itself."
		}
		return photoName + " was uploaded."
	case EventObjectArchive:
		if overwrittenByGeneration != "" {
			return photoName + " was overwritten by a newer version."
		}
		return photoName + " was archived."
	case EventObjectDelete:
		if overwrittenByGeneration != "" {
			return photoName + " was overwritten by a newer version."
		}
		return photoName + " was deleted."
	default:
		return ""
	}
}
