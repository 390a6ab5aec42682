package watcher

import "time"

// EventType is the kind of change observed on a file.
type EventType int

const (
	// EventAdded is emitted once a new file has settled.
	EventAdded EventType = iota
	// EventModified is emitted once a rewritten file has settled.
	EventModified
	// EventRemoved is emitted when a file is deleted or moved away.
	EventRemoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a settled file change.
type Event struct {
	Type EventType
	Path string

	// Size and ModTime are zero for removals.
	Size    int64
	ModTime time.Time
}
