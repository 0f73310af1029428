package watcher

// EventType represents the kind of change to a book directory.
type EventType int

const (
	// EventAdded is emitted when a new book directory appears (after settling).
	EventAdded EventType = iota
	// EventModified is emitted when files inside a known book change (after settling).
	EventModified
	// EventRemoved is emitted when a book directory disappears.
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

// Event is a settled change to one book directory.
type Event struct {
	Type EventType
	// Book is the directory name under the books root.
	Book string
	// Path is the book directory.
	Path string
}
