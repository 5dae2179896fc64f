package watchdir

import "strings"

// EventType defines an operation that took place on the watch directory
type EventType uint8

const (
	// FileAdded is reported for entries found by the initial scan of a directory.
	FileAdded = EventType(1 << 0)
	// FileCreated is reported for entries that appeared after the initial scan.
	FileCreated = EventType(1 << 1)
	// FileChanged is reported when the size or modification time of an entry changed.
	FileChanged = EventType(1 << 2)
	// FileRemoved is reported when an entry no longer exists.
	FileRemoved = EventType(1 << 3)
	// WatchError is reported for unrecoverable conditions of a subtree.
	WatchError = EventType(1 << 4)
	AllEvents  = 0b11111111
)

var eventTypeNames = []struct {
	typ  EventType
	name string
}{
	{FileAdded, "add"},
	{FileCreated, "create"},
	{FileChanged, "change"},
	{FileRemoved, "remove"},
	{WatchError, "error"},
}

func (t EventType) String() string {
	var names []string
	for _, n := range eventTypeNames {
		if t&n.typ != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// isDiscovery reports whether t is one of the two labels used for newly seen entries.
func (t EventType) isDiscovery() bool {
	return t == FileAdded || t == FileCreated
}
