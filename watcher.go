package watchdir

import (
	"fmt"
	"io/fs"
)

// Event represents a file event
type Event struct {
	Type EventType

	// File is the slash-separated path of the entry within the watched file system. For
	// WatchError events it is the directory the error belongs to.
	File string

	// Stats is the new metadata for FileAdded, FileCreated and FileChanged, and the last-known
	// metadata for FileRemoved.
	Stats fs.FileInfo

	// OldStats is the previous metadata of a FileChanged event.
	OldStats fs.FileInfo

	// Err is set for WatchError events.
	Err error
}

func (e Event) String() string {
	if e.Type == WatchError {
		return fmt.Sprintf("%v %q: %v", e.Type, e.File, e.Err)
	}
	return fmt.Sprintf("%v %q", e.Type, e.File)
}
