package watchdir

import (
	"errors"
	"fmt"
)

// ErrRootRemoved is returned by Watch when the watched root directory disappeared or became unreadable.
var ErrRootRemoved = errors.New("watch root removed")

// SubscriptionError reports that change notifications for a directory could not be established
// or failed afterwards.
type SubscriptionError struct {
	Dir string
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription for directory %q failed: %v", e.Dir, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// ListingError reports that a directory which is still known to exist could not be listed.
type ListingError struct {
	Dir string
	Err error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("error reading directory %q: %v", e.Dir, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}
