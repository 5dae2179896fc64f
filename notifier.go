package watchdir

// Notification signals that something changed in a watched directory.
type Notification struct {
	// Name is the base name of the entry that changed. An empty name means the affected entries
	// are unknown and the directory must be listed again.
	Name string

	// Err reports a failure of the subscription. fs.ErrPermission means the directory itself
	// can no longer be read.
	Err error
}

// Notifier is the source of change notifications for single directories. Notifications may be
// coalesced, duplicated, or delivered after the subscription was closed.
type Notifier interface {
	// Subscribe starts delivering notifications for dir, a slash-separated path within the
	// watched file system, to notify. notify may be called from any goroutine.
	Subscribe(dir string, notify func(Notification)) (Subscription, error)
}

// Subscription is a live registration with a Notifier.
type Subscription interface {
	Close() error
}
