package watchdir

import "go.uber.org/zap"

type Option func(wd *watchDir)

// WithEvents limits the events delivered to the handler. Masked events are still tracked.
func WithEvents(mask EventType) Option {
	return func(wd *watchDir) {
		wd.eventsMask = mask
	}
}

func WithFilter(filter Filter) Option {
	return func(wd *watchDir) {
		wd.filter = filter
	}
}

// WithAddOrCreate sets the label used for entries found by the initial scan of the root,
// either FileAdded or FileCreated.
func WithAddOrCreate(label EventType) Option {
	return func(wd *watchDir) {
		if label.isDiscovery() {
			wd.addOrCreate = label
		}
	}
}

// WithNotifier sets the source of change notifications.
func WithNotifier(notifier Notifier) Option {
	return func(wd *watchDir) {
		wd.notifier = notifier
	}
}

// WithSubRoot watches a sub-directory of the file system instead of its root.
func WithSubRoot(dir string) Option {
	return func(wd *watchDir) {
		wd.subRoot = rootDir(dir)
	}
}

func WithMaxDepth(maxDepth uint) Option {
	return func(wd *watchDir) {
		wd.maxDepth = maxDepth
	}
}

// WithConcurrency sets how many entries are stat'ed in parallel while listing a directory.
func WithConcurrency(n int) Option {
	return func(wd *watchDir) {
		if n > 0 {
			wd.concurrency = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(wd *watchDir) {
		wd.logger = logger
	}
}
