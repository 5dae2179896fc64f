package watchdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FSNotifier delivers native change notifications for directories below an OS directory. All
// subscriptions share one fsnotify watcher.
type FSNotifier struct {
	root    string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu sync.Mutex
	// subs is keyed by OS path
	subs map[string]*fsSubscription
}

// NewFSNotifier creates a notifier for the file system os.DirFS(root). The notifier must be
// closed after use.
func NewFSNotifier(root string) (*FSNotifier, error) {
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("provided root %q must be an existing directory", root)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create new watcher: %w", err)
	}
	n := &FSNotifier{
		root:    root,
		watcher: watcher,
		done:    make(chan struct{}),
		subs:    make(map[string]*fsSubscription),
	}
	go n.run()
	return n, nil
}

func (n *FSNotifier) Subscribe(dir string, notify func(Notification)) (Subscription, error) {
	if notify == nil {
		return nil, errors.New("fsnotify notifier: nil notify function")
	}
	osPath := filepath.Join(n.root, filepath.FromSlash(dir))
	sub := &fsSubscription{
		notifier: n,
		path:     osPath,
		notify:   notify,
	}

	// Register before adding the watch so no event gets lost in between
	n.mu.Lock()
	n.subs[osPath] = sub
	n.mu.Unlock()

	if err := n.watcher.Add(osPath); err != nil {
		n.forget(sub)
		return nil, err
	}
	return sub, nil
}

// Close stops the underlying watcher. Subscriptions receive nothing afterwards.
func (n *FSNotifier) Close() error {
	err := n.watcher.Close()
	<-n.done
	return err
}

func (n *FSNotifier) run() {
	defer close(n.done)
	for {
		select {
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.dispatch(event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.dispatchError(err)
		}
	}
}

func (n *FSNotifier) dispatch(event fsnotify.Event) {
	// A watched directory that is removed or moved away loses its watch, even if a new directory
	// shows up under the same name right after
	self := n.lookup(event.Name)
	gone := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if self != nil && gone {
		self.notify(Notification{Err: &fs.PathError{Op: "watch", Path: event.Name, Err: fs.ErrNotExist}})
	}

	// Events are reported to the watch of the containing directory
	if sub := n.lookup(filepath.Dir(event.Name)); sub != nil {
		sub.notify(Notification{Name: filepath.Base(event.Name)})
		return
	}

	// Nobody watches the parent, so this is about the outermost watched directory itself
	if self != nil && !gone {
		self.notify(Notification{})
	}
}

func (n *FSNotifier) dispatchError(err error) {
	n.mu.Lock()
	subs := make([]*fsSubscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	// Events were dropped by the kernel, so every directory has to be listed again
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		for _, sub := range subs {
			sub.notify(Notification{})
		}
		return
	}

	// Other errors cannot be attributed to a directory and go to the outermost one
	outermost := subs[0]
	for _, sub := range subs[1:] {
		if len(sub.path) < len(outermost.path) {
			outermost = sub
		}
	}
	outermost.notify(Notification{Err: err})
}

func (n *FSNotifier) lookup(osPath string) *fsSubscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subs[osPath]
}

// forget unregisters sub and reports whether it was still registered.
func (n *FSNotifier) forget(sub *fsSubscription) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[sub.path] != sub {
		return false
	}
	delete(n.subs, sub.path)
	return true
}

type fsSubscription struct {
	notifier *FSNotifier
	path     string
	notify   func(Notification)
}

func (s *fsSubscription) Close() error {
	if !s.notifier.forget(s) {
		return nil
	}

	// The directory may already be gone, in which case the kernel dropped the watch itself
	if err := s.notifier.watcher.Remove(s.path); err != nil &&
		!errors.Is(err, fsnotify.ErrNonExistentWatch) && !errors.Is(err, fsnotify.ErrClosed) {
		return err
	}
	return nil
}
