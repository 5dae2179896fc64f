package watchdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/spiretechnology/go-watchdir/v3/internal/tree"
	"go.uber.org/zap"
)

// node watches a single directory. It owns the entry table of the directory, one notifier
// subscription and one child node per watched subdirectory. All methods run on the session
// loop, except where noted.
type node struct {
	session *session
	parent  *node
	path    string
	depth   uint

	// label is used for entries found by the initial scan
	label EventType

	// sink receives the events of this node and all its descendants
	sink func(Event)

	entries  *tree.Entries
	children map[string]*node
	sub      Subscription
	closed   bool

	// seq numbers every scan and check issued for this directory, and applied holds per name the
	// number of the newest result applied so far. Results older than that are dropped. The table
	// is reset whenever nothing is in flight.
	seq      uint64
	inflight int
	applied  map[string]uint64

	// checking holds the names with a check in flight. True means another notification for the
	// name arrived meanwhile and the check has to run again.
	checking map[string]bool
}

func newNode(s *session, parent *node, dir string, depth uint, label EventType) *node {
	n := &node{
		session:  s,
		parent:   parent,
		path:     dir,
		depth:    depth,
		label:    label,
		entries:  tree.NewEntries(),
		children: make(map[string]*node),
		applied:  make(map[string]uint64),
		checking: make(map[string]bool),
	}
	if parent == nil {
		n.sink = s.dispatch
	} else {
		n.sink = parent.forward
	}
	return n
}

// start subscribes to notifications and performs the initial scan. It is always posted to the
// loop rather than called directly, so the caller can finish wiring the node first.
func (n *node) start() {
	if n.closed {
		return
	}
	sub, err := n.session.notifier.Subscribe(n.path, n.notify)
	if err != nil {
		n.fail(&SubscriptionError{Dir: n.path, Err: err})
		return
	}
	n.sub = sub
	n.scan(n.label)
}

// notify is handed to the notifier and may be called from any goroutine.
func (n *node) notify(note Notification) {
	n.session.loop.post(func() {
		n.handleNotification(note)
	})
}

func (n *node) handleNotification(note Notification) {
	if n.closed {
		return
	}
	switch {
	case note.Err != nil:
		n.subscriptionFailed(note.Err)
	case !validName(note.Name):
		n.log().Debug("rescanning directory")
		n.scan(FileCreated)
	default:
		n.checkEntry(note.Name, FileCreated)
	}
}

// validName reports whether name is a plain entry name. Anything else triggers a full rescan.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}

// issue returns the sequence number of a new scan or check.
func (n *node) issue() uint64 {
	n.seq++
	n.inflight++
	return n.seq
}

// settle marks the result of one issued scan or check as handled.
func (n *node) settle() {
	n.inflight--
	if n.inflight == 0 {
		clear(n.applied)
	}
}

// fresh reports whether a result issued as seq is at least as new as anything applied for name
// so far, and records it as applied if so.
func (n *node) fresh(name string, seq uint64) bool {
	if seq < n.applied[name] {
		return false
	}
	n.applied[name] = seq
	return true
}

// scan lists the directory and reconciles every entry. Entries discovered by the scan are
// reported with label.
func (n *node) scan(label EventType) {
	s := n.session
	dir := n.path
	seq := n.issue()
	known := n.entries.Names()
	s.loop.async(func() func() {
		result := s.list(dir, known)
		return func() {
			n.applyListing(seq, label, result)
		}
	})
}

func (n *node) applyListing(seq uint64, label EventType, result listing) {
	if n.closed {
		return
	}
	defer n.settle()
	if result.err != nil {
		n.listingFailed(result.err)
		return
	}

	// Gone entries are removed first, then the existing ones are reconciled. Names with a newer
	// result already applied are left alone.
	present := make(map[string]struct{}, len(result.names))
	for _, name := range result.names {
		present[name] = struct{}{}
	}
	for _, name := range n.entries.Missing(present) {
		if n.fresh(name, seq) {
			n.removeEntry(name)
		}
	}
	for i, name := range result.names {
		if result.infos[i] == nil && n.fresh(name, seq) {
			n.reconcile(name, nil, label)
		}
	}
	for i, name := range result.names {
		if n.closed {
			return
		}
		if result.infos[i] != nil && n.fresh(name, seq) {
			n.reconcile(name, result.infos[i], label)
		}
	}
}

func (n *node) listingFailed(err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	case errors.Is(err, fs.ErrPermission):
		n.log().Debug("directory became unreadable", zap.Error(err))
		n.removeAll()
	case errors.Is(err, fs.ErrNotExist):
		// The parent reconciles the removal of a vanished subdirectory
		if n.parent == nil {
			n.removeAll()
		}
	default:
		n.sink(Event{
			Type: WatchError,
			File: n.path,
			Err:  &ListingError{Dir: n.path, Err: err},
		})
	}
}

// checkEntry stats a single entry and reconciles it. Newly discovered entries are reported
// with label. Checks for the same name do not overlap: a request that arrives while one is in
// flight makes it run once more afterwards.
func (n *node) checkEntry(name string, label EventType) {
	if _, ok := n.checking[name]; ok {
		n.checking[name] = true
		return
	}
	n.checking[name] = false

	s := n.session
	fullPath := path.Join(n.path, name)
	seq := n.issue()
	s.loop.async(func() func() {
		var info fs.FileInfo
		accepted := s.accept(fullPath)
		if accepted {
			info = s.stat(fullPath)
		}
		return func() {
			n.applyCheck(seq, name, label, accepted, info)
		}
	})
}

func (n *node) applyCheck(seq uint64, name string, label EventType, accepted bool, info fs.FileInfo) {
	if n.closed {
		return
	}
	again := n.checking[name]
	delete(n.checking, name)
	if accepted && n.fresh(name, seq) {
		n.reconcile(name, info, label)
	}
	n.settle()
	if again && !n.closed {
		n.checkEntry(name, label)
	}
}

// reconcile compares fresh metadata for name, nil if the entry does not exist, with what was
// recorded before and reports the transition.
func (n *node) reconcile(name string, info fs.FileInfo, label EventType) {
	if n.closed {
		return
	}
	prev := n.entries.Get(name)

	// Gone, or never known to begin with
	if info == nil {
		if prev != nil {
			n.removeEntry(name)
		}
		return
	}

	// Something else took the place of the entry, like a file replaced by a directory or a
	// directory created again under the same name
	if prev != nil && tree.Replaced(prev, info) {
		n.removeEntry(name)
		prev = nil
	}

	n.entries.Set(name, info)
	fullPath := path.Join(n.path, name)
	if prev == nil {
		n.sink(Event{Type: label, File: fullPath, Stats: info})
		if info.IsDir() {
			n.spawn(name, label)
		}
		return
	}
	if tree.Changed(prev, info) {
		n.sink(Event{Type: FileChanged, File: fullPath, Stats: info, OldStats: prev})
	}
}

// removeEntry forgets name, tears down the watcher of its subtree and reports the removal.
func (n *node) removeEntry(name string) {
	prev := n.entries.Delete(name)
	if child, ok := n.children[name]; ok {
		child.removeAll()
		delete(n.children, name)
	}
	n.sink(Event{Type: FileRemoved, File: path.Join(n.path, name), Stats: prev})
}

// spawn starts watching the subdirectory name. Its initial scan reports entries with label.
func (n *node) spawn(name string, label EventType) {
	dir := path.Join(n.path, name)
	if n.depth+1 >= n.session.maxDepth {
		n.log().Debug("hit max depth", zap.String("subdir", dir), zap.Uint("depth", n.depth+1))
		return
	}
	child := newNode(n.session, n, dir, n.depth+1, label)
	n.children[name] = child
	n.session.loop.post(child.start)
}

// forward re-emits an event of a child unchanged.
func (n *node) forward(event Event) {
	if n.closed {
		return
	}
	n.sink(event)
}

// removeAll reports the removal of everything below this directory and closes the node. The
// watch ends when this is the root.
func (n *node) removeAll() {
	if n.closed {
		return
	}
	n.log().Debug("removing watched subtree")
	n.teardown()
	if n.parent == nil {
		n.session.terminate(fmt.Errorf("%w: %q", ErrRootRemoved, n.path))
	}
}

// teardown reports the removal of every known entry below this directory, deepest entries
// first, and closes the node.
func (n *node) teardown() {
	if n.closed {
		return
	}
	for _, name := range n.childNames() {
		n.children[name].teardown()
	}
	for _, name := range n.entries.Names() {
		n.sink(Event{Type: FileRemoved, File: path.Join(n.path, name), Stats: n.entries.Get(name)})
	}
	n.close()
}

func (n *node) subscriptionFailed(err error) {
	switch {
	case errors.Is(err, fs.ErrPermission):
		n.removeAll()
	case errors.Is(err, fs.ErrNotExist) && n.parent != nil:
		n.parent.replaceChild(n)
	case errors.Is(err, fs.ErrNotExist):
		n.removeAll()
	default:
		n.fail(&SubscriptionError{Dir: n.path, Err: err})
	}
}

// replaceChild drops a child whose directory went away and checks whether a new entry took its
// place.
func (n *node) replaceChild(child *node) {
	name := path.Base(child.path)
	if n.closed || n.children[name] != child {
		return
	}
	n.log().Debug("watched subdirectory went away", zap.String("subdir", child.path))

	// Results issued before this point describe the old directory
	n.seq++
	n.applied[name] = n.seq
	n.removeEntry(name)
	n.checkEntry(name, FileCreated)
}

// fail reports an unrecoverable error for this subtree and stops watching it. Entries reported
// so far are reported as removed.
func (n *node) fail(err error) {
	if n.closed {
		return
	}
	n.log().Warn("directory watch failed", zap.Error(err))
	n.sink(Event{Type: WatchError, File: n.path, Err: err})
	n.teardown()
	if n.parent == nil {
		n.session.terminate(err)
	}
}

// close stops watching the subtree without reporting anything. Closing twice is a no-op.
func (n *node) close() {
	if n.closed {
		return
	}
	n.closed = true
	for _, child := range n.children {
		child.close()
	}
	if n.sub != nil {
		if err := n.sub.Close(); err != nil {
			n.log().Warn("error closing subscription", zap.Error(err))
		}
		n.sub = nil
	}
	n.entries = nil
	n.children = nil
	n.applied = nil
	n.checking = nil
}

func (n *node) childNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
