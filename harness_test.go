package watchdir_test

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"sync"
	"testing"

	"github.com/spiretechnology/go-watchdir/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

// manualNotifier delivers notifications only when the test asks for them.
type manualNotifier struct {
	mu       sync.Mutex
	subs     map[string]*manualSubscription
	failures map[string]error
}

func newManualNotifier() *manualNotifier {
	return &manualNotifier{
		subs:     make(map[string]*manualSubscription),
		failures: make(map[string]error),
	}
}

// FailSubscribe makes every later subscription for dir fail with err.
func (m *manualNotifier) FailSubscribe(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[dir] = err
}

func (m *manualNotifier) Subscribe(dir string, notify func(watchdir.Notification)) (watchdir.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[dir]; err != nil {
		return nil, err
	}
	sub := &manualSubscription{notifier: m, dir: dir, notify: notify}
	m.subs[dir] = sub
	return sub, nil
}

// Send delivers note to the subscription for dir and reports whether there was one.
func (m *manualNotifier) Send(dir string, note watchdir.Notification) bool {
	m.mu.Lock()
	sub := m.subs[dir]
	m.mu.Unlock()
	if sub == nil {
		return false
	}
	sub.notify(note)
	return true
}

// Watched returns the directories with a live subscription.
func (m *manualNotifier) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	dirs := make([]string, 0, len(m.subs))
	for dir := range m.subs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

type manualSubscription struct {
	notifier *manualNotifier
	dir      string
	notify   func(watchdir.Notification)
}

func (s *manualSubscription) Close() error {
	s.notifier.mu.Lock()
	defer s.notifier.mu.Unlock()
	if s.notifier.subs[s.dir] == s {
		delete(s.notifier.subs, s.dir)
	}
	return nil
}

// recorder is a handler that keeps every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []watchdir.Event
}

func (r *recorder) WatchEvent(ctx context.Context, event watchdir.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Events() []watchdir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]watchdir.Event(nil), r.events...)
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Files returns the files of the recorded events of the given type, starting at index from.
func (r *recorder) Files(typ watchdir.EventType, from int) []string {
	var files []string
	for _, event := range r.Events()[from:] {
		if event.Type == typ {
			files = append(files, event.File)
		}
	}
	return files
}

// Find returns the first recorded event of the given type for file.
func (r *recorder) Find(typ watchdir.EventType, file string) (watchdir.Event, bool) {
	for _, event := range r.Events() {
		if event.Type == typ && event.File == file {
			return event, true
		}
	}
	return watchdir.Event{}, false
}

type harness struct {
	t        *testing.T
	notifier *manualNotifier
	recorder *recorder
	session  *watchdir.Session
	cancel   context.CancelFunc
	eg       errgroup.Group
}

// startWatch runs Watch in the background with a manual notifier and waits for the initial scan.
func startWatch(t *testing.T, fsys fs.FS, options ...watchdir.Option) *harness {
	t.Helper()
	return startWatchWith(t, newManualNotifier(), fsys, options...)
}

func startWatchWith(t *testing.T, notifier *manualNotifier, fsys fs.FS, options ...watchdir.Option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		notifier: notifier,
		recorder: &recorder{},
	}
	sessions := make(chan *watchdir.Session, 1)
	options = append([]watchdir.Option{
		watchdir.WithNotifier(h.notifier),
		watchdir.WithLogger(zaptest.NewLogger(t)),
		watchdir.WithSessionHook(func(s *watchdir.Session) {
			sessions <- s
		}),
	}, options...)
	wd := watchdir.New(fsys, options...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.eg.Go(func() error {
		return wd.Watch(ctx, h.recorder)
	})
	h.session = <-sessions
	h.session.WaitIdle()
	t.Cleanup(func() {
		_ = h.stop()
	})
	return h
}

// notify delivers a notification for name in dir and waits until it has been handled.
func (h *harness) notify(dir, name string) {
	h.t.Helper()
	require.True(h.t, h.notifier.Send(dir, watchdir.Notification{Name: name}), "directory %q not watched", dir)
	h.session.WaitIdle()
}

// fail delivers a subscription error for dir and waits until it has been handled.
func (h *harness) fail(dir string, err error) {
	h.t.Helper()
	require.True(h.t, h.notifier.Send(dir, watchdir.Notification{Err: err}), "directory %q not watched", dir)
	h.session.WaitIdle()
}

// stop cancels the watch and returns the error returned by Watch.
func (h *harness) stop() error {
	h.cancel()
	return h.eg.Wait()
}

// requireDeepestFirst checks that every removed entry is reported before its removed parent.
func requireDeepestFirst(t *testing.T, removed []string) {
	t.Helper()
	index := make(map[string]int, len(removed))
	for i, file := range removed {
		index[file] = i
	}
	for i, file := range removed {
		if parent, ok := index[path.Dir(file)]; ok {
			require.Less(t, i, parent, "%q removed after its parent", file)
		}
	}
}

// hookFS wraps a file system and lets tests intercept directory listings and stats.
type hookFS struct {
	fs.FS

	mu            sync.Mutex
	beforeReadDir func(name string) error
	afterReadDir  func(name string)
	beforeStat    func(name string)
}

func (h *hookFS) SetBeforeReadDir(fn func(name string) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeReadDir = fn
}

// SetAfterReadDir registers fn to run once a directory has been read, before the entries are
// returned.
func (h *hookFS) SetAfterReadDir(fn func(name string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterReadDir = fn
}

func (h *hookFS) SetBeforeStat(fn func(name string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeStat = fn
}

func (h *hookFS) ReadDir(name string) ([]fs.DirEntry, error) {
	h.mu.Lock()
	before, after := h.beforeReadDir, h.afterReadDir
	h.mu.Unlock()
	if before != nil {
		if err := before(name); err != nil {
			return nil, err
		}
	}
	entries, err := fs.ReadDir(h.FS, name)
	if after != nil {
		after(name)
	}
	return entries, err
}

func (h *hookFS) Stat(name string) (fs.FileInfo, error) {
	h.mu.Lock()
	hook := h.beforeStat
	h.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return fs.Stat(h.FS, name)
}
