package watchdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

func New(fsys fs.FS, options ...Option) WatchDir {
	wd := &watchDir{
		fsys:        fsys,
		subRoot:     ".",
		eventsMask:  AllEvents,
		addOrCreate: FileAdded,
		maxDepth:    DefaultMaxDepth,
		concurrency: DefaultConcurrency,
	}
	for _, option := range options {
		option(wd)
	}
	return wd
}

type watchDir struct {
	fsys        fs.FS
	subRoot     string
	eventsMask  EventType
	filter      Filter
	addOrCreate EventType
	notifier    Notifier
	maxDepth    uint
	concurrency int
	logger      *zap.Logger

	// onStart is called once the root has been scheduled
	onStart func(*session)
}

// Watch begins watching the watch directory
func (wd *watchDir) Watch(ctx context.Context, handler Handler) error {
	if wd.fsys == nil {
		return errors.New("cannot watch nil file system")
	}
	if handler == nil {
		return errors.New("cannot watch without a handler")
	}

	// Without a native notification source, fall back to polling
	notifier := wd.notifier
	if notifier == nil {
		notifier = NewPollNotifier(DefaultPollInterval)
	}
	logger := wd.logger
	if logger == nil {
		logger = zap.L().Named("watchdir")
	}

	s := &session{
		ctx:         ctx,
		fsys:        wd.fsys,
		filter:      wd.filter,
		notifier:    notifier,
		handler:     handler,
		eventsMask:  wd.eventsMask,
		maxDepth:    wd.maxDepth,
		concurrency: wd.concurrency,
		logger:      logger,
		loop:        newLoop(),
		stats:       semaphore.NewWeighted(int64(wd.concurrency)),
	}
	s.root = newNode(s, nil, wd.subRoot, 0, wd.addOrCreate)
	return s.run(wd.onStart)
}

// session is the state of a single call to Watch: the tree of directory watchers and the loop
// all of them run on.
type session struct {
	ctx         context.Context
	fsys        fs.FS
	filter      Filter
	notifier    Notifier
	handler     Handler
	eventsMask  EventType
	maxDepth    uint
	concurrency int
	logger      *zap.Logger

	loop *loop
	root *node

	// stats bounds the number of stat calls in flight across the whole tree
	stats *semaphore.Weighted

	// err is the first error returned by the handler
	err error
}

func (s *session) run(onStart func(*session)) error {
	// Stop the loop when the context is cancelled
	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-s.ctx.Done():
			s.loop.interrupt(s.ctx.Err())
		case <-exited:
		}
	}()

	s.loop.post(s.root.start)
	if onStart != nil {
		onStart(s)
	}
	s.logger.Debug("watch started", zap.String("root", s.root.path))

	err := s.loop.run()

	// Tear down the tree. Listings and stats still in flight are discarded.
	s.root.close()
	s.loop.stop()
	s.logger.Debug("watch stopped", zap.String("root", s.root.path), zap.Error(err))
	return err
}

// dispatch delivers an event that reached the root to the handler.
func (s *session) dispatch(event Event) {
	if s.err != nil || s.eventsMask&event.Type == 0 {
		return
	}
	if err := s.handler.WatchEvent(s.ctx, event); err != nil {
		s.err = err
		s.loop.interrupt(err)
	}
}

// terminate stops the watch because the root cannot be watched anymore.
func (s *session) terminate(err error) {
	s.logger.Debug("watch root terminated", zap.String("root", s.root.path), zap.Error(err))
	s.loop.interrupt(err)
}

// accept reports whether the filter lets fullPath through. It runs off the loop.
func (s *session) accept(fullPath string) bool {
	if s.filter == nil {
		return true
	}
	keep, err := s.filter.Filter(s.ctx, fullPath)
	if err != nil {
		s.logger.Warn("filter error, ignoring entry", zap.String("path", fullPath), zap.Error(err))
		return false
	}
	return keep
}

// stat returns the metadata of fullPath, or nil if it cannot be stat'ed. It runs off the loop.
func (s *session) stat(fullPath string) fs.FileInfo {
	if err := s.stats.Acquire(s.ctx, 1); err != nil {
		return nil
	}
	defer s.stats.Release(1)
	info, err := fs.Stat(s.fsys, fullPath)
	if err != nil {
		return nil
	}
	return info
}

// listing is the result of reading a directory and stat'ing the entries that passed the filter.
// A nil info means the entry is gone. Names are sorted.
type listing struct {
	names []string
	infos []fs.FileInfo
	err   error
}

// list reads dir and stats its filtered entries in parallel. Known names that are not part of
// the directory listing are stat'ed again too, since the listing may predate their creation. It
// runs off the loop.
func (s *session) list(dir string, known []string) listing {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return listing{err: err}
	}
	listed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		listed[entry.Name()] = struct{}{}
	}
	for _, name := range known {
		if _, ok := listed[name]; !ok {
			listed[name] = struct{}{}
		}
	}

	// Allow the filter a chance to ignore the entries
	var names []string
	for name := range listed {
		if s.accept(path.Join(dir, name)) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	// Stat everything that is left. An entry that vanished in the meantime gets nil.
	infos := make([]fs.FileInfo, len(names))
	eg, ctx := errgroup.WithContext(s.ctx)
	eg.SetLimit(s.concurrency)
	for i, name := range names {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			infos[i] = s.stat(path.Join(dir, name))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return listing{err: fmt.Errorf("error getting info for entries of %q: %w", dir, err)}
	}
	return listing{names: names, infos: infos}
}
