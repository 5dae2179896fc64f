package watchdir

// Session exposes the state of a running Watch call to tests.
type Session = session

// WithSessionHook registers fn to be called once Watch has scheduled the root directory.
func WithSessionHook(fn func(*Session)) Option {
	return func(wd *watchDir) {
		wd.onStart = fn
	}
}

// WaitIdle blocks until no listing, stat or loop task is outstanding.
func (s *session) WaitIdle() {
	s.loop.waitIdle()
}

// EntryCount returns the number of entries known for dir, or -1 if dir is not watched. It must
// only be called while the session is idle.
func (s *session) EntryCount(dir string) int {
	n := s.root.find(dir)
	if n == nil || n.closed {
		return -1
	}
	return n.entries.Len()
}

func (n *node) find(dir string) *node {
	if n.path == dir {
		return n
	}
	for _, child := range n.children {
		if found := child.find(dir); found != nil {
			return found
		}
	}
	return nil
}
