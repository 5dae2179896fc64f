package watchdir

import (
	"errors"
	"sync"
	"time"
)

// PollNotifier asks every subscribed directory to be listed again at a fixed interval. It works
// with any file system, including ones without native change notifications.
type PollNotifier struct {
	interval time.Duration

	mu   sync.Mutex
	subs map[*pollSubscription]struct{}

	// stop is non-nil while the ticker goroutine runs
	stop chan struct{}
}

func NewPollNotifier(interval time.Duration) *PollNotifier {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollNotifier{
		interval: interval,
		subs:     make(map[*pollSubscription]struct{}),
	}
}

func (p *PollNotifier) Subscribe(dir string, notify func(Notification)) (Subscription, error) {
	if notify == nil {
		return nil, errors.New("poll notifier: nil notify function")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	sub := &pollSubscription{
		poller: p,
		notify: notify,
	}
	p.subs[sub] = struct{}{}

	// The ticker only runs while somebody is subscribed
	if p.stop == nil {
		p.stop = make(chan struct{})
		go p.tick(p.stop)
	}
	return sub, nil
}

func (p *PollNotifier) tick(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.notifyAll()
		}
	}
}

func (p *PollNotifier) notifyAll() {
	p.mu.Lock()
	subs := make([]*pollSubscription, 0, len(p.subs))
	for sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		sub.notify(Notification{})
	}
}

// Subscriptions returns the number of live subscriptions.
func (p *PollNotifier) Subscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

type pollSubscription struct {
	poller *PollNotifier
	notify func(Notification)
}

func (s *pollSubscription) Close() error {
	p := s.poller
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, s)
	if len(p.subs) == 0 && p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}
