package store

import (
	"context"
	"sync"
)

// broadcaster is the subscriber registry of one store. It has no lock of its
// own; the owning store's mutex guards it together with the cache, so a
// broadcast never races a subscribe or a cancel.
type broadcaster[S any] struct {
	nextID uint64
	subs   map[uint64]*Subscription[S]
	clone  func(S) S
}

func newBroadcaster[S any](clone func(S) S) broadcaster[S] {
	return broadcaster[S]{
		subs:  make(map[uint64]*Subscription[S]),
		clone: clone,
	}
}

// subscribe registers a subscription whose first value is initial. The
// release hook must remove the subscription from the registry.
func (b *broadcaster[S]) subscribe(initial S, release func(id uint64)) *Subscription[S] {
	b.nextID++
	s := &Subscription[S]{
		id:      b.nextID,
		out:     make(chan S),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		release: release,
	}
	s.enqueue(b.clone(initial))
	b.subs[s.id] = s
	go s.pump()
	return s
}

// publish queues snapshot on every registered subscription and returns how
// many received it. Each subscription gets its own copy.
func (b *broadcaster[S]) publish(snapshot S) int {
	for _, s := range b.subs {
		s.enqueue(b.clone(snapshot))
	}
	return len(b.subs)
}

func (b *broadcaster[S]) remove(id uint64) {
	delete(b.subs, id)
}

func (b *broadcaster[S]) len() int {
	return len(b.subs)
}

// Subscription is a live, independent stream of store snapshots. Values are
// delivered in commit order through an unbounded queue, so a slow consumer
// never blocks the store or other subscribers and never misses a snapshot.
type Subscription[S any] struct {
	id      uint64
	out     chan S
	wake    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	pending []S
	once    sync.Once
	release func(id uint64)
}

// C returns the channel of snapshots. It is closed after Cancel.
func (s *Subscription[S]) C() <-chan S {
	return s.out
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription[S]) Done() <-chan struct{} {
	return s.done
}

// Cancel unregisters the subscription and stops delivery. It is safe to call
// more than once and from any goroutine.
func (s *Subscription[S]) Cancel() {
	s.once.Do(func() {
		s.release(s.id)
		close(s.done)
	})
}

func (s *Subscription[S]) enqueue(v S) {
	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[S]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.pending[0]
		var zero S
		s.pending[0] = zero
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}

// cancelOn cancels the subscription when ctx is done.
func (s *Subscription[S]) cancelOn(ctx context.Context) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
}
