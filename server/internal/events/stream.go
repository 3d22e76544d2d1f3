package events

import (
	"sync"
)

// Stream is a broadcast channel with an optional replay slot of depth one.
//
// Publish never blocks: a value that does not fit in a subscriber's buffer
// is dropped for that subscriber. On replaying streams the oldest buffered
// value is evicted instead, so slow subscribers still end up with the
// latest one.
type Stream[T any] struct {
	mu      sync.Mutex
	subs    map[uint64]chan T
	next    uint64
	buffer  int
	replay  bool
	last    T
	hasLast bool
	closed  bool
	dropped uint64
}

func NewStream[T any](buffer int, replay bool) *Stream[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Stream[T]{
		subs:   make(map[uint64]chan T),
		buffer: buffer,
		replay: replay,
	}
}

func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.replay {
		s.last = v
		s.hasLast = true
	}

	for _, ch := range s.subs {
		select {
		case ch <- v:
			continue
		default:
		}

		if !s.replay {
			s.dropped++
			continue
		}

		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
			s.dropped++
		}
	}
}

// Subscribe returns a channel receiving every value published from now on,
// preceded by the latest value on replaying streams. The returned func
// unsubscribes and closes the channel.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, s.buffer)

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	if s.replay && s.hasLast {
		ch <- s.last
	}

	id := s.next
	s.next++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Latest returns the replay slot.
func (s *Stream[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

func (s *Stream[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Stream[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close closes every subscriber channel. Later publishes are ignored.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
