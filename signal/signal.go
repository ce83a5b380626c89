// Package signal provides a typed, synchronous publish/subscribe primitive.
//
// A [Signal] delivers one payload type to every subscribed [Listener] in
// subscription order. The listener set is copy-on-write: Subscribe and
// Unsubscribe replace the underlying slice, so a Publish that is already
// iterating keeps its snapshot and is unaffected by listeners added or
// removed from inside a callback.
//
// Listeners are identified by pointer, which makes Unsubscribe exact even
// when two listeners wrap the same function:
//
//	var loaded signal.Signal[*dataset.Grid]
//	l := loaded.Tap(func(g *dataset.Grid) { render(g) })
//	...
//	loaded.Unsubscribe(l)
package signal

import (
	"sync"
	"sync/atomic"
)

// Listener is a subscription handle wrapping a callback.
type Listener[T any] struct {
	fn func(T)
}

// NewListener wraps fn as a Listener.
func NewListener[T any](fn func(T)) *Listener[T] {
	return &Listener[T]{fn: fn}
}

// Signal is a one-to-many notifier for payloads of type T.
//
// The zero value is ready to use. A Signal must not be copied after first use.
type Signal[T any] struct {
	mu        sync.Mutex // serializes writers
	listeners atomic.Pointer[[]*Listener[T]]
}

// Subscribe registers l. Subscribing the same listener twice results in
// two invocations per Publish.
func (s *Signal[T]) Subscribe(l *Listener[T]) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshot()
	next := make([]*Listener[T], len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, l)
	s.listeners.Store(&next)
}

// Tap subscribes fn and returns its listener handle.
func (s *Signal[T]) Tap(fn func(T)) *Listener[T] {
	l := NewListener(fn)
	s.Subscribe(l)
	return l
}

// Unsubscribe removes the first registration of l. It is a no-op if l is
// not subscribed.
func (s *Signal[T]) Unsubscribe(l *Listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snapshot()
	ix := -1
	for i, v := range cur {
		if v == l {
			ix = i
			break
		}
	}
	if ix == -1 {
		return
	}

	next := make([]*Listener[T], 0, len(cur)-1)
	next = append(next, cur[:ix]...)
	next = append(next, cur[ix+1:]...)
	s.listeners.Store(&next)
}

// Publish invokes every listener registered at the time of the call, in
// subscription order, on the calling goroutine. A panicking listener
// stops the remaining iteration and propagates to the caller.
func (s *Signal[T]) Publish(v T) {
	for _, l := range s.snapshot() {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	return len(s.snapshot())
}

func (s *Signal[T]) snapshot() []*Listener[T] {
	if p := s.listeners.Load(); p != nil {
		return *p
	}
	return nil
}
