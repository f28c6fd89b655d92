// Package events provides a minimal observer-registration primitive
// used by components that push lifecycle updates to listeners.
package events

import "sync"

// List tracks registered callbacks for one event type. The zero value
// is ready to use. The handler set is copied before dispatch, so an
// observer may unsubscribe (even itself) from inside a callback.
type List[T any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(T)
}

// Subscribe registers fn and returns its unsubscribe func.
func (l *List[T]) Subscribe(fn func(T)) func() {
	l.mu.Lock()
	if l.handlers == nil {
		l.handlers = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.handlers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}

// Emit dispatches event to every registered handler, synchronously on
// the calling goroutine.
func (l *List[T]) Emit(event T) {
	l.mu.RLock()
	handlers := make([]func(T), 0, len(l.handlers))
	for _, fn := range l.handlers {
		handlers = append(handlers, fn)
	}
	l.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
