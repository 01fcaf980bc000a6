// Package event provides a synchronous, named notification source that
// handlers can subscribe to either statically (Subscribe) or at runtime
// through reflection (the Channel interface).
package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Sentinel errors returned by Event.
var (
	ErrNotSubscribed = errors.New("handle is not subscribed")
	ErrNilHandler    = errors.New("handler is nil")
	ErrHandlerType   = errors.New("handler type mismatch")
)

// Handler receives the sender of a notification and its payload.
type Handler[T any] func(sender any, args T)

// Handle identifies a single subscription. The zero Handle is never issued.
type Handle uint64

var nextHandle atomic.Uint64

func newHandle() Handle {
	return Handle(nextHandle.Add(1))
}

// Channel is the untyped view of an Event used by runtime binders that only
// know the event by name.
type Channel interface {
	// HandlerType reports the func type accepted by AddHandler.
	HandlerType() reflect.Type
	// AddHandler registers fn, which must be a func of HandlerType.
	AddHandler(fn reflect.Value) (Handle, error)
	// RemoveHandler drops the subscription identified by h.
	RemoveHandler(h Handle) error
}

type subscription[T any] struct {
	handle  Handle
	handler Handler[T]
}

// Event is a notification source with zero or more subscribers. Fire invokes
// subscribers in-line on the calling goroutine in subscription order. The zero
// value is ready to use.
type Event[T any] struct {
	mu   sync.RWMutex
	subs []subscription[T]
}

// Subscribe registers h and returns the handle needed to remove it.
func (e *Event[T]) Subscribe(h Handler[T]) (Handle, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	handle := newHandle()
	e.mu.Lock()
	e.subs = append(e.subs, subscription[T]{handle: handle, handler: h})
	e.mu.Unlock()
	return handle, nil
}

// Unsubscribe removes the subscription identified by h. Removing a handle that
// is not currently registered returns ErrNotSubscribed.
func (e *Event[T]) Unsubscribe(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub.handle == h {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrNotSubscribed, h)
}

// Fire delivers args to every current subscriber. Subscriptions added or
// removed by a handler take effect on the next Fire.
func (e *Event[T]) Fire(sender any, args T) {
	e.mu.RLock()
	if len(e.subs) == 0 {
		e.mu.RUnlock()
		return
	}
	snapshot := append([]subscription[T](nil), e.subs...)
	e.mu.RUnlock()

	for _, sub := range snapshot {
		sub.handler(sender, args)
	}
}

// Len returns the number of active subscriptions.
func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// Subscribed reports whether h is currently registered.
func (e *Event[T]) Subscribed(h Handle) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, sub := range e.subs {
		if sub.handle == h {
			return true
		}
	}
	return false
}

// HandlerType implements Channel.
func (e *Event[T]) HandlerType() reflect.Type {
	return reflect.TypeOf(Handler[T](nil))
}

// AddHandler implements Channel. fn must be a non-nil func whose type is
// convertible to Handler[T].
func (e *Event[T]) AddHandler(fn reflect.Value) (Handle, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return 0, ErrNilHandler
	}
	want := e.HandlerType()
	if !fn.Type().ConvertibleTo(want) {
		return 0, fmt.Errorf("%w: have %s, want %s", ErrHandlerType, fn.Type(), want)
	}
	h, ok := fn.Convert(want).Interface().(Handler[T])
	if !ok {
		return 0, fmt.Errorf("%w: have %s, want %s", ErrHandlerType, fn.Type(), want)
	}
	return e.Subscribe(h)
}

// RemoveHandler implements Channel.
func (e *Event[T]) RemoveHandler(h Handle) error {
	return e.Unsubscribe(h)
}
