package events

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HandlerFunc receives the arguments passed to Emit.
type HandlerFunc func(args ...any) error

// Listener is a registration handle. Identity is the pointer, so registering the
// same handle twice for one event is a no-op.
type Listener struct {
	fn   HandlerFunc
	once bool
}

// NewListener wraps fn in a handle that can be passed to On and RemoveListener.
func NewListener(fn HandlerFunc) *Listener {
	return &Listener{fn: fn}
}

// Bus maps event names to ordered sets of listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]*Listener
	logger    zerolog.Logger
}

// NewBus creates an empty bus. Handler failures are reported to the global logger
// unless WithLogger is used.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]*Listener),
		logger:    log.With().Str("component", "event_bus").Logger(),
	}
}

// WithLogger sets the diagnostic sink for handler failures.
func (b *Bus) WithLogger(logger zerolog.Logger) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// On registers l for event.
func (b *Bus) On(event string, l *Listener) *Bus {
	if l == nil {
		return b
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners[event] {
		if existing == l {
			return b
		}
	}
	b.listeners[event] = append(b.listeners[event], l)

	return b
}

// Subscribe registers fn and returns its handle.
func (b *Bus) Subscribe(event string, fn HandlerFunc) *Listener {
	l := NewListener(fn)
	b.On(event, l)
	return l
}

// Once registers fn to run on the next emission of event only.
func (b *Bus) Once(event string, fn HandlerFunc) *Listener {
	l := &Listener{fn: fn, once: true}
	b.On(event, l)
	return l
}

// RemoveListener unregisters l from event. Unknown handles are ignored.
func (b *Bus) RemoveListener(event string, l *Listener) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.removeLocked(event, l)
	return b
}

// RemoveAllListeners drops every listener of event, or of all events when event is empty.
func (b *Bus) RemoveAllListeners(event string) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event == "" {
		b.listeners = make(map[string][]*Listener)
		return b
	}
	delete(b.listeners, event)

	return b
}

// ListenerCount returns the number of listeners registered for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[event])
}

// Emit calls every listener registered for event at the time of the call.
// A failing listener is logged and does not stop the others. Returns false when
// nobody was listening; such events are dropped.
func (b *Bus) Emit(event string, args ...any) bool {
	b.mu.Lock()
	current := b.listeners[event]
	if len(current) == 0 {
		b.mu.Unlock()
		return false
	}
	snapshot := make([]*Listener, len(current))
	copy(snapshot, current)
	for _, l := range snapshot {
		if l.once {
			b.removeLocked(event, l)
		}
	}
	logger := b.logger
	b.mu.Unlock()

	for _, l := range snapshot {
		if err := invoke(l, args); err != nil {
			logger.Error().Err(err).Str("event", event).Msg("Event listener failed")
		}
	}

	return true
}

func (b *Bus) removeLocked(event string, l *Listener) {
	current := b.listeners[event]
	for i, existing := range current {
		if existing != l {
			continue
		}

		next := make([]*Listener, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		if len(next) == 0 {
			delete(b.listeners, event)
		} else {
			b.listeners[event] = next
		}
		return
	}
}

func invoke(l *Listener, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("listener panicked: %v", r)
		}
	}()

	if l.fn == nil {
		return nil
	}
	return l.fn(args...)
}
