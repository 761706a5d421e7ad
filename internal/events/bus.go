// Package events provides the in-process event bus the data-access layer uses to tell the
// UI about session and cache changes (forced logout, invalidation, soft refresh).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Session lifecycle
	LoggedIn       EventType = "LOGGED_IN"
	LoggedOut      EventType = "LOGGED_OUT"
	TokenRefreshed EventType = "TOKEN_REFRESHED"
	SessionExpired EventType = "SESSION_EXPIRED" // Refresh failed, UI must redirect to login

	// Cache
	CacheInvalidated  EventType = "CACHE_INVALIDATED"
	VolatileRefreshed EventType = "VOLATILE_REFRESHED"
	DefaultsServed    EventType = "DEFAULTS_SERVED"

	// Batching
	BatchFallback EventType = "BATCH_FALLBACK"

	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type a stream subscriber can receive.
var AllTypes = []EventType{
	LoggedIn,
	LoggedOut,
	TokenRefreshed,
	SessionExpired,
	CacheInvalidated,
	VolatileRefreshed,
	DefaultsServed,
	BatchFallback,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type" msgpack:"type"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Module    string    `json:"module" msgpack:"module"`
	Data      EventData `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Handler receives emitted events. Handlers run on the emitting goroutine and must not block.
type Handler func(event *Event)

// Subscription identifies a registered handler.
type Subscription struct {
	eventType EventType
	id        uint64
}

// Emitter is the publishing side of the bus.
type Emitter interface {
	Emit(eventType EventType, module string, data EventData)
}

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[uint64]Handler
	nextID   uint64
	now      func() time.Time
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[uint64]Handler),
		now:      time.Now,
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.handlers[eventType][b.nextID] = handler

	return Subscription{eventType: eventType, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers[sub.eventType], sub.id)
}

// Emit publishes an event to every handler subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data EventData) {
	event := &Event{
		Type:      eventType,
		Timestamp: b.now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType]))
	for _, h := range b.handlers[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if b.log.GetLevel() <= zerolog.DebugLevel {
		eventJSON, _ := json.Marshal(event)
		b.log.Debug().
			Str("event_type", string(eventType)).
			Str("module", module).
			Int("subscribers", len(handlers)).
			RawJSON("event", eventJSON).
			Msg("Event emitted")
	}

	for _, h := range handlers {
		h(event)
	}
}

// EmitError emits an ErrorOccurred event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	b.Emit(ErrorOccurred, module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}
