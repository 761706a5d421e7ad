package testing

import (
	"errors"
	"sync"

	"github.com/aristath/sentinel-dashboard/internal/events"
)

// ErrMockStorage is returned by MockStorage when failures are switched on.
var ErrMockStorage = errors.New("mock storage failure")

// MockEmitter records emitted events
type MockEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

// NewMockEmitter creates a new mock emitter
func NewMockEmitter() *MockEmitter {
	return &MockEmitter{}
}

// Emit records the event
func (m *MockEmitter) Emit(eventType events.EventType, module string, data events.EventData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events.Event{Type: eventType, Module: module, Data: data})
}

// Events returns a copy of everything emitted so far
func (m *MockEmitter) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events of eventType were emitted
func (m *MockEmitter) Count(eventType events.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// MockStorage is an in-memory credential store with switchable failures
type MockStorage struct {
	mu     sync.Mutex
	values map[string]string
	fail   bool
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{values: make(map[string]string)}
}

// SetFailing makes every subsequent call return ErrMockStorage
func (m *MockStorage) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Get returns the value stored under key
func (m *MockStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", false, ErrMockStorage
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key
func (m *MockStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return ErrMockStorage
	}
	m.values[key] = value
	return nil
}

// Remove deletes key
func (m *MockStorage) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return ErrMockStorage
	}
	delete(m.values, key)
	return nil
}

// Snapshot returns a copy of the stored values
func (m *MockStorage) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
