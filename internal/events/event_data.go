package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SessionData accompanies LoggedIn, LoggedOut and TokenRefreshed events.
type SessionData struct {
	Kind      EventType `json:"kind" msgpack:"kind"`
	UserID    string    `json:"user_id,omitempty" msgpack:"user_id,omitempty"`
	ExpiresAt int64     `json:"expires_at,omitempty" msgpack:"expires_at,omitempty"`
}

// EventType returns the event type for SessionData
func (d *SessionData) EventType() EventType {
	return d.Kind
}

// SessionExpiredData is emitted when a refresh fails and credentials are cleared.
type SessionExpiredData struct {
	Reason string `json:"reason" msgpack:"reason"`
}

// EventType returns the event type for SessionExpiredData
func (d *SessionExpiredData) EventType() EventType {
	return SessionExpired
}

// CacheInvalidatedData lists the prefixes dropped after a mutation.
type CacheInvalidatedData struct {
	Prefixes []string `json:"prefixes" msgpack:"prefixes"`
	Removed  int      `json:"removed" msgpack:"removed"`
	Reason   string   `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// EventType returns the event type for CacheInvalidatedData
func (d *CacheInvalidatedData) EventType() EventType {
	return CacheInvalidated
}

// VolatileRefreshedData is emitted after the UI refresh timer re-polled market data.
type VolatileRefreshedData struct {
	Keys []string `json:"keys" msgpack:"keys"`
}

// EventType returns the event type for VolatileRefreshedData
func (d *VolatileRefreshedData) EventType() EventType {
	return VolatileRefreshed
}

// DefaultsServedData is emitted when a read fell back to the static dataset.
type DefaultsServedData struct {
	Resource string `json:"resource" msgpack:"resource"`
	Error    string `json:"error,omitempty" msgpack:"error,omitempty"`
}

// EventType returns the event type for DefaultsServedData
func (d *DefaultsServedData) EventType() EventType {
	return DefaultsServed
}

// BatchFallbackData is emitted when the aggregate endpoint failed and items were sent one by one.
type BatchFallbackData struct {
	Items int    `json:"items" msgpack:"items"`
	Error string `json:"error" msgpack:"error"`
}

// EventType returns the event type for BatchFallbackData
func (d *BatchFallbackData) EventType() EventType {
	return BatchFallback
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error" msgpack:"error"`
	Context map[string]interface{} `json:"context,omitempty" msgpack:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
