package scheduler

import (
	"sync"
	"time"
)

// Visibility tracks whether the dashboard page is in the foreground, as reported by
// the browser's document.visibilityState. A fresh tracker reports visible.
type Visibility struct {
	mu        sync.RWMutex
	visible   bool
	changedAt time.Time
}

// NewVisibility creates a tracker that starts out visible.
func NewVisibility() *Visibility {
	return &Visibility{visible: true, changedAt: time.Now()}
}

// Set records the page state and reports whether it changed.
func (v *Visibility) Set(visible bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.visible == visible {
		return false
	}
	v.visible = visible
	v.changedAt = time.Now()
	return true
}

// Visible reports whether the page is in the foreground.
func (v *Visibility) Visible() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible
}

// ChangedAt returns when the state last flipped.
func (v *Visibility) ChangedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.changedAt
}
