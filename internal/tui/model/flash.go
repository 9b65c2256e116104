package model

import (
	"sync"
	"time"
)

// Flash holds one transient status line, e.g. a rejected send.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
	now     func() time.Time
}

func (f *Flash) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}

// Set shows msg for d.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = f.clock().Add(d)
}

// Get returns the current message, or "" once it has expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.clock().Before(f.expires) {
		return ""
	}
	return f.message
}
