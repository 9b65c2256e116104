package presence

import (
	"slices"
	"sync"
)

// User is one online participant.
type User struct {
	UserID   string
	UserName string
	UserRole string
}

// Tracker holds the set of other participants currently online. Every server
// broadcast replaces it wholesale.
type Tracker struct {
	mu    sync.RWMutex
	users []User
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ApplySnapshot replaces the online set with users, dropping self and any
// repeated user id. Snapshot order is kept.
func (t *Tracker) ApplySnapshot(self string, users []User) {
	next := make([]User, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.UserID == "" || u.UserID == self {
			continue
		}
		if _, dup := seen[u.UserID]; dup {
			continue
		}
		seen[u.UserID] = struct{}{}
		next = append(next, u)
	}

	t.mu.Lock()
	t.users = next
	t.mu.Unlock()
}

// Users returns a copy of the online set.
func (t *Tracker) Users() []User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.users)
}

// IsOnline reports whether userID is in the current snapshot.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.ContainsFunc(t.users, func(u User) bool { return u.UserID == userID })
}

// Reset clears the online set.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.users = nil
	t.mu.Unlock()
}
