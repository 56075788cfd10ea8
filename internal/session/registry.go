package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrTooManySessions  = errors.New("too many sessions")
	ErrDuplicateSession = errors.New("session already registered")
)

// Info is the registry's view of a session. It carries no calibration data,
// which stays private to the owning Session.
type Info struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remoteAddr"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Registry is the process-wide set of live sessions. All access goes through
// one mutex; readers get copies.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Info
	max      int
}

// NewRegistry returns an empty registry. max <= 0 means unlimited.
func NewRegistry(max int) *Registry {
	return &Registry{
		sessions: make(map[string]Info),
		max:      max,
	}
}

func (r *Registry) Add(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[info.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, info.ID)
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		return fmt.Errorf("%w (limit %d)", ErrTooManySessions, r.max)
	}
	r.sessions[info.ID] = info
	return nil
}

// Remove deletes id and reports whether it was present. Removing twice is
// harmless.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Registry) Get(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sessions[id]
	return info, ok
}

// List returns a snapshot ordered by connection time.
func (r *Registry) List() []Info {
	r.mu.RLock()
	result := make([]Info, 0, len(r.sessions))
	for _, info := range r.sessions {
		result = append(result, info)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ConnectedAt.Equal(result[j].ConnectedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ConnectedAt.Before(result[j].ConnectedAt)
	})
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
