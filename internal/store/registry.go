package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	store        *Store
	lastActivity time.Time
}

// Registry owns every live session store. It replaces hidden global
// state with an injectable object: created at process start and passed
// by reference to request handlers.
type Registry struct {
	mu                sync.RWMutex
	entries           map[string]*entry
	inactivityTimeout time.Duration
	onExpire          func(sessionID string)

	// AudioDumpDir is propagated to every created store.
	AudioDumpDir string
	OnWarning    func(msg string)
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Registry{
		entries:           make(map[string]*entry),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers a callback fired after a session is expired
// by the janitor.
func (r *Registry) SetExpireHook(hook func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// Create allocates a new session store bound to the given applier.
func (r *Registry) Create(applier EditApplier) *Store {
	s := NewStore(uuid.NewString(), applier)

	r.mu.Lock()
	defer r.mu.Unlock()
	s.AudioDumpDir = r.AudioDumpDir
	s.OnWarning = r.OnWarning
	r.entries[s.SessionID()] = &entry{store: s, lastActivity: time.Now().UTC()}
	return s
}

// List returns the IDs of all live sessions.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the session store and refreshes its activity clock.
func (r *Registry) Get(sessionID string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastActivity = time.Now().UTC()
	return e.store, nil
}

// Remove drops the session immediately.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StartJanitor expires inactive sessions in the background until the
// context is cancelled.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []string

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastActivity) < r.inactivityTimeout {
			continue
		}
		delete(r.entries, id)
		expired = append(expired, id)
	}
	hook := r.onExpire
	r.mu.Unlock()

	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
}
