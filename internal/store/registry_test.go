package store

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryCreateGetRemove(t *testing.T) {
	r := NewRegistry(time.Hour)

	s := r.Create(nil)
	if s.SessionID() == "" {
		t.Fatalf("SessionID() = empty")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	got, err := r.Get(s.SessionID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != s {
		t.Fatalf("Get() returned a different store")
	}

	r.Remove(s.SessionID())
	if _, err := r.Get(s.SessionID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after Remove error = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryExpireInactive(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)

	var expired []string
	r.SetExpireHook(func(sessionID string) {
		expired = append(expired, sessionID)
	})

	s := r.Create(nil)
	time.Sleep(20 * time.Millisecond)
	r.expireInactive()

	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
	if len(expired) != 1 || expired[0] != s.SessionID() {
		t.Fatalf("expire hook got %v, want [%s]", expired, s.SessionID())
	}
}

func TestRegistryGetRefreshesActivity(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)

	s := r.Create(nil)
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Get(s.SessionID()); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	r.expireInactive()

	// 40ms since create, but only 20ms since last Get.
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (activity refreshed)", r.Len())
	}
}
