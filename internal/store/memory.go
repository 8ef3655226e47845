package store

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/kp-index-aggregation/internal/kp"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = kp.ErrNotFound

// MemoryStore is a concurrency-safe in-memory settings and widget card store.
// It implements kp.SettingsStore and widget.CardStore.
type MemoryStore struct {
	mu sync.RWMutex

	location     *kp.Location
	prefs        *kp.Preferences
	lastNotified time.Time

	// flat widget card record, merged on every write
	card map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadLocation(_ context.Context) (kp.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.location == nil {
		return kp.Location{}, ErrNotFound
	}
	return *s.location, nil
}

func (s *MemoryStore) SaveLocation(_ context.Context, loc kp.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.location = &loc
	return nil
}

func (s *MemoryStore) LoadPreferences(_ context.Context) (kp.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.prefs == nil {
		return kp.Preferences{}, ErrNotFound
	}
	return *s.prefs, nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, prefs kp.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs = &prefs
	return nil
}

// LastNotification returns the zero time when no alert was ever sent.
func (s *MemoryStore) LastNotification(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastNotified, nil
}

func (s *MemoryStore) SetLastNotification(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastNotified = at
	return nil
}

// SaveCard merges fields into the stored card record.
func (s *MemoryStore) SaveCard(_ context.Context, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.card == nil {
		s.card = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		s.card[k] = v
	}
	return nil
}

// LoadCard returns a copy of the card record.
func (s *MemoryStore) LoadCard(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.card) == 0 {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(s.card))
	for k, v := range s.card {
		out[k] = v
	}
	return out, nil
}
