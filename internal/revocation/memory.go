package revocation

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return NewMemoryRegistryWithClock(time.Now)
}

func NewMemoryRegistryWithClock(now func() time.Time) *MemoryRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Add stores tokenID; a later call for the same id replaces the earlier expiry.
func (r *MemoryRegistry) Add(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tokenID] = effectiveExpiry(expiresAt, r.now())
	return nil
}

func (r *MemoryRegistry) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !r.now().After(expiresAt) {
		return true, nil
	}
	delete(r.entries, tokenID)
	return false, nil
}

func (r *MemoryRegistry) ListActive(_ context.Context) ([]string, error) {
	r.mu.Lock()
	now := r.now()
	active := make([]string, 0, len(r.entries))
	for id, expiresAt := range r.entries {
		if expiresAt.After(now) {
			active = append(active, id)
		}
	}
	r.mu.Unlock()
	sort.Strings(active)
	return active, nil
}

// Sweep drops every entry whose expiry has passed and returns how many were removed.
func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, expiresAt := range r.entries {
		if now.After(expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len counts stored entries, expired or not.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
