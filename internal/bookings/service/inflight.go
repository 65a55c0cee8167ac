package service

import "sync"

// InflightSet serializes reconciliation per booking within this process.
// A booking whose verification is already running is skipped, not queued;
// whoever holds the slot settles it for everyone.
type InflightSet struct {
	mu      sync.Mutex
	entries map[string]struct{}
}

func NewInflightSet() *InflightSet {
	return &InflightSet{entries: make(map[string]struct{})}
}

// TryAcquire claims the reconciliation slot for a booking. It returns
// false when another caller already holds it.
func (s *InflightSet) TryAcquire(bookingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.entries[bookingID]; held {
		return false
	}
	s.entries[bookingID] = struct{}{}
	return true
}

// Release frees the slot. Safe to call for a slot that was never held.
func (s *InflightSet) Release(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, bookingID)
}

// Size returns the number of verifications currently in flight
func (s *InflightSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
