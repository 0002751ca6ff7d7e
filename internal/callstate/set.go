// Package callstate tracks which calls have already been routed or have
// ended, so duplicate or late webhook deliveries never trigger a second
// transfer. Membership is monotonic: ids are added once and never removed.
package callstate

import (
	"context"
	"sync"
)

// Set is a concurrency-safe, add-only membership set keyed by call control id.
type Set interface {
	Add(ctx context.Context, callControlID string) error
	Contains(ctx context.Context, callControlID string) (bool, error)
}

// MemorySet keeps membership in process memory. State is lost on restart;
// configure the Redis backend when that matters.
type MemorySet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{ids: make(map[string]struct{})}
}

func (s *MemorySet) Add(ctx context.Context, callControlID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[callControlID] = struct{}{}
	return nil
}

func (s *MemorySet) Contains(ctx context.Context, callControlID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[callControlID]
	return ok, nil
}
