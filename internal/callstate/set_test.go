package callstate

import (
	"context"
	"sync"
	"testing"
)

func TestMemorySet_AddIsMonotonicAndIdempotent(t *testing.T) {
	s := NewMemorySet()
	ctx := context.Background()

	ok, err := s.Contains(ctx, "abc")
	if err != nil || ok {
		t.Fatalf("expected empty set, got ok=%v err=%v", ok, err)
	}

	for i := 0; i < 3; i++ {
		if err := s.Add(ctx, "abc"); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	ok, err = s.Contains(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("expected member after add, got ok=%v err=%v", ok, err)
	}
}

func TestMemorySet_ConcurrentDuplicateDeliveries(t *testing.T) {
	s := NewMemorySet()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, "abc")
			_, _ = s.Contains(ctx, "abc")
		}()
	}
	wg.Wait()

	ok, err := s.Contains(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("expected member, got ok=%v err=%v", ok, err)
	}
}
