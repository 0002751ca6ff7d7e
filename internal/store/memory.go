package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a simple in-memory store useful for tests and early
// development. It mirrors the aggregation semantics of the SQL backends.

type MemoryStore struct {
	mu sync.Mutex

	// Now is injectable for deterministic timestamps in tests.
	Now func() time.Time

	Calls      []memoryCall
	Events     []memoryEvent
	Selections []memorySelection
	Transfers  []memoryTransfer
}

type memoryCall struct {
	CallControlID string
	FromNumber    string
	ToNumber      string
	CreatedAt     string
}

type memoryEvent struct {
	CallControlID string
	EventType     string
	TS            string
	PayloadJSON   string
}

type memorySelection struct {
	CallControlID string
	Digit         string
	Department    string
	TS            string
}

type memoryTransfer struct {
	CallControlID string
	ToSIPURI      string
	Status        string
	TS            string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{Now: time.Now} }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) SaveCallIfNew(ctx context.Context, callControlID, fromNumber, toNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c.CallControlID == callControlID {
			return nil
		}
	}
	m.Calls = append(m.Calls, memoryCall{
		CallControlID: callControlID,
		FromNumber:    fromNumber,
		ToNumber:      toNumber,
		CreatedAt:     Timestamp(m.Now()),
	})
	return nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, callControlID, eventType string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, memoryEvent{
		CallControlID: callControlID,
		EventType:     eventType,
		TS:            Timestamp(m.Now()),
		PayloadJSON:   string(payload),
	})
	return nil
}

func (m *MemoryStore) AppendIVRSelection(ctx context.Context, callControlID, digit, department string) error {
	if !ValidDepartment(department) {
		return fmt.Errorf("%w: %q", ErrInvalidDepartment, department)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Selections = append(m.Selections, memorySelection{
		CallControlID: callControlID,
		Digit:         digit,
		Department:    department,
		TS:            Timestamp(m.Now()),
	})
	return nil
}

func (m *MemoryStore) AppendTransfer(ctx context.Context, callControlID, destinationURI, status string) error {
	if !ValidTransferStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transfers = append(m.Transfers, memoryTransfer{
		CallControlID: callControlID,
		ToSIPURI:      destinationURI,
		Status:        status,
		TS:            Timestamp(m.Now()),
	})
	return nil
}

func (m *MemoryStore) CallStats(ctx context.Context, since time.Time, department string) (CallStats, error) {
	cutoff := Timestamp(since)
	m.mu.Lock()
	defer m.mu.Unlock()

	inWindow := map[string]bool{}
	for _, c := range m.Calls {
		if c.CreatedAt >= cutoff {
			inWindow[c.CallControlID] = true
		}
	}
	selected := map[string]bool{}
	for _, s := range m.Selections {
		if !inWindow[s.CallControlID] {
			continue
		}
		if department != "" && s.Department != department {
			continue
		}
		selected[s.CallControlID] = true
	}

	var out CallStats
	if department == "" {
		out.Volume = len(inWindow)
		out.WithSelection = len(selected)
	} else {
		out.Volume = len(selected)
		out.WithSelection = len(selected)
	}

	for _, t := range m.Transfers {
		if !inWindow[t.CallControlID] {
			continue
		}
		if department != "" && !selected[t.CallControlID] {
			continue
		}
		out.TransferTotal++
		if t.Status == TransferStatusSuccess {
			out.TransferSuccess++
		}
	}
	return out, nil
}

func (m *MemoryStore) VolumeTrend(ctx context.Context, since time.Time, department string) ([]TrendPoint, error) {
	cutoff := Timestamp(since)
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay := map[string]int{}
	for _, c := range m.Calls {
		if c.CreatedAt < cutoff {
			continue
		}
		if department != "" && !m.matchesDeptOrUnselectedLocked(c.CallControlID, department) {
			continue
		}
		byDay[c.CreatedAt[:10]]++
	}

	out := make([]TrendPoint, 0, len(byDay))
	for day, n := range byDay {
		out = append(out, TrendPoint{Day: day, Calls: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}

func (m *MemoryStore) RecentCalls(ctx context.Context, limit int, department string) ([]RecentCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecentCall, 0)
	for _, c := range m.Calls {
		rc := RecentCall{CallControlID: c.CallControlID, CreatedAt: c.CreatedAt}
		for _, s := range m.Selections {
			if s.CallControlID == c.CallControlID {
				rc.Department = s.Department
				rc.Digit = s.Digit
				break
			}
		}
		if department != "" && rc.Department != department {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// matchesDeptOrUnselectedLocked mirrors the trend query: a department filter
// keeps calls routed to that department plus calls with no selection at all.
func (m *MemoryStore) matchesDeptOrUnselectedLocked(callControlID, department string) bool {
	hasSelection := false
	for _, s := range m.Selections {
		if s.CallControlID != callControlID {
			continue
		}
		hasSelection = true
		if s.Department == department {
			return true
		}
	}
	return !hasSelection
}
