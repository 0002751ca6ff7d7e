package store

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence contract for call analytics records.
//
// It MUST be append-only: no Update/Delete methods are provided by design.
// The store is an observability record, not the source of truth for routing
// state, so callers are expected to log write failures and continue.

type Store interface {
	// SaveCallIfNew records a call once; repeats for the same id are no-ops.
	SaveCallIfNew(ctx context.Context, callControlID, fromNumber, toNumber string) error

	// AppendEvent records one webhook notification. Duplicates are allowed
	// and expected; the provider may re-deliver.
	AppendEvent(ctx context.Context, callControlID, eventType string, payload []byte) error

	// AppendIVRSelection records a recognized menu digit and its department.
	// Returns ErrInvalidDepartment for departments outside the fixed set.
	AppendIVRSelection(ctx context.Context, callControlID, digit, department string) error

	// AppendTransfer records one transfer attempt outcome.
	// Returns ErrInvalidStatus for statuses other than success/error.
	AppendTransfer(ctx context.Context, callControlID, destinationURI, status string) error

	Reader

	Close() error
}

// Reader is the read-side contract consumed by the metrics service.
type Reader interface {
	// CallStats aggregates calls created at or after since.
	CallStats(ctx context.Context, since time.Time, department string) (CallStats, error)

	// VolumeTrend returns per-day call counts since the cutoff, newest day first.
	VolumeTrend(ctx context.Context, since time.Time, department string) ([]TrendPoint, error)

	// RecentCalls returns the newest calls joined with their IVR selection.
	RecentCalls(ctx context.Context, limit int, department string) ([]RecentCall, error)
}

var (
	ErrInvalidDepartment = errors.New("store: invalid department")
	ErrInvalidStatus     = errors.New("store: invalid transfer status")
)

const (
	TransferStatusSuccess = "success"
	TransferStatusError   = "error"
)

func ValidDepartment(d string) bool {
	switch d {
	case "sales", "support", "porting":
		return true
	default:
		return false
	}
}

func ValidTransferStatus(s string) bool {
	return s == TransferStatusSuccess || s == TransferStatusError
}

// Timestamp renders the canonical stored representation: UTC with an explicit
// Z marker, comparable lexicographically.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
