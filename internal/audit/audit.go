// Package audit records the outcome of every validated execution so operators
// can review what the generator produced and what the warehouse ran.
package audit

import (
	"context"
	"time"
)

type Entry struct {
	SQL          string
	Allowed      bool
	RejectReason string
	FailureKind  string
	RowCount     int
	Duration     time.Duration
	CacheHit     bool
	OccurredAt   time.Time
}

type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// NopRecorder discards entries. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
