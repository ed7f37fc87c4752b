package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request is a validated, row-capped statement ready for execution. SQL must
// already carry its limiting clause; RowLimit is the engine-side backstop.
type Request struct {
	SQL      string
	RowLimit int
}

// Row maps column names to values from the closed set
// {nil, int64, float64, string, bool, time.Time}.
type Row map[string]any

// Result is the tabular outcome of one execution. Columns preserves the
// statement's projection order, which Row by itself cannot.
type Result struct {
	Columns  []string      `json:"columns"`
	Rows     []Row         `json:"rows"`
	RowCount int           `json:"row_count"`
	Duration time.Duration `json:"-"`
}

type FailureKind string

const (
	FailureTimeout            FailureKind = "timeout"
	FailureRelationNotFound   FailureKind = "relation_not_found"
	FailureSyntaxOrBinding    FailureKind = "syntax_or_binding"
	FailureStorageUnavailable FailureKind = "storage_unavailable"
	FailureUnknown            FailureKind = "unknown"
)

// Error is the structured execution failure. Kind is the only field callers
// may branch on.
type Error struct {
	Kind    FailureKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind FailureKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError coerces any execution error into a *Error, defaulting to Unknown.
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return &Error{Kind: FailureUnknown, Message: err.Error()}
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
