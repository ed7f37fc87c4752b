package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/starquery/starquery/internal/audit"
	"github.com/starquery/starquery/internal/observability"
	"github.com/starquery/starquery/internal/sqlguard"
)

// ResultCache stores materialized results keyed by normalized statement. A
// miss is not an error; cache failures degrade to executing the statement.
type ResultCache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Put(ctx context.Context, key string, result Result)
}

type TimeoutPolicy struct {
	Default time.Duration
	Max     time.Duration
}

// Outcome is the tri-state result of running a candidate statement through
// the full pipeline. Exactly one of Rejected, Result and Failure is set.
type Outcome struct {
	Rejected      *sqlguard.Verdict
	Result        *Result
	Failure       *Error
	NormalizedSQL string
	AppliedRowCap int
	CacheHit      bool
}

// Service validates candidate SQL, executes what passes and records every
// attempt. Cache and Audit are optional; a nil Cache disables result reuse.
type Service struct {
	validator *sqlguard.Validator
	engine    Engine
	cache     ResultCache
	audit     audit.Recorder
	logger    *slog.Logger
	timeouts  TimeoutPolicy
}

func NewService(validator *sqlguard.Validator, engine Engine, cache ResultCache, recorder audit.Recorder, logger *slog.Logger, timeouts TimeoutPolicy) (*Service, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if timeouts.Default <= 0 || timeouts.Max <= 0 || timeouts.Default > timeouts.Max {
		return nil, fmt.Errorf("invalid timeout policy: default %s max %s", timeouts.Default, timeouts.Max)
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		validator: validator,
		engine:    engine,
		cache:     cache,
		audit:     recorder,
		logger:    logger,
		timeouts:  timeouts,
	}, nil
}

// ValidateOnly runs validation without touching the cache or the engine.
// Used to preview generated statements.
func (s *Service) ValidateOnly(candidate string, requestedLimit int) sqlguard.Verdict {
	return s.validator.Validate(candidate, requestedLimit)
}

// ValidateAndExecute runs one candidate statement through validation, the
// result cache and the engine. requestedLimit <= 0 means no caller preference;
// timeout <= 0 means the policy default. The returned error is reserved for
// conditions outside the pipeline; statement failures land in Outcome.Failure.
func (s *Service) ValidateAndExecute(ctx context.Context, candidate string, requestedLimit int, timeout time.Duration) (Outcome, error) {
	verdict := s.validator.Validate(candidate, requestedLimit)
	if !verdict.Allowed {
		observability.IncrementRejection(string(verdict.Reason))
		observability.ObserveQuery("rejected", 0)
		s.recordAudit(ctx, audit.Entry{
			SQL:          candidate,
			Allowed:      false,
			RejectReason: string(verdict.Reason),
		})
		s.logger.Info("statement rejected", "reason", verdict.Reason, "detail", verdict.Detail)
		return Outcome{Rejected: &verdict}, nil
	}

	outcome := Outcome{
		NormalizedSQL: verdict.NormalizedSQL,
		AppliedRowCap: verdict.AppliedRowCap,
	}

	key := cacheKey(verdict.NormalizedSQL, verdict.AppliedRowCap)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			observability.IncrementCacheHit()
			observability.ObserveQuery("cache_hit", cached.Duration)
			s.recordAudit(ctx, audit.Entry{
				SQL:      verdict.NormalizedSQL,
				Allowed:  true,
				RowCount: cached.RowCount,
				CacheHit: true,
			})
			outcome.Result = &cached
			outcome.CacheHit = true
			return outcome, nil
		}
		observability.IncrementCacheMiss()
	}

	if timeout <= 0 {
		timeout = s.timeouts.Default
	}
	if timeout > s.timeouts.Max {
		timeout = s.timeouts.Max
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.engine.Execute(execCtx, Request{
		SQL:      verdict.NormalizedSQL,
		RowLimit: verdict.AppliedRowCap,
	})
	if err != nil {
		failure := AsError(err)
		observability.ObserveQuery(string(failure.Kind), result.Duration)
		s.recordAudit(ctx, audit.Entry{
			SQL:         verdict.NormalizedSQL,
			Allowed:     true,
			FailureKind: string(failure.Kind),
			Duration:    result.Duration,
		})
		s.logger.Warn("statement failed", "kind", failure.Kind, "error", failure.Message)
		outcome.Failure = failure
		return outcome, nil
	}

	observability.ObserveQuery("ok", result.Duration)
	observability.ObserveQueryRows(result.RowCount)
	s.recordAudit(ctx, audit.Entry{
		SQL:      verdict.NormalizedSQL,
		Allowed:  true,
		RowCount: result.RowCount,
		Duration: result.Duration,
	})
	if s.cache != nil {
		s.cache.Put(ctx, key, result)
	}

	outcome.Result = &result
	return outcome, nil
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	entry.OccurredAt = time.Now().UTC()
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", "error", err)
	}
}

func cacheKey(normalizedSQL string, rowCap int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d\n%s", rowCap, normalizedSQL)))
	return "starquery:result:" + hex.EncodeToString(sum[:])
}
