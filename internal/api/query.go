package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/starquery/starquery/internal/query"
	"github.com/starquery/starquery/internal/sqlguard"
)

type queryRequest struct {
	SQL       string `json:"sql"`
	RowLimit  int    `json:"row_limit"`
	TimeoutMs int    `json:"timeout_ms"`
}

type queryResponse struct {
	Columns       []string       `json:"columns"`
	Rows          []query.Row    `json:"rows"`
	RowCount      int            `json:"row_count"`
	AppliedRowCap int            `json:"applied_row_cap"`
	CacheHit      bool           `json:"cache_hit"`
	Stats         map[string]any `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	outcome, err := deps.Queries.ValidateAndExecute(r.Context(), request.SQL, request.RowLimit, time.Duration(request.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "query pipeline failed", true, map[string]any{"details": err.Error()})
		return
	}

	switch {
	case outcome.Rejected != nil:
		writeRejection(w, r, outcome.Rejected)
	case outcome.Failure != nil:
		writeExecutionFailure(w, r, outcome.Failure)
	default:
		writeJSON(w, http.StatusOK, queryResponse{
			Columns:       outcome.Result.Columns,
			Rows:          outcome.Result.Rows,
			RowCount:      outcome.Result.RowCount,
			AppliedRowCap: outcome.AppliedRowCap,
			CacheHit:      outcome.CacheHit,
			Stats: map[string]any{
				"duration_ms": outcome.Result.Duration.Milliseconds(),
			},
		})
	}
}

func writeRejection(w http.ResponseWriter, r *http.Request, verdict *sqlguard.Verdict) {
	extra := map[string]any{}
	if verdict.Detail != "" {
		extra["detail"] = verdict.Detail
	}
	writeError(r.Context(), w, http.StatusBadRequest, rejectionCode(verdict.Reason), "statement rejected by validation", false, extra)
}

func rejectionCode(reason sqlguard.Reason) string {
	switch reason {
	case sqlguard.ReasonEmpty:
		return "SQL_EMPTY"
	case sqlguard.ReasonMultipleStatements:
		return "MULTIPLE_STATEMENTS"
	case sqlguard.ReasonNotAReadQuery:
		return "NOT_A_READ_QUERY"
	case sqlguard.ReasonForbiddenKeyword:
		return "FORBIDDEN_KEYWORD"
	case sqlguard.ReasonUnknownRelation:
		return "UNKNOWN_RELATION"
	default:
		return "SQL_REJECTED"
	}
}

func writeExecutionFailure(w http.ResponseWriter, r *http.Request, failure *query.Error) {
	switch failure.Kind {
	case query.FailureTimeout:
		writeError(r.Context(), w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", failure.Message, true, nil)
	case query.FailureRelationNotFound:
		writeError(r.Context(), w, http.StatusBadRequest, "RELATION_NOT_FOUND", failure.Message, false, nil)
	case query.FailureSyntaxOrBinding:
		writeError(r.Context(), w, http.StatusBadRequest, "SYNTAX_OR_BINDING", failure.Message, false, nil)
	case query.FailureStorageUnavailable:
		writeError(r.Context(), w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", failure.Message, true, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_FAILED", failure.Message, true, nil)
	}
}
