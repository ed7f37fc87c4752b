package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/starquery/starquery/internal/nl2sql"
	"github.com/starquery/starquery/internal/observability"
)

type generateRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"`
	RowLimit int    `json:"row_limit"`
}

type generateValidation struct {
	Allowed       bool   `json:"allowed"`
	NormalizedSQL string `json:"normalized_sql,omitempty"`
	AppliedRowCap int    `json:"applied_row_cap,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type generateResponse struct {
	SQL         string             `json:"sql"`
	Explanation string             `json:"explanation"`
	Model       string             `json:"model"`
	Validation  generateValidation `json:"validation"`
}

// handleGenerate translates a question into SQL and reports the validation
// verdict alongside it. The generated statement is never executed here:
// callers review it and submit to /v1/query themselves.
func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATE_NOT_CONFIGURED", "SQL generation is not configured", false, nil)
		return
	}
	if deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var request generateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid generate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	observability.IncrementGenerateRequest()
	generated, err := deps.Translator.Translate(r.Context(), nl2sql.Request{Question: request.Question, Model: request.Model})
	if err != nil {
		observability.IncrementGenerateFailure()
		writeError(r.Context(), w, http.StatusBadGateway, "GENERATE_FAILED", "SQL generation failed", true, map[string]any{"details": err.Error()})
		return
	}

	verdict := deps.Queries.ValidateOnly(generated.SQL, request.RowLimit)
	validation := generateValidation{Allowed: verdict.Allowed}
	if verdict.Allowed {
		validation.NormalizedSQL = verdict.NormalizedSQL
		validation.AppliedRowCap = verdict.AppliedRowCap
	} else {
		validation.Reason = string(verdict.Reason)
		validation.Detail = verdict.Detail
	}

	writeJSON(w, http.StatusOK, generateResponse{
		SQL:         generated.SQL,
		Explanation: generated.Explanation,
		Model:       generated.Model,
		Validation:  validation,
	})
}
