package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starquery/starquery/internal/query"
)

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestQueryEndpointReturnsRows(t *testing.T) {
	engine := &fakeEngine{result: query.Result{
		Columns:  []string{"total"},
		Rows:     []query.Row{{"total": int64(5)}},
		RowCount: 1,
	}}
	handler := NewHandler(testConfig(), testDeps(t, engine))

	rr := postJSON(t, handler, "/v1/query", `{"sql": "SELECT COUNT(*) AS total FROM transaction_fact"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var response queryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.RowCount != 1 || len(response.Columns) != 1 || response.Columns[0] != "total" {
		t.Fatalf("response = %+v", response)
	}
	if response.AppliedRowCap != 1000 {
		t.Fatalf("AppliedRowCap = %d, want 1000", response.AppliedRowCap)
	}
}

func TestQueryEndpointRejectsForbiddenKeyword(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewHandler(testConfig(), testDeps(t, engine))

	rr := postJSON(t, handler, "/v1/query", `{"sql": "DROP TABLE dim_user"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "FORBIDDEN_KEYWORD") {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if engine.calls != 0 {
		t.Fatalf("engine calls = %d, want 0", engine.calls)
	}
}

func TestQueryEndpointRejectsUnknownRelation(t *testing.T) {
	handler := NewHandler(testConfig(), testDeps(t, &fakeEngine{}))

	rr := postJSON(t, handler, "/v1/query", `{"sql": "SELECT * FROM secret_table"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "UNKNOWN_RELATION") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestQueryEndpointMapsFailureKinds(t *testing.T) {
	tests := []struct {
		kind       query.FailureKind
		wantStatus int
		wantCode   string
	}{
		{query.FailureTimeout, http.StatusGatewayTimeout, "QUERY_TIMEOUT"},
		{query.FailureRelationNotFound, http.StatusBadRequest, "RELATION_NOT_FOUND"},
		{query.FailureSyntaxOrBinding, http.StatusBadRequest, "SYNTAX_OR_BINDING"},
		{query.FailureStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
		{query.FailureUnknown, http.StatusInternalServerError, "QUERY_FAILED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			engine := &fakeEngine{err: query.NewError(tt.kind, "boom")}
			handler := NewHandler(testConfig(), testDeps(t, engine))

			rr := postJSON(t, handler, "/v1/query", `{"sql": "SELECT amount FROM transaction_fact"}`)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantCode) {
				t.Fatalf("body = %s, want code %s", rr.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestQueryEndpointRequiresSQL(t *testing.T) {
	handler := NewHandler(testConfig(), testDeps(t, &fakeEngine{}))

	rr := postJSON(t, handler, "/v1/query", `{"sql": "   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SQL_REQUIRED") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestQueryEndpointRejectsUnknownFields(t *testing.T) {
	handler := NewHandler(testConfig(), testDeps(t, &fakeEngine{}))

	rr := postJSON(t, handler, "/v1/query", `{"sql": "SELECT 1", "files": []}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INVALID_JSON") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}
