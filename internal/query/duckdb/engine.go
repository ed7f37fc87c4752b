// Package duckdb executes validated statements against a DuckDB warehouse
// whose tables are views over parquet objects in the gold layer.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/starquery/starquery/internal/query"
)

type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

type Options struct {
	// Path is the database location; empty means in-memory.
	Path string
	// Views maps table names to parquet sources, either s3:// URLs or local
	// paths. Each becomes a CREATE OR REPLACE VIEW at open time.
	Views map[string]string
	S3    *S3Options

	MaxConcurrency int
	AcquireTimeout time.Duration
}

type Engine struct {
	db             *sql.DB
	slots          chan struct{}
	acquireTimeout time.Duration
}

func Open(ctx context.Context, opts Options) (*Engine, error) {
	if len(opts.Views) == 0 {
		return nil, fmt.Errorf("at least one view source is required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}

	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxConcurrency)

	if opts.S3 != nil {
		if err := configureS3(ctx, db, *opts.S3); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	for tableName, source := range opts.Views {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteString(source))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	return &Engine{
		db:             db,
		slots:          make(chan struct{}, opts.MaxConcurrency),
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, query.NewError(query.FailureSyntaxOrBinding, "sql is required")
	}
	if request.RowLimit > 0 {
		// The newline keeps the closing paren out of any trailing -- comment.
		sqlText = fmt.Sprintf("SELECT * FROM (%s\n) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return query.Result{}, err
	}
	defer release()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{Duration: time.Since(start)}, classify(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{Duration: time.Since(start)}, classify(ctx, err)
	}

	resultRows := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{Duration: time.Since(start)}, classify(ctx, err)
		}
		rowMap := make(query.Row, len(columns))
		for i, column := range columns {
			rowMap[column] = coerceValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return query.Result{Duration: time.Since(start)}, classify(ctx, err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(e.acquireTimeout)
	defer timer.Stop()

	select {
	case e.slots <- struct{}{}:
		return func() { <-e.slots }, nil
	case <-ctx.Done():
		return nil, classify(ctx, ctx.Err())
	case <-timer.C:
		return nil, query.NewError(query.FailureStorageUnavailable, "warehouse is saturated, no execution slot within %s", e.acquireTimeout)
	}
}

func configureS3(ctx context.Context, db *sql.DB, opts S3Options) error {
	statements := []string{
		"INSTALL httpfs",
		"LOAD httpfs",
		fmt.Sprintf("SET s3_endpoint=%s", quoteString(opts.Endpoint)),
		fmt.Sprintf("SET s3_region=%s", quoteString(opts.Region)),
		fmt.Sprintf("SET s3_access_key_id=%s", quoteString(opts.AccessKeyID)),
		fmt.Sprintf("SET s3_secret_access_key=%s", quoteString(opts.SecretAccessKey)),
		fmt.Sprintf("SET s3_use_ssl=%t", opts.UseSSL),
		"SET s3_url_style='path'",
	}
	for _, statement := range statements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("configure s3 access: %w", err)
		}
	}
	return nil
}

// coerceValue narrows driver values to {nil, int64, float64, string, bool,
// time.Time}. Anything outside the set is rendered as a string rather than
// leaked to callers.
func coerceValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case int64, float64, string, bool, time.Time:
		return typed
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case uint64:
		return int64(typed)
	case float32:
		return float64(typed)
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(typed)
	}
}

func classify(ctx context.Context, err error) *query.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return query.NewError(query.FailureTimeout, "execution exceeded its deadline")
	}

	message := err.Error()
	lowered := strings.ToLower(message)
	switch {
	case strings.Contains(lowered, "does not exist") || strings.Contains(message, "Table with name"):
		return query.NewError(query.FailureRelationNotFound, "%s", message)
	case strings.Contains(message, "Parser Error") || strings.Contains(message, "Binder Error") || strings.Contains(lowered, "syntax error"):
		return query.NewError(query.FailureSyntaxOrBinding, "%s", message)
	case strings.Contains(lowered, "io error") || strings.Contains(lowered, "http") || strings.Contains(lowered, "connection") || strings.Contains(lowered, "could not read"):
		return query.NewError(query.FailureStorageUnavailable, "%s", message)
	default:
		return query.NewError(query.FailureUnknown, "%s", message)
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
