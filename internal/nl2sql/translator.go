// Package nl2sql turns natural-language questions into candidate SQL. Output
// is untrusted: every generated statement must pass validation before it gets
// anywhere near the warehouse.
package nl2sql

import "context"

type Request struct {
	Question string `json:"question"`
	// Model optionally overrides the translator's configured model.
	Model string `json:"model,omitempty"`
}

type Result struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
