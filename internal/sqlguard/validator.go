// Package sqlguard classifies candidate SQL produced by an untrusted
// generator as safe to run or rejected. Validation is purely lexical: it
// proves a statement cannot mutate state, cannot chain hidden statements and
// cannot return unbounded rows, nothing more. Statements that pass but are
// still malformed are caught by the engine at execution time.
package sqlguard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starquery/starquery/internal/schema"
)

type Reason string

const (
	ReasonEmpty              Reason = "empty"
	ReasonMultipleStatements Reason = "multiple_statements"
	ReasonNotAReadQuery      Reason = "not_a_read_query"
	ReasonForbiddenKeyword   Reason = "forbidden_keyword"
	ReasonUnknownRelation    Reason = "unknown_relation"
)

// Verdict is the outcome of validating one candidate statement. Reason is the
// only field callers may branch on; Detail may echo fragments of the input.
type Verdict struct {
	Allowed       bool
	NormalizedSQL string
	AppliedRowCap int
	Reason        Reason
	Detail        string
}

type Limits struct {
	DefaultRowLimit int
	MaxRowLimit     int
}

// deniedKeywords disqualify a statement wherever they appear outside string
// and comment context. The list covers the mutating SQL verbs plus the DuckDB
// statements that reach filesystems, extensions and session state.
var deniedKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"CREATE": {}, "TRUNCATE": {}, "GRANT": {}, "REVOKE": {}, "ATTACH": {},
	"DETACH": {}, "COPY": {}, "EXPORT": {}, "CALL": {}, "PRAGMA": {},
	"SET": {}, "INSTALL": {}, "FORCE": {}, "LOAD": {}, "MERGE": {}, "EXECUTE": {},
}

// reservedWords are keywords that may directly precede an opening parenthesis
// without forming a function call, e.g. "IN (SELECT ...)".
var reservedWords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "JOIN": {}, "ON": {}, "AND": {},
	"OR": {}, "NOT": {}, "IN": {}, "EXISTS": {}, "AS": {}, "UNION": {},
	"ALL": {}, "ANY": {}, "SOME": {}, "GROUP": {}, "BY": {}, "ORDER": {},
	"HAVING": {}, "LIMIT": {}, "OFFSET": {}, "WITH": {}, "CROSS": {},
	"INNER": {}, "LEFT": {}, "RIGHT": {}, "FULL": {}, "OUTER": {},
	"LATERAL": {}, "USING": {}, "VALUES": {}, "CASE": {}, "WHEN": {},
	"THEN": {}, "ELSE": {}, "END": {}, "DISTINCT": {}, "INTERSECT": {},
	"EXCEPT": {}, "BETWEEN": {}, "LIKE": {}, "ILIKE": {}, "IS": {},
	"NULL": {}, "QUALIFY": {}, "WINDOW": {}, "OVER": {},
}

type Validator struct {
	catalog *schema.Catalog
	limits  Limits
}

func NewValidator(catalog *schema.Catalog, limits Limits) (*Validator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	if limits.MaxRowLimit <= 0 {
		return nil, fmt.Errorf("max row limit must be positive")
	}
	if limits.DefaultRowLimit <= 0 || limits.DefaultRowLimit > limits.MaxRowLimit {
		return nil, fmt.Errorf("default row limit must be between 1 and the max row limit")
	}
	return &Validator{catalog: catalog, limits: limits}, nil
}

// Validate classifies one candidate statement. It is a pure function of the
// candidate text, the requested limit and the immutable catalog, so repeated
// calls with the same input yield the same verdict.
func (v *Validator) Validate(candidate string, requestedLimit int) Verdict {
	trimmed := stripTrailingSemicolons(candidate)
	if trimmed == "" {
		return rejected(ReasonEmpty, "statement is empty")
	}

	tokens := scanTokens(trimmed)
	if len(tokens) == 0 {
		return rejected(ReasonEmpty, "statement contains no SQL")
	}

	for _, tok := range tokens {
		if tok.isPunct(";") {
			return rejected(ReasonMultipleStatements, "statement separator is not allowed")
		}
	}

	lead := tokens[0]
	if lead.kind != tokenWord || (lead.upper != "SELECT" && lead.upper != "WITH") {
		return rejected(ReasonNotAReadQuery, fmt.Sprintf("statement must start with SELECT or WITH, got %q", lead.text))
	}
	if lead.upper == "WITH" && !hasTopLevelSelect(tokens[1:]) {
		return rejected(ReasonNotAReadQuery, "WITH clause must terminate in a SELECT")
	}

	for _, tok := range tokens {
		if tok.kind != tokenWord {
			continue
		}
		if _, denied := deniedKeywords[tok.upper]; denied {
			return rejected(ReasonForbiddenKeyword, tok.upper)
		}
	}

	if name, ok := checkRelations(tokens, v.catalog); !ok {
		return rejected(ReasonUnknownRelation, name)
	}

	normalized, rowCap, err := applyRowCap(trimmed, tokens, requestedLimit, v.limits)
	if err != nil {
		return rejected(ReasonNotAReadQuery, err.Error())
	}
	return Verdict{Allowed: true, NormalizedSQL: normalized, AppliedRowCap: rowCap}
}

func rejected(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func hasTopLevelSelect(tokens []token) bool {
	for _, tok := range tokens {
		if tok.depth == 0 && tok.isWord("SELECT") {
			return true
		}
	}
	return false
}

// checkRelations is a best-effort scan of FROM/JOIN targets against the
// catalog and lexically collected CTE names. Derived tables pass through to
// the engine; table functions and string-literal paths in relation position
// are rejected outright since they can reach files the catalog never named.
func checkRelations(tokens []token, catalog *schema.Catalog) (string, bool) {
	ctes := cteNames(tokens)
	var callFrames []bool

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.isPunct("("):
			call := false
			if i > 0 {
				prev := tokens[i-1]
				if prev.kind == tokenWord || prev.kind == tokenQuotedIdent {
					if _, reserved := reservedWords[prev.upper]; !reserved {
						call = true
					}
				}
			}
			callFrames = append(callFrames, call)
			continue
		case tok.isPunct(")"):
			if len(callFrames) > 0 {
				callFrames = callFrames[:len(callFrames)-1]
			}
			continue
		}
		if tok.kind != tokenWord || (tok.upper != "FROM" && tok.upper != "JOIN") {
			continue
		}
		// FROM inside a function call, e.g. EXTRACT(MONTH FROM d), does
		// not introduce a relation.
		if len(callFrames) > 0 && callFrames[len(callFrames)-1] {
			continue
		}
		if name, ok := checkRelationList(tokens, i+1, catalog, ctes); !ok {
			return name, false
		}
	}
	return "", true
}

// checkRelationList validates the comma-separated relation items following a
// FROM or JOIN keyword.
func checkRelationList(tokens []token, start int, catalog *schema.Catalog, ctes map[string]bool) (string, bool) {
	j := start
	for {
		for j < len(tokens) && tokens[j].kind == tokenWord && (tokens[j].upper == "LATERAL" || tokens[j].upper == "ONLY") {
			j++
		}
		if j >= len(tokens) {
			return "", true
		}
		next := tokens[j]
		switch {
		case next.isPunct("("):
			j = skipToMatchingParen(tokens, j)
		case next.kind == tokenString:
			return next.text, false
		case next.kind == tokenWord || next.kind == tokenQuotedIdent:
			name, last, end, isCall := dottedName(tokens, j)
			if isCall {
				return name, false
			}
			if !catalog.Has(last) && !catalog.Has(name) && !ctes[strings.ToLower(last)] {
				return name, false
			}
			j = end
		default:
			return "", true
		}

		// optional alias, with optional AS and column list
		if j < len(tokens) && tokens[j].isWord("AS") {
			j++
		}
		if j < len(tokens) && (tokens[j].kind == tokenWord || tokens[j].kind == tokenQuotedIdent) {
			if _, reserved := reservedWords[tokens[j].upper]; !reserved {
				j++
			}
		}
		if j < len(tokens) && tokens[j].isPunct("(") {
			j = skipToMatchingParen(tokens, j)
		}
		if j < len(tokens) && tokens[j].isPunct(",") {
			j++
			continue
		}
		return "", true
	}
}

// dottedName consumes an optionally qualified identifier starting at index j.
// Returns the full dotted name, its final segment, the index past the name,
// and whether the name is immediately invoked as a table function.
func dottedName(tokens []token, j int) (full, last string, end int, isCall bool) {
	full = tokens[j].text
	last = tokens[j].text
	end = j + 1
	for end+1 < len(tokens) && tokens[end].isPunct(".") &&
		(tokens[end+1].kind == tokenWord || tokens[end+1].kind == tokenQuotedIdent) {
		full += "." + tokens[end+1].text
		last = tokens[end+1].text
		end += 2
	}
	if end < len(tokens) && tokens[end].isPunct("(") {
		return full, last, end, true
	}
	return full, last, end, false
}

func skipToMatchingParen(tokens []token, open int) int {
	level := 0
	for k := open; k < len(tokens); k++ {
		if tokens[k].isPunct("(") {
			level++
		}
		if tokens[k].isPunct(")") {
			level--
			if level == 0 {
				return k + 1
			}
		}
	}
	return len(tokens)
}

// cteNames collects identifiers bound by "name AS (" or "name (cols) AS (",
// which relation checks must accept even though the catalog never lists them.
func cteNames(tokens []token) map[string]bool {
	names := map[string]bool{}
	for i, tok := range tokens {
		if tok.kind != tokenWord && tok.kind != tokenQuotedIdent {
			continue
		}
		j := i + 1
		if j < len(tokens) && tokens[j].isPunct("(") {
			j = skipToMatchingParen(tokens, j)
		}
		if j+1 < len(tokens) && tokens[j].isWord("AS") && tokens[j+1].isPunct("(") {
			names[strings.ToLower(tok.text)] = true
		}
	}
	return names
}

// applyRowCap enforces the row budget: append a LIMIT when the statement has
// none, lower an existing top-level LIMIT when it exceeds the cap, and never
// raise one. Limiting constructs we cannot rewrite safely are rejected rather
// than guessed at.
func applyRowCap(sqlText string, tokens []token, requested int, limits Limits) (string, int, error) {
	rowCap := requested
	if rowCap <= 0 {
		rowCap = limits.DefaultRowLimit
	}
	if rowCap > limits.MaxRowLimit {
		rowCap = limits.MaxRowLimit
	}

	limitIdx := -1
	for idx, tok := range tokens {
		if tok.depth != 0 || tok.kind != tokenWord {
			continue
		}
		switch tok.upper {
		case "FETCH":
			return "", 0, fmt.Errorf("unsupported row-limiting clause FETCH")
		case "LIMIT":
			limitIdx = idx
		}
	}

	if limitIdx < 0 {
		// Append on a fresh line so a trailing -- comment cannot swallow the
		// clause.
		return sqlText + "\nLIMIT " + strconv.Itoa(rowCap), rowCap, nil
	}
	if limitIdx+1 >= len(tokens) || tokens[limitIdx+1].kind != tokenNumber {
		return "", 0, fmt.Errorf("unsupported LIMIT clause")
	}
	num := tokens[limitIdx+1]
	if strings.Contains(num.text, ".") {
		return "", 0, fmt.Errorf("unsupported LIMIT clause")
	}
	if limitIdx+2 < len(tokens) && tokens[limitIdx+2].isPunct(",") {
		return "", 0, fmt.Errorf("unsupported LIMIT clause")
	}
	existing, err := strconv.Atoi(num.text)
	if err != nil {
		return "", 0, fmt.Errorf("unsupported LIMIT clause")
	}
	if existing <= rowCap {
		return sqlText, existing, nil
	}
	return sqlText[:num.pos] + strconv.Itoa(rowCap) + sqlText[num.end:], rowCap, nil
}
