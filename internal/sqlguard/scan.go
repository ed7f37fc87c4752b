package sqlguard

import "strings"

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenNumber
	tokenString
	tokenQuotedIdent
	tokenPunct
)

// token is a lexical unit of the candidate statement. pos/end are byte offsets
// into the scanned text so the validator can rewrite literals in place.
type token struct {
	kind  tokenKind
	text  string
	upper string
	depth int
	pos   int
	end   int
}

func (t token) isWord(upper string) bool {
	return t.kind == tokenWord && t.upper == upper
}

func (t token) isPunct(text string) bool {
	return t.kind == tokenPunct && t.text == text
}

// scanTokens splits SQL text into tokens with string, quoted-identifier and
// comment awareness. Comments and whitespace produce no tokens; comments also
// do not separate adjacent word characters, so keywords split across comments
// collapse back into a single word token and cannot dodge the denylist.
func scanTokens(sql string) []token {
	var tokens []token
	depth := 0
	separated := true
	i := 0
	n := len(sql)

	for i < n {
		c := sql[i]
		switch {
		case isSpace(c):
			separated = true
			i++
		case c == '-' && i+1 < n && sql[i+1] == '-':
			i += 2
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			level := 1
			for i < n && level > 0 {
				switch {
				case sql[i] == '/' && i+1 < n && sql[i+1] == '*':
					level++
					i += 2
				case sql[i] == '*' && i+1 < n && sql[i+1] == '/':
					level--
					i += 2
				default:
					i++
				}
			}
		case c == '\'':
			start := i
			i++
			for i < n {
				if sql[i] == '\'' {
					if i+1 < n && sql[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			inner := strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(sql[start:i], "'"), "'"), "''", "'")
			tokens = append(tokens, token{kind: tokenString, text: inner, depth: depth, pos: start, end: i})
			separated = true
		case c == '"':
			start := i
			i++
			for i < n {
				if sql[i] == '"' {
					if i+1 < n && sql[i+1] == '"' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			inner := strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(sql[start:i], `"`), `"`), `""`, `"`)
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: inner, depth: depth, pos: start, end: i})
			separated = true
		case c == '$' && i+1 < n && (sql[i+1] == '$' || isWordStart(sql[i+1])):
			body, consumed, ok := scanDollarQuote(sql, i)
			if !ok {
				tokens = append(tokens, token{kind: tokenPunct, text: "$", depth: depth, pos: i, end: i + 1})
				i++
				separated = true
				break
			}
			tokens = append(tokens, token{kind: tokenString, text: body, depth: depth, pos: i, end: consumed})
			i = consumed
			separated = true
		case isWordStart(c):
			start := i
			for i < n && isWordChar(sql[i]) {
				i++
			}
			text := sql[start:i]
			if !separated && len(tokens) > 0 && tokens[len(tokens)-1].kind == tokenWord {
				last := &tokens[len(tokens)-1]
				last.text += text
				last.upper += strings.ToUpper(text)
				last.end = i
			} else {
				tokens = append(tokens, token{kind: tokenWord, text: text, upper: strings.ToUpper(text), depth: depth, pos: start, end: i})
			}
			separated = false
		case isDigit(c):
			start := i
			for i < n && (isDigit(sql[i]) || sql[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: sql[start:i], depth: depth, pos: start, end: i})
			separated = true
		case c == '(':
			tokens = append(tokens, token{kind: tokenPunct, text: "(", depth: depth, pos: i, end: i + 1})
			depth++
			separated = true
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			tokens = append(tokens, token{kind: tokenPunct, text: ")", depth: depth, pos: i, end: i + 1})
			separated = true
			i++
		default:
			tokens = append(tokens, token{kind: tokenPunct, text: string(c), depth: depth, pos: i, end: i + 1})
			separated = true
			i++
		}
	}
	return tokens
}

// scanDollarQuote consumes a $tag$...$tag$ string starting at offset start.
// Returns the quoted body, the offset past the closing tag, and whether a
// complete quote was found.
func scanDollarQuote(sql string, start int) (body string, end int, ok bool) {
	n := len(sql)
	j := start + 1
	for j < n && isWordChar(sql[j]) {
		j++
	}
	if j >= n || sql[j] != '$' {
		return "", 0, false
	}
	tag := sql[start : j+1]
	bodyStart := j + 1
	closing := strings.Index(sql[bodyStart:], tag)
	if closing < 0 {
		return "", 0, false
	}
	return sql[bodyStart : bodyStart+closing], bodyStart + closing + len(tag), true
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordChar(c byte) bool {
	return isWordStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
