package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	writeKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|create|alter|drop|truncate|grant|revoke|copy|call|do|vacuum|lock)\b`)
	dollarTag    = regexp.MustCompile(`^\$[A-Za-z_]*\$`)
)

// ErrNotReadOnly is returned by ReadOnly executors for statements that could
// change data.
type ErrNotReadOnly struct {
	Reason string
}

func (e *ErrNotReadOnly) Error() string {
	return "only read-only SELECT/WITH queries are allowed: " + e.Reason
}

// ReadOnly rejects anything but a single SELECT or WITH statement before it
// reaches next.
func ReadOnly(next Executor) Executor {
	return readOnlyExecutor{next: next}
}

type readOnlyExecutor struct {
	next Executor
}

func (e readOnlyExecutor) Execute(ctx context.Context, sql string) ([]Row, error) {
	if err := CheckReadOnly(sql); err != nil {
		return nil, err
	}
	return e.next.Execute(ctx, sql)
}

func CheckReadOnly(sql string) error {
	blanked, err := blankOut(sql)
	if err != nil {
		return &ErrNotReadOnly{Reason: err.Error()}
	}
	stripped := stripTrailingSemicolons(blanked)
	if stripped == "" {
		return &ErrNotReadOnly{Reason: "empty statement"}
	}
	if strings.Contains(stripped, ";") {
		return &ErrNotReadOnly{Reason: "multiple statements"}
	}
	lower := strings.ToLower(stripped)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return &ErrNotReadOnly{Reason: "statement must start with SELECT or WITH"}
	}
	if keyword := writeKeyword.FindString(stripped); keyword != "" {
		return &ErrNotReadOnly{Reason: fmt.Sprintf("statement contains %s", strings.ToUpper(keyword))}
	}
	return nil
}

// blankOut scans sql once, left to right. Comments become a space, string
// literals become '' and quoted identifiers become "", so a marker inside
// one construct is never read as the start of another. Unterminated
// constructs are an error.
func blankOut(sql string) (string, error) {
	var out strings.Builder
	out.Grow(len(sql))
	for i := 0; i < len(sql); {
		rest := sql[i:]
		switch {
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return out.String(), nil
			}
			out.WriteByte(' ')
			i += end
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated comment")
			}
			out.WriteByte(' ')
			i += end + 4
		case rest[0] == '\'':
			n, err := quotedLength(rest, '\'', escapeString(sql, i))
			if err != nil {
				return "", err
			}
			out.WriteString("''")
			i += n
		case rest[0] == '"':
			n, err := quotedLength(rest, '"', false)
			if err != nil {
				return "", err
			}
			out.WriteString(`""`)
			i += n
		case rest[0] == '$' && dollarTag.MatchString(rest) && !identByte(sql, i-1):
			tag := dollarTag.FindString(rest)
			end := strings.Index(rest[len(tag):], tag)
			if end < 0 {
				return "", fmt.Errorf("unterminated dollar-quoted string")
			}
			out.WriteString("''")
			i += len(tag) + end + len(tag)
		default:
			out.WriteByte(rest[0])
			i++
		}
	}
	return out.String(), nil
}

// quotedLength returns the length of the quoted run at the start of s,
// treating a doubled quote as an escape, and a backslash too when
// backslashEscapes is set.
func quotedLength(s string, quote byte, backslashEscapes bool) (int, error) {
	for i := 1; i < len(s); i++ {
		switch {
		case backslashEscapes && s[i] == '\\':
			i++
		case s[i] == quote:
			if i+1 < len(s) && s[i+1] == quote {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	if quote == '"' {
		return 0, fmt.Errorf("unterminated quoted identifier")
	}
	return 0, fmt.Errorf("unterminated string literal")
}

// escapeString reports whether the quote at sql[i] opens a Postgres E'...'
// string, where backslash escapes the next character.
func escapeString(sql string, i int) bool {
	return i > 0 && (sql[i-1] == 'E' || sql[i-1] == 'e') && !identByte(sql, i-2)
}

func identByte(sql string, i int) bool {
	if i < 0 || i >= len(sql) {
		return false
	}
	c := sql[i]
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
