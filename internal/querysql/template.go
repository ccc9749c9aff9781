// Package querysql checks query templates before they are bound and sent
// to SQLite.
package querysql

import "fmt"

// TemplateError reports a template without exactly one positional parameter.
type TemplateError struct {
	Query string
	Found int
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	return fmt.Sprintf("query template must have exactly one ? placeholder, found %d: %q", e.Found, e.Query)
}

// Validate requires exactly one positional "?" placeholder in q.
func Validate(q string) error {
	if n := CountPlaceholders(q); n != 1 {
		return &TemplateError{Query: q, Found: n}
	}
	return nil
}

// CountPlaceholders counts "?" placeholders outside string literals,
// quoted identifiers and comments.
//
// A doubled quote inside a literal ('it''s') is an escaped quote, as in SQL.
func CountPlaceholders(q string) int {
	const (
		plain = iota
		single
		double
		line
		block
	)

	state := plain
	count := 0
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch state {
		case plain:
			switch {
			case c == '?':
				count++
			case c == '\'':
				state = single
			case c == '"':
				state = double
			case c == '-' && i+1 < len(q) && q[i+1] == '-':
				state = line
				i++
			case c == '/' && i+1 < len(q) && q[i+1] == '*':
				state = block
				i++
			}
		case single, double:
			quote := byte('\'')
			if state == double {
				quote = '"'
			}
			if c == quote {
				if i+1 < len(q) && q[i+1] == quote {
					i++ // escaped quote
					continue
				}
				state = plain
			}
		case line:
			if c == '\n' {
				state = plain
			}
		case block:
			if c == '*' && i+1 < len(q) && q[i+1] == '/' {
				state = plain
				i++
			}
		}
	}
	return count
}
