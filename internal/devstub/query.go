package devstub

import (
	"fmt"
	"strconv"
	"strings"
)

// IGDB caps limit at 500 and defaults to 10
const (
	defaultLimit = 10
	maxLimit     = 500
)

// parsedQuery is the subset of the query language the stub understands
type parsedQuery struct {
	Fields []string
	Where  *condition
	Search string
	Limit  int
	Offset int
}

// condition is a single "where <field> <op> <value>" comparison
type condition struct {
	Field string
	Op    string
	Value string
}

// parseQuery parses a request body. Clauses end with ';' and may span lines.
func parseQuery(body string) (parsedQuery, error) {
	q := parsedQuery{Limit: defaultLimit}

	for _, raw := range strings.Split(body, ";") {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			continue
		}
		keyword, rest, _ := strings.Cut(clause, " ")
		rest = strings.TrimSpace(rest)

		switch keyword {
		case "fields", "f":
			for _, f := range strings.Split(rest, ",") {
				if f = strings.TrimSpace(f); f != "" {
					q.Fields = append(q.Fields, f)
				}
			}
		case "where", "w":
			c, err := parseCondition(rest)
			if err != nil {
				return q, err
			}
			q.Where = &c
		case "search":
			term, err := strconv.Unquote(rest)
			if err != nil {
				return q, fmt.Errorf("search term must be quoted: %s", rest)
			}
			q.Search = term
		case "limit", "l":
			n, err := strconv.Atoi(rest)
			if err != nil || n < 1 || n > maxLimit {
				return q, fmt.Errorf("limit must be between 1 and %d: %s", maxLimit, rest)
			}
			q.Limit = n
		case "offset", "o":
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return q, fmt.Errorf("invalid offset: %s", rest)
			}
			q.Offset = n
		default:
			return q, fmt.Errorf("unexpected clause %q", keyword)
		}
	}

	if len(q.Fields) == 0 {
		return q, fmt.Errorf("missing fields clause")
	}
	return q, nil
}

func parseCondition(s string) (condition, error) {
	for _, op := range []string{"!=", ">=", "<=", "=", ">", "<"} {
		if field, value, ok := strings.Cut(s, op); ok {
			c := condition{Field: strings.TrimSpace(field), Op: op, Value: strings.TrimSpace(value)}
			if c.Field == "" || c.Value == "" {
				break
			}
			return c, nil
		}
	}
	return condition{}, fmt.Errorf("invalid where clause: %s", s)
}

// matchNumber evaluates the condition against a numeric field
func (c condition) matchNumber(v int) (bool, error) {
	want, err := strconv.Atoi(c.Value)
	if err != nil {
		return false, fmt.Errorf("%s expects a number, got %s", c.Field, c.Value)
	}
	switch c.Op {
	case "=":
		return v == want, nil
	case "!=":
		return v != want, nil
	case ">":
		return v > want, nil
	case ">=":
		return v >= want, nil
	case "<":
		return v < want, nil
	default:
		return v <= want, nil
	}
}

// matchPresence evaluates "<field> != null" and "<field> = null"
func (c condition) matchPresence(present bool) (bool, error) {
	if c.Value != "null" {
		return false, fmt.Errorf("%s can only be compared with null", c.Field)
	}
	switch c.Op {
	case "!=":
		return present, nil
	case "=":
		return !present, nil
	default:
		return false, fmt.Errorf("operator %s not supported for null", c.Op)
	}
}
