// Package sqlutil provides SQL utility functions.
package sqlutil

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteString quotes a SQL string literal with single quotes and escapes
// any single quotes within the string by doubling them.
func QuoteString(s string) string {
	escaped := strings.ReplaceAll(s, "'", "''")
	return "'" + escaped + "'"
}

// QualifiedColumn returns alias.column with both parts quoted. An empty
// alias yields the bare quoted column.
func QualifiedColumn(alias, column string) string {
	if alias == "" {
		return QuoteIdentifier(column)
	}
	return fmt.Sprintf("%s.%s", QuoteIdentifier(alias), QuoteIdentifier(column))
}

// QualifiedObject returns schema.name with both parts quoted. An empty
// schema yields the bare quoted name.
func QualifiedObject(schema, name string) string {
	if schema == "" {
		return QuoteIdentifier(name)
	}
	return fmt.Sprintf("%s.%s", QuoteIdentifier(schema), QuoteIdentifier(name))
}

var paramTokenPattern = regexp.MustCompile(`@param\d+`)

// BindParameters rewrites @paramN tokens in query text into positional ?
// placeholders and returns the argument list in token-appearance order.
// Every token must have an entry in the lookup; a missing entry means the
// query text and parameter table drifted apart.
func BindParameters(query string, lookup func(name string) (interface{}, bool)) (string, []interface{}, error) {
	var args []interface{}
	var missing string
	bound := paramTokenPattern.ReplaceAllStringFunc(query, func(token string) string {
		name := token[1:]
		value, ok := lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return token
		}
		args = append(args, value)
		return "?"
	})
	if missing != "" {
		return "", nil, fmt.Errorf("query references parameter %s with no table entry", missing)
	}
	return bound, args, nil
}
