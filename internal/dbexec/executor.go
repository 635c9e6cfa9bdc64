// Package dbexec executes rendered query structures against MySQL. It
// supports direct execution and session-aware execution that propagates the
// caller's claims as session variables before each statement.
package dbexec

import (
	"context"
	"database/sql"
	"log/slog"

	"dataapi/internal/logging"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can swap in
// session-aware behavior.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Statement is a finished query structure that can render itself to SQL
// with positional placeholders and a bound argument list. Every parameter
// token embedded in the structure's predicate text is guaranteed an entry
// in its parameter table, so rendering never leaves an unbound token.
type Statement interface {
	Preview() (string, []interface{}, error)
}

// StandardExecutor runs statements directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor bound to a database handle.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}

// RunQuery renders a statement and returns its rows as generic maps keyed
// by result column name.
func RunQuery(ctx context.Context, exec QueryExecutor, stmt Statement) ([]map[string]interface{}, error) {
	query, args, err := stmt.Preview()
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("executing query",
		slog.String("sql", query), slog.Int("arg_count", len(args)))
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// RunExec renders a mutation statement and executes it.
func RunExec(ctx context.Context, exec QueryExecutor, stmt Statement) (sql.Result, error) {
	query, args, err := stmt.Preview()
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("executing statement",
		slog.String("sql", query), slog.Int("arg_count", len(args)))
	return exec.ExecContext(ctx, query, args...)
}

func scanRows(rows Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, name := range columns {
			if b, isBytes := values[i].([]byte); isBytes {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
