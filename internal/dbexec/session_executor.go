package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"

	"dataapi/internal/policy"
	"dataapi/internal/sqlutil"
)

// SessionExecutor runs each statement on a dedicated connection with the
// caller's session context applied first: every string claim becomes a
// session variable (@claim) that row-level policies and triggers can read.
// Variables are cleared and the connection released when the caller is
// done with the result.
type SessionExecutor struct {
	db           *sql.DB
	databaseName string
	sessionFrom  func(context.Context) *policy.SessionContext
}

// SessionExecutorConfig controls session execution behavior. SessionFrom
// extracts the caller's processed claims from the request context; a nil
// result means no variables are set.
type SessionExecutorConfig struct {
	DB           *sql.DB
	DatabaseName string
	SessionFrom  func(context.Context) *policy.SessionContext
}

// NewSessionExecutor creates an executor that applies the caller's claims
// as session variables before each statement.
func NewSessionExecutor(cfg SessionExecutorConfig) *SessionExecutor {
	return &SessionExecutor{
		db:           cfg.DB,
		databaseName: cfg.DatabaseName,
		sessionFrom:  cfg.SessionFrom,
	}
}

// Session variable names derive from claim names, which are caller input:
// only plain identifiers are accepted, the rest are skipped.
var sessionVarName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (e *SessionExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, cleanup, err := e.prepareConn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return &sessionRows{Rows: rows, cleanup: cleanup}, nil
}

func (e *SessionExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, cleanup, err := e.prepareConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return conn.ExecContext(ctx, query, args...)
}

// prepareConn acquires a dedicated connection, selects the database, and
// applies the session variables. The returned cleanup clears the variables
// and releases the connection.
func (e *SessionExecutor) prepareConn(ctx context.Context) (*sql.Conn, func(), error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var applied []string
	cleanup := func() {
		for _, name := range applied {
			_, _ = conn.ExecContext(context.Background(), fmt.Sprintf("SET @%s = NULL", name))
		}
		_ = conn.Close()
	}

	if e.databaseName != "" {
		useSQL := fmt.Sprintf("USE %s", sqlutil.QuoteIdentifier(e.databaseName))
		if _, err := conn.ExecContext(ctx, useSQL); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to select database %s: %w", e.databaseName, err)
		}
	}

	if e.sessionFrom != nil {
		if session := e.sessionFrom(ctx); session != nil {
			variables := session.Variables()
			names := make([]string, 0, len(variables))
			for name := range variables {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				value := variables[name]
				if !sessionVarName.MatchString(name) {
					continue
				}
				// MySQL allows the value to be parameterized, the
				// variable name cannot be. Names are restricted to plain
				// identifiers above.
				if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET @%s = ?", name), value); err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("failed to set session variable %s: %w", name, err)
				}
				applied = append(applied, name)
			}
		}
	}
	return conn, cleanup, nil
}

type sessionRows struct {
	*sql.Rows
	cleanup func()
}

func (r *sessionRows) Close() error {
	defer r.cleanup()
	return r.Rows.Close()
}
