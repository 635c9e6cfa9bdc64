// Package policy defines the authorization collaborator contracts the query
// builders consume: the per-entity/operation row-level policy resolver, the
// filter-clause translator that turns OData-style clause text into predicate
// text, and the processed claims carried into the database session.
package policy

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Operation is the data action a policy applies to.
type Operation string

const (
	OperationRead    Operation = "read"
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationExecute Operation = "execute"
)

// SessionContext carries the processed claims of the authenticated caller
// for propagation into the database session.
type SessionContext struct {
	Claims jwt.MapClaims
}

// Variables flattens string-valued claims into session variables. Non-string
// claim values are skipped; structured claims have no session representation.
func (s *SessionContext) Variables() map[string]string {
	if s == nil || len(s.Claims) == 0 {
		return nil
	}
	vars := make(map[string]string, len(s.Claims))
	for name, value := range s.Claims {
		if str, ok := value.(string); ok {
			vars[name] = str
		}
	}
	return vars
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession attaches the caller's session context for executors that
// propagate claims into the database session.
func WithSession(ctx context.Context, session *SessionContext) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the session context, or nil when the
// request carries none.
func SessionFromContext(ctx context.Context) *SessionContext {
	if session, ok := ctx.Value(sessionKey).(*SessionContext); ok {
		return session
	}
	return nil
}

// Resolver supplies row-level policy clauses per entity and operation.
// Implementations must be safe for concurrent reads.
type Resolver interface {
	// RowPolicy returns the policy clause text for an entity/operation,
	// or ok=false when no policy is configured.
	RowPolicy(entity string, op Operation) (clause string, ok bool)
	// ReferencedColumns returns the backing columns the policy clause for
	// an entity/operation references. Used by create to verify every
	// policy-referenced column is satisfiable from the payload.
	ReferencedColumns(entity string, op Operation) []string
	// SessionContext exposes the caller's processed claims.
	SessionContext() *SessionContext
}

// ClauseTranslator converts policy/filter clause text into a predicate
// string understood by the query model, with columns qualified by the given
// source alias. Parsing of the clause AST is owned by the translator.
type ClauseTranslator interface {
	Translate(clause, entity, sourceAlias string) (string, error)
}

// TranslatorFunc adapts a function to the ClauseTranslator interface.
type TranslatorFunc func(clause, entity, sourceAlias string) (string, error)

func (f TranslatorFunc) Translate(clause, entity, sourceAlias string) (string, error) {
	return f(clause, entity, sourceAlias)
}

// StaticResolver is a Resolver backed by fixed maps, used by tests and the
// CLI where policies come from configuration rather than a live request.
type StaticResolver struct {
	Policies map[string]map[Operation]string
	Columns  map[string]map[Operation][]string
	Session  *SessionContext
}

func (r *StaticResolver) RowPolicy(entity string, op Operation) (string, bool) {
	clause, ok := r.Policies[entity][op]
	return clause, ok && clause != ""
}

func (r *StaticResolver) ReferencedColumns(entity string, op Operation) []string {
	return r.Columns[entity][op]
}

func (r *StaticResolver) SessionContext() *SessionContext {
	return r.Session
}
