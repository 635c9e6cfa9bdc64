package planner

import (
	"dataapi/internal/dberror"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
)

// DeleteQueryStructure is the relational model of one DELETE. Only
// primary-key predicates select the row; nothing else from the payload is
// consulted.
type DeleteQueryStructure struct {
	BaseQueryStructure
}

// NewDeleteQuery builds a delete structure. Every primary-key column must
// be present and non-null in the payload: a null key value can never match
// a row and signals a malformed request rather than an empty result.
func NewDeleteQuery(opts MutationOptions) (*DeleteQueryStructure, error) {
	base, err := newBaseStructure(StructureOptions{
		Provider:        opts.Provider,
		Resolver:        opts.Resolver,
		Translator:      opts.Translator,
		Entity:          opts.Entity,
		Counter:         opts.Counter,
		Parameters:      opts.Parameters,
		DevelopmentMode: opts.DevelopmentMode,
	})
	if err != nil {
		return nil, err
	}
	q := &DeleteQueryStructure{BaseQueryStructure: base}

	pk := q.sourceDef.PrimaryKey()
	if len(pk) == 0 {
		return nil, dberror.NewBadRequestf("entity %s has no primary key and cannot be deleted by key", opts.Entity)
	}
	for _, backing := range pk {
		exposed := backing
		if name, ok := q.Provider.ExposedName(opts.Entity, backing); ok {
			exposed = name
		}
		value, present := opts.Input[exposed]
		if !present {
			return nil, dberror.NewBadRequestf("delete mutation for entity %s is missing primary key field %s", opts.Entity, exposed)
		}
		if value == nil {
			return nil, dberror.NewBadRequestf("primary key field %s of entity %s must not be null", exposed, opts.Entity)
		}
		token, err := q.MakeParam(value, backing)
		if err != nil {
			return nil, err
		}
		col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias)
		q.Predicates = append(q.Predicates, querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(col),
			querymodel.OperationEqual,
			querymodel.NewRawOperand(token)))
	}

	if err := q.ApplyPolicyPredicate(policy.OperationDelete); err != nil {
		return nil, err
	}
	return q, nil
}
