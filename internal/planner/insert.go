package planner

import (
	"sort"
	"strings"

	"dataapi/internal/dberror"
	"dataapi/internal/metadata"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
)

// MutationOptions configures construction of a mutation structure. Input
// holds the mutation payload keyed by exposed field names.
type MutationOptions struct {
	Provider        metadata.Provider
	Resolver        policy.Resolver
	Translator      policy.ClauseTranslator
	Entity          string
	Input           map[string]interface{}
	Counter         *Counter
	Parameters      map[string]Parameter
	DevelopmentMode bool
}

// InsertQueryStructure is the relational model of one INSERT: the target
// columns, their parameter tokens in the same order, and the columns to
// return from the inserted row.
type InsertQueryStructure struct {
	BaseQueryStructure

	InsertColumns []querymodel.Column
	Values        []string

	// OutputColumns are projected from the inserted row, labelled with
	// exposed field names.
	OutputColumns []querymodel.Column
}

// NewInsertQuery builds an insert structure from the mutation payload.
// When a create policy references columns, every one of them must be
// satisfied by the payload: a create that leaves policy-referenced columns
// unset could insert a row the caller is not allowed to create, so it is
// rejected outright.
func NewInsertQuery(opts MutationOptions) (*InsertQueryStructure, error) {
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
	q := &InsertQueryStructure{BaseQueryStructure: base}

	outstanding := make(map[string]struct{})
	if opts.Resolver != nil {
		for _, col := range opts.Resolver.ReferencedColumns(opts.Entity, policy.OperationCreate) {
			outstanding[col] = struct{}{}
		}
	}

	for _, field := range sortedKeys(opts.Input) {
		backing, err := q.BackingColumn(field)
		if err != nil {
			return nil, err
		}
		def, ok := q.sourceDef.Column(backing)
		if !ok {
			return nil, dberror.NewBadRequestf("invalid field %s for entity %s", field, opts.Entity)
		}
		if def.IsReadOnly {
			return nil, dberror.NewBadRequestf("field %s for entity %s is read-only", field, opts.Entity)
		}
		token, err := q.MakeParam(opts.Input[field], backing)
		if err != nil {
			return nil, err
		}
		q.InsertColumns = append(q.InsertColumns, querymodel.NewAliasedColumn(
			q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias))
		q.Values = append(q.Values, token)
		delete(outstanding, backing)
	}

	if len(outstanding) > 0 {
		missing := make([]string, 0, len(outstanding))
		for col := range outstanding {
			missing = append(missing, col)
		}
		sort.Strings(missing)
		return nil, dberror.NewCumulativeColumnCheckFailed(
			"insert payload must supply all columns referenced by the create policy, missing: " + strings.Join(missing, ", "))
	}

	q.addOutputColumns()
	return q, nil
}

// addOutputColumns projects every source column from the inserted row so
// auto-generated values can be returned to the caller.
func (q *InsertQueryStructure) addOutputColumns() {
	for _, def := range q.sourceDef.Columns {
		label := def.Name
		if exposed, ok := q.Provider.ExposedName(q.EntityName, def.Name); ok {
			label = exposed
		}
		q.OutputColumns = append(q.OutputColumns, querymodel.NewLabelledColumn(
			q.Object.SchemaName, q.Object.Name, def.Name, q.SourceAlias, label))
	}
}
