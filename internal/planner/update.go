package planner

import (
	"dataapi/internal/dberror"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
)

// UpdateOptions extends MutationOptions for updates. When Item is nil the
// payload fields live directly in Input beside the primary key; otherwise
// Input carries only the key and Item carries the fields to set. Overwrite
// replaces the whole row: every writable column the payload leaves out is
// set to NULL.
type UpdateOptions struct {
	MutationOptions
	Item      map[string]interface{}
	Overwrite bool
}

// UpdateQueryStructure is the relational model of one UPDATE: the SET
// operations and the row-selection predicates are kept apart because they
// render into different clauses.
type UpdateQueryStructure struct {
	BaseQueryStructure

	UpdateOperations []querymodel.Predicate
	OutputColumns    []querymodel.Column
}

// NewUpdateQuery builds an update structure. Primary-key fields in the
// payload become predicates, everything else becomes a SET operation.
func NewUpdateQuery(opts UpdateOptions) (*UpdateQueryStructure, error) {
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
	q := &UpdateQueryStructure{BaseQueryStructure: base}

	specified := make(map[string]struct{})
	if err := q.processFields(opts.Input, opts.Item == nil, specified); err != nil {
		return nil, err
	}
	if opts.Item != nil {
		if err := q.processFields(opts.Item, true, specified); err != nil {
			return nil, err
		}
	}
	if opts.Overwrite {
		if err := q.nullifyUnspecifiedFields(specified); err != nil {
			return nil, err
		}
	}
	if len(q.UpdateOperations) == 0 {
		return nil, dberror.NewBadRequestf("update mutation for entity %s has no fields to update", opts.Entity)
	}
	if err := q.ApplyPolicyPredicate(policy.OperationUpdate); err != nil {
		return nil, err
	}
	q.addOutputColumns()
	return q, nil
}

// processFields routes payload fields: key columns to predicates, others
// to SET operations. When allowSet is false only key columns are accepted,
// which covers the outer arguments of the item-carrying mutation shape.
func (q *UpdateQueryStructure) processFields(input map[string]interface{}, allowSet bool, specified map[string]struct{}) error {
	for _, field := range sortedKeys(input) {
		value := input[field]
		backing, err := q.BackingColumn(field)
		if err != nil {
			return err
		}
		def, ok := q.sourceDef.Column(backing)
		if !ok {
			return dberror.NewBadRequestf("invalid field %s for entity %s", field, q.EntityName)
		}
		col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias)

		if def.IsPrimaryKey {
			token, err := q.MakeParam(value, backing)
			if err != nil {
				return err
			}
			q.Predicates = append(q.Predicates, querymodel.NewBinaryPredicate(
				querymodel.NewColumnOperand(col),
				querymodel.OperationEqual,
				querymodel.NewRawOperand(token)))
			specified[backing] = struct{}{}
			continue
		}
		if !allowSet {
			return dberror.NewBadRequestf("field %s is not part of the primary key of entity %s", field, q.EntityName)
		}
		if def.IsReadOnly {
			return dberror.NewBadRequestf("field %s for entity %s is read-only", field, q.EntityName)
		}
		if value == nil && !def.IsNullable {
			return dberror.NewBadRequestf("cannot set field %s of entity %s to null", field, q.EntityName)
		}
		token, err := q.MakeParam(value, backing)
		if err != nil {
			return err
		}
		q.UpdateOperations = append(q.UpdateOperations, querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(col),
			querymodel.OperationEqual,
			querymodel.NewRawOperand(token)))
		specified[backing] = struct{}{}
	}
	return nil
}

// nullifyUnspecifiedFields adds a SET-to-NULL operation for every writable
// column the payload did not mention. Read-only and auto-generated columns
// keep their values.
func (q *UpdateQueryStructure) nullifyUnspecifiedFields(specified map[string]struct{}) error {
	for _, def := range q.sourceDef.Columns {
		if def.IsPrimaryKey || def.IsReadOnly || def.IsAutoGenerated {
			continue
		}
		if _, present := specified[def.Name]; present {
			continue
		}
		if !def.IsNullable {
			return dberror.NewBadRequestf("replace mutation for entity %s leaves non-nullable column %s unset", q.EntityName, def.Name)
		}
		token, err := q.MakeParam(nil, "")
		if err != nil {
			return err
		}
		col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, def.Name, q.SourceAlias)
		q.UpdateOperations = append(q.UpdateOperations, querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(col),
			querymodel.OperationEqual,
			querymodel.NewRawOperand(token)))
	}
	return nil
}

func (q *UpdateQueryStructure) addOutputColumns() {
	for _, def := range q.sourceDef.Columns {
		label := def.Name
		if exposed, ok := q.Provider.ExposedName(q.EntityName, def.Name); ok {
			label = exposed
		}
		q.OutputColumns = append(q.OutputColumns, querymodel.NewLabelledColumn(
			q.Object.SchemaName, q.Object.Name, def.Name, q.SourceAlias, label))
	}
}
