package planner

import (
	"fmt"
	"sort"

	"dataapi/internal/dberror"
	"dataapi/internal/metadata"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
	"dataapi/internal/sqltype"
)

// Parameter is one entry in a structure tree's parameter table. The Value
// has already been coerced to the Go representation for Kind.
type Parameter struct {
	Value interface{}
	Kind  sqltype.Kind
}

// Join is a join against another database object, accumulated while
// resolving related entities that go through a linking table.
type Join struct {
	Object     metadata.DatabaseObject
	Alias      string
	Predicates []querymodel.Predicate
}

// BaseQueryStructure carries the state shared by every query structure:
// the entity being targeted, its backing database object and alias, the
// projected columns, predicates, joins and the parameter table. Concrete
// structures (read, insert, update, delete, execute) embed it.
type BaseQueryStructure struct {
	Provider   metadata.Provider
	Resolver   policy.Resolver
	Translator policy.ClauseTranslator

	EntityName  string
	Object      metadata.DatabaseObject
	SourceAlias string

	Columns    []querymodel.Column
	Predicates []querymodel.Predicate
	Joins      []Join

	// Parameters maps generated parameter names (without the leading @)
	// to their values. The map is shared across the whole structure tree.
	Parameters map[string]Parameter

	DevelopmentMode bool

	counter        *Counter
	sourceDef      *metadata.SourceDefinition
	policyClauses  map[policy.Operation]string
	linkingAliases map[string]int // linking object full name -> index into Joins
}

// StructureOptions configures construction of a query structure. Counter
// and Parameters may be nil for a root structure; nested structures must
// receive the parent's instances.
type StructureOptions struct {
	Provider        metadata.Provider
	Resolver        policy.Resolver
	Translator      policy.ClauseTranslator
	Entity          string
	Counter         *Counter
	Parameters      map[string]Parameter
	DevelopmentMode bool
}

func newBaseStructure(opts StructureOptions) (BaseQueryStructure, error) {
	object, ok := opts.Provider.DatabaseObject(opts.Entity)
	if !ok {
		return BaseQueryStructure{}, dberror.NewBadRequestf("entity %s is not defined", opts.Entity)
	}
	def, ok := opts.Provider.SourceDefinition(opts.Entity)
	if !ok {
		return BaseQueryStructure{}, dberror.NewUnexpectedError(fmt.Sprintf("no source definition for entity %s", opts.Entity))
	}
	counter := opts.Counter
	if counter == nil {
		counter = NewCounter()
	}
	params := opts.Parameters
	if params == nil {
		params = make(map[string]Parameter)
	}
	return BaseQueryStructure{
		Provider:        opts.Provider,
		Resolver:        opts.Resolver,
		Translator:      opts.Translator,
		EntityName:      opts.Entity,
		Object:          object,
		SourceAlias:     counter.NextAlias(),
		Parameters:      params,
		DevelopmentMode: opts.DevelopmentMode,
		counter:         counter,
		sourceDef:       def,
		policyClauses:   make(map[policy.Operation]string),
		linkingAliases:  make(map[string]int),
	}, nil
}

// SourceDefinition returns the table metadata backing this structure.
func (b *BaseQueryStructure) SourceDefinition() *metadata.SourceDefinition {
	return b.sourceDef
}

// BackingColumn maps an exposed field name to its backing column name.
func (b *BaseQueryStructure) BackingColumn(field string) (string, error) {
	backing, ok := b.Provider.BackingColumn(b.EntityName, field)
	if !ok {
		return "", dberror.NewBadRequestf("invalid field %s for entity %s", field, b.EntityName)
	}
	return backing, nil
}

// ColumnKind returns the database type of a backing column.
func (b *BaseQueryStructure) ColumnKind(backingColumn string) (sqltype.Kind, error) {
	def, ok := b.sourceDef.Column(backingColumn)
	if !ok {
		return sqltype.KindString, dberror.NewBadRequestf("invalid column %s for entity %s", backingColumn, b.EntityName)
	}
	return def.Kind, nil
}

// MakeParam registers value in the parameter table and returns the token
// to embed in predicate text, e.g. "@param3". When backingColumn is not
// empty the value is coerced to that column's database type first.
func (b *BaseQueryStructure) MakeParam(value interface{}, backingColumn string) (string, error) {
	kind := sqltype.KindOfValue(value)
	if backingColumn != "" && value != nil {
		columnKind, err := b.ColumnKind(backingColumn)
		if err != nil {
			return "", err
		}
		coerced, err := sqltype.CoerceValue(columnKind, value)
		if err != nil {
			return "", b.coercionError(err, backingColumn, columnKind)
		}
		value = coerced
		kind = columnKind
	}
	name := b.counter.NextParam()
	b.Parameters[name] = Parameter{Value: value, Kind: kind}
	return "@" + name, nil
}

// ParseParam parses a raw string value (URL route segments, continuation
// tokens) into the Go representation of the column's database type.
func (b *BaseQueryStructure) ParseParam(raw string, exposedField, backingColumn string) (interface{}, error) {
	kind, err := b.ColumnKind(backingColumn)
	if err != nil {
		return nil, err
	}
	value, err := sqltype.ParseParam(kind, raw)
	if err != nil {
		if b.DevelopmentMode {
			return nil, dberror.WrapBadRequest(err, fmt.Sprintf("value %q is not valid for column %s of type %s", raw, backingColumn, kind))
		}
		return nil, dberror.NewBadRequestf("invalid value for field %s", exposedField)
	}
	return value, nil
}

func (b *BaseQueryStructure) coercionError(err error, backingColumn string, kind sqltype.Kind) error {
	if b.DevelopmentMode {
		return dberror.WrapBadRequest(err, fmt.Sprintf("value is not valid for column %s of type %s", backingColumn, kind))
	}
	return dberror.NewBadRequestf("invalid value supplied for entity %s", b.EntityName)
}

// AddColumn adds a projected column for this structure's source. Adding
// the same column with the same label twice is a no-op.
func (b *BaseQueryStructure) AddColumn(backingColumn, label string) querymodel.Column {
	col := querymodel.NewLabelledColumn(b.Object.SchemaName, b.Object.Name, backingColumn, b.SourceAlias, label)
	for _, existing := range b.Columns {
		if existing.Equal(col) && existing.Label == col.Label {
			return existing
		}
	}
	b.Columns = append(b.Columns, col)
	return col
}

// HasColumn reports whether the projection already contains backingColumn
// under any label.
func (b *BaseQueryStructure) HasColumn(backingColumn string) bool {
	for _, c := range b.Columns {
		if c.ColumnName == backingColumn && c.TableAlias == b.SourceAlias {
			return true
		}
	}
	return false
}

// CreateJoinPredicates zips two equal-length column lists into positional
// equality predicates: left[i] = right[i]. Callers guarantee the lists
// have the same length; foreign keys with incomplete column information
// must be filtered out before calling.
func CreateJoinPredicates(
	leftObject metadata.DatabaseObject, leftAlias string, leftColumns []string,
	rightObject metadata.DatabaseObject, rightAlias string, rightColumns []string,
) []querymodel.Predicate {
	predicates := make([]querymodel.Predicate, 0, len(leftColumns))
	for i := range leftColumns {
		left := querymodel.NewAliasedColumn(leftObject.SchemaName, leftObject.Name, leftColumns[i], leftAlias)
		right := querymodel.NewAliasedColumn(rightObject.SchemaName, rightObject.Name, rightColumns[i], rightAlias)
		predicates = append(predicates, querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(left),
			querymodel.OperationEqual,
			querymodel.NewColumnOperand(right),
		))
	}
	return predicates
}

// AddJoinPredicatesForRelatedEntity correlates subQuery, which reads
// targetEntity under its own alias, with this structure. Direct foreign
// keys become predicates on the subquery; many-to-many relationships add
// a join against the linking table plus correlation predicates.
func (b *BaseQueryStructure) AddJoinPredicatesForRelatedEntity(targetEntity string, subQuery *ReadQueryStructure) error {
	fks := b.Provider.ForeignKeys(b.EntityName, targetEntity)
	if len(fks) == 0 {
		return dberror.NewBadRequestf("no relationship exists between %s and %s", b.EntityName, targetEntity)
	}
	targetObject, ok := b.Provider.DatabaseObject(targetEntity)
	if !ok {
		return dberror.NewBadRequestf("entity %s is not defined", targetEntity)
	}
	for _, fk := range fks {
		if !fk.HasCompleteColumnInfo() {
			continue
		}
		switch {
		case fk.ReferencingObject.Equal(b.Object) && fk.ReferencedObject.Equal(targetObject):
			// This entity holds the foreign key.
			preds := CreateJoinPredicates(
				b.Object, b.SourceAlias, fk.ReferencingColumns,
				targetObject, subQuery.SourceAlias, fk.ReferencedColumns,
			)
			subQuery.Predicates = append(subQuery.Predicates, preds...)
		case fk.ReferencingObject.Equal(targetObject) && fk.ReferencedObject.Equal(b.Object):
			// The target holds the foreign key.
			preds := CreateJoinPredicates(
				targetObject, subQuery.SourceAlias, fk.ReferencingColumns,
				b.Object, b.SourceAlias, fk.ReferencedColumns,
			)
			subQuery.Predicates = append(subQuery.Predicates, preds...)
		default:
			// The referencing side is a linking table. Join it into the
			// subquery once, under a stable alias, then pair its columns
			// with whichever object this foreign key references.
			idx := subQuery.ensureLinkingJoin(fk.ReferencingObject)
			join := &subQuery.Joins[idx]
			switch {
			case fk.ReferencedObject.Equal(targetObject):
				preds := CreateJoinPredicates(
					fk.ReferencingObject, join.Alias, fk.ReferencingColumns,
					targetObject, subQuery.SourceAlias, fk.ReferencedColumns,
				)
				join.Predicates = append(join.Predicates, preds...)
			case fk.ReferencedObject.Equal(b.Object):
				preds := CreateJoinPredicates(
					fk.ReferencingObject, join.Alias, fk.ReferencingColumns,
					b.Object, b.SourceAlias, fk.ReferencedColumns,
				)
				subQuery.Predicates = append(subQuery.Predicates, preds...)
			default:
				return dberror.NewUnexpectedError(fmt.Sprintf(
					"foreign key on %s references neither %s nor %s",
					fk.ReferencingObject.FullName(), b.EntityName, targetEntity))
			}
		}
	}
	return nil
}

func (b *BaseQueryStructure) ensureLinkingJoin(linking metadata.DatabaseObject) int {
	if idx, ok := b.linkingAliases[linking.FullName()]; ok {
		return idx
	}
	b.Joins = append(b.Joins, Join{Object: linking, Alias: b.counter.NextAlias()})
	idx := len(b.Joins) - 1
	b.linkingAliases[linking.FullName()] = idx
	return idx
}

// ProcessPolicyClause translates the row-level policy for op into a
// database predicate string. Results are cached so each clause is
// translated at most once per structure. An empty string means no policy
// applies.
func (b *BaseQueryStructure) ProcessPolicyClause(op policy.Operation) (string, error) {
	if clause, ok := b.policyClauses[op]; ok {
		return clause, nil
	}
	if b.Resolver == nil {
		return "", nil
	}
	raw, ok := b.Resolver.RowPolicy(b.EntityName, op)
	if !ok || raw == "" {
		b.policyClauses[op] = ""
		return "", nil
	}
	if b.Translator == nil {
		return "", dberror.NewUnexpectedError(fmt.Sprintf("policy defined for entity %s but no clause translator is configured", b.EntityName))
	}
	translated, err := b.Translator.Translate(raw, b.EntityName, b.SourceAlias)
	if err != nil {
		return "", dberror.WrapAuthorizationCheckFailed(err, fmt.Sprintf("policy for entity %s could not be processed", b.EntityName))
	}
	b.policyClauses[op] = translated
	return translated, nil
}

// ApplyPolicyPredicate appends the translated policy clause for op, if
// any, to this structure's predicates.
func (b *BaseQueryStructure) ApplyPolicyPredicate(op policy.Operation) error {
	clause, err := b.ProcessPolicyClause(op)
	if err != nil {
		return err
	}
	if clause == "" {
		return nil
	}
	pred := querymodel.NewUnaryPredicate(querymodel.NewRawOperand(clause), querymodel.OperationNone)
	pred.Parenthesized = true
	b.Predicates = append(b.Predicates, pred)
	return nil
}

// sortedKeys returns map keys in a stable order so generated parameter
// numbering is deterministic.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
