package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/spf13/cast"

	"dataapi/internal/dberror"
	"dataapi/internal/metadata"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
)

const (
	// DataColumnName labels the placeholder column a parent query projects
	// for each nested subquery's result document.
	DataColumnName = "data"

	defaultPageSize = 100

	itemsFieldName       = "items"
	endCursorFieldName   = "endCursor"
	hasNextPageFieldName = "hasNextPage"
	groupByFieldName     = "groupBy"
)

// GraphQLInput is the slice of a parsed GraphQL request a read structure is
// built from: the field being resolved, the schema type name it resolves
// to, and the already-coerced top-level arguments. Fragments and variables
// are carried so nested selections can resolve spreads and variable
// references themselves.
type GraphQLInput struct {
	Field     *ast.Field
	TypeName  string
	IsList    bool
	Args      map[string]interface{}
	Fragments map[string]*ast.FragmentDefinition
	Variables map[string]interface{}
}

// ReadOptions configures construction of a read structure tree. Counter and
// Parameters follow the same sharing rules as StructureOptions.
type ReadOptions struct {
	Provider        metadata.Provider
	Resolver        policy.Resolver
	Translator      policy.ClauseTranslator
	Counter         *Counter
	Parameters      map[string]Parameter
	DefaultPageSize uint64
	MaxPageSize     uint64
	DevelopmentMode bool
}

// ReadQueryStructure is the relational model of one SELECT: projection,
// predicates, ordering, pagination and one nested structure per related
// entity selected.
type ReadQueryStructure struct {
	BaseQueryStructure

	IsListQuery bool
	Limit       uint64
	OrderBy     []querymodel.OrderByColumn
	Pagination  PaginationMetadata
	GroupBy     *GroupByMetadata

	// JoinQueries holds the subquery for each related entity selected,
	// keyed by the subquery's source alias. The parent projection carries
	// a placeholder column under the same alias.
	JoinQueries map[string]*ReadQueryStructure

	// ColumnLabelParams maps each projected column's output label to the
	// parameter token carrying the label string, for dialects that bind
	// labels as parameters.
	ColumnLabelParams map[string]string

	opts      ReadOptions
	fragments map[string]*ast.FragmentDefinition
	variables map[string]interface{}
}

// NewReadQuery builds the query structure for a GraphQL read. A type name
// ending in "Connection" is unwrapped to the element type: the items
// sub-selection drives the projection, endCursor/hasNextPage/groupBy are
// recorded as pagination and grouping metadata.
func NewReadQuery(input GraphQLInput, opts ReadOptions) (*ReadQueryStructure, error) {
	if input.Field == nil {
		return nil, dberror.NewBadRequest("no field supplied for read operation")
	}
	typeName := input.TypeName
	field := input.Field
	isList := input.IsList

	var pagination PaginationMetadata
	var groupByField *ast.Field
	if strings.HasSuffix(typeName, "Connection") {
		pagination.IsPaginated = true
		typeName = strings.TrimSuffix(typeName, "Connection")
		isList = true

		itemsField, gbField, err := unwrapConnection(field, input.Fragments, &pagination)
		if err != nil {
			return nil, err
		}
		field = itemsField
		groupByField = gbField
	}

	entity, ok := opts.Provider.EntityForGraphQLType(typeName)
	if !ok {
		entity = typeName
	}

	base, err := newBaseStructure(StructureOptions{
		Provider:        opts.Provider,
		Resolver:        opts.Resolver,
		Translator:      opts.Translator,
		Entity:          entity,
		Counter:         opts.Counter,
		Parameters:      opts.Parameters,
		DevelopmentMode: opts.DevelopmentMode,
	})
	if err != nil {
		return nil, err
	}
	// Nested structures must keep sharing this tree's counter and table.
	opts.Counter = base.counter
	opts.Parameters = base.Parameters
	if opts.DefaultPageSize == 0 {
		opts.DefaultPageSize = defaultPageSize
	}

	q := &ReadQueryStructure{
		BaseQueryStructure: base,
		IsListQuery:        isList,
		Pagination:         pagination,
		JoinQueries:        make(map[string]*ReadQueryStructure),
		ColumnLabelParams:  make(map[string]string),
		opts:               opts,
		fragments:          input.Fragments,
		variables:          input.Variables,
	}

	if err := q.applyLimitArgument(input.Args["first"]); err != nil {
		return nil, err
	}
	if err := q.applyFilterArgument(input.Args["filter"]); err != nil {
		return nil, err
	}
	if groupByField != nil {
		if err := q.processGroupBy(groupByField); err != nil {
			return nil, err
		}
	}
	if field != nil && field.SelectionSet != nil {
		if err := q.processSelections(field.SelectionSet.Selections); err != nil {
			return nil, err
		}
	}
	if err := q.validateGroupedProjection(); err != nil {
		return nil, err
	}
	if err := q.resolveOrderBy(input.Args["orderBy"]); err != nil {
		return nil, err
	}
	if err := q.ApplyPolicyPredicate(policy.OperationRead); err != nil {
		return nil, err
	}
	if err := q.applyAfterArgument(input.Args["after"]); err != nil {
		return nil, err
	}
	if err := q.finishProjection(); err != nil {
		return nil, err
	}
	q.applyPaginationSentinel()
	return q, nil
}

// unwrapConnection finds the items/endCursor/hasNextPage/groupBy selections
// of a connection field, flagging each on the pagination metadata.
func unwrapConnection(field *ast.Field, fragments map[string]*ast.FragmentDefinition, pagination *PaginationMetadata) (items, groupBy *ast.Field, err error) {
	if field.SelectionSet == nil {
		return nil, nil, dberror.NewBadRequest("connection field requires a selection set")
	}
	var walk func(selections []ast.Selection) error
	walk = func(selections []ast.Selection) error {
		for _, sel := range selections {
			switch node := sel.(type) {
			case *ast.Field:
				switch node.Name.Value {
				case itemsFieldName:
					pagination.RequestedItems = true
					items = node
				case endCursorFieldName:
					pagination.RequestedEndCursor = true
				case hasNextPageFieldName:
					pagination.RequestedHasNextPage = true
				case groupByFieldName:
					pagination.RequestedGroupBy = true
					groupBy = node
				}
			case *ast.InlineFragment:
				if err := walk(node.SelectionSet.Selections); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				frag, ok := fragments[node.Name.Value]
				if !ok {
					return dberror.NewBadRequestf("fragment %s is not defined", node.Name.Value)
				}
				if err := walk(frag.SelectionSet.Selections); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(field.SelectionSet.Selections); err != nil {
		return nil, nil, err
	}
	return items, groupBy, nil
}

func (q *ReadQueryStructure) applyLimitArgument(first interface{}) error {
	if first == nil {
		q.Limit = q.opts.DefaultPageSize
		return nil
	}
	n, err := cast.ToInt64E(first)
	if err != nil {
		return dberror.WrapBadRequest(err, "first must be an integer")
	}
	if n <= 0 {
		return dberror.NewBadRequestf("invalid number of items requested, first must be a positive integer, actual value: %d", n)
	}
	if q.opts.MaxPageSize > 0 && uint64(n) > q.opts.MaxPageSize {
		return dberror.NewBadRequestf("invalid number of items requested, first must not exceed %d, actual value: %d", q.opts.MaxPageSize, n)
	}
	q.Limit = uint64(n)
	return nil
}

// processSelections walks a selection set, adding scalar fields to the
// projection and spawning a nested structure per relationship field.
func (q *ReadQueryStructure) processSelections(selections []ast.Selection) error {
	for _, sel := range selections {
		switch node := sel.(type) {
		case *ast.Field:
			name := node.Name.Value
			if strings.HasPrefix(name, "__") {
				continue
			}
			label := name
			if node.Alias != nil {
				label = node.Alias.Value
			}
			if node.SelectionSet == nil {
				backing, err := q.BackingColumn(name)
				if err != nil {
					return err
				}
				q.AddColumn(backing, label)
				continue
			}
			if err := q.addRelatedQuery(name, label, node); err != nil {
				return err
			}
		case *ast.InlineFragment:
			if err := q.processSelections(node.SelectionSet.Selections); err != nil {
				return err
			}
		case *ast.FragmentSpread:
			frag, ok := q.fragments[node.Name.Value]
			if !ok {
				return dberror.NewBadRequestf("fragment %s is not defined", node.Name.Value)
			}
			if err := q.processSelections(frag.SelectionSet.Selections); err != nil {
				return err
			}
		default:
			return dberror.NewUnexpectedError(fmt.Sprintf("unsupported selection node %T", sel))
		}
	}
	return nil
}

// addRelatedQuery builds the nested structure for a relationship field,
// correlates it with this query, and projects a placeholder column under
// the subquery's alias.
func (q *ReadQueryStructure) addRelatedQuery(fieldName, label string, node *ast.Field) error {
	rel, ok := q.Provider.Relationship(q.EntityName, fieldName)
	if !ok {
		return dberror.NewBadRequestf("field %s on entity %s is not a relationship", fieldName, q.EntityName)
	}

	childType := rel.TargetEntity
	isList := rel.Cardinality == metadata.CardinalityMany
	if isList && selectsField(node, q.fragments, itemsFieldName) {
		childType += "Connection"
	}
	child, err := NewReadQuery(GraphQLInput{
		Field:     node,
		TypeName:  childType,
		IsList:    isList,
		Args:      q.argumentsToMap(node.Arguments),
		Fragments: q.fragments,
		Variables: q.variables,
	}, q.opts)
	if err != nil {
		return err
	}
	if err := q.AddJoinPredicatesForRelatedEntity(rel.TargetEntity, child); err != nil {
		return err
	}
	q.JoinQueries[child.SourceAlias] = child
	q.Columns = append(q.Columns, querymodel.NewLabelledColumn(
		child.Object.SchemaName, child.Object.Name, DataColumnName, child.SourceAlias, label))
	return nil
}

func selectsField(field *ast.Field, fragments map[string]*ast.FragmentDefinition, name string) bool {
	if field.SelectionSet == nil {
		return false
	}
	for _, sel := range field.SelectionSet.Selections {
		switch node := sel.(type) {
		case *ast.Field:
			if node.Name.Value == name {
				return true
			}
		case *ast.FragmentSpread:
			if frag, ok := fragments[node.Name.Value]; ok {
				for _, inner := range frag.SelectionSet.Selections {
					if f, ok := inner.(*ast.Field); ok && f.Name.Value == name {
						return true
					}
				}
			}
		}
	}
	return false
}

// validateGroupedProjection rejects projected source columns that are not
// grouped. Only checked when the query groups; subquery placeholder columns
// live under other aliases and are unaffected.
func (q *ReadQueryStructure) validateGroupedProjection() error {
	if q.GroupBy == nil {
		return nil
	}
	for _, col := range q.Columns {
		if col.TableAlias != q.SourceAlias {
			continue
		}
		if _, grouped := q.GroupBy.Fields[col.ColumnName]; !grouped {
			return dberror.NewBadRequestf("field %s must be listed in groupBy fields to be selected", col.Label)
		}
	}
	return nil
}

// finishProjection guarantees at least one projected column and registers
// each column label as a literal string parameter.
func (q *ReadQueryStructure) finishProjection() error {
	if len(q.Columns) == 0 && q.GroupBy == nil {
		pk := q.sourceDef.PrimaryKey()
		if len(pk) == 0 {
			return dberror.NewUnexpectedError(fmt.Sprintf("entity %s has no primary key and no fields were selected", q.EntityName))
		}
		label := pk[0]
		if exposed, ok := q.Provider.ExposedName(q.EntityName, pk[0]); ok {
			label = exposed
		}
		q.AddColumn(pk[0], label)
	}
	for _, col := range q.Columns {
		if _, done := q.ColumnLabelParams[col.Label]; done {
			continue
		}
		token, err := q.MakeParam(col.Label, "")
		if err != nil {
			return err
		}
		q.ColumnLabelParams[col.Label] = token
	}
	return nil
}

// applyPaginationSentinel requests one extra row past the page size when
// the caller asked for hasNextPage or endCursor, so result shaping can
// detect a further page. Applied exactly once, after the limit is final.
func (q *ReadQueryStructure) applyPaginationSentinel() {
	if q.Pagination.IsPaginated && (q.Pagination.RequestedHasNextPage || q.Pagination.RequestedEndCursor) {
		q.Limit++
	}
}

// argumentsToMap coerces a nested field's AST arguments into Go values,
// resolving variable references against the request variables.
func (q *ReadQueryStructure) argumentsToMap(args []*ast.Argument) map[string]interface{} {
	return ArgumentsToMap(args, q.variables)
}

// ArgumentsToMap coerces a field's AST arguments into Go values, resolving
// variable references against the request variables.
func ArgumentsToMap(args []*ast.Argument, variables map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(args))
	for _, arg := range args {
		out[arg.Name.Value] = astValue(arg.Value, variables)
	}
	return out
}

func astValue(v ast.Value, variables map[string]interface{}) interface{} {
	switch node := v.(type) {
	case *ast.StringValue:
		return node.Value
	case *ast.IntValue:
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return node.Value
		}
		return n
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return node.Value
		}
		return f
	case *ast.BooleanValue:
		return node.Value
	case *ast.EnumValue:
		return node.Value
	case *ast.ListValue:
		items := make([]interface{}, 0, len(node.Values))
		for _, item := range node.Values {
			items = append(items, astValue(item, variables))
		}
		return items
	case *ast.ObjectValue:
		obj := make(map[string]interface{}, len(node.Fields))
		for _, f := range node.Fields {
			obj[f.Name.Value] = astValue(f.Value, variables)
		}
		return obj
	case *ast.Variable:
		return variables[node.Name.Value]
	default:
		return nil
	}
}
