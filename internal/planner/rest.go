package planner

import (
	"dataapi/internal/dberror"
	"dataapi/internal/policy"
	"dataapi/internal/querymodel"
)

// FindOrderBy is one entry of a REST $orderby expression, already split
// into an exposed field name and direction.
type FindOrderBy struct {
	Field      string
	Descending bool
}

// PrimaryKeyRouteSegment is one field/value pair of a REST primary key
// route, e.g. /Book/id/42 yields {Field: "id", Value: "42"}. Values arrive
// as strings and are parsed against the backing column's type.
type PrimaryKeyRouteSegment struct {
	Field string
	Value string
}

// FindInput is a REST read request: $select fields, the primary key route,
// the raw $filter expression, $orderby entries, the continuation token and
// page size.
type FindInput struct {
	Entity          string
	Fields          []string
	PrimaryKeyRoute []PrimaryKeyRouteSegment
	Filter          string
	OrderBy         []FindOrderBy
	After           string
	First           uint64
}

// NewFindQuery builds the query structure for a REST read. REST results
// are always paginated: the limit always carries the extra sentinel row so
// response shaping can decide whether to emit a nextLink.
func NewFindQuery(input FindInput, opts ReadOptions) (*ReadQueryStructure, error) {
	base, err := newBaseStructure(StructureOptions{
		Provider:        opts.Provider,
		Resolver:        opts.Resolver,
		Translator:      opts.Translator,
		Entity:          input.Entity,
		Counter:         opts.Counter,
		Parameters:      opts.Parameters,
		DevelopmentMode: opts.DevelopmentMode,
	})
	if err != nil {
		return nil, err
	}
	opts.Counter = base.counter
	opts.Parameters = base.Parameters
	if opts.DefaultPageSize == 0 {
		opts.DefaultPageSize = defaultPageSize
	}

	q := &ReadQueryStructure{
		BaseQueryStructure: base,
		IsListQuery:        len(input.PrimaryKeyRoute) == 0,
		Pagination:         PaginationMetadata{IsPaginated: true},
		JoinQueries:        make(map[string]*ReadQueryStructure),
		ColumnLabelParams:  make(map[string]string),
		opts:               opts,
	}

	if err := q.applyFindProjection(input.Fields); err != nil {
		return nil, err
	}
	if err := q.applyPrimaryKeyRoute(input.PrimaryKeyRoute); err != nil {
		return nil, err
	}
	if err := q.applyFindFilter(input.Filter); err != nil {
		return nil, err
	}
	if err := q.applyFindOrderBy(input.OrderBy); err != nil {
		return nil, err
	}
	if err := q.ApplyPolicyPredicate(policy.OperationRead); err != nil {
		return nil, err
	}

	if input.First > 0 {
		if opts.MaxPageSize > 0 && input.First > opts.MaxPageSize {
			return nil, dberror.NewBadRequestf("invalid number of items requested, $first must not exceed %d, actual value: %d", opts.MaxPageSize, input.First)
		}
		q.Limit = input.First
	} else {
		q.Limit = opts.DefaultPageSize
	}

	var after interface{}
	if input.After != "" {
		after = input.After
	}
	if err := q.applyAfterArgument(after); err != nil {
		return nil, err
	}
	if err := q.finishProjection(); err != nil {
		return nil, err
	}
	// Always fetch one past the page so nextLink presence is decidable.
	q.Limit++
	return q, nil
}

// applyFindProjection projects the $select fields, or every column of the
// source when none were requested.
func (q *ReadQueryStructure) applyFindProjection(fields []string) error {
	if len(fields) == 0 {
		for _, def := range q.sourceDef.Columns {
			label := def.Name
			if exposed, ok := q.Provider.ExposedName(q.EntityName, def.Name); ok {
				label = exposed
			}
			q.AddColumn(def.Name, label)
		}
		return nil
	}
	for _, field := range fields {
		backing, err := q.BackingColumn(field)
		if err != nil {
			return err
		}
		q.AddColumn(backing, field)
	}
	return nil
}

// applyPrimaryKeyRoute parses each route segment against its column type
// and adds the equality predicate.
func (q *ReadQueryStructure) applyPrimaryKeyRoute(route []PrimaryKeyRouteSegment) error {
	for _, segment := range route {
		backing, err := q.BackingColumn(segment.Field)
		if err != nil {
			return err
		}
		value, err := q.ParseParam(segment.Value, segment.Field, backing)
		if err != nil {
			return err
		}
		token, err := q.MakeParam(value, backing)
		if err != nil {
			return err
		}
		col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias)
		q.Predicates = append(q.Predicates, querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(col),
			querymodel.OperationEqual,
			querymodel.NewRawOperand(token)))
	}
	return nil
}

// applyFindFilter hands the raw $filter expression to the clause
// translator. Translation failures surface as bad requests since the
// expression is caller input.
func (q *ReadQueryStructure) applyFindFilter(filter string) error {
	if filter == "" {
		return nil
	}
	if q.Translator == nil {
		return dberror.NewNotSupported("$filter is not supported for this entity")
	}
	translated, err := q.Translator.Translate(filter, q.EntityName, q.SourceAlias)
	if err != nil {
		return dberror.WrapBadRequest(err, "$filter expression could not be processed")
	}
	pred := querymodel.NewUnaryPredicate(querymodel.NewRawOperand(translated), querymodel.OperationNone)
	pred.Parenthesized = true
	q.Predicates = append(q.Predicates, pred)
	return nil
}

func (q *ReadQueryStructure) applyFindOrderBy(entries []FindOrderBy) error {
	converted := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		dir := "ASC"
		if entry.Descending {
			dir = "DESC"
		}
		converted = append(converted, map[string]interface{}{entry.Field: dir})
	}
	var arg interface{}
	if len(converted) > 0 {
		arg = converted
	}
	return q.resolveOrderBy(arg)
}
