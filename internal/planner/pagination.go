package planner

import (
	"dataapi/internal/cursor"
	"dataapi/internal/dberror"
	"dataapi/internal/querymodel"
	"dataapi/internal/sqltype"
)

// PaginationMetadata records which parts of the pagination envelope the
// caller selected and the keyset predicate derived from the continuation
// token, if one was supplied.
type PaginationMetadata struct {
	IsPaginated bool

	RequestedItems       bool
	RequestedEndCursor   bool
	RequestedHasNextPage bool
	RequestedGroupBy     bool

	KeysetPredicate *querymodel.Predicate
}

// applyAfterArgument decodes the continuation token, validates it against
// this query's entity and ordering, and appends the keyset predicate that
// seeks past the cursor row.
func (q *ReadQueryStructure) applyAfterArgument(after interface{}) error {
	if after == nil {
		return nil
	}
	raw, ok := after.(string)
	if !ok {
		return dberror.NewBadRequest("after must be a string")
	}
	if raw == "" {
		return nil
	}
	if !q.Pagination.IsPaginated {
		return dberror.NewBadRequest("after is only valid on paginated queries")
	}

	entity, orderByKey, directions, stringValues, err := cursor.Decode(raw)
	if err != nil {
		return dberror.WrapBadRequest(err, "after parameter is not a valid continuation token")
	}
	if err := cursor.Validate(q.EntityName, q.OrderByKey(), q.OrderByDirections(), entity, orderByKey, directions); err != nil {
		return dberror.WrapBadRequest(err, "after parameter does not match this query")
	}
	kinds := make([]sqltype.Kind, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		kind, err := q.ColumnKind(ob.ColumnName)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	values, err := cursor.ParseValues(stringValues, kinds)
	if err != nil {
		return dberror.WrapBadRequest(err, "after parameter carries invalid values")
	}

	pred, err := q.keysetPredicate(values)
	if err != nil {
		return err
	}
	q.Pagination.KeysetPredicate = pred
	q.Predicates = append(q.Predicates, *pred)
	return nil
}

// keysetPredicate builds the seek condition for the cursor row values:
// an OR over each order-by position i of (cols before i all equal their
// cursor values AND col i is strictly past its cursor value). With the
// primary key folded into the ordering this resumes exactly after the
// cursor row.
func (q *ReadQueryStructure) keysetPredicate(values []interface{}) (*querymodel.Predicate, error) {
	if len(values) != len(q.OrderBy) {
		return nil, dberror.NewBadRequest("continuation token does not match the query ordering")
	}
	tokens := make([]string, len(values))
	for i, value := range values {
		token, err := q.MakeParam(value, q.OrderBy[i].ColumnName)
		if err != nil {
			return nil, err
		}
		tokens[i] = token
	}

	var combined *querymodel.Predicate
	for i, ob := range q.OrderBy {
		op := querymodel.OperationGreaterThan
		if ob.Direction == querymodel.Descending {
			op = querymodel.OperationLessThan
		}
		branch := querymodel.NewBinaryPredicate(
			querymodel.NewColumnOperand(ob.Column), op, querymodel.NewRawOperand(tokens[i]))
		for j := 0; j < i; j++ {
			equal := querymodel.NewBinaryPredicate(
				querymodel.NewColumnOperand(q.OrderBy[j].Column),
				querymodel.OperationEqual,
				querymodel.NewRawOperand(tokens[j]))
			branch = querymodel.MakeAndPredicate(equal, branch)
		}
		if combined == nil {
			combined = &branch
		} else {
			merged := querymodel.MakeOrPredicate(*combined, branch)
			combined = &merged
		}
	}
	if combined == nil {
		return nil, dberror.NewBadRequest("continuation tokens require an ordering")
	}
	combined.Parenthesized = true
	return combined, nil
}

// MakeCursor mints the continuation token for a result row, keyed by the
// current ordering. Rows scanned from the projection are keyed by exposed
// labels, so the lookup accepts those as well as backing column names.
func (q *ReadQueryStructure) MakeCursor(row map[string]interface{}) (string, error) {
	values := make([]interface{}, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		value, ok := row[ob.ColumnName]
		if !ok {
			if exposed, mapped := q.Provider.ExposedName(q.EntityName, ob.ColumnName); mapped {
				value, ok = row[exposed]
			}
		}
		if !ok {
			return "", dberror.NewUnexpectedError("result row is missing order-by column " + ob.ColumnName)
		}
		values = append(values, value)
	}
	return cursor.Encode(q.EntityName, q.OrderByKey(), q.OrderByDirections(), values...), nil
}
