package planner

import (
	"strings"

	"dataapi/internal/dberror"
	"dataapi/internal/querymodel"
)

var comparisonOperators = map[string]querymodel.PredicateOperation{
	"eq":  querymodel.OperationEqual,
	"neq": querymodel.OperationNotEqual,
	"gt":  querymodel.OperationGreaterThan,
	"gte": querymodel.OperationGreaterThanOrEqual,
	"lt":  querymodel.OperationLessThan,
	"lte": querymodel.OperationLessThanOrEqual,
}

// applyFilterArgument parses the filter input object into predicates and
// appends the combined result to this structure.
func (q *ReadQueryStructure) applyFilterArgument(filter interface{}) error {
	if filter == nil {
		return nil
	}
	filterMap, ok := filter.(map[string]interface{})
	if !ok {
		return dberror.NewBadRequest("filter must be an input object")
	}
	pred, err := q.parseFilterObject(filterMap)
	if err != nil {
		return err
	}
	if pred != nil {
		pred.Parenthesized = true
		q.Predicates = append(q.Predicates, *pred)
	}
	return nil
}

// parseFilterObject turns one filter level into a predicate: field entries
// AND together, and/or entries combine their element lists.
func (q *ReadQueryStructure) parseFilterObject(filterMap map[string]interface{}) (*querymodel.Predicate, error) {
	var combined *querymodel.Predicate
	for _, key := range sortedKeys(filterMap) {
		value := filterMap[key]
		var pred *querymodel.Predicate
		var err error
		switch key {
		case "and":
			pred, err = q.parseFilterList(value, querymodel.MakeAndPredicate)
		case "or":
			pred, err = q.parseFilterList(value, querymodel.MakeOrPredicate)
		default:
			pred, err = q.parseFieldFilter(key, value)
		}
		if err != nil {
			return nil, err
		}
		if pred == nil {
			continue
		}
		if combined == nil {
			combined = pred
		} else {
			merged := querymodel.MakeAndPredicate(*combined, *pred)
			combined = &merged
		}
	}
	return combined, nil
}

func (q *ReadQueryStructure) parseFilterList(value interface{}, combine func(l, r querymodel.Predicate) querymodel.Predicate) (*querymodel.Predicate, error) {
	list, ok := value.([]interface{})
	if !ok {
		return nil, dberror.NewBadRequest("and/or filter entries must be lists")
	}
	var combined *querymodel.Predicate
	for _, entry := range list {
		entryMap, ok := entry.(map[string]interface{})
		if !ok {
			return nil, dberror.NewBadRequest("and/or filter entries must be input objects")
		}
		pred, err := q.parseFilterObject(entryMap)
		if err != nil {
			return nil, err
		}
		if pred == nil {
			continue
		}
		if combined == nil {
			combined = pred
		} else {
			merged := combine(*combined, *pred)
			combined = &merged
		}
	}
	return combined, nil
}

// parseFieldFilter handles one exposed field's operator map, e.g.
// {title: {contains: "go", isNull: false}}.
func (q *ReadQueryStructure) parseFieldFilter(field string, value interface{}) (*querymodel.Predicate, error) {
	ops, ok := value.(map[string]interface{})
	if !ok {
		return nil, dberror.NewBadRequestf("filter for field %s must be an input object", field)
	}
	backing, err := q.BackingColumn(field)
	if err != nil {
		return nil, err
	}
	col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias)
	left := querymodel.NewColumnOperand(col)

	var combined *querymodel.Predicate
	for _, opName := range sortedKeys(ops) {
		opValue := ops[opName]
		var pred querymodel.Predicate
		switch opName {
		case "isNull":
			wantNull, ok := opValue.(bool)
			if !ok {
				return nil, dberror.NewBadRequestf("isNull filter for field %s must be a boolean", field)
			}
			op := querymodel.OperationIsNull
			if !wantNull {
				op = querymodel.OperationIsNotNull
			}
			pred = querymodel.NewUnaryPredicate(left, op)
		case "in":
			list, ok := opValue.([]interface{})
			if !ok || len(list) == 0 {
				return nil, dberror.NewBadRequestf("in filter for field %s must be a non-empty list", field)
			}
			tokens := make([]string, 0, len(list))
			for _, item := range list {
				token, err := q.MakeParam(item, backing)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, token)
			}
			pred = querymodel.NewBinaryPredicate(left, querymodel.OperationIn,
				querymodel.NewRawOperand("("+strings.Join(tokens, ", ")+")"))
		case "contains", "notContains", "startsWith", "endsWith":
			pattern, err := likePattern(opName, opValue)
			if err != nil {
				return nil, dberror.WrapBadRequest(err, "invalid filter for field "+field)
			}
			token, err := q.MakeParam(pattern, "")
			if err != nil {
				return nil, err
			}
			op := querymodel.OperationLike
			if opName == "notContains" {
				op = querymodel.OperationNotLike
			}
			pred = querymodel.NewBinaryPredicate(left, op, querymodel.NewRawOperand(token))
		default:
			op, known := comparisonOperators[opName]
			if !known {
				return nil, dberror.NewBadRequestf("unknown filter operator %s for field %s", opName, field)
			}
			token, err := q.MakeParam(opValue, backing)
			if err != nil {
				return nil, err
			}
			pred = querymodel.NewBinaryPredicate(left, op, querymodel.NewRawOperand(token))
		}
		if combined == nil {
			combined = &pred
		} else {
			merged := querymodel.MakeAndPredicate(*combined, pred)
			combined = &merged
		}
	}
	return combined, nil
}

func likePattern(opName string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", dberror.NewBadRequestf("%s requires a string argument", opName)
	}
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
	switch opName {
	case "startsWith":
		return s + "%", nil
	case "endsWith":
		return "%" + s, nil
	default:
		return "%" + s + "%", nil
	}
}
