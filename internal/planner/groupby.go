package planner

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"

	"dataapi/internal/dberror"
	"dataapi/internal/querymodel"
)

// GroupByMetadata captures the grouping of a connection query: the grouped
// backing columns, the aggregation operations with their HAVING predicates,
// and which halves of the groupBy selection the caller asked for.
type GroupByMetadata struct {
	// Fields maps backing column names to their grouped column references,
	// FieldOrder preserves declaration order for rendering.
	Fields     map[string]querymodel.Column
	FieldOrder []string

	Aggregations []querymodel.AggregationOperation

	RequestedFields       bool
	RequestedAggregations bool
}

var aggregationTypes = map[string]querymodel.AggregationType{
	"sum":   querymodel.AggregationSum,
	"avg":   querymodel.AggregationAvg,
	"min":   querymodel.AggregationMin,
	"max":   querymodel.AggregationMax,
	"count": querymodel.AggregationCount,
}

var havingOperators = map[string]querymodel.PredicateOperation{
	"eq":  querymodel.OperationEqual,
	"neq": querymodel.OperationNotEqual,
	"gt":  querymodel.OperationGreaterThan,
	"gte": querymodel.OperationGreaterThanOrEqual,
	"lt":  querymodel.OperationLessThan,
	"lte": querymodel.OperationLessThanOrEqual,
}

// processGroupBy translates the groupBy sub-selection of a connection: the
// fields argument becomes grouped, projected columns and the aggregations
// sub-selection becomes aggregation operations.
func (q *ReadQueryStructure) processGroupBy(field *ast.Field) error {
	gb := &GroupByMetadata{Fields: make(map[string]querymodel.Column)}
	q.GroupBy = gb

	if fieldsArg := q.argumentsToMap(field.Arguments)["fields"]; fieldsArg != nil {
		list, ok := fieldsArg.([]interface{})
		if !ok {
			return dberror.NewBadRequest("groupBy fields must be a list of field names")
		}
		for _, raw := range list {
			exposed, ok := raw.(string)
			if !ok {
				return dberror.NewBadRequest("groupBy fields must be field names")
			}
			backing, err := q.BackingColumn(exposed)
			if err != nil {
				return err
			}
			if _, dup := gb.Fields[backing]; dup {
				continue
			}
			col := q.AddColumn(backing, exposed)
			gb.Fields[backing] = col
			gb.FieldOrder = append(gb.FieldOrder, backing)
		}
	}

	if field.SelectionSet == nil {
		return dberror.NewBadRequest("groupBy requires a selection set")
	}
	for _, sel := range field.SelectionSet.Selections {
		node, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		switch node.Name.Value {
		case "fields":
			gb.RequestedFields = true
			if len(gb.Fields) == 0 {
				return dberror.NewBadRequest("groupBy fields selection requires the fields argument")
			}
		case "aggregations":
			gb.RequestedAggregations = true
			if node.SelectionSet == nil {
				return dberror.NewBadRequest("aggregations requires a selection set")
			}
			for _, aggSel := range node.SelectionSet.Selections {
				aggNode, ok := aggSel.(*ast.Field)
				if !ok {
					continue
				}
				if err := q.processAggregation(aggNode); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (q *ReadQueryStructure) processAggregation(node *ast.Field) error {
	aggType, known := aggregationTypes[node.Name.Value]
	if !known {
		return dberror.NewBadRequestf("unknown aggregation operation %s", node.Name.Value)
	}
	alias := node.Name.Value
	if node.Alias != nil {
		alias = node.Alias.Value
	}
	args := q.argumentsToMap(node.Arguments)

	exposed, ok := args["field"].(string)
	if !ok || exposed == "" {
		return dberror.NewBadRequestf("aggregation %s requires a field argument", node.Name.Value)
	}
	backing, err := q.BackingColumn(exposed)
	if err != nil {
		return err
	}
	kind, err := q.ColumnKind(backing)
	if err != nil {
		return err
	}
	if aggType != querymodel.AggregationCount && !kind.IsNumeric() {
		return dberror.NewBadRequestf("aggregation %s requires a numeric field, %s is %s", node.Name.Value, exposed, kind)
	}

	distinct, _ := args["distinct"].(bool)
	aggCol := querymodel.AggregationColumn{
		Column: querymodel.NewAliasedColumn(
			q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias),
		Type:     aggType,
		Alias:    alias,
		Distinct: distinct,
	}

	op := querymodel.AggregationOperation{Column: aggCol}
	if havingArg, present := args["having"]; present && havingArg != nil {
		havingMap, ok := havingArg.(map[string]interface{})
		if !ok {
			return dberror.NewBadRequest("having must be an input object")
		}
		expr := aggregateExpression(aggCol)
		for _, opName := range sortedKeys(havingMap) {
			predOp, known := havingOperators[opName]
			if !known {
				return dberror.NewBadRequestf("unknown having operator %s", opName)
			}
			token, err := q.MakeParam(havingMap[opName], "")
			if err != nil {
				return err
			}
			op.Having = append(op.Having, querymodel.NewBinaryPredicate(
				querymodel.NewRawOperand(expr), predOp, querymodel.NewRawOperand(token)))
		}
	}
	q.GroupBy.Aggregations = append(q.GroupBy.Aggregations, op)
	return nil
}

// aggregateExpression renders the SQL expression for an aggregation column,
// used as the left side of its HAVING predicates.
func aggregateExpression(col querymodel.AggregationColumn) string {
	if col.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", col.Type, col.Qualified())
	}
	return fmt.Sprintf("%s(%s)", col.Type, col.Qualified())
}
