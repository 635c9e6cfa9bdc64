package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"dataapi/internal/querymodel"
	"dataapi/internal/sqlutil"
)

// Rendering of finished structures into executable SQL. The structures
// carry predicate text with embedded @paramN tokens; BindParameters swaps
// the tokens for positional placeholders against the parameter table as
// the final step.

// ToSelect assembles the SELECT for a read structure. Nested subqueries
// are rendered as correlated scalar subqueries projected under their
// placeholder label.
func (q *ReadQueryStructure) ToSelect() (sq.SelectBuilder, error) {
	columns, err := q.selectColumns()
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	builder := sq.Select(columns...).
		From(fmt.Sprintf("%s AS %s", sqlutil.QualifiedObject(q.Object.SchemaName, q.Object.Name), sqlutil.QuoteIdentifier(q.SourceAlias)))

	for _, join := range q.Joins {
		onClause, err := querymodel.JoinPredicateStrings(join.Predicates)
		if err != nil {
			return sq.SelectBuilder{}, err
		}
		builder = builder.InnerJoin(fmt.Sprintf("%s AS %s ON %s",
			sqlutil.QualifiedObject(join.Object.SchemaName, join.Object.Name),
			sqlutil.QuoteIdentifier(join.Alias), onClause))
	}
	for _, pred := range q.Predicates {
		builder = builder.Where(pred)
	}
	if q.GroupBy != nil {
		for _, backing := range q.GroupBy.FieldOrder {
			builder = builder.GroupBy(q.GroupBy.Fields[backing].Qualified())
		}
		for _, agg := range q.GroupBy.Aggregations {
			for _, having := range agg.Having {
				builder = builder.Having(having)
			}
		}
	}
	for _, ob := range q.OrderBy {
		builder = builder.OrderBy(fmt.Sprintf("%s %s", ob.Qualified(), ob.Direction))
	}
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	return builder, nil
}

func (q *ReadQueryStructure) selectColumns() ([]string, error) {
	var columns []string
	for _, col := range q.Columns {
		if sub, isSubquery := q.JoinQueries[col.TableAlias]; isSubquery {
			subSQL, err := sub.subquerySQL()
			if err != nil {
				return nil, err
			}
			columns = append(columns, fmt.Sprintf("(%s) AS %s", subSQL, sqlutil.QuoteIdentifier(col.Label)))
			continue
		}
		columns = append(columns, fmt.Sprintf("%s AS %s", col.Qualified(), sqlutil.QuoteIdentifier(col.Label)))
	}
	if q.GroupBy != nil {
		for _, agg := range q.GroupBy.Aggregations {
			columns = append(columns, fmt.Sprintf("%s AS %s",
				aggregateExpression(agg.Column), sqlutil.QuoteIdentifier(agg.Column.Alias)))
		}
	}
	return columns, nil
}

func (q *ReadQueryStructure) subquerySQL() (string, error) {
	builder, err := q.ToSelect()
	if err != nil {
		return "", err
	}
	subSQL, _, err := builder.ToSql()
	return subSQL, err
}

// Preview renders the structure to SQL with positional placeholders and
// the argument list bound from the parameter table.
func (q *ReadQueryStructure) Preview() (string, []interface{}, error) {
	builder, err := q.ToSelect()
	if err != nil {
		return "", nil, err
	}
	query, _, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	return q.bind(query)
}

func (b *BaseQueryStructure) bind(query string) (string, []interface{}, error) {
	return sqlutil.BindParameters(query, func(name string) (interface{}, bool) {
		param, ok := b.Parameters[name]
		return param.Value, ok
	})
}

// Preview renders the INSERT with positional placeholders.
func (q *InsertQueryStructure) Preview() (string, []interface{}, error) {
	columns := make([]string, 0, len(q.InsertColumns))
	for _, col := range q.InsertColumns {
		columns = append(columns, sqlutil.QuoteIdentifier(col.ColumnName))
	}
	values := make([]interface{}, 0, len(q.Values))
	for _, token := range q.Values {
		values = append(values, sq.Expr(token))
	}
	query, _, err := sq.Insert(sqlutil.QualifiedObject(q.Object.SchemaName, q.Object.Name)).
		Columns(columns...).
		Values(values...).
		ToSql()
	if err != nil {
		return "", nil, err
	}
	return q.bind(query)
}

// Preview renders the UPDATE with positional placeholders. SET operations
// reference columns unqualified since MySQL updates carry no alias.
func (q *UpdateQueryStructure) Preview() (string, []interface{}, error) {
	builder := sq.Update(sqlutil.QualifiedObject(q.Object.SchemaName, q.Object.Name) + " AS " + sqlutil.QuoteIdentifier(q.SourceAlias))
	for _, op := range q.UpdateOperations {
		col, ok := op.Left.AsColumn()
		if !ok {
			continue
		}
		text, _, err := op.ToSql()
		if err != nil {
			return "", nil, err
		}
		// "alias.col = @paramN" rendered wholesale into the SET list.
		builder = builder.Set(col.Qualified(), sq.Expr(strings.TrimPrefix(text, col.Qualified()+" = ")))
	}
	for _, pred := range q.Predicates {
		builder = builder.Where(pred)
	}
	query, _, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	return q.bind(query)
}

// Preview renders the DELETE with positional placeholders.
func (q *DeleteQueryStructure) Preview() (string, []interface{}, error) {
	builder := sq.Delete(sqlutil.QualifiedObject(q.Object.SchemaName, q.Object.Name) + " AS " + sqlutil.QuoteIdentifier(q.SourceAlias))
	for _, pred := range q.Predicates {
		builder = builder.Where(pred)
	}
	query, _, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}
	return q.bind(query)
}

// Preview renders the CALL statement with positional placeholders, the
// arguments in declaration order.
func (q *ExecuteQueryStructure) Preview() (string, []interface{}, error) {
	tokens := make([]string, 0, len(q.ParameterNames))
	for _, name := range q.ParameterNames {
		tokens = append(tokens, q.ProcedureParams[name])
	}
	query := fmt.Sprintf("CALL %s(%s)",
		sqlutil.QualifiedObject(q.Object.SchemaName, q.Object.Name), strings.Join(tokens, ", "))
	return q.bind(query)
}
