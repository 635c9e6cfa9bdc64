// Package querymodel defines the value objects the query-structure builders
// compose: columns, order-by and aggregation columns, and predicate trees.
// Predicates implement squirrel's Sqlizer so they combine with the rest of
// the squirrel-based intermediate representation.
package querymodel

import (
	"dataapi/internal/sqlutil"
)

// Column identifies a relational column. TableAlias is set when the owning
// table is aliased in a join or subquery; Label is the exposed output name
// when it differs from the backing column name. Immutable once constructed.
type Column struct {
	SchemaName string
	TableName  string
	ColumnName string
	TableAlias string
	Label      string
}

// NewColumn creates a column without alias or label.
func NewColumn(schema, table, column string) Column {
	return Column{SchemaName: schema, TableName: table, ColumnName: column}
}

// NewAliasedColumn creates a column qualified by a table alias.
func NewAliasedColumn(schema, table, column, alias string) Column {
	return Column{SchemaName: schema, TableName: table, ColumnName: column, TableAlias: alias}
}

// NewLabelledColumn creates a column carrying an exposed output label.
func NewLabelledColumn(schema, table, column, alias, label string) Column {
	return Column{SchemaName: schema, TableName: table, ColumnName: column, TableAlias: alias, Label: label}
}

// Equal is structural equality over schema, table, column, and alias.
// The label is presentation state and does not participate.
func (c Column) Equal(other Column) bool {
	return c.SchemaName == other.SchemaName &&
		c.TableName == other.TableName &&
		c.ColumnName == other.ColumnName &&
		c.TableAlias == other.TableAlias
}

// Qualified renders the column as a quoted alias.column (or table.column
// when no alias was assigned).
func (c Column) Qualified() string {
	qualifier := c.TableAlias
	if qualifier == "" {
		qualifier = c.TableName
	}
	return sqlutil.QualifiedColumn(qualifier, c.ColumnName)
}

// OrderDirection is the sort direction of an OrderByColumn.
type OrderDirection string

const (
	Ascending  OrderDirection = "ASC"
	Descending OrderDirection = "DESC"
)

// Reverse flips the direction, used when paginating backward.
func (d OrderDirection) Reverse() OrderDirection {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// OrderByColumn is a column plus sort direction. The zero direction is
// treated as ascending.
type OrderByColumn struct {
	Column
	Direction OrderDirection
}

// NewOrderByColumn builds an order-by entry, defaulting to ascending.
func NewOrderByColumn(col Column, direction OrderDirection) OrderByColumn {
	if direction == "" {
		direction = Ascending
	}
	return OrderByColumn{Column: col, Direction: direction}
}

// AggregationType is the aggregate operator applied to a column.
type AggregationType string

const (
	AggregationSum   AggregationType = "SUM"
	AggregationAvg   AggregationType = "AVG"
	AggregationMin   AggregationType = "MIN"
	AggregationMax   AggregationType = "MAX"
	AggregationCount AggregationType = "COUNT"
)

// AggregationColumn is a column wrapped in an aggregate operator with an
// output alias. Only meaningful inside group-by queries.
type AggregationColumn struct {
	Column
	Type     AggregationType
	Alias    string
	Distinct bool
}

// AggregationOperation pairs an aggregation column with the HAVING
// predicates parsed against the aggregation's own argument schema.
type AggregationOperation struct {
	Column AggregationColumn
	Having []Predicate
}
