package planner

import (
	"github.com/graphql-go/graphql/language/ast"

	"dataapi/internal/metadata"
	"dataapi/internal/policy"
)

// Shared fixtures: a small catalog schema with a to-one relationship
// (Book -> Publisher), a to-many (Publisher -> Book), a many-to-many
// through a linking table (Book <-> Author), and a stored procedure.

func testProvider() *metadata.InMemoryProvider {
	return metadata.NewInMemoryProvider([]metadata.EntityConfig{
		{
			Name:   "Book",
			Object: "books",
			Columns: []metadata.ColumnDefinition{
				{Name: "id", DataType: "int", IsPrimaryKey: true, IsAutoGenerated: true},
				{Name: "title", DataType: "varchar(255)"},
				{Name: "pages", DataType: "int", IsNullable: true},
				{Name: "publisher_id", DataType: "int"},
				{Name: "row_version", DataType: "bigint", IsNullable: true, IsReadOnly: true},
			},
			Relationships: []metadata.RelationshipConfig{
				{
					Field:         "publisher",
					TargetEntity:  "Publisher",
					Cardinality:   "one",
					SourceColumns: []string{"publisher_id"},
					TargetColumns: []string{"id"},
				},
				{
					Field:             "authors",
					TargetEntity:      "Author",
					Cardinality:       "many",
					LinkingObject:     "book_author",
					SourceColumns:     []string{"id"},
					TargetColumns:     []string{"id"},
					LinkingSourceCols: []string{"book_id"},
					LinkingTargetCols: []string{"author_id"},
				},
			},
		},
		{
			Name:   "Publisher",
			Object: "publishers",
			Columns: []metadata.ColumnDefinition{
				{Name: "id", DataType: "int", IsPrimaryKey: true, IsAutoGenerated: true},
				{Name: "name", DataType: "varchar(255)"},
			},
			Relationships: []metadata.RelationshipConfig{
				{
					Field:         "books",
					TargetEntity:  "Book",
					Cardinality:   "many",
					SourceColumns: []string{"id"},
					TargetColumns: []string{"publisher_id"},
				},
			},
		},
		{
			Name:   "Author",
			Object: "authors",
			Columns: []metadata.ColumnDefinition{
				{Name: "id", DataType: "int", IsPrimaryKey: true},
				{Name: "name", DataType: "varchar(255)"},
			},
		},
		{
			Name:   "Review",
			Object: "reviews",
			Columns: []metadata.ColumnDefinition{
				{Name: "book_id", DataType: "int", IsPrimaryKey: true},
				{Name: "reviewer", DataType: "varchar(64)", IsPrimaryKey: true},
				{Name: "rating", DataType: "int"},
			},
		},
		{
			Name:      "CountBooks",
			Object:    "count_books",
			Procedure: true,
			Parameters: []metadata.ProcedureParameter{
				{Name: "publisher_id", DataType: "int"},
				{Name: "min_pages", DataType: "int", HasConfigDefault: true, ConfigDefault: 100},
			},
		},
	})
}

func testReadOptions() ReadOptions {
	return ReadOptions{Provider: testProvider()}
}

func testMutationOptions(entity string, input map[string]interface{}) MutationOptions {
	return MutationOptions{Provider: testProvider(), Entity: entity, Input: input}
}

func scalarFieldWithChild(name, scalar string, child *ast.Field) *ast.Field {
	return &ast.Field{
		Name: &ast.Name{Value: name},
		SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
			&ast.Field{Name: &ast.Name{Value: scalar}},
			child,
		}},
	}
}

func havingGreaterThan(value string) *ast.ObjectValue {
	return &ast.ObjectValue{Fields: []*ast.ObjectField{{
		Name:  &ast.Name{Value: "gt"},
		Value: &ast.IntValue{Value: value},
	}}}
}

// countingTranslator records how often Translate runs, for cache checks.
type countingTranslator struct {
	calls  int
	result string
}

func (c *countingTranslator) Translate(clause, entity, sourceAlias string) (string, error) {
	c.calls++
	if c.result != "" {
		return c.result, nil
	}
	return clause, nil
}

func staticPolicies(entity string, op policy.Operation, clause string, columns ...string) *policy.StaticResolver {
	return &policy.StaticResolver{
		Policies: map[string]map[policy.Operation]string{entity: {op: clause}},
		Columns:  map[string]map[policy.Operation][]string{entity: {op: columns}},
	}
}
