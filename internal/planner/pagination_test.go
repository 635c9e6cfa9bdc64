package planner

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataapi/internal/cursor"
	"dataapi/internal/metadata"
)

func connectionField(extra ...string) *ast.Field {
	selections := []ast.Selection{
		&ast.Field{
			Name: &ast.Name{Value: "items"},
			SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
				&ast.Field{Name: &ast.Name{Value: "id"}},
				&ast.Field{Name: &ast.Name{Value: "title"}},
			}},
		},
	}
	for _, name := range extra {
		selections = append(selections, &ast.Field{Name: &ast.Name{Value: name}})
	}
	return &ast.Field{
		Name:         &ast.Name{Value: "books"},
		SelectionSet: &ast.SelectionSet{Selections: selections},
	}
}

func connectionInput(args map[string]interface{}, extra ...string) GraphQLInput {
	return GraphQLInput{
		Field:    connectionField(extra...),
		TypeName: "BookConnection",
		Args:     args,
	}
}

func TestConnection_UnwrapsItems(t *testing.T) {
	q, err := NewReadQuery(connectionInput(nil), testReadOptions())
	require.NoError(t, err)

	assert.True(t, q.Pagination.IsPaginated)
	assert.True(t, q.Pagination.RequestedItems)
	assert.True(t, q.IsListQuery)
	assert.Equal(t, "Book", q.EntityName)
	assert.Len(t, q.Columns, 2)
}

func TestConnection_SentinelRowOnlyWhenEnvelopeNeedsIt(t *testing.T) {
	args := map[string]interface{}{"first": int64(10)}

	plain, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), plain.Limit)

	withNext, err := NewReadQuery(connectionInput(args, "hasNextPage"), testReadOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(11), withNext.Limit)

	// Requesting both envelope fields still adds exactly one extra row.
	withBoth, err := NewReadQuery(connectionInput(args, "hasNextPage", "endCursor"), testReadOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(11), withBoth.Limit)
}

func TestConnection_OrderByGetsPrimaryKeyRemainder(t *testing.T) {
	args := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"title": "DESC"}},
	}
	q, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 2)
	assert.Equal(t, "title", q.OrderBy[0].ColumnName)
	assert.Equal(t, "DESC", string(q.OrderBy[0].Direction))
	assert.Equal(t, "id", q.OrderBy[1].ColumnName)
	assert.Equal(t, "ASC", string(q.OrderBy[1].Direction))
}

func TestConnection_DefaultOrderIsFullPrimaryKey(t *testing.T) {
	field := &ast.Field{
		Name: &ast.Name{Value: "reviews"},
		SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
			&ast.Field{
				Name: &ast.Name{Value: "items"},
				SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
					&ast.Field{Name: &ast.Name{Value: "rating"}},
				}},
			},
		}},
	}
	q, err := NewReadQuery(GraphQLInput{Field: field, TypeName: "ReviewConnection"}, testReadOptions())
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 2)
	assert.Equal(t, "book_id", q.OrderBy[0].ColumnName)
	assert.Equal(t, "reviewer", q.OrderBy[1].ColumnName)
}

func TestListQuery_OrderByGetsPrimaryKeyRemainder(t *testing.T) {
	input := GraphQLInput{
		Field:    scalarField("books", "title"),
		TypeName: "Book",
		IsList:   true,
		Args: map[string]interface{}{
			"orderBy": []interface{}{map[string]interface{}{"title": "ASC"}},
		},
	}
	q, err := NewReadQuery(input, testReadOptions())
	require.NoError(t, err)

	// Ordering by a non-unique column must still be total even without
	// the connection envelope.
	assert.False(t, q.Pagination.IsPaginated)
	require.Len(t, q.OrderBy, 2)
	assert.Equal(t, "title", q.OrderBy[0].ColumnName)
	assert.Equal(t, "id", q.OrderBy[1].ColumnName)
	assert.Equal(t, "ASC", string(q.OrderBy[1].Direction))
}

func TestConnection_PrimaryKeyInOrderByNotDuplicated(t *testing.T) {
	args := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"id": "DESC"}},
	}
	q, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 1)
	assert.Equal(t, "id", q.OrderBy[0].ColumnName)
	assert.Equal(t, "DESC", string(q.OrderBy[0].Direction))
}

func TestConnection_AfterTokenBuildsKeysetPredicate(t *testing.T) {
	orderArgs := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"title": "ASC"}},
	}
	minted, err := NewReadQuery(connectionInput(orderArgs), testReadOptions())
	require.NoError(t, err)
	token, err := minted.MakeCursor(map[string]interface{}{"title": "middlemarch", "id": int32(7)})
	require.NoError(t, err)

	args := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"title": "ASC"}},
		"after":   token,
	}
	q, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.NoError(t, err)
	require.NotNil(t, q.Pagination.KeysetPredicate)

	text, _, err := q.Pagination.KeysetPredicate.ToSql()
	require.NoError(t, err)
	assert.Contains(t, text, "`table0`.`title` >")
	assert.Contains(t, text, "OR")
	assert.Contains(t, text, "`table0`.`title` =")
	assert.Contains(t, text, "`table0`.`id` >")
}

func TestConnection_AfterTokenDescendingSeeksBackward(t *testing.T) {
	orderArgs := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"title": "DESC"}},
	}
	minted, err := NewReadQuery(connectionInput(orderArgs), testReadOptions())
	require.NoError(t, err)
	token, err := minted.MakeCursor(map[string]interface{}{"title": "middlemarch", "id": int32(7)})
	require.NoError(t, err)

	args := map[string]interface{}{
		"orderBy": []interface{}{map[string]interface{}{"title": "DESC"}},
		"after":   token,
	}
	q, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.NoError(t, err)

	text, _, err := q.Pagination.KeysetPredicate.ToSql()
	require.NoError(t, err)
	assert.Contains(t, text, "`table0`.`title` <")
}

func TestConnection_AfterTokenOrderingMismatchRejected(t *testing.T) {
	token := cursor.Encode("Book", "title", []string{"ASC"}, "middlemarch")
	args := map[string]interface{}{"after": token}

	// Default ordering is the primary key, not title.
	_, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after")
}

func TestConnection_AfterTokenWrongEntityRejected(t *testing.T) {
	token := cursor.Encode("Publisher", "id", []string{"ASC"}, "3")
	args := map[string]interface{}{"after": token}

	_, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.Error(t, err)
}

func TestConnection_MalformedAfterTokenRejected(t *testing.T) {
	args := map[string]interface{}{"after": "not-a-token"}

	_, err := NewReadQuery(connectionInput(args), testReadOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "continuation token")
}

func TestNonPaginatedQueryRejectsAfter(t *testing.T) {
	input := bookField("id")
	input.Args = map[string]interface{}{"after": "anything"}

	_, err := NewReadQuery(input, testReadOptions())
	require.Error(t, err)
}

func TestMakeCursor_RoundTripsThroughValidation(t *testing.T) {
	q, err := NewReadQuery(connectionInput(nil), testReadOptions())
	require.NoError(t, err)

	token, err := q.MakeCursor(map[string]interface{}{"id": int32(42)})
	require.NoError(t, err)

	entity, key, directions, values, err := cursor.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "Book", entity)
	assert.Equal(t, q.OrderByKey(), key)
	assert.Equal(t, []string{"ASC"}, directions)
	assert.Equal(t, []string{"42"}, values)
}

func TestMakeCursor_AcceptsExposedLabelsForMappedColumns(t *testing.T) {
	provider := metadata.NewInMemoryProvider([]metadata.EntityConfig{
		{
			Name:   "Film",
			Object: "films",
			Columns: []metadata.ColumnDefinition{
				{Name: "id", DataType: "int", IsPrimaryKey: true, IsAutoGenerated: true},
				{Name: "release_year", DataType: "int"},
			},
			Mappings: map[string]string{"year": "release_year"},
		},
	})

	field := &ast.Field{
		Name: &ast.Name{Value: "films"},
		SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
			&ast.Field{
				Name: &ast.Name{Value: "items"},
				SelectionSet: &ast.SelectionSet{Selections: []ast.Selection{
					&ast.Field{Name: &ast.Name{Value: "id"}},
					&ast.Field{Name: &ast.Name{Value: "year"}},
				}},
			},
		}},
	}
	q, err := NewReadQuery(GraphQLInput{
		Field:    field,
		TypeName: "FilmConnection",
		Args: map[string]interface{}{
			"orderBy": []interface{}{map[string]interface{}{"year": "ASC"}},
		},
	}, ReadOptions{Provider: provider})
	require.NoError(t, err)

	// Scanned rows carry the exposed label, not the backing column name.
	token, err := q.MakeCursor(map[string]interface{}{"year": int32(1982), "id": int32(3)})
	require.NoError(t, err)

	_, _, _, values, err := cursor.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"1982", "3"}, values)

	_, err = q.MakeCursor(map[string]interface{}{"id": int32(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release_year")
}
