package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_SelectWithFilterOrderAndLimit(t *testing.T) {
	input := connectionInput(map[string]interface{}{
		"first":   int64(10),
		"filter":  map[string]interface{}{"pages": map[string]interface{}{"gt": int64(100)}},
		"orderBy": []interface{}{map[string]interface{}{"title": "ASC"}},
	})
	q, err := NewReadQuery(input, testReadOptions())
	require.NoError(t, err)

	sql, args, err := q.Preview()
	require.NoError(t, err)

	assert.Contains(t, sql, "SELECT `table0`.`id` AS `id`, `table0`.`title` AS `title`")
	assert.Contains(t, sql, "FROM `books` AS `table0`")
	assert.Contains(t, sql, "WHERE (`table0`.`pages` > ?)")
	assert.Contains(t, sql, "ORDER BY `table0`.`title` ASC, `table0`.`id` ASC")
	assert.Contains(t, sql, "LIMIT 10")

	require.Len(t, args, 1)
	assert.Equal(t, int32(100), args[0])
}

func TestPreview_NestedSubqueryRendersCorrelated(t *testing.T) {
	q, err := NewReadQuery(GraphQLInput{
		Field:    scalarFieldWithChild("books", "id", scalarField("publisher", "name")),
		TypeName: "Book",
	}, testReadOptions())
	require.NoError(t, err)

	sql, _, err := q.Preview()
	require.NoError(t, err)

	assert.Contains(t, sql, "(SELECT `table1`.`name` AS `name` FROM `publishers` AS `table1`")
	assert.Contains(t, sql, "`table0`.`publisher_id` = `table1`.`id`")
	assert.Contains(t, sql, "AS `publisher`")
}

func TestPreview_ManyToManyJoinRendered(t *testing.T) {
	q, err := NewReadQuery(GraphQLInput{
		Field:    scalarFieldWithChild("books", "id", scalarField("authors", "name")),
		TypeName: "Book",
	}, testReadOptions())
	require.NoError(t, err)

	sql, _, err := q.Preview()
	require.NoError(t, err)

	assert.Contains(t, sql, "INNER JOIN `book_author` AS `table2` ON")
	assert.Contains(t, sql, "`table2`.`author_id` = `table1`.`id`")
	assert.Contains(t, sql, "`table2`.`book_id` = `table0`.`id`")
}

func TestPreview_GroupByWithHaving(t *testing.T) {
	having := havingGreaterThan("100")
	gb := groupByField([]string{"publisher_id"}, maxPagesAggregation(having))
	q, err := NewReadQuery(groupedConnection(gb, nil), testReadOptions())
	require.NoError(t, err)

	sql, args, err := q.Preview()
	require.NoError(t, err)

	assert.Contains(t, sql, "MAX(`table0`.`pages`) AS `max`")
	assert.Contains(t, sql, "GROUP BY `table0`.`publisher_id`")
	assert.Contains(t, sql, "HAVING MAX(`table0`.`pages`) > ?")
	assert.Contains(t, args, int64(100))
}

func TestPreview_ArgumentsFollowPlaceholderOrder(t *testing.T) {
	input := bookField("id")
	input.Args = map[string]interface{}{
		"filter": map[string]interface{}{
			"pages": map[string]interface{}{"gte": int64(100), "lte": int64(500)},
		},
	}
	q, err := NewReadQuery(input, testReadOptions())
	require.NoError(t, err)

	sql, args, err := q.Preview()
	require.NoError(t, err)
	assert.NotContains(t, sql, "@param")
	require.Len(t, args, 2)
	assert.Equal(t, int32(100), args[0])
	assert.Equal(t, int32(500), args[1])
}

func TestPreview_UpdateStatement(t *testing.T) {
	q, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":    int64(7),
			"title": "dune",
		}),
	})
	require.NoError(t, err)

	sql, args, err := q.Preview()
	require.NoError(t, err)
	assert.Contains(t, sql, "UPDATE `books` AS `table0` SET `table0`.`title` = ?")
	assert.Contains(t, sql, "WHERE `table0`.`id` = ?")
	assert.Equal(t, []interface{}{"dune", int32(7)}, args)
}
