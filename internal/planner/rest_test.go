package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataapi/internal/dberror"
	"dataapi/internal/policy"
)

func TestNewFindQuery_DefaultProjectionIsAllColumns(t *testing.T) {
	q, err := NewFindQuery(FindInput{Entity: "Book"}, testReadOptions())
	require.NoError(t, err)

	assert.Len(t, q.Columns, 5)
	assert.True(t, q.IsListQuery)
	assert.True(t, q.Pagination.IsPaginated)
}

func TestNewFindQuery_SelectLimitsProjection(t *testing.T) {
	q, err := NewFindQuery(FindInput{Entity: "Book", Fields: []string{"id", "title"}}, testReadOptions())
	require.NoError(t, err)
	assert.Len(t, q.Columns, 2)
}

func TestNewFindQuery_AlwaysFetchesSentinelRow(t *testing.T) {
	q, err := NewFindQuery(FindInput{Entity: "Book", First: 25}, testReadOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(26), q.Limit)

	q, err = NewFindQuery(FindInput{Entity: "Book"}, testReadOptions())
	require.NoError(t, err)
	assert.Equal(t, uint64(defaultPageSize+1), q.Limit)
}

func TestNewFindQuery_PrimaryKeyRouteParsesValues(t *testing.T) {
	q, err := NewFindQuery(FindInput{
		Entity:          "Book",
		PrimaryKeyRoute: []PrimaryKeyRouteSegment{{Field: "id", Value: "42"}},
	}, testReadOptions())
	require.NoError(t, err)

	assert.False(t, q.IsListQuery)
	require.Len(t, q.Predicates, 1)
	where, _, err := q.Predicates[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`id` = @param0", where)
	assert.Equal(t, int32(42), q.Parameters["param0"].Value)
}

func TestNewFindQuery_PrimaryKeyRouteBadValueRejected(t *testing.T) {
	_, err := NewFindQuery(FindInput{
		Entity:          "Book",
		PrimaryKeyRoute: []PrimaryKeyRouteSegment{{Field: "id", Value: "not-a-number"}},
	}, testReadOptions())
	require.Error(t, err)
}

func TestNewFindQuery_FilterGoesThroughTranslator(t *testing.T) {
	opts := testReadOptions()
	opts.Translator = policy.TranslatorFunc(func(clause, entity, alias string) (string, error) {
		return "`" + alias + "`.`pages` > 100", nil
	})
	q, err := NewFindQuery(FindInput{Entity: "Book", Filter: "pages gt 100"}, opts)
	require.NoError(t, err)

	require.Len(t, q.Predicates, 1)
	where, _, err := q.Predicates[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(`table0`.`pages` > 100)", where)
}

func TestNewFindQuery_FilterWithoutTranslatorRejected(t *testing.T) {
	_, err := NewFindQuery(FindInput{Entity: "Book", Filter: "pages gt 100"}, testReadOptions())
	require.Error(t, err)
	assert.True(t, dberror.IsNotSupported(err))
}

func TestNewFindQuery_OrderByAppendsKeyRemainder(t *testing.T) {
	q, err := NewFindQuery(FindInput{
		Entity:  "Book",
		OrderBy: []FindOrderBy{{Field: "title", Descending: true}},
	}, testReadOptions())
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 2)
	assert.Equal(t, "title", q.OrderBy[0].ColumnName)
	assert.Equal(t, "DESC", string(q.OrderBy[0].Direction))
	assert.Equal(t, "id", q.OrderBy[1].ColumnName)
}

func TestNewFindQuery_ContinuationTokenRoundTrip(t *testing.T) {
	first, err := NewFindQuery(FindInput{Entity: "Book", First: 2}, testReadOptions())
	require.NoError(t, err)

	token, err := first.MakeCursor(map[string]interface{}{"id": int32(2)})
	require.NoError(t, err)

	next, err := NewFindQuery(FindInput{Entity: "Book", First: 2, After: token}, testReadOptions())
	require.NoError(t, err)
	require.NotNil(t, next.Pagination.KeysetPredicate)

	text, _, err := next.Pagination.KeysetPredicate.ToSql()
	require.NoError(t, err)
	assert.Contains(t, text, "`table0`.`id` >")
}

func TestNewFindQuery_MaxPageSizeEnforced(t *testing.T) {
	opts := testReadOptions()
	opts.MaxPageSize = 50
	_, err := NewFindQuery(FindInput{Entity: "Book", First: 51}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50")
}
