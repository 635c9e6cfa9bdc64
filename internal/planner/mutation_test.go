package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataapi/internal/dberror"
	"dataapi/internal/policy"
)

func TestNewInsertQuery_Simple(t *testing.T) {
	q, err := NewInsertQuery(testMutationOptions("Book", map[string]interface{}{
		"title":        "dune",
		"publisher_id": int64(3),
	}))
	require.NoError(t, err)

	require.Len(t, q.InsertColumns, 2)
	require.Len(t, q.Values, 2)
	// Fields process in sorted order for stable parameter numbering.
	assert.Equal(t, "publisher_id", q.InsertColumns[0].ColumnName)
	assert.Equal(t, "title", q.InsertColumns[1].ColumnName)
	assert.Equal(t, "@param0", q.Values[0])
	assert.Equal(t, int32(3), q.Parameters["param0"].Value)
	assert.Equal(t, "dune", q.Parameters["param1"].Value)

	sql, args, err := q.Preview()
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO `books`")
	assert.Contains(t, sql, "`publisher_id`")
	assert.Len(t, args, 2)
}

func TestNewInsertQuery_OutputColumnsCoverSource(t *testing.T) {
	q, err := NewInsertQuery(testMutationOptions("Book", map[string]interface{}{"title": "dune"}))
	require.NoError(t, err)
	assert.Len(t, q.OutputColumns, 5)
}

func TestNewInsertQuery_ReadOnlyFieldRejected(t *testing.T) {
	_, err := NewInsertQuery(testMutationOptions("Book", map[string]interface{}{
		"row_version": int64(1),
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestNewInsertQuery_UnknownFieldRejected(t *testing.T) {
	_, err := NewInsertQuery(testMutationOptions("Book", map[string]interface{}{"isbn": "x"}))
	require.Error(t, err)
}

func TestNewInsertQuery_CreatePolicyColumnsMustBeSupplied(t *testing.T) {
	opts := testMutationOptions("Book", map[string]interface{}{"title": "dune"})
	opts.Resolver = staticPolicies("Book", policy.OperationCreate, "@item.publisher_id eq 5", "publisher_id")

	_, err := NewInsertQuery(opts)
	require.Error(t, err)
	assert.True(t, dberror.IsAuthorizationCheckFailed(err))
	var typed *dberror.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, dberror.SubCodeAuthorizationCumulative, typed.SubCode)
	assert.Contains(t, err.Error(), "publisher_id")
}

func TestNewInsertQuery_CreatePolicyColumnsSatisfied(t *testing.T) {
	opts := testMutationOptions("Book", map[string]interface{}{
		"title":        "dune",
		"publisher_id": int64(5),
	})
	opts.Resolver = staticPolicies("Book", policy.OperationCreate, "@item.publisher_id eq 5", "publisher_id")

	_, err := NewInsertQuery(opts)
	require.NoError(t, err)
}

func TestNewUpdateQuery_SplitsKeyPredicatesFromSetOperations(t *testing.T) {
	q, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":    int64(7),
			"title": "dune",
		}),
	})
	require.NoError(t, err)

	require.Len(t, q.Predicates, 1)
	require.Len(t, q.UpdateOperations, 1)

	where, _, err := q.Predicates[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`id` = @param0", where)

	set, _, err := q.UpdateOperations[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`title` = @param1", set)
}

func TestNewUpdateQuery_ItemCarriesSetFields(t *testing.T) {
	q, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{"id": int64(7)}),
		Item:            map[string]interface{}{"title": "dune"},
	})
	require.NoError(t, err)
	assert.Len(t, q.Predicates, 1)
	assert.Len(t, q.UpdateOperations, 1)
}

func TestNewUpdateQuery_NonKeyFieldOutsideItemRejected(t *testing.T) {
	_, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":    int64(7),
			"title": "dune",
		}),
		Item: map[string]interface{}{"pages": int64(100)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")
}

func TestNewUpdateQuery_NoSetOperationsRejected(t *testing.T) {
	_, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{"id": int64(7)}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}

func TestNewUpdateQuery_NullForNonNullableColumnRejected(t *testing.T) {
	_, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":    int64(7),
			"title": nil,
		}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestNewUpdateQuery_OverwriteNullifiesUnspecifiedColumns(t *testing.T) {
	q, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":           int64(7),
			"title":        "dune",
			"publisher_id": int64(3),
		}),
		Overwrite: true,
	})
	require.NoError(t, err)

	// title and publisher_id set explicitly, pages nullified. row_version
	// is read-only and keeps its value, id is the key.
	require.Len(t, q.UpdateOperations, 3)
	last, _, err := q.UpdateOperations[2].ToSql()
	require.NoError(t, err)
	assert.Contains(t, last, "`table0`.`pages` = @param")

	var nullified int
	for name, param := range q.Parameters {
		_ = name
		if param.Value == nil {
			nullified++
		}
	}
	assert.Equal(t, 1, nullified)
}

func TestNewUpdateQuery_OverwriteLeavingNonNullableUnsetRejected(t *testing.T) {
	_, err := NewUpdateQuery(UpdateOptions{
		MutationOptions: testMutationOptions("Book", map[string]interface{}{
			"id":    int64(7),
			"title": "dune",
		}),
		Overwrite: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher_id")
}

func TestNewUpdateQuery_AppliesUpdatePolicy(t *testing.T) {
	translator := &countingTranslator{result: "`table0`.`publisher_id` = 5"}
	opts := testMutationOptions("Book", map[string]interface{}{
		"id":    int64(7),
		"title": "dune",
	})
	opts.Resolver = staticPolicies("Book", policy.OperationUpdate, "@item.publisher_id eq 5")
	opts.Translator = translator

	q, err := NewUpdateQuery(UpdateOptions{MutationOptions: opts})
	require.NoError(t, err)
	assert.Len(t, q.Predicates, 2)
	assert.Equal(t, 1, translator.calls)
}

func TestNewDeleteQuery_PrimaryKeyOnly(t *testing.T) {
	q, err := NewDeleteQuery(testMutationOptions("Book", map[string]interface{}{
		"id":    int64(7),
		"title": "ignored",
	}))
	require.NoError(t, err)

	require.Len(t, q.Predicates, 1)
	where, _, err := q.Predicates[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`id` = @param0", where)

	sql, args, err := q.Preview()
	require.NoError(t, err)
	assert.Contains(t, sql, "DELETE FROM `books`")
	assert.Len(t, args, 1)
	assert.Equal(t, int32(7), args[0])
}

func TestNewDeleteQuery_CompositeKey(t *testing.T) {
	q, err := NewDeleteQuery(testMutationOptions("Review", map[string]interface{}{
		"book_id":  int64(7),
		"reviewer": "alice",
	}))
	require.NoError(t, err)
	assert.Len(t, q.Predicates, 2)
}

func TestNewDeleteQuery_MissingKeyFieldRejected(t *testing.T) {
	_, err := NewDeleteQuery(testMutationOptions("Review", map[string]interface{}{
		"book_id": int64(7),
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reviewer")
}

func TestNewDeleteQuery_NullKeyValueRejected(t *testing.T) {
	_, err := NewDeleteQuery(testMutationOptions("Book", map[string]interface{}{"id": nil}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestNewExecuteQuery_RequestValueWinsOverDefault(t *testing.T) {
	q, err := NewExecuteQuery(testMutationOptions("CountBooks", map[string]interface{}{
		"publisher_id": int64(5),
		"min_pages":    int64(250),
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"publisher_id", "min_pages"}, q.ParameterNames)
	sql, args, err := q.Preview()
	require.NoError(t, err)
	assert.Equal(t, "CALL `count_books`(?, ?)", sql)
	assert.Equal(t, []interface{}{int32(5), int32(250)}, args)
}

func TestNewExecuteQuery_ConfigDefaultFillsMissingParameter(t *testing.T) {
	q, err := NewExecuteQuery(testMutationOptions("CountBooks", map[string]interface{}{
		"publisher_id": int64(5),
	}))
	require.NoError(t, err)

	_, args, err := q.Preview()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(5), int32(100)}, args)
}

func TestNewExecuteQuery_MissingRequiredParameterNamed(t *testing.T) {
	_, err := NewExecuteQuery(testMutationOptions("CountBooks", map[string]interface{}{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publisher_id")
}

func TestNewExecuteQuery_NonProcedureEntityRejected(t *testing.T) {
	_, err := NewExecuteQuery(testMutationOptions("Book", map[string]interface{}{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stored procedure")
}
