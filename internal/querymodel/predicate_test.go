package querymodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookColumn(name string) Column {
	return NewAliasedColumn("", "books", name, "table0")
}

func TestBinaryPredicateRendering(t *testing.T) {
	pred := NewBinaryPredicate(
		NewColumnOperand(bookColumn("id")),
		OperationEqual,
		NewRawOperand("@param0"),
	)

	text, args, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`id` = @param0", text)
	assert.Nil(t, args)
}

func TestUnaryPredicateRendering(t *testing.T) {
	pred := NewUnaryPredicate(NewColumnOperand(bookColumn("pages")), OperationIsNull)
	text, _, err := pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`pages` IS NULL", text)

	pred = NewUnaryPredicate(NewColumnOperand(bookColumn("pages")), OperationIsNotNull)
	text, _, err = pred.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "`table0`.`pages` IS NOT NULL", text)
}

func TestCompoundPredicatesParenthesizeBothSides(t *testing.T) {
	left := NewBinaryPredicate(NewColumnOperand(bookColumn("id")), OperationEqual, NewRawOperand("@param0"))
	right := NewBinaryPredicate(NewColumnOperand(bookColumn("pages")), OperationGreaterThan, NewRawOperand("@param1"))

	and := MakeAndPredicate(left, right)
	text, _, err := and.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(`table0`.`id` = @param0) AND (`table0`.`pages` > @param1)", text)

	or := MakeOrPredicate(left, right)
	text, _, err = or.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(`table0`.`id` = @param0) OR (`table0`.`pages` > @param1)", text)
}

func TestNestedCompoundKeepsPrecedence(t *testing.T) {
	a := NewBinaryPredicate(NewColumnOperand(bookColumn("a")), OperationEqual, NewRawOperand("@param0"))
	b := NewBinaryPredicate(NewColumnOperand(bookColumn("b")), OperationEqual, NewRawOperand("@param1"))
	c := NewBinaryPredicate(NewColumnOperand(bookColumn("c")), OperationEqual, NewRawOperand("@param2"))

	text, _, err := MakeOrPredicate(MakeAndPredicate(a, b), c).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"((`table0`.`a` = @param0) AND (`table0`.`b` = @param1)) OR (`table0`.`c` = @param2)",
		text)
}

func TestEmptyOperandFails(t *testing.T) {
	pred := NewBinaryPredicate(PredicateOperand{}, OperationEqual, NewRawOperand("@param0"))
	_, _, err := pred.ToSql()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operand is empty")
}

func TestJoinPredicateStrings(t *testing.T) {
	preds := []Predicate{
		NewBinaryPredicate(
			NewColumnOperand(NewAliasedColumn("", "l", "a", "l")),
			OperationEqual,
			NewColumnOperand(NewAliasedColumn("", "r", "x", "r"))),
		NewBinaryPredicate(
			NewColumnOperand(NewAliasedColumn("", "l", "b", "l")),
			OperationEqual,
			NewColumnOperand(NewAliasedColumn("", "r", "y", "r"))),
	}

	joined, err := JoinPredicateStrings(preds)
	require.NoError(t, err)
	assert.Equal(t, "`l`.`a` = `r`.`x` AND `l`.`b` = `r`.`y`", joined)
}

func TestOperandAccessors(t *testing.T) {
	col := bookColumn("id")
	operand := NewColumnOperand(col)
	got, ok := operand.AsColumn()
	assert.True(t, ok)
	assert.True(t, got.Equal(col))

	_, ok = NewRawOperand("x").AsColumn()
	assert.False(t, ok)

	inner := NewUnaryPredicate(NewColumnOperand(col), OperationIsNull)
	p, ok := NewPredicateOperand(inner).AsPredicate()
	assert.True(t, ok)
	assert.Equal(t, OperationIsNull, p.Op)
}
