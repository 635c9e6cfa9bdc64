package querymodel

import (
	"fmt"
	"strings"
)

// PredicateOperation is the operator at a predicate node.
type PredicateOperation int

const (
	OperationNone PredicateOperation = iota
	OperationEqual
	OperationNotEqual
	OperationGreaterThan
	OperationGreaterThanOrEqual
	OperationLessThan
	OperationLessThanOrEqual
	OperationLike
	OperationNotLike
	OperationIsNull
	OperationIsNotNull
	OperationIn
	OperationAnd
	OperationOr
)

// String renders the operator as SQL text.
func (op PredicateOperation) String() string {
	switch op {
	case OperationEqual:
		return "="
	case OperationNotEqual:
		return "!="
	case OperationGreaterThan:
		return ">"
	case OperationGreaterThanOrEqual:
		return ">="
	case OperationLessThan:
		return "<"
	case OperationLessThanOrEqual:
		return "<="
	case OperationLike:
		return "LIKE"
	case OperationNotLike:
		return "NOT LIKE"
	case OperationIsNull:
		return "IS NULL"
	case OperationIsNotNull:
		return "IS NOT NULL"
	case OperationIn:
		return "IN"
	case OperationAnd:
		return "AND"
	case OperationOr:
		return "OR"
	default:
		return ""
	}
}

// PredicateOperand is one side of a predicate: a column reference, a raw
// string (a parameter token or pre-rendered predicate text), or a nested
// predicate for AND/OR composition. Exactly one member is set.
type PredicateOperand struct {
	column    *Column
	raw       string
	predicate *Predicate
}

// NewColumnOperand wraps a column reference.
func NewColumnOperand(col Column) PredicateOperand {
	return PredicateOperand{column: &col}
}

// NewRawOperand wraps a parameter token or literal placeholder string.
func NewRawOperand(raw string) PredicateOperand {
	return PredicateOperand{raw: raw}
}

// NewPredicateOperand wraps a nested predicate.
func NewPredicateOperand(p Predicate) PredicateOperand {
	return PredicateOperand{predicate: &p}
}

// AsColumn returns the column reference when the operand holds one.
func (o PredicateOperand) AsColumn() (Column, bool) {
	if o.column == nil {
		return Column{}, false
	}
	return *o.column, true
}

// AsPredicate returns the nested predicate when the operand holds one.
func (o PredicateOperand) AsPredicate() (Predicate, bool) {
	if o.predicate == nil {
		return Predicate{}, false
	}
	return *o.predicate, true
}

func (o PredicateOperand) render() (string, error) {
	switch {
	case o.column != nil:
		return o.column.Qualified(), nil
	case o.predicate != nil:
		return o.predicate.render()
	case o.raw != "":
		return o.raw, nil
	default:
		return "", fmt.Errorf("predicate operand is empty")
	}
}

// Predicate is a ternary predicate node. Left/Right operands may themselves
// hold predicates, composing filter and HAVING trees. Parenthesized guards
// precedence when predicates are combined with AND/OR.
type Predicate struct {
	Left          PredicateOperand
	Op            PredicateOperation
	Right         PredicateOperand
	Parenthesized bool
}

// NewBinaryPredicate builds left <op> right.
func NewBinaryPredicate(left PredicateOperand, op PredicateOperation, right PredicateOperand) Predicate {
	return Predicate{Left: left, Op: op, Right: right}
}

// NewUnaryPredicate builds left IS [NOT] NULL.
func NewUnaryPredicate(left PredicateOperand, op PredicateOperation) Predicate {
	return Predicate{Left: left, Op: op}
}

// MakeAndPredicate combines two predicates with AND, parenthesizing both
// sides so their internal precedence survives.
func MakeAndPredicate(left, right Predicate) Predicate {
	return makeCompound(left, OperationAnd, right)
}

// MakeOrPredicate combines two predicates with OR, parenthesizing both
// sides so their internal precedence survives.
func MakeOrPredicate(left, right Predicate) Predicate {
	return makeCompound(left, OperationOr, right)
}

func makeCompound(left Predicate, op PredicateOperation, right Predicate) Predicate {
	left.Parenthesized = true
	right.Parenthesized = true
	return Predicate{
		Left:  NewPredicateOperand(left),
		Op:    op,
		Right: NewPredicateOperand(right),
	}
}

func (p Predicate) render() (string, error) {
	left, err := p.Left.render()
	if err != nil {
		return "", err
	}

	var rendered string
	switch p.Op {
	case OperationIsNull, OperationIsNotNull:
		rendered = fmt.Sprintf("%s %s", left, p.Op)
	case OperationNone:
		rendered = left
	default:
		right, err := p.Right.render()
		if err != nil {
			return "", err
		}
		rendered = fmt.Sprintf("%s %s %s", left, p.Op, right)
	}

	if p.Parenthesized {
		rendered = "(" + rendered + ")"
	}
	return rendered, nil
}

// ToSql implements squirrel.Sqlizer. Parameter tokens stay embedded in the
// text; binding to positional placeholders happens when the finished
// structure is rendered against its parameter table.
func (p Predicate) ToSql() (string, []interface{}, error) {
	rendered, err := p.render()
	if err != nil {
		return "", nil, err
	}
	return rendered, nil, nil
}

// JoinPredicateStrings renders a predicate list joined with AND, used when
// composing join clauses.
func JoinPredicateStrings(predicates []Predicate) (string, error) {
	parts := make([]string, 0, len(predicates))
	for _, pred := range predicates {
		rendered, err := pred.render()
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}
	return strings.Join(parts, " AND "), nil
}
