// Package compare implements the comparison operators shared by placeholder
// objectives and expression conditions.
package compare

import (
	"strconv"
	"strings"
)

// Operator is one of the six supported comparison operators.
type Operator string

const (
	GreaterOrEqual Operator = ">="
	LessOrEqual    Operator = "<="
	Equal          Operator = "=="
	NotEqual       Operator = "!="
	Greater        Operator = ">"
	Less           Operator = "<"
)

// two-character operators must be probed before their one-character prefixes.
var scanOrder = []Operator{GreaterOrEqual, LessOrEqual, Equal, NotEqual, Greater, Less}

// ParseOperator converts s into an Operator.
func ParseOperator(s string) (Operator, bool) {
	for _, op := range scanOrder {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// Split finds the first operator token scanning left to right and returns the
// trimmed operands on either side of it.
func Split(expr string) (lhs string, op Operator, rhs string, ok bool) {
	for i := 0; i < len(expr); i++ {
		for _, candidate := range scanOrder {
			if strings.HasPrefix(expr[i:], string(candidate)) {
				lhs = strings.TrimSpace(expr[:i])
				rhs = strings.TrimSpace(expr[i+len(candidate):])
				return lhs, candidate, rhs, true
			}
		}
	}
	return "", "", "", false
}

// Numbers applies op to two numeric operands.
func Numbers(a float64, op Operator, b float64) bool {
	switch op {
	case GreaterOrEqual:
		return a >= b
	case LessOrEqual:
		return a <= b
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Greater:
		return a > b
	case Less:
		return a < b
	}
	return false
}

// Values compares two raw operands. Numeric comparison is attempted first;
// when either side is not a number only == and != are defined, and
// supported reports false for the ordering operators.
func Values(lhs string, op Operator, rhs string) (result, supported bool) {
	a, errA := strconv.ParseFloat(lhs, 64)
	b, errB := strconv.ParseFloat(rhs, 64)
	if errA == nil && errB == nil {
		return Numbers(a, op, b), true
	}
	switch op {
	case Equal:
		return lhs == rhs, true
	case NotEqual:
		return lhs != rhs, true
	}
	return false, false
}
