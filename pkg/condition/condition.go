// Package condition holds the pure predicates used by condition nodes and the
// validators applied to raw user input.
package condition

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Operator names a comparison.
type Operator string

const (
	Equals      Operator = "equals"
	NotEquals   Operator = "not_equals"
	Contains    Operator = "contains"
	NotContains Operator = "not_contains"
	StartsWith  Operator = "starts_with"
	EndsWith    Operator = "ends_with"
	Regex       Operator = "regex"
	GreaterThan Operator = "greater_than"
	LessThan    Operator = "less_than"
	IsEmpty     Operator = "is_empty"
	IsNotEmpty  Operator = "is_not_empty"
)

// Evaluate applies op to value and compare. Equality is case-sensitive; the
// substring operators are not. It never panics: a bad regex or a non-numeric
// operand simply yields false, as does an unknown operator.
func Evaluate(value string, op Operator, compare string) bool {
	switch op {
	case Equals:
		return value == compare
	case NotEquals:
		return value != compare
	case Contains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(compare))
	case NotContains:
		return !strings.Contains(strings.ToLower(value), strings.ToLower(compare))
	case StartsWith:
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(compare))
	case EndsWith:
		return strings.HasSuffix(strings.ToLower(value), strings.ToLower(compare))
	case Regex:
		re, err := regexp.Compile("(?i)" + compare)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	case GreaterThan:
		return toNumber(value) > toNumber(compare)
	case LessThan:
		return toNumber(value) < toNumber(compare)
	case IsEmpty:
		return strings.TrimSpace(value) == ""
	case IsNotEmpty:
		return strings.TrimSpace(value) != ""
	default:
		return false
	}
}

// toNumber parses s as a float; anything else is NaN, which compares false
// against every number.
func toNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
