package grid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// numericLiteral matches plain decimal and scientific notation. Hex, Inf and
// NaN are accepted by strconv but are kept as text here.
var numericLiteral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Coerce converts raw user input into a Row value.
//
//	"true", "TRUE"  -> true
//	"false"         -> false
//	"42", " 4.2e1 " -> 42
//	"42abc", ""     -> unchanged string
func Coerce(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !numericLiteral.MatchString(trimmed) {
		return raw
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		// Out of range for float64.
		return raw
	}
	return f
}

// FormatValue renders a Row value as the text shown in a grid cell and used
// as the starting text of an edit.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// DisplayValue is FormatValue with null shown explicitly.
func DisplayValue(v any) string {
	if v == nil {
		return "null"
	}
	return FormatValue(v)
}

// valuesEqual compares a coerced value to a cached one. Numbers compare by
// value; other types must match exactly.
func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	}
	return false
}
