package diagparse

import "strings"

var lintDescriptions = map[string]string{
	"screaming-snake-case-const":     "constants should use SCREAMING_SNAKE_CASE",
	"screaming-snake-case-immutable": "immutables should use SCREAMING_SNAKE_CASE",
	"mixed-case-function":            "function names should use mixedCase",
	"mixed-case-variable":            "mutable variables should use mixedCase",
	"pascal-case-struct":             "structs should use PascalCase",
	"unused-import":                  "unused import",
	"unaliased-plain-import":         "plain imports should be aliased",
	"unused-variable":                "unused variable",
	"unused-parameter":               "unused parameter",
	"dead-code":                      "unreachable code",
	"style-guide-violation":          "style guide violation",
	"asm-keccak256":                  "use inline assembly for keccak256 hashing",
	"incorrect-shift":                "the order of args in a shift operation is incorrect",
	"divide-before-multiply":         "multiplication should occur before division to avoid loss of precision",
}

// DescribeCode returns a human-readable description for a lint code. Unknown
// codes are spelled out with separators replaced by spaces.
func DescribeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "lint finding"
	}
	if desc, ok := lintDescriptions[code]; ok {
		return desc
	}
	return strings.NewReplacer("-", " ", "_", " ").Replace(code)
}
