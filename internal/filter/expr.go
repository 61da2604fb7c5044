package filter

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var (
	orSeparator  = regexp.MustCompile(`(?i)\s*\|\|\s*|\s+or\s+`)
	andSeparator = regexp.MustCompile(`(?i)\s*[+&]\s*|\s+and\s+|\s+`)
)

// Expression is a pre-split filter expression: any group matches when all of
// its terms are substrings of the text. The zero value matches everything.
type Expression struct {
	source string
	groups [][]string // case-folded terms
}

// Compile splits expr into OR groups of AND terms. Every string is a valid
// expression.
//
//	"foo bar || baz"   -> [[foo bar] [baz]]
//	"a + b OR c and d" -> [[a b] [c d]]
func Compile(expr string) Expression {
	e := Expression{source: expr}
	if strings.TrimSpace(expr) == "" {
		return e
	}
	fold := cases.Fold()
	for _, group := range orSeparator.Split(expr, -1) {
		var terms []string
		for _, term := range andSeparator.Split(group, -1) {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			terms = append(terms, fold.String(term))
		}
		if len(terms) > 0 {
			e.groups = append(e.groups, terms)
		}
	}
	return e
}

// String returns the expression as written.
func (e Expression) String() string {
	return e.source
}

// Empty reports whether the expression places no restriction.
func (e Expression) Empty() bool {
	return len(e.groups) == 0
}

// Match reports whether text satisfies the expression, ignoring case.
func (e Expression) Match(text string) bool {
	if e.Empty() {
		return true
	}
	folded := cases.Fold().String(text)
	for _, terms := range e.groups {
		if containsAll(folded, terms) {
			return true
		}
	}
	return false
}

func containsAll(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// Match evaluates expr against text. Prefer Compile when the same
// expression is applied to many records.
func Match(text, expr string) bool {
	return Compile(expr).Match(text)
}
