// Package attr parses string attribute expressions into structured
// references. Parsing is separate from join synthesis so the grammar can
// be tested without any model or backing store.
package attr

import (
	"fmt"
	"regexp"
	"strings"
)

// Expr is a parsed attribute expression.
//
//	name                -> Path=[name]
//	name as alias       -> Path=[name], Alias=alias
//	fn(a/b)             -> Path=[a b], Aggregate=fn
//	fn(a/b) as alias    -> Path=[a b], Aggregate=fn, Alias=alias
//	a/b/c               -> Path=[a b c]
type Expr struct {
	Path      []string
	Aggregate string
	Alias     string
}

// Aggregate function names recognized by the grammar.
var aggregates = map[string]bool{
	"count": true,
	"avg":   true,
	"sum":   true,
	"min":   true,
	"max":   true,
}

var (
	aggregateRegexp = regexp.MustCompile(`(?i)^\s*(\w+)\s*\(\s*([\w$]+(?:/[\w$]+)*)\s*\)\s*(?:as\s+([\w$]+)\s*)?$`)
	plainRegexp     = regexp.MustCompile(`(?i)^\s*([\w$]+(?:/[\w$]+)*)\s*(?:as\s+([\w$]+)\s*)?$`)
)

// Parse converts an attribute expression into its structured form.
func Parse(s string) (*Expr, error) {
	if match := aggregateRegexp.FindStringSubmatch(s); match != nil {
		fn := strings.ToLower(match[1])
		if !aggregates[fn] {
			return nil, fmt.Errorf("unknown aggregate function %q in attribute %q", match[1], s)
		}
		return &Expr{
			Path:      strings.Split(match[2], "/"),
			Aggregate: fn,
			Alias:     match[3],
		}, nil
	}
	if match := plainRegexp.FindStringSubmatch(s); match != nil {
		return &Expr{
			Path:  strings.Split(match[1], "/"),
			Alias: match[2],
		}, nil
	}
	return nil, fmt.Errorf("invalid attribute expression %q", s)
}

// IsNested reports whether the expression traverses an association.
func (e *Expr) IsNested() bool {
	return len(e.Path) > 1
}

// Name returns the full path joined with the separator.
func (e *Expr) Name() string {
	return strings.Join(e.Path, "/")
}

// First returns the leading path segment.
func (e *Expr) First() string {
	return e.Path[0]
}

// Rest returns the expression for the remaining path after the first
// segment, carrying over aggregate and alias.
func (e *Expr) Rest() *Expr {
	return &Expr{Path: e.Path[1:], Aggregate: e.Aggregate, Alias: e.Alias}
}

// DefaultAlias returns the alias used when none was supplied: aggregate
// expressions derive one from the function and path, plain expressions
// are exposed under their final segment.
func (e *Expr) DefaultAlias() string {
	if e.Alias != "" {
		return e.Alias
	}
	last := e.Path[len(e.Path)-1]
	if e.Aggregate == "" {
		return last
	}
	if e.IsNested() {
		return e.Aggregate + "Of_" + strings.Join(e.Path, "_")
	}
	return e.Aggregate + "Of" + strings.ToUpper(last[:1]) + last[1:]
}
