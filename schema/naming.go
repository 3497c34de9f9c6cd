package schema

import (
	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// NamingStrategy controls how storage object names derive from model and
// field names.
type NamingStrategy struct {
	TablePrefix string
}

// SourceName returns the backing table name for a model.
func (ns NamingStrategy) SourceName(model string) string {
	return ns.TablePrefix + model + "Base"
}

// ViewName returns the backing view name for a model.
func (ns NamingStrategy) ViewName(model string) string {
	return ns.TablePrefix + model + "Data"
}

// JunctionName returns the association-adapter table name for a junction
// field declared on the given model.
func (ns NamingStrategy) JunctionName(model, field string) string {
	return ns.TablePrefix + model + upperFirst(field)
}

// IsPlural reports whether a field name reads as a plural noun, the
// heuristic behind the inferred `many` cardinality.
func IsPlural(name string) bool {
	if name == "" {
		return false
	}
	return inflection.Plural(name) == name && inflection.Singular(name) != name
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return titleCaser.String(s[:1]) + s[1:]
}
