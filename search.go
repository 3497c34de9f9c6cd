package modelq

import (
	"strings"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

// Search merges a full-text-like disjunction into the filter: the text is
// tokenized (quoted phrases stay whole), and every string-typed attribute
// of the model, plus every string-typed attribute of directly associated
// parent models, contributes a contains predicate per token. The combined
// OR group is ANDed with any existing filter. Empty input is a no-op.
func (q *Queryable) Search(text string) *Queryable {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return q
	}

	attrs := q.searchableAttributes()
	if len(attrs) == 0 {
		return q
	}

	var terms []query.Expression
	for _, token := range tokens {
		for _, a := range attrs {
			operand := q.resolveOperand(a)
			if operand == nil {
				continue
			}
			terms = append(terms, query.Comparison{
				Left:  operand,
				Op:    query.Contains,
				Right: query.Value{V: token},
			})
		}
	}
	q.left = nil
	if len(terms) == 0 {
		return q
	}

	q.Prepare()
	q.current = query.Or(terms...)
	q.Prepare()
	return q
}

// searchableAttributes lists the model's string attributes plus the
// string attributes of directly associated parent models as nested paths.
func (q *Queryable) searchableAttributes() []string {
	def := q.model.def
	var attrs []string
	for _, f := range def.Attributes() {
		if def.FieldMany(f) {
			continue
		}
		if f.Type == schema.TypeText {
			attrs = append(attrs, f.Name)
			continue
		}
		if f.IsPrimitive() {
			continue
		}
		mapping, err := def.InferMapping(f)
		if err != nil || mapping.Type != schema.Association || mapping.ChildModel != def.Name {
			continue
		}
		parent, err := q.model.db.registry.Get(mapping.ParentModel)
		if err != nil {
			continue
		}
		for _, pf := range parent.Attributes() {
			if pf.Type == schema.TypeText && !parent.FieldMany(pf) {
				attrs = append(attrs, f.Name+"/"+pf.Name)
			}
		}
	}
	return attrs
}

// tokenize splits search text on whitespace, preserving double-quoted
// phrases as single tokens. Case is left to the adapter's collation.
func tokenize(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		tokens  []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '"':
			if quoted {
				flush()
			}
			quoted = !quoted
		case !quoted && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
