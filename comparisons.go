package modelq

import (
	"fmt"

	"github.com/modelkit/modelq/query"
)

func (q *Queryable) compare(op query.Operator, right query.Expression) *Queryable {
	if q.left == nil {
		return q.addError(fmt.Errorf("%w: comparison %s without a pending attribute, call Where/And/Or first", ErrInvalidQuery, op))
	}
	return q.commit(query.Comparison{Left: q.left, Op: op, Right: right})
}

// Equal compares the pending attribute for equality.
func (q *Queryable) Equal(value interface{}) *Queryable {
	return q.compare(query.Eq, query.Value{V: value})
}

// NotEqual compares the pending attribute for inequality.
func (q *Queryable) NotEqual(value interface{}) *Queryable {
	return q.compare(query.Ne, query.Value{V: value})
}

// GreaterThan compares with >.
func (q *Queryable) GreaterThan(value interface{}) *Queryable {
	return q.compare(query.Gt, query.Value{V: value})
}

// GreaterOrEqual compares with >=.
func (q *Queryable) GreaterOrEqual(value interface{}) *Queryable {
	return q.compare(query.Ge, query.Value{V: value})
}

// LowerThan compares with <.
func (q *Queryable) LowerThan(value interface{}) *Queryable {
	return q.compare(query.Lt, query.Value{V: value})
}

// LowerOrEqual compares with <=.
func (q *Queryable) LowerOrEqual(value interface{}) *Queryable {
	return q.compare(query.Le, query.Value{V: value})
}

// StartsWith matches string prefixes.
func (q *Queryable) StartsWith(value string) *Queryable {
	return q.compare(query.StartsWith, query.Value{V: value})
}

// EndsWith matches string suffixes.
func (q *Queryable) EndsWith(value string) *Queryable {
	return q.compare(query.EndsWith, query.Value{V: value})
}

// Contains matches string containment.
func (q *Queryable) Contains(value string) *Queryable {
	return q.compare(query.Contains, query.Value{V: value})
}

// NotContains negates string containment.
func (q *Queryable) NotContains(value string) *Queryable {
	return q.compare(query.NotContains, query.Value{V: value})
}

// In matches membership in the value list.
func (q *Queryable) In(values ...interface{}) *Queryable {
	return q.compare(query.In, query.Values{V: values})
}

// NotIn negates membership in the value list.
func (q *Queryable) NotIn(values ...interface{}) *Queryable {
	return q.compare(query.NotIn, query.Values{V: values})
}

// Between matches the inclusive range [low, high].
func (q *Queryable) Between(low, high interface{}) *Queryable {
	return q.compare(query.Between, query.Values{V: []interface{}{low, high}})
}

// Bit masks the pending attribute and compares the result to the mask.
func (q *Queryable) Bit(mask int64) *Queryable {
	return q.compare(query.Bit, query.Value{V: mask})
}

// transform wraps the pending operand in a function envelope. Transforms
// chain: Where("price").Multiply(1.25).LowerThan(100).
func (q *Queryable) transform(name string, args ...interface{}) *Queryable {
	if q.left == nil {
		return q.addError(fmt.Errorf("%w: transform %s without a pending attribute", ErrInvalidQuery, name))
	}
	fargs := []query.Expression{q.left}
	for _, a := range args {
		fargs = append(fargs, query.Value{V: a})
	}
	q.left = query.Func{Name: name, Args: fargs}
	return q
}

// Arithmetic transforms.

func (q *Queryable) Add(value interface{}) *Queryable      { return q.transform("add", value) }
func (q *Queryable) Subtract(value interface{}) *Queryable { return q.transform("subtract", value) }
func (q *Queryable) Multiply(value interface{}) *Queryable { return q.transform("multiply", value) }
func (q *Queryable) Divide(value interface{}) *Queryable   { return q.transform("divide", value) }
func (q *Queryable) Floor() *Queryable                     { return q.transform("floor") }
func (q *Queryable) Ceil() *Queryable                      { return q.transform("ceiling") }

// String transforms.

func (q *Queryable) Substr(start int, length ...int) *Queryable {
	if len(length) > 0 {
		return q.transform("substring", start, length[0])
	}
	return q.transform("substring", start)
}

func (q *Queryable) IndexOf(s string) *Queryable        { return q.transform("indexof", s) }
func (q *Queryable) Concat(s ...interface{}) *Queryable { return q.transform("concat", s...) }
func (q *Queryable) Trim() *Queryable                   { return q.transform("trim") }
func (q *Queryable) Length() *Queryable                 { return q.transform("length") }
func (q *Queryable) ToLocaleLowerCase() *Queryable      { return q.transform("tolower") }
func (q *Queryable) ToLocaleUpperCase() *Queryable      { return q.transform("toupper") }

// Date transforms.

func (q *Queryable) GetDate() *Queryable    { return q.transform("date") }
func (q *Queryable) GetYear() *Queryable    { return q.transform("year") }
func (q *Queryable) GetMonth() *Queryable   { return q.transform("month") }
func (q *Queryable) GetDay() *Queryable     { return q.transform("day") }
func (q *Queryable) GetHours() *Queryable   { return q.transform("hour") }
func (q *Queryable) GetMinutes() *Queryable { return q.transform("minute") }
func (q *Queryable) GetSeconds() *Queryable { return q.transform("second") }
