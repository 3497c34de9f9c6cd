package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelq/query"
)

func TestParseComparison(t *testing.T) {
	expr, err := Parse("status eq 'active'")
	require.NoError(t, err)

	cmp, ok := expr.(query.Comparison)
	require.True(t, ok)
	assert.Equal(t, query.Column{Name: "status"}, cmp.Left)
	assert.Equal(t, query.Eq, cmp.Op)
	assert.Equal(t, query.Value{V: "active"}, cmp.Right)
}

func TestParseOperators(t *testing.T) {
	tests := []struct {
		input string
		op    query.Operator
	}{
		{"price gt 100", query.Gt},
		{"price ge 100", query.Ge},
		{"price lt 100", query.Lt},
		{"price le 100", query.Le},
		{"price ne 100", query.Ne},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := Parse(tt.input)
			require.NoError(t, err)
			cmp := expr.(query.Comparison)
			assert.Equal(t, tt.op, cmp.Op)
			assert.Equal(t, query.Value{V: int64(100)}, cmp.Right)
		})
	}
}

func TestParseLogical(t *testing.T) {
	expr, err := Parse("category eq 'Laptops' or category eq 'Desktops' and price lt 800")
	require.NoError(t, err)

	// and binds tighter than or
	or, ok := expr.(query.Group)
	require.True(t, ok)
	assert.Equal(t, query.OrOp, or.Op)
	require.Len(t, or.Exprs, 2)

	and, ok := or.Exprs[1].(query.Group)
	require.True(t, ok)
	assert.Equal(t, query.AndOp, and.Op)
	assert.Len(t, and.Exprs, 2)
}

func TestParseParens(t *testing.T) {
	expr, err := Parse("(category eq 'Laptops' or category eq 'Desktops') and price lt 800")
	require.NoError(t, err)

	and, ok := expr.(query.Group)
	require.True(t, ok)
	assert.Equal(t, query.AndOp, and.Op)
	or, ok := and.Exprs[0].(query.Group)
	require.True(t, ok)
	assert.Equal(t, query.OrOp, or.Op)
}

func TestParseNot(t *testing.T) {
	expr, err := Parse("not price gt 100")
	require.NoError(t, err)
	not, ok := expr.(query.Not)
	require.True(t, ok)
	_, ok = not.Expr.(query.Comparison)
	assert.True(t, ok)
}

func TestParseNestedPath(t *testing.T) {
	expr, err := Parse("customer/email eq 'alexis.rees@example.com'")
	require.NoError(t, err)
	cmp := expr.(query.Comparison)
	assert.Equal(t, query.Column{Name: "customer/email"}, cmp.Left)
}

func TestParsePredicateFunctions(t *testing.T) {
	expr, err := Parse("contains(name,'Lenovo')")
	require.NoError(t, err)
	cmp := expr.(query.Comparison)
	assert.Equal(t, query.Contains, cmp.Op)
	assert.Equal(t, query.Column{Name: "name"}, cmp.Left)
	assert.Equal(t, query.Value{V: "Lenovo"}, cmp.Right)

	expr, err = Parse("startswith(name,'Intel') eq true")
	require.NoError(t, err)
	cmp = expr.(query.Comparison)
	assert.Equal(t, query.StartsWith, cmp.Op)

	expr, err = Parse("endswith(name,'Pro') eq false")
	require.NoError(t, err)
	not, ok := expr.(query.Not)
	require.True(t, ok)
	assert.Equal(t, query.EndsWith, not.Expr.(query.Comparison).Op)
}

func TestParseValueFunctions(t *testing.T) {
	expr, err := Parse("year(releaseDate) eq 2019")
	require.NoError(t, err)
	cmp := expr.(query.Comparison)
	fn, ok := cmp.Left.(query.Func)
	require.True(t, ok)
	assert.Equal(t, "year", fn.Name)
	assert.Equal(t, []query.Expression{query.Column{Name: "releaseDate"}}, fn.Args)

	expr, err = Parse("indexof(name,'Core') ge 0")
	require.NoError(t, err)
	fn = expr.(query.Comparison).Left.(query.Func)
	assert.Equal(t, "indexof", fn.Name)
	assert.Len(t, fn.Args, 2)

	_, err = Parse("bogus(name)")
	assert.Error(t, err)
}

func TestParseArithmetic(t *testing.T) {
	expr, err := Parse("price add 50 gt 500")
	require.NoError(t, err)
	cmp := expr.(query.Comparison)
	fn := cmp.Left.(query.Func)
	assert.Equal(t, "add", fn.Name)

	// mul binds tighter than add
	expr, err = Parse("price add tax mul 2 le 100")
	require.NoError(t, err)
	add := expr.(query.Comparison).Left.(query.Func)
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "multiply", add.Args[1].(query.Func).Name)
}

func TestParseIn(t *testing.T) {
	expr, err := Parse("category in ('Laptops','Desktops')")
	require.NoError(t, err)
	cmp := expr.(query.Comparison)
	assert.Equal(t, query.In, cmp.Op)
	assert.Equal(t, query.Values{V: []interface{}{"Laptops", "Desktops"}}, cmp.Right)
}

func TestParseLiterals(t *testing.T) {
	expr, err := Parse("active eq true")
	require.NoError(t, err)
	assert.Equal(t, query.Value{V: true}, expr.(query.Comparison).Right)

	expr, err = Parse("discount eq 12.5")
	require.NoError(t, err)
	assert.Equal(t, query.Value{V: 12.5}, expr.(query.Comparison).Right)

	expr, err = Parse("deletedAt eq null")
	require.NoError(t, err)
	assert.Nil(t, expr.(query.Comparison).Right)

	expr, err = Parse("name eq 'it''s'")
	require.NoError(t, err)
	assert.Equal(t, query.Value{V: "it's"}, expr.(query.Comparison).Right)
}

func TestParseDateTimeLiteral(t *testing.T) {
	expr, err := Parse("orderDate ge datetime'2019-04-01 00:00:00'")
	require.NoError(t, err)
	v, ok := expr.(query.Comparison).Right.(query.Value)
	require.True(t, ok)
	ts, ok := v.V.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2019, ts.Year())
	assert.Equal(t, time.April, ts.Month())
}

func TestParseParams(t *testing.T) {
	expr, err := Parse("email eq @email and total gt @minimum")
	require.NoError(t, err)

	bound, err := Bind(expr, map[string]interface{}{"email": "a@b.c", "minimum": 10})
	require.NoError(t, err)
	group := bound.(query.Group)
	assert.Equal(t, query.Value{V: "a@b.c"}, group.Exprs[0].(query.Comparison).Right)
	assert.Equal(t, query.Value{V: 10}, group.Exprs[1].(query.Comparison).Right)

	_, err = Bind(expr, map[string]interface{}{"email": "a@b.c"})
	assert.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"price eq",
		"(price gt 1",
		"name eq 'open",
		"price gt 1 2",
		"contains(name)",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	expr, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, expr)
}
