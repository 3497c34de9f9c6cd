package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	q := &Query{
		Entity: Entity{Name: "OrderData"},
		Selects: []Expression{
			Column{Entity: "OrderData", Name: "id"},
			Column{Entity: "customer", Name: "email", Alias: "customerEmail"},
		},
		Joins: []Join{
			{
				Kind:   LeftJoin,
				Entity: Entity{Name: "PersonData", Alias: "customer"},
				On: Comparison{
					Left:  Column{Entity: "OrderData", Name: "customer"},
					Op:    Eq,
					Right: Column{Entity: "customer", Name: "id"},
				},
			},
		},
		Where: Comparison{
			Left:  Column{Entity: "customer", Name: "email"},
			Op:    Eq,
			Right: Value{V: "alexis.rees@example.com"},
		},
		Orders: []Order{{Expr: Column{Entity: "OrderData", Name: "orderDate"}, Desc: true}},
		Take:   25,
		Skip:   50,
	}

	want := "select OrderData.id,customer.email as customerEmail" +
		" from OrderData" +
		" left join PersonData as customer on (OrderData.customer eq customer.id)" +
		" where (customer.email eq 'alexis.rees@example.com')" +
		" order by OrderData.orderDate desc" +
		" take 25 skip 50"
	assert.Equal(t, want, q.String())
}

func TestAddJoinDeduplicates(t *testing.T) {
	join := Join{
		Kind:   LeftJoin,
		Entity: Entity{Name: "PersonData", Alias: "customer"},
		On: Comparison{
			Left:  Column{Entity: "OrderData", Name: "customer"},
			Op:    Eq,
			Right: Column{Entity: "customer", Name: "id"},
		},
	}
	q := &Query{Entity: Entity{Name: "OrderData"}}

	q.AddJoin(join)
	q.AddJoin(join)
	q.AddJoin(join)

	assert.Len(t, q.Joins, 1)
	assert.True(t, q.HasJoin("customer"))
	assert.False(t, q.HasJoin("PersonData"))
}

func TestAndOrFlattening(t *testing.T) {
	a := Comparison{Left: Column{Name: "a"}, Op: Eq, Right: Value{V: 1}}
	b := Comparison{Left: Column{Name: "b"}, Op: Eq, Right: Value{V: 2}}
	c := Comparison{Left: Column{Name: "c"}, Op: Eq, Right: Value{V: 3}}

	combined := And(And(a, b), c)
	group, ok := combined.(Group)
	assert.True(t, ok)
	assert.Equal(t, AndOp, group.Op)
	assert.Len(t, group.Exprs, 3)

	// single member collapses
	assert.Equal(t, a, And(a))
	assert.Equal(t, a, Or(nil, a))
	assert.Nil(t, And())

	// mixed operators nest instead of flattening
	mixed := Or(And(a, b), c).(Group)
	assert.Equal(t, OrOp, mixed.Op)
	assert.Len(t, mixed.Exprs, 2)
}

func TestCloneIsolation(t *testing.T) {
	q := &Query{
		Entity:  Entity{Name: "ProductData"},
		Selects: []Expression{Column{Name: "name"}},
	}
	dup := q.Clone()
	dup.Selects = append(dup.Selects, Column{Name: "price"})
	dup.Take = 10

	assert.Len(t, q.Selects, 1)
	assert.Zero(t, q.Take)
}

func TestMutationCanonical(t *testing.T) {
	ins := &Insert{
		Entity: Entity{Name: "ProductBase"},
		Values: map[string]interface{}{"name": "Monitor", "price": 249.5},
	}
	assert.Equal(t, "insert ProductBase set name='Monitor',price=249.5", Canonicalize(ins))

	upd := &Update{
		Entity: Entity{Name: "ProductBase"},
		Set:    map[string]interface{}{"price": 199.0},
		Where:  Comparison{Left: Column{Name: "id"}, Op: Eq, Right: Value{V: 7}},
	}
	assert.Equal(t, "update ProductBase set price=199 where (id eq 7)", Canonicalize(upd))

	del := &Delete{
		Entity: Entity{Name: "ProductBase"},
		Where:  Comparison{Left: Column{Name: "id"}, Op: Eq, Right: Value{V: 7}},
	}
	assert.Equal(t, "delete ProductBase where (id eq 7)", Canonicalize(del))
}
