package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelq/query"
)

func col(entity, name string) query.Column {
	return query.Column{Entity: entity, Name: name}
}

func TestRenderSelect(t *testing.T) {
	sql, args, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Selects: []query.Expression{
			col("ProductData", "name"),
			col("ProductData", "price"),
		},
		Where: query.Comparison{
			Left:  col("ProductData", "price"),
			Op:    query.Lt,
			Right: query.Value{V: 800},
		},
		Orders: []query.Order{{Expr: col("ProductData", "price"), Desc: true}},
		Take:   5,
		Skip:   10,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "ProductData"."name", "ProductData"."price" FROM "ProductData"`+
			` WHERE "ProductData"."price" < ? ORDER BY "ProductData"."price" DESC`+
			` LIMIT 5 OFFSET 10`,
		sql)
	assert.Equal(t, []interface{}{800}, args)
}

func TestRenderSelectStar(t *testing.T) {
	sql, args, err := render(&query.Query{Entity: query.Entity{Name: "ProductData"}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "ProductData".* FROM "ProductData"`, sql)
	assert.Empty(t, args)
}

func TestRenderSkipWithoutTake(t *testing.T) {
	sql, _, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Skip:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "ProductData".* FROM "ProductData" LIMIT -1 OFFSET 10`, sql)
}

func TestRenderJoin(t *testing.T) {
	sql, _, err := render(&query.Query{
		Entity: query.Entity{Name: "OrderData"},
		Joins: []query.Join{{
			Kind:   query.LeftJoin,
			Entity: query.Entity{Name: "PersonData", Alias: "customer"},
			On: query.Comparison{
				Left:  col("OrderData", "customer"),
				Op:    query.Eq,
				Right: col("customer", "id"),
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "OrderData".* FROM "OrderData" LEFT JOIN "PersonData" AS "customer"`+
			` ON "OrderData"."customer" = "customer"."id"`,
		sql)
}

func TestRenderCount(t *testing.T) {
	sql, args, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Comparison{
			Left:  col("ProductData", "category"),
			Op:    query.Eq,
			Right: query.Value{V: "Laptops"},
		},
		Orders: []query.Order{{Expr: col("ProductData", "price")}},
		Count:  true,
		Take:   5,
	})
	require.NoError(t, err)
	// a count ignores ordering and paging
	assert.Equal(t,
		`SELECT COUNT(*) AS total FROM "ProductData" WHERE "ProductData"."category" = ?`,
		sql)
	assert.Equal(t, []interface{}{"Laptops"}, args)
}

func TestRenderStringPredicates(t *testing.T) {
	tests := []struct {
		name string
		op   query.Operator
		sql  string
	}{
		{"contains", query.Contains, `"ProductData"."name" LIKE '%' || ? || '%'`},
		{"not contains", query.NotContains, `"ProductData"."name" NOT LIKE '%' || ? || '%'`},
		{"startswith", query.StartsWith, `"ProductData"."name" LIKE ? || '%'`},
		{"endswith", query.EndsWith, `"ProductData"."name" LIKE '%' || ?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := render(&query.Query{
				Entity: query.Entity{Name: "ProductData"},
				Where: query.Comparison{
					Left:  col("ProductData", "name"),
					Op:    tt.op,
					Right: query.Value{V: "Think"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, `SELECT "ProductData".* FROM "ProductData" WHERE `+tt.sql, sql)
			assert.Equal(t, []interface{}{"Think"}, args)
		})
	}
}

func TestRenderNullComparison(t *testing.T) {
	sql, args, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Comparison{
			Left: col("ProductData", "category"),
			Op:   query.Eq,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "ProductData".* FROM "ProductData" WHERE "ProductData"."category" IS NULL`, sql)
	assert.Empty(t, args)

	sql, _, err = render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Comparison{
			Left:  col("ProductData", "category"),
			Op:    query.Ne,
			Right: query.Value{},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "IS NOT NULL")
}

func TestRenderInAndBetween(t *testing.T) {
	sql, args, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Comparison{
			Left:  col("ProductData", "category"),
			Op:    query.In,
			Right: query.Values{V: []interface{}{"Laptops", "Desktops"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `"ProductData"."category" IN (?, ?)`)
	assert.Equal(t, []interface{}{"Laptops", "Desktops"}, args)

	sql, args, err = render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Comparison{
			Left:  col("ProductData", "price"),
			Op:    query.Between,
			Right: query.Values{V: []interface{}{200, 600}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `"ProductData"."price" BETWEEN ? AND ?`)
	assert.Equal(t, []interface{}{200, 600}, args)
}

func TestRenderGroupAndNot(t *testing.T) {
	sql, _, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Where: query.Not{Expr: query.Group{
			Op: query.OrOp,
			Exprs: []query.Expression{
				query.Comparison{Left: col("ProductData", "price"), Op: query.Gt, Right: query.Value{V: 100}},
				query.Comparison{Left: col("ProductData", "price"), Op: query.Lt, Right: query.Value{V: 10}},
			},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, `NOT (("ProductData"."price" > ? OR "ProductData"."price" < ?))`)
}

func TestRenderFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   query.Func
		sql  string
	}{
		{
			"year",
			query.Func{Name: "year", Args: []query.Expression{col("", "orderDate")}},
			`CAST(strftime('%Y', "orderDate") AS INTEGER)`,
		},
		{
			"indexof",
			query.Func{Name: "indexof", Args: []query.Expression{col("", "name"), query.Value{V: "Pad"}}},
			`(INSTR("name", ?) - 1)`,
		},
		{
			"substring",
			query.Func{Name: "substring", Args: []query.Expression{col("", "name"), query.Value{V: 2}, query.Value{V: 4}}},
			`SUBSTR("name", (?) + 1, ?)`,
		},
		{
			"concat",
			query.Func{Name: "concat", Args: []query.Expression{col("", "givenName"), query.Value{V: " "}}},
			`("givenName" || ?)`,
		},
		{
			"tolower",
			query.Func{Name: "tolower", Args: []query.Expression{col("", "name")}},
			`LOWER("name")`,
		},
		{
			"ceiling",
			query.Func{Name: "ceiling", Args: []query.Expression{col("", "price")}},
			`CEIL("price")`,
		},
		{
			"add",
			query.Func{Name: "add", Args: []query.Expression{col("", "price"), query.Value{V: 50}}},
			`("price" + ?)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := render(&query.Query{
				Entity: query.Entity{Name: "T"},
				Where: query.Comparison{
					Left:  tt.fn,
					Op:    query.Gt,
					Right: query.Value{V: 0},
				},
			})
			require.NoError(t, err)
			assert.Contains(t, sql, tt.sql+" > ?")
		})
	}
}

func TestRenderAggregateAlias(t *testing.T) {
	sql, _, err := render(&query.Query{
		Entity: query.Entity{Name: "ProductData"},
		Selects: []query.Expression{
			query.Func{Name: "max", Alias: "maxOfPrice", Args: []query.Expression{col("ProductData", "price")}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT MAX("ProductData"."price") AS "maxOfPrice" FROM "ProductData"`, sql)
}

func TestRenderInsert(t *testing.T) {
	sql, args, err := render(&query.Insert{
		Entity: query.Entity{Name: "ProductBase"},
		Values: map[string]interface{}{
			"name":  "Monitor",
			"price": 249.5,
		},
	})
	require.NoError(t, err)
	// keys render in sorted order
	assert.Equal(t, `INSERT INTO "ProductBase" ("name", "price") VALUES (?, ?)`, sql)
	assert.Equal(t, []interface{}{"Monitor", 249.5}, args)
}

func TestRenderUpdate(t *testing.T) {
	sql, args, err := render(&query.Update{
		Entity: query.Entity{Name: "ProductBase"},
		Set:    map[string]interface{}{"price": 199.0},
		Where: query.Comparison{
			Left:  query.Column{Name: "id"},
			Op:    query.Eq,
			Right: query.Value{V: 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "ProductBase" SET "price" = ? WHERE "id" = ?`, sql)
	assert.Equal(t, []interface{}{199.0, 7}, args)
}

func TestRenderDelete(t *testing.T) {
	sql, args, err := render(&query.Delete{
		Entity: query.Entity{Name: "ProductBase"},
		Where: query.Comparison{
			Left:  query.Column{Name: "id"},
			Op:    query.Eq,
			Right: query.Value{V: 7},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "ProductBase" WHERE "id" = ?`, sql)
	assert.Equal(t, []interface{}{7}, args)
}

func TestRenderUnsupported(t *testing.T) {
	_, _, err := render(&query.Query{
		Entity: query.Entity{Name: "T"},
		Where: query.Comparison{
			Left:  query.Func{Name: "median", Args: []query.Expression{col("", "price")}},
			Op:    query.Gt,
			Right: query.Value{V: 0},
		},
	})
	assert.Error(t, err)
}
