package modelq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelkit/modelq/query"
	"github.com/modelkit/modelq/schema"
)

func TestExecuteDispatchesQuery(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{
		{"id": int64(1), "name": "ThinkPad T480", "category": "Laptops", "price": 849.5},
	}

	rows, err := db.MustModel("Product").AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ThinkPad T480", rows[0]["name"])

	stmts := ad.executed()
	require.Len(t, stmts, 1)
	sel, ok := stmts[0].(*query.Query)
	require.True(t, ok)
	assert.Equal(t, "ProductData", sel.Entity.Name)
}

func TestExecuteStopsOnBuildError(t *testing.T) {
	db, ad := testDB(t)
	_, err := db.MustModel("Product").Where("missing").Equal(1).All(context.Background())
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.Empty(t, ad.executed())
}

func TestBeforeExecuteShortCircuit(t *testing.T) {
	db, ad := testDB(t)
	product := db.MustModel("Product")

	cached := []map[string]interface{}{{"id": int64(9), "name": "cached"}}
	secondRan := false
	require.NoError(t, product.Use(
		BeforeExecuteFunc(func(ctx context.Context, e *ExecuteEvent) error {
			e.SetResult(cached)
			return nil
		}),
		BeforeExecuteFunc(func(ctx context.Context, e *ExecuteEvent) error {
			secondRan = true
			return nil
		}),
	))

	rows, err := product.AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, rows)
	assert.False(t, secondRan)
	assert.Empty(t, ad.executed())
}

func TestBeforeExecuteErrorAborts(t *testing.T) {
	db, ad := testDB(t)
	product := db.MustModel("Product")

	denied := errors.New("access denied")
	require.NoError(t, product.Use(BeforeExecuteFunc(func(ctx context.Context, e *ExecuteEvent) error {
		return denied
	})))

	_, err := product.AsQueryable().Flatten().All(context.Background())
	assert.ErrorIs(t, err, denied)
	assert.Empty(t, ad.executed())
}

func TestAfterExecuteReplacesResult(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"id": int64(1), "price": 100.0}}
	product := db.MustModel("Product")

	require.NoError(t, product.Use(AfterExecuteFunc(func(ctx context.Context, e *ExecuteEvent) error {
		rows, _ := e.Result()
		out := make([]map[string]interface{}, 0, len(rows))
		for _, r := range rows {
			dup := make(map[string]interface{}, len(r))
			for k, v := range r {
				dup[k] = v
			}
			dup["price"] = 125.0
			out = append(out, dup)
		}
		e.SetResult(out)
		return nil
	})))

	rows, err := product.AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 125.0, rows[0]["price"])
}

func TestSilentFlagReachesEvent(t *testing.T) {
	db, _ := testDB(t)
	product := db.MustModel("Product")

	var silent []bool
	require.NoError(t, product.Use(BeforeExecuteFunc(func(ctx context.Context, e *ExecuteEvent) error {
		silent = append(silent, e.Silent)
		return nil
	})))

	_, err := product.AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	_, err = product.Silent().AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, silent)
}

func TestUseRejectsNonHandler(t *testing.T) {
	db, _ := testDB(t)
	err := db.MustModel("Product").Use("not a handler")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestMigrateOncePerVersion(t *testing.T) {
	db, ad := testDB(t)
	product := db.MustModel("Product")

	upgrades := 0
	require.NoError(t, product.Use(AfterUpgradeFunc(func(ctx context.Context, e *UpgradeEvent) error {
		upgrades++
		return nil
	})))

	ctx := context.Background()
	_, err := product.AsQueryable().Flatten().All(ctx)
	require.NoError(t, err)
	_, err = product.AsQueryable().Flatten().All(ctx)
	require.NoError(t, err)

	count := 0
	for _, m := range ad.migrations {
		if m.Model == "Product" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, upgrades)
}

func TestMigrationShape(t *testing.T) {
	db, ad := testDB(t)
	require.NoError(t, db.MustModel("Order").Migrate(context.Background()))

	require.Len(t, ad.migrations, 1)
	mig := ad.migrations[0]
	assert.Equal(t, "OrderBase", mig.AppliesTo)
	assert.Equal(t, "OrderData", mig.View)

	// the customer column is typed after Person's primary key
	var customer *schema.Field
	for _, f := range mig.Add {
		if f.Name == "customer" {
			customer = f
		}
	}
	require.NotNil(t, customer)
	assert.Equal(t, schema.TypeCounter, customer.Type)
}

func TestDisableMigrations(t *testing.T) {
	ad := &stubAdapter{}
	db, err := Open(ad, &Config{DisableMigrations: true})
	require.NoError(t, err)
	require.NoError(t, db.Define(&schema.Model{
		Name:    "Widget",
		Version: "1.0",
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypeCounter, Primary: true},
			{Name: "name", Type: schema.TypeText},
		},
	}))

	_, err = db.MustModel("Widget").AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ad.migrations)
}

func TestDefaultProjectionStripsHiddenAndMany(t *testing.T) {
	db, ad := testDB(t)
	require.NoError(t, db.Define(&schema.Model{
		Name:    "User",
		Version: "1.0",
		Fields: []*schema.Field{
			{Name: "id", Type: schema.TypeCounter, Primary: true},
			{Name: "name", Type: schema.TypeText},
			{Name: "password", Type: schema.TypeText, Hidden: true},
			{Name: "groups", Type: schema.TypeText, Many: boolp(true)},
		},
	}))

	_, err := db.MustModel("User").AsQueryable().Flatten().All(context.Background())
	require.NoError(t, err)

	stmts := ad.executed()
	require.Len(t, stmts, 1)
	sel := stmts[0].(*query.Query)

	names := make([]string, 0, len(sel.Selects))
	for _, s := range sel.Selects {
		names = append(names, s.(query.Column).Name)
	}
	assert.Equal(t, []string{"id", "name"}, names)
}

func TestFirst(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"id": int64(1)}, {"id": int64(2)}}

	row, err := db.MustModel("Product").AsQueryable().Flatten().First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])

	sel := ad.executed()[0].(*query.Query)
	assert.Equal(t, 1, sel.Take)
}

func TestFirstEmpty(t *testing.T) {
	db, _ := testDB(t)
	row, err := db.MustModel("Product").AsQueryable().Flatten().First(context.Background())
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestCount(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"total": int64(42)}}

	n, err := db.MustModel("Product").Where("price").LowerThan(800).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	sel := ad.executed()[0].(*query.Query)
	assert.True(t, sel.Count)
	assert.Equal(t, 0, sel.Take)
	assert.Empty(t, sel.Orders)
}

func TestValue(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"name": "ThinkPad T480"}}

	v, err := db.MustModel("Product").Select("name").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ThinkPad T480", v)
}

func TestAggregateFinisher(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"maxOfPrice": 1249.5}}

	v, err := db.MustModel("Product").AsQueryable().Max(context.Background(), "price")
	require.NoError(t, err)
	assert.Equal(t, 1249.5, v)

	sel := ad.executed()[0].(*query.Query)
	require.Len(t, sel.Selects, 1)
	fn := sel.Selects[0].(query.Func)
	assert.Equal(t, "max", fn.Name)
	assert.Equal(t, "maxOfPrice", fn.Alias)
}

func TestScalarAllCollapsesSingleColumn(t *testing.T) {
	db, ad := testDB(t)
	ad.rows = []map[string]interface{}{{"name": "A"}, {"name": "B"}}

	out, err := db.MustModel("Product").Select("name").Flatten().ScalarAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"A", "B"}, out)
}

func TestGetTypedItemNotFound(t *testing.T) {
	db, _ := testDB(t)
	var dest struct {
		ID int64 `json:"id"`
	}
	err := db.MustModel("Product").Where("id").Equal(99).GetTypedItem(context.Background(), &dest)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
