package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(v bool) *bool { return &v }

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(NamingStrategy{})
	require.NoError(t, r.Add(
		&Model{
			Name:    "Thing",
			Version: "1.0",
			Fields: []*Field{
				{Name: "id", Type: TypeCounter, Primary: true},
				{Name: "name", Type: TypeText},
				{Name: "dateCreated", Type: TypeDateTime},
			},
		},
		&Model{
			Name:     "Person",
			Inherits: "Thing",
			Version:  "1.2",
			Fields: []*Field{
				{Name: "id", Type: TypeCounter, Primary: true},
				{Name: "email", Type: TypeText},
				{Name: "givenName", Type: TypeText},
				{Name: "orders", Type: "Order", Many: boolp(true)},
			},
		},
		&Model{
			Name:    "Order",
			Version: "1.0",
			Fields: []*Field{
				{Name: "id", Type: TypeCounter, Primary: true},
				{Name: "customer", Type: "Person"},
				{Name: "orderedItem", Type: "Product"},
				{Name: "orderDate", Type: TypeDateTime},
			},
		},
		&Model{
			Name:    "Product",
			Version: "1.0",
			Fields: []*Field{
				{Name: "id", Type: TypeCounter, Primary: true},
				{Name: "name", Type: TypeText},
				{Name: "price", Type: TypeNumber},
				{Name: "keywords", Type: TypeText, Many: boolp(true)},
			},
		},
		&Model{
			Name:    "Group",
			Version: "1.0",
			Fields: []*Field{
				{Name: "id", Type: TypeCounter, Primary: true},
				{Name: "name", Type: TypeText},
				{Name: "members", Type: "Person", Many: boolp(true)},
			},
		},
	))
	return r
}

func TestAttributesInheritance(t *testing.T) {
	r := testRegistry(t)
	person, err := r.Get("Person")
	require.NoError(t, err)

	attrs := person.Attributes()
	names := make([]string, len(attrs))
	for i, f := range attrs {
		names[i] = f.Name
	}
	// parent non-primary fields first, then own fields; the parent's
	// primary key is not inherited
	assert.Equal(t, []string{"name", "dateCreated", "id", "email", "givenName", "orders"}, names)
}

func TestAttributesChildOverride(t *testing.T) {
	r := NewRegistry(NamingStrategy{})
	require.NoError(t, r.Add(
		&Model{Name: "Base", Fields: []*Field{
			{Name: "id", Type: TypeCounter, Primary: true},
			{Name: "label", Type: TypeText, Size: 64},
		}},
		&Model{Name: "Derived", Inherits: "Base", Fields: []*Field{
			{Name: "id", Type: TypeCounter, Primary: true},
			{Name: "label", Type: TypeText, Size: 255},
		}},
	))
	derived, err := r.Get("Derived")
	require.NoError(t, err)

	var labels []*Field
	for _, f := range derived.Attributes() {
		if f.Name == "label" {
			labels = append(labels, f)
		}
	}
	require.Len(t, labels, 1)
	assert.Equal(t, 255, labels[0].Size)
}

func TestLookUpFieldByProperty(t *testing.T) {
	r := NewRegistry(NamingStrategy{})
	require.NoError(t, r.Add(&Model{Name: "Account", Fields: []*Field{
		{Name: "id", Type: TypeCounter, Primary: true},
		{Name: "accountType", Property: "kind", Type: TypeInteger},
	}}))
	account, err := r.Get("Account")
	require.NoError(t, err)

	assert.NotNil(t, account.LookUpField("accountType"))
	assert.NotNil(t, account.LookUpField("kind"))
	assert.Nil(t, account.LookUpField("missing"))
}

func TestPrimaryField(t *testing.T) {
	r := testRegistry(t)
	person, err := r.Get("Person")
	require.NoError(t, err)

	pk, err := person.PrimaryField()
	require.NoError(t, err)
	assert.Equal(t, "id", pk.Name)

	bare := &Model{Name: "Bare", Fields: []*Field{{Name: "x", Type: TypeText}}}
	require.NoError(t, r.Add(bare))
	_, err = bare.PrimaryField()
	assert.ErrorIs(t, err, ErrPrimaryKeyRequired)
}

func TestFieldMany(t *testing.T) {
	r := testRegistry(t)
	person, err := r.Get("Person")
	require.NoError(t, err)

	assert.True(t, person.FieldMany(person.LookUpField("orders")))
	assert.False(t, person.FieldMany(person.LookUpField("email")))

	// inferred from pluralization when Many is nil
	product := &Model{Name: "Widget", Fields: []*Field{
		{Name: "id", Type: TypeCounter, Primary: true},
		{Name: "tags", Type: TypeText},
		{Name: "status", Type: TypeText},
	}}
	require.NoError(t, r.Add(product))
	assert.True(t, product.FieldMany(product.LookUpField("tags")))
	assert.False(t, product.FieldMany(product.LookUpField("status")))
}

func TestInferMappingChildSide(t *testing.T) {
	r := testRegistry(t)
	order, err := r.Get("Order")
	require.NoError(t, err)

	mapping, err := order.InferMapping(order.LookUpField("customer"))
	require.NoError(t, err)
	assert.Equal(t, Association, mapping.Type)
	assert.Equal(t, "Person", mapping.ParentModel)
	assert.Equal(t, "id", mapping.ParentField)
	assert.Equal(t, "Order", mapping.ChildModel)
	assert.Equal(t, "customer", mapping.ChildField)
	assert.False(t, mapping.Many)
}

func TestInferMappingParentSide(t *testing.T) {
	r := testRegistry(t)
	person, err := r.Get("Person")
	require.NoError(t, err)

	mapping, err := person.InferMapping(person.LookUpField("orders"))
	require.NoError(t, err)
	assert.Equal(t, Association, mapping.Type)
	assert.Equal(t, "Person", mapping.ParentModel)
	assert.Equal(t, "Order", mapping.ChildModel)
	assert.Equal(t, "customer", mapping.ChildField)
	assert.True(t, mapping.Many)
}

func TestInferMappingTagJunction(t *testing.T) {
	r := testRegistry(t)
	product, err := r.Get("Product")
	require.NoError(t, err)

	mapping, err := product.InferMapping(product.LookUpField("keywords"))
	require.NoError(t, err)
	assert.Equal(t, Junction, mapping.Type)
	assert.Equal(t, "Product", mapping.ParentModel)
	assert.Empty(t, mapping.ChildModel)
	assert.Equal(t, "ProductKeywords", mapping.AssociationAdapter)
	assert.Equal(t, "object", mapping.JunctionObjectField())
	assert.Equal(t, "value", mapping.JunctionValueField())
	assert.Equal(t, CascadeDelete, mapping.Cascade)
}

func TestInferMappingModelJunction(t *testing.T) {
	r := testRegistry(t)
	group, err := r.Get("Group")
	require.NoError(t, err)

	// Person has no scalar back-reference to Group, so members resolve
	// through a junction table
	mapping, err := group.InferMapping(group.LookUpField("members"))
	require.NoError(t, err)
	assert.Equal(t, Junction, mapping.Type)
	assert.Equal(t, "Group", mapping.ParentModel)
	assert.Equal(t, "Person", mapping.ChildModel)
	assert.Equal(t, "GroupMembers", mapping.AssociationAdapter)
	assert.Equal(t, "parentId", mapping.JunctionObjectField())
	assert.Equal(t, "valueId", mapping.JunctionValueField())
}

func TestInferMappingAmbiguous(t *testing.T) {
	r := NewRegistry(NamingStrategy{})
	require.NoError(t, r.Add(
		&Model{Name: "Person", Fields: []*Field{
			{Name: "id", Type: TypeCounter, Primary: true},
			{Name: "messages", Type: "Message", Many: boolp(true)},
		}},
		&Model{Name: "Message", Fields: []*Field{
			{Name: "id", Type: TypeCounter, Primary: true},
			{Name: "sender", Type: "Person"},
			{Name: "recipient", Type: "Person"},
		}},
	))
	person, err := r.Get("Person")
	require.NoError(t, err)

	_, err = person.InferMapping(person.LookUpField("messages"))
	assert.ErrorIs(t, err, ErrAmbiguousAssociation)
}

func TestInferMappingScalarPrimitive(t *testing.T) {
	r := testRegistry(t)
	product, err := r.Get("Product")
	require.NoError(t, err)

	_, err = product.InferMapping(product.LookUpField("price"))
	assert.ErrorIs(t, err, ErrNoAssociation)
}

func TestExplicitMappingValidation(t *testing.T) {
	r := testRegistry(t)
	bad := &Model{Name: "Shipment", Fields: []*Field{
		{Name: "id", Type: TypeCounter, Primary: true},
		{Name: "order", Type: "Order", Mapping: &Mapping{
			Type:        Association,
			ParentModel: "Order",
			ParentField: "id",
			ChildModel:  "Shipment",
			ChildField:  "missingColumn",
		}},
	}}
	require.NoError(t, r.Add(bad))

	_, err := bad.InferMapping(bad.LookUpField("order"))
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestNaming(t *testing.T) {
	ns := NamingStrategy{}
	assert.Equal(t, "PersonBase", ns.SourceName("Person"))
	assert.Equal(t, "PersonData", ns.ViewName("Person"))
	assert.Equal(t, "GroupMembers", ns.JunctionName("Group", "members"))

	prefixed := NamingStrategy{TablePrefix: "app_"}
	assert.Equal(t, "app_PersonBase", prefixed.SourceName("Person"))
}

func TestIsPlural(t *testing.T) {
	assert.True(t, IsPlural("orders"))
	assert.True(t, IsPlural("keywords"))
	assert.False(t, IsPlural("order"))
	assert.False(t, IsPlural("status"))
	assert.False(t, IsPlural(""))
}
