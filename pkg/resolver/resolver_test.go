package resolver

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-catalog/internal/testdb"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

type Vendor struct {
	ID   int64  `po:"id,primaryKey,autoIncrement"`
	Name string `po:"name,notNull"`
}

type Item struct {
	ID       int64   `po:"id,primaryKey,autoIncrement"`
	Title    string  `po:"title,notNull"`
	VendorID *int64  `po:"vendor_id"`
	Vendor   *Vendor `po:"-,belongsTo"`
	Label    *Label  `po:"-,hasOne,inverse(Item)"`
}

type Label struct {
	ID     int64   `po:"id,primaryKey,autoIncrement"`
	Text   *string `po:"text"`
	ItemID *int64  `po:"item_id"`
	Item   *Item   `po:"-,ownsOne"`
}

func setup(t *testing.T) (*testdb.DB, *Resolver, *schema.TableMetadata) {
	t.Helper()
	db := testdb.Open(t)
	db.Create(t, Vendor{}, Item{}, Label{})

	db.MustExec(t, `INSERT INTO vendor (id, name) VALUES (1, 'Acme'), (2, 'Globex')`)
	db.MustExec(t, `INSERT INTO item (id, title, vendor_id) VALUES (1, 'Scissors', 1), (2, 'Glue', 1), (3, 'Tape', 2), (4, 'Loose', NULL)`)
	db.MustExec(t, `INSERT INTO label (id, text, item_id) VALUES (1, 'sharp', 1), (2, 'sticky', 2)`)
	db.Reset()

	table, err := db.Registry.Lookup(reflect.TypeOf(Item{}))
	require.NoError(t, err)
	return db, New(db.Registry, db.Logger()), table
}

func loadItems(t *testing.T, db *testdb.DB) []Item {
	t.Helper()
	rows, err := db.Query(context.Background(), `SELECT id, title, vendor_id FROM item ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		require.NoError(t, rows.Scan(&it.ID, &it.Title, &it.VendorID))
		items = append(items, it)
	}
	require.NoError(t, rows.Err())
	db.Reset()
	return items
}

func TestResolve_OwningBatch(t *testing.T) {
	db, r, table := setup(t)
	items := loadItems(t, db)

	require.NoError(t, r.Resolve(context.Background(), db, table, items, "Vendor"))
	assert.Equal(t, 1, db.Statements(), "one lookup for the whole batch")

	assert.Equal(t, "Acme", items[0].Vendor.Name)
	assert.Equal(t, "Acme", items[1].Vendor.Name)
	assert.Equal(t, "Globex", items[2].Vendor.Name)
	assert.Nil(t, items[3].Vendor)
	assert.Nil(t, items[0].Label, "unrequested relationships stay unresolved")

	items[0].Vendor.Name = "changed"
	assert.Equal(t, "Acme", items[1].Vendor.Name, "rows sharing a target must not alias")
}

func TestResolve_AllRelationships(t *testing.T) {
	db, r, table := setup(t)
	items := loadItems(t, db)

	require.NoError(t, r.Resolve(context.Background(), db, table, &items))
	assert.Equal(t, 2, db.Statements(), "one lookup per relationship")

	require.NotNil(t, items[0].Label)
	assert.Equal(t, "sharp", *items[0].Label.Text)
	assert.Equal(t, "sticky", *items[1].Label.Text)
	assert.Nil(t, items[2].Label, "zero owners resolve to nil")
	assert.Nil(t, items[0].Label.Item, "targets are loaded one level deep")

	entries := db.Logs.AllEntries()
	require.NotEmpty(t, entries)
	var resolved int
	for _, e := range entries {
		if e.Message == "resolved relationship" {
			resolved++
			assert.Equal(t, logrus.DebugLevel, e.Level)
		}
	}
	assert.Equal(t, 2, resolved)
}

func TestResolve_ConstantQueriesForPointers(t *testing.T) {
	db, r, table := setup(t)
	items := loadItems(t, db)
	ptrs := []*Item{&items[0], &items[1], &items[2], &items[3]}

	require.NoError(t, r.Resolve(context.Background(), db, table, ptrs))
	assert.Equal(t, 2, db.Statements())
	assert.Equal(t, "Globex", items[2].Vendor.Name)
}

func TestResolve_DanglingReference(t *testing.T) {
	db, r, table := setup(t)
	db.MustExec(t, `DELETE FROM vendor WHERE id = 2`)
	items := loadItems(t, db)

	err := r.Resolve(context.Background(), db, table, items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, runtime.ErrDanglingReference))

	var re *runtime.ReferenceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "item", re.Entity)
	assert.Equal(t, int64(3), re.ID)
	assert.Equal(t, "Vendor", re.Relationship)
	assert.Equal(t, "vendor", re.Target)
	assert.Equal(t, int64(2), re.Key)
}

func TestResolve_CardinalityViolation(t *testing.T) {
	db, r, table := setup(t)
	db.MustExec(t, `INSERT INTO label (id, text, item_id) VALUES (3, 'duplicate', 1)`)
	items := loadItems(t, db)

	err := r.Resolve(context.Background(), db, table, items, "Label")
	assert.True(t, errors.Is(err, runtime.ErrRelationshipCardinalityViolation))

	var re *runtime.ReferenceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Matches)
	assert.Equal(t, int64(1), re.ID)
}

func TestResolve_OwningOneToOne(t *testing.T) {
	db, r, _ := setup(t)
	labels, err := db.Registry.Lookup(reflect.TypeOf(Label{}))
	require.NoError(t, err)

	itemID := int64(2)
	ls := []Label{{ID: 2, ItemID: &itemID}, {ID: 9}}
	require.NoError(t, r.Resolve(context.Background(), db, labels, ls))
	assert.Equal(t, "Glue", ls[0].Item.Title)
	assert.Nil(t, ls[1].Item)
}

func TestResolve_Errors(t *testing.T) {
	db, r, table := setup(t)
	ctx := context.Background()

	assert.True(t, errors.Is(r.Resolve(ctx, db, table, Item{}), runtime.ErrInvalidModel))
	assert.True(t, errors.Is(r.Resolve(ctx, db, table, []Item{{ID: 1}}, "Owner"), runtime.ErrInvalidModel))
	assert.NoError(t, r.Resolve(ctx, db, table, []Item{}))
	assert.Equal(t, 0, db.Statements())
}

func TestResolve_InsideTransaction(t *testing.T) {
	db, r, table := setup(t)
	items := loadItems(t, db)

	err := db.InTx(context.Background(), func(ctx context.Context, q runtime.Querier) error {
		return r.Resolve(ctx, q, table, items)
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", items[0].Vendor.Name)
}

func TestDescribe(t *testing.T) {
	_, _, table := setup(t)
	want := "Vendor: belongsTo vendor (many-to-one, via item.vendor_id)\n" +
		"Label: hasOne label (one-to-one, inverse of label.item_id)\n"
	assert.Equal(t, want, Describe(table))
}
