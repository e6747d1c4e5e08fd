package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-catalog/internal/testdb"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

type Supplier struct {
	ID        int64     `po:"id,primaryKey,autoIncrement"`
	Name      string    `po:"name,notNull"`
	CreatedAt time.Time `po:"created_at,createdAt"`
	UpdatedAt time.Time `po:"updated_at,updatedAt"`
}

type Part struct {
	ID         int64     `po:"id,primaryKey,autoIncrement"`
	Name       string    `po:"name,notNull"`
	Price      int       `po:"price,notNull"`
	SupplierID *int64    `po:"supplier_id"`
	Supplier   *Supplier `po:"-,belongsTo"`
	Sheet      *Sheet    `po:"-,hasOne,inverse(Part)"`
	CreatedAt  time.Time `po:"created_at,createdAt"`
	UpdatedAt  time.Time `po:"updated_at,updatedAt"`
}

type Sheet struct {
	ID     int64   `po:"id,primaryKey,autoIncrement"`
	Notes  *string `po:"notes"`
	PartID *int64  `po:"part_id"`
	Part   *Part   `po:"-,ownsOne"`
}

type fixture struct {
	db        *testdb.DB
	parts     *Repository[Part]
	suppliers *Repository[Supplier]
	sheets    *Repository[Sheet]
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testdb.Open(t)
	db.Create(t, Supplier{}, Part{}, Sheet{})

	opts = append([]Option{WithRegistry(db.Registry)}, opts...)
	parts, err := New[Part](db.DB, opts...)
	require.NoError(t, err)
	suppliers, err := New[Supplier](db.DB, WithRegistry(db.Registry))
	require.NoError(t, err)
	sheets, err := New[Sheet](db.DB, WithRegistry(db.Registry))
	require.NoError(t, err)
	return &fixture{db: db, parts: parts, suppliers: suppliers, sheets: sheets}
}

func fixedClock(ctx context.Context, t time.Time) context.Context {
	return runtime.WithClock(ctx, runtime.ClockFunc(func() time.Time { return t }))
}

func (f *fixture) seed(t *testing.T) (acme Supplier, parts []Part) {
	t.Helper()
	ctx := context.Background()
	acme = Supplier{Name: "Acme"}
	require.NoError(t, f.suppliers.Save(ctx, &acme))

	for _, p := range []Part{
		{Name: "Scissors", Price: 1500, Supplier: &acme},
		{Name: "Glue", Price: 300, Supplier: &acme},
		{Name: "Tape", Price: 250},
		{Name: "Stapler", Price: 900},
	} {
		require.NoError(t, f.parts.Save(ctx, &p))
		parts = append(parts, p)
	}
	f.db.Reset()
	return acme, parts
}

func names(ps []Part) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestNew_Errors(t *testing.T) {
	db := testdb.Open(t)

	_, err := New[int](db.DB, WithRegistry(db.Registry))
	assert.True(t, errors.Is(err, runtime.ErrInvalidModel))

	_, err = New[Part](db.DB, WithRegistry(db.Registry), WithLazy("Owner"))
	assert.True(t, errors.Is(err, runtime.ErrInvalidModel))
}

func TestSave_InsertAssignsIDAndAudit(t *testing.T) {
	f := setup(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := fixedClock(context.Background(), now)

	p := Part{Name: "Scissors", Price: 1500}
	require.NoError(t, f.parts.Save(ctx, &p))

	assert.NotZero(t, p.ID)
	assert.True(t, p.CreatedAt.Equal(now))

	var logged bool
	for _, e := range f.db.Logs.AllEntries() {
		if e.Message == "inserted" {
			logged = true
			assert.Equal(t, p.ID, e.Data["id"])
		}
	}
	assert.True(t, logged, "insert through RETURNING is logged")
	assert.True(t, p.UpdatedAt.Equal(p.CreatedAt), "createdAt == updatedAt on insert")

	got, found, err := f.parts.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Scissors", got.Name)
	assert.Equal(t, 1500, got.Price)
	assert.Nil(t, got.SupplierID)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.UpdatedAt.Equal(now))
}

func TestSave_UpdateRefreshesUpdatedAt(t *testing.T) {
	f := setup(t)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p := Part{Name: "Scissors", Price: 1500}
	require.NoError(t, f.parts.Save(fixedClock(context.Background(), start), &p))
	created := p.CreatedAt

	// Callers cannot rewrite createdAt.
	p.CreatedAt = start.Add(-time.Hour)
	p.Price = 1400
	later := start.Add(time.Minute)
	require.NoError(t, f.parts.Save(fixedClock(context.Background(), later), &p))
	assert.True(t, p.CreatedAt.Equal(created))
	assert.True(t, p.UpdatedAt.Equal(later))

	// A clock that stands still still moves updatedAt forward.
	require.NoError(t, f.parts.Save(fixedClock(context.Background(), later), &p))
	assert.True(t, p.UpdatedAt.After(later))
	assert.True(t, p.CreatedAt.Equal(created))

	got, _, err := f.parts.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1400, got.Price)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(p.UpdatedAt))
}

func TestSave_UpdateMissing(t *testing.T) {
	f := setup(t)
	p := Part{ID: 42, Name: "Ghost", Price: 1}
	err := f.parts.Save(context.Background(), &p)
	assert.True(t, errors.Is(err, runtime.ErrNotFound))
	assert.True(t, p.UpdatedAt.IsZero(), "entity is untouched on failure")
}

func TestSave_OwningRelationshipWritesForeignKey(t *testing.T) {
	f := setup(t)
	acme, parts := f.seed(t)

	require.NotNil(t, parts[0].SupplierID)
	assert.Equal(t, acme.ID, *parts[0].SupplierID)
	assert.Nil(t, parts[2].SupplierID)

	// A nil relationship field leaves an explicitly set key alone.
	p := parts[2]
	p.SupplierID = &acme.ID
	require.NoError(t, f.parts.Save(context.Background(), &p))
	got, _, err := f.parts.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Supplier)
	assert.Equal(t, "Acme", got.Supplier.Name)
}

func TestSave_ForeignKeyChangeAfterLoad(t *testing.T) {
	f := setup(t)
	acme, parts := f.seed(t)
	ctx := context.Background()
	beta := Supplier{Name: "Beta"}
	require.NoError(t, f.suppliers.Save(ctx, &beta))

	load := func() Part {
		t.Helper()
		got, found, err := f.parts.FindByID(ctx, parts[0].ID)
		require.NoError(t, err)
		require.True(t, found)
		return got
	}

	// Reassign through the key while the old supplier is still loaded.
	got := load()
	require.NotNil(t, got.Supplier)
	got.SupplierID = &beta.ID
	require.NoError(t, f.parts.Save(ctx, &got))
	assert.Nil(t, got.Supplier, "a related entity contradicting the key is dropped")

	got = load()
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, beta.ID, *got.SupplierID)
	require.NotNil(t, got.Supplier)
	assert.Equal(t, "Beta", got.Supplier.Name)

	// Clear the key.
	got.SupplierID = nil
	require.NoError(t, f.parts.Save(ctx, &got))
	got = load()
	assert.Nil(t, got.SupplierID)
	assert.Nil(t, got.Supplier)

	// With the key untouched, the relationship field supplies it.
	got.Supplier = &acme
	require.NoError(t, f.parts.Save(ctx, &got))
	got = load()
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, acme.ID, *got.SupplierID)

	loaded := load()
	loaded.Supplier = &beta
	require.NoError(t, f.parts.Save(ctx, &loaded))
	got = load()
	assert.Equal(t, beta.ID, *got.SupplierID)
}

func TestSave_UnsavedRelatedEntity(t *testing.T) {
	f := setup(t)
	p := Part{Name: "Scissors", Price: 1500, Supplier: &Supplier{Name: "Unsaved"}}

	err := f.parts.Save(context.Background(), &p)
	var ve *runtime.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Supplier", ve.Field)
	assert.Zero(t, p.ID)
	assert.Equal(t, 0, f.db.Statements())
}

func TestSave_NonOwningIgnored(t *testing.T) {
	f := setup(t)
	_, parts := f.seed(t)

	notes := "sharp"
	p := parts[0]
	p.Sheet = &Sheet{Notes: &notes}
	require.NoError(t, f.parts.Save(context.Background(), &p))

	n, err := f.sheets.CountBy(context.Background(), query.All())
	require.NoError(t, err)
	assert.Zero(t, n, "non-owning side is never persisted")

	var logged bool
	for _, e := range f.db.Logs.AllEntries() {
		if e.Message == "ignoring non-owning relationship on save" {
			logged = true
			assert.Equal(t, "Sheet", e.Data["relationship"])
		}
	}
	assert.True(t, logged)
}

func TestFind_EagerResolution(t *testing.T) {
	f := setup(t)
	_, parts := f.seed(t)

	notes := "sharp"
	owner := parts[0].ID
	require.NoError(t, f.sheets.Save(context.Background(), &Sheet{Notes: &notes, PartID: &owner}))
	f.db.Reset()

	all, err := f.parts.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 3, f.db.Statements(), "one select plus one lookup per relationship")

	assert.Equal(t, "Acme", all[0].Supplier.Name)
	require.NotNil(t, all[0].Sheet)
	assert.Equal(t, "sharp", *all[0].Sheet.Notes)
	assert.Nil(t, all[2].Supplier)
	assert.Nil(t, all[2].Sheet)

	sheet, found, err := f.sheets.FindOneBy(context.Background(), query.Where(query.Eq("Part.Name", "Scissors")))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, parts[0].ID, sheet.Part.ID)
}

func TestFind_Lazy(t *testing.T) {
	f := setup(t, WithLazy("Sheet"))
	_, _ = f.seed(t)

	all, err := f.parts.FindAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.db.Statements())
	assert.NotNil(t, all[0].Supplier)

	lazy := f.parts.Deferred(all[0], "Sheet")
	assert.False(t, lazy.Loaded())
	p, err := lazy.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p.Sheet)
	assert.Equal(t, 3, f.db.Statements())
}

func TestFind_DanglingReference(t *testing.T) {
	f := setup(t)
	acme, _ := f.seed(t)

	n, err := f.suppliers.DeleteByID(context.Background(), acme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.parts.FindBy(context.Background(), query.Where(query.Eq("Name", "Scissors")))
	assert.True(t, errors.Is(err, runtime.ErrDanglingReference))

	lazy, err := New[Part](f.db.DB, WithRegistry(f.db.Registry), WithEager("Sheet"))
	require.NoError(t, err)
	got, err := lazy.FindBy(context.Background(), query.Where(query.Eq("Name", "Scissors")))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Supplier)
}

func TestFindBy_Queries(t *testing.T) {
	f := setup(t)
	acme, _ := f.seed(t)
	ctx := context.Background()

	tests := []struct {
		name string
		desc query.Descriptor
		want []string
	}{
		{"containing", query.Where(query.Contains("Name", "iss")), []string{"Scissors"}},
		{"range exclusive", query.Where(query.Range("Price", 250, 1500)).OrderBy("Price", query.Asc), []string{"Glue", "Stapler"}},
		{"range inclusive", query.Where(query.RangeInclusive("Price", 250, 300)).OrderBy("Price", query.Asc), []string{"Tape", "Glue"}},
		{"greater than exclusive", query.Where(query.Gt("Price", 900)), []string{"Scissors"}},
		{"relationship id", query.Where(query.Eq("Supplier.ID", acme.ID)).OrderBy("Name", query.Asc), []string{"Glue", "Scissors"}},
		{"relationship attribute", query.Where(query.Eq("Supplier.Name", "Acme")).OrderBy("Price", query.Desc), []string{"Scissors", "Glue"}},
		{"owning null", query.Where(query.Null("Supplier")).OrderBy("Name", query.Asc), []string{"Stapler", "Tape"}},
		{"limit", query.All().OrderBy("Price", query.Desc).First(2), []string{"Scissors", "Stapler"}},
		{"no match", query.Where(query.Eq("Name", "Nope")), []string{}},
		{"or", query.Where(query.Or(query.Eq("Name", "Tape"), query.Eq("Name", "Glue"))).OrderBy("Name", query.Asc), []string{"Glue", "Tape"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.parts.FindBy(ctx, tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFindBy_Rejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.parts.FindBy(ctx, query.Where(query.Eq("Colour", "red")))
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))

	_, err = f.parts.FindBy(ctx, query.Where(query.Eq("Supplier", Supplier{ID: 1})))
	assert.True(t, errors.Is(err, runtime.ErrUnsupportedPredicateShape))
	assert.Equal(t, 0, f.db.Statements(), "rejected descriptors never reach the store")
}

func TestFindBy_NonOwningNullCheck(t *testing.T) {
	f := setup(t)
	_, parts := f.seed(t)
	ctx := context.Background()

	notes := "sharp"
	require.NoError(t, f.sheets.Save(ctx, &Sheet{Notes: &notes, Part: &parts[0]}))

	without, err := f.parts.FindBy(ctx, query.Where(query.Null("Sheet")).OrderBy("ID", query.Asc))
	require.NoError(t, err)
	assert.Equal(t, []string{"Glue", "Tape", "Stapler"}, names(without))

	with, err := f.parts.FindBy(ctx, query.Where(query.NotNull("Sheet")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Scissors"}, names(with))

	derived, err := f.parts.Find(ctx, "findBySheetIsNullOrderByIDAsc")
	require.NoError(t, err)
	assert.Equal(t, names(without), names(derived))
}

func TestDerive_RejectsRelationshipByValue(t *testing.T) {
	f := setup(t)

	_, err := f.parts.Derive("findBySupplier")
	assert.True(t, errors.Is(err, runtime.ErrUnsupportedPredicateShape))
	_, err = f.parts.Derive("findBySheet")
	assert.True(t, errors.Is(err, runtime.ErrUnsupportedPredicateShape))
	assert.Equal(t, 0, f.db.Statements())
}

func TestFindPage(t *testing.T) {
	f := setup(t)
	_, _ = f.seed(t)
	ctx := context.Background()

	page, err := f.parts.FindPage(ctx, query.All().First(1), query.PageOf(1, 3, query.Order{Path: "Price", Direction: query.Asc}))
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 1, "the page window overrides the limit")
	assert.Equal(t, "Scissors", page.Items[0].Name)

	_, err = f.parts.FindPage(ctx, query.All(), query.PageOf(0, 0))
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))
	_, err = f.parts.FindPage(ctx, query.All(), query.PageOf(-1, 5))
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))
}

func TestCountAndExists(t *testing.T) {
	f := setup(t)
	_, _ = f.seed(t)
	ctx := context.Background()

	n, err := f.parts.CountBy(ctx, query.Where(query.Lt("Price", 1000)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ok, err := f.parts.ExistsBy(ctx, query.Where(query.Eq("Name", "Tape")))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.parts.ExistsBy(ctx, query.Where(query.Eq("Name", "Nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	_, parts := f.seed(t)
	ctx := context.Background()

	n, err := f.parts.DeleteByID(ctx, parts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.parts.DeleteByID(ctx, parts[0].ID)
	require.NoError(t, err)
	assert.Zero(t, n, "deleting a missing id is not an error")

	n, err = f.parts.DeleteBy(ctx, query.Where(query.Lt("Price", 500)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.parts.DeleteBy(ctx, query.All())
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))
	_, err = f.parts.DeleteBy(ctx, query.Where(query.Eq("Name", "Stapler")).First(1))
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))
}

func TestTransactionScope(t *testing.T) {
	f := setup(t)
	_, parts := f.seed(t)
	boom := errors.New("boom")

	err := f.db.Transaction(context.Background(), func(ctx context.Context) error {
		p, _, err := f.parts.FindByID(ctx, parts[0].ID)
		if err != nil {
			return err
		}
		p.Name = "Shears"
		if err := f.parts.Save(ctx, &p); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _, err := f.parts.FindByID(context.Background(), parts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Scissors", got.Name, "the rename rolled back with the scope")
}

type partSummary struct {
	Name  string
	Price int
}

func TestProject(t *testing.T) {
	f := setup(t)
	_, _ = f.seed(t)

	got, err := Project[partSummary](context.Background(), f.parts, []string{"Name", "Price"},
		query.Where(query.Gte("Price", 900)).OrderBy("Price", query.Asc))
	require.NoError(t, err)
	assert.Equal(t, []partSummary{{"Stapler", 900}, {"Scissors", 1500}}, got)

	_, err = Project[partSummary](context.Background(), f.parts, []string{"Supplier"}, query.All())
	assert.True(t, errors.Is(err, runtime.ErrMalformedQueryDescriptor))
}
