// Package repository provides a typed, relationship-aware facade over one
// entity table. Every call runs as a single unit of work; calls made inside
// runtime.DB.Transaction join the caller's transaction.
package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/pebble-catalog/pkg/builder"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/registry"
	"github.com/marshallshelly/pebble-catalog/pkg/resolver"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Repository reads and writes entities of type T.
type Repository[T any] struct {
	db       *runtime.DB
	registry *registry.Registry
	table    *schema.TableMetadata
	resolver *resolver.Resolver
	logger   logrus.FieldLogger
	eager    []string

	mu      sync.RWMutex
	methods map[string]*query.Method
}

// Page is one window of a paged read.
type Page[T any] struct {
	Items []T
	Total int64
	Index int
	Size  int
}

// TotalPages returns the number of pages of Size needed for Total rows.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// New creates a repository for T, registering T and its related models.
func New[T any](db *runtime.DB, opts ...Option) (*Repository[T], error) {
	o := options{registry: registry.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	modelType := reflect.TypeOf(zero)
	if modelType == nil || modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: repository type must be a struct, got %T", runtime.ErrInvalidModel, zero)
	}
	table, err := o.registry.Lookup(modelType)
	if err != nil {
		return nil, err
	}

	eager, err := eagerFields(table, o.eager, o.lazy)
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = db.Logger()
	}
	logger = logger.WithField("entity", table.Name)

	return &Repository[T]{
		db:       db,
		registry: o.registry,
		table:    table,
		resolver: resolver.New(o.registry, logger),
		logger:   logger,
		eager:    eager,
		methods:  make(map[string]*query.Method),
	}, nil
}

func eagerFields(table *schema.TableMetadata, eager, lazy []string) ([]string, error) {
	for _, f := range append(append([]string(nil), eager...), lazy...) {
		if table.Relationship(f) == nil {
			return nil, fmt.Errorf("%w: %s has no relationship %q", runtime.ErrInvalidModel, table.Name, f)
		}
	}
	skip := make(map[string]bool, len(lazy))
	for _, f := range lazy {
		skip[strings.ToLower(f)] = true
	}

	var fields []string
	if len(eager) > 0 {
		for _, f := range eager {
			rel := table.Relationship(f)
			if !skip[strings.ToLower(rel.SourceField)] {
				fields = append(fields, rel.SourceField)
			}
		}
		return fields, nil
	}
	for _, rel := range table.Relationships {
		if !skip[strings.ToLower(rel.SourceField)] {
			fields = append(fields, rel.SourceField)
		}
	}
	return fields, nil
}

// Table returns the entity's table metadata.
func (r *Repository[T]) Table() *schema.TableMetadata {
	return r.table
}

// FindByID returns the entity with the given id. found is false when no
// row has that id.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (entity T, found bool, err error) {
	return r.FindOneBy(ctx, query.Where(query.Eq(r.table.PrimaryKey.GoField, id)))
}

// FindAll returns every entity in the store's natural order.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.FindBy(ctx, query.All())
}

// FindBy returns the entities matching d.
func (r *Repository[T]) FindBy(ctx context.Context, d query.Descriptor) ([]T, error) {
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return nil, err
	}
	var items []T
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		var err error
		items, err = r.load(ctx, q, d, nil)
		return err
	})
	return items, err
}

// FindOneBy returns the first entity matching d.
func (r *Repository[T]) FindOneBy(ctx context.Context, d query.Descriptor) (entity T, found bool, err error) {
	if d.Limit == 0 {
		d = d.First(1)
	}
	items, err := r.FindBy(ctx, d)
	if err != nil || len(items) == 0 {
		return entity, false, err
	}
	return items[0], true, nil
}

// FindPage returns one page of the entities matching d together with the
// total number of matches. The page window replaces d.Limit.
func (r *Repository[T]) FindPage(ctx context.Context, d query.Descriptor, page query.PageRequest) (Page[T], error) {
	result := Page[T]{Index: page.Index, Size: page.Size}
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return result, err
	}
	if err := query.ValidatePage(page, r.table, r.registry); err != nil {
		return result, err
	}

	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		items, err := r.load(ctx, q, d, &page)
		if err != nil {
			return err
		}
		total, err := r.count(ctx, q, d.Predicate)
		if err != nil {
			return err
		}
		result.Items, result.Total = items, total
		return nil
	})
	return result, err
}

// CountBy returns the number of entities matching d. Ordering and limit
// are ignored.
func (r *Repository[T]) CountBy(ctx context.Context, d query.Descriptor) (int64, error) {
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return 0, err
	}
	var n int64
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		var err error
		n, err = r.count(ctx, q, d.Predicate)
		return err
	})
	return n, err
}

// ExistsBy reports whether any entity matches d.
func (r *Repository[T]) ExistsBy(ctx context.Context, d query.Descriptor) (bool, error) {
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return false, err
	}
	var exists bool
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		stmt, err := r.builder(q).Exists(d.Predicate)
		if err != nil {
			return err
		}
		rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		exists = rows.Next()
		return rows.Err()
	})
	return exists, err
}

// DeleteByID deletes the entity with the given id and returns the number of
// rows removed. Deleting a missing id returns 0.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (int64, error) {
	var n int64
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		stmt, err := r.builder(q).DeleteByID(id)
		if err != nil {
			return err
		}
		n, err = r.exec(ctx, q, stmt)
		return err
	})
	if err == nil {
		r.logger.WithFields(logrus.Fields{"id": id, "deleted": n}).Debug("delete by id")
	}
	return n, err
}

// DeleteBy deletes the entities matching d and returns the number of rows
// removed. d must carry a predicate and no limit.
func (r *Repository[T]) DeleteBy(ctx context.Context, d query.Descriptor) (int64, error) {
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return 0, err
	}
	if d.Limit > 0 {
		return 0, runtime.Malformed(r.table.Name, "", "limit is not supported on delete")
	}
	var n int64
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		stmt, err := r.builder(q).Delete(d.Predicate)
		if err != nil {
			return err
		}
		n, err = r.exec(ctx, q, stmt)
		return err
	})
	if err == nil {
		r.logger.WithFields(logrus.Fields{"where": d.String(), "deleted": n}).Debug("delete")
	}
	return n, err
}

// Resolve loads relationship fields of items in place. fields restricts the
// relationships; none means all of them, lazy ones included.
func (r *Repository[T]) Resolve(ctx context.Context, items []T, fields ...string) error {
	return r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		return r.resolver.Resolve(ctx, q, r.table, items, fields...)
	})
}

// Deferred returns a Lazy that resolves the relationships of a copy of
// entity on first Get.
func (r *Repository[T]) Deferred(entity T, fields ...string) *resolver.Lazy[T] {
	return resolver.Deferred(func(ctx context.Context) (T, error) {
		items := []T{entity}
		if err := r.Resolve(ctx, items, fields...); err != nil {
			var zero T
			return zero, err
		}
		return items[0], nil
	})
}

// Project reads the named attributes of the entities matching d into a
// slice of P. Fields of P are matched to columns by Go field name.
// Relationships are not resolved.
func Project[P, T any](ctx context.Context, r *Repository[T], attrs []string, d query.Descriptor) ([]P, error) {
	if err := query.Validate(d, r.table, r.registry); err != nil {
		return nil, err
	}
	var result []P
	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		stmt, cols, err := r.builder(q).SelectColumns(attrs, d, nil)
		if err != nil {
			return err
		}
		rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p P
			if err := builder.ScanRow(rows, &p, cols); err != nil {
				return err
			}
			result = append(result, p)
		}
		return rows.Err()
	})
	return result, err
}

func (r *Repository[T]) builder(q runtime.Querier) *builder.Builder {
	return builder.New(r.table, q.Dialect(), r.registry)
}

// load selects the rows for d and resolves the eager relationships.
func (r *Repository[T]) load(ctx context.Context, q runtime.Querier, d query.Descriptor, page *query.PageRequest) ([]T, error) {
	b := r.builder(q)
	stmt, err := b.Select(d, page)
	if err != nil {
		return nil, err
	}
	items, err := r.scan(ctx, q, stmt, b.Columns())
	if err != nil {
		return nil, err
	}
	if len(items) > 0 && len(r.eager) > 0 {
		if err := r.resolver.Resolve(ctx, q, r.table, items, r.eager...); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *Repository[T]) scan(ctx context.Context, q runtime.Querier, stmt builder.Statement, cols []*schema.ColumnMetadata) ([]T, error) {
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		var item T
		if err := builder.ScanRow(rows, &item, cols); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository[T]) count(ctx context.Context, q runtime.Querier, pred query.Node) (int64, error) {
	stmt, err := r.builder(q).Count(pred)
	if err != nil {
		return 0, err
	}
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (r *Repository[T]) exec(ctx context.Context, q runtime.Querier, stmt builder.Statement) (int64, error) {
	res, err := q.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
