package repository

import (
	"context"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// Derive parses a method name such as "findByNameContaining" and validates
// it against the entity schema. Results are cached per name, so callers can
// derive on every call or once up front.
func (r *Repository[T]) Derive(name string) (*query.Method, error) {
	r.mu.RLock()
	m, ok := r.methods[name]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := query.ParseMethod(name)
	if err != nil {
		return nil, err
	}
	if err := query.ValidateTemplate(m, r.table, r.registry); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.methods[name] = m
	r.mu.Unlock()
	return m, nil
}

// MustDerive is like Derive but panics on error.
func (r *Repository[T]) MustDerive(name string) *query.Method {
	m, err := r.Derive(name)
	if err != nil {
		panic(err)
	}
	return m
}

func (r *Repository[T]) bind(name string, want query.Action, args []any) (query.Descriptor, error) {
	m, err := r.Derive(name)
	if err != nil {
		return query.Descriptor{}, err
	}
	if m.Action != want {
		return query.Descriptor{}, runtime.Malformed(r.table.Name, "", "%s is a %s method, not %s", name, m.Action, want)
	}
	return m.Bind(args...)
}

// Find runs a derived find method.
func (r *Repository[T]) Find(ctx context.Context, name string, args ...any) ([]T, error) {
	d, err := r.bind(name, query.ActionFind, args)
	if err != nil {
		return nil, err
	}
	return r.FindBy(ctx, d)
}

// FindOne runs a derived find method and returns its first result.
func (r *Repository[T]) FindOne(ctx context.Context, name string, args ...any) (entity T, found bool, err error) {
	d, err := r.bind(name, query.ActionFind, args)
	if err != nil {
		return entity, false, err
	}
	return r.FindOneBy(ctx, d)
}

// Page runs a derived find method one page at a time.
func (r *Repository[T]) Page(ctx context.Context, name string, page query.PageRequest, args ...any) (Page[T], error) {
	d, err := r.bind(name, query.ActionFind, args)
	if err != nil {
		return Page[T]{Index: page.Index, Size: page.Size}, err
	}
	return r.FindPage(ctx, d, page)
}

// Count runs a derived count method.
func (r *Repository[T]) Count(ctx context.Context, name string, args ...any) (int64, error) {
	d, err := r.bind(name, query.ActionCount, args)
	if err != nil {
		return 0, err
	}
	return r.CountBy(ctx, d)
}

// Exists runs a derived exists method.
func (r *Repository[T]) Exists(ctx context.Context, name string, args ...any) (bool, error) {
	d, err := r.bind(name, query.ActionExists, args)
	if err != nil {
		return false, err
	}
	return r.ExistsBy(ctx, d)
}

// Delete runs a derived delete method and returns the number of rows
// removed.
func (r *Repository[T]) Delete(ctx context.Context, name string, args ...any) (int64, error) {
	d, err := r.bind(name, query.ActionDelete, args)
	if err != nil {
		return 0, err
	}
	return r.DeleteBy(ctx, d)
}
