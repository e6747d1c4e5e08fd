// Package builder compiles query descriptors into dialect-specific SQL for a
// single entity table.
package builder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Statement is a SQL string with its arguments in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

func (s Statement) String() string {
	return s.SQL
}

// Builder builds statements against one table.
type Builder struct {
	table   *schema.TableMetadata
	dialect runtime.Dialect
	paths   query.PathResolver
}

// New creates a Builder. paths resolves attribute paths that cross
// relationships; *registry.Registry implements it.
func New(table *schema.TableMetadata, dialect runtime.Dialect, paths query.PathResolver) *Builder {
	return &Builder{table: table, dialect: dialect, paths: paths}
}

// Table returns the table the builder targets.
func (b *Builder) Table() *schema.TableMetadata {
	return b.table
}

// Dialect returns the dialect statements are built for.
func (b *Builder) Dialect() runtime.Dialect {
	return b.dialect
}

func (b *Builder) ident(name string) string {
	return b.dialect.QuoteIdent(name)
}

func (b *Builder) columnList(cols []*schema.ColumnMetadata) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = b.ident(c.Name)
	}
	return strings.Join(names, ", ")
}

// Columns returns the table columns in declaration order. Select statements
// list them explicitly in this order and ScanRow relies on it.
func (b *Builder) Columns() []*schema.ColumnMetadata {
	cols := make([]*schema.ColumnMetadata, len(b.table.Columns))
	for i := range b.table.Columns {
		cols[i] = &b.table.Columns[i]
	}
	return cols
}

// params collects arguments and renders their placeholders.
type params struct {
	dialect runtime.Dialect
	args    []any
}

func (p *params) bind(v any) string {
	p.args = append(p.args, v)
	return p.dialect.Placeholder(len(p.args))
}

// argValue converts a struct field into a driver argument. Nil pointers
// become untyped nil so every driver writes NULL.
func argValue(f reflect.Value) any {
	if f.Kind() == reflect.Ptr && f.IsNil() {
		return nil
	}
	return f.Interface()
}

func entityValue(entity reflect.Value, table *schema.TableMetadata) (reflect.Value, error) {
	for entity.Kind() == reflect.Ptr {
		if entity.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %s", runtime.ErrInvalidModel, table.Name)
		}
		entity = entity.Elem()
	}
	if entity.Type() != table.GoType {
		return reflect.Value{}, fmt.Errorf("%w: %s is not %s", runtime.ErrInvalidModel, entity.Type(), table.GoType)
	}
	return entity, nil
}
