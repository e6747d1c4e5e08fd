// Package resolver attaches related entities to loaded rows. Each declared
// relationship is resolved for a whole batch with a single IN lookup.
package resolver

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/pebble-catalog/pkg/builder"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/registry"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Resolver loads relationship targets.
type Resolver struct {
	registry *registry.Registry
	logger   logrus.FieldLogger
}

// New creates a Resolver over the models known to reg.
func New(reg *registry.Registry, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{registry: reg, logger: logger}
}

// Resolve fills the relationship fields of every element of entities, a
// slice of table's struct type or of pointers to it. fields restricts the
// relationships by Go field name; none means all of them. Targets are loaded
// without their own relationships.
//
// An owning relationship whose key matches no row fails with
// runtime.ErrDanglingReference; a non-owning one matched by more than one
// row fails with runtime.ErrRelationshipCardinalityViolation.
func (r *Resolver) Resolve(ctx context.Context, q runtime.Querier, table *schema.TableMetadata, entities any, fields ...string) error {
	items := reflect.ValueOf(entities)
	if items.Kind() == reflect.Ptr {
		items = items.Elem()
	}
	if items.Kind() != reflect.Slice {
		return fmt.Errorf("%w: resolve expects a slice, got %T", runtime.ErrInvalidModel, entities)
	}
	if items.Len() == 0 {
		return nil
	}

	rels, err := selectRelationships(table, fields)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		target, err := r.registry.Lookup(rel.TargetType)
		if err != nil {
			return fmt.Errorf("resolve %s.%s: %w", table.Name, rel.SourceField, err)
		}
		if rel.Owning {
			err = r.resolveOwning(ctx, q, table, target, rel, items)
		} else {
			err = r.resolveInverse(ctx, q, table, target, rel, items)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func selectRelationships(table *schema.TableMetadata, fields []string) ([]*schema.RelationshipMetadata, error) {
	if len(fields) == 0 {
		rels := make([]*schema.RelationshipMetadata, len(table.Relationships))
		for i := range table.Relationships {
			rels[i] = &table.Relationships[i]
		}
		return rels, nil
	}
	rels := make([]*schema.RelationshipMetadata, 0, len(fields))
	for _, f := range fields {
		rel := table.Relationship(f)
		if rel == nil {
			return nil, fmt.Errorf("%w: %s has no relationship %q", runtime.ErrInvalidModel, table.Name, f)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// resolveOwning looks up the targets referenced by each row's foreign key.
func (r *Resolver) resolveOwning(ctx context.Context, q runtime.Querier, table, target *schema.TableMetadata, rel *schema.RelationshipMetadata, items reflect.Value) error {
	fkField := table.Column(rel.ForeignKey).GoField
	refCol := target.Column(rel.References)

	var keys []any
	seen := make(map[any]bool)
	for i := 0; i < items.Len(); i++ {
		k := builder.Key(structOf(items.Index(i)).FieldByName(fkField).Interface())
		if k != nil && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	found := make(map[any]reflect.Value, len(keys))
	if len(keys) > 0 {
		rows, err := r.lookup(ctx, q, target, refCol.Name, keys)
		if err != nil {
			return err
		}
		for _, row := range rows {
			found[builder.Key(row.Elem().FieldByName(refCol.GoField).Interface())] = row
		}
	}
	r.log(table, rel, len(keys), len(found))

	for i := 0; i < items.Len(); i++ {
		item := structOf(items.Index(i))
		dest := item.FieldByName(rel.SourceField)
		k := builder.Key(item.FieldByName(fkField).Interface())
		if k == nil {
			dest.Set(reflect.Zero(dest.Type()))
			continue
		}
		row, ok := found[k]
		if !ok {
			return &runtime.ReferenceError{
				Entity:       table.Name,
				ID:           primaryKey(table, item),
				Relationship: rel.SourceField,
				Target:       target.Name,
				Key:          k,
				Err:          runtime.ErrDanglingReference,
			}
		}
		dest.Set(clone(row))
	}
	return nil
}

// resolveInverse finds, for each row, the single target row whose foreign
// key points back at it.
func (r *Resolver) resolveInverse(ctx context.Context, q runtime.Querier, table, target *schema.TableMetadata, rel *schema.RelationshipMetadata, items reflect.Value) error {
	refField := table.Column(rel.References).GoField
	fkCol := target.Column(rel.ForeignKey)

	var keys []any
	seen := make(map[any]bool)
	for i := 0; i < items.Len(); i++ {
		k := builder.Key(structOf(items.Index(i)).FieldByName(refField).Interface())
		if k != nil && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	owners := make(map[any][]reflect.Value, len(keys))
	if len(keys) > 0 {
		rows, err := r.lookup(ctx, q, target, fkCol.Name, keys)
		if err != nil {
			return err
		}
		for _, row := range rows {
			k := builder.Key(row.Elem().FieldByName(fkCol.GoField).Interface())
			owners[k] = append(owners[k], row)
		}
	}
	r.log(table, rel, len(keys), len(owners))

	for i := 0; i < items.Len(); i++ {
		item := structOf(items.Index(i))
		dest := item.FieldByName(rel.SourceField)
		matches := owners[builder.Key(item.FieldByName(refField).Interface())]
		switch len(matches) {
		case 0:
			dest.Set(reflect.Zero(dest.Type()))
		case 1:
			dest.Set(clone(matches[0]))
		default:
			return &runtime.ReferenceError{
				Entity:       table.Name,
				ID:           primaryKey(table, item),
				Relationship: rel.SourceField,
				Target:       target.Name,
				Matches:      len(matches),
				Err:          runtime.ErrRelationshipCardinalityViolation,
			}
		}
	}
	return nil
}

// lookup loads every target row whose column matches one of keys. Rows are
// returned as pointers to new target structs.
func (r *Resolver) lookup(ctx context.Context, q runtime.Querier, target *schema.TableMetadata, column string, keys []any) ([]reflect.Value, error) {
	b := builder.New(target, q.Dialect(), r.registry)
	stmt, err := b.Select(query.Where(query.OneOf(column, keys...)), nil)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reflect.Value
	cols := b.Columns()
	for rows.Next() {
		row := reflect.New(target.GoType)
		if err := builder.ScanRow(rows, row.Interface(), cols); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (r *Resolver) log(table *schema.TableMetadata, rel *schema.RelationshipMetadata, keys, matched int) {
	r.logger.WithFields(logrus.Fields{
		"entity":       table.Name,
		"relationship": rel.SourceField,
		"kind":         rel.Type,
		"keys":         keys,
		"matched":      matched,
	}).Debug("resolved relationship")
}

// structOf dereferences a slice element down to its struct value.
func structOf(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

// clone returns a fresh pointer holding a copy of row's struct so that rows
// sharing a target do not alias each other.
func clone(row reflect.Value) reflect.Value {
	cp := reflect.New(row.Elem().Type())
	cp.Elem().Set(row.Elem())
	return cp
}

func primaryKey(table *schema.TableMetadata, item reflect.Value) any {
	if table.PrimaryKey == nil {
		return nil
	}
	return item.FieldByName(table.PrimaryKey.GoField).Interface()
}

// Describe renders the relationships of table for diagnostics, one per line.
func Describe(table *schema.TableMetadata) string {
	var b strings.Builder
	for _, rel := range table.Relationships {
		owner := "inverse of " + rel.TargetTable + "." + rel.ForeignKey
		if rel.Owning {
			owner = "via " + table.Name + "." + rel.ForeignKey
		}
		fmt.Fprintf(&b, "%s: %s %s (%s, %s)\n", rel.SourceField, rel.Type, rel.TargetTable, rel.Cardinality(), owner)
	}
	return b.String()
}
