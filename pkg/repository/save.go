package repository

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marshallshelly/pebble-catalog/pkg/builder"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

var timeType = reflect.TypeOf(time.Time{})

// Save inserts entity when its id is zero and updates it otherwise. The
// generated id and the audit timestamps are written back into entity only
// when the save succeeds.
//
// Owning relationship fields are persisted through their foreign key
// column. A key the caller changed since the entity was stored wins; when
// the key is unchanged a non-nil related entity supplies it, and a nil one
// leaves it alone. A related entity that disagrees with the written key is
// cleared on entity. Non-owning relationship fields are not persisted.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("%w: nil %s", runtime.ErrInvalidModel, r.table.Name)
	}
	pk := r.table.PrimaryKey
	if pk == nil {
		return runtime.ErrNoPrimaryKey
	}

	working := *entity
	v := reflect.ValueOf(&working).Elem()
	if err := r.checkRelated(v); err != nil {
		return err
	}

	err := r.db.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		if v.Field(pk.Position).IsZero() {
			return r.insert(ctx, q, v)
		}
		return r.update(ctx, q, v)
	})
	if err != nil {
		return err
	}
	*entity = working
	return nil
}

// checkRelated rejects related entities on owning relationships that have
// not been saved yet and logs the non-owning ones it will ignore.
func (r *Repository[T]) checkRelated(v reflect.Value) error {
	for i := range r.table.Relationships {
		rel := &r.table.Relationships[i]
		field := v.FieldByName(rel.SourceField)
		if field.IsNil() {
			continue
		}
		if !rel.Owning {
			r.logger.WithFields(logrus.Fields{
				"relationship": rel.SourceField,
				"kind":         rel.Type,
			}).Debug("ignoring non-owning relationship on save")
			continue
		}

		target, ref, err := r.relatedKey(rel, field)
		if err != nil {
			return err
		}
		if keyOf(ref) == nil {
			return &runtime.ValidationError{
				Entity:  r.table.Name,
				Field:   rel.SourceField,
				Message: fmt.Sprintf("related %s has no %s; save it first", target.Name, rel.References),
			}
		}
	}
	return nil
}

// syncForeignKeys reconciles each owning relationship with its foreign key
// column. prev is the stored row, or the zero Value on insert.
func (r *Repository[T]) syncForeignKeys(v, prev reflect.Value) error {
	for i := range r.table.Relationships {
		rel := &r.table.Relationships[i]
		field := v.FieldByName(rel.SourceField)
		if !rel.Owning || field.IsNil() {
			continue
		}
		fk := r.table.Column(rel.ForeignKey)
		key := v.Field(fk.Position)
		var stored any
		if prev.IsValid() {
			stored = keyOf(prev.Field(fk.Position))
		}
		_, ref, err := r.relatedKey(rel, field)
		if err != nil {
			return err
		}

		if keyOf(key) != stored {
			if keyOf(ref) != keyOf(key) {
				r.logger.WithFields(logrus.Fields{
					"relationship": rel.SourceField,
					"key":          keyOf(key),
				}).Debug("foreign key overrides related entity")
				field.Set(reflect.Zero(field.Type()))
			}
			continue
		}
		if err := assign(key, ref); err != nil {
			return fmt.Errorf("%s.%s: %w", r.table.Name, fk.Name, err)
		}
	}
	return nil
}

// relatedKey returns the target table of rel and the referenced key of the
// related entity held in field.
func (r *Repository[T]) relatedKey(rel *schema.RelationshipMetadata, field reflect.Value) (*schema.TableMetadata, reflect.Value, error) {
	target, err := r.registry.Lookup(rel.TargetType)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	ref := target.Column(rel.References)
	return target, field.Elem().Field(ref.Position), nil
}

// keyOf normalizes a key for comparison: nil when unset, int64 for any
// integer width.
func keyOf(v reflect.Value) any {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.IsZero() {
		return nil
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	}
	return v.Interface()
}

func (r *Repository[T]) insert(ctx context.Context, q runtime.Querier, v reflect.Value) error {
	if err := r.syncForeignKeys(v, reflect.Value{}); err != nil {
		return err
	}
	now := runtime.Now(ctx)
	r.setAudit(v, schema.AuditCreated, now)
	r.setAudit(v, schema.AuditUpdated, now)

	stmt, returning, err := r.builder(q).Insert(v.Addr().Interface())
	if err != nil {
		return err
	}
	pk := v.Field(r.table.PrimaryKey.Position)

	if returning {
		if err := r.scanID(ctx, q, stmt, pk); err != nil {
			return err
		}
	} else {
		res, err := q.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return err
		}
		if pk.IsZero() && r.table.PrimaryKey.AutoIncrement {
			if err := assign(pk, reflect.ValueOf(res.LastInsertID)); err != nil {
				return err
			}
		}
	}
	r.logger.WithField("id", pk.Interface()).Debug("inserted")
	return nil
}

// scanID runs an INSERT ... RETURNING and scans the generated key into pk.
func (r *Repository[T]) scanID(ctx context.Context, q runtime.Querier, stmt builder.Statement, pk reflect.Value) error {
	rows, err := q.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("insert into %s returned no id", r.table.Name)
	}
	if err := rows.Scan(pk.Addr().Interface()); err != nil {
		return err
	}
	return rows.Err()
}

func (r *Repository[T]) update(ctx context.Context, q runtime.Querier, v reflect.Value) error {
	pk := r.table.PrimaryKey
	id := v.Field(pk.Position).Interface()

	b := r.builder(q)
	stmt, err := b.Select(query.Where(query.Eq(pk.GoField, id)).First(1), nil)
	if err != nil {
		return err
	}
	stored, err := r.scan(ctx, q, stmt, b.Columns())
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return fmt.Errorf("%w: %s with id %v", runtime.ErrNotFound, r.table.Name, id)
	}
	prev := reflect.ValueOf(&stored[0]).Elem()
	if err := r.syncForeignKeys(v, prev); err != nil {
		return err
	}

	if created := r.table.AuditColumn(schema.AuditCreated); created != nil {
		v.Field(created.Position).Set(prev.Field(created.Position))
	}
	if updated := r.table.AuditColumn(schema.AuditUpdated); updated != nil {
		now := runtime.Now(ctx)
		// Two saves within the clock's resolution still move updatedAt forward.
		if last, ok := timeValue(prev.Field(updated.Position)); ok && !now.After(last) {
			now = last.Add(time.Microsecond)
		}
		r.setAudit(v, schema.AuditUpdated, now)
	}

	upd, err := b.Update(v.Addr().Interface())
	if err != nil {
		return err
	}
	n, err := r.exec(ctx, q, upd)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s with id %v", runtime.ErrNotFound, r.table.Name, id)
	}
	r.logger.WithField("id", id).Debug("updated")
	return nil
}

func (r *Repository[T]) setAudit(v reflect.Value, kind schema.AuditKind, t time.Time) {
	col := r.table.AuditColumn(kind)
	if col == nil {
		return
	}
	f := v.Field(col.Position)
	switch {
	case f.Type() == timeType:
		f.Set(reflect.ValueOf(t))
	case f.Kind() == reflect.Ptr && f.Type().Elem() == timeType:
		f.Set(reflect.ValueOf(&t))
	}
}

func timeValue(f reflect.Value) (time.Time, bool) {
	if f.Kind() == reflect.Ptr {
		if f.IsNil() {
			return time.Time{}, false
		}
		f = f.Elem()
	}
	t, ok := f.Interface().(time.Time)
	return t, ok && !t.IsZero()
}

// assign stores src into dst, converting between integer widths and
// allocating when dst is a pointer.
func assign(dst, src reflect.Value) error {
	for src.Kind() == reflect.Ptr {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		src = src.Elem()
	}
	elem := dst.Type()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if !src.Type().ConvertibleTo(elem) {
		return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
	}
	converted := src.Convert(elem)
	if dst.Kind() == reflect.Ptr {
		p := reflect.New(elem)
		p.Elem().Set(converted)
		dst.Set(p)
		return nil
	}
	dst.Set(converted)
	return nil
}
