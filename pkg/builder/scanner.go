package builder

import (
	"fmt"
	"reflect"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// ScanRow scans the current row into dest, a pointer to struct. The row's
// columns must be cols, in order; each is stored into the dest field with
// the column's Go field name. Columns without a matching field are
// discarded, which lets projections scan into narrower structs.
func ScanRow(rows runtime.Rows, dest any, cols []*schema.ColumnMetadata) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct, got %T", dest)
	}
	v = v.Elem()

	targets := make([]any, len(cols))
	for i, col := range cols {
		f := v.FieldByName(col.GoField)
		if !f.IsValid() || !f.CanSet() {
			var discard any
			targets[i] = &discard
			continue
		}
		targets[i] = f.Addr().Interface()
	}
	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("failed to scan %s row: %w", v.Type().Name(), err)
	}
	return nil
}

// Key normalizes a key column value so that the same key read from
// different columns compares equal: pointers are dereferenced and signed
// and unsigned integers widened. Nil and nil pointers yield nil.
func Key(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.String:
		return rv.String()
	}
	return rv.Interface()
}
