package schema

import (
	"database/sql"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// TypeMapper maps Go types to portable SQL column types. Dialects translate
// the few types that differ (timestamps, auto-increment keys) at DDL time.
type TypeMapper struct {
	customMappings map[reflect.Type]string
}

// NewTypeMapper creates a new TypeMapper instance.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		customMappings: make(map[reflect.Type]string),
	}
}

// RegisterType registers a custom type mapping.
func (tm *TypeMapper) RegisterType(goType reflect.Type, sqlType string) {
	tm.customMappings[goType] = sqlType
}

// GoTypeToSQL maps a Go type to a column type. Returns "" for unsupported types.
func (tm *TypeMapper) GoTypeToSQL(t reflect.Type) string {
	if sqlType, ok := tm.customMappings[t]; ok {
		return sqlType
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t {
	case timeType, reflect.TypeOf(sql.NullTime{}):
		return "timestamp"
	case reflect.TypeOf(sql.NullString{}):
		return "text"
	case reflect.TypeOf(sql.NullInt64{}):
		return "bigint"
	case reflect.TypeOf(sql.NullBool{}):
		return "boolean"
	}

	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "smallint"
	case reflect.Int32, reflect.Int, reflect.Uint16:
		return "integer"
	case reflect.Int64, reflect.Uint32, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.String:
		return "text"
	}
	return ""
}

// IsNullable checks if a Go type is nullable.
func IsNullable(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return true
	}
	switch t {
	case reflect.TypeOf(sql.NullString{}),
		reflect.TypeOf(sql.NullInt64{}),
		reflect.TypeOf(sql.NullBool{}),
		reflect.TypeOf(sql.NullTime{}):
		return true
	}
	return false
}

// DefaultTypeMapper is the global type mapper instance.
var DefaultTypeMapper = NewTypeMapper()
