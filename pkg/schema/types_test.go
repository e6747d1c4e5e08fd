package schema

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoTypeToSQL(t *testing.T) {
	tm := NewTypeMapper()
	tests := []struct {
		value any
		want  string
	}{
		{int64(0), "bigint"},
		{0, "integer"},
		{int16(0), "smallint"},
		{"", "text"},
		{true, "boolean"},
		{0.5, "double precision"},
		{time.Time{}, "timestamp"},
		{sql.NullString{}, "text"},
		{new(int64), "bigint"},
		{struct{}{}, ""},
	}
	for _, tt := range tests {
		typ := reflect.TypeOf(tt.value)
		assert.Equal(t, tt.want, tm.GoTypeToSQL(typ), typ.String())
	}

	type cents int64
	tm.RegisterType(reflect.TypeOf(cents(0)), "numeric(12,2)")
	assert.Equal(t, "numeric(12,2)", tm.GoTypeToSQL(reflect.TypeOf(cents(0))))
}

func TestIsNullable(t *testing.T) {
	assert.True(t, IsNullable(reflect.TypeOf(new(string))))
	assert.True(t, IsNullable(reflect.TypeOf(sql.NullTime{})))
	assert.False(t, IsNullable(reflect.TypeOf("")))
}
