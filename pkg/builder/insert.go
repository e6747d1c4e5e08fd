package builder

import (
	"reflect"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// Insert builds an INSERT of entity. An auto-increment primary key holding
// its zero value is left to the store; on dialects with RETURNING the
// statement returns it, otherwise callers read Result.LastInsertID.
func (b *Builder) Insert(entity any) (Statement, bool, error) {
	v, err := entityValue(reflect.ValueOf(entity), b.table)
	if err != nil {
		return Statement{}, false, err
	}

	p := &params{dialect: b.dialect}
	var cols, placeholders []string
	generated := false
	for i := range b.table.Columns {
		col := &b.table.Columns[i]
		f := v.Field(col.Position)
		if col.PrimaryKey && col.AutoIncrement && f.IsZero() {
			generated = true
			continue
		}
		cols = append(cols, b.ident(col.Name))
		placeholders = append(placeholders, p.bind(argValue(f)))
	}
	if len(cols) == 0 {
		return Statement{}, false, &runtime.ValidationError{Entity: b.table.Name, Field: "*", Message: "no columns to insert"}
	}

	var sql strings.Builder
	sql.WriteString("INSERT INTO ")
	sql.WriteString(b.ident(b.table.Name))
	sql.WriteString(" (")
	sql.WriteString(strings.Join(cols, ", "))
	sql.WriteString(") VALUES (")
	sql.WriteString(strings.Join(placeholders, ", "))
	sql.WriteString(")")

	returning := generated && b.dialect.UseReturning()
	if returning {
		sql.WriteString(" RETURNING ")
		sql.WriteString(b.ident(b.table.PrimaryKey.Name))
	}
	return Statement{SQL: sql.String(), Args: p.args}, returning, nil
}
