package builder

import (
	"reflect"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Update builds an UPDATE of every column of entity by primary key. The
// primary key and the createdAt audit column are never written.
func (b *Builder) Update(entity any) (Statement, error) {
	v, err := entityValue(reflect.ValueOf(entity), b.table)
	if err != nil {
		return Statement{}, err
	}
	pk := b.table.PrimaryKey
	if pk == nil {
		return Statement{}, runtime.ErrNoPrimaryKey
	}

	p := &params{dialect: b.dialect}
	var sets []string
	for i := range b.table.Columns {
		col := &b.table.Columns[i]
		if col.PrimaryKey || col.Audit == schema.AuditCreated {
			continue
		}
		sets = append(sets, b.ident(col.Name)+" = "+p.bind(argValue(v.Field(col.Position))))
	}
	if len(sets) == 0 {
		return Statement{}, &runtime.ValidationError{Entity: b.table.Name, Field: "*", Message: "no columns to update"}
	}

	var sql strings.Builder
	sql.WriteString("UPDATE ")
	sql.WriteString(b.ident(b.table.Name))
	sql.WriteString(" SET ")
	sql.WriteString(strings.Join(sets, ", "))
	sql.WriteString(" WHERE ")
	sql.WriteString(b.ident(pk.Name))
	sql.WriteString(" = ")
	sql.WriteString(p.bind(argValue(v.Field(pk.Position))))

	return Statement{SQL: sql.String(), Args: p.args}, nil
}
