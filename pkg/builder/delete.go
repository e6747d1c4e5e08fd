package builder

import (
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// Delete builds a DELETE of the rows matching pred. A nil predicate is
// rejected; deleting a whole table is not something a descriptor expresses.
func (b *Builder) Delete(pred query.Node) (Statement, error) {
	if pred == nil {
		return Statement{}, runtime.Malformed(b.table.Name, "", "delete without a predicate")
	}
	w := NewWhereBuilder(b.dialect, b.paths)
	where, args, err := w.Build(b.table, pred)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DELETE FROM " + b.ident(b.table.Name) + " " + where, Args: args}, nil
}

// DeleteByID builds a DELETE of the row with the given primary key.
func (b *Builder) DeleteByID(id any) (Statement, error) {
	pk := b.table.PrimaryKey
	if pk == nil {
		return Statement{}, runtime.ErrNoPrimaryKey
	}
	p := &params{dialect: b.dialect}
	sql := "DELETE FROM " + b.ident(b.table.Name) + " WHERE " + b.ident(pk.Name) + " = " + p.bind(id)
	return Statement{SQL: sql, Args: p.args}, nil
}
