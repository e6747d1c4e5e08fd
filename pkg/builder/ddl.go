package builder

import (
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// CreateTable renders a CREATE TABLE IF NOT EXISTS statement for table.
// Relationship columns are plain columns: no foreign key or unique
// constraints are declared, so broken references surface when related rows
// are resolved rather than when they are written.
func CreateTable(table *schema.TableMetadata, dialect runtime.Dialect) string {
	defs := make([]string, 0, len(table.Columns))
	for i := range table.Columns {
		col := &table.Columns[i]
		name := dialect.QuoteIdent(col.Name)
		switch {
		case col.PrimaryKey && col.AutoIncrement:
			defs = append(defs, dialect.AutoIncrementKey(name, col.SQLType))
		case col.PrimaryKey:
			defs = append(defs, name+" "+dialect.ColumnType(col.SQLType)+" PRIMARY KEY")
		case col.Nullable:
			defs = append(defs, name+" "+dialect.ColumnType(col.SQLType))
		default:
			defs = append(defs, name+" "+dialect.ColumnType(col.SQLType)+" NOT NULL")
		}
	}
	return "CREATE TABLE IF NOT EXISTS " + dialect.QuoteIdent(table.Name) + " (\n  " +
		strings.Join(defs, ",\n  ") + "\n)"
}

// DropTable renders a DROP TABLE IF EXISTS statement for table.
func DropTable(table *schema.TableMetadata, dialect runtime.Dialect) string {
	return "DROP TABLE IF EXISTS " + dialect.QuoteIdent(table.Name)
}
