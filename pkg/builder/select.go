package builder

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Select builds a SELECT of every table column matching d. When page is not
// nil it replaces d.Limit with the page window and appends the page's sort
// after d.Sort.
func (b *Builder) Select(d query.Descriptor, page *query.PageRequest) (Statement, error) {
	return b.selectColumns(b.Columns(), d, page)
}

// SelectColumns is like Select but lists only the named attributes, in the
// order given. It returns the selected columns for scanning.
func (b *Builder) SelectColumns(attrs []string, d query.Descriptor, page *query.PageRequest) (Statement, []*schema.ColumnMetadata, error) {
	if len(attrs) == 0 {
		return Statement{}, nil, runtime.Malformed(b.table.Name, "", "empty projection")
	}
	cols := make([]*schema.ColumnMetadata, len(attrs))
	for i, a := range attrs {
		col := b.table.Column(a)
		if col == nil {
			return Statement{}, nil, runtime.Malformed(b.table.Name, a, "%s has no column %q", b.table.Name, a)
		}
		cols[i] = col
	}
	stmt, err := b.selectColumns(cols, d, page)
	return stmt, cols, err
}

func (b *Builder) selectColumns(cols []*schema.ColumnMetadata, d query.Descriptor, page *query.PageRequest) (Statement, error) {
	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(b.columnList(cols))
	sql.WriteString(" FROM ")
	sql.WriteString(b.ident(b.table.Name))

	w := NewWhereBuilder(b.dialect, b.paths)
	where, args, err := w.Build(b.table, d.Predicate)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		sql.WriteString(" ")
		sql.WriteString(where)
	}

	orders := d.Sort
	if page != nil {
		orders = append(append([]query.Order(nil), d.Sort...), page.Sort...)
	}
	if len(orders) > 0 {
		parts := make([]string, len(orders))
		for i, o := range orders {
			expr, err := b.orderExpr(o)
			if err != nil {
				return Statement{}, err
			}
			parts[i] = expr
		}
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(parts, ", "))
	}

	switch {
	case page != nil:
		fmt.Fprintf(&sql, " LIMIT %d OFFSET %d", page.Size, page.Offset())
	case d.Limit > 0:
		fmt.Fprintf(&sql, " LIMIT %d", d.Limit)
	}

	return Statement{SQL: sql.String(), Args: args}, nil
}

// orderExpr renders one ordering directive. Attributes reached through a
// relationship are ordered by a correlated scalar sub-select.
func (b *Builder) orderExpr(o query.Order) (string, error) {
	if o.Direction != query.Asc && o.Direction != query.Desc {
		return "", runtime.Malformed(b.table.Name, o.Path, "unknown sort direction %q", o.Direction)
	}
	p, err := b.paths.ResolvePath(b.table, o.Path)
	if err != nil {
		return "", runtime.Malformed(b.table.Name, o.Path, "%v", err)
	}
	if p.Terminal().Column == nil {
		return "", runtime.Malformed(b.table.Name, o.Path, "cannot order by relationship %s", p)
	}
	if p.Relationship == nil {
		return b.ident(p.Column.Name) + " " + string(o.Direction), nil
	}
	return b.scalar(b.ident(b.table.Name), p, 1) + " " + string(o.Direction), nil
}

func (b *Builder) scalar(outer string, p *schema.Path, depth int) string {
	if p.Relationship == nil {
		return b.ident(p.Column.Name)
	}
	alias := fmt.Sprintf("r%d", depth)
	rel := p.Relationship

	var join string
	if rel.Owning {
		join = fmt.Sprintf("%s.%s = %s.%s", alias, b.ident(rel.References), outer, b.ident(rel.ForeignKey))
	} else {
		join = fmt.Sprintf("%s.%s = %s.%s", alias, b.ident(rel.ForeignKey), outer, b.ident(rel.References))
	}
	inner := b.scalar(alias, p.Next, depth+1)
	if p.Next.Relationship == nil {
		inner = alias + "." + inner
	}
	return fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s)", inner, b.ident(p.Target.Name), alias, join)
}

// Count builds SELECT COUNT(*) over the rows matching pred.
func (b *Builder) Count(pred query.Node) (Statement, error) {
	w := NewWhereBuilder(b.dialect, b.paths)
	where, args, err := w.Build(b.table, pred)
	if err != nil {
		return Statement{}, err
	}
	sql := "SELECT COUNT(*) FROM " + b.ident(b.table.Name)
	if where != "" {
		sql += " " + where
	}
	return Statement{SQL: sql, Args: args}, nil
}

// Exists builds a query returning at most one row when any row matches pred.
func (b *Builder) Exists(pred query.Node) (Statement, error) {
	w := NewWhereBuilder(b.dialect, b.paths)
	where, args, err := w.Build(b.table, pred)
	if err != nil {
		return Statement{}, err
	}
	sql := "SELECT 1 FROM " + b.ident(b.table.Name)
	if where != "" {
		sql += " " + where
	}
	return Statement{SQL: sql + " LIMIT 1", Args: args}, nil
}
