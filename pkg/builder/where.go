package builder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// WhereBuilder compiles predicate trees into SQL conditions. Arguments are
// collected in placeholder order, including those of nested sub-selects.
type WhereBuilder struct {
	dialect runtime.Dialect
	paths   query.PathResolver
	params  *params
}

// NewWhereBuilder creates a WhereBuilder with an empty argument list.
func NewWhereBuilder(dialect runtime.Dialect, paths query.PathResolver) *WhereBuilder {
	return newWhereBuilder(&params{dialect: dialect}, paths)
}

func newWhereBuilder(p *params, paths query.PathResolver) *WhereBuilder {
	return &WhereBuilder{dialect: p.dialect, paths: paths, params: p}
}

// Build compiles n against table into a "WHERE ..." clause. A nil node yields
// an empty clause.
func (w *WhereBuilder) Build(table *schema.TableMetadata, n query.Node) (string, []any, error) {
	if n == nil {
		return "", w.params.args, nil
	}
	cond, err := w.node(table, n)
	if err != nil {
		return "", nil, err
	}
	return "WHERE " + cond, w.params.args, nil
}

func (w *WhereBuilder) node(table *schema.TableMetadata, n query.Node) (string, error) {
	switch n := n.(type) {
	case *query.Logical:
		if n.Left == nil || n.Right == nil {
			return "", runtime.Malformed(table.Name, "", "%s with a missing operand", n.Op)
		}
		left, err := w.node(table, n.Left)
		if err != nil {
			return "", err
		}
		right, err := w.node(table, n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, n.Op, right), nil
	case *query.Comparison:
		path, err := w.paths.ResolvePath(table, n.Path)
		if err != nil {
			return "", runtime.Malformed(table.Name, n.Path, "%v", err)
		}
		return w.path(table, path, n)
	}
	return "", runtime.Malformed(table.Name, "", "unknown predicate node %T", n)
}

// path compiles c at one step of a resolved path. Relationship steps become
// sub-selects on the related table; an id comparison through an owning
// relationship is served by the foreign key column directly.
func (w *WhereBuilder) path(table *schema.TableMetadata, p *schema.Path, c *query.Comparison) (string, error) {
	if p.Relationship == nil {
		return w.compare(table, w.dialect.QuoteIdent(p.Column.Name), p.Column, c)
	}

	rel := p.Relationship
	fk := w.dialect.QuoteIdent(rel.ForeignKey)
	ref := w.dialect.QuoteIdent(rel.References)

	if p.Next == nil {
		if c.Op.IsNullCheck() {
			if rel.Owning {
				return w.compare(table, fk, table.Column(rel.ForeignKey), c)
			}
			// Present when some row of the owning table points back here.
			op := "IN"
			if c.Op == query.IsNull {
				op = "NOT IN"
			}
			return fmt.Sprintf("%s %s (SELECT %s FROM %s WHERE %s IS NOT NULL)",
				ref, op, fk, w.dialect.QuoteIdent(p.Target.Name), fk), nil
		}
		return "", runtime.Unsupported(table.Name, c.Path,
			"%s is a relationship; compare %s.%s or a nested attribute instead", rel.SourceField, rel.SourceField, rel.References)
	}

	next := p.Next
	if rel.Owning && next.Relationship == nil && next.Column.Name == rel.References {
		return w.compare(table, fk, table.Column(rel.ForeignKey), c)
	}

	inner, err := w.path(p.Target, next, c)
	if err != nil {
		return "", err
	}
	target := w.dialect.QuoteIdent(p.Target.Name)
	if rel.Owning {
		return fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s)", fk, ref, target, inner), nil
	}
	return fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s)", ref, fk, target, inner), nil
}

func (w *WhereBuilder) compare(table *schema.TableMetadata, col string, meta *schema.ColumnMetadata, c *query.Comparison) (string, error) {
	if len(c.Values) != c.Op.Arity() {
		return "", runtime.Malformed(table.Name, c.Path, "%s takes %d values, got %d", c.Op, c.Op.Arity(), len(c.Values))
	}

	switch c.Op {
	case query.Equal:
		if c.Values[0] == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + w.params.bind(c.Values[0]), nil
	case query.NotEqual:
		if c.Values[0] == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + w.params.bind(c.Values[0]), nil
	case query.IsNull:
		return col + " IS NULL", nil
	case query.IsNotNull:
		return col + " IS NOT NULL", nil
	case query.IsTrue:
		return col + " = " + w.params.bind(true), nil
	case query.IsFalse:
		return col + " = " + w.params.bind(false), nil
	case query.GreaterThan:
		return w.binary(table, col, ">", c)
	case query.GreaterThanEqual:
		return w.binary(table, col, ">=", c)
	case query.LessThan:
		return w.binary(table, col, "<", c)
	case query.LessThanEqual:
		return w.binary(table, col, "<=", c)
	case query.Between:
		if c.Values[0] == nil || c.Values[1] == nil {
			return "", runtime.Malformed(table.Name, c.Path, "%s bounds must not be nil", c.Op)
		}
		low := w.params.bind(c.Values[0])
		high := w.params.bind(c.Values[1])
		return fmt.Sprintf("(%s > %s AND %s < %s)", col, low, col, high), nil
	case query.BetweenInclusive:
		if c.Values[0] == nil || c.Values[1] == nil {
			return "", runtime.Malformed(table.Name, c.Path, "%s bounds must not be nil", c.Op)
		}
		low := w.params.bind(c.Values[0])
		high := w.params.bind(c.Values[1])
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, low, high), nil
	case query.StartingWith, query.EndingWith, query.Containing:
		return w.like(table, col, meta, c)
	case query.In, query.NotIn:
		return w.in(table, col, c)
	}
	return "", runtime.Malformed(table.Name, c.Path, "unknown operator %s", c.Op)
}

func (w *WhereBuilder) binary(table *schema.TableMetadata, col, op string, c *query.Comparison) (string, error) {
	if c.Values[0] == nil {
		return "", runtime.Malformed(table.Name, c.Path, "%s against nil", c.Op)
	}
	return col + " " + op + " " + w.params.bind(c.Values[0]), nil
}

// like matches the caller's text literally: wildcards in it are escaped and
// only the operator adds its own.
func (w *WhereBuilder) like(table *schema.TableMetadata, col string, meta *schema.ColumnMetadata, c *query.Comparison) (string, error) {
	s, ok := c.Values[0].(string)
	if !ok {
		return "", runtime.Malformed(table.Name, c.Path, "%s needs a string, got %T", c.Op, c.Values[0])
	}
	if meta != nil && indirect(meta.GoType).Kind() != reflect.String {
		return "", runtime.Malformed(table.Name, c.Path, "%s needs a text attribute", c.Op)
	}

	pattern := runtime.EscapeLike(s)
	switch c.Op {
	case query.StartingWith:
		pattern += "%"
	case query.EndingWith:
		pattern = "%" + pattern
	default:
		pattern = "%" + pattern + "%"
	}
	return fmt.Sprintf("%s LIKE %s %s", col, w.params.bind(pattern), w.dialect.LikeEscape()), nil
}

func (w *WhereBuilder) in(table *schema.TableMetadata, col string, c *query.Comparison) (string, error) {
	v := reflect.ValueOf(c.Values[0])
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return "", runtime.Malformed(table.Name, c.Path, "%s needs a slice, got %T", c.Op, c.Values[0])
	}
	if v.Len() == 0 {
		if c.Op == query.In {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}

	placeholders := make([]string, v.Len())
	for i := range placeholders {
		placeholders[i] = w.params.bind(v.Index(i).Interface())
	}
	op := "IN"
	if c.Op == query.NotIn {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
