package query

import (
	"math"
	"reflect"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// PathResolver resolves attribute paths against an entity schema.
// *registry.Registry implements it.
type PathResolver interface {
	ResolvePath(table *schema.TableMetadata, path string) (*schema.Path, error)
}

// PageRequest selects one window of a result: rows
// [Index*Size, Index*Size+Size) after ordering by the descriptor's sort
// followed by Sort.
type PageRequest struct {
	Index int
	Size  int
	Sort  []Order
}

// PageOf builds a PageRequest.
func PageOf(index, size int, sort ...Order) PageRequest {
	return PageRequest{Index: index, Size: size, Sort: sort}
}

// Offset returns the number of rows skipped before the window.
func (p PageRequest) Offset() int {
	return p.Index * p.Size
}

// Validate checks d against table: every path must resolve, every
// comparison must carry the values its operator needs, and the limit must
// not be negative.
func Validate(d Descriptor, table *schema.TableMetadata, r PathResolver) error {
	if d.Limit < 0 {
		return runtime.Malformed(table.Name, "", "negative limit %d", d.Limit)
	}
	if err := validateNode(d.Predicate, table, r, false); err != nil {
		return err
	}
	return validateOrders(d.Sort, table, r)
}

// ValidateTemplate checks an unbound method template against table.
func ValidateTemplate(m *Method, table *schema.TableMetadata, r PathResolver) error {
	if err := validateNode(m.predicate, table, r, true); err != nil {
		return err
	}
	return validateOrders(m.sort, table, r)
}

// ValidatePage checks the paging window.
func ValidatePage(p PageRequest, table *schema.TableMetadata, r PathResolver) error {
	if p.Index < 0 {
		return runtime.Malformed(table.Name, "", "page index %d is negative", p.Index)
	}
	if p.Size <= 0 {
		return runtime.Malformed(table.Name, "", "page size %d must be positive", p.Size)
	}
	if p.Index > (math.MaxInt-p.Size)/p.Size {
		return runtime.Malformed(table.Name, "", "page %d of size %d is out of range", p.Index, p.Size)
	}
	return validateOrders(p.Sort, table, r)
}

func validateOrders(orders []Order, table *schema.TableMetadata, r PathResolver) error {
	for _, o := range orders {
		if o.Direction != Asc && o.Direction != Desc {
			return runtime.Malformed(table.Name, o.Path, "unknown sort direction %q", o.Direction)
		}
		if _, err := r.ResolvePath(table, o.Path); err != nil {
			return runtime.Malformed(table.Name, o.Path, "%v", err)
		}
	}
	return nil
}

func validateNode(n Node, table *schema.TableMetadata, r PathResolver, template bool) error {
	switch n := n.(type) {
	case nil:
		return nil
	case *Logical:
		if n.Op != AndConnector && n.Op != OrConnector {
			return runtime.Malformed(table.Name, "", "unknown connector %q", n.Op)
		}
		if n.Left == nil || n.Right == nil {
			return runtime.Malformed(table.Name, "", "%s with a missing operand", n.Op)
		}
		if err := validateNode(n.Left, table, r, template); err != nil {
			return err
		}
		return validateNode(n.Right, table, r, template)
	case *Comparison:
		return validateComparison(n, table, r, template)
	}
	return runtime.Malformed(table.Name, "", "unknown predicate node %T", n)
}

func validateComparison(c *Comparison, table *schema.TableMetadata, r PathResolver, template bool) error {
	if _, ok := operatorNames[c.Op]; !ok {
		return runtime.Malformed(table.Name, c.Path, "unknown operator %d", int(c.Op))
	}
	path, err := r.ResolvePath(table, c.Path)
	if err != nil {
		return runtime.Malformed(table.Name, c.Path, "%v", err)
	}
	if len(c.Values) != c.Op.Arity() {
		return runtime.Malformed(table.Name, c.Path, "%s takes %d values, got %d", c.Op, c.Op.Arity(), len(c.Values))
	}

	term := path.Terminal()
	if term.Relationship != nil && !c.Op.IsNullCheck() {
		return runtime.Unsupported(table.Name, c.Path,
			"%s is a relationship; test it for null or compare one of its attributes", term.Relationship.SourceField)
	}
	if (c.Op == IsTrue || c.Op == IsFalse) && term.Column != nil && indirect(term.Column.GoType).Kind() != reflect.Bool {
		return runtime.Malformed(table.Name, c.Path, "%s needs a boolean attribute", c.Op)
	}
	if template {
		return nil
	}

	switch {
	case c.Op.IsPattern():
		if _, ok := c.Values[0].(string); !ok {
			return runtime.Malformed(table.Name, c.Path, "%s needs a string, got %T", c.Op, c.Values[0])
		}
	case c.Op == Between || c.Op == BetweenInclusive:
		if c.Values[0] == nil || c.Values[1] == nil {
			return runtime.Malformed(table.Name, c.Path, "%s bounds must not be nil", c.Op)
		}
	case c.Op == In || c.Op == NotIn:
		if v := reflect.ValueOf(c.Values[0]); v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return runtime.Malformed(table.Name, c.Path, "%s needs a slice, got %T", c.Op, c.Values[0])
		}
	case c.Op != Equal && c.Op != NotEqual && c.Op.Arity() == 1 && c.Values[0] == nil:
		return runtime.Malformed(table.Name, c.Path, "%s against nil", c.Op)
	}
	return nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
