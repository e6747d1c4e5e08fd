// Package query defines typed query descriptors: a predicate tree over
// attribute paths, an ordering list and an optional row limit. Descriptors are
// built with the constructors in this package or parsed from repository method
// names such as "findFirst5ByNameContainingOrderByPriceAsc".
package query

import (
	"fmt"
	"strings"
)

// Operator is a comparison applied to an attribute path.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	IsNull
	IsNotNull
	IsTrue
	IsFalse
	GreaterThan
	GreaterThanEqual
	LessThan
	LessThanEqual
	// Between excludes both bounds.
	Between
	// BetweenInclusive includes both bounds.
	BetweenInclusive
	StartingWith
	EndingWith
	Containing
	In
	NotIn
)

var operatorNames = map[Operator]string{
	Equal:            "Equal",
	NotEqual:         "NotEqual",
	IsNull:           "IsNull",
	IsNotNull:        "IsNotNull",
	IsTrue:           "IsTrue",
	IsFalse:          "IsFalse",
	GreaterThan:      "GreaterThan",
	GreaterThanEqual: "GreaterThanEqual",
	LessThan:         "LessThan",
	LessThanEqual:    "LessThanEqual",
	Between:          "Between",
	BetweenInclusive: "BetweenInclusive",
	StartingWith:     "StartingWith",
	EndingWith:       "EndingWith",
	Containing:       "Containing",
	In:               "In",
	NotIn:            "NotIn",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Arity returns the number of values the operator consumes.
func (o Operator) Arity() int {
	switch o {
	case IsNull, IsNotNull, IsTrue, IsFalse:
		return 0
	case Between, BetweenInclusive:
		return 2
	}
	return 1
}

// IsNullCheck reports whether the operator only tests for presence.
func (o Operator) IsNullCheck() bool {
	return o == IsNull || o == IsNotNull
}

// IsPattern reports whether the operator is a substring match.
func (o Operator) IsPattern() bool {
	return o == StartingWith || o == EndingWith || o == Containing
}

// Node is an element of a predicate tree: a *Comparison or a *Logical.
type Node interface {
	String() string
	node()
}

// Comparison is a leaf of the predicate tree.
type Comparison struct {
	Path   string
	Op     Operator
	Values []any
}

func (*Comparison) node() {}

func (c *Comparison) String() string {
	if len(c.Values) == 0 {
		return fmt.Sprintf("%s %s", c.Path, c.Op)
	}
	return fmt.Sprintf("%s %s %v", c.Path, c.Op, c.Values)
}

// Connector joins two predicates.
type Connector string

const (
	AndConnector Connector = "AND"
	OrConnector  Connector = "OR"
)

// Logical is an inner node of the predicate tree.
type Logical struct {
	Op          Connector
	Left, Right Node
}

func (*Logical) node() {}

func (l *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// Direction of an ordering directive.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is one ordering directive.
type Order struct {
	Path      string
	Direction Direction
}

// Descriptor describes what to read: which rows, in what order, how many.
// The zero value matches every row in the store's natural order.
type Descriptor struct {
	Predicate Node
	Sort      []Order
	// Limit caps the number of rows; zero means unlimited. Pagination
	// supplied alongside a descriptor takes precedence over Limit.
	Limit int
}

// Where returns a descriptor filtered by the AND of preds.
func Where(preds ...Node) Descriptor {
	return Descriptor{Predicate: And(preds...)}
}

// All returns a descriptor matching every row.
func All() Descriptor {
	return Descriptor{}
}

// And narrows the descriptor with more predicates.
func (d Descriptor) And(preds ...Node) Descriptor {
	d.Predicate = And(append([]Node{d.Predicate}, preds...)...)
	return d
}

// OrderBy appends an ordering directive.
func (d Descriptor) OrderBy(path string, dir Direction) Descriptor {
	d.Sort = append(append([]Order(nil), d.Sort...), Order{Path: path, Direction: dir})
	return d
}

// First limits the result to n rows.
func (d Descriptor) First(n int) Descriptor {
	d.Limit = n
	return d
}

// Top is an alias of First.
func (d Descriptor) Top(n int) Descriptor {
	return d.First(n)
}

func (d Descriptor) String() string {
	var b strings.Builder
	if d.Predicate == nil {
		b.WriteString("all")
	} else {
		b.WriteString(d.Predicate.String())
	}
	for i, o := range d.Sort {
		if i == 0 {
			b.WriteString(" order by ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", o.Path, o.Direction)
	}
	if d.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", d.Limit)
	}
	return b.String()
}

// And folds preds into a left-deep AND tree. Nil nodes are skipped.
func And(preds ...Node) Node {
	return fold(AndConnector, preds)
}

// Or folds preds into a left-deep OR tree. Nil nodes are skipped.
func Or(preds ...Node) Node {
	return fold(OrConnector, preds)
}

func fold(op Connector, preds []Node) Node {
	var result Node
	for _, p := range preds {
		if p == nil {
			continue
		}
		if result == nil {
			result = p
			continue
		}
		result = &Logical{Op: op, Left: result, Right: p}
	}
	return result
}

// Compare builds a comparison leaf.
func Compare(path string, op Operator, values ...any) *Comparison {
	return &Comparison{Path: path, Op: op, Values: values}
}

// Eq matches path = value. A nil value matches NULL.
func Eq(path string, value any) *Comparison { return Compare(path, Equal, value) }

// Not matches path <> value. A nil value matches NOT NULL.
func Not(path string, value any) *Comparison { return Compare(path, NotEqual, value) }

// Null matches path IS NULL.
func Null(path string) *Comparison { return Compare(path, IsNull) }

// NotNull matches path IS NOT NULL.
func NotNull(path string) *Comparison { return Compare(path, IsNotNull) }

// True matches boolean path = true.
func True(path string) *Comparison { return Compare(path, IsTrue) }

// False matches boolean path = false.
func False(path string) *Comparison { return Compare(path, IsFalse) }

// Gt matches path > value.
func Gt(path string, value any) *Comparison { return Compare(path, GreaterThan, value) }

// Gte matches path >= value.
func Gte(path string, value any) *Comparison { return Compare(path, GreaterThanEqual, value) }

// Lt matches path < value.
func Lt(path string, value any) *Comparison { return Compare(path, LessThan, value) }

// Lte matches path <= value.
func Lte(path string, value any) *Comparison { return Compare(path, LessThanEqual, value) }

// Range matches low < path < high.
func Range(path string, low, high any) *Comparison { return Compare(path, Between, low, high) }

// RangeInclusive matches low <= path <= high.
func RangeInclusive(path string, low, high any) *Comparison {
	return Compare(path, BetweenInclusive, low, high)
}

// StartsWith matches values beginning with prefix, taken literally.
func StartsWith(path, prefix string) *Comparison { return Compare(path, StartingWith, prefix) }

// EndsWith matches values ending with suffix, taken literally.
func EndsWith(path, suffix string) *Comparison { return Compare(path, EndingWith, suffix) }

// Contains matches values containing s, taken literally.
func Contains(path, s string) *Comparison { return Compare(path, Containing, s) }

// OneOf matches path IN values.
func OneOf(path string, values ...any) *Comparison {
	return &Comparison{Path: path, Op: In, Values: []any{values}}
}

// NoneOf matches path NOT IN values.
func NoneOf(path string, values ...any) *Comparison {
	return &Comparison{Path: path, Op: NotIn, Values: []any{values}}
}
