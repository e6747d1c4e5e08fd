package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// Action is what a derived method does with the rows it selects.
type Action int

const (
	ActionFind Action = iota
	ActionCount
	ActionExists
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCount:
		return "count"
	case ActionExists:
		return "exists"
	case ActionDelete:
		return "delete"
	}
	return "find"
}

// Method is a repository method name compiled into a descriptor template.
// Parse it once, then Bind it to arguments per call.
type Method struct {
	Name   string
	Action Action
	Limit  int

	predicate Node
	sort      []Order
	params    int
}

// slot marks the position of a bound argument inside a template comparison.
type slot int

var (
	subjectPattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(.*?)By(.*)$`)
	limitPattern   = regexp.MustCompile(`(First|Top)(\d*)`)
)

type keyword struct {
	suffix string
	op     Operator
}

// keywords is sorted longest first so that "IsNotNull" wins over "NotNull".
var keywords = func() []keyword {
	kw := []keyword{
		{"IsNotNull", IsNotNull}, {"NotNull", IsNotNull},
		{"IsNull", IsNull}, {"Null", IsNull},
		{"IsTrue", IsTrue}, {"True", IsTrue},
		{"IsFalse", IsFalse}, {"False", IsFalse},
		{"IsGreaterThanEqual", GreaterThanEqual}, {"GreaterThanEqual", GreaterThanEqual},
		{"IsGreaterThan", GreaterThan}, {"GreaterThan", GreaterThan},
		{"IsLessThanEqual", LessThanEqual}, {"LessThanEqual", LessThanEqual},
		{"IsLessThan", LessThan}, {"LessThan", LessThan},
		{"IsBetweenInclusive", BetweenInclusive}, {"BetweenInclusive", BetweenInclusive},
		{"IsBetween", Between}, {"Between", Between},
		{"IsStartingWith", StartingWith}, {"StartingWith", StartingWith}, {"StartsWith", StartingWith},
		{"IsEndingWith", EndingWith}, {"EndingWith", EndingWith}, {"EndsWith", EndingWith},
		{"IsContaining", Containing}, {"Containing", Containing}, {"Contains", Containing},
		{"IsNotIn", NotIn}, {"NotIn", NotIn}, {"IsIn", In}, {"In", In},
		{"IsNot", NotEqual}, {"Not", NotEqual},
		{"Equals", Equal}, {"Is", Equal},
	}
	sort.SliceStable(kw, func(i, j int) bool { return len(kw[i].suffix) > len(kw[j].suffix) })
	return kw
}()

// ParseMethod compiles a method name such as
// "findFirst5ByNameContainingOrProviderNameOrderByPriceAscStockDesc".
//
// Or binds looser than And. A property may traverse relationships either
// with "_" ("Provider_Name") or by plain concatenation ("ProviderName"),
// which is resolved against the schema at validation time.
func ParseMethod(name string) (*Method, error) {
	m := subjectPattern.FindStringSubmatch(name)
	if m == nil {
		return nil, malformedMethod(name, "expected <find|count|exists|delete>...By...")
	}

	method := &Method{Name: name}
	switch m[1] {
	case "count":
		method.Action = ActionCount
	case "exists":
		method.Action = ActionExists
	case "delete", "remove":
		method.Action = ActionDelete
	}

	if lm := limitPattern.FindStringSubmatch(m[2]); lm != nil {
		method.Limit = 1
		if lm[2] != "" {
			n, err := strconv.Atoi(lm[2])
			if err != nil || n <= 0 {
				return nil, malformedMethod(name, "invalid limit %q", lm[2])
			}
			method.Limit = n
		}
	}

	criteria, ordering := m[3], ""
	if idx := strings.Index(criteria, "OrderBy"); idx >= 0 {
		criteria, ordering = criteria[:idx], criteria[idx+len("OrderBy"):]
		if ordering == "" {
			return nil, malformedMethod(name, "OrderBy without property")
		}
	}

	if criteria != "" {
		var ors []Node
		for _, orPart := range splitConnector(criteria, "Or") {
			var ands []Node
			for _, part := range splitConnector(orPart, "And") {
				c, err := parsePart(part, &method.params)
				if err != nil {
					return nil, malformedMethod(name, "%v", err)
				}
				ands = append(ands, c)
			}
			ors = append(ors, And(ands...))
		}
		method.predicate = Or(ors...)
	}

	if ordering != "" {
		orders, err := parseOrdering(ordering)
		if err != nil {
			return nil, malformedMethod(name, "%v", err)
		}
		method.sort = orders
	}

	if method.predicate == nil && len(method.sort) == 0 {
		return nil, malformedMethod(name, "no criteria after By")
	}
	return method, nil
}

// MustParseMethod is like ParseMethod but panics on error. It is meant for
// package-level method tables.
func MustParseMethod(name string) *Method {
	m, err := ParseMethod(name)
	if err != nil {
		panic(err)
	}
	return m
}

// Params returns the number of arguments Bind expects.
func (m *Method) Params() int {
	return m.params
}

// Bind substitutes args into the template and returns the descriptor.
func (m *Method) Bind(args ...any) (Descriptor, error) {
	if len(args) != m.params {
		return Descriptor{}, malformedMethod(m.Name, "expects %d arguments, got %d", m.params, len(args))
	}
	return Descriptor{
		Predicate: bind(m.predicate, args),
		Sort:      append([]Order(nil), m.sort...),
		Limit:     m.Limit,
	}, nil
}

// Template returns the unbound descriptor, for validation and display.
func (m *Method) Template() Descriptor {
	return Descriptor{Predicate: m.predicate, Sort: m.sort, Limit: m.Limit}
}

func bind(n Node, args []any) Node {
	switch n := n.(type) {
	case *Logical:
		return &Logical{Op: n.Op, Left: bind(n.Left, args), Right: bind(n.Right, args)}
	case *Comparison:
		values := make([]any, len(n.Values))
		for i, v := range n.Values {
			if s, ok := v.(slot); ok {
				values[i] = args[s]
			} else {
				values[i] = v
			}
		}
		return &Comparison{Path: n.Path, Op: n.Op, Values: values}
	}
	return nil
}

func parsePart(part string, params *int) (*Comparison, error) {
	if part == "" {
		return nil, fmt.Errorf("empty criterion")
	}
	op, property := Equal, part
	for _, kw := range keywords {
		if strings.HasSuffix(part, kw.suffix) && len(part) > len(kw.suffix) {
			op, property = kw.op, strings.TrimSuffix(part, kw.suffix)
			break
		}
	}

	c := &Comparison{Path: propertyPath(property), Op: op}
	for i := 0; i < op.Arity(); i++ {
		c.Values = append(c.Values, slot(*params))
		*params++
	}
	return c, nil
}

func parseOrdering(s string) ([]Order, error) {
	var orders []Order
	for s != "" {
		idx, dir, width := nextDirection(s)
		if idx < 0 {
			// A trailing property without direction sorts ascending.
			orders = append(orders, Order{Path: propertyPath(s), Direction: Asc})
			break
		}
		if idx == 0 {
			return nil, fmt.Errorf("direction without property in OrderBy")
		}
		orders = append(orders, Order{Path: propertyPath(s[:idx]), Direction: dir})
		s = s[idx+width:]
	}
	return orders, nil
}

// nextDirection finds the first "Asc" or "Desc" that ends a word.
func nextDirection(s string) (int, Direction, int) {
	for i := 1; i < len(s); i++ {
		for _, d := range []struct {
			token string
			dir   Direction
		}{{"Desc", Desc}, {"Asc", Asc}} {
			if !strings.HasPrefix(s[i:], d.token) {
				continue
			}
			end := i + len(d.token)
			if end == len(s) || isUpper(s[end]) {
				return i, d.dir, len(d.token)
			}
		}
	}
	return -1, "", 0
}

// splitConnector splits s at "And"/"Or" tokens that sit between two words.
func splitConnector(s, token string) []string {
	var parts []string
	start := 0
	for i := 1; i+len(token) < len(s); i++ {
		if strings.HasPrefix(s[i:], token) && isUpper(s[i+len(token)]) {
			parts = append(parts, s[start:i])
			start = i + len(token)
			i = start
		}
	}
	return append(parts, s[start:])
}

func propertyPath(p string) string {
	return strings.ReplaceAll(p, "_", ".")
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }

func malformedMethod(name, format string, args ...any) error {
	return runtime.Malformed("", name, format, args...)
}
