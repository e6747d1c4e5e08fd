package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// Lookup returns the metadata for a related model type.
type Lookup func(reflect.Type) (*TableMetadata, error)

// Path is a resolved attribute path such as "name" or "provider.name".
// Each step is either a column on Table or a relationship into Target, in
// which case Next resolves the remainder of the path within Target.
type Path struct {
	Table        *TableMetadata
	Column       *ColumnMetadata
	Relationship *RelationshipMetadata
	Target       *TableMetadata
	Next         *Path
}

// Terminal returns the last step of the path.
func (p *Path) Terminal() *Path {
	for p.Next != nil {
		p = p.Next
	}
	return p
}

// Depth returns the number of relationship hops in the path.
func (p *Path) Depth() int {
	n := 0
	for step := p; step.Relationship != nil && step.Next != nil; step = step.Next {
		n++
	}
	return n
}

// String renders the path with Go field names, e.g. "Provider.Name".
func (p *Path) String() string {
	var parts []string
	for step := p; step != nil; step = step.Next {
		if step.Relationship != nil {
			parts = append(parts, step.Relationship.SourceField)
		} else {
			parts = append(parts, step.Column.GoField)
		}
	}
	return strings.Join(parts, ".")
}

// ResolvePath resolves a dotted attribute path against table. Segments match
// Go field names case-insensitively or column names exactly. A single
// camel-case segment such as "ProviderName" is split into a relationship
// traversal when no attribute carries the whole name.
func ResolvePath(table *TableMetadata, path string, lookup Lookup) (*Path, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty attribute path")
	}
	return resolveSegments(table, strings.Split(path, "."), lookup)
}

func resolveSegments(table *TableMetadata, segs []string, lookup Lookup) (*Path, error) {
	seg := segs[0]
	if seg == "" {
		return nil, fmt.Errorf("empty path segment on %s", table.Name)
	}

	if rel := table.Relationship(seg); rel != nil {
		return resolveRelationship(table, rel, segs[1:], lookup)
	}

	if col := table.Column(seg); col != nil {
		if len(segs) > 1 {
			return nil, fmt.Errorf("%s.%s is not a relationship", table.Name, seg)
		}
		return &Path{Table: table, Column: col}, nil
	}

	// Longest relationship prefix first: "ProductDetailDescription" tries
	// "ProductDetail" before "Product".
	bounds := camelBoundaries(seg)
	for i := len(bounds) - 1; i >= 0; i-- {
		head, tail := seg[:bounds[i]], seg[bounds[i]:]
		if rel := table.Relationship(head); rel != nil {
			path, err := resolveRelationship(table, rel, append([]string{tail}, segs[1:]...), lookup)
			if err == nil {
				return path, nil
			}
		}
	}
	return nil, fmt.Errorf("%s has no attribute %q", table.Name, seg)
}

func resolveRelationship(table *TableMetadata, rel *RelationshipMetadata, rest []string, lookup Lookup) (*Path, error) {
	target, err := lookup(rel.TargetType)
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", table.Name, rel.SourceField, err)
	}
	path := &Path{Table: table, Relationship: rel, Target: target}
	if len(rest) == 0 {
		return path, nil
	}
	next, err := resolveSegments(target, rest, lookup)
	if err != nil {
		return nil, err
	}
	path.Next = next
	return path, nil
}

// camelBoundaries returns the indexes where a new upper-case word starts.
func camelBoundaries(s string) []int {
	var idx []int
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			idx = append(idx, i)
		}
	}
	return idx
}
