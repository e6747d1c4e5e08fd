package schema

import (
	"reflect"
	"strings"
)

// TableMetadata describes how a Go struct maps to a table.
type TableMetadata struct {
	Name          string
	GoType        reflect.Type
	Columns       []ColumnMetadata
	PrimaryKey    *ColumnMetadata
	Relationships []RelationshipMetadata
}

// AuditKind marks columns maintained by the store layer instead of callers.
type AuditKind int

const (
	AuditNone AuditKind = iota
	AuditCreated
	AuditUpdated
)

// ColumnMetadata describes a single persisted column.
type ColumnMetadata struct {
	Name          string
	GoField       string
	GoType        reflect.Type
	SQLType       string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Audit         AuditKind
	Position      int // struct field index
}

// RelationType enumerates the supported relationship declarations.
type RelationType string

const (
	// BelongsTo is a many-to-one relationship; the source row holds the key.
	BelongsTo RelationType = "belongsTo"
	// OwnsOne is a one-to-one relationship; the source row holds the key.
	OwnsOne RelationType = "ownsOne"
	// HasOne is the non-owning side of a one-to-one relationship; the key
	// lives on the target row and is found by reverse lookup.
	HasOne RelationType = "hasOne"
)

// Cardinality of a relationship as seen from its source.
type Cardinality string

const (
	OneToOne  Cardinality = "one-to-one"
	ManyToOne Cardinality = "many-to-one"
)

// RelationshipMetadata describes a relationship field.
type RelationshipMetadata struct {
	Type        RelationType
	SourceTable string
	SourceField string
	TargetType  reflect.Type
	TargetTable string

	// ForeignKey is the key column on the owning side: the source table for
	// owning relationships, the target table otherwise.
	ForeignKey string
	// References is the column the foreign key points at, normally "id".
	References string
	// InverseField names the owning relationship field on the target.
	InverseField string
	// Owning reports whether the source row persists the relationship.
	Owning bool
}

// Cardinality returns the relationship's cardinality.
func (r *RelationshipMetadata) Cardinality() Cardinality {
	if r.Type == BelongsTo {
		return ManyToOne
	}
	return OneToOne
}

// Column returns a column by column name or Go field name (case-insensitive).
func (t *TableMetadata) Column(name string) *ColumnMetadata {
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Name == name || strings.EqualFold(c.GoField, name) {
			return c
		}
	}
	if snake := toSnakeCase(name); snake != name {
		for i := range t.Columns {
			if t.Columns[i].Name == snake {
				return &t.Columns[i]
			}
		}
	}
	return nil
}

// ColumnByField returns the column bound to a Go struct field.
func (t *TableMetadata) ColumnByField(field string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].GoField == field {
			return &t.Columns[i]
		}
	}
	return nil
}

// Relationship returns a relationship by Go field name (case-insensitive).
func (t *TableMetadata) Relationship(name string) *RelationshipMetadata {
	for i := range t.Relationships {
		if strings.EqualFold(t.Relationships[i].SourceField, name) {
			return &t.Relationships[i]
		}
	}
	return nil
}

// AuditColumn returns the column carrying the given audit role, if any.
func (t *TableMetadata) AuditColumn(kind AuditKind) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Audit == kind {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
