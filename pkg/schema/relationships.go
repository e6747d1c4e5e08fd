package schema

import (
	"fmt"
	"reflect"
)

// ParseRelationships extracts relationship metadata from struct fields.
//
//	Provider *Provider       `po:"-,belongsTo,foreignKey(provider_id)"`
//	Product  *Product        `po:"-,ownsOne,foreignKey(product_id)"`
//	Detail   *ProductDetail  `po:"-,hasOne,inverse(Product)"`
func (p *Parser) ParseRelationships(modelType reflect.Type, table *TableMetadata) error {
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct")
	}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" {
			continue
		}
		opts, err := p.parseTag(tagValue)
		if err != nil || !isRelationshipTag(opts) {
			continue
		}

		rel, err := p.parseRelationship(field, opts, table)
		if err != nil {
			return fmt.Errorf("failed to parse relationship for field %s: %w", field.Name, err)
		}
		table.Relationships = append(table.Relationships, *rel)
	}
	return nil
}

// parseRelationship parses a relationship from a struct field.
func (p *Parser) parseRelationship(field reflect.StructField, opts *TagOptions, sourceTable *TableMetadata) (*RelationshipMetadata, error) {
	rel := &RelationshipMetadata{
		SourceTable:  sourceTable.Name,
		SourceField:  field.Name,
		ForeignKey:   opts.Get("foreignKey"),
		References:   opts.Get("references"),
		InverseField: opts.Get("inverse"),
	}

	switch {
	case opts.Has(string(BelongsTo)):
		rel.Type, rel.Owning = BelongsTo, true
	case opts.Has(string(OwnsOne)):
		rel.Type, rel.Owning = OwnsOne, true
	case opts.Has(string(HasOne)):
		rel.Type = HasOne
	}

	if field.Type.Kind() != reflect.Ptr || field.Type.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("relationship field must be a pointer to a struct, got %s", field.Type)
	}
	rel.TargetType = field.Type.Elem()
	rel.TargetTable = extractTableName(rel.TargetType)

	if rel.References == "" {
		rel.References = "id"
	}

	if rel.Owning {
		// The key lives on this table: it must be a declared column.
		if rel.ForeignKey == "" {
			rel.ForeignKey = toSnakeCase(field.Name) + "_id"
		}
		if sourceTable.Column(rel.ForeignKey) == nil {
			return nil, fmt.Errorf("foreign key column %q is not declared on %s", rel.ForeignKey, sourceTable.Name)
		}
		if rel.InverseField != "" {
			return nil, fmt.Errorf("inverse is only valid on the non-owning side")
		}
		return rel, nil
	}

	if rel.InverseField == "" {
		return nil, fmt.Errorf("%s requires inverse(Field) naming the owning side", rel.Type)
	}
	if rel.ForeignKey == "" {
		rel.ForeignKey = toSnakeCase(sourceTable.GoType.Name()) + "_id"
	}
	return rel, nil
}

// OwningRelationships returns the relationships whose key is stored on this table.
func (t *TableMetadata) OwningRelationships() []*RelationshipMetadata {
	var result []*RelationshipMetadata
	for i := range t.Relationships {
		if t.Relationships[i].Owning {
			result = append(result, &t.Relationships[i])
		}
	}
	return result
}

// HasRelationships checks if the table has any relationships.
func (t *TableMetadata) HasRelationships() bool {
	return len(t.Relationships) > 0
}
