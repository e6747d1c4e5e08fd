package schema

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
	StructTagKey = "po"
)

// TableNamer lets a model override its table name.
type TableNamer interface {
	TableName() string
}

// Parser parses struct definitions to extract table metadata.
type Parser struct {
	typeMapper *TypeMapper
	cache      map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		typeMapper: DefaultTypeMapper,
		cache:      make(map[reflect.Type]*TableMetadata),
	}
}

// Parse extracts TableMetadata from a Go struct type.
// Relationship target tables are filled in later by the registry, which is
// the only component that can see both sides of a relationship.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	for modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:    extractTableName(modelType),
		GoType:  modelType,
		Columns: make([]ColumnMetadata, 0, modelType.NumField()),
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
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}
		if isRelationshipTag(opts) {
			continue
		}
		if opts.Name == "-" {
			continue
		}

		column, err := p.createColumnMetadata(field, opts, i)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		table.Columns = append(table.Columns, column)
	}

	for i := range table.Columns {
		if !table.Columns[i].PrimaryKey {
			continue
		}
		if table.PrimaryKey != nil {
			return nil, fmt.Errorf("%s: composite primary keys are not supported", modelType.Name())
		}
		table.PrimaryKey = &table.Columns[i]
	}
	if table.PrimaryKey == nil {
		return nil, fmt.Errorf("%s: no primaryKey column declared", modelType.Name())
	}

	if err := p.ParseRelationships(modelType, table); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}

	p.cache[modelType] = table
	return table, nil
}

// extractTableName returns the TableNamer override or the snake_case struct name.
func extractTableName(modelType reflect.Type) string {
	if namer, ok := reflect.New(modelType).Interface().(TableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return toSnakeCase(modelType.Name())
}

// createColumnMetadata creates a ColumnMetadata from a struct field.
func (p *Parser) createColumnMetadata(field reflect.StructField, opts *TagOptions, position int) (ColumnMetadata, error) {
	name := opts.Name
	if name == "" {
		name = toSnakeCase(field.Name)
	}
	column := ColumnMetadata{
		Name:          name,
		GoField:       field.Name,
		GoType:        field.Type,
		Position:      position,
		PrimaryKey:    opts.Has("primaryKey"),
		AutoIncrement: opts.Has("autoIncrement") || opts.Has("serial"),
	}

	if sqlType := opts.GetSQLType(); sqlType != "" {
		column.SQLType = sqlType
	} else {
		column.SQLType = p.typeMapper.GoTypeToSQL(field.Type)
	}
	if column.SQLType == "" {
		return column, fmt.Errorf("no SQL type for Go type %s", field.Type)
	}

	column.Nullable = !opts.Has("notNull") && !column.PrimaryKey
	if IsNullable(field.Type) {
		column.Nullable = true
	}

	switch {
	case opts.Has("createdAt") && opts.Has("updatedAt"):
		return column, fmt.Errorf("createdAt and updatedAt are exclusive")
	case opts.Has("createdAt"):
		column.Audit = AuditCreated
	case opts.Has("updatedAt"):
		column.Audit = AuditUpdated
	}
	if column.Audit != AuditNone && field.Type != timeType {
		return column, fmt.Errorf("audit column must be time.Time, got %s", field.Type)
	}
	return column, nil
}

// isRelationshipTag checks if tag options indicate a relationship field.
func isRelationshipTag(opts *TagOptions) bool {
	return opts.Has(string(BelongsTo)) || opts.Has(string(OwnsOne)) || opts.Has(string(HasOne))
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value),option3"
func (p *Parser) parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
		} else if idx := strings.Index(opt, ":"); idx != -1 {
			opts.Options[opt[:idx]] = opt[idx+1:]
		} else {
			opts.Options[opt] = ""
		}
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

// GetSQLType returns an explicit SQL type from tag options, e.g. varchar(255).
func (t *TagOptions) GetSQLType() string {
	sqlTypes := []string{
		"varchar", "text", "char",
		"smallint", "integer", "bigint",
		"numeric", "decimal", "real",
		"boolean",
		"date", "timestamp", "timestamptz",
	}
	for _, sqlType := range sqlTypes {
		if t.Has(sqlType) {
			if value := t.Get(sqlType); value != "" {
				return fmt.Sprintf("%s(%s)", sqlType, value)
			}
			return sqlType
		}
	}
	return ""
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// toSnakeCase converts a string from PascalCase to snake_case.
// Runs of capitals are kept together, so "ProductID" becomes "product_id".
func toSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)
	for i, ch := range runes {
		if i > 0 && isUpper(ch) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && !isUpper(runes[i+1]) && runes[i+1] != '_'
			if prev != '_' && (!isUpper(prev) || nextLower) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(ch)
	}
	return strings.ToLower(result.String())
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

// ToSnakeCase is the exported form of the naming rule used for tables and columns.
func ToSnakeCase(s string) string { return toSnakeCase(s) }
