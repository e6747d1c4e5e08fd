// Package registry provides a central schema registry for table metadata.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/marshallshelly/pebble-catalog/pkg/schema"
)

// Registry is a thread-safe registry for table metadata. Registering a model
// also registers every model reachable through its relationships and checks
// that each relationship has exactly one owning side.
type Registry struct {
	mu     sync.RWMutex
	parser *schema.Parser
	tables map[reflect.Type]*schema.TableMetadata
	names  map[string]*schema.TableMetadata
}

// NewRegistry creates a new Registry instance.
func NewRegistry() *Registry {
	return &Registry{
		parser: schema.NewParser(),
		tables: make(map[reflect.Type]*schema.TableMetadata),
		names:  make(map[string]*schema.TableMetadata),
	}
}

// Register registers a model type and extracts its metadata.
func (r *Registry) Register(model any) error {
	_, err := r.Lookup(reflect.TypeOf(model))
	return err
}

// Lookup returns the metadata for modelType, registering it on first use.
// It satisfies schema.Lookup.
func (r *Registry) Lookup(modelType reflect.Type) (*schema.TableMetadata, error) {
	if modelType == nil {
		return nil, fmt.Errorf("model must be a struct, got nil")
	}
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []reflect.Type
	table, err := r.registerLocked(modelType, &added)
	if err != nil {
		for _, t := range added {
			delete(r.names, r.tables[t].Name)
			delete(r.tables, t)
		}
		return nil, err
	}
	return table, nil
}

func (r *Registry) registerLocked(modelType reflect.Type, added *[]reflect.Type) (*schema.TableMetadata, error) {
	if table, ok := r.tables[modelType]; ok {
		return table, nil
	}

	table, err := r.parser.Parse(modelType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", modelType.Name(), err)
	}
	if other, ok := r.names[table.Name]; ok && other.GoType != modelType {
		return nil, fmt.Errorf("table %s is already mapped by %s", table.Name, other.GoType)
	}

	// Stored before linking so that cyclic relationships terminate.
	r.tables[modelType] = table
	r.names[table.Name] = table
	*added = append(*added, modelType)

	for i := range table.Relationships {
		rel := &table.Relationships[i]
		target, err := r.registerLocked(rel.TargetType, added)
		if err != nil {
			return nil, err
		}
		if err := link(table, rel, target); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", modelType.Name(), rel.SourceField, err)
		}
	}
	return table, nil
}

// link validates a relationship against its target and completes the
// metadata that can only be derived from the owning side.
func link(source *schema.TableMetadata, rel *schema.RelationshipMetadata, target *schema.TableMetadata) error {
	rel.TargetTable = target.Name

	if rel.Owning {
		if target.Column(rel.References) == nil {
			return fmt.Errorf("references unknown column %s.%s", target.Name, rel.References)
		}
		return nil
	}

	inverse := target.Relationship(rel.InverseField)
	if inverse == nil {
		return fmt.Errorf("inverse field %s.%s not found", target.GoType.Name(), rel.InverseField)
	}
	if inverse.TargetType != source.GoType {
		return fmt.Errorf("inverse field %s.%s does not point back at %s",
			target.GoType.Name(), rel.InverseField, source.GoType.Name())
	}
	if !inverse.Owning {
		return fmt.Errorf("neither side of %s.%s owns the relationship", target.GoType.Name(), rel.InverseField)
	}
	if inverse.Type != schema.OwnsOne {
		return fmt.Errorf("%s is declared one-to-one but its owning side is %s", rel.Type, inverse.Type)
	}
	rel.ForeignKey = inverse.ForeignKey
	rel.References = inverse.References
	return nil
}

// Get retrieves TableMetadata by Go type.
func (r *Registry) Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	table, ok := r.tables[modelType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("model type %s not registered", modelType.Name())
	}
	return table, nil
}

// GetByName retrieves TableMetadata by table name.
func (r *Registry) GetByName(tableName string) (*schema.TableMetadata, error) {
	r.mu.RLock()
	table, ok := r.names[tableName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("table %s not registered", tableName)
	}
	return table, nil
}

// GetOrRegister retrieves TableMetadata or registers it if not found.
func (r *Registry) GetOrRegister(model any) (*schema.TableMetadata, error) {
	return r.Lookup(reflect.TypeOf(model))
}

// ResolvePath resolves an attribute path against table, registering related
// models as needed.
func (r *Registry) ResolvePath(table *schema.TableMetadata, path string) (*schema.Path, error) {
	return schema.ResolvePath(table, path, r.Lookup)
}

// All returns all registered table metadata sorted by table name.
func (r *Registry) All() []*schema.TableMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tables := make([]*schema.TableMetadata, 0, len(r.names))
	for _, table := range r.names {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}

// Clear removes all registered models.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parser = schema.NewParser()
	r.tables = make(map[reflect.Type]*schema.TableMetadata)
	r.names = make(map[string]*schema.TableMetadata)
}

// Has checks if a model type is registered.
func (r *Registry) Has(modelType reflect.Type) bool {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}

	r.mu.RLock()
	_, ok := r.tables[modelType]
	r.mu.RUnlock()
	return ok
}

// HasTable checks if a table name is registered.
func (r *Registry) HasTable(tableName string) bool {
	r.mu.RLock()
	_, ok := r.names[tableName]
	r.mu.RUnlock()
	return ok
}

// globalRegistry is the default global registry instance.
var globalRegistry = NewRegistry()

// Default returns the global registry.
func Default() *Registry {
	return globalRegistry
}

// Register registers a model in the global registry.
func Register(model any) error {
	return globalRegistry.Register(model)
}

// Get retrieves TableMetadata from the global registry.
func Get(modelType reflect.Type) (*schema.TableMetadata, error) {
	return globalRegistry.Get(modelType)
}

// GetOrRegister retrieves or registers a model in the global registry.
func GetOrRegister(model any) (*schema.TableMetadata, error) {
	return globalRegistry.GetOrRegister(model)
}

// All returns all registered tables from the global registry.
func All() []*schema.TableMetadata {
	return globalRegistry.All()
}

// Clear clears the global registry.
func Clear() {
	globalRegistry.Clear()
}
