package registry

import (
	"reflect"
	"strings"
	"sync"
	"testing"
)

type Supplier struct {
	ID   int64  `po:"id,primaryKey,autoIncrement"`
	Name string `po:"name,notNull"`
}

type Part struct {
	ID         int64     `po:"id,primaryKey,autoIncrement"`
	Title      string    `po:"title,notNull"`
	SupplierID *int64    `po:"supplier_id"`
	Supplier   *Supplier `po:"-,belongsTo,foreignKey(supplier_id)"`
	Spec       *PartSpec `po:"-,hasOne,inverse(Part)"`
}

type PartSpec struct {
	ID     int64  `po:"id,primaryKey,autoIncrement"`
	Body   string `po:"body"`
	PartID *int64 `po:"owner_part"`
	Part   *Part  `po:"-,ownsOne,foreignKey(owner_part)"`
}

type BadInverse struct {
	ID    int64     `po:"id,primaryKey"`
	Other *Supplier `po:"-,hasOne,inverse(Name)"`
}

type BothSides struct {
	ID   int64         `po:"id,primaryKey"`
	Peer *BothSidesPeer `po:"-,hasOne,inverse(Back)"`
}

type BothSidesPeer struct {
	ID   int64      `po:"id,primaryKey"`
	Back *BothSides `po:"-,hasOne,inverse(Peer)"`
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	t.Run("register new model", func(t *testing.T) {
		if err := registry.Register(Supplier{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !registry.Has(reflect.TypeOf(Supplier{})) {
			t.Error("expected model to be registered")
		}
	})

	t.Run("register duplicate model", func(t *testing.T) {
		if err := registry.Register(Supplier{}); err != nil {
			t.Errorf("Duplicate register failed: %v", err)
		}
	})

	t.Run("register pointer model", func(t *testing.T) {
		if err := registry.Register(&Supplier{}); err != nil {
			t.Fatalf("Register with pointer failed: %v", err)
		}
	})

	t.Run("register invalid type", func(t *testing.T) {
		if err := registry.Register("not a struct"); err == nil {
			t.Error("expected error for non-struct type")
		}
	})
}

func TestRegistry_RelatedModels(t *testing.T) {
	registry := NewRegistry()

	table, err := registry.GetOrRegister(&Part{})
	if err != nil {
		t.Fatalf("GetOrRegister failed: %v", err)
	}

	for _, name := range []string{"part", "supplier", "part_spec"} {
		if !registry.HasTable(name) {
			t.Errorf("expected %s to be registered through relationships", name)
		}
	}

	spec := table.Relationship("Spec")
	if spec == nil {
		t.Fatal("Spec relationship not found")
	}
	if spec.ForeignKey != "owner_part" {
		t.Errorf("expected foreign key taken from the owning side, got %s", spec.ForeignKey)
	}
	if spec.TargetTable != "part_spec" {
		t.Errorf("expected target table part_spec, got %s", spec.TargetTable)
	}

	names := make([]string, 0)
	for _, tbl := range registry.All() {
		names = append(names, tbl.Name)
	}
	if strings.Join(names, ",") != "part,part_spec,supplier" {
		t.Errorf("All() = %v", names)
	}
}

func TestRegistry_OwnershipValidation(t *testing.T) {
	tests := []struct {
		name  string
		model any
		want  string
	}{
		{"inverse is not a relationship", BadInverse{}, "not found"},
		{"no owning side", BothSides{}, "neither side"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			err := registry.Register(tt.model)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			if registry.Has(reflect.TypeOf(tt.model)) {
				t.Error("failed registration must not leave the model registered")
			}
		})
	}
}

func TestRegistry_ResolvePath(t *testing.T) {
	registry := NewRegistry()
	table, err := registry.GetOrRegister(Part{})
	if err != nil {
		t.Fatalf("GetOrRegister failed: %v", err)
	}

	path, err := registry.ResolvePath(table, "supplier.name")
	if err != nil {
		t.Fatalf("ResolvePath failed: %v", err)
	}
	if path.Target == nil || path.Target.Name != "supplier" {
		t.Errorf("expected supplier target, got %+v", path.Target)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := registry.GetOrRegister(Part{}); err != nil {
				t.Errorf("GetOrRegister failed: %v", err)
			}
		}()
	}
	wg.Wait()

	a, _ := registry.Get(reflect.TypeOf(Part{}))
	b, _ := registry.GetByName("part")
	if a != b {
		t.Error("expected a single metadata instance per model")
	}
}

func TestGlobalRegistry(t *testing.T) {
	Clear()
	defer Clear()

	if err := Register(Supplier{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := Get(reflect.TypeOf(Supplier{})); err != nil {
		t.Errorf("Get failed: %v", err)
	}
	if Default() != globalRegistry {
		t.Error("Default() must return the global registry")
	}
	if len(All()) != 1 {
		t.Errorf("expected 1 table, got %d", len(All()))
	}
}
