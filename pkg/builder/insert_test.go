package builder

import (
	"errors"
	"testing"
	"time"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

func TestBuilder_Insert(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	makerID := int64(9)

	tests := []struct {
		name          string
		dialect       runtime.Dialect
		widget        *Widget
		wantSQL       string
		wantArgs      int
		wantReturning bool
	}{
		{
			name:          "postgres returns the generated key",
			dialect:       runtime.PostgreSQL,
			widget:        &Widget{Name: "Scissors", Price: 1500, MakerID: &makerID, CreatedAt: now, UpdatedAt: now},
			wantSQL:       `INSERT INTO "widget" ("name", "price", "active", "maker_id", "created_at", "updated_at") VALUES ($1, $2, $3, $4, $5, $6) RETURNING "id"`,
			wantArgs:      6,
			wantReturning: true,
		},
		{
			name:          "sqlite returns the generated key",
			dialect:       runtime.SQLite,
			widget:        &Widget{Name: "Scissors"},
			wantSQL:       `INSERT INTO "widget" ("name", "price", "active", "maker_id", "created_at", "updated_at") VALUES (?, ?, ?, ?, ?, ?) RETURNING "id"`,
			wantArgs:      6,
			wantReturning: true,
		},
		{
			name:     "mysql relies on LastInsertId",
			dialect:  runtime.MySQL,
			widget:   &Widget{Name: "Scissors"},
			wantSQL:  "INSERT INTO `widget` (`name`, `price`, `active`, `maker_id`, `created_at`, `updated_at`) VALUES (?, ?, ?, ?, ?, ?)",
			wantArgs: 6,
		},
		{
			name:     "explicit key is written",
			dialect:  runtime.PostgreSQL,
			widget:   &Widget{ID: 42, Name: "Glue"},
			wantSQL:  `INSERT INTO "widget" ("id", "name", "price", "active", "maker_id", "created_at", "updated_at") VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			wantArgs: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := widgetBuilder(t, tt.dialect)
			stmt, returning, err := b.Insert(tt.widget)
			if err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if stmt.SQL != tt.wantSQL {
				t.Errorf("Insert() SQL =\n%s\nwant\n%s", stmt.SQL, tt.wantSQL)
			}
			if len(stmt.Args) != tt.wantArgs {
				t.Errorf("Insert() args = %d, want %d", len(stmt.Args), tt.wantArgs)
			}
			if returning != tt.wantReturning {
				t.Errorf("Insert() returning = %v, want %v", returning, tt.wantReturning)
			}
		})
	}
}

func TestBuilder_InsertNullForeignKey(t *testing.T) {
	b := widgetBuilder(t, runtime.SQLite)
	stmt, _, err := b.Insert(Widget{Name: "Loose"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	// name, price, active, maker_id, ...
	if stmt.Args[3] != nil {
		t.Errorf("nil pointer must be written as untyped nil, got %#v", stmt.Args[3])
	}
}

func TestBuilder_InsertRejectsOtherTypes(t *testing.T) {
	b := widgetBuilder(t, runtime.SQLite)

	if _, _, err := b.Insert(&Maker{Name: "Acme"}); !errors.Is(err, runtime.ErrInvalidModel) {
		t.Errorf("expected ErrInvalidModel, got %v", err)
	}
	var nilWidget *Widget
	if _, _, err := b.Insert(nilWidget); !errors.Is(err, runtime.ErrInvalidModel) {
		t.Errorf("expected ErrInvalidModel for nil, got %v", err)
	}
}

func TestBuilder_Update(t *testing.T) {
	b := widgetBuilder(t, runtime.PostgreSQL)

	stmt, err := b.Update(&Widget{ID: 7, Name: "Scissors", Price: 1600})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := `UPDATE "widget" SET "name" = $1, "price" = $2, "active" = $3, "maker_id" = $4, "updated_at" = $5 WHERE "id" = $6`
	if stmt.SQL != want {
		t.Errorf("Update() SQL =\n%s\nwant\n%s", stmt.SQL, want)
	}
	if len(stmt.Args) != 6 || stmt.Args[5] != int64(7) {
		t.Errorf("Update() args = %v", stmt.Args)
	}
}

func TestBuilder_Delete(t *testing.T) {
	b := widgetBuilder(t, runtime.SQLite)

	stmt, err := b.Delete(query.Eq("Maker.Name", "Acme"))
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if want := `DELETE FROM "widget" WHERE "maker_id" IN (SELECT "id" FROM "maker" WHERE "name" = ?)`; stmt.SQL != want {
		t.Errorf("Delete() = %s, want %s", stmt.SQL, want)
	}

	byID, err := b.DeleteByID(int64(3))
	if err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if want := `DELETE FROM "widget" WHERE "id" = ?`; byID.SQL != want {
		t.Errorf("DeleteByID() = %s, want %s", byID.SQL, want)
	}

	if _, err := b.Delete(nil); !errors.Is(err, runtime.ErrMalformedQueryDescriptor) {
		t.Errorf("Delete(nil) error = %v, want ErrMalformedQueryDescriptor", err)
	}
}
