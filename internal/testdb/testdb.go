// Package testdb opens throwaway SQLite databases for package tests.
package testdb

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-catalog/pkg/builder"
	"github.com/marshallshelly/pebble-catalog/pkg/registry"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// DB is an in-memory SQLite database with a statement counter and a
// captured logger.
type DB struct {
	*runtime.DB
	Registry *registry.Registry
	Logs     *test.Hook

	statements atomic.Int64
}

// Open opens an empty in-memory database that is closed when t finishes.
// Extra options are applied after the test logger and statement counter.
func Open(t testing.TB, opts ...runtime.Option) *DB {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	tdb := &DB{Registry: registry.NewRegistry(), Logs: hook}
	base := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithQueryHook(func(context.Context, runtime.QueryEvent) { tdb.statements.Add(1) }),
	}

	db, err := runtime.Connect(context.Background(),
		&runtime.Config{Driver: runtime.DriverSQLite, URL: ":memory:"},
		append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tdb.DB = db
	return tdb
}

// Create registers models and creates their tables.
func (d *DB) Create(t testing.TB, models ...any) {
	t.Helper()
	for _, m := range models {
		table, err := d.Registry.Lookup(reflect.TypeOf(m))
		require.NoError(t, err)
		_, err = d.Exec(context.Background(), builder.CreateTable(table, d.Dialect()))
		require.NoError(t, err)
	}
	d.Reset()
}

// Statements returns the number of statements run since the last Reset.
func (d *DB) Statements() int {
	return int(d.statements.Load())
}

// Reset zeroes the statement counter and drops captured log entries.
func (d *DB) Reset() {
	d.statements.Store(0)
	d.Logs.Reset()
}

// MustExec runs a statement and fails the test on error.
func (d *DB) MustExec(t testing.TB, sql string, args ...any) runtime.Result {
	t.Helper()
	res, err := d.Exec(context.Background(), sql, args...)
	require.NoError(t, err)
	return res
}
