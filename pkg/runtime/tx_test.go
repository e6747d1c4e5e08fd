package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, opts ...Option) *DB {
	t.Helper()
	db, err := Connect(context.Background(), &Config{Driver: DriverSQLite, URL: ":memory:"}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(context.Background(), `CREATE TABLE note (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countNotes(t *testing.T, db *DB) int {
	t.Helper()
	rows, err := db.Query(context.Background(), `SELECT COUNT(*) FROM note`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestDB_ExecAndQuery(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	res, err := db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "first")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	_, err = db.Exec(ctx, `INSERT INTO missing (body) VALUES (?)`, "x")
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, qe.Query, "missing")

	assert.Equal(t, SQLite, db.Dialect())
	assert.NotNil(t, db.SQL())
	assert.Nil(t, db.Pool())
}

func TestDB_Transaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db := openMemory(t)
		err := db.Transaction(ctx, func(ctx context.Context) error {
			_, err := db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "a")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, countNotes(t, db))
	})

	t.Run("rollback on error", func(t *testing.T) {
		db := openMemory(t)
		boom := errors.New("boom")
		err := db.Transaction(ctx, func(ctx context.Context) error {
			if _, err := db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "a"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, countNotes(t, db))
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db := openMemory(t)
		assert.Panics(t, func() {
			_ = db.Transaction(ctx, func(ctx context.Context) error {
				_, _ = db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "a")
				panic("boom")
			})
		})
		assert.Equal(t, 0, countNotes(t, db))
	})

	t.Run("nested scopes join the outer transaction", func(t *testing.T) {
		db := openMemory(t)
		var outer, inner string
		err := db.Transaction(ctx, func(ctx context.Context) error {
			tx, ok := TxFromContext(ctx, db)
			require.True(t, ok)
			outer = tx.ID()
			return db.InTx(ctx, func(ctx context.Context, q Querier) error {
				inner = q.(*Tx).ID()
				_, err := q.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "nested")
				return err
			})
		})
		require.NoError(t, err)
		assert.Equal(t, outer, inner)
		assert.Equal(t, 1, countNotes(t, db))
	})

	t.Run("inner failure rolls back the whole scope", func(t *testing.T) {
		db := openMemory(t)
		err := db.Transaction(ctx, func(ctx context.Context) error {
			if _, err := db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "outer"); err != nil {
				return err
			}
			return db.InTx(ctx, func(ctx context.Context, q Querier) error {
				return errors.New("inner")
			})
		})
		assert.Error(t, err)
		assert.Equal(t, 0, countNotes(t, db))
	})
}

func TestTx_Closed(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	_, err = tx.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "late")
	assert.ErrorIs(t, err, ErrTransactionClosed)
	assert.ErrorIs(t, tx.Rollback(ctx), ErrTransactionClosed)
}

func TestDB_Observability(t *testing.T) {
	logger, logs := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	var mu sync.Mutex
	var events []QueryEvent
	db := openMemory(t, WithLogger(logger), WithMetrics(metrics), WithQueryHook(func(_ context.Context, e QueryEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))
	ctx := context.Background()

	require.NoError(t, db.Transaction(ctx, func(ctx context.Context) error {
		_, err := db.Exec(ctx, `INSERT INTO note (body) VALUES (?)`, "x")
		return err
	}))
	_, _ = db.Exec(ctx, `SELECT nope FROM nowhere`)

	mu.Lock()
	require.Len(t, events, 3) // CREATE TABLE, INSERT, failed SELECT
	assert.NotEmpty(t, events[1].TxID)
	assert.Empty(t, events[2].TxID)
	assert.Error(t, events[2].Err)
	mu.Unlock()

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.errors))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.errors.WithLabelValues("exec")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.txs.WithLabelValues("commit")))

	var sawTx bool
	for _, entry := range logs.AllEntries() {
		if entry.Data["tx"] != nil && entry.Data["sql"] != nil {
			sawTx = true
		}
	}
	assert.True(t, sawTx, "statements inside a transaction are logged with the tx id")

	again, err := NewMetrics(reg)
	require.NoError(t, err, "registering twice reuses the collectors")
	assert.Same(t, metrics.txs, again.txs)
}

func TestNow(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("KST", 9*3600))
	ctx := WithClock(context.Background(), ClockFunc(func() time.Time { return fixed }))

	got := Now(ctx)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 123456000, got.Nanosecond())
	assert.True(t, got.Equal(fixed.Truncate(time.Microsecond)))

	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
