package runtime

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// conn is a handle statements can run on: a pool or an open transaction.
type conn interface {
	query(ctx context.Context, sql string, args []any) (Rows, error)
	exec(ctx context.Context, sql string, args []any) (Result, error)
}

type backend interface {
	conn
	begin(ctx context.Context) (txConn, error)
	ping(ctx context.Context) error
	close() error
}

type txConn interface {
	conn
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgxQuery(ctx context.Context, q pgxQuerier, sql string, args []any) (Rows, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func pgxExec(ctx context.Context, q pgxQuerier, sql string, args []any) (Result, error) {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return Result{}, err
	}
	return Result{RowsAffected: tag.RowsAffected()}, nil
}

type pgxBackend struct {
	pool *pgxpool.Pool
}

func (b *pgxBackend) query(ctx context.Context, sql string, args []any) (Rows, error) {
	return pgxQuery(ctx, b.pool, sql, args)
}

func (b *pgxBackend) exec(ctx context.Context, sql string, args []any) (Result, error) {
	return pgxExec(ctx, b.pool, sql, args)
}

func (b *pgxBackend) begin(ctx context.Context) (txConn, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{tx: tx}, nil
}

func (b *pgxBackend) ping(ctx context.Context) error { return b.pool.Ping(ctx) }

func (b *pgxBackend) close() error {
	b.pool.Close()
	return nil
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) query(ctx context.Context, sql string, args []any) (Rows, error) {
	return pgxQuery(ctx, t.tx, sql, args)
}

func (t *pgxTx) exec(ctx context.Context, sql string, args []any) (Result, error) {
	return pgxExec(ctx, t.tx, sql, args)
}

func (t *pgxTx) commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlRows adapts *sql.Rows to Rows.
type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

func sqlQuery(ctx context.Context, q sqlQuerier, query string, args []any) (Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func sqlExec(ctx context.Context, q sqlQuerier, query string, args []any) (Result, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, err
	}
	// Drivers without LastInsertId support report an error here; the value
	// is only consulted by dialects without RETURNING.
	lastID, _ := res.LastInsertId()
	return Result{RowsAffected: affected, LastInsertID: lastID}, nil
}

type sqlBackend struct {
	db *sql.DB
}

func (b *sqlBackend) query(ctx context.Context, query string, args []any) (Rows, error) {
	return sqlQuery(ctx, b.db, query, args)
}

func (b *sqlBackend) exec(ctx context.Context, query string, args []any) (Result, error) {
	return sqlExec(ctx, b.db, query, args)
}

func (b *sqlBackend) begin(ctx context.Context) (txConn, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (b *sqlBackend) ping(ctx context.Context) error { return b.db.PingContext(ctx) }
func (b *sqlBackend) close() error                  { return b.db.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) query(ctx context.Context, query string, args []any) (Rows, error) {
	return sqlQuery(ctx, t.tx, query, args)
}

func (t *sqlTx) exec(ctx context.Context, query string, args []any) (Result, error) {
	return sqlExec(ctx, t.tx, query, args)
}

func (t *sqlTx) commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) rollback(context.Context) error { return t.tx.Rollback() }
