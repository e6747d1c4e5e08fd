package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Tx is an open transaction. It satisfies Querier.
type Tx struct {
	db   *DB
	conn txConn
	id   string

	mu   sync.Mutex
	done bool
}

type txKey struct {
	db *DB
}

// TxFromContext returns the transaction of db carried by ctx, if any.
func TxFromContext(ctx context.Context, db *DB) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{db: db}).(*Tx)
	if !ok || tx.closed() {
		return nil, false
	}
	return tx, true
}

// Begin starts a new transaction. Most callers want Transaction or InTx,
// which also take care of commit and rollback.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	c, err := db.backend.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{db: db, conn: c, id: uuid.NewString()}
	db.logger.WithField("tx", tx.id).Debug("begin")
	return tx, nil
}

// Transaction runs fn inside a transaction carried by the context passed to
// fn. If ctx already carries a transaction of db, fn joins it and the outer
// scope decides the outcome. Otherwise the transaction is committed when fn
// returns nil and rolled back when fn returns an error or panics.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFromContext(ctx, db); ok {
		return fn(ctx)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil && !tx.closed() {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				db.logger.WithFields(logrus.Fields{"tx": tx.id, "error": rbErr}).Warn("rollback failed")
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{db: db}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InTx runs fn as one unit of work and hands it the Querier to use.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		tx, _ := TxFromContext(ctx, db)
		return fn(ctx, tx)
	})
}

// ID returns the identifier used to correlate the transaction's log lines.
func (tx *Tx) ID() string {
	return tx.id
}

// Dialect returns the SQL dialect of the underlying store.
func (tx *Tx) Dialect() Dialect {
	return tx.db.dialect
}

// Query executes a statement that returns rows.
func (tx *Tx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if tx.closed() {
		return nil, ErrTransactionClosed
	}
	return tx.db.query(ctx, tx.conn, tx.id, sql, args)
}

// Exec executes a statement without returning any rows.
func (tx *Tx) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	if tx.closed() {
		return Result{}, ErrTransactionClosed
	}
	return tx.db.exec(ctx, tx.conn, tx.id, sql, args)
}

// Commit commits the transaction.
func (tx *Tx) Commit(ctx context.Context) error {
	if !tx.finish() {
		return ErrTransactionClosed
	}
	err := tx.conn.commit(ctx)
	tx.db.logger.WithField("tx", tx.id).Debug("commit")
	tx.db.metrics.observeTx("commit", err)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	if !tx.finish() {
		return ErrTransactionClosed
	}
	err := tx.conn.rollback(ctx)
	tx.db.logger.WithField("tx", tx.id).Debug("rollback")
	tx.db.metrics.observeTx("rollback", err)
	return err
}

func (tx *Tx) finish() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return false
	}
	tx.done = true
	return true
}

func (tx *Tx) closed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.done
}
