package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Rows is a forward-only cursor over query results.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Result reports the outcome of a statement executed with Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is only populated by drivers without RETURNING support.
	LastInsertID int64
}

// Querier is the common interface of DB and Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
	Dialect() Dialect
}

// QueryEvent describes one executed statement.
type QueryEvent struct {
	Kind     string // "query" or "exec"
	SQL      string
	Args     []any
	TxID     string
	Duration time.Duration
	Err      error
}

// QueryHook observes every statement after it completes.
type QueryHook func(ctx context.Context, e QueryEvent)

// DB represents a database connection pool plus the dialect used to talk to it.
type DB struct {
	backend backend
	dialect Dialect
	config  *Config
	logger  logrus.FieldLogger
	metrics *Metrics
	hooks   []QueryHook
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for statement and transaction logging.
func WithLogger(l logrus.FieldLogger) Option {
	return func(db *DB) { db.logger = l }
}

// WithMetrics records statement metrics.
func WithMetrics(m *Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// WithQueryHook registers a hook called after each statement.
func WithQueryHook(h QueryHook) Option {
	return func(db *DB) { db.hooks = append(db.hooks, h) }
}

func newDB(b backend, d Dialect, config *Config, opts []Option) *DB {
	db := &DB{
		backend: b,
		dialect: d,
		config:  config,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// NewDB creates a new DB instance from a pgx connection pool.
func NewDB(pool *pgxpool.Pool, opts ...Option) *DB {
	return newDB(&pgxBackend{pool: pool}, PostgreSQL, &Config{Driver: DriverPostgres}, opts)
}

// NewSQLDB creates a new DB instance from a database/sql handle.
func NewSQLDB(sqlDB *sql.DB, dialect Dialect, opts ...Option) *DB {
	return newDB(&sqlBackend{db: sqlDB}, dialect, &Config{Driver: dialect.Name()}, opts)
}

// Connect opens a DB for the configured driver and verifies the connection.
func Connect(ctx context.Context, config *Config, opts ...Option) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *DB
		err error
	)
	switch config.Driver {
	case DriverPostgres:
		db, err = connectPostgres(ctx, config, opts)
	default:
		db, err = connectSQL(config, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// ConnectWithURL creates a new PostgreSQL DB instance using a connection URL.
func ConnectWithURL(ctx context.Context, url string, opts ...Option) (*DB, error) {
	return Connect(ctx, &Config{Driver: DriverPostgres, URL: url}, opts...)
}

func connectPostgres(ctx context.Context, config *Config, opts []Option) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return newDB(&pgxBackend{pool: pool}, PostgreSQL, config, opts), nil
}

func connectSQL(config *Config, opts []Option) (*DB, error) {
	dialect, err := DialectFor(config.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(config.Driver, config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Driver, err)
	}
	if config.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(config.MaxConns))
	}
	if config.MinConns > 0 {
		sqlDB.SetMaxIdleConns(int(config.MinConns))
	}
	if config.Driver == DriverSQLite && config.isMemory() {
		// Every new connection to :memory: is a separate empty database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}
	return newDB(&sqlBackend{db: sqlDB}, dialect, config, opts), nil
}

// Dialect returns the SQL dialect of the underlying store.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Config returns the configuration the DB was opened with.
func (db *DB) Config() *Config {
	return db.config
}

// Logger returns the logger used by the DB.
func (db *DB) Logger() logrus.FieldLogger {
	return db.logger
}

// Pool returns the underlying pgxpool.Pool, or nil for database/sql stores.
func (db *DB) Pool() *pgxpool.Pool {
	if b, ok := db.backend.(*pgxBackend); ok {
		return b.pool
	}
	return nil
}

// SQL returns the underlying *sql.DB, or nil for pgx stores.
func (db *DB) SQL() *sql.DB {
	if b, ok := db.backend.(*sqlBackend); ok {
		return b.db
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.backend.close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.backend.ping(ctx)
}

// Query executes a statement that returns rows. When ctx carries a
// transaction of this DB the statement runs inside it.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if tx, ok := TxFromContext(ctx, db); ok {
		return tx.Query(ctx, sql, args...)
	}
	return db.query(ctx, db.backend, "", sql, args)
}

// Exec executes a statement without returning any rows. When ctx carries a
// transaction of this DB the statement runs inside it.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	if tx, ok := TxFromContext(ctx, db); ok {
		return tx.Exec(ctx, sql, args...)
	}
	return db.exec(ctx, db.backend, "", sql, args)
}

func (db *DB) query(ctx context.Context, c conn, txID, sql string, args []any) (Rows, error) {
	start := time.Now()
	rows, err := c.query(ctx, sql, args)
	if err != nil {
		err = &QueryError{Query: sql, Args: args, Err: err}
	}
	db.observe(ctx, QueryEvent{Kind: "query", SQL: sql, Args: args, TxID: txID, Duration: time.Since(start), Err: err})
	return rows, err
}

func (db *DB) exec(ctx context.Context, c conn, txID, sql string, args []any) (Result, error) {
	start := time.Now()
	res, err := c.exec(ctx, sql, args)
	if err != nil {
		err = &QueryError{Query: sql, Args: args, Err: err}
	}
	db.observe(ctx, QueryEvent{Kind: "exec", SQL: sql, Args: args, TxID: txID, Duration: time.Since(start), Err: err})
	return res, err
}

func (db *DB) observe(ctx context.Context, e QueryEvent) {
	entry := db.logger.WithFields(logrus.Fields{
		"sql":      e.SQL,
		"args":     e.Args,
		"duration": e.Duration,
	})
	if e.TxID != "" {
		entry = entry.WithField("tx", e.TxID)
	}
	if e.Err != nil {
		entry.WithError(e.Err).Warn("statement failed")
	} else {
		entry.Debug(e.Kind)
	}

	db.metrics.observeStatement(e)
	for _, h := range db.hooks {
		h(ctx, e)
	}
}
