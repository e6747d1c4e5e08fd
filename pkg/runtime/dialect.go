package runtime

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name identifies the dialect: "postgres", "sqlite" or "mysql".
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index.
	Placeholder(index int) string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// UseReturning reports whether INSERT and UPDATE can return columns
	// with a RETURNING clause instead of relying on LastInsertId.
	UseReturning() bool

	// LikeEscape returns the ESCAPE clause matching EscapeLike.
	LikeEscape() string

	// ColumnType translates a portable column type into this dialect.
	ColumnType(sqlType string) string

	// AutoIncrementKey renders the definition of a store-generated
	// primary key column.
	AutoIncrementKey(quotedName, sqlType string) string
}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite.
var SQLite Dialect = sqliteDialect{}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return nil, fmt.Errorf("unknown driver %q", name)
}

type postgresDialect struct{}

func (postgresDialect) Name() string                  { return "postgres" }
func (postgresDialect) Placeholder(index int) string  { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string { return `"` + name + `"` }
func (postgresDialect) UseReturning() bool            { return true }
func (postgresDialect) LikeEscape() string            { return `ESCAPE '\'` }

func (postgresDialect) ColumnType(sqlType string) string {
	if sqlType == "timestamp" {
		return "timestamptz"
	}
	return sqlType
}

func (postgresDialect) AutoIncrementKey(quotedName, sqlType string) string {
	if sqlType == "integer" {
		return quotedName + " SERIAL PRIMARY KEY"
	}
	return quotedName + " BIGSERIAL PRIMARY KEY"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                  { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string      { return "?" }
func (sqliteDialect) QuoteIdent(name string) string { return `"` + name + `"` }
func (sqliteDialect) UseReturning() bool            { return true }
func (sqliteDialect) LikeEscape() string            { return `ESCAPE '\'` }

// ColumnType keeps TIMESTAMP as the declared type so the driver parses the
// stored text back into time.Time.
func (sqliteDialect) ColumnType(sqlType string) string {
	switch sqlType {
	case "timestamp", "timestamptz":
		return "TIMESTAMP"
	case "boolean":
		return "BOOLEAN"
	}
	return sqlType
}

// AutoIncrementKey uses a rowid alias, which must be declared exactly INTEGER.
func (sqliteDialect) AutoIncrementKey(quotedName, _ string) string {
	return quotedName + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                  { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string      { return "?" }
func (mysqlDialect) QuoteIdent(name string) string { return "`" + name + "`" }
func (mysqlDialect) UseReturning() bool            { return false }
func (mysqlDialect) LikeEscape() string            { return `ESCAPE '\\'` }

func (mysqlDialect) ColumnType(sqlType string) string {
	switch sqlType {
	case "timestamp", "timestamptz":
		return "DATETIME(6)"
	case "text":
		return "VARCHAR(255)"
	}
	return sqlType
}

func (mysqlDialect) AutoIncrementKey(quotedName, sqlType string) string {
	return quotedName + " " + strings.ToUpper(sqlType) + " AUTO_INCREMENT PRIMARY KEY"
}

// EscapeLike escapes the LIKE wildcards in s so that it matches literally.
// Use with the dialect's LikeEscape clause.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
