package runtime

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config represents database configuration.
type Config struct {
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "postgres",
		User:     "postgres",
		SSLMode:  "prefer",
		MaxConns: 10,
		MinConns: 2,
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from PEBBLE_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PEBBLE_DRIVER"); ok {
		c.Driver = v
	}
	if v, ok := lookup("PEBBLE_DATABASE_URL"); ok {
		c.URL = v
	}
	if v, ok := lookup("PEBBLE_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("PEBBLE_MAX_CONNS"); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.MaxConns = int32(n)
		}
	}
}

func (c *Config) applyDefaults() {
	c.Driver = strings.ToLower(c.Driver)
	switch c.Driver {
	case "", "postgresql", "pgx":
		c.Driver = DriverPostgres
	case "sqlite3":
		c.Driver = DriverSQLite
	case "mariadb":
		c.Driver = DriverMySQL
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that the configuration can produce a connection string.
func (c *Config) Validate() error {
	c.applyDefaults()
	if _, err := DialectFor(c.Driver); err != nil {
		return err
	}
	switch c.Driver {
	case DriverSQLite:
		if c.URL == "" && c.Database == "" {
			return fmt.Errorf("sqlite requires url or database")
		}
	case DriverMySQL:
		if c.URL != "" {
			if _, err := mysql.ParseDSN(c.URL); err != nil {
				return fmt.Errorf("invalid mysql dsn: %w", err)
			}
		}
	}
	return nil
}

// DSN returns the driver-specific connection string.
func (c *Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	switch c.Driver {
	case DriverSQLite:
		return c.Database
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		port := c.Port
		if port == 0 {
			port = 3306
		}
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, port)
		cfg.DBName = c.Database
		cfg.ParseTime = true
		return cfg.FormatDSN()
	}
	return buildConnectionString(c)
}

func (c *Config) isMemory() bool {
	dsn := c.DSN()
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// buildConnectionString builds a PostgreSQL connection string from config.
func buildConnectionString(config *Config) string {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.User, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, port),
		Path:     "/" + config.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}
