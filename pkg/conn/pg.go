// Package conn holds shared connection helpers for external services.
package conn

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Database           string `yaml:"database"`
	SSLMode            string `yaml:"ssl_mode"`
	ConnString         string `yaml:"conn_string"` // overrides all of the above
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_seconds"`
	LogQueries         bool   `yaml:"log_queries"`
}

// PostgresClient wraps a PostgreSQL connection pool.
type PostgresClient struct {
	cfg PostgresConfig
	db  *gorm.DB
}

// NewPostgres creates a PostgreSQL client from the provided settings.
func NewPostgres(cfg PostgresConfig) (*PostgresClient, error) {
	logLevel := logger.Silent
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeSec > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeSec) * time.Second)
	}

	return &PostgresClient{cfg: cfg, db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *PostgresClient) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *PostgresClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (cfg PostgresConfig) dsn() string {
	if cfg.ConnString != "" {
		return cfg.ConnString
	}

	host := cfg.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	if cfg.Database != "" {
		u.Path = "/" + cfg.Database
	}
	u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()

	return u.String()
}
