package store

import (
	"github.com/yanun0323/errors"

	"stratmgr/pkg/conn"
)

// Config selects and parameterizes the store backend.
type Config struct {
	Backend  string              `yaml:"backend"` // "memory" or "postgres"
	Postgres conn.PostgresConfig `yaml:"postgres"`
}

// New creates a store bundle from the configuration. An empty backend means
// memory. The returned closer is a no-op for the memory backend.
func New(cfg Config) (*Store, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), func() error { return nil }, nil
	case "postgres":
		client, err := conn.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect postgres")
		}
		s, err := NewGorm(client.DB())
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil
	default:
		return nil, nil, errors.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
