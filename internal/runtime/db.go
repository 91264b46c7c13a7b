package runtime

import (
	"fmt"

	"github.com/mohammad-safakhou/seeker/config"
)

// BuildPostgresDSN constructs a DSN from the application configuration.
func BuildPostgresDSN(cfg *config.Config) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("config is nil")
	}
	p := cfg.Storage.Postgres
	if p.Host == "" && p.URL == "" {
		return "", fmt.Errorf("postgres configuration incomplete: host/dbname or url required")
	}
	return p.DSN(), nil
}
