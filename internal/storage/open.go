package storage

import (
	"context"
	"fmt"

	"github.com/hperssn/focusflow/internal/config"
)

// Open builds the repository selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryRepository(), nil
	case "sqlite":
		return NewSQLiteRepository(cfg.DSN.Value())
	case "postgres":
		return NewPostgresRepository(cfg.DSN.Value())
	case "mongo":
		return NewMongoRepository(ctx, cfg.DSN.Value(), cfg.Database)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
