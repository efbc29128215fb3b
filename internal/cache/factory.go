package cache

import (
	"context"
	"fmt"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/storage"
	"github.com/FranksOps/rival/internal/storage/jsonbackend"
	"github.com/FranksOps/rival/internal/storage/memory"
	"github.com/FranksOps/rival/internal/storage/postgres"
	"github.com/FranksOps/rival/internal/storage/redisbackend"
	"github.com/FranksOps/rival/internal/storage/sqlite"
)

// BackendConfig selects and addresses a storage driver.
type BackendConfig struct {
	// Driver is one of memory, sqlite, postgres, redis, json.
	Driver string
	// DSN is a file path for sqlite and json, a connection string for
	// postgres and a redis:// URL for redis.
	DSN string
	// Prefix namespaces redis keys.
	Prefix string
}

// OpenBackend creates the backend named by cfg.Driver.
func OpenBackend(ctx context.Context, cfg BackendConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil

	case "sqlite":
		if cfg.DSN == "" {
			return nil, fault.Newf(fault.KindConfiguration, "open backend", "sqlite requires a database path")
		}
		return sqlite.New(cfg.DSN)

	case "postgres":
		if cfg.DSN == "" {
			return nil, fault.Newf(fault.KindConfiguration, "open backend", "postgres requires a DSN")
		}
		return postgres.New(ctx, cfg.DSN)

	case "redis":
		if cfg.DSN == "" {
			return nil, fault.Newf(fault.KindConfiguration, "open backend", "redis requires a redis:// URL")
		}
		return redisbackend.Dial(ctx, cfg.DSN, cfg.Prefix)

	case "json":
		if cfg.DSN == "" {
			return nil, fault.Newf(fault.KindConfiguration, "open backend", "json requires a file path")
		}
		return jsonbackend.New(cfg.DSN)

	default:
		return nil, fault.New(fault.KindConfiguration, "open backend", fmt.Errorf("unknown storage driver %q", cfg.Driver))
	}
}
