package checkpoint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/graph"
)

// Store is the full checkpoint contract. graph.Checkpointer is the subset
// the engine needs; Delete and Close stay here for session management.
type Store interface {
	graph.Checkpointer
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// Options selects and configures a checkpoint backend.
type Options struct {
	// Backend is one of "auto", "postgres", "redis", "memory".
	Backend     string
	DatabaseURL string
	RedisURL    string
	RedisTTL    time.Duration
}

// NewStore builds the configured backend. "auto" prefers redis when a
// REDIS_URL is present, then postgres, then in-process.
func NewStore(ctx context.Context, opts Options, log *zap.Logger) (Store, error) {
	backend := opts.Backend
	if backend == "" || backend == "auto" {
		switch {
		case opts.RedisURL != "":
			backend = "redis"
		case opts.DatabaseURL != "":
			backend = "postgres"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "redis":
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis checkpoint backend requires a redis URL")
		}
		log.Info("checkpoint store: redis", zap.Duration("ttl", opts.RedisTTL))
		return NewRedisStore(ctx, opts.RedisURL, opts.RedisTTL)
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres checkpoint backend requires a database URL")
		}
		log.Info("checkpoint store: postgres")
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case "memory":
		log.Info("checkpoint store: in-process")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend %q", backend)
	}
}
