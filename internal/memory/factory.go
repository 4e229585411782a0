package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/embedding"
)

// Options selects and configures a store backend.
type Options struct {
	// Backend is one of "auto", "postgres", "chromem", "memory".
	Backend     string
	DatabaseURL string
	ChromemPath string
}

// NewStore builds the configured backend. "auto" prefers postgres when a
// DATABASE_URL is present, then a persistent chromem path, then in-process.
func NewStore(ctx context.Context, opts Options, embedder embedding.Embedder, log *zap.Logger) (Store, error) {
	backend := opts.Backend
	if backend == "" || backend == "auto" {
		switch {
		case opts.DatabaseURL != "":
			backend = "postgres"
		case opts.ChromemPath != "":
			backend = "chromem"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres memory backend requires a database URL")
		}
		log.Info("memory store: postgres", zap.String("backend", backend))
		return NewPostgresStore(ctx, opts.DatabaseURL, embedder)
	case "chromem":
		log.Info("memory store: chromem", zap.String("path", opts.ChromemPath))
		return NewChromemStore(opts.ChromemPath, embedder)
	case "memory":
		log.Info("memory store: in-process")
		return NewInMemoryStore(embedder), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend %q", backend)
	}
}
