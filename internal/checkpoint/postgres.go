package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ent0n29/ava/internal/graph"
)

// PostgresStore persists checkpoints as JSONB rows keyed by session id.
type PostgresStore struct {
	pool *pgxpool.Pool

	schemaMu sync.Mutex
	schemaOK bool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaOK {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			session_id TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create session_checkpoints: %w", err)
	}
	s.schemaOK = true
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (graph.State, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return graph.State{}, false, err
	}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM session_checkpoints WHERE session_id = $1`,
		sessionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return graph.State{}, false, nil
	}
	if err != nil {
		return graph.State{}, false, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}
	var st graph.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return graph.State{}, false, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	return st, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, st graph.State) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", sessionID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO session_checkpoints (session_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		sessionID, raw,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM session_checkpoints WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
