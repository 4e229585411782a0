package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/ent0n29/ava/internal/embedding"
)

// PostgresStore persists long-term facts in PostgreSQL with pgvector KNN.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embedding.Embedder
	dedup    *textLocks

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgresStore(ctx context.Context, databaseURL string, embedder embedding.Embedder) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{
		pool:     pool,
		embedder: embedder,
		dedup:    newTextLocks(),
	}, nil
}

// ensureSchema lazily creates the table, sized to the embedder's
// dimensionality observed from a probe embedding.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}

	dim := s.embedder.Dim()
	if dim <= 0 {
		probe, err := s.embedder.Embed(ctx, "dimension probe")
		if err != nil {
			return fmt.Errorf("probe embedding: %w", err)
		}
		dim = len(probe)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS long_term_memory (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			embedding vector(%d) NOT NULL
		);`, dim),
		`CREATE INDEX IF NOT EXISTS idx_long_term_memory_source ON long_term_memory (source);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) StoreFact(ctx context.Context, text string, meta Metadata) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	l := s.dedup.lock(normalizedHash(text))
	defer l.Unlock()

	similar, err := s.FindSimilar(ctx, text)
	if err != nil {
		return err
	}
	if similar != nil && similar.Metadata.ID != "" {
		meta.ID = similar.Metadata.ID
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed fact: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO long_term_memory (id, text, source, created_at, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET text = EXCLUDED.text,
		     source = EXCLUDED.source,
		     created_at = EXCLUDED.created_at,
		     embedding = EXCLUDED.embedding`,
		meta.ID,
		text,
		string(meta.Source),
		meta.Timestamp,
		pgvector.NewVector(vec),
	)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, query string, k int, filter *Filter) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	target := pgvector.NewVector(qvec)

	// Cosine distance (<=>) is 1 - cosine similarity.
	sql := `SELECT id, text, source, created_at, 1 - (embedding <=> $1) AS score
		FROM long_term_memory`
	args := []any{target}
	if filter != nil && filter.Source != "" {
		sql += ` WHERE source = $2`
		args = append(args, string(filter.Source))
	}
	sql += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, k)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, k)
	for rows.Next() {
		var rec Record
		var source string
		if err := rows.Scan(&rec.Metadata.ID, &rec.Text, &source, &rec.Metadata.Timestamp, &rec.Score); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		rec.Metadata.Source = Source(source)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindSimilar(ctx context.Context, text string) (*Record, error) {
	results, err := s.Search(ctx, text, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0].Score < SimilarityThreshold {
		return nil, nil
	}
	rec := results[0]
	return &rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
