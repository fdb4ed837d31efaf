package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragchat/types"
)

// PgVector keeps one table per logical index; namespaces are a column.
type PgVector struct {
	pool   *pgxpool.Pool
	table  string
	dim    int
	logger *slog.Logger
}

func NewPgVector(pool *pgxpool.Pool, table string, dim int, logger *slog.Logger) *PgVector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgVector{
		pool:   pool,
		table:  table,
		dim:    dim,
		logger: logger,
	}
}

func (p *PgVector) ident() string {
	return pgx.Identifier{p.table}.Sanitize()
}

func (p *PgVector) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, p.schema())
	return err
}

// schema uses an HNSW index: unlike ivfflat it needs no training rows and
// keeps recall on small tables.
func (p *PgVector) schema() string {
	return fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		embedding vector(%[2]d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	DROP INDEX IF EXISTS %[3]s;
	CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s USING hnsw (embedding vector_cosine_ops);

	CREATE INDEX IF NOT EXISTS %[5]s ON %[1]s(namespace);
	`, p.ident(), p.dim,
		pgx.Identifier{"idx_" + p.table + "_embedding"}.Sanitize(),
		pgx.Identifier{"idx_" + p.table + "_embedding_hnsw"}.Sanitize(),
		pgx.Identifier{"idx_" + p.table + "_namespace"}.Sanitize())
}

func (p *PgVector) Upsert(ctx context.Context, namespace string, records []types.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (id, namespace, embedding, metadata)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		namespace = EXCLUDED.namespace,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata
	`, p.ident())

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Vector) != p.dim {
			return fmt.Errorf("%w: record %s has %d dims, index %s expects %d", types.ErrInvalidArgument, r.ID, len(r.Vector), p.table, p.dim)
		}
		batch.Queue(query, r.ID, namespace, pgvector.NewVector(r.Vector), r.Metadata)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return types.NewExternalServiceError("pgvector", "upsert", err)
	}
	return nil
}

func (p *PgVector) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]types.Hit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", types.ErrInvalidArgument)
	}
	query := fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE namespace = $2
		ORDER BY embedding <=> $1, id
		LIMIT $3
	`, p.ident())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), namespace, topK)
	if err != nil {
		return nil, types.NewExternalServiceError("pgvector", "query", err)
	}
	defer rows.Close()

	var hits []types.Hit
	for rows.Next() {
		var h types.Hit
		if err := rows.Scan(&h.ID, &h.Metadata, &h.Score); err != nil {
			return nil, err
		}
		p.logger.Debug("[SEARCH] hit", "index", p.table, "id", h.ID, "score", h.Score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewExternalServiceError("pgvector", "query", err)
	}
	return hits, nil
}
