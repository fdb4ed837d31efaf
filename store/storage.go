package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragchat/types"
)

// DocumentStorer holds document and image metadata.
type DocumentStorer interface {
	InsertDocument(ctx context.Context, path, description string, vectorized bool) (*types.Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)
	MarkVectorized(ctx context.Context, docID int64, value bool) error
	MarkImagesProcessed(ctx context.Context, docID int64, value bool) error
	InsertImage(ctx context.Context, img types.Image) (*types.Image, error)
	GetAllDocumentDescriptions(ctx context.Context) ([]string, error)
	GetAllDocumentPaths(ctx context.Context) ([]string, error)
}

// ChatStorer holds the conversation history of each user.
type ChatStorer interface {
	GetUserChatHistory(ctx context.Context, userID int64) ([]types.ConversationTurn, error)
	InsertMessage(ctx context.Context, userID int64, sender types.Sender, content string) error
}

type DBStorer interface {
	DocumentStorer
	ChatStorer
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

// Pool exposes the connection pool so the vector index can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

const documentColumns = `id, name, format, path, description, vectorized, images_processed, created_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	if err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Format,
		&doc.Path,
		&doc.Description,
		&doc.Vectorized,
		&doc.ImagesProcessed,
		&doc.CreatedAt); err != nil {
		return nil, err
	}
	return doc, nil
}

// InsertDocument is keyed by path: uploading the same file again updates
// the existing row instead of adding a second one.
func (p *PostgresStore) InsertDocument(ctx context.Context, path, description string, vectorized bool) (*types.Document, error) {
	name := filepath.Base(path)
	query := `INSERT INTO documents (name, format, path, description, vectorized)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE SET
			name = EXCLUDED.name,
			format = EXCLUDED.format,
			description = EXCLUDED.description,
			vectorized = EXCLUDED.vectorized,
			images_processed = FALSE
		RETURNING ` + documentColumns

	doc, err := scanDocument(p.pool.QueryRow(ctx, query,
		name,
		strings.ToLower(filepath.Ext(name)),
		path,
		description,
		vectorized,
	))
	if err != nil {
		return nil, fmt.Errorf("insert document %s: %w", path, err)
	}
	p.logger.Info("[STORE] document saved", "id", doc.ID, "path", path)
	return doc, nil
}

func (p *PostgresStore) GetDocumentByPath(ctx context.Context, path string) (*types.Document, error) {
	doc, err := scanDocument(p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = $1`, path))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", path, types.ErrNotFound)
	}
	return doc, err
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) MarkVectorized(ctx context.Context, docID int64, value bool) error {
	return p.setFlag(ctx, "vectorized", docID, value)
}

func (p *PostgresStore) MarkImagesProcessed(ctx context.Context, docID int64, value bool) error {
	return p.setFlag(ctx, "images_processed", docID, value)
}

func (p *PostgresStore) setFlag(ctx context.Context, column string, docID int64, value bool) error {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("UPDATE documents SET %s = $1 WHERE id = $2", column), value, docID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", docID, types.ErrNotFound)
	}
	return nil
}

// InsertImage is keyed by (document, file name).
func (p *PostgresStore) InsertImage(ctx context.Context, img types.Image) (*types.Image, error) {
	query := `INSERT INTO images (document_id, name, format, path, description, page_no)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, name) DO UPDATE SET
			format = EXCLUDED.format,
			path = EXCLUDED.path,
			description = EXCLUDED.description,
			page_no = EXCLUDED.page_no
		RETURNING id`
	if img.Format == "" {
		img.Format = strings.ToLower(filepath.Ext(img.Name))
	}
	if err := p.pool.QueryRow(ctx, query,
		img.DocumentID,
		img.Name,
		img.Format,
		img.Path,
		img.Description,
		img.PageNo,
	).Scan(&img.ID); err != nil {
		return nil, fmt.Errorf("insert image %s: %w", img.Name, err)
	}
	return &img, nil
}

func (p *PostgresStore) GetAllDocumentDescriptions(ctx context.Context) ([]string, error) {
	return p.column(ctx, `SELECT COALESCE(description, '') FROM documents ORDER BY id`)
}

func (p *PostgresStore) GetAllDocumentPaths(ctx context.Context) ([]string, error) {
	return p.column(ctx, `SELECT path FROM documents ORDER BY id`)
}

func (p *PostgresStore) column(ctx context.Context, query string) ([]string, error) {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *PostgresStore) GetUserChatHistory(ctx context.Context, userID int64) ([]types.ConversationTurn, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, sender, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var sender string
		if err := rows.Scan(&t.ID, &sender, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Sender = types.Sender(sender)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (p *PostgresStore) InsertMessage(ctx context.Context, userID int64, sender types.Sender, content string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chat_messages (user_id, sender, content) VALUES ($1, $2, $3)`,
		userID, string(sender), content)
	return err
}

func (p *PostgresStore) createRagTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		format TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		description TEXT,
		vectorized BOOLEAN NOT NULL DEFAULT FALSE,
		images_processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS images (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		format TEXT NOT NULL,
		path TEXT NOT NULL,
		description TEXT,
		page_no INT NOT NULL,
		UNIQUE (document_id, name)
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, created_at);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createRagTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("Postgres connection pool is closed")
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
