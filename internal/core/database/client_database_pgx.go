package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davemk99/embedx/internal/config"
	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func marshalMetadata(m models.Metadata) ([]byte, error) {
	if m == nil {
		m = models.Metadata{}
	}
	return json.Marshal(m)
}

func unmarshalMetadata(raw []byte) models.Metadata {
	m := models.Metadata{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO documents (id, filename, content_type, storage_path, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	var createdAt any
	if !doc.CreatedAt.IsZero() {
		createdAt = doc.CreatedAt
	}
	_, err = c.db.ExecContext(ctx, q,
		doc.ID, doc.Filename, doc.ContentType, doc.StoragePath, meta, createdAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, filename, content_type, storage_path, metadata, created_at
		FROM documents
		WHERE id = $1
	`
	var (
		d       models.Document
		rawMeta []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.Filename, &d.ContentType, &d.StoragePath, &rawMeta, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Metadata = unmarshalMetadata(rawMeta)
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	const q = `
		SELECT id, filename, content_type, storage_path, metadata, created_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := c.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var (
			d       models.Document
			rawMeta []byte
		)
		if err := rows.Scan(
			&d.ID, &d.Filename, &d.ContentType, &d.StoragePath, &rawMeta, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Metadata = unmarshalMetadata(rawMeta)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// MergeDocumentMetadata overlays patch onto the stored JSONB; existing keys
// absent from patch are preserved.
func (c *DatabaseClient) MergeDocumentMetadata(ctx context.Context, id string, patch models.Metadata) error {
	raw, err := marshalMetadata(patch)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}
	const q = `
		UPDATE documents
		SET metadata = metadata || $2::jsonb
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, raw)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

// Implementing the db interface for Document Chunks

func (c *DatabaseClient) CreateDocumentChunk(ctx context.Context, chunk *models.DocumentChunk) error {
	if chunk == nil {
		return errors.New("nil chunk")
	}
	meta, err := marshalMetadata(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	// Embedding []float32 maps to pgvector via pgx stdlib; nil stays NULL.
	var vec any
	if len(chunk.Embedding) > 0 {
		vec = pgvector.NewVector(chunk.Embedding)
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, chunk_index, text, page_number, embedding_id, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	var createdAt any
	if !chunk.CreatedAt.IsZero() {
		createdAt = chunk.CreatedAt
	}
	_, err = c.db.ExecContext(ctx, q,
		chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Text, chunk.PageNumber,
		chunk.EmbeddingID, vec, meta, createdAt)
	return err
}

// DeleteChunksByDocument drops every chunk row of the document. Ingestion
// calls it before persisting so re-runs never collide on chunk_index.
func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, chunk_index, text, page_number, embedding_id, metadata, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch      models.DocumentChunk
			rawMeta []byte
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Text, &ch.PageNumber,
			&ch.EmbeddingID, &rawMeta, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		ch.Metadata = unmarshalMetadata(rawMeta)
		out = append(out, ch)
	}
	return out, rows.Err()
}

// UpdateChunkEmbedding sets the chunk's vector id after the vector write
// succeeded. Set exactly once per chunk.
func (c *DatabaseClient) UpdateChunkEmbedding(ctx context.Context, chunkID, embeddingID string) error {
	const q = `
		UPDATE document_chunks
		SET embedding_id = $2
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, chunkID, embeddingID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chunk not found: %s", chunkID)
	}
	return nil
}

// SearchChunksByDocument finds top-k similar chunks within a document for a
// query embedding, served straight from the pgvector column. Cosine distance,
// matching the vector index metric.
func (c *DatabaseClient) SearchChunksByDocument(ctx context.Context, documentID string, queryVec []float32, limit int) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, document_id, chunk_index, text, page_number, embedding_id, embedding, metadata
		FROM document_chunks
		WHERE document_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, documentID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch      models.DocumentChunk
			emb     pgvector.Vector
			rawMeta []byte
		)
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Text, &ch.PageNumber,
			&ch.EmbeddingID, &emb, &rawMeta,
		); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		ch.Metadata = unmarshalMetadata(rawMeta)
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Implementing the db interface for Document Images

func (c *DatabaseClient) CreateDocumentImage(ctx context.Context, img *models.DocumentImage) error {
	if img == nil {
		return errors.New("nil image")
	}
	meta, err := marshalMetadata(img.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO document_images
			(id, document_id, page_number, image_index, width, height, format, storage_path, ocr_text, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
	`
	var createdAt any
	if !img.CreatedAt.IsZero() {
		createdAt = img.CreatedAt
	}
	_, err = c.db.ExecContext(ctx, q,
		img.ID, img.DocumentID, img.PageNumber, img.ImageIndex, img.Width, img.Height,
		img.Format, img.StoragePath, img.OCRText, meta, createdAt)
	return err
}

func (c *DatabaseClient) DeleteImagesByDocument(ctx context.Context, documentID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM document_images WHERE document_id = $1`, documentID)
	return err
}

func (c *DatabaseClient) GetImagesByDocument(ctx context.Context, documentID string) ([]models.DocumentImage, error) {
	const q = `
		SELECT id, document_id, page_number, image_index, width, height, format, storage_path, ocr_text, metadata, created_at
		FROM document_images
		WHERE document_id = $1
		ORDER BY page_number ASC, image_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentImage
	for rows.Next() {
		var (
			img     models.DocumentImage
			rawMeta []byte
		)
		if err := rows.Scan(
			&img.ID, &img.DocumentID, &img.PageNumber, &img.ImageIndex, &img.Width, &img.Height,
			&img.Format, &img.StoragePath, &img.OCRText, &rawMeta, &img.CreatedAt,
		); err != nil {
			return nil, err
		}
		img.Metadata = unmarshalMetadata(rawMeta)
		out = append(out, img)
	}
	return out, rows.Err()
}
