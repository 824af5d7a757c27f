package core

import (
	"context"
	"time"

	"github.com/davemk99/embedx/internal/models"
)

// DbClient defines all relational persistence operations the services need.
// It abstracts Postgres/pgx so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	CountDocuments(ctx context.Context) (int, error)
	// MergeDocumentMetadata overlays patch onto the stored metadata; keys not
	// present in patch are preserved.
	MergeDocumentMetadata(ctx context.Context, id string, patch models.Metadata) error
	// DeleteDocument removes the document row; chunks and images cascade.
	DeleteDocument(ctx context.Context, id string) error

	CreateDocumentChunk(ctx context.Context, chunk *models.DocumentChunk) error
	// DeleteChunksByDocument removes every chunk row of the document; re-runs
	// of ingestion start from a clean slate.
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID, embeddingID string) error
	SearchChunksByDocument(ctx context.Context, documentID string, queryVec []float32, limit int) ([]models.DocumentChunk, error)

	CreateDocumentImage(ctx context.Context, img *models.DocumentImage) error
	DeleteImagesByDocument(ctx context.Context, documentID string) error
	GetImagesByDocument(ctx context.Context, documentID string) ([]models.DocumentImage, error)

	Close() error
}

// ObjectClient defines interactions with S3-compatible object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL for the object.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	// Ping verifies the bucket is reachable; batch uploads treat a failure
	// here as fatal for the whole request.
	Ping(ctx context.Context) error
}

// VectorPoint is one record to upsert into the vector index.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload models.Metadata
}

// VectorHit is one vector-search result.
type VectorHit struct {
	ID      string
	Score   float64
	Payload models.Metadata
}

// VectorClient defines the vector-index operations. Filters are conjunctions
// of exact-match conditions; an array value under a key is a disjunction
// across that key only.
type VectorClient interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []VectorPoint) error
	Search(ctx context.Context, vector []float32, limit int, filter map[string]any) ([]VectorHit, error)
	DeleteByFilter(ctx context.Context, filter map[string]any) error
	SetPayloadByFilter(ctx context.Context, filter map[string]any, payload models.Metadata) error
}

// KeywordHit is one full-text search result.
type KeywordHit struct {
	ID     string
	Score  float64
	Source models.Metadata
}

// SearchClient defines the full-text index operations. Documents are keyed by
// the same id as their vector record so hybrid search can merge scores by id.
type SearchClient interface {
	EnsureIndex(ctx context.Context) error
	Index(ctx context.Context, id string, doc models.Metadata) error
	Search(ctx context.Context, query string, limit int, filters map[string]any) ([]KeywordHit, error)
	DeleteByFileID(ctx context.Context, fileID string) error
	// SetActiveByFileID runs a scripted field update over every indexed chunk
	// of the given file.
	SetActiveByFileID(ctx context.Context, fileID string, active bool) error
}

// EmbeddingProvider turns text into fixed-length vectors. Deterministic for
// identical input and model version.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string, dim int) ([][]float32, error)
}
