package models

import (
	"time"
)

// Metadata is the open key-value map carried by documents and chunks.
// It always contains "active" and "file_id" once a document is ingested.
type Metadata map[string]any

// Copy returns a shallow copy so per-chunk additions never leak into the
// document-level map.
func (m Metadata) Copy() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document represents an uploaded or locally-ingested file.
type Document struct {
	ID          string    `db:"id" json:"id"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType string    `db:"content_type" json:"content_type"`
	StoragePath *string   `db:"storage_path" json:"storage_path"` // nil for local-path ingestion
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk represents one text chunk of a document.
//
// EmbeddingID is nil until the vector write succeeds; Embedding mirrors the
// vector stored in the index so per-document similarity can be answered from
// Postgres directly.
type DocumentChunk struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	Text        string    `db:"text" json:"text"`
	PageNumber  *int      `db:"page_number" json:"page_number,omitempty"`
	EmbeddingID *string   `db:"embedding_id" json:"embedding_id,omitempty"`
	Embedding   []float32 `db:"embedding" json:"-"` // pgvector column
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DocumentImage is an image extracted from a PDF page.
type DocumentImage struct {
	ID          string    `db:"id" json:"id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	PageNumber  int       `db:"page_number" json:"page_number"`
	ImageIndex  int       `db:"image_index" json:"image_index"`
	Width       *int      `db:"width" json:"width,omitempty"`
	Height      *int      `db:"height" json:"height,omitempty"`
	Format      string    `db:"format" json:"format"`
	StoragePath *string   `db:"storage_path" json:"storage_path,omitempty"` // nil if upload failed
	OCRText     *string   `db:"ocr_text" json:"ocr_text,omitempty"`
	Metadata    Metadata  `db:"metadata" json:"metadata"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UploadedFile describes one successfully uploaded file in a batch.
type UploadedFile struct {
	FileID      string  `json:"file_id"`
	Filename    string  `json:"filename"`
	StoragePath *string `json:"storage_path"`
	ContentType string  `json:"content_type"`
}

// FailedFile describes one failed file in a batch.
type FailedFile struct {
	Filename string `json:"filename,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Error    string `json:"error"`
}

// UploadBatchResult is the aggregate response for a batch upload.
type UploadBatchResult struct {
	Successful    []UploadedFile `json:"successful"`
	Failed        []FailedFile   `json:"failed"`
	TotalUploaded int            `json:"total_uploaded"`
}

// IngestResult is the per-document outcome of ingestion.
type IngestResult struct {
	FileID     string   `json:"file_id"`
	FilePath   string   `json:"file_path,omitempty"`
	Filename   string   `json:"filename"`
	Chunks     int      `json:"chunks"`
	VectorIDs  []string `json:"vector_ids"`
	ImageCount int      `json:"images,omitempty"`
}

// ProcessBatchResult aggregates per-document ingestion outcomes.
type ProcessBatchResult struct {
	Successful     []IngestResult `json:"successful"`
	Failed         []FailedFile   `json:"failed"`
	TotalProcessed int            `json:"total_processed"`
	TotalChunks    int            `json:"total_chunks"`
}

// DeletedDocument reports one fully-deleted document.
type DeletedDocument struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// DeleteBatchResult aggregates per-document delete outcomes.
type DeleteBatchResult struct {
	Successful   []DeletedDocument `json:"successful"`
	Failed       []FailedFile      `json:"failed"`
	TotalDeleted int               `json:"total_deleted"`
}

// SearchHit is one hybrid-search result.
type SearchHit struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Source   string   `json:"source"` // "vector", "keyword" or "hybrid"
	Metadata Metadata `json:"metadata"`
}

// DocumentDetail is a single document with its chunks and extracted images.
// DownloadURL is a short-lived presigned link to the stored file, empty for
// locally-ingested documents.
type DocumentDetail struct {
	Document    Document        `json:"document"`
	ChunkCount  int             `json:"chunk_count"`
	Chunks      []DocumentChunk `json:"chunks"`
	Images      []DocumentImage `json:"images"`
	DownloadURL string          `json:"download_url,omitempty"`
}

// DocumentList is a paged listing of documents.
type DocumentList struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}
