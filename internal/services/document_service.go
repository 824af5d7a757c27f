package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/core/extract"
	"github.com/davemk99/embedx/internal/models"
)

// embedConcurrency caps how many documents of a batch are processed at once.
const embedConcurrency = 4

// downloadURLTTL bounds the lifetime of presigned download links.
const downloadURLTTL = 15 * time.Minute

// FileUpload is one incoming file of a batch upload.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentService owns the document lifecycle across all four stores. Writes
// that span stores run saga-style: every store is attempted, failures are
// reported per store, nothing is rolled back.
type DocumentService struct {
	db       core.DbClient
	storage  core.ObjectClient
	vector   core.VectorClient
	search   core.SearchClient
	embedder core.EmbeddingProvider
	ingest   *IngestService

	embedDim      int
	enableHybrid  bool
	vectorWeight  float64
	keywordWeight float64
}

func NewDocumentService(
	db core.DbClient,
	storage core.ObjectClient,
	vector core.VectorClient,
	search core.SearchClient,
	embedder core.EmbeddingProvider,
	ingest *IngestService,
	embedDim int,
	enableHybrid bool,
	vectorWeight, keywordWeight float64,
) *DocumentService {
	return &DocumentService{
		db:            db,
		storage:       storage,
		vector:        vector,
		search:        search,
		embedder:      embedder,
		ingest:        ingest,
		embedDim:      embedDim,
		enableHybrid:  enableHybrid,
		vectorWeight:  vectorWeight,
		keywordWeight: keywordWeight,
	}
}

// UploadBatch stores each file and records it. An unreachable bucket fails the
// whole batch up front; after that, files fail individually.
func (s *DocumentService) UploadBatch(ctx context.Context, files []FileUpload) (*models.UploadBatchResult, error) {
	if err := s.storage.Ping(ctx); err != nil {
		return nil, err
	}

	result := &models.UploadBatchResult{
		Successful: []models.UploadedFile{},
		Failed:     []models.FailedFile{},
	}
	for _, f := range files {
		uploaded, err := s.uploadOne(ctx, f)
		if err != nil {
			result.Failed = append(result.Failed, models.FailedFile{
				Filename: f.Filename,
				Error:    err.Error(),
			})
			continue
		}
		result.Successful = append(result.Successful, *uploaded)
	}
	result.TotalUploaded = len(result.Successful)
	return result, nil
}

func (s *DocumentService) uploadOne(ctx context.Context, f FileUpload) (*models.UploadedFile, error) {
	kind := extract.ClassifyContentType(f.ContentType)
	if kind == extract.KindUnsupported {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedContentType, f.ContentType)
	}

	docID := uuid.NewString()
	key := s.objectKey(kind, docID, f.Filename)

	storagePath, err := s.storage.UploadFile(ctx, key, f.Data, f.ContentType, map[string]string{
		"file_id":  docID,
		"filename": f.Filename,
	})
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          docID,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		StoragePath: &storagePath,
		Metadata:    models.Metadata{"active": true},
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return &models.UploadedFile{
		FileID:      docID,
		Filename:    f.Filename,
		StoragePath: &storagePath,
		ContentType: f.ContentType,
	}, nil
}

// objectKey groups stored files by content kind so the bucket stays browsable.
func (s *DocumentService) objectKey(kind extract.ContentKind, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("documents", kind.String(), docID+"_"+filename)
}

// BatchEmbed fetches each uploaded file back from storage and runs the full
// ingestion pipeline on it. Documents are processed concurrently; every one is
// attempted even when siblings fail.
func (s *DocumentService) BatchEmbed(ctx context.Context, fileIDs []string) (*models.ProcessBatchResult, error) {
	result := &models.ProcessBatchResult{
		Successful: []models.IngestResult{},
		Failed:     []models.FailedFile{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, fileID := range fileIDs {
		g.Go(func() error {
			res, err := s.embedOne(gctx, fileID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, models.FailedFile{
					FileID: fileID,
					Error:  err.Error(),
				})
				return nil
			}
			result.Successful = append(result.Successful, *res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.TotalProcessed = len(result.Successful)
	for _, r := range result.Successful {
		result.TotalChunks += r.Chunks
	}
	return result, nil
}

func (s *DocumentService) embedOne(ctx context.Context, fileID string) (*models.IngestResult, error) {
	doc, err := s.db.GetDocumentByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.ErrNotFound
	}
	if doc.StoragePath == nil {
		return nil, fmt.Errorf("document %s has no stored file", fileID)
	}

	data, err := s.storage.GetFile(ctx, *doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("fetch stored file: %w", err)
	}
	return s.ingest.ProcessDocument(ctx, doc, data)
}

// LocalEmbed ingests files straight from the server filesystem, skipping
// object storage. The documents are marked local so they can only be removed
// through the local delete path.
func (s *DocumentService) LocalEmbed(ctx context.Context, paths []string) (*models.ProcessBatchResult, error) {
	result := &models.ProcessBatchResult{
		Successful: []models.IngestResult{},
		Failed:     []models.FailedFile{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for _, filePath := range paths {
		g.Go(func() error {
			res, err := s.localEmbedOne(gctx, filePath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, models.FailedFile{
					FilePath: filePath,
					Error:    err.Error(),
				})
				return nil
			}
			result.Successful = append(result.Successful, *res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.TotalProcessed = len(result.Successful)
	for _, r := range result.Successful {
		result.TotalChunks += r.Chunks
	}
	return result, nil
}

func (s *DocumentService) localEmbedOne(ctx context.Context, filePath string) (*models.IngestResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read local file: %w", err)
	}

	contentType := extract.ContentTypeForPath(filePath)
	if extract.ClassifyContentType(contentType) == extract.KindUnsupported {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedContentType, filepath.Ext(filePath))
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		Filename:    filepath.Base(filePath),
		ContentType: contentType,
		Metadata: models.Metadata{
			"active":     true,
			"local_file": true,
			"local_path": filePath,
		},
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	res, err := s.ingest.ProcessDocument(ctx, doc, data)
	if err != nil {
		return nil, err
	}
	res.FilePath = filePath
	return res, nil
}

// DeleteDocument removes a document from every store it lives in. Each store
// is attempted regardless of earlier failures and the per-store outcomes are
// returned.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) (core.MultiStoreResult, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.ErrNotFound
	}
	return s.deleteStores(ctx, doc), nil
}

func (s *DocumentService) deleteStores(ctx context.Context, doc *models.Document) core.MultiStoreResult {
	var result core.MultiStoreResult

	result = append(result, core.StoreResult{
		Store: "vector database",
		Err:   s.vector.DeleteByFilter(ctx, map[string]any{"file_id": doc.ID}),
	})
	result = append(result, core.StoreResult{
		Store: "search index",
		Err:   s.search.DeleteByFileID(ctx, doc.ID),
	})
	if doc.StoragePath != nil {
		result = append(result, core.StoreResult{
			Store: "storage",
			Err:   s.storage.DeleteFile(ctx, *doc.StoragePath),
		})
	}
	result = append(result, core.StoreResult{
		Store: "database",
		Err:   s.db.DeleteDocument(ctx, doc.ID),
	})
	return result
}

// DeleteBatch deletes each document fully or reports what failed. A document
// with any failed store lands in the failed list with a partial message.
func (s *DocumentService) DeleteBatch(ctx context.Context, ids []string) (*models.DeleteBatchResult, error) {
	return s.deleteBatch(ctx, ids, false)
}

// DeleteLocalBatch is DeleteBatch restricted to locally-ingested documents.
func (s *DocumentService) DeleteLocalBatch(ctx context.Context, ids []string) (*models.DeleteBatchResult, error) {
	return s.deleteBatch(ctx, ids, true)
}

func (s *DocumentService) deleteBatch(ctx context.Context, ids []string, localOnly bool) (*models.DeleteBatchResult, error) {
	result := &models.DeleteBatchResult{
		Successful: []models.DeletedDocument{},
		Failed:     []models.FailedFile{},
	}
	for _, id := range ids {
		doc, err := s.db.GetDocumentByID(ctx, id)
		if err != nil {
			result.Failed = append(result.Failed, models.FailedFile{FileID: id, Error: err.Error()})
			continue
		}
		if doc == nil {
			result.Failed = append(result.Failed, models.FailedFile{FileID: id, Error: core.ErrNotFound.Error()})
			continue
		}
		if localOnly {
			if isLocal, _ := doc.Metadata["local_file"].(bool); !isLocal {
				result.Failed = append(result.Failed, models.FailedFile{FileID: id, Error: "not a locally ingested document"})
				continue
			}
		}

		stores := s.deleteStores(ctx, doc)
		if !stores.OK() {
			result.Failed = append(result.Failed, models.FailedFile{
				FileID: id,
				Error:  stores.FailureMessage("deleted"),
			})
			continue
		}
		result.Successful = append(result.Successful, models.DeletedDocument{
			ID:      id,
			Message: "Document deleted from all stores",
		})
	}
	result.TotalDeleted = len(result.Successful)
	return result, nil
}

// ToggleStatus flips the document's active flag in the database, vector index
// and search index. A missing flag counts as active. Returns the new state
// along with the per-store outcomes.
func (s *DocumentService) ToggleStatus(ctx context.Context, id string) (bool, core.MultiStoreResult, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	if doc == nil {
		return false, nil, core.ErrNotFound
	}

	current := true
	if v, ok := doc.Metadata["active"].(bool); ok {
		current = v
	}
	newActive := !current

	var result core.MultiStoreResult
	result = append(result, core.StoreResult{
		Store: "database",
		Err:   s.db.MergeDocumentMetadata(ctx, id, models.Metadata{"active": newActive}),
	})
	result = append(result, core.StoreResult{
		Store: "vector database",
		Err:   s.vector.SetPayloadByFilter(ctx, map[string]any{"file_id": id}, models.Metadata{"active": newActive}),
	})
	result = append(result, core.StoreResult{
		Store: "search index",
		Err:   s.search.SetActiveByFileID(ctx, id, newActive),
	})
	return newActive, result, nil
}

// HybridSearch embeds the query, runs vector and keyword search, and merges
// the two rankings by id with a weighted sum. Only hits whose payload carries
// active == true survive; keyword-only hits that near-duplicate an existing
// hit's text are suppressed.
func (s *DocumentService) HybridSearch(ctx context.Context, query string, limit int, filters map[string]any) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query}, s.embedDim)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}

	vectorFilter := map[string]any{"active": true}
	for k, v := range filters {
		vectorFilter[k] = v
	}
	vectorHits, err := s.vector.Search(ctx, vecs[0], limit, vectorFilter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	merged := make(map[string]*models.SearchHit, len(vectorHits))
	order := make([]string, 0, len(vectorHits))
	for _, h := range vectorHits {
		merged[h.ID] = &models.SearchHit{
			ID:       h.ID,
			Text:     payloadText(h.Payload),
			Score:    h.Score * s.vectorWeight,
			Source:   "vector",
			Metadata: h.Payload,
		}
		order = append(order, h.ID)
	}

	if s.enableHybrid {
		// A keyword-index outage degrades to the vector ranking instead of
		// failing the search.
		keywordHits, err := s.search.Search(ctx, query, limit*2, vectorFilter)
		if err != nil {
			log.Printf("keyword search for %q: %v", query, err)
			keywordHits = nil
		}
		for _, h := range keywordHits {
			if existing, ok := merged[h.ID]; ok {
				existing.Score += h.Score * s.keywordWeight
				existing.Source = "hybrid"
				continue
			}
			text := payloadText(h.Source)
			if s.nearDuplicate(text, merged) {
				continue
			}
			merged[h.ID] = &models.SearchHit{
				ID:       h.ID,
				Text:     text,
				Score:    h.Score * s.keywordWeight,
				Source:   "keyword",
				Metadata: h.Source,
			}
			order = append(order, h.ID)
		}
	}

	hits := make([]models.SearchHit, 0, len(merged))
	for _, id := range order {
		hit := merged[id]
		if active, ok := hit.Metadata["active"].(bool); !ok || !active {
			continue
		}
		hits = append(hits, *hit)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *DocumentService) nearDuplicate(text string, merged map[string]*models.SearchHit) bool {
	for _, hit := range merged {
		if extract.IsSimilar(text, hit.Text, extract.SimilarityThreshold) {
			return true
		}
	}
	return false
}

func payloadText(md models.Metadata) string {
	if text, ok := md["text"].(string); ok {
		return text
	}
	return ""
}

// ListDocuments returns a page of documents with the overall count.
func (s *DocumentService) ListDocuments(ctx context.Context, limit, offset int) (*models.DocumentList, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.db.ListDocuments(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.db.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DocumentList{
		Documents: docs,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// GetDocument returns one document with its chunk count and extracted images.
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.DocumentDetail, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.ErrNotFound
	}

	chunks, err := s.db.GetChunksByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	images, err := s.db.GetImagesByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &models.DocumentDetail{
		Document:   *doc,
		ChunkCount: len(chunks),
		Chunks:     chunks,
		Images:     images,
	}
	if doc.StoragePath != nil {
		url, err := s.storage.PresignGet(ctx, *doc.StoragePath, downloadURLTTL)
		if err != nil {
			log.Printf("presign download for %s: %v", id, err)
		} else {
			detail.DownloadURL = url
		}
	}
	return detail, nil
}

// SimilarChunks answers "what in this document is closest to this text" from
// the embeddings mirrored in Postgres, without touching the vector index.
func (s *DocumentService) SimilarChunks(ctx context.Context, documentID, query string, limit int) ([]models.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, core.ErrNotFound
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query}, s.embedDim)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}
	return s.db.SearchChunksByDocument(ctx, documentID, vecs[0], limit)
}
