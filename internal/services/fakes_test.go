package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/models"
)

type fakeDB struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	chunks map[string][]*models.DocumentChunk
	images map[string][]models.DocumentImage

	failChunkIndex int // chunk_index whose insert fails; -1 disables
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		docs:           make(map[string]*models.Document),
		chunks:         make(map[string][]*models.DocumentChunk),
		images:         make(map[string][]models.DocumentImage),
		failChunkIndex: -1,
	}
}

func (f *fakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}

func (f *fakeDB) ListDocuments(_ context.Context, limit, offset int) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Document
	for _, d := range f.docs {
		out = append(out, *d)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) CountDocuments(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs), nil
}

func (f *fakeDB) MergeDocumentMetadata(_ context.Context, id string, patch models.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return core.ErrNotFound
	}
	if doc.Metadata == nil {
		doc.Metadata = models.Metadata{}
	}
	for k, v := range patch {
		doc.Metadata[k] = v
	}
	return nil
}

func (f *fakeDB) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.docs, id)
	delete(f.chunks, id)
	delete(f.images, id)
	return nil
}

func (f *fakeDB) CreateDocumentChunk(_ context.Context, chunk *models.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chunk.ChunkIndex == f.failChunkIndex {
		f.failChunkIndex = -1
		return fmt.Errorf("simulated insert failure")
	}
	// Mirrors the UNIQUE (document_id, chunk_index) constraint.
	for _, c := range f.chunks[chunk.DocumentID] {
		if c.ChunkIndex == chunk.ChunkIndex {
			return fmt.Errorf("duplicate chunk_index %d for %s", chunk.ChunkIndex, chunk.DocumentID)
		}
	}
	f.chunks[chunk.DocumentID] = append(f.chunks[chunk.DocumentID], chunk)
	return nil
}

func (f *fakeDB) DeleteChunksByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, documentID)
	return nil
}

func (f *fakeDB) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DocumentChunk
	for _, c := range f.chunks[documentID] {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeDB) UpdateChunkEmbedding(_ context.Context, chunkID, embeddingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunks := range f.chunks {
		for _, c := range chunks {
			if c.ID == chunkID {
				id := embeddingID
				c.EmbeddingID = &id
				return nil
			}
		}
	}
	return core.ErrNotFound
}

func (f *fakeDB) SearchChunksByDocument(_ context.Context, documentID string, _ []float32, limit int) ([]models.DocumentChunk, error) {
	out, _ := f.GetChunksByDocument(context.Background(), documentID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDB) CreateDocumentImage(_ context.Context, img *models.DocumentImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[img.DocumentID] = append(f.images[img.DocumentID], *img)
	return nil
}

func (f *fakeDB) DeleteImagesByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.images, documentID)
	return nil
}

func (f *fakeDB) GetImagesByDocument(_ context.Context, documentID string) ([]models.DocumentImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[documentID], nil
}

func (f *fakeDB) Close() error { return nil }

type fakeObject struct {
	mu      sync.Mutex
	files   map[string][]byte
	pingErr error
}

func newFakeObject() *fakeObject {
	return &fakeObject{files: make(map[string][]byte)}
}

func (f *fakeObject) Ping(_ context.Context) error { return f.pingErr }

func (f *fakeObject) UploadFile(_ context.Context, key string, data []byte, _ string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return key, nil
}

func (f *fakeObject) GetFile(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("no such object %q", key)
	}
	return data, nil
}

func (f *fakeObject) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (f *fakeObject) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

type fakeVector struct {
	mu     sync.Mutex
	points map[string]core.VectorPoint

	searchHits []core.VectorHit // canned results; nil derives from points
	deleteErr  error
}

func newFakeVector() *fakeVector {
	return &fakeVector{points: make(map[string]core.VectorPoint)}
}

func (f *fakeVector) EnsureCollection(_ context.Context, _ int) error { return nil }

func (f *fakeVector) Upsert(_ context.Context, points []core.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVector) Search(_ context.Context, _ []float32, limit int, filter map[string]any) ([]core.VectorHit, error) {
	if f.searchHits != nil {
		return f.searchHits, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []core.VectorHit
	for _, p := range f.points {
		if payloadMatches(p.Payload, filter) {
			hits = append(hits, core.VectorHit{ID: p.ID, Score: 0.9, Payload: p.Payload})
		}
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (f *fakeVector) DeleteByFilter(_ context.Context, filter map[string]any) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.points {
		if payloadMatches(p.Payload, filter) {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVector) SetPayloadByFilter(_ context.Context, filter map[string]any, payload models.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.points {
		if payloadMatches(p.Payload, filter) {
			for k, v := range payload {
				p.Payload[k] = v
			}
			f.points[id] = p
		}
	}
	return nil
}

func payloadMatches(payload models.Metadata, filter map[string]any) bool {
	for k, want := range filter {
		if payload[k] != want {
			return false
		}
	}
	return true
}

type fakeSearch struct {
	mu   sync.Mutex
	docs map[string]models.Metadata

	searchHits []core.KeywordHit // canned results; nil derives from docs
	searchErr  error
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{docs: make(map[string]models.Metadata)}
}

func (f *fakeSearch) EnsureIndex(_ context.Context) error { return nil }

func (f *fakeSearch) Index(_ context.Context, id string, doc models.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = doc
	return nil
}

func (f *fakeSearch) Search(_ context.Context, _ string, limit int, filters map[string]any) ([]core.KeywordHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchHits != nil {
		return f.searchHits, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []core.KeywordHit
	for id, doc := range f.docs {
		if payloadMatches(doc, filters) {
			hits = append(hits, core.KeywordHit{ID: id, Score: 1.0, Source: doc})
		}
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (f *fakeSearch) DeleteByFileID(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, doc := range f.docs {
		if doc["file_id"] == fileID {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeSearch) SetActiveByFileID(_ context.Context, fileID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc["file_id"] == fileID {
			doc["active"] = active
		}
	}
	return nil
}

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	err     error
	shortBy int // vectors to drop from each response
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string, dim int) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.shortBy > 0 && len(texts) >= f.shortBy {
		texts = texts[:len(texts)-f.shortBy]
	}
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for j, r := range text {
			vec[j%dim] += float32(r)
		}
		out[i] = vec
	}
	return out, nil
}
