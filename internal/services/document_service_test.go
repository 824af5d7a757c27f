package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/models"
)

func TestUploadBatchStorageDown(t *testing.T) {
	env := newTestEnv()
	env.obj.pingErr = fmt.Errorf("%w: connection refused", core.ErrStorageUnavailable)

	_, err := env.docs.UploadBatch(context.Background(), []FileUpload{
		{Filename: "a.txt", ContentType: "text/plain", Data: []byte("hello")},
	})
	assert.ErrorIs(t, err, core.ErrStorageUnavailable)
}

func TestUploadBatchMixedOutcomes(t *testing.T) {
	env := newTestEnv()

	res, err := env.docs.UploadBatch(context.Background(), []FileUpload{
		{Filename: "good.txt", ContentType: "text/plain", Data: []byte("file content")},
		{Filename: "bad.zip", ContentType: "application/zip", Data: []byte("zipzip")},
	})
	require.NoError(t, err)

	require.Len(t, res.Successful, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.TotalUploaded)
	assert.Equal(t, "good.txt", res.Successful[0].Filename)
	assert.Equal(t, "bad.zip", res.Failed[0].Filename)

	doc, err := env.db.GetDocumentByID(context.Background(), res.Successful[0].FileID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.NotNil(t, doc.StoragePath)
	data, err := env.obj.GetFile(context.Background(), *doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("file content"), data)
}

func uploadAndEmbed(t *testing.T, env *testEnv, filename, content string) string {
	t.Helper()
	up, err := env.docs.UploadBatch(context.Background(), []FileUpload{
		{Filename: filename, ContentType: "text/plain", Data: []byte(content)},
	})
	require.NoError(t, err)
	require.Len(t, up.Successful, 1)
	fileID := up.Successful[0].FileID

	proc, err := env.docs.BatchEmbed(context.Background(), []string{fileID})
	require.NoError(t, err)
	require.Len(t, proc.Successful, 1, "embedding failed: %+v", proc.Failed)
	return fileID
}

func TestBatchEmbed(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "report.txt", multiParagraphText())

	chunks, err := env.db.GetChunksByDocument(context.Background(), fileID)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	assert.Len(t, env.vec.points, len(chunks))
}

func TestBatchEmbedMissingDocument(t *testing.T) {
	env := newTestEnv()

	res, err := env.docs.BatchEmbed(context.Background(), []string{"nope"})
	require.NoError(t, err)
	assert.Empty(t, res.Successful)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "nope", res.Failed[0].FileID)
	assert.Contains(t, res.Failed[0].Error, "not found")
}

func TestLocalEmbed(t *testing.T) {
	env := newTestEnv()
	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte(multiParagraphText()), 0o644))

	res, err := env.docs.LocalEmbed(context.Background(), []string{path, "/no/such/file.txt"})
	require.NoError(t, err)
	require.Len(t, res.Successful, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, path, res.Successful[0].FilePath)
	assert.Equal(t, "/no/such/file.txt", res.Failed[0].FilePath)

	doc, err := env.db.GetDocumentByID(context.Background(), res.Successful[0].FileID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, true, doc.Metadata["local_file"])
	assert.Nil(t, doc.StoragePath)
}

func TestDeleteBatch(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "victim.txt", multiParagraphText())
	doc, _ := env.db.GetDocumentByID(context.Background(), fileID)
	storagePath := *doc.StoragePath

	res, err := env.docs.DeleteBatch(context.Background(), []string{fileID, "missing-doc"})
	require.NoError(t, err)

	require.Len(t, res.Successful, 1)
	assert.Equal(t, fileID, res.Successful[0].ID)
	assert.Equal(t, 1, res.TotalDeleted)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "missing-doc", res.Failed[0].FileID)

	gone, _ := env.db.GetDocumentByID(context.Background(), fileID)
	assert.Nil(t, gone)
	assert.Empty(t, env.vec.points)
	assert.Empty(t, env.keys.docs)
	_, err = env.obj.GetFile(context.Background(), storagePath)
	assert.Error(t, err)
}

func TestDeleteBatchPartialFailure(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "sticky.txt", multiParagraphText())
	env.vec.deleteErr = fmt.Errorf("qdrant unreachable")

	res, err := env.docs.DeleteBatch(context.Background(), []string{fileID})
	require.NoError(t, err)

	assert.Empty(t, res.Successful)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Error, "Partially deleted")
	assert.Contains(t, res.Failed[0].Error, "vector database")

	// the other stores were still attempted
	assert.Empty(t, env.keys.docs)
	gone, _ := env.db.GetDocumentByID(context.Background(), fileID)
	assert.Nil(t, gone)
}

func TestDeleteLocalBatchRejectsUploaded(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "uploaded.txt", multiParagraphText())

	res, err := env.docs.DeleteLocalBatch(context.Background(), []string{fileID})
	require.NoError(t, err)
	assert.Empty(t, res.Successful)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Error, "not a locally ingested")

	still, _ := env.db.GetDocumentByID(context.Background(), fileID)
	assert.NotNil(t, still)
}

func TestToggleStatus(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "toggle.txt", multiParagraphText())

	active, stores, err := env.docs.ToggleStatus(context.Background(), fileID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.True(t, stores.OK())

	doc, _ := env.db.GetDocumentByID(context.Background(), fileID)
	assert.Equal(t, false, doc.Metadata["active"])
	for _, p := range env.vec.points {
		assert.Equal(t, false, p.Payload["active"])
	}
	for _, d := range env.keys.docs {
		assert.Equal(t, false, d["active"])
	}

	active, _, err = env.docs.ToggleStatus(context.Background(), fileID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestToggleStatusNotFound(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.docs.ToggleStatus(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHybridSearchExcludesInactive(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "searchable.txt", multiParagraphText())

	hits, err := env.docs.HybridSearch(context.Background(), "distinct content words", 5, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	_, _, err = env.docs.ToggleStatus(context.Background(), fileID)
	require.NoError(t, err)

	hits, err = env.docs.HybridSearch(context.Background(), "distinct content words", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHybridSearchMergesByID(t *testing.T) {
	env := newTestEnv()
	env.vec.searchHits = []core.VectorHit{
		{ID: "shared", Score: 0.8, Payload: models.Metadata{"active": true, "text": "alpha passage about storage engines"}},
		{ID: "vec-only", Score: 0.5, Payload: models.Metadata{"active": true, "text": "bravo passage about compaction"}},
	}
	env.keys.searchHits = []core.KeywordHit{
		{ID: "shared", Score: 2.0, Source: models.Metadata{"active": true, "text": "alpha passage about storage engines"}},
		{ID: "kw-only", Score: 1.0, Source: models.Metadata{"active": true, "text": "charlie entry on replication logs"}},
		{ID: "kw-dup", Score: 0.9, Source: models.Metadata{"active": true, "text": "ALPHA passage about storage engines!"}},
		{ID: "kw-inactive", Score: 3.0, Source: models.Metadata{"active": false, "text": "hidden delta entry entirely"}},
	}

	hits, err := env.docs.HybridSearch(context.Background(), "passage", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	byID := make(map[string]models.SearchHit, len(hits))
	for _, h := range hits {
		byID[h.ID] = h
	}

	shared := byID["shared"]
	assert.Equal(t, "hybrid", shared.Source)
	assert.InDelta(t, 0.8*0.7+2.0*0.3, shared.Score, 1e-9)

	assert.Equal(t, "vector", byID["vec-only"].Source)
	assert.InDelta(t, 0.5*0.7, byID["vec-only"].Score, 1e-9)

	assert.Equal(t, "keyword", byID["kw-only"].Source)
	assert.InDelta(t, 1.0*0.3, byID["kw-only"].Score, 1e-9)

	// the near-duplicate keyword hit and the inactive hit were dropped
	assert.NotContains(t, byID, "kw-dup")
	assert.NotContains(t, byID, "kw-inactive")

	// ranked by merged score, descending
	assert.Equal(t, "shared", hits[0].ID)
}

func TestHybridSearchKeywordOutageDegradesToVector(t *testing.T) {
	env := newTestEnv()
	env.vec.searchHits = []core.VectorHit{
		{ID: "v1", Score: 0.8, Payload: models.Metadata{"active": true, "text": "alpha passage about storage engines"}},
		{ID: "v2", Score: 0.5, Payload: models.Metadata{"active": true, "text": "bravo passage about compaction"}},
	}
	env.keys.searchErr = fmt.Errorf("index unreachable")

	hits, err := env.docs.HybridSearch(context.Background(), "passage", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "v1", hits[0].ID)
	assert.Equal(t, "vector", hits[0].Source)
	assert.InDelta(t, 0.8*0.7, hits[0].Score, 1e-9)
}

func TestHybridSearchLimit(t *testing.T) {
	env := newTestEnv()
	var vecHits []core.VectorHit
	for i := 0; i < 8; i++ {
		vecHits = append(vecHits, core.VectorHit{
			ID:      fmt.Sprintf("hit-%d", i),
			Score:   float64(8-i) / 10,
			Payload: models.Metadata{"active": true, "text": fmt.Sprintf("completely unrelated passage number %d", i)},
		})
	}
	env.vec.searchHits = vecHits
	env.keys.searchHits = []core.KeywordHit{}

	hits, err := env.docs.HybridSearch(context.Background(), "passage", 3, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, "hit-0", hits[0].ID)
}

func TestListAndGetDocument(t *testing.T) {
	env := newTestEnv()
	fileID := uploadAndEmbed(t, env, "listed.txt", multiParagraphText())

	list, err := env.docs.ListDocuments(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, fileID, list.Documents[0].ID)

	detail, err := env.docs.GetDocument(context.Background(), fileID)
	require.NoError(t, err)
	assert.Equal(t, fileID, detail.Document.ID)
	assert.Greater(t, detail.ChunkCount, 1)
	assert.Len(t, detail.Chunks, detail.ChunkCount)
	assert.Contains(t, detail.DownloadURL, "https://storage.test/")

	_, err = env.docs.GetDocument(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
