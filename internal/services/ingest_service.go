package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davemk99/embedx/internal/core"
	"github.com/davemk99/embedx/internal/core/chunker"
	"github.com/davemk99/embedx/internal/core/extract"
	"github.com/davemk99/embedx/internal/models"
)

// processTimeout bounds the work on a single document; a stuck OCR pass or
// store must not wedge a whole batch.
const processTimeout = 5 * time.Minute

// ingestUnit is one embeddable piece of a document before persistence.
type ingestUnit struct {
	text       string
	pageNumber *int
	metadata   models.Metadata
}

// IngestService turns raw file bytes into chunk rows, vector points and
// keyword-index entries. Failures on individual chunks are logged and skipped
// so one bad chunk never aborts a document.
type IngestService struct {
	db       core.DbClient
	storage  core.ObjectClient
	vector   core.VectorClient
	search   core.SearchClient
	embedder core.EmbeddingProvider
	engine   *extract.Engine

	chunkSize    int
	chunkOverlap int
	embedDim     int
}

func NewIngestService(
	db core.DbClient,
	storage core.ObjectClient,
	vector core.VectorClient,
	search core.SearchClient,
	embedder core.EmbeddingProvider,
	engine *extract.Engine,
	chunkSize, chunkOverlap, embedDim int,
) *IngestService {
	return &IngestService{
		db:           db,
		storage:      storage,
		vector:       vector,
		search:       search,
		embedder:     embedder,
		engine:       engine,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embedDim:     embedDim,
	}
}

// ProcessDocument extracts, chunks, embeds and indexes one document. PDFs go
// through the structured path that also persists rendered page images; every
// other supported type goes through plain extraction.
func (s *IngestService) ProcessDocument(ctx context.Context, doc *models.Document, data []byte) (*models.IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	// Re-runs must not collide with rows or index entries from a previous
	// attempt, so prior derived state is dropped first.
	if err := s.clearDerived(ctx, doc); err != nil {
		return nil, err
	}

	var (
		units      []ingestUnit
		imageCount int
		err        error
	)
	if extract.ClassifyContentType(doc.ContentType) == extract.KindPDF {
		units, imageCount, err = s.preparePDF(ctx, doc, data)
	} else {
		units, err = s.prepareFlat(doc, data)
	}
	if err != nil {
		return nil, err
	}

	chunks, vectorIDs := s.persistUnits(ctx, doc, units)

	return &models.IngestResult{
		FileID:     doc.ID,
		Filename:   doc.Filename,
		Chunks:     chunks,
		VectorIDs:  vectorIDs,
		ImageCount: imageCount,
	}, nil
}

// clearDerived removes the chunk rows, image records and index entries a
// previous run of the same document left behind. A no-op on first ingestion.
func (s *IngestService) clearDerived(ctx context.Context, doc *models.Document) error {
	if err := s.vector.DeleteByFilter(ctx, map[string]any{"file_id": doc.ID}); err != nil {
		return fmt.Errorf("clear vectors for %s: %w", doc.ID, err)
	}
	if err := s.search.DeleteByFileID(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear keyword index for %s: %w", doc.ID, err)
	}
	if err := s.db.DeleteChunksByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", doc.ID, err)
	}
	if err := s.db.DeleteImagesByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear images for %s: %w", doc.ID, err)
	}
	return nil
}

// prepareFlat handles every non-PDF type via the plain extraction pipeline.
func (s *IngestService) prepareFlat(doc *models.Document, data []byte) ([]ingestUnit, error) {
	text, err := s.engine.Extract(data, doc.ContentType)
	if err != nil {
		return nil, err
	}

	parts := chunker.Split(text, s.chunkSize, s.chunkOverlap)
	units := make([]ingestUnit, 0, len(parts))
	for _, part := range parts {
		units = append(units, ingestUnit{
			text:     part,
			metadata: models.Metadata{"source": "document"},
		})
	}
	return units, nil
}

// preparePDF runs the structured PDF path: per-page text with adaptive OCR,
// page images persisted to object storage, tables and links counted into the
// document metadata. Image OCR text becomes its own embeddable unit so scans
// stay searchable.
func (s *IngestService) preparePDF(ctx context.Context, doc *models.Document, data []byte) ([]ingestUnit, int, error) {
	extraction, err := s.engine.ExtractStructured(data)
	if err != nil {
		// Fall back to the strategy loop; a malformed PDF may still yield text.
		text, ferr := s.engine.Extract(data, doc.ContentType)
		if ferr != nil {
			return nil, 0, err
		}
		parts := chunker.Split(text, s.chunkSize, s.chunkOverlap)
		units := make([]ingestUnit, 0, len(parts))
		for _, part := range parts {
			units = append(units, ingestUnit{
				text:     part,
				metadata: models.Metadata{"source": "document"},
			})
		}
		return units, 0, nil
	}

	imagesByPage, imageUnits := s.persistImages(ctx, doc, extraction.Images)

	pageChunks := chunker.SplitByPage(extraction.TextByPage, s.chunkSize, s.chunkOverlap)
	units := make([]ingestUnit, 0, len(pageChunks)+len(imageUnits))
	for _, pc := range pageChunks {
		page := pc.PageNumber
		md := models.Metadata{"source": "document"}
		if related := imagesByPage[page]; len(related) > 0 {
			md["related_images"] = related
		}
		units = append(units, ingestUnit{
			text:       pc.Text,
			pageNumber: &page,
			metadata:   md,
		})
	}
	units = append(units, imageUnits...)

	patch := models.Metadata{
		"page_count":  len(extraction.TextByPage),
		"image_count": len(extraction.Images),
		"table_count": len(extraction.Tables),
		"link_count":  len(extraction.Links),
	}
	if title := extraction.Metadata["title"]; title != "" {
		patch["pdf_title"] = title
	}
	if author := extraction.Metadata["author"]; author != "" {
		patch["pdf_author"] = author
	}
	if err := s.db.MergeDocumentMetadata(ctx, doc.ID, patch); err != nil {
		log.Printf("merge metadata for %s: %v", doc.ID, err)
	}

	return units, len(extraction.Images), nil
}

// persistImages uploads each extracted page image and records it, returning
// the image ids grouped by page plus one embeddable unit per usable OCR text.
func (s *IngestService) persistImages(ctx context.Context, doc *models.Document, images []extract.PageImage) (map[int][]string, []ingestUnit) {
	imagesByPage := make(map[int][]string)
	var units []ingestUnit

	for _, img := range images {
		imageID := uuid.NewString()
		key := fmt.Sprintf("extracted-images/%s/page_%d_%d.%s", doc.ID, img.PageNumber, img.ImageIndex, img.Format)

		var storagePath *string
		path, err := s.storage.UploadFile(ctx, key, img.Data, "image/"+img.Format, map[string]string{
			"file_id": doc.ID,
			"page":    fmt.Sprintf("%d", img.PageNumber),
		})
		if err != nil {
			log.Printf("upload image %s page %d: %v", doc.ID, img.PageNumber, err)
		} else {
			storagePath = &path
		}

		record := &models.DocumentImage{
			ID:          imageID,
			DocumentID:  doc.ID,
			PageNumber:  img.PageNumber,
			ImageIndex:  img.ImageIndex,
			Format:      img.Format,
			StoragePath: storagePath,
			Metadata:    models.Metadata{},
		}
		if img.Width > 0 {
			w := img.Width
			record.Width = &w
		}
		if img.Height > 0 {
			h := img.Height
			record.Height = &h
		}
		if strings.TrimSpace(img.OCRText) != "" {
			text := img.OCRText
			record.OCRText = &text
		}
		if err := s.db.CreateDocumentImage(ctx, record); err != nil {
			log.Printf("save image record %s page %d: %v", doc.ID, img.PageNumber, err)
			continue
		}
		imagesByPage[img.PageNumber] = append(imagesByPage[img.PageNumber], imageID)

		if record.OCRText != nil && !extract.IsLikelyGarbage(*record.OCRText) {
			page := img.PageNumber
			units = append(units, ingestUnit{
				text:       *record.OCRText,
				pageNumber: &page,
				metadata: models.Metadata{
					"source":   "image_ocr",
					"image_id": imageID,
				},
			})
		}
	}
	return imagesByPage, units
}

// persistUnits writes chunk rows, vector points and keyword entries for each
// unit. Embedding runs as one batch; when it fails the chunk rows still land
// so the document remains listable and re-embeddable.
func (s *IngestService) persistUnits(ctx context.Context, doc *models.Document, units []ingestUnit) (int, []string) {
	if len(units) == 0 {
		return 0, nil
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.text
	}
	vecs, err := s.embedder.EmbedTexts(ctx, texts, s.embedDim)
	if err != nil {
		log.Printf("embed %d chunks for %s: %v", len(units), doc.ID, err)
		vecs = nil
	} else if len(vecs) != len(units) {
		log.Printf("embedder returned %d vectors for %d chunks of %s", len(vecs), len(units), doc.ID)
		vecs = nil
	}

	var (
		created   int
		vectorIDs []string
	)
	for i, unit := range units {
		md := unit.metadata.Copy()
		md["file_id"] = doc.ID
		md["filename"] = doc.Filename
		md["content_type"] = doc.ContentType
		md["chunk_index"] = created
		md["active"] = true
		if unit.pageNumber != nil {
			md["page_number"] = *unit.pageNumber
		}

		chunk := &models.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: created,
			Text:       unit.text,
			PageNumber: unit.pageNumber,
			Metadata:   md,
		}
		if vecs != nil {
			chunk.Embedding = vecs[i]
		}
		if err := s.db.CreateDocumentChunk(ctx, chunk); err != nil {
			log.Printf("save chunk %d of %s: %v", i, doc.ID, err)
			continue
		}
		created++

		if vecs == nil {
			continue
		}

		vectorID := uuid.NewString()
		payload := md.Copy()
		payload["text"] = unit.text

		if err := s.vector.Upsert(ctx, []core.VectorPoint{{
			ID:      vectorID,
			Vector:  vecs[i],
			Payload: payload,
		}}); err != nil {
			log.Printf("index vector for chunk %d of %s: %v", i, doc.ID, err)
			continue
		}

		if err := s.search.Index(ctx, vectorID, payload); err != nil {
			log.Printf("index keywords for chunk %d of %s: %v", i, doc.ID, err)
		}

		if err := s.db.UpdateChunkEmbedding(ctx, chunk.ID, vectorID); err != nil {
			log.Printf("record embedding id for chunk %d of %s: %v", i, doc.ID, err)
		}
		vectorIDs = append(vectorIDs, vectorID)
	}
	return created, vectorIDs
}
