package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davemk99/embedx/internal/services"
)

// maxUploadBytes caps the whole multipart request body.
const maxUploadBytes = 100 << 20 // 100 MB

type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// UploadBatch accepts multipart form uploads under the "files" field and
// stores each one. Files fail individually; an unreachable bucket fails the
// whole request.
func (h *DocumentHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}

	uploads := make([]services.FileUpload, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			http.Error(w, "unreadable file part: "+header.Filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			http.Error(w, "unreadable file part: "+header.Filename, http.StatusBadRequest)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		uploads = append(uploads, services.FileUpload{
			Filename:    filepath.Base(header.Filename),
			ContentType: contentType,
			Data:        data,
		})
	}

	result, err := h.docs.UploadBatch(r.Context(), uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListDocuments returns a page of documents; limit and offset come from query
// parameters.
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.docs.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetDocument returns one document with its chunk count and images.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.docs.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type deleteBatchRequest struct {
	FileIDs []string `json:"file_ids"`
}

// DeleteBatch removes each named document from all stores.
func (h *DocumentHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req deleteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileIDs) == 0 {
		http.Error(w, "file_ids required", http.StatusBadRequest)
		return
	}

	result, err := h.docs.DeleteBatch(r.Context(), req.FileIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DeleteLocalBatch removes locally-ingested documents only.
func (h *DocumentHandler) DeleteLocalBatch(w http.ResponseWriter, r *http.Request) {
	var req deleteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileIDs) == 0 {
		http.Error(w, "file_ids required", http.StatusBadRequest)
		return
	}

	result, err := h.docs.DeleteLocalBatch(r.Context(), req.FileIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ToggleStatus flips the document's active flag across all stores and reports
// the new state plus any store that failed to apply it.
func (h *DocumentHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	active, stores, err := h.docs.ToggleStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"file_id": id,
		"active":  active,
	}
	if !stores.OK() {
		resp["warning"] = stores.FailureMessage("updated")
		resp["failed_stores"] = stores.FailedStores()
	}
	writeJSON(w, http.StatusOK, resp)
}
