package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/davemk99/embedx/internal/services"
)

type EmbeddingHandler struct {
	docs *services.DocumentService
}

func NewEmbeddingHandler(docs *services.DocumentService) *EmbeddingHandler {
	return &EmbeddingHandler{docs: docs}
}

type batchEmbedRequest struct {
	FileIDs []string `json:"file_ids"`
}

// BatchEmbed runs the ingestion pipeline on previously uploaded files.
func (h *EmbeddingHandler) BatchEmbed(w http.ResponseWriter, r *http.Request) {
	var req batchEmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FileIDs) == 0 {
		http.Error(w, "file_ids required", http.StatusBadRequest)
		return
	}

	result, err := h.docs.BatchEmbed(r.Context(), req.FileIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type localEmbedRequest struct {
	FilePaths []string `json:"file_paths"`
}

// LocalEmbed ingests files straight from the server filesystem.
func (h *EmbeddingHandler) LocalEmbed(w http.ResponseWriter, r *http.Request) {
	var req localEmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FilePaths) == 0 {
		http.Error(w, "file_paths required", http.StatusBadRequest)
		return
	}

	result, err := h.docs.LocalEmbed(r.Context(), req.FilePaths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
