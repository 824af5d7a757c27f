package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davemk99/embedx/internal/services"
)

type SearchHandler struct {
	docs *services.DocumentService
}

func NewSearchHandler(docs *services.DocumentService) *SearchHandler {
	return &SearchHandler{docs: docs}
}

type searchRequest struct {
	Query   string         `json:"query"`
	Limit   int            `json:"limit"`
	Filters map[string]any `json:"filters"`
}

// Search runs hybrid vector plus keyword search over all active chunks.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query required", http.StatusBadRequest)
		return
	}

	hits, err := h.docs.HybridSearch(r.Context(), req.Query, req.Limit, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": hits,
		"total":   len(hits),
	})
}

// SimilarChunks ranks one document's chunks against a query using the
// embeddings stored in Postgres.
func (h *SearchHandler) SimilarChunks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		http.Error(w, "q required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	chunks, err := h.docs.SimilarChunks(r.Context(), id, query, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": id,
		"query":   query,
		"chunks":  chunks,
	})
}
