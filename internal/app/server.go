package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/davemk99/embedx/internal/api/handlers"
	appMiddleware "github.com/davemk99/embedx/internal/api/middlewares"
	"github.com/davemk99/embedx/internal/config"
	"github.com/davemk99/embedx/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, docSvc *services.DocumentService) *Server {
	docHandler := handlers.NewDocumentHandler(docSvc)
	embedHandler := handlers.NewEmbeddingHandler(docSvc)
	searchHandler := handlers.NewSearchHandler(docSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.APIKeyMiddleware(cfg.APIKey))

		api.Post("/upload/batch", docHandler.UploadBatch)

		api.Post("/embedding/batch", embedHandler.BatchEmbed)
		api.Post("/embedding/local", embedHandler.LocalEmbed)

		api.Post("/search", searchHandler.Search)

		api.Get("/documents", docHandler.ListDocuments)
		api.Get("/documents/{id}", docHandler.GetDocument)
		api.Get("/documents/{id}/similar", searchHandler.SimilarChunks)
		api.Post("/documents/{id}/toggle-status", docHandler.ToggleStatus)
		api.Delete("/documents/batch", docHandler.DeleteBatch)
		api.Delete("/documents/local/batch", docHandler.DeleteLocalBatch)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
