package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/davemk99/embedx/internal/config"
	"github.com/davemk99/embedx/internal/core"
	db "github.com/davemk99/embedx/internal/core/database"
	"github.com/davemk99/embedx/internal/core/extract"
	"github.com/davemk99/embedx/internal/core/llm"
	objectclient "github.com/davemk99/embedx/internal/core/object-client"
	"github.com/davemk99/embedx/internal/core/search"
	"github.com/davemk99/embedx/internal/core/vector"
	"github.com/davemk99/embedx/internal/services"
)

type App struct {
	DBClient core.DbClient
	Embedder *llm.GeminiEmbedder
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	vectorClient := vector.NewQdrantClient(vector.Config{
		URL:        cfg.QdrantURL,
		Collection: cfg.CollectionName,
	})
	if err := vectorClient.EnsureCollection(appCtx, cfg.EmbedDim); err != nil {
		return nil, fmt.Errorf("couldn't prepare the vector collection, %w", err)
	}
	log.Println("Vector collection ready.")

	searchClient := search.NewElasticClient(search.Config{
		URL:      cfg.ElasticURL,
		Index:    cfg.ElasticIndex,
		Username: cfg.ElasticUser,
		Password: cfg.ElasticPassword,
	})
	if err := searchClient.EnsureIndex(appCtx); err != nil {
		return nil, fmt.Errorf("couldn't prepare the search index, %w", err)
	}
	log.Println("Search index ready.")

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	engine := extract.NewEngine(extract.NewTesseractOCR())

	ingestSvc := services.NewIngestService(
		dbClient, objClient, vectorClient, searchClient, geminiEmbedder, engine,
		cfg.DefaultChunkSize, cfg.DefaultChunkOverlap, cfg.EmbedDim,
	)
	docSvc := services.NewDocumentService(
		dbClient, objClient, vectorClient, searchClient, geminiEmbedder, ingestSvc,
		cfg.EmbedDim, cfg.EnableHybridSearch, cfg.VectorWeight, cfg.KeywordWeight,
	)

	server := NewServer(cfg, docSvc)

	return &App{DBClient: dbClient, Embedder: geminiEmbedder, Server: server}, nil
}

func (a *App) Close() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
