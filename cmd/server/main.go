package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mikeboe/deep-research/pkg/app"
	"github.com/mikeboe/deep-research/pkg/archive"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/server"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	cfg := config.Load()
	ctx := context.Background()

	// Database Connection
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		logger.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize research engine", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	svc := server.NewService(db, pipeline.Engine, nil, server.NewHub(), logger)
	if arch, err := newArchive(ctx, cfg, db, logger); err != nil {
		logger.Warn("Findings archive disabled", "error", err)
	} else {
		svc.Archive = arch
	}

	m := metrics.New()
	svc.Observer = m.Observe
	handler := server.NewHandler(svc, m.Handler())

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	logger.Info("Server starting", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

// newArchive prepares the pgvector table and Gemini embedder behind the
// findings archive.
func newArchive(ctx context.Context, cfg *config.Config, db *database.PostgresDB, logger *slog.Logger) (*archive.Archive, error) {
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, cfg.EmbeddingDims)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.NewPGVectorStore(db.Pool, cfg.CollectionName)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureVectorExtension(ctx); err != nil {
		return nil, err
	}
	if err := db.CreateEmbeddingsTable(ctx, cfg.CollectionName, cfg.EmbeddingDims); err != nil {
		return nil, err
	}
	return archive.New(store, embedder, cfg.ChunkSize, cfg.ChunkOverlap, logger), nil
}
