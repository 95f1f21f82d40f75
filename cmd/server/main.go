package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/anupa-perera/Githubpedia/internal/config"
	"github.com/anupa-perera/Githubpedia/internal/github"
	"github.com/anupa-perera/Githubpedia/internal/handler"
	"github.com/anupa-perera/Githubpedia/internal/middleware"
	"github.com/anupa-perera/Githubpedia/internal/service"
)

// main is the single entry‑point for the REST API.
func main() {
	// Load configuration
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.Duration("query_timeout", cfg.QueryTimeout),
		zap.Int("code_ref_max_lines", cfg.CodeReferenceMaxLines),
	)

	// Initialize the pipeline
	querySvc := service.NewQueryService(service.Options{
		QueryTimeout:          cfg.QueryTimeout,
		CodeReferenceMaxLines: cfg.CodeReferenceMaxLines,
	}, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Add middleware
	app.Use(middleware.Logging(logger))

	// Register routes
	handler.RegisterRoutes(app, querySvc, github.NewClient, cfg.GitHubToken)
	handler.NewHealthHandler().Register(app)

	// Start server
	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
