package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assistgen-backend/internal/config"
	"assistgen-backend/internal/database"
	"assistgen-backend/internal/handlers"
	"assistgen-backend/internal/llm"
	"assistgen-backend/internal/middleware"
	"assistgen-backend/internal/repository"
	"assistgen-backend/internal/router"
	"assistgen-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting AssistGen Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	documentRepo := repository.NewDocumentRepo(pool)

	// ──── Step 5: Initialize Model Providers ────
	chatProvider := newProvider(cfg.ChatService, cfg, cfg.OllamaChatModel)
	reasonProvider := newProvider(cfg.ReasonService, cfg, cfg.OllamaReasonModel)
	searchService := services.NewSearchService(
		cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel,
		cfg.SerpAPIKey, cfg.SearchResultCount,
	)
	log.Printf("✓ Providers ready (chat=%s reason=%s)", chatProvider.Name(), reasonProvider.Name())

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := services.NewAuthService(userRepo, redisClient, jwtAuth)
	documentService := services.NewDocumentService(documentRepo, cfg.StoragePath)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatProvider, reasonProvider, searchService, cfg.StreamIdleTimeout)
	documentHandler := handlers.NewDocumentHandler(documentService)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(jwtAuth, authHandler, chatHandler, documentHandler, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: chat responses stream for the lifetime of a
		// conversation turn. The relay enforces its own idle timeout.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ AssistGen Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

// newProvider maps the configured service type to a provider. Selection is
// a pure configuration switch; there is no fallback between providers.
func newProvider(service config.ServiceType, cfg *config.Config, ollamaModel string) llm.Provider {
	switch service {
	case config.ServiceOllama:
		return llm.NewOllama(cfg.OllamaBaseURL, ollamaModel)
	default:
		return llm.NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel)
	}
}
