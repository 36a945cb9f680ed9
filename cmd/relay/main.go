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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ashleydavis/wunderlust-example/internal/relay/assistant"
	"github.com/ashleydavis/wunderlust-example/internal/relay/config"
	"github.com/ashleydavis/wunderlust-example/internal/relay/httpapi"
	"github.com/ashleydavis/wunderlust-example/internal/relay/hub"
	"github.com/ashleydavis/wunderlust-example/internal/relay/policy"
	"github.com/ashleydavis/wunderlust-example/internal/relay/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting relay...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Upstream: %s", cfg.AssistantBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize upstream client; without an API key run against the
	// in-memory mock so the client can be exercised offline.
	var upstream assistant.API
	if cfg.AssistantAPIKey == "" {
		log.Printf("WARN no ASSISTANT_API_KEY set, using mock upstream")
		upstream = assistant.NewMock()
	} else {
		upstream = assistant.NewClient(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantID, cfg.UpstreamTimeout)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize event hub
	eventHub := hub.NewHub()
	go eventHub.Run()

	// Initialize handler
	h := httpapi.NewHandler(upstream, db, policyEngine, eventHub)

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Relay started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Relay stopped")
}
