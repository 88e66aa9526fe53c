package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/unproguard-mcp/internal/config"
	"github.com/yousuf/unproguard-mcp/internal/registry"
	"github.com/yousuf/unproguard-mcp/internal/server"
)

func main() {
	// Get config path from environment
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH environment variable is required")
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// PORT overrides the configured address
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}

	log.Printf("Loaded configuration with %d mapping(s), default %q", len(cfg.Mappings), cfg.DefaultMapping)

	// Mappings are shared by every session and loaded on first use
	mappings := registry.NewManager(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == "stdio" {
		runStdio(ctx, mappings)
		return
	}
	runHTTP(ctx, cfg.Addr, mappings)
}

// runStdio serves a single session over stdin/stdout until the client disconnects
func runStdio(ctx context.Context, mappings *registry.Manager) {
	log.Println("unproguard MCP server running on stdio")
	if err := server.NewMCPServer(mappings).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Server stopped")
}

// runHTTP serves the streamable HTTP transport until ctx is cancelled
func runHTTP(ctx context.Context, addr string, mappings *registry.Manager) {
	// Create HTTP handler with proper session management
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return server.NewMCPServer(mappings)
	}, nil)

	// Setup HTTP server
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("unproguard MCP server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Println("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
