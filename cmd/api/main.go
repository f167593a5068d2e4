package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"deepchat-backend/cmd"
	"deepchat-backend/internal/api"
	"deepchat-backend/internal/history"
	"deepchat-backend/internal/relay"
	"deepchat-backend/internal/storage"
)

type APIConfig struct {
	// A missing key is not fatal at boot; the chat endpoint reports it per
	// request so the rest of the API stays usable.
	DeepSeekAPIKey string `env:"DEEPSEEK_API_KEY"`

	DeepSeekBaseURL string `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	ChatModel       string `env:"CHAT_MODEL" envDefault:"deepseek-chat"`
	ReasoningModel  string `env:"REASONING_MODEL" envDefault:"deepseek-reasoner"`

	HistoryDBPath string `env:"HISTORY_DB_PATH" envDefault:"chat-history.db"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	APIPort       string `env:"API_PORT" envDefault:"8080"`
	CORSOrigins   string `env:"CORS_ORIGINS" envDefault:"*"` // Comma-separated
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if cfg.DeepSeekAPIKey == "" {
		slog.Warn("DEEPSEEK_API_KEY is not set; chat requests will fail until it is configured")
	}

	store := history.OpenFallback(cfg.HistoryDBPath)

	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to create upload file store: %v", err)
	}

	relayClient := relay.New(relay.Config{
		APIKey:         cfg.DeepSeekAPIKey,
		BaseURL:        cfg.DeepSeekBaseURL,
		ChatModel:      cfg.ChatModel,
		ReasoningModel: cfg.ReasoningModel,
	})

	// --- Chi Router Setup ---
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Log requests
	r.Use(middleware.Recoverer) // Recover from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))

	// No request timeout middleware here: chat responses stream for as long as
	// the upstream keeps producing tokens.

	// API Handlers (dependency injection)
	chatService := api.NewChatService(relayClient)
	historyService := api.NewHistoryService(store)
	uploadService := api.NewUploadService(files)

	r.Route("/api", func(r chi.Router) {
		chatService.AddRoutes(r)
		historyService.AddRoutes(r)
		uploadService.AddRoutes(r)
	})

	r.Get("/health", api.RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	// Serve uploaded files so attachment URLs resolve for both the browser and
	// the upstream model.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(files.Dir()))))

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
