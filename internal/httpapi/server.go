// Package httpapi wires the chat pipeline to HTTP: the SSE chat endpoint,
// conversation reads, and optional static file serving for the local
// object store.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leofalp/conduit/core/chat"
)

// Options configure the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string

	// FilesDir, when set, is served under /files/ for the local object
	// store.
	FilesDir string

	Logger *slog.Logger
}

// Server is the HTTP front of the chat pipeline.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and wires all routes.
func NewServer(orchestrator *chat.Orchestrator, store chat.ConversationStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chatHandler := NewChatHandler(orchestrator, logger)
	conversationHandler := NewConversationHandler(store, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userIDHeader},
		AllowCredentials: true,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api", func(api chi.Router) {
		api.Post("/chat", chatHandler.Stream)
		api.Get("/conversations", conversationHandler.List)
		api.Get("/conversations/{id}", conversationHandler.Get)
	})

	if opts.FilesDir != "" {
		fileServer := http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir)))
		router.Get("/files/*", fileServer.ServeHTTP)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the routed handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
