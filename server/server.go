// Package server provides the browser chat UI: a page per session, a small
// JSON API for settings, and a newline-delimited JSON stream of reply
// fragments.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/groqchat/pkg/completion"
	"github.com/papercomputeco/groqchat/pkg/storage"
)

//go:embed web
var webFS embed.FS

// Server serves the chat UI. Each browser gets its own conversation session,
// identified by a cookie and kept in a storage.Driver.
type Server struct {
	config   Config
	sessions storage.Driver
	logger   *zap.Logger
	server   *fiber.App
	page     *template.Template
	markdown *markdown

	clientMu sync.RWMutex
	client   completion.Client

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server.
func New(config Config, client completion.Client, sessions storage.Driver, logger *zap.Logger) (*Server, error) {
	page, err := template.ParseFS(webFS, "web/templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, fmt.Errorf("failed to open static assets: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		sessions: sessions,
		logger:   logger,
		server:   app,
		page:     page,
		markdown: newMarkdown(),
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
	}

	app.Get("/", s.handlePage)
	app.Get("/static/*", adaptor.HTTPHandler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/models", s.handleModels)
	api.Get("/session", s.handleGetSession)
	api.Delete("/session", s.handleResetSession)
	api.Post("/model", s.handleSelectModel)
	api.Post("/chat", s.handleChat)

	return s, nil
}

// RunWithListener serves on ln and evicts idle sessions in the background
// until Shutdown.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting chat server",
		zap.String("listen", ln.Addr().String()),
		zap.String("model", s.config.Model),
	)

	go storage.RunSweeper(s.ctx, s.sessions, s.config.SweepInterval, s.config.SessionIdle, s.logger)

	return s.server.Listener(ln)
}

// Shutdown stops accepting requests, stops the sweeper and drops all sessions.
func (s *Server) Shutdown() error {
	s.cancel()
	if err := s.server.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return s.sessions.Close()
}

// SetClient swaps the completion client used for new submissions. Streams
// already in flight keep the client they started with.
func (s *Server) SetClient(client completion.Client) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	s.client = client
}

func (s *Server) completionClient() completion.Client {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return s.client
}

// truncate shortens s to maxLen characters for log previews.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
