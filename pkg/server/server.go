// Package server is the reference engagement server. It serves the JSON
// API and the binary websocket protocol that the client-side interaction
// engine talks to, backed by an in-memory store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tessera-dev/tessera/pkg/feed"
	"github.com/tessera-dev/tessera/pkg/media"
)

// Config holds server configuration. Zero fields take defaults.
type Config struct {
	// Address is the listen address. Default: ":8080".
	Address string

	// PageSize is the number of feed items per page. Default: 24.
	PageSize int

	// DefaultGridWidth is the feed grid width used when the client does
	// not ask for one. Default: 3.
	DefaultGridWidth int

	// ReadHeaderTimeout, ReadTimeout, WriteTimeout and IdleTimeout are
	// passed to the underlying http.Server.
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// CheckOrigin validates websocket upgrade origins. Default: allow all.
	CheckOrigin func(r *http.Request) bool

	// Resolver turns item media keys into client-usable URLs. Nil leaves
	// MediaURL unset.
	Resolver media.Resolver

	// Registry receives the server's Prometheus metrics.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Logger is the server logger. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) fillDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.PageSize == 0 {
		c.PageSize = 24
	}
	if c.DefaultGridWidth == 0 {
		c.DefaultGridWidth = 3
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	if c.Registry == nil {
		c.Registry = prometheus.DefaultRegisterer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server serves the engagement API.
type Server struct {
	config   Config
	store    *Store
	hub      *hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
	handler  http.Handler

	httpServer *http.Server
}

// New creates a Server backed by store.
func New(store *Store, config Config) *Server {
	config.fillDefaults()

	s := &Server{
		config: config,
		store:  store,
		hub:    newHub(config.Logger),
		logger: config.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	s.handler = s.routes()
	return s
}

// Handler returns the server's HTTP handler, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))
	r.Use(requestMetrics(s.config.Registry))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/entities/{entityID}/activate", s.handleActivate)
		r.Post("/entities/{entityID}/deactivate", s.handleDeactivate)
		r.Get("/entities/{entityID}/status", s.handleStatus)
		r.Post("/read-marks", s.handleMarkRead)
		r.Get("/feed", s.handleFeed)
		r.Get("/live", s.handleLive)
	})

	return r
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// actorID identifies the caller. There is no auth layer here; clients
// self-identify via header.
func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	if entityID == "" {
		writeError(w, BadRequestf("missing entity id"))
		return
	}

	actor := actorID(r)
	st := s.store.Activate(actor, entityID)
	s.hub.broadcast("activate", entityID, actor)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	if entityID == "" {
		writeError(w, BadRequestf("missing entity id"))
		return
	}

	actor := actorID(r)
	st := s.store.Deactivate(actor, entityID)
	s.hub.broadcast("deactivate", entityID, actor)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	if entityID == "" {
		writeError(w, BadRequestf("missing entity id"))
		return
	}
	writeJSON(w, http.StatusOK, s.store.Status(actorID(r), entityID))
}

type markReadRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type markReadResponse struct {
	MarkedCount int `json:"marked_count"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, BadRequest(err))
		return
	}

	n := s.store.MarkRead(actorID(r), req.ItemIDs)
	writeJSON(w, http.StatusOK, markReadResponse{MarkedCount: n})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	width := s.config.DefaultGridWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, BadRequestf("invalid width %q", v))
			return
		}
		width = n
	}

	items, next := s.store.FeedPage(r.URL.Query().Get("cursor"), s.config.PageSize)
	items = feed.Arrange(items, width)
	s.hydrateMedia(r.Context(), items)

	writeJSON(w, http.StatusOK, feed.Page{Items: items, NextCursor: next})
}

// hydrateMedia resolves media keys to URLs in place. Resolution failures
// leave the URL unset rather than failing the page.
func (s *Server) hydrateMedia(ctx context.Context, items []feed.Item) {
	if s.config.Resolver == nil {
		return
	}
	for i := range items {
		if items[i].MediaKey == "" {
			continue
		}
		url, err := s.config.Resolver.ResolveURL(ctx, items[i].MediaKey)
		if err != nil {
			s.logger.Warn("media resolve failed", "key", items[i].MediaKey, "error", err)
			continue
		}
		items[i].MediaURL = url
	}
}

func decodeJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.New("expected application/json")
	}
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}
