package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int // WebSocket listener
	WebPort      int // HTTP side channel
	PingInterval time.Duration
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		WebPort:      8787,
		PingInterval: 30 * time.Second,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// ConfigFrom builds server configuration from the application config.
func ConfigFrom(cfg *types.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Server.WebHost != "" {
		c.Host = cfg.Server.WebHost
	}
	if cfg.Server.Port > 0 {
		c.Port = cfg.Server.Port
	}
	if cfg.Server.WebPort > 0 {
		c.WebPort = cfg.Server.WebPort
	}
	if cfg.Server.PingIntervalMs > 0 {
		c.PingInterval = cfg.Server.PingInterval()
	}
	return c
}

// ImagePrompter turns a reference image into a build request.
type ImagePrompter interface {
	Generate(ctx context.Context, image []byte, mimeType, notes string) (string, error)
}

// Server owns the WebSocket listener the game connects to and the HTTP
// side channel used by browsers.
type Server struct {
	config   *Config
	router   *chi.Mux
	upgrader websocket.Upgrader

	registry *session.Registry
	runner   *pipeline.Runner
	images   ImagePrompter
	bus      *event.Bus
	journal  *Journal

	wsSrv  *http.Server
	webSrv *http.Server
}

// New creates a new Server instance. images may be nil, in which case
// image-to-build requests fail.
func New(cfg *Config, registry *session.Registry, runner *pipeline.Runner, images ImagePrompter, bus *event.Bus) *Server {
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // the game client sends no Origin
			},
		},
		registry: registry,
		runner:   runner,
		images:   images,
		bus:      bus,
		journal:  NewJournal(DefaultJournalSize),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.wsSrv = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler: s.WebSocketHandler(),
	}
	s.webSrv = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.WebPort)),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// setupMiddleware configures middleware for the side channel.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// requestLogger logs each side channel request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("requestID", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// Start listens on both ports and serves until one listener fails or the
// server is shut down. It also starts the event journal. Start after
// Shutdown returns nil without listening.
func (s *Server) Start(ctx context.Context) error {
	if s.bus != nil {
		if err := s.journal.Run(ctx, s.bus); err != nil {
			return fmt.Errorf("start event journal: %w", err)
		}
	}

	var g errgroup.Group
	g.Go(func() error { return serve(s.wsSrv) })
	g.Go(func() error { return serve(s.webSrv) })
	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return nil
}

// Shutdown gracefully shuts down both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range []*http.Server{s.wsSrv, s.webSrv} {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Router returns the side channel router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// WebSocketHandler accepts game connections on any path.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

// Journal returns the recent-events journal.
func (s *Server) Journal() *Journal {
	return s.journal
}
