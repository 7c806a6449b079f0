package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/devcompass/internal/db"
	"github.com/ziadkadry99/devcompass/internal/guard"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port      int
	AllowAll  bool     // allow all CORS origins (dev mode)
	Entry     string   // where rejected requests are sent, "/" if empty
	Protected []string // doublestar patterns that need a valid session
}

// Server is the DevCompass web front-end.
type Server struct {
	cfg        Config
	db         *db.DB
	gate       *session.Gate
	guard      *guard.Guard
	router     chi.Router
	httpServer *http.Server
}

// New creates a server whose protected routes are guarded by gate.
func New(cfg Config, database *db.DB, gate *session.Gate) (*Server, error) {
	if cfg.Entry == "" {
		cfg.Entry = "/"
	}
	g, err := guard.New(gate, cfg.Entry, cfg.Protected)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:   cfg,
		db:    database,
		gate:  gate,
		guard: g,
	}
	s.router = s.buildRouter()
	return s, nil
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Protected views are checked before any handler runs.
	r.Use(s.guard.Middleware)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := s.gate.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","session_valid":%t}`, st.Valid)
	})

	// Pages and live channels are registered by the frontend package.
	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// Gate returns the session gate.
func (s *Server) Gate() *session.Gate { return s.gate }

// Guard returns the route guard.
func (s *Server) Guard() *guard.Guard { return s.guard }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Printf("devcompass listening on http://%s", ln.Addr())
	err := s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
