package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/voltr/surge/internal/agent"
	"github.com/voltr/surge/internal/gate"
	"github.com/voltr/surge/internal/tool"
)

// Server is the Surge REST API server. It exposes a read-only view of
// the running agent: status, conversation, registered tools and the
// pending confirmation, if any.
type Server struct {
	router       *mux.Router
	orchestrator *agent.Orchestrator
	gate         *gate.Gate
	registry     *tool.Registry
	network      string
	startedAt    time.Time
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a fully-wired Server ready to Start().
func NewServer(addr string, orch *agent.Orchestrator, g *gate.Gate, reg *tool.Registry, network string, logger *zap.Logger) *Server {
	srv := &Server{
		router:       mux.NewRouter(),
		orchestrator: orch,
		gate:         g,
		registry:     reg,
		network:      network,
		startedAt:    time.Now(),
		logger:       logger,
	}
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	srv.registerRoutes()
	return srv
}

// Start begins listening and serving HTTP requests. It blocks until the
// server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	s.logger.Info("API server starting", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
