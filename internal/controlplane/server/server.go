// Package server is the bot's local control plane: an HTTP surface for
// status queries, control messages, manual job triggers, and the outcome
// audit log backed by SQLite.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/coordinator"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/dispatcher"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/jobs"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/poller"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

type Config struct {
	ListenAddr string
	DBPath     string
}

// Deps are the live components the control plane observes and steers.
type Deps struct {
	Poller      *poller.Poller
	Coordinator *coordinator.Coordinator
	Dispatcher  *dispatcher.Dispatcher
	Scheduler   *jobs.Scheduler
}

type Server struct {
	cfg  Config
	deps Deps
	db   *sql.DB
	http *http.Server
}

func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8720"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Server{cfg: cfg, deps: deps, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SetDeps installs the live components. The processor records outcomes
// through the server, so the server exists before the rest of the graph;
// call this before Start.
func (s *Server) SetDeps(deps Deps) {
	s.deps = deps
}

// Start serves until ctx ends, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", s.cfg.ListenAddr).Info("control plane listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/control", s.handleControl)

	api.GET("/jobs", s.handleJobsList)
	api.POST("/jobs/:name", s.handleJobTrigger)

	api.GET("/outcomes", s.handleOutcomesList)
	api.GET("/flair/:username", s.handleFlairGet)
	api.GET("/units/:comment", s.handleUnitGet)

	return r
}
