package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/warehouse/internal/api/handler"
	mw "github.com/edvin/warehouse/internal/api/middleware"
	"github.com/edvin/warehouse/internal/core"
)

// CoreDB is the control database handle. *pgxpool.Pool satisfies it.
type CoreDB interface {
	core.DB
	Ping(ctx context.Context) error
}

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	services       *core.Services
	coreDB         CoreDB
	temporalClient temporalclient.Client
	auditLogger    *mw.AuditLogger
}

func NewServer(logger zerolog.Logger, coreDB CoreDB, temporalClient temporalclient.Client, wait core.WaitOptions) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		services:       core.NewServices(coreDB, temporalClient, wait),
		coreDB:         coreDB,
		temporalClient: temporalClient,
		auditLogger:    mw.NewAuditLogger(coreDB, logger),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	loadRun := handler.NewLoadRun(s.services.LoadRun)
	s.router.Route("/load-runs", func(r chi.Router) {
		r.Use(mw.Auth(s.coreDB))
		r.Use(s.auditLogger.Middleware)

		r.With(mw.RequireScope("load_runs", "write")).Post("/", loadRun.Create)
		r.With(mw.RequireScope("load_runs", "read")).Get("/", loadRun.List)
		r.With(mw.RequireScope("load_runs", "read")).Get("/{id}", loadRun.Get)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var dbErr, temporalErr error
	var g errgroup.Group
	g.Go(func() error {
		dbErr = s.coreDB.Ping(ctx)
		return nil
	})
	g.Go(func() error {
		_, temporalErr = s.temporalClient.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return nil
	})
	_ = g.Wait()

	checks := map[string]string{"core_db": "ok", "temporal": "ok"}
	healthy := true
	if dbErr != nil {
		checks["core_db"] = dbErr.Error()
		healthy = false
	}
	if temporalErr != nil {
		checks["temporal"] = temporalErr.Error()
		healthy = false
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

// Close flushes pending audit log entries.
func (s *Server) Close() {
	s.auditLogger.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
