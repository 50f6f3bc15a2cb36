package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nomadsam6/bls2/internal/automation"
	"github.com/nomadsam6/bls2/internal/browser"
	"github.com/nomadsam6/bls2/internal/config"
	"github.com/nomadsam6/bls2/internal/domain"
	"github.com/nomadsam6/bls2/internal/eventlog"
	"github.com/nomadsam6/bls2/internal/logger"
	"github.com/nomadsam6/bls2/internal/monitoring"
	"github.com/nomadsam6/bls2/internal/notifier"
	"github.com/nomadsam6/bls2/internal/redis"
	"github.com/nomadsam6/bls2/internal/repository"
	"github.com/nomadsam6/bls2/internal/scheduler"
	"github.com/nomadsam6/bls2/internal/websocket"
)

// Server wires the HTTP API, the WebSocket hub and the monitoring scheduler
// together. When Redis is unreachable it falls back to in-memory storage so
// the service stays usable in local-only mode.
type Server struct {
	config *config.Config
	logger *logrus.Logger

	redisClient *redis.Client
	stats       repository.StatsRepository
	slots       repository.SlotRepository
	logs        repository.LogRepository

	hub      *websocket.Hub
	recorder *eventlog.Recorder

	automation *automation.Automation
	runner     scheduler.CycleRunner
	scheduler  *scheduler.Scheduler
	notify     notifier.Notifier

	metrics     *monitoring.Metrics
	rateLimiter *RateLimiter

	bookingProfile domain.Profile

	// startedAt is touched by concurrent start/stop/status handlers.
	startedMu sync.Mutex
	startedAt *time.Time

	httpServer *http.Server
}

func (s *Server) setStartedAt(t *time.Time) {
	s.startedMu.Lock()
	s.startedAt = t
	s.startedMu.Unlock()
}

func (s *Server) startTime() *time.Time {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()
	return s.startedAt
}

// New creates a fully wired server instance
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	log := logger.GetLogger()

	srv := &Server{
		config:         cfg,
		logger:         log,
		bookingProfile: cfg.Booking.Profile,
	}

	// Storage. Redis when reachable, in-memory otherwise.
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warnf("Failed to connect to Redis: %v, using local-only mode", err)
		srv.stats = repository.NewInMemoryStatsRepository(cfg.Monitor.CheckInterval)
		srv.slots = repository.NewInMemorySlotRepository()
		srv.logs = repository.NewInMemoryLogRepository()
	} else {
		srv.redisClient = redisClient
		srv.stats = repository.NewRedisStatsRepository(redisClient.GetClient(), cfg.Monitor.CheckInterval)
		srv.slots = repository.NewRedisSlotRepository(redisClient.GetClient())
		srv.logs = repository.NewRedisLogRepository(redisClient.GetClient())
	}

	srv.metrics = monitoring.NewMetrics()
	srv.hub = websocket.NewHub(log, srv.metrics)
	srv.recorder = eventlog.NewRecorder(srv.logs, srv.hub, log)
	srv.notify = notifier.New(cfg.Notifications)

	site := automation.NewSiteProfile(cfg.Site)
	solver := monitoring.NewInstrumentedSolver(automation.NewHTTPSolverClient(cfg.Solver), srv.metrics)
	launcher := browser.NewLauncher(cfg.Monitor)

	srv.automation = automation.NewAutomation(
		launcher, site, cfg.Auth, cfg.Booking, solver, srv.slots, srv.recorder)
	srv.runner = monitoring.NewInstrumentedRunner(srv.automation, srv.metrics)
	srv.scheduler = scheduler.New(srv.runner, srv.stats, srv.notify, srv.recorder, cfg.Monitor)

	srv.rateLimiter = NewRateLimiter(cfg.Server.RequestsPerMinute, cfg.Server.RateLimitBurst, srv.metrics)

	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return srv, nil
}

// routes builds the HTTP router
func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ws", s.hub.HandleConnection)
	router.Handle("/metrics", promhttp.Handler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimiter.Middleware)
	api.Use(monitoring.NewMetricsMiddleware(s.metrics).HTTPMiddleware)

	api.HandleFunc("", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/system/status", s.handleSystemStatus).Methods(http.MethodGet)
	api.HandleFunc("/system/start", s.handleSystemStart).Methods(http.MethodPost)
	api.HandleFunc("/system/stop", s.handleSystemStop).Methods(http.MethodPost)
	api.HandleFunc("/system/pause", s.handleSystemPause).Methods(http.MethodPost)
	api.HandleFunc("/system/resume", s.handleSystemResume).Methods(http.MethodPost)

	api.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	api.HandleFunc("/appointments/available", s.handleAvailableSlots).Methods(http.MethodGet)
	api.HandleFunc("/appointments/book", s.handleBookAppointment).Methods(http.MethodPost)
	api.HandleFunc("/test/check-once", s.handleCheckOnce).Methods(http.MethodPost)

	return router
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the scheduler and drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	if err := s.scheduler.Stop(ctx); err != nil {
		s.logger.WithError(err).Warn("scheduler did not stop cleanly")
	}
	s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	return nil
}
