package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/appmgr/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/events"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/root"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/infrastructure/tracing"
)

const shutdownTimeout = 5 * time.Second

// Server owns the environment tree, the root host and the admin surface
type Server struct {
	config    *config.Config
	bootstrap *config.Bootstrap
	logger    *logging.Logger
	registry  *prometheus.Registry
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
	hub       *events.Hub
	tree      *app.Tree
	host      *root.Host
	router    *gin.Engine
	http      *http.Server
	mounted   string
}

// Option customizes a Server
type Option func(*options)

type options struct {
	logger  *logging.Logger
	creator process.Creator
}

// WithLogger replaces the logger built from configuration
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCreator replaces the exec-based process creator
func WithCreator(creator process.Creator) Option {
	return func(o *options) { o.creator = creator }
}

// NewServer builds the root environment over boot's search path and, when
// enabled, the admin router. Nothing is launched or served until Start.
func NewServer(cfg *config.Config, boot *config.Bootstrap, opts ...Option) (*Server, error) {
	if boot == nil {
		boot = &config.Bootstrap{}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.ForLevel(cfg.Logging.Level, cfg.Logging.Development))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	path, err := config.ExpandPath(boot.Path)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing component manager",
		zap.Strings("path", path),
		zap.Int("initial_apps", len(boot.InitialApps)),
		zap.Bool("admin", cfg.Admin.Enabled),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	tracer := tracing.New("appmgr", logger.Logger)
	hub := events.NewHub(logger.Named("events"))

	creator := o.creator
	if creator == nil {
		creator = process.NewExecCreator(cfg.Manager.StagingDir, logger.Named("process"))
	}

	tree := app.NewTree(creator, logger.Named("app")).
		WithMetrics(metrics).
		WithEvents(hub).
		WithTracer(tracer)

	host, err := root.New(tree, path, logger.Logger)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create root environment: %w", err)
	}

	s := &Server{
		config:    cfg,
		bootstrap: boot,
		logger:    logger,
		registry:  registry,
		metrics:   metrics,
		tracer:    tracer,
		hub:       hub,
		tree:      tree,
		host:      host,
	}

	if cfg.Admin.Enabled {
		s.router = s.newRouter()
		s.http = &http.Server{
			Addr:              cfg.Admin.Addr(),
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	logger.Info("Component manager initialized")
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	if !s.config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.AccessLog(s.logger.Named("http")))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(s.config.Admin.AllowedOrigins...)))
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.config.RateLimit.RequestsPerSecond,
			Burst:             s.config.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(s.tree, s.host.Loader(), s.config.Manager.LaunchTimeout, s.logger.Named("admin"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(s.hub, s.metrics, s.config.Admin.AllowedOrigins, s.logger.Named("ws"))
	router.GET("/events", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	return router
}

// Start publishes the root services at the configured mount point and
// launches the initial applications.
func (s *Server) Start(ctx context.Context) {
	if mount := s.config.Manager.MountPath; mount != "" {
		if s.host.Environment().Services().MountAt(mount) {
			s.mounted = mount
			s.logger.Info("Root services mounted", zap.String("path", mount))
		} else {
			s.logger.Warn("Failed to mount root services", zap.String("path", mount))
		}
	}

	s.host.LaunchInitial(ctx, s.bootstrap.InitialApps)
}

// Run serves the admin API until Shutdown. With the admin surface disabled
// it blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if s.http == nil {
		<-ctx.Done()
		return nil
	}

	s.logger.Info("Starting admin server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Handler returns the admin router, nil when the admin surface is disabled
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

// Tree returns the environment tree
func (s *Server) Tree() *app.Tree { return s.tree }

// Host returns the root host
func (s *Server) Host() *root.Host { return s.host }

// Shutdown stops the admin server, destroys the root environment and with
// it every application, then flushes traces and logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down component manager...")

	var errs []error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to stop admin server", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to stop admin server: %w", err))
		}
	}

	if s.mounted != "" {
		s.host.Environment().Services().Unmount(s.mounted)
	}
	s.host.Close()
	s.logger.Info("Root environment destroyed")

	s.tracer.Close()
	s.logger.Sync()

	return errors.Join(errs...)
}
