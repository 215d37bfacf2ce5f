// Package server wires the marketplace API together: storage, services,
// HTTP routes, middleware, and background workers.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/mintora/mintora/internal/auth"
	"github.com/mintora/mintora/internal/catalog"
	"github.com/mintora/mintora/internal/config"
	"github.com/mintora/mintora/internal/health"
	"github.com/mintora/mintora/internal/logging"
	"github.com/mintora/mintora/internal/metrics"
	"github.com/mintora/mintora/internal/orders"
	"github.com/mintora/mintora/internal/p2p"
	"github.com/mintora/mintora/internal/payments"
	"github.com/mintora/mintora/internal/ratelimit"
	"github.com/mintora/mintora/internal/realtime"
	"github.com/mintora/mintora/internal/security"
	"github.com/mintora/mintora/internal/settings"
	"github.com/mintora/mintora/internal/tickets"
	"github.com/mintora/mintora/internal/traces"
	"github.com/mintora/mintora/internal/validation"
	"github.com/mintora/mintora/internal/webhooks"
)

// Server is the main application server
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	httpSrv *http.Server
	db      *sql.DB

	authMgr     *auth.Manager
	catalog     *catalog.Service
	orders      *orders.Service
	transfers   *p2p.Service
	tickets     *tickets.Service
	payments    *payments.Service
	settings    *settings.Service
	hub         *realtime.Hub
	scanner     *p2p.Scanner
	rateLimiter *ratelimit.Limiter
	webhookSubs webhooks.Store
	checks      *health.Registry

	shutdownTraces func(context.Context) error
	cancelRunCtx   context.CancelFunc

	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server with all routes configured
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		format := "json"
		if cfg.IsDevelopment() {
			format = "text"
		}
		s.logger = logging.New(cfg.LogLevel, format)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Env == "test" {
		gin.SetMode(gin.TestMode)
	}

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	// Schema management lives in cmd/migrate; the server never migrates.
	var (
		authStore     auth.Store
		catalogStore  catalog.Store
		orderStore    orders.Store
		transferStore p2p.Store
		ticketStore   tickets.Store
		paymentStore  payments.Store
		settingStore  settings.Store
		webhookStore  webhooks.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}

		s.db = db
		s.logger.Info("using postgres storage", "dsn", maskDSN(cfg.DatabaseURL))

		authStore = auth.NewPostgresStore(db)
		catalogStore = catalog.NewPostgresStore(db)
		orderStore = orders.NewPostgresStore(db)
		transferStore = p2p.NewPostgresStore(db)
		ticketStore = tickets.NewPostgresStore(db)
		paymentStore = payments.NewPostgresStore(db)
		settingStore = settings.NewPostgresStore(db)
		webhookStore = webhooks.NewPostgresStore(db)
	} else {
		s.logger.Warn("DATABASE_URL not set, using in-memory storage (data will be lost on restart)")
		authStore = auth.NewMemoryStore()
		catalogStore = catalog.NewMemoryStore()
		orderStore = orders.NewMemoryStore()
		transferStore = p2p.NewMemoryStore()
		ticketStore = tickets.NewMemoryStore()
		paymentStore = payments.NewMemoryStore()
		settingStore = settings.NewMemoryStore()
		webhookStore = webhooks.NewMemoryStore()
	}

	s.settings = settings.NewService(settingStore, s.logger)

	// Transfer timers come from the settings table when enabled so admins
	// can tune them at runtime; otherwise the env snapshot is fixed.
	var timers p2p.ConfigProvider = p2p.StaticConfig{
		PaymentDeadline: cfg.PaymentDeadline,
		AutoRelease:     cfg.AutoRelease,
	}
	if cfg.SettingsFromDB && s.db != nil {
		timers = s.settings
	}

	s.hub = realtime.NewHub(s.logger)
	s.authMgr = auth.NewManager(authStore)

	// Events fan out to websocket clients and registered webhooks.
	s.webhookSubs = webhookStore
	emitter := webhooks.NewEmitter(webhooks.NewDispatcher(webhookStore, s.logger), s.logger)

	s.catalog = catalog.NewService(catalogStore, s.logger).
		WithAnnouncer(listingFanout{s.hub, emitter})
	s.transfers = p2p.NewService(transferStore, timers, s.logger).
		WithEvents(transferEventFanout{s.hub, emitter}).
		WithRecorder(metrics.TransferRecorder{})
	s.orders = orders.NewService(orderStore, s.catalog, s.logger).WithTransfers(s.transfers)
	if cfg.StripeKey != "" {
		s.orders = s.orders.WithCharger(payments.NewStripeCharger(cfg.StripeKey, s.logger))
		s.logger.Info("card payments enabled")
	}
	// Terminal transfer outcomes flow back into the owning order.
	s.transfers.WithOrders(s.orders)

	s.tickets = tickets.NewService(ticketStore, s.logger)
	s.payments = payments.NewService(paymentStore, s.logger)
	s.scanner = p2p.NewScanner(s.transfers, cfg.ScanInterval, s.logger)

	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPS * 60,
		BurstSize:         cfg.RateLimitRPS * 2,
		CleanupInterval:   time.Minute,
	})

	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return s.db.PingContext(pingCtx)
		})
	}
	if !cfg.ScannerDisabled {
		s.checks.Register("scanner", func(context.Context) error {
			if !s.scanner.IsRunning() {
				return errors.New("not running")
			}
			return nil
		})
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// setupMiddleware configures global middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(validation.RequestSizeMiddleware(s.cfg.MaxRequestSizeKB * 1024))
	s.router.Use(s.rateLimiter.Middleware())
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// requestIDMiddleware attaches a request ID to every request
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Header("X-Request-ID", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// loggingMiddleware logs each request with latency and status
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	authHandler := auth.NewHandler(s.authMgr)
	catalogHandler := catalog.NewHandler(s.catalog)
	orderHandler := orders.NewHandler(s.orders)
	transferHandler := p2p.NewHandler(s.transfers)
	ticketHandler := tickets.NewHandler(s.tickets)
	paymentHandler := payments.NewHandler(s.payments)
	settingsHandler := settings.NewHandler(s.settings)
	webhookHandler := webhooks.NewHandler(s.webhookSubs)

	// Operational endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	// Realtime transfer and listing updates
	v1.GET("/ws", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})

	// Public routes (no auth required)
	authHandler.RegisterRoutes(v1)
	catalogHandler.RegisterRoutes(v1)
	orderHandler.RegisterRoutes(v1)
	transferHandler.RegisterRoutes(v1)
	paymentHandler.RegisterRoutes(v1)

	// Protected routes (API key required)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr))
	protected.Use(auth.RequireAuth(s.authMgr))
	protected.Use(validation.AddressParamMiddleware())
	{
		authHandler.RegisterProtectedRoutes(protected)
		orderHandler.RegisterProtectedRoutes(protected)
		transferHandler.RegisterProtectedRoutes(protected)
		ticketHandler.RegisterProtectedRoutes(protected)
		webhookHandler.RegisterProtectedRoutes(protected)
	}

	// Admin routes (shared secret required)
	admin := v1.Group("")
	admin.Use(auth.AdminMiddleware(s.cfg.AdminSecret))
	{
		catalogHandler.RegisterAdminRoutes(admin)
		transferHandler.RegisterAdminRoutes(admin)
		ticketHandler.RegisterAdminRoutes(admin)
		paymentHandler.RegisterAdminRoutes(admin)
		settingsHandler.RegisterAdminRoutes(admin)
	}
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())
	s.healthy.Store(healthy)

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status": status,
		"env":    s.cfg.Env,
		"checks": statuses,
	})
}

// livenessHandler reports whether the process is alive at all.
func (s *Server) livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessHandler reports whether the server can take traffic.
func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	if s.cfg.OTLPEndpoint != "" {
		shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
		if err != nil {
			s.logger.Error("tracing init failed", "error", err)
		} else {
			s.shutdownTraces = shutdown
		}
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.hub.Run(runCtx)

	if s.cfg.ScannerDisabled {
		s.logger.Warn("deadline scanner disabled, transfers will not auto-cancel or auto-release")
	} else {
		go s.scanner.Start(runCtx)
	}

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// The listener needs a moment before readiness flips on.
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigs:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}
	return s.Shutdown()
}

// Shutdown drains in-flight requests and stops the background workers.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Keep serving briefly so load balancers see the readiness flip
	// before connections start getting refused.
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.scanner.Stop()
	s.logger.Info("scanner stopped")

	s.rateLimiter.Stop()
	s.logger.Info("rate limiter stopped")

	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router exposes the gin engine so tests can drive requests directly.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// maskDSN hides the password in a connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable)"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
