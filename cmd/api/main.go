package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/auth"
	"docs-cataguases/portal-backend/internal/config"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/metrics"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/store/memory"
	"docs-cataguases/portal-backend/internal/store/postgres"
	"docs-cataguases/portal-backend/internal/users"
	"docs-cataguases/portal-backend/pkg/logger"
	"docs-cataguases/portal-backend/pkg/pdf"
	"docs-cataguases/portal-backend/pkg/storage"
)

// appStore is what both store drivers provide.
type appStore interface {
	portarias.Store
	numbering.Store
	feed.Reader
	users.Repository
}

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Store
	var (
		store appStore
		ping  func(context.Context) error
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using the in-memory store, data is lost on restart")
		store = memory.New()
	default:
		log.Info("Connecting to database",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.DBName))
		pg, err := postgres.Open(cfg.Database, cfg.Database.GetDatabaseURL(), log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pg.Close()
		store, ping = pg, pg.Ping
	}

	// Object storage
	var objects storage.Client
	switch cfg.Storage.Driver {
	case "memory":
		objects = storage.NewMemoryClient("")
	default:
		objects, err = storage.NewS3Client(ctx, storage.S3Options{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		})
		if err != nil {
			log.Fatal("Failed to create S3 client", zap.Error(err))
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	// Services
	hub := feed.NewHub(cfg.Server.AllowedOrigins, log)
	defer hub.Close()

	allocator := numbering.NewAllocator(store, cfg.Workflow.DefaultFormat, log).WithRecorder(m)
	renderer := portarias.NewPDFRenderer(pdf.NewGenerator(pdf.DefaultOptions()), objects,
		cfg.Rendering.Municipio, cfg.Rendering.HeaderLines).WithRecorder(m)
	workflow := portarias.NewWorkflowService(store, allocator, renderer, hub,
		portarias.WorkflowConfigFrom(cfg.Workflow), log).WithRecorder(m)
	portariaService := portarias.NewService(store, objects, hub, cfg.Storage.PresignTTL, log)
	userService := users.NewService(store, cfg.Security.BcryptCost, log)
	tokens := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	if cfg.Security.AdminEmail != "" && cfg.Security.AdminPassword != "" {
		if _, err := userService.EnsureAdmin(ctx, cfg.Security.AdminEmail, cfg.Security.AdminPassword); err != nil {
			log.Fatal("Failed to create bootstrap administrator", zap.Error(err))
		}
	}

	authHandler := auth.NewHandler(userService, tokens, log)
	portariaHandler := portarias.NewHandler(portariaService, workflow, log)
	numberingHandler := numbering.NewHandler(allocator, log)
	feedHandler := feed.NewHandler(feed.NewService(store), hub, log)

	// Router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(auth.RequestLogger(log))
	router.Use(m.Middleware())
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	api := router.Group("/api/v1")
	authHandler.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(auth.NewMiddleware(tokens, userService, log).RequireAuth())
	{
		authHandler.RegisterRoutes(protected)
		portariaHandler.RegisterRoutes(protected)
		numberingHandler.RegisterRoutes(protected)
		feedHandler.RegisterRoutes(protected)
	}

	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if ping != nil {
			pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(pingCtx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status":       status,
			"timestamp":    time.Now(),
			"feed_clients": hub.ClientCount(),
		})
	})
	router.GET("/metrics", m.Handler())

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started",
		zap.String("addr", srv.Addr),
		zap.String("environment", cfg.Environment),
		zap.String("numbering_stage", cfg.Workflow.NumberingStage))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		origins[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (origins["*"] || origins[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
