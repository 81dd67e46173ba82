package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/shortform/internal/cache"
	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/database"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/middleware"
	"github.com/therealutkarshpriyadarshi/shortform/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/shortform/internal/queue"
	"github.com/therealutkarshpriyadarshi/shortform/internal/storage"
	"github.com/therealutkarshpriyadarshi/shortform/internal/tracing"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for this client ID and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of an issued token")
	flag.Parse()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithField("service", "api")

	auth := middleware.NewAuthenticator(cfg.Server.JWTSecret)
	if *issueToken != "" {
		if !auth.Enabled() {
			log.Fatal("server.jwtSecret must be set to issue tokens")
		}
		token, err := auth.GenerateToken(*issueToken, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	_, closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer closer.Close()

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	// Initialize storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	rc, err := cache.NewCache(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rc.Close()

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	repo := database.NewRepository(db)
	monitor := monitoring.NewMonitor(repo, q, cfg.Render.ErrorCooldown, log)

	api := &API{
		renders:  repo,
		objects:  stor,
		queue:    q,
		progress: rc,
		monitor:  monitor,
		log:      log,
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	router := setupRouter(api, auth, limiter, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", addr).Info("api_server_starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Port)
		g.Go(ms.Start)
		g.Go(func() error {
			<-gctx.Done()
			return ms.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		limiter.Cleanup(gctx, 10*time.Minute)
		return nil
	})

	g.Go(func() error {
		monitor.Run(gctx, 15*time.Second)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("api_server_stopping")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.ErrorWithErr("api_server_failed", err)
		os.Exit(1)
	}
	log.Info("api_server_stopped")
}

func setupRouter(api *API, auth *middleware.Authenticator, limiter *middleware.RateLimiter, log *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log))

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(auth))
	{
		v1.POST("/renders", middleware.RateLimit(limiter), api.createRender)
		v1.GET("/renders/:id", api.getRender)
		v1.GET("/renders", api.listRenders)
		v1.GET("/status", api.status)
	}

	return router
}
