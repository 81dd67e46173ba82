package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/shortform/internal/cache"
	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/database"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/narration"
	"github.com/therealutkarshpriyadarshi/shortform/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/shortform/internal/queue"
	"github.com/therealutkarshpriyadarshi/shortform/internal/speech"
	"github.com/therealutkarshpriyadarshi/shortform/internal/storage"
	"github.com/therealutkarshpriyadarshi/shortform/internal/tracing"
	"github.com/therealutkarshpriyadarshi/shortform/internal/webhook"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

func main() {
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
	log = log.WithWorkerID(uuid.New().String())

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
	repo := database.NewRepository(db)

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

	speechClient := speech.NewClient(cfg.Speech)
	ffmpeg := media.NewFFmpeg(cfg.Render.FFmpegPath, cfg.Render.FFprobePath)
	engine := narration.NewEngine(speechClient, speechClient, ffmpeg, log.Zerolog())
	renderer := pipeline.NewRenderer(ffmpeg, engine, cfg.Render, log)

	var notifier pipeline.Notifier
	if n := webhook.NewNotifier(cfg.Notify, log); n.Enabled() {
		notifier = n
	}

	processor := pipeline.NewProcessor(renderer, stor, repo, rc, notifier, cfg, log)
	renderer.OnStage = processor.TrackStage

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	status := metrics.NewServer(cfg.Metrics.Port)
	if cfg.Metrics.Enabled {
		g.Go(status.Start)
		g.Go(func() error {
			<-gctx.Done()
			return status.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		log.Info("worker_started")
		status.SetState(metrics.WorkerConsuming)
		defer status.SetState(metrics.WorkerDraining)
		err := q.ConsumeRenders(gctx, renderHandler(processor, status))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.ErrorWithErr("worker_failed", err)
		os.Exit(1)
	}
	log.Info("worker_stopped")
}

type renderTracker interface {
	BeginRender(id string)
	EndRender()
}

// renderHandler adapts the processor to the queue. Duplicates are settled
// without further routing, interrupted renders go back to the queue and
// cooldowns keep their retry delay. t sees every render the worker takes.
func renderHandler(p interface {
	Process(ctx context.Context, r *models.Render) error
}, t renderTracker) queue.Handler {
	return func(ctx context.Context, r *models.Render) error {
		t.BeginRender(r.ID)
		defer t.EndRender()

		err := p.Process(ctx, r)
		if errors.Is(err, pipeline.ErrDuplicate) {
			return fmt.Errorf("%w: %w", queue.ErrSkip, err)
		}
		if errors.Is(err, pipeline.ErrInterrupted) {
			return fmt.Errorf("%w: %w", queue.ErrRequeue, err)
		}
		return err
	}
}
