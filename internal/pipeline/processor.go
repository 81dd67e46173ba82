package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// ErrDuplicate is returned for titles that were already rendered
var ErrDuplicate = errors.New("title already rendered")

// ErrInterrupted is returned when the caller cancelled the render, e.g. on
// worker shutdown. The render is left queued and nothing is logged as failed.
var ErrInterrupted = errors.New("render interrupted")

// CooldownError is returned while a recent failure blocks new renders
type CooldownError struct {
	LastError time.Time
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooling down after error at %s, %s remaining",
		e.LastError.Format(time.RFC3339), e.Remaining.Round(time.Second))
}

// RetryAfter is how long the render should wait before it is tried again
func (e *CooldownError) RetryAfter() time.Duration {
	return e.Remaining
}

// RenderRunner renders one request inside a workspace
type RenderRunner interface {
	Render(ctx context.Context, ws *media.Workspace, req RenderRequest) (*RenderResult, error)
}

// AssetStore fetches inputs and stores results
type AssetStore interface {
	RandomObject(ctx context.Context, prefix, ext string) (string, error)
	DownloadFile(ctx context.Context, objectName, filePath string) error
	UploadFile(ctx context.Context, objectName, filePath string) error
}

// RenderRepository persists render records and the error log
type RenderRepository interface {
	UpdateRender(ctx context.Context, render *models.Render) error
	RecordError(ctx context.Context, renderErr *models.RenderError) error
	LastErrorAt(ctx context.Context) (time.Time, bool, error)
}

// TitleIndex remembers rendered titles and tracks render progress
type TitleIndex interface {
	IsRendered(ctx context.Context, source, title string) (bool, error)
	MarkRendered(ctx context.Context, source, title string) error
	SetStage(ctx context.Context, renderID, stage string) error
}

// Notifier announces finished renders
type Notifier interface {
	Notify(ctx context.Context, event string, render *models.Render) error
}

// Render lifecycle events sent to the notifier
const (
	EventRenderCompleted = "render.completed"
	EventRenderFailed    = "render.failed"
)

// Processor runs a queued render end to end: gating, inputs, render with
// retries, upload and bookkeeping.
type Processor struct {
	renderer RenderRunner
	store    AssetStore
	repo     RenderRepository
	titles   TitleIndex
	notifier Notifier
	storage  config.StorageConfig
	cfg      config.RenderConfig
	voice    models.VoiceConfig
	log      *logging.Logger
	now      func() time.Time
}

// NewProcessor creates a processor. notifier may be nil.
func NewProcessor(renderer RenderRunner, store AssetStore, repo RenderRepository, titles TitleIndex, notifier Notifier, cfg *config.Config, log *logging.Logger) *Processor {
	return &Processor{
		renderer: renderer,
		store:    store,
		repo:     repo,
		titles:   titles,
		notifier: notifier,
		storage:  cfg.Storage,
		cfg:      cfg.Render,
		voice:    cfg.Speech.Voice,
		log:      log,
		now:      time.Now,
	}
}

// TrackStage records the current stage of a render. It is meant to be used as Renderer.OnStage.
func (p *Processor) TrackStage(ctx context.Context, renderID, stage string) {
	if err := p.titles.SetStage(ctx, renderID, stage); err != nil {
		p.log.WithRenderID(renderID).WithError(err).Warn("stage_tracking_failed")
	}
}

// Process renders r. It returns ErrDuplicate or a *CooldownError when the
// render was not attempted, and the render error when it failed.
func (p *Processor) Process(ctx context.Context, r *models.Render) error {
	log := p.log.WithRenderID(r.ID)

	if err := p.checkCooldown(ctx); err != nil {
		log.WithError(err).Warn("render_deferred")
		return err
	}

	duplicate, err := p.titles.IsRendered(ctx, r.Source, r.Title)
	if err != nil {
		log.WithError(err).Warn("duplicate_check_failed")
	}
	metrics.RecordCacheAccess("rendered_titles", duplicate)
	if duplicate {
		r.Status = models.RenderStatusSkipped
		r.ErrorMsg = ErrDuplicate.Error()
		p.save(ctx, r)
		metrics.RecordRenderCompleted(models.RenderStatusSkipped, 0)
		log.LogRenderEvent(r.ID, "render_skipped", r.Status, map[string]interface{}{"title": r.Title})
		return ErrDuplicate
	}

	started := p.now()
	r.Status = models.RenderStatusProcessing
	r.StartedAt = &started
	r.ErrorMsg = ""
	p.save(ctx, r)

	metrics.RendersInProgress.Inc()
	defer metrics.RendersInProgress.Dec()

	parent := ctx
	abort := func(jobCtx context.Context, err error) error {
		if parent.Err() != nil {
			return p.interrupt(parent, r, err)
		}
		return p.fail(jobCtx, r, err)
	}

	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	ws, err := media.NewWorkspace(p.cfg.TempDir)
	if err != nil {
		return abort(ctx, err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			log.WithError(err).Warn("workspace_cleanup_failed")
		}
	}()

	req, err := p.fetchInputs(ctx, ws, r)
	if err != nil {
		return abort(ctx, err)
	}

	var result *RenderResult
	err = Retry(ctx, p.cfg.MaxAttempts, p.cfg.RetryDelay, media.IsExternal, func(attempt int) error {
		r.Attempts = attempt
		if attempt > 1 {
			metrics.RecordRetry("render")
			log.WithField("attempt", attempt).Warn("render_retry")
		}
		var err error
		result, err = p.renderer.Render(ctx, ws, req)
		return err
	})
	if err != nil {
		return abort(ctx, err)
	}

	if err := p.upload(ctx, r, result); err != nil {
		return abort(ctx, err)
	}

	completed := p.now()
	r.Status = models.RenderStatusCompleted
	r.Stage = ""
	r.Duration = result.TargetDuration
	r.Degraded = !result.Trimmed
	r.CompletedAt = &completed
	p.save(ctx, r)

	if err := p.titles.MarkRendered(ctx, r.Source, r.Title); err != nil {
		log.WithError(err).Warn("mark_rendered_failed")
	}

	metrics.RecordRenderCompleted(models.RenderStatusCompleted, completed.Sub(started).Seconds())
	log.LogRenderEvent(r.ID, "render_uploaded", r.Status, map[string]interface{}{
		"output_key": r.OutputKey,
		"attempts":   r.Attempts,
		"degraded":   r.Degraded,
	})
	p.notify(ctx, EventRenderCompleted, r)
	return nil
}

func (p *Processor) checkCooldown(ctx context.Context) error {
	if p.cfg.ErrorCooldown <= 0 {
		return nil
	}

	last, ok, err := p.repo.LastErrorAt(ctx)
	if err != nil {
		// an unreadable error log must not stall the worker
		p.log.WithError(err).Warn("cooldown_check_failed")
		return nil
	}
	if !ok {
		return nil
	}

	elapsed := p.now().Sub(last)
	if elapsed >= p.cfg.ErrorCooldown {
		return nil
	}
	return &CooldownError{LastError: last, Remaining: p.cfg.ErrorCooldown - elapsed}
}

func (p *Processor) fetchInputs(ctx context.Context, ws *media.Workspace, r *models.Render) (RenderRequest, error) {
	req := RenderRequest{
		RenderID: r.ID,
		Title:    r.Title,
		Voice:    p.voice,
	}
	if r.VoiceID != "" {
		req.Voice.VoiceID = r.VoiceID
	}

	var err error
	if r.MusicKey == "" {
		if r.MusicKey, err = p.store.RandomObject(ctx, p.storage.MusicPrefix, ".mp3"); err != nil {
			return req, fmt.Errorf("failed to pick music: %w", err)
		}
	}
	if r.BackgroundKey == "" {
		if r.BackgroundKey, err = p.store.RandomObject(ctx, p.storage.BackgroundPrefix, ".mp4"); err != nil {
			return req, fmt.Errorf("failed to pick background: %w", err)
		}
	}

	downloads := []struct {
		key  string
		name string
		dest *string
	}{
		{r.ImageKey, "image" + path.Ext(r.ImageKey), &req.ImagePath},
		{r.MusicKey, "music" + path.Ext(r.MusicKey), &req.MusicPath},
		{r.BackgroundKey, "background" + path.Ext(r.BackgroundKey), &req.BackgroundPath},
	}
	for _, d := range downloads {
		local := filepath.Join(ws.Dir(), d.name)
		if err := p.store.DownloadFile(ctx, d.key, local); err != nil {
			return req, fmt.Errorf("failed to download %s: %w", d.key, err)
		}
		*d.dest = local
	}

	p.log.WithRenderID(r.ID).WithFields(map[string]interface{}{
		"image":      r.ImageKey,
		"music":      r.MusicKey,
		"background": r.BackgroundKey,
	}).Info("inputs_downloaded")
	return req, nil
}

func (p *Processor) upload(ctx context.Context, r *models.Render, result *RenderResult) error {
	prefix := path.Join(p.storage.RenderPrefix, r.ID)

	outputKey := path.Join(prefix, "final.mp4")
	if err := p.store.UploadFile(ctx, outputKey, result.Output.Path); err != nil {
		return fmt.Errorf("failed to upload render: %w", err)
	}
	r.OutputKey = outputKey

	if result.Cues > 0 {
		captionsKey := path.Join(prefix, "captions.srt")
		if err := p.store.UploadFile(ctx, captionsKey, result.CaptionsPath); err != nil {
			return fmt.Errorf("failed to upload captions: %w", err)
		}
		r.CaptionsKey = captionsKey
	}
	return nil
}

// interrupt puts r back to queued without touching the error log
func (p *Processor) interrupt(ctx context.Context, r *models.Render, err error) error {
	ctx = context.WithoutCancel(ctx)

	r.Status = models.RenderStatusQueued
	r.Stage = ""
	r.StartedAt = nil
	p.save(ctx, r)

	p.log.WithRenderID(r.ID).WithError(err).Warn("render_interrupted")
	return fmt.Errorf("%w: %w", ErrInterrupted, err)
}

// fail records the failure everywhere and returns err
func (p *Processor) fail(ctx context.Context, r *models.Render, err error) error {
	// bookkeeping must outlive a job timeout
	ctx = context.WithoutCancel(ctx)
	now := p.now()

	r.Status = models.RenderStatusFailed
	r.ErrorMsg = err.Error()
	r.CompletedAt = &now
	p.save(ctx, r)

	renderErr := &models.RenderError{
		RenderID:   r.ID,
		Source:     r.Source,
		Title:      r.Title,
		Message:    err.Error(),
		OccurredAt: now,
	}
	if logErr := p.repo.RecordError(ctx, renderErr); logErr != nil {
		p.log.WithRenderID(r.ID).WithError(logErr).Error("error_logging_failed")
	}

	component := "pipeline"
	if media.IsExternal(err) {
		component = "external"
	}
	metrics.RecordError(component, "render_failed")
	metrics.RecordRenderCompleted(models.RenderStatusFailed, 0)
	p.log.WithRenderID(r.ID).ErrorWithErr("render_failed", err)
	p.notify(ctx, EventRenderFailed, r)
	return err
}

func (p *Processor) save(ctx context.Context, r *models.Render) {
	r.UpdatedAt = p.now()
	if err := p.repo.UpdateRender(ctx, r); err != nil {
		p.log.WithRenderID(r.ID).WithError(err).Error("render_update_failed")
	}
}

func (p *Processor) notify(ctx context.Context, event string, r *models.Render) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, event, r); err != nil {
		p.log.WithRenderID(r.ID).WithError(err).Warn("notify_failed")
	}
}
