// Package pipeline sequences narration, captions, audio mix and video
// composition into one rendered short.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/narration"
	"github.com/therealutkarshpriyadarshi/shortform/internal/subtitle"
	"github.com/therealutkarshpriyadarshi/shortform/internal/tracing"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// Stage names, also used as metric labels and cache progress values
const (
	StageNarrate        = "narrate"
	StageWriteCaptions  = "write_captions"
	StageProbeNarration = "probe_narration"
	StageStillClip      = "still_clip"
	StageTrimMusic      = "trim_music"
	StageMixAudio       = "mix_audio"
	StageOverlayVideo   = "overlay_video"
	StageBurnSubtitles  = "burn_subtitles"
	StageCompress       = "compress_video"
)

// Narrator produces the trimmed narration for a title
type Narrator interface {
	Narrate(ctx context.Context, ws *media.Workspace, title string, voice models.VoiceConfig) (*narration.Narration, error)
}

// RenderRequest holds the inputs of one render. All paths must exist locally.
type RenderRequest struct {
	RenderID       string
	Title          string
	ImagePath      string
	MusicPath      string
	BackgroundPath string
	Voice          models.VoiceConfig
}

// RenderResult describes a finished render. Files live in the workspace
// passed to Render and disappear with it.
type RenderResult struct {
	Output            media.Asset
	CaptionsPath      string
	NarrationDuration float64
	TargetDuration    float64
	Cues              int
	Trimmed           bool
}

// Renderer runs the media pipeline for a single render
type Renderer struct {
	ffmpeg   *media.FFmpeg
	narrator Narrator
	cfg      config.RenderConfig
	log      *logging.Logger

	// OnStage is called before each stage starts
	OnStage func(ctx context.Context, renderID, stage string)
}

// NewRenderer creates a renderer
func NewRenderer(ffmpeg *media.FFmpeg, narrator Narrator, cfg config.RenderConfig, log *logging.Logger) *Renderer {
	return &Renderer{
		ffmpeg:   ffmpeg,
		narrator: narrator,
		cfg:      cfg,
		log:      log,
	}
}

// Render produces the final video for req inside ws. Stages run strictly in order;
// the first failure aborts the render.
func (r *Renderer) Render(ctx context.Context, ws *media.Workspace, req RenderRequest) (*RenderResult, error) {
	span, ctx := tracing.StartSpan(ctx, "render")
	tracing.SetTag(span, "render_id", req.RenderID)
	var err error
	defer func() { tracing.FinishSpan(span, err) }()

	log := r.log.WithRenderID(req.RenderID)
	zl := log.Zerolog()
	mixer := media.NewMixer(r.ffmpeg, ws, zl)
	compositor := media.NewCompositor(r.ffmpeg, ws, zl)

	var image, music, background media.Asset
	if image, err = ws.Adopt(media.KindImage, req.ImagePath); err != nil {
		return nil, err
	}
	if music, err = ws.Adopt(media.KindMusic, req.MusicPath); err != nil {
		return nil, err
	}
	if background, err = ws.Adopt(media.KindBackground, req.BackgroundPath); err != nil {
		return nil, err
	}

	result := &RenderResult{}

	var narr *narration.Narration
	err = r.stage(ctx, log, req.RenderID, StageNarrate, func(ctx context.Context) error {
		var err error
		narr, err = r.narrator.Narrate(ctx, ws, req.Title, req.Voice)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Trimmed = narr.Trimmed

	err = r.stage(ctx, log, req.RenderID, StageWriteCaptions, func(ctx context.Context) error {
		result.CaptionsPath = filepath.Join(ws.Dir(), "captions.srt")
		compiler := subtitle.NewCompiler(r.cfg.SubtitleOffset, zl)
		var err error
		result.Cues, err = compiler.Write(result.CaptionsPath, narr.Words)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, log, req.RenderID, StageProbeNarration, func(ctx context.Context) error {
		var err error
		result.NarrationDuration, err = r.ffmpeg.Duration(ctx, narr.Audio.Path)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.TargetDuration = result.NarrationDuration + r.cfg.TrailingPad
	metrics.RecordNarration(result.NarrationDuration, narr.Trimmed)
	metrics.RecordSubtitleCues(result.Cues)

	log.WithFields(map[string]interface{}{
		"narration_duration": result.NarrationDuration,
		"target_duration":    result.TargetDuration,
		"trimmed":            narr.Trimmed,
	}).Info("target_duration_calculated")

	var still media.Asset
	err = r.stage(ctx, log, req.RenderID, StageStillClip, func(ctx context.Context) error {
		var err error
		still, err = compositor.StillClip(ctx, image.Path, result.TargetDuration)
		return err
	})
	if err != nil {
		return nil, err
	}

	var trimmedMusic media.Asset
	err = r.stage(ctx, log, req.RenderID, StageTrimMusic, func(ctx context.Context) error {
		var err error
		trimmedMusic, err = mixer.TrimMusic(ctx, music, result.TargetDuration)
		return err
	})
	if err != nil {
		return nil, err
	}

	var mix media.Asset
	err = r.stage(ctx, log, req.RenderID, StageMixAudio, func(ctx context.Context) error {
		var err error
		mix, err = mixer.Mix(ctx, narr.Audio, trimmedMusic)
		return err
	})
	if err != nil {
		return nil, err
	}

	var composite media.Asset
	err = r.stage(ctx, log, req.RenderID, StageOverlayVideo, func(ctx context.Context) error {
		var err error
		composite, err = compositor.Overlay(ctx, background, still, &mix, result.TargetDuration)
		return err
	})
	if err != nil {
		return nil, err
	}

	var final media.Asset
	err = r.stage(ctx, log, req.RenderID, StageBurnSubtitles, func(ctx context.Context) error {
		var err error
		final, err = compositor.BurnSubtitles(ctx, composite, result.CaptionsPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	if r.cfg.Compress {
		err = r.stage(ctx, log, req.RenderID, StageCompress, func(ctx context.Context) error {
			var err error
			final, err = compositor.Compress(ctx, final, r.cfg.CompressCRF)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	result.Output = final
	log.LogRenderEvent(req.RenderID, "render_complete", models.RenderStatusCompleted, map[string]interface{}{
		"output":   final.Path,
		"duration": result.TargetDuration,
		"cues":     result.Cues,
	})
	return result, nil
}

// stage runs fn under its own span and records its duration
func (r *Renderer) stage(ctx context.Context, log *logging.Logger, renderID, name string, fn func(ctx context.Context) error) error {
	if r.OnStage != nil {
		r.OnStage(ctx, renderID, name)
	}

	span, ctx := tracing.StartSpan(ctx, name)
	start := time.Now()

	err := fn(ctx)

	elapsed := time.Since(start)
	tracing.FinishSpan(span, err)
	metrics.RecordStage(name, elapsed.Seconds(), err)
	log.LogStage(name, elapsed, err)

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
