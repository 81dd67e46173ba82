package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media/mediatest"
	"github.com/therealutkarshpriyadarshi/shortform/internal/narration"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// fakeNarrator writes a narration file and returns fixed timings
type fakeNarrator struct {
	words    []models.WordTiming
	trimmed  bool
	err      error
	duration float64
	runner   *mediatest.FakeRunner
	calls    int
}

func (n *fakeNarrator) Narrate(ctx context.Context, ws *media.Workspace, title string, voice models.VoiceConfig) (*narration.Narration, error) {
	n.calls++
	if n.err != nil {
		return nil, n.err
	}
	audio, err := ws.Write(media.KindNarration, "mp3", []byte("narration"))
	if err != nil {
		return nil, err
	}
	n.runner.SetDuration(audio.Path, n.duration)
	return &narration.Narration{
		Audio:   audio,
		Words:   n.words,
		Text:    narration.PrepareText(title),
		Trimmed: n.trimmed,
	}, nil
}

type renderFixture struct {
	runner   *mediatest.FakeRunner
	narrator *fakeNarrator
	renderer *Renderer
	ws       *media.Workspace
	req      RenderRequest
}

func newRenderFixture(t *testing.T, cfg config.RenderConfig) *renderFixture {
	t.Helper()

	inputs := t.TempDir()
	ws, err := media.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	runner := mediatest.NewFakeRunner(60)
	narrator := &fakeNarrator{
		words: []models.WordTiming{
			{Text: "hello", Start: 0.1, End: 0.5},
			{Text: "world!", Start: 0.5, End: 1.0},
		},
		trimmed:  true,
		duration: 10,
		runner:   runner,
	}

	ff := media.NewFFmpegWithRunner("ffmpeg", "ffprobe", runner)
	f := &renderFixture{
		runner:   runner,
		narrator: narrator,
		renderer: NewRenderer(ff, narrator, cfg, logging.Nop()),
		ws:       ws,
		req: RenderRequest{
			RenderID:       "render-1",
			Title:          "hello world",
			ImagePath:      writeInput(t, inputs, "image.png"),
			MusicPath:      writeInput(t, inputs, "music.mp3"),
			BackgroundPath: writeInput(t, inputs, "background.mp4"),
		},
	}
	runner.SetDuration(f.req.MusicPath, 120)
	runner.SetDuration(f.req.BackgroundPath, 40)
	return f
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0644))
	return p
}

func defaultRenderConfig() config.RenderConfig {
	return config.RenderConfig{
		TrailingPad:    4,
		SubtitleOffset: 1,
		CompressCRF:    26,
	}
}

func TestRender(t *testing.T) {
	f := newRenderFixture(t, defaultRenderConfig())

	var stages []string
	f.renderer.OnStage = func(ctx context.Context, renderID, stage string) {
		assert.Equal(t, "render-1", renderID)
		stages = append(stages, stage)
	}

	result, err := f.renderer.Render(context.Background(), f.ws, f.req)
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.NarrationDuration)
	assert.Equal(t, 14.0, result.TargetDuration)
	assert.Equal(t, 2, result.Cues)
	assert.True(t, result.Trimmed)
	assert.True(t, result.Output.Exists())
	assert.Equal(t, media.KindFinal, result.Output.Kind)

	assert.Equal(t, []string{
		StageNarrate,
		StageWriteCaptions,
		StageProbeNarration,
		StageStillClip,
		StageTrimMusic,
		StageMixAudio,
		StageOverlayVideo,
		StageBurnSubtitles,
	}, stages)

	captions, err := os.ReadFile(result.CaptionsPath)
	require.NoError(t, err)
	assert.Equal(t,
		"1\n00:00:01,100 --> 00:00:01,500\nHELLO\n\n2\n00:00:01,500 --> 00:00:02,000\nWORLD\n\n",
		string(captions))

	calls := f.runner.FFmpegCalls()
	require.Len(t, calls, 6)

	still, music, mix, background, overlay, burn := calls[0], calls[1], calls[2], calls[3], calls[4], calls[5]
	assert.Equal(t, "420", still.Arg("-frames:v"))
	assert.Equal(t, "14.000", music.Arg("-t"))
	assert.Equal(t, music.Output(), mix.Inputs()[1])
	assert.Contains(t, mix.Arg("-filter_complex"), "between(t,1.000,11.000)")
	assert.Equal(t, "14.000", background.Arg("-t"))
	assert.Equal(t, []string{background.Output(), still.Output(), mix.Output()}, overlay.Inputs())
	assert.Equal(t, overlay.Output(), burn.Arg("-i"))
	assert.True(t, strings.Contains(burn.Arg("-vf"), "captions.srt"))
	assert.Equal(t, burn.Output(), result.Output.Path)
}

func TestRenderCompress(t *testing.T) {
	cfg := defaultRenderConfig()
	cfg.Compress = true
	f := newRenderFixture(t, cfg)

	result, err := f.renderer.Render(context.Background(), f.ws, f.req)
	require.NoError(t, err)

	last, _ := f.runner.LastFFmpegCall()
	assert.Equal(t, "scale=720:-2", last.Arg("-vf"))
	assert.Equal(t, "26", last.Arg("-crf"))
	assert.Equal(t, last.Output(), result.Output.Path)
}

func TestRenderWithoutCaptions(t *testing.T) {
	f := newRenderFixture(t, defaultRenderConfig())
	f.narrator.words = []models.WordTiming{{Text: "...", Start: 0, End: 0.2}}
	f.narrator.trimmed = false

	result, err := f.renderer.Render(context.Background(), f.ws, f.req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cues)
	assert.False(t, result.Trimmed)

	// the empty captions file leaves the composite as the final output
	calls := f.runner.FFmpegCalls()
	require.Len(t, calls, 5)
	assert.Equal(t, calls[4].Output(), result.Output.Path)
}

func TestRenderFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing input", func(t *testing.T) {
		f := newRenderFixture(t, defaultRenderConfig())
		f.req.BackgroundPath = filepath.Join(t.TempDir(), "gone.mp4")

		_, err := f.renderer.Render(ctx, f.ws, f.req)
		assert.ErrorIs(t, err, media.ErrMissingAsset)
		assert.Equal(t, 0, f.narrator.calls)
	})

	t.Run("narration failure", func(t *testing.T) {
		f := newRenderFixture(t, defaultRenderConfig())
		f.narrator.err = &media.ExternalServiceError{Op: "synthesize", Err: errors.New("quota")}

		_, err := f.renderer.Render(ctx, f.ws, f.req)
		require.Error(t, err)
		assert.True(t, media.IsExternal(err))
		assert.Contains(t, err.Error(), StageNarrate)
		assert.Empty(t, f.runner.FFmpegCalls())
	})

	t.Run("mix failure stops the pipeline", func(t *testing.T) {
		f := newRenderFixture(t, defaultRenderConfig())
		f.runner.FailWhenOutputContains(string(filepath.Separator)+"mix_", errors.New("exit status 1"))

		_, err := f.renderer.Render(ctx, f.ws, f.req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), StageMixAudio)
		assert.Len(t, f.runner.FFmpegCalls(), 3)
	})
}
