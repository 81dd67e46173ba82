package media

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurnSubtitles(t *testing.T) {
	ctx := context.Background()

	t.Run("burns captions", func(t *testing.T) {
		f := newFixture(t, 0)
		video := f.input(t, KindComposite, "mp4", 12)
		captions := writeFile(t, f.ws.Dir(), "captions.srt", "1\n00:00:01,000 --> 00:00:01,400\nHELLO\n\n")

		out, err := f.compositor().BurnSubtitles(ctx, video, captions)
		require.NoError(t, err)
		assert.NotEqual(t, video.Path, out.Path)
		assert.Equal(t, KindFinal, out.Kind)

		call, _ := f.runner.LastFFmpegCall()
		assert.Equal(t, "copy", call.Arg("-c:a"))
		assert.Contains(t, call.Arg("-vf"), "subtitles='"+captions+"':")
		assert.Contains(t, call.Arg("-vf"),
			"force_style='FontName=Montserrat,FontSize=12,PrimaryColour=&H00FFFF00,Bold=1,Outline=2,OutlineColour=&H00000000,Shadow=0,Alignment=10'")
	})

	t.Run("missing captions pass through", func(t *testing.T) {
		f := newFixture(t, 0)
		video := f.input(t, KindComposite, "mp4", 12)

		out, err := f.compositor().BurnSubtitles(ctx, video, filepath.Join(f.ws.Dir(), "none.srt"))
		require.NoError(t, err)
		assert.Equal(t, video, out)
		assert.Empty(t, f.runner.FFmpegCalls())
	})

	t.Run("empty captions pass through", func(t *testing.T) {
		f := newFixture(t, 0)
		video := f.input(t, KindComposite, "mp4", 12)
		captions := writeFile(t, f.ws.Dir(), "empty.srt", "")

		out, err := f.compositor().BurnSubtitles(ctx, video, captions)
		require.NoError(t, err)
		assert.Equal(t, video, out)
		assert.Empty(t, f.runner.FFmpegCalls())
	})

	t.Run("no captions path", func(t *testing.T) {
		f := newFixture(t, 0)
		video := f.input(t, KindComposite, "mp4", 12)

		out, err := f.compositor().BurnSubtitles(ctx, video, "")
		require.NoError(t, err)
		assert.Equal(t, video, out)
	})

	t.Run("missing video", func(t *testing.T) {
		f := newFixture(t, 0)
		captions := writeFile(t, f.ws.Dir(), "captions.srt", "1\n")

		_, err := f.compositor().BurnSubtitles(ctx, f.ws.New(KindComposite, "mp4"), captions)
		assert.ErrorIs(t, err, ErrMissingAsset)
	})
}

func TestSubtitleFilterQuoting(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tmp/w/captions.srt", `subtitles='/tmp/w/captions.srt':force_style=`},
		{`C:\renders\a.srt`, `subtitles='C\:\\renders\\a.srt':force_style=`},
		{"/tmp/it's/a.srt", `subtitles='/tmp/it\'\''s/a.srt':force_style=`},
		{"/tmp/a,b;[c]/a.srt", `subtitles='/tmp/a,b;[c]/a.srt':force_style=`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(subtitleFilter(tt.path, DefaultSubtitleStyle), tt.want))
		})
	}
}

func TestBurnSubtitlesWithFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	filters, err := exec.Command("ffmpeg", "-hide_banner", "-filters").Output()
	if err != nil || !strings.Contains(string(filters), " subtitles ") {
		t.Skip("ffmpeg built without libass")
	}

	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "it's: a render")
	ws, err := NewWorkspace(root)
	require.NoError(t, err)
	defer ws.Cleanup()

	video := ws.New(KindComposite, "mp4")
	require.NoError(t, exec.Command("ffmpeg", "-y", "-f", "lavfi", "-i", "color=c=black:s=320x240:d=1",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo", "-t", "1", "-c:v", "libx264", "-c:a", "aac", video.Path).Run())
	captions := writeFile(t, ws.Dir(), "captions.srt", "1\n00:00:00,000 --> 00:00:00,800\nHELLO\n\n")

	c := NewCompositor(NewFFmpeg("ffmpeg", "ffprobe"), ws, zerolog.Nop())
	out, err := c.BurnSubtitles(ctx, video, captions)
	require.NoError(t, err)
	assert.True(t, out.Exists())
	assert.Equal(t, KindFinal, out.Kind)
}
