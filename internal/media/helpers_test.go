package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/shortform/internal/media/mediatest"
)

type fixture struct {
	runner *mediatest.FakeRunner
	ffmpeg *FFmpeg
	ws     *Workspace
}

func newFixture(t *testing.T, defaultDuration float64) *fixture {
	t.Helper()

	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	runner := mediatest.NewFakeRunner(defaultDuration)
	return &fixture{
		runner: runner,
		ffmpeg: NewFFmpegWithRunner("ffmpeg", "ffprobe", runner),
		ws:     ws,
	}
}

// input writes a placeholder file and scripts its duration
func (f *fixture) input(t *testing.T, kind Kind, ext string, duration float64) Asset {
	t.Helper()

	asset, err := f.ws.Write(kind, ext, []byte("input"))
	require.NoError(t, err)
	f.runner.SetDuration(asset.Path, duration)
	return asset
}

func (f *fixture) mixer() *Mixer {
	return NewMixer(f.ffmpeg, f.ws, zerolog.Nop())
}

func (f *fixture) compositor() *Compositor {
	return NewCompositor(f.ffmpeg, f.ws, zerolog.Nop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fixed(v float64) Uniform {
	return func(lo, hi float64) float64 { return v }
}
