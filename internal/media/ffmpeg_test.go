package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	ctx := context.Background()

	t.Run("parses ffprobe output", func(t *testing.T) {
		f := newFixture(t, 0)
		audio := f.input(t, KindNarration, "mp3", 12.5)

		d, err := f.ffmpeg.Duration(ctx, audio.Path)
		require.NoError(t, err)
		assert.InDelta(t, 12.5, d, 1e-6)

		again, err := f.ffmpeg.Duration(ctx, audio.Path)
		require.NoError(t, err)
		assert.Equal(t, d, again)

		call := f.runner.Calls()[0]
		assert.Equal(t, "ffprobe", call.Name)
		assert.Equal(t, "format=duration", call.Arg("-show_entries"))
		assert.Equal(t, "csv=p=0", call.Arg("-of"))
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, 0)

		_, err := f.ffmpeg.Duration(ctx, filepath.Join(f.ws.Dir(), "nope.mp3"))
		require.Error(t, err)

		var probeErr *ProbeError
		assert.True(t, errors.As(err, &probeErr))
		assert.True(t, errors.Is(err, ErrMissingAsset))
		assert.Empty(t, f.runner.Calls())
	})

	t.Run("non-numeric output", func(t *testing.T) {
		f := newFixture(t, 0)
		audio := f.input(t, KindNarration, "mp3", 0)
		f.runner.RawProbe[audio.Path] = "N/A\n"

		_, err := f.ffmpeg.Duration(ctx, audio.Path)
		var probeErr *ProbeError
		require.True(t, errors.As(err, &probeErr))
		assert.Equal(t, audio.Path, probeErr.Path)
		assert.Contains(t, err.Error(), "N/A")
	})

	t.Run("negative duration", func(t *testing.T) {
		f := newFixture(t, 0)
		audio := f.input(t, KindNarration, "mp3", 0)
		f.runner.RawProbe[audio.Path] = "-1.0"

		_, err := f.ffmpeg.Duration(ctx, audio.Path)
		var probeErr *ProbeError
		assert.True(t, errors.As(err, &probeErr))
	})
}

func TestCutAudioFrom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	in := f.input(t, KindNarration, "mp3", 10)
	out := f.ws.New(KindNarration, "mp3")

	require.NoError(t, f.ffmpeg.CutAudioFrom(ctx, in, out, 1234))
	assert.True(t, out.Exists())

	call, ok := f.runner.LastFFmpegCall()
	require.True(t, ok)
	assert.Equal(t, in.Path, call.Arg("-i"))
	assert.Equal(t, "1.234", call.Arg("-ss"))
	assert.Equal(t, "libmp3lame", call.Arg("-c:a"))
	assert.Equal(t, out.Path, call.Output())

	t.Run("negative offset", func(t *testing.T) {
		err := f.ffmpeg.CutAudioFrom(ctx, in, f.ws.New(KindNarration, "mp3"), -1)
		assert.Error(t, err)
	})

	t.Run("missing input", func(t *testing.T) {
		ghost := Asset{Path: filepath.Join(f.ws.Dir(), "ghost.mp3"), Kind: KindNarration}
		err := f.ffmpeg.CutAudioFrom(ctx, ghost, f.ws.New(KindNarration, "mp3"), 0)
		assert.ErrorIs(t, err, ErrMissingAsset)
	})
}

func TestRunRemovesPartialOutput(t *testing.T) {
	f := newFixture(t, 10)
	in := f.input(t, KindNarration, "mp3", 10)
	out := f.ws.New(KindNarration, "mp3")
	f.runner.FailWhenOutputContains(filepath.Base(out.Path), errors.New("exit status 1"))

	err := f.ffmpeg.CutAudioFrom(context.Background(), in, out, 500)
	require.Error(t, err)
	assert.True(t, IsExternal(err))
	assert.Contains(t, err.Error(), "cut_audio")

	_, statErr := os.Stat(out.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0.000", formatSeconds(0))
	assert.Equal(t, "12.500", formatSeconds(12.5))
	assert.Equal(t, "1.000", formatSeconds(0.99999))

	assert.Equal(t, "0.000", formatMillis(0))
	assert.Equal(t, "0.045", formatMillis(45))
	assert.Equal(t, "12.340", formatMillis(12340))
}
