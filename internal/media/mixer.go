package media

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// MixOptions holds the narration and ducking policy for the audio mix
type MixOptions struct {
	NarrationDelay float64 // seconds the narration starts after the music
	NarrationGain  float64
	DuckedVolume   float64 // music volume while the narration plays
}

// DefaultMixOptions is the policy used by the renderer
var DefaultMixOptions = MixOptions{
	NarrationDelay: 1.0,
	NarrationGain:  10.0,
	DuckedVolume:   0.3,
}

// Mixer produces the final soundtrack from a narration and a music bed
type Mixer struct {
	ffmpeg  *FFmpeg
	ws      *Workspace
	opts    MixOptions
	uniform Uniform
	log     zerolog.Logger
}

// NewMixer creates a mixer writing into ws
func NewMixer(ffmpeg *FFmpeg, ws *Workspace, log zerolog.Logger) *Mixer {
	return &Mixer{
		ffmpeg:  ffmpeg,
		ws:      ws,
		opts:    DefaultMixOptions,
		uniform: RandomUniform,
		log:     log,
	}
}

// WithOptions overrides the mix policy
func (m *Mixer) WithOptions(opts MixOptions) *Mixer {
	m.opts = opts
	return m
}

// TrimMusic cuts exactly target seconds out of music at a random offset
func (m *Mixer) TrimMusic(ctx context.Context, music Asset, target float64) (Asset, error) {
	if target <= 0 {
		return Asset{}, fmt.Errorf("target duration must be positive, got %.3f", target)
	}

	musicDuration, err := m.ffmpeg.Duration(ctx, music.Path)
	if err != nil {
		return Asset{}, err
	}

	start := MusicTrimStart(musicDuration, target, m.uniform)
	m.log.Info().
		Float64("start_time", start).
		Float64("music_duration", musicDuration).
		Float64("target_duration", target).
		Msg("music_trim_start")

	out := m.ws.New(KindMusic, "mp3")
	err = m.ffmpeg.run(ctx, "trim_music", out,
		"-y",
		"-ss", formatSeconds(start),
		"-i", music.Path,
		"-t", formatSeconds(target),
		"-c", "copy",
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	m.log.Info().Str("output", out.Path).Msg("music_trim_complete")
	return out, nil
}

// Mix delays and boosts the narration and ducks the music under it
func (m *Mixer) Mix(ctx context.Context, narration, music Asset) (Asset, error) {
	narrationDuration, err := m.ffmpeg.Duration(ctx, narration.Path)
	if err != nil {
		return Asset{}, err
	}
	if !music.Exists() {
		return Asset{}, missing(music.Path)
	}

	m.log.Info().Float64("duration", narrationDuration).Msg("narration_duration_calculated")

	out := m.ws.New(KindMix, "m4a")
	err = m.ffmpeg.run(ctx, "mix_audio", out,
		"-y",
		"-i", narration.Path,
		"-i", music.Path,
		"-filter_complex", m.filterGraph(narrationDuration),
		"-c:a", "aac",
		"-shortest",
		out.Path,
	)
	if err != nil {
		return Asset{}, err
	}

	m.log.Info().Str("output", out.Path).Msg("audio_merge_complete")
	return out, nil
}

// filterGraph builds the mix graph. The ducking window brackets exactly the
// delayed narration: [delay, delay+narrationDuration].
func (m *Mixer) filterGraph(narrationDuration float64) string {
	duckStart := m.opts.NarrationDelay
	duckEnd := m.opts.NarrationDelay + narrationDuration

	return fmt.Sprintf(
		"[0:a]adelay=%d:all=1,volume=%.1f[tts];"+
			"[1:a]volume='if(between(t,%s,%s),%.1f,1)':eval=frame[music_ducked];"+
			"[music_ducked][tts]amix=inputs=2:duration=longest:dropout_transition=0",
		int(m.opts.NarrationDelay*1000),
		m.opts.NarrationGain,
		formatSeconds(duckStart),
		formatSeconds(duckEnd),
		m.opts.DuckedVolume,
	)
}
