// Package narration turns a title into narration audio with word timings
// that start at the first word of the title.
package narration

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// Synthesizer converts text to encoded (mp3) speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice models.VoiceConfig) ([]byte, error)
}

// Aligner returns word timings for audio that reads text
type Aligner interface {
	Align(ctx context.Context, audio []byte, text string) ([]models.WordTiming, error)
}

// AudioCutter drops the first fromMs milliseconds of an audio file
type AudioCutter interface {
	CutAudioFrom(ctx context.Context, in, out media.Asset, fromMs int64) error
}

// Narration is the result of a narrate call
type Narration struct {
	Audio    media.Asset
	Words    []models.WordTiming
	Text     string  // the text that was synthesized
	Boundary float64 // seconds of preamble cut from the audio
	Trimmed  bool
}

// Engine synthesizes, aligns and trims narrations
type Engine struct {
	synth   Synthesizer
	aligner Aligner
	cutter  AudioCutter
	log     zerolog.Logger
}

// NewEngine creates an alignment engine
func NewEngine(synth Synthesizer, aligner Aligner, cutter AudioCutter, log zerolog.Logger) *Engine {
	return &Engine{
		synth:   synth,
		aligner: aligner,
		cutter:  cutter,
		log:     log,
	}
}

// Narrate speaks the title and returns audio and timings with the preamble removed.
// When the preamble cannot be located the full audio and timings are returned
// with Trimmed set to false.
func (e *Engine) Narrate(ctx context.Context, ws *media.Workspace, title string, voice models.VoiceConfig) (*Narration, error) {
	text := PrepareText(title)
	e.log.Info().Str("voice_id", voice.VoiceID).Int("chars", len(text)).Msg("tts_generation_started")

	audio, err := e.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, external("synthesize", voice.VoiceID, err)
	}

	full, err := ws.Write(media.KindNarration, "mp3", audio)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("file", full.Path).Msg("tts_audio_generated")

	words, err := e.aligner.Align(ctx, audio, text)
	if err != nil {
		return nil, external("align", full.String(), err)
	}
	e.log.Info().Int("word_count", len(words)).Msg("forced_alignment_complete")

	trimmed, boundary, err := TrimPreamble(words)
	if errors.Is(err, ErrBoundaryNotFound) {
		e.log.Warn().Err(err).Msg("preamble_trim_failed")
		return &Narration{Audio: full, Words: trimmed, Text: text}, nil
	}

	cut := ws.New(media.KindNarration, "mp3")
	if err := e.cutter.CutAudioFrom(ctx, full, cut, CutOffsetMillis(boundary)); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("trimmed_file", cut.Path).
		Float64("boundary", boundary).
		Int("adjusted_word_count", len(trimmed)).
		Msg("tts_trim_complete")

	return &Narration{
		Audio:    cut,
		Words:    trimmed,
		Text:     text,
		Boundary: boundary,
		Trimmed:  true,
	}, nil
}

func external(op, target string, err error) error {
	var ext *media.ExternalServiceError
	if errors.As(err, &ext) || errors.Is(err, media.ErrMisconfigured) {
		return err
	}
	return &media.ExternalServiceError{Op: op, Target: target, Err: err}
}
