// Package subtitle compiles word timings into SubRip captions.
package subtitle

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// DefaultOffset is how far captions trail the word timings, matching the narration delay in the mix
const DefaultOffset = 1.0

// Cue is one SubRip block
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// CleanText uppercases a word and keeps only letters, digits, underscores and whitespace
func CleanText(text string) string {
	text = strings.ToUpper(strings.TrimSpace(text))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)
}

// Compile turns words into cues shifted by offset. Words that clean to
// nothing are dropped without using up an index.
func Compile(words []models.WordTiming, offset float64) []Cue {
	cues := make([]Cue, 0, len(words))
	for _, w := range words {
		text := CleanText(w.Text)
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: w.Start + offset,
			End:   w.End + offset,
			Text:  text,
		})
	}
	return cues
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
// Negative times are clamped to zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	whole := int64(math.Floor(seconds))
	millis := int64(math.Round((seconds - float64(whole)) * 1000))
	if millis >= 1000 {
		whole++
		millis -= 1000
	}

	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, millis)
}

// Encode writes cues as SubRip
func Encode(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for _, cue := range cues {
		bw.WriteString(strconv.Itoa(cue.Index))
		bw.WriteString("\n")
		bw.WriteString(FormatTimestamp(cue.Start))
		bw.WriteString(" --> ")
		bw.WriteString(FormatTimestamp(cue.End))
		bw.WriteString("\n")
		bw.WriteString(cue.Text)
		bw.WriteString("\n\n")
	}
	return bw.Flush()
}

// Format renders cues to SubRip bytes
func Format(cues []Cue) []byte {
	var buf bytes.Buffer
	Encode(&buf, cues)
	return buf.Bytes()
}

// WriteFile compiles words and writes them to path, returning the number of cues
func WriteFile(path string, words []models.WordTiming, offset float64) (int, error) {
	cues := Compile(words, offset)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create subtitles: %w", err)
	}

	if err := Encode(f, cues); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write subtitles: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close subtitles: %w", err)
	}

	return len(cues), nil
}

// Compiler writes caption files with a fixed offset
type Compiler struct {
	offset float64
	log    zerolog.Logger
}

// NewCompiler creates a compiler
func NewCompiler(offset float64, log zerolog.Logger) *Compiler {
	return &Compiler{offset: offset, log: log}
}

// Write compiles words into a SubRip file at path
func (c *Compiler) Write(path string, words []models.WordTiming) (int, error) {
	n, err := WriteFile(path, words, c.offset)
	if err != nil {
		c.log.Error().Err(err).Str("file", path).Msg("subtitle_generation_failed")
		return 0, err
	}
	c.log.Info().Str("file", path).Int("lines", n).Msg("subtitles_written")
	return n, nil
}
