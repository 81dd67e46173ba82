package narration

import (
	"errors"
	"math"
	"strings"
	"unicode"

	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// BoundaryWord is the last word of the preamble
const BoundaryWord = "titled"

// ErrBoundaryNotFound is returned when the aligned transcript has no preamble boundary
var ErrBoundaryNotFound = errors.New("preamble boundary not found")

// FindBoundary returns the index and end time of the first aligned word that reads "titled"
func FindBoundary(words []models.WordTiming) (int, float64, error) {
	for i, w := range words {
		if normalizeWord(w.Text) == BoundaryWord {
			return i, w.End, nil
		}
	}
	return -1, 0, ErrBoundaryNotFound
}

// Rebase shifts words so that boundary becomes time zero.
// The input is left untouched; times are rounded to the millisecond.
func Rebase(words []models.WordTiming, boundary float64) []models.WordTiming {
	out := make([]models.WordTiming, len(words))
	for i, w := range words {
		out[i] = models.WordTiming{
			Text:  w.Text,
			Start: roundMillis(w.Start - boundary),
			End:   roundMillis(w.End - boundary),
		}
	}
	return out
}

// TrimPreamble drops everything up to and including the boundary word and
// re-bases what follows. Without a boundary it returns ErrBoundaryNotFound
// and a copy of the input.
func TrimPreamble(words []models.WordTiming) ([]models.WordTiming, float64, error) {
	idx, boundary, err := FindBoundary(words)
	if err != nil {
		return append([]models.WordTiming(nil), words...), 0, err
	}
	return Rebase(words[idx+1:], boundary), boundary, nil
}

// CutOffsetMillis converts the boundary to the audio cut point
func CutOffsetMillis(boundary float64) int64 {
	// alignment times arrive as decimal seconds, keep 0.291 from becoming 290
	return int64(math.Floor(boundary*1000 + 1e-6))
}

func roundMillis(t float64) float64 {
	return math.Round(t*1000) / 1000
}

func normalizeWord(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
