package narration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two acronyms", "idk fr this is wholesome", "I don't know for real this is wholesome"},
		{"case insensitive", "OMG it's real", "oh my gosh it's real"},
		{"whole words only", "from frank", "from frank"},
		{"punctuation boundaries", "lol, brb.", "laughing out loud, be right back."},
		{"longer key wins", "imho", "in my humble opinion"},
		{"nothing to do", "plain title", "plain title"},
		{"accented letter joins word", "éfr and fré", "éfr and fré"},
		{"unicode neighbours split words", "«fr»¡idk!", "«for real»¡I don't know!"},
		{"non-latin letter joins word", "даfr", "даfr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.input))
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single word", "what the hell", "what the heck"},
		{"case insensitive", "DAMN son", "dang son"},
		{"phrase beats its words", "you son of a bitch", "you piece of work"},
		{"longer word beats prefix", "this is shitty", "this is crappy"},
		{"inside words untouched", "classic assessment", "classic assessment"},
		{"two word phrase", "screw you buddy", "forget you buddy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input))
		})
	}
}

func TestPrepareText(t *testing.T) {
	t.Run("preamble expanded then sanitized", func(t *testing.T) {
		text := PrepareText("idk fr this is wholesome")
		assert.Equal(t, "This meme is titled I don't know for real this is wholesome", text)
		assert.Contains(t, text, "I don't know")
		assert.Contains(t, text, "for real")
	})

	t.Run("expansion output is sanitized", func(t *testing.T) {
		assert.Equal(t, "This meme is titled what the fudge happened", PrepareText("wtf happened"))
	})

	t.Run("empty title", func(t *testing.T) {
		assert.Equal(t, "This meme is titled ", PrepareText("  "))
	})

	t.Run("pure", func(t *testing.T) {
		assert.Equal(t, PrepareText("lmao damn"), PrepareText("lmao damn"))
	})
}

func TestLexicon(t *testing.T) {
	empty := NewLexicon(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "unchanged", empty.Apply("unchanged"))

	custom := NewLexicon(map[string]string{"A.B": "ab", " ": "skip"})
	assert.Equal(t, 1, custom.Len())
	assert.Equal(t, "x ab y", custom.Apply("x a.b y"))
	assert.Equal(t, "x aXb y", custom.Apply("x aXb y"))

	shadow := NewLexicon(map[string]string{"ab": "X", "abc": "Y"})
	assert.Equal(t, "abcd X", shadow.Apply("abcd ab"))
	assert.Equal(t, "Y! X", shadow.Apply("ABC! ab"))
	assert.Equal(t, "abé", shadow.Apply("abé"))

	assert.Equal(t, 21, Acronyms.Len())
	assert.Equal(t, 22, Profanity.Len())
}
