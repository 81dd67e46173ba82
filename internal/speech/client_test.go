package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

func newTestClient(url string) *Client {
	return NewClient(config.SpeechConfig{
		APIKey:       "test-key",
		BaseURL:      url + "/",
		ModelID:      "eleven_multilingual_v2",
		OutputFormat: "mp3_44100_128",
		Voice:        models.VoiceConfig{VoiceID: "default-voice"},
	})
}

func TestSynthesize(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	var gotBody synthesisRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	voice := models.VoiceConfig{
		VoiceID:  "voice-42",
		Settings: models.VoiceSettings{Stability: 0.4, SimilarityBoost: 0.8, UseSpeakerBoost: true},
	}

	audio, err := c.Synthesize(context.Background(), "This meme is titled hi", voice)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)

	assert.Equal(t, "/v1/text-to-speech/voice-42", gotPath)
	assert.Equal(t, "mp3_44100_128", gotQuery)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "This meme is titled hi", gotBody.Text)
	assert.Equal(t, "eleven_multilingual_v2", gotBody.ModelID)
	assert.Equal(t, voice.Settings, gotBody.VoiceSettings)
}

func TestSynthesizeDefaultVoice(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Synthesize(context.Background(), "hi", models.VoiceConfig{})
	require.NoError(t, err)
	assert.Equal(t, "/v1/text-to-speech/default-voice", gotPath)

	_, err = NewClient(config.SpeechConfig{BaseURL: server.URL}).Synthesize(context.Background(), "hi", models.VoiceConfig{})
	assert.ErrorIs(t, err, ErrNoVoice)
	assert.ErrorIs(t, err, media.ErrMisconfigured)
}

func TestSynthesizeErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"detail":"too many requests"}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Synthesize(context.Background(), "hi", models.VoiceConfig{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		assert.True(t, apiErr.Temporary())
		assert.Contains(t, err.Error(), "too many requests")
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Synthesize(context.Background(), "hi", models.VoiceConfig{})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.False(t, apiErr.Temporary())
	})

	t.Run("empty audio", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		_, err := newTestClient(server.URL).Synthesize(context.Background(), "hi", models.VoiceConfig{})
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("audio"))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestClient(server.URL).Synthesize(ctx, "hi", models.VoiceConfig{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAlign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forced-alignment", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "This meme is titled hi", r.FormValue("text"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "ID3audio", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"characters": [],
			"words": [
				{"text": "This", "start": 0.0, "end": 0.2, "loss": 0.1},
				{"text": " ", "start": 0.2, "end": 0.25, "loss": 0},
				{"text": "titled", "start": 0.25, "end": 0.7, "loss": 0.2},
				{"text": "hi", "start": 0.8, "end": 1.0, "loss": 0.3}
			],
			"loss": 0.2
		}`))
	}))
	defer server.Close()

	words, err := newTestClient(server.URL).Align(context.Background(), []byte("ID3audio"), "This meme is titled hi")
	require.NoError(t, err)
	assert.Equal(t, []models.WordTiming{
		{Text: "This", Start: 0.0, End: 0.2},
		{Text: "titled", Start: 0.25, End: 0.7},
		{Text: "hi", Start: 0.8, End: 1.0},
	}, words)
}

func TestAlignBadResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Align(context.Background(), []byte("a"), "hi")
	assert.ErrorContains(t, err, "failed to decode alignment")
}
