// Package speech is an ElevenLabs client providing synthesis and forced alignment.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/media"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// ErrNoVoice is returned when neither the request nor the config names a voice
var ErrNoVoice = fmt.Errorf("%w: no voice id configured", media.ErrMisconfigured)

// APIError is a non-2xx response from the provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech api returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the ElevenLabs REST API
type Client struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	modelID      string
	outputFormat string
	voice        models.VoiceConfig
}

// NewClient creates a client from the speech config
func NewClient(cfg config.SpeechConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		voice:        cfg.Voice,
	}
}

type synthesisRequest struct {
	Text          string               `json:"text"`
	ModelID       string               `json:"model_id,omitempty"`
	VoiceSettings models.VoiceSettings `json:"voice_settings"`
}

// Synthesize returns the encoded speech for text. An empty voice id falls back to the configured voice.
func (c *Client) Synthesize(ctx context.Context, text string, voice models.VoiceConfig) ([]byte, error) {
	if voice.VoiceID == "" {
		voice = c.voice
	}
	if voice.VoiceID == "" {
		return nil, ErrNoVoice
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.modelID,
		VoiceSettings: voice.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, url.PathEscape(voice.VoiceID))
	if c.outputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(c.outputFormat)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errors.New("speech api returned empty audio")
	}
	return body, nil
}

type alignmentResponse struct {
	Words []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Loss  float64 `json:"loss"`
	} `json:"words"`
}

// Align runs forced alignment of text against audio and returns the word timings.
// Whitespace tokens reported by the provider are skipped.
func (c *Client) Align(ctx context.Context, audio []byte, text string) ([]models.WordTiming, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", "narration.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if err := form.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("failed to write text: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/forced-alignment", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp alignmentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode alignment: %w", err)
	}

	words := make([]models.WordTiming, 0, len(resp.Words))
	for _, w := range resp.Words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		words = append(words, models.WordTiming{Text: w.Text, Start: w.Start, End: w.End})
	}
	return words, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("User-Agent", "Shortform-Renderer/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
