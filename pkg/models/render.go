package models

import (
	"strings"
	"time"
)

// Render represents a single short-form render request and its outcome
type Render struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	ImageKey      string     `json:"image_key" db:"image_key"`
	VoiceID       string     `json:"voice_id,omitempty" db:"voice_id"`
	Source        string     `json:"source,omitempty" db:"source"` // e.g. the subreddit the post came from
	Status        string     `json:"status" db:"status"`
	Stage         string     `json:"stage,omitempty" db:"stage"`
	Attempts      int        `json:"attempts" db:"attempts"`
	Degraded      bool       `json:"degraded" db:"degraded"` // narration kept its preamble
	Duration      float64    `json:"duration,omitempty" db:"duration"`
	MusicKey      string     `json:"music_key,omitempty" db:"music_key"`
	BackgroundKey string     `json:"background_key,omitempty" db:"background_key"`
	OutputKey     string     `json:"output_key,omitempty" db:"output_key"`
	CaptionsKey   string     `json:"captions_key,omitempty" db:"captions_key"`
	ErrorMsg      string     `json:"error_msg,omitempty" db:"error_msg"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// RenderStatus constants
const (
	RenderStatusPending    = "pending"
	RenderStatusQueued     = "queued"
	RenderStatusProcessing = "processing"
	RenderStatusCompleted  = "completed"
	RenderStatusFailed     = "failed"
	RenderStatusSkipped    = "skipped"
)

// RenderError is one row of the render error log
type RenderError struct {
	ID         int64     `json:"id" db:"id"`
	RenderID   string    `json:"render_id" db:"render_id"`
	Source     string    `json:"source" db:"source"`
	Title      string    `json:"title" db:"title"`
	Message    string    `json:"message" db:"message"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// NormalizeTitle is the form used to detect already rendered posts.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsTerminal reports whether no further work will happen for the render.
func (r *Render) IsTerminal() bool {
	switch r.Status {
	case RenderStatusCompleted, RenderStatusFailed, RenderStatusSkipped:
		return true
	}
	return false
}
