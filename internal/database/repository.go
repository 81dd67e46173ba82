package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

// ErrNotFound is returned when a render does not exist
var ErrNotFound = errors.New("render not found")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func observe(op string, start time.Time, err error) {
	metrics.RecordDatabaseOperation(op, metrics.Status(err), time.Since(start).Seconds())
}

const renderColumns = `id, title, image_key, voice_id, source, status, stage, attempts, degraded,
	duration, music_key, background_key, output_key, captions_key, error_msg,
	started_at, completed_at, created_at, updated_at`

func scanRender(row pgx.Row) (*models.Render, error) {
	var r models.Render
	err := row.Scan(
		&r.ID, &r.Title, &r.ImageKey, &r.VoiceID, &r.Source, &r.Status, &r.Stage,
		&r.Attempts, &r.Degraded, &r.Duration, &r.MusicKey, &r.BackgroundKey,
		&r.OutputKey, &r.CaptionsKey, &r.ErrorMsg,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Renders

// CreateRender inserts a new render record
func (r *Repository) CreateRender(ctx context.Context, render *models.Render) error {
	start := time.Now()
	if render.ID == "" {
		render.ID = uuid.New().String()
	}
	if render.Status == "" {
		render.Status = models.RenderStatusPending
	}

	query := `
		INSERT INTO renders (id, title, image_key, voice_id, source, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		render.ID, render.Title, render.ImageKey, render.VoiceID, render.Source, render.Status,
	).Scan(&render.CreatedAt, &render.UpdatedAt)
	observe("create_render", start, err)
	if err != nil {
		return fmt.Errorf("failed to create render: %w", err)
	}

	return nil
}

// GetRender retrieves a render by ID
func (r *Repository) GetRender(ctx context.Context, id string) (*models.Render, error) {
	start := time.Now()
	query := `SELECT ` + renderColumns + ` FROM renders WHERE id = $1`

	render, err := scanRender(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		observe("get_render", start, nil)
		return nil, ErrNotFound
	}
	observe("get_render", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get render: %w", err)
	}

	return render, nil
}

// UpdateRender writes the mutable fields of a render
func (r *Repository) UpdateRender(ctx context.Context, render *models.Render) error {
	start := time.Now()
	query := `
		UPDATE renders
		SET status = $2, stage = $3, attempts = $4, degraded = $5, duration = $6,
		    music_key = $7, background_key = $8, output_key = $9, captions_key = $10,
		    error_msg = $11, started_at = $12, completed_at = $13, voice_id = $14,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		render.ID, render.Status, render.Stage, render.Attempts, render.Degraded, render.Duration,
		render.MusicKey, render.BackgroundKey, render.OutputKey, render.CaptionsKey,
		render.ErrorMsg, render.StartedAt, render.CompletedAt, render.VoiceID,
	).Scan(&render.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		observe("update_render", start, err)
		return ErrNotFound
	}
	observe("update_render", start, err)
	if err != nil {
		return fmt.Errorf("failed to update render: %w", err)
	}

	return nil
}

// ListRenders retrieves renders newest first, optionally filtered by status
func (r *Repository) ListRenders(ctx context.Context, status string, limit, offset int) ([]*models.Render, error) {
	start := time.Now()
	query := `
		SELECT ` + renderColumns + `
		FROM renders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		observe("list_renders", start, err)
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer rows.Close()

	var renders []*models.Render
	for rows.Next() {
		render, err := scanRender(rows)
		if err != nil {
			observe("list_renders", start, err)
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		renders = append(renders, render)
	}
	observe("list_renders", start, rows.Err())

	return renders, rows.Err()
}

// CountRendersByStatus returns how many renders are in each status
func (r *Repository) CountRendersByStatus(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	rows, err := r.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM renders GROUP BY status`)
	if err != nil {
		observe("count_renders", start, err)
		return nil, fmt.Errorf("failed to count renders: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			observe("count_renders", start, err)
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	observe("count_renders", start, rows.Err())

	return counts, rows.Err()
}

// Error log

// RecordError appends one row to the render error log
func (r *Repository) RecordError(ctx context.Context, renderErr *models.RenderError) error {
	start := time.Now()
	if renderErr.OccurredAt.IsZero() {
		renderErr.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO render_errors (render_id, source, title, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		renderErr.RenderID, renderErr.Source, renderErr.Title, renderErr.Message, renderErr.OccurredAt,
	).Scan(&renderErr.ID)
	observe("record_error", start, err)
	if err != nil {
		return fmt.Errorf("failed to record render error: %w", err)
	}

	return nil
}

// LastErrorAt returns the time of the most recent logged error; ok is false
// when the log is empty.
func (r *Repository) LastErrorAt(ctx context.Context) (time.Time, bool, error) {
	start := time.Now()
	var last *time.Time

	err := r.db.Pool.QueryRow(ctx, `SELECT MAX(occurred_at) FROM render_errors`).Scan(&last)
	observe("last_error_at", start, err)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read error log: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}

	return *last, true, nil
}

// ListErrors returns the newest entries of the error log
func (r *Repository) ListErrors(ctx context.Context, limit int) ([]*models.RenderError, error) {
	query := `
		SELECT id, render_id, source, title, message, occurred_at
		FROM render_errors
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list render errors: %w", err)
	}
	defer rows.Close()

	var out []*models.RenderError
	for rows.Next() {
		var e models.RenderError
		if err := rows.Scan(&e.ID, &e.RenderID, &e.Source, &e.Title, &e.Message, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan render error: %w", err)
		}
		out = append(out, &e)
	}

	return out, rows.Err()
}

// Health checks the underlying connection pool
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
