package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/shortform/internal/queue"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

type processFunc func(ctx context.Context, r *models.Render) error

func (f processFunc) Process(ctx context.Context, r *models.Render) error { return f(ctx, r) }

func TestRenderHandler(t *testing.T) {
	cooldown := &pipeline.CooldownError{LastError: time.Now(), Remaining: time.Hour}
	failure := errors.New("overlay_video: exit status 1")

	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{"success", nil, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"duplicate is skipped", pipeline.ErrDuplicate, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, queue.ErrSkip)
			assert.ErrorIs(t, err, pipeline.ErrDuplicate)
		}},
		{"cooldown keeps its delay", cooldown, func(t *testing.T, err error) {
			var delayed queue.Delayed
			assert.True(t, errors.As(err, &delayed))
			assert.Equal(t, time.Hour, delayed.RetryAfter())
		}},
		{"interrupted render is requeued", fmt.Errorf("%w: %w", pipeline.ErrInterrupted, context.Canceled), func(t *testing.T, err error) {
			assert.ErrorIs(t, err, queue.ErrRequeue)
			assert.NotErrorIs(t, err, queue.ErrSkip)
		}},
		{"failure passes through", failure, func(t *testing.T, err error) {
			assert.Same(t, failure, err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := metrics.NewServer(0)
			h := renderHandler(processFunc(func(ctx context.Context, r *models.Render) error {
				assert.Equal(t, "r-1", status.Status().RenderID)
				return tt.err
			}), status)
			tt.check(t, h(context.Background(), &models.Render{ID: "r-1"}))

			after := status.Status()
			assert.Empty(t, after.RenderID)
			assert.Equal(t, int64(1), after.Handled)
		})
	}
}
