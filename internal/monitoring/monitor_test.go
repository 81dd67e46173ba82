package monitoring

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

type fakeStats struct {
	counts    map[string]int64
	countErr  error
	lastError time.Time
	hasError  bool
	lastErr   error
}

func (f *fakeStats) CountRendersByStatus(ctx context.Context) (map[string]int64, error) {
	return f.counts, f.countErr
}

func (f *fakeStats) LastErrorAt(ctx context.Context) (time.Time, bool, error) {
	return f.lastError, f.hasError, f.lastErr
}

type fakeQueues struct {
	depth, dlq int
	err        error
}

func (f *fakeQueues) GetQueueDepth() (int, error) { return f.depth, f.err }
func (f *fakeQueues) GetDLQDepth() (int, error)   { return f.dlq, nil }

func newTestMonitor(stats *fakeStats, queues *fakeQueues, now time.Time) *Monitor {
	m := NewMonitor(stats, queues, 10*time.Hour, logging.New(io.Discard, logging.Config{Level: "error"}))
	m.now = func() time.Time { return now }
	return m
}

func TestMonitor_RefreshHealthy(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := &fakeStats{counts: map[string]int64{
		models.RenderStatusCompleted: 18,
		models.RenderStatusFailed:    1,
		models.RenderStatusQueued:    1,
	}}
	m := newTestMonitor(stats, &fakeQueues{depth: 3, dlq: 1}, now)

	require.NoError(t, m.Refresh(context.Background()))

	snap := m.Snapshot()
	assert.Equal(t, 3, snap.QueueDepth)
	assert.Equal(t, 1, snap.DLQDepth)
	assert.Equal(t, int64(20), snap.Total)
	assert.Equal(t, now, snap.LastUpdated)
	assert.Nil(t, snap.LastErrorAt)
	assert.False(t, snap.CoolingDown)

	assert.Equal(t, HealthHealthy, m.Health())
	assert.Empty(t, m.Alerts())

	assert.Equal(t, 18.0, testutil.ToFloat64(metrics.RendersByStatus.WithLabelValues(models.RenderStatusCompleted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RendersByStatus.WithLabelValues(models.RenderStatusSkipped)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.QueueDepth.WithLabelValues("render_jobs")))
}

func TestMonitor_Cooldown(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := &fakeStats{
		counts:    map[string]int64{models.RenderStatusCompleted: 50},
		lastError: now.Add(-2 * time.Hour),
		hasError:  true,
	}
	m := newTestMonitor(stats, &fakeQueues{}, now)
	require.NoError(t, m.Refresh(context.Background()))

	snap := m.Snapshot()
	require.NotNil(t, snap.LastErrorAt)
	assert.True(t, snap.CoolingDown)
	assert.Equal(t, HealthWarning, m.Health())

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "2026-05-01T20:00:00Z")

	stats.lastError = now.Add(-11 * time.Hour)
	require.NoError(t, m.Refresh(context.Background()))
	assert.False(t, m.Snapshot().CoolingDown)
	assert.Equal(t, HealthHealthy, m.Health())
}

func TestMonitor_CriticalAndFailureRate(t *testing.T) {
	stats := &fakeStats{counts: map[string]int64{
		models.RenderStatusCompleted: 5,
		models.RenderStatusFailed:    5,
	}}
	m := newTestMonitor(stats, &fakeQueues{depth: 2000, dlq: 150}, time.Now())
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, HealthCritical, m.Health())
	alerts := m.Alerts()
	require.Len(t, alerts, 3)
	assert.Contains(t, alerts[0], "DLQ depth: 150")
	assert.Contains(t, alerts[1], "queue depth: 2000")
	assert.Contains(t, alerts[2], "50.0%")
}

func TestMonitor_RefreshErrorsKeepPreviousSnapshot(t *testing.T) {
	stats := &fakeStats{counts: map[string]int64{models.RenderStatusCompleted: 1}}
	queues := &fakeQueues{depth: 4}
	m := newTestMonitor(stats, queues, time.Now())
	require.NoError(t, m.Refresh(context.Background()))

	queues.err = errors.New("channel closed")
	assert.ErrorContains(t, m.Refresh(context.Background()), "queue depth")

	queues.err = nil
	stats.countErr = errors.New("db down")
	assert.ErrorContains(t, m.Refresh(context.Background()), "render stats")

	assert.Equal(t, 4, m.Snapshot().QueueDepth)
}

func TestMonitor_SnapshotIsACopy(t *testing.T) {
	stats := &fakeStats{counts: map[string]int64{models.RenderStatusCompleted: 1}}
	m := newTestMonitor(stats, &fakeQueues{}, time.Now())
	require.NoError(t, m.Refresh(context.Background()))

	snap := m.Snapshot()
	snap.Renders[models.RenderStatusCompleted] = 99
	assert.Equal(t, int64(1), m.Snapshot().Renders[models.RenderStatusCompleted])
}

func TestMonitor_RunStopsWithContext(t *testing.T) {
	stats := &fakeStats{counts: map[string]int64{}}
	m := newTestMonitor(stats, &fakeQueues{depth: 1}, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Snapshot().QueueDepth == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
