package monitoring

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/queue"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"

	dlqCritical    = 100
	queueWarning   = 1000
	failureWarning = 0.1
)

// Snapshot is the last sampled state of the render system
type Snapshot struct {
	QueueDepth  int              `json:"queue_depth"`
	DLQDepth    int              `json:"dlq_depth"`
	Renders     map[string]int64 `json:"renders"`
	Total       int64            `json:"total_renders"`
	LastErrorAt *time.Time       `json:"last_error_at,omitempty"`
	CoolingDown bool             `json:"cooling_down"`
	LastUpdated time.Time        `json:"last_updated"`
}

// StatsRepository reads render statistics
type StatsRepository interface {
	CountRendersByStatus(ctx context.Context) (map[string]int64, error)
	LastErrorAt(ctx context.Context) (time.Time, bool, error)
}

// QueueProvider reports queue depths
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// Monitor samples queue and render statistics into gauges and a snapshot
type Monitor struct {
	mu       sync.RWMutex
	snapshot Snapshot
	repo     StatsRepository
	queues   QueueProvider
	cooldown time.Duration
	log      *logging.Logger
	now      func() time.Time
}

// NewMonitor creates a monitor. cooldown is the error cooldown applied by workers.
func NewMonitor(repo StatsRepository, queues QueueProvider, cooldown time.Duration, log *logging.Logger) *Monitor {
	return &Monitor{
		repo:     repo,
		queues:   queues,
		cooldown: cooldown,
		log:      log,
		now:      time.Now,
	}
}

// Run refreshes the snapshot every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.log.WithError(err).Warn("monitor_refresh_failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh samples everything once
func (m *Monitor) Refresh(ctx context.Context) error {
	queueDepth, err := m.queues.GetQueueDepth()
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}
	dlqDepth, err := m.queues.GetDLQDepth()
	if err != nil {
		return fmt.Errorf("failed to get DLQ depth: %w", err)
	}

	counts, err := m.repo.CountRendersByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get render stats: %w", err)
	}

	snap := Snapshot{
		QueueDepth:  queueDepth,
		DLQDepth:    dlqDepth,
		Renders:     counts,
		LastUpdated: m.now(),
	}
	for _, n := range counts {
		snap.Total += n
	}

	// a failing error log lookup only hides the cooldown
	if last, ok, err := m.repo.LastErrorAt(ctx); err == nil && ok {
		snap.LastErrorAt = &last
		snap.CoolingDown = m.cooldown > 0 && m.now().Sub(last) < m.cooldown
	}

	metrics.QueueDepth.WithLabelValues(queue.RenderQueueName).Set(float64(queueDepth))
	metrics.QueueDepth.WithLabelValues(queue.DeadLetterQueueName).Set(float64(dlqDepth))
	for _, status := range []string{
		models.RenderStatusPending,
		models.RenderStatusQueued,
		models.RenderStatusProcessing,
		models.RenderStatusCompleted,
		models.RenderStatusFailed,
		models.RenderStatusSkipped,
	} {
		metrics.RendersByStatus.WithLabelValues(status).Set(float64(counts[status]))
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the last sample
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Renders = maps.Clone(m.snapshot.Renders)
	return snap
}

// Health summarizes the last sample
func (m *Monitor) Health() string {
	snap := m.Snapshot()

	if snap.DLQDepth > dlqCritical {
		return HealthCritical
	}
	if snap.QueueDepth > queueWarning || snap.CoolingDown || failureRate(snap) > failureWarning {
		return HealthWarning
	}
	return HealthHealthy
}

// Alerts lists what is currently wrong
func (m *Monitor) Alerts() []string {
	snap := m.Snapshot()
	var alerts []string

	if snap.DLQDepth > dlqCritical {
		alerts = append(alerts, fmt.Sprintf("High DLQ depth: %d messages", snap.DLQDepth))
	}
	if snap.QueueDepth > queueWarning {
		alerts = append(alerts, fmt.Sprintf("High queue depth: %d renders pending", snap.QueueDepth))
	}
	if snap.CoolingDown && snap.LastErrorAt != nil {
		until := snap.LastErrorAt.Add(m.cooldown)
		alerts = append(alerts, fmt.Sprintf("Workers cooling down until %s", until.UTC().Format(time.RFC3339)))
	}
	if rate := failureRate(snap); rate > failureWarning {
		alerts = append(alerts, fmt.Sprintf("High failure rate: %.1f%%", rate*100))
	}

	return alerts
}

func failureRate(snap Snapshot) float64 {
	if snap.Total == 0 {
		return 0
	}
	return float64(snap.Renders[models.RenderStatusFailed]) / float64(snap.Total)
}
