package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Worker lifecycle states reported by the status server
const (
	WorkerStarting  = "starting"
	WorkerConsuming = "consuming"
	WorkerDraining  = "draining"
)

// WorkerStatus is the body of /health
type WorkerStatus struct {
	State        string     `json:"state"`
	RenderID     string     `json:"render_id,omitempty"`
	RenderSince  *time.Time `json:"render_since,omitempty"`
	Handled      int64      `json:"handled"`
	LastFinished *time.Time `json:"last_finished,omitempty"`
}

// Server exposes /metrics, /health and /ready for a render worker.
// /health answers 200 unless the worker is draining, /ready only while it consumes.
type Server struct {
	server *http.Server
	port   int

	mu     sync.Mutex
	status WorkerStatus
	now    func() time.Time
}

// NewServer creates a status server in the starting state
func NewServer(port int) *Server {
	s := &Server{
		port:   port,
		status: WorkerStatus{State: WorkerStarting},
		now:    time.Now,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// SetState moves the worker to state
func (s *Server) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != state {
		log.Info().Str("from", s.status.State).Str("to", state).Msg("worker_state_changed")
	}
	s.status.State = state
}

// BeginRender records the render the worker is busy with
func (s *Server) BeginRender(id string) {
	now := s.now()
	s.mu.Lock()
	s.status.RenderID = id
	s.status.RenderSince = &now
	s.mu.Unlock()
}

// EndRender clears the current render
func (s *Server) EndRender() {
	now := s.now()
	s.mu.Lock()
	s.status.RenderID = ""
	s.status.RenderSince = nil
	s.status.Handled++
	s.status.LastFinished = &now
	s.mu.Unlock()
}

// Status returns a copy of the current worker status
func (s *Server) Status() WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start blocks serving until Shutdown is called
func (s *Server) Start() error {
	log.Info().Int("port", s.port).Msg("status_server_starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start status server: %w", err)
	}
	return nil
}

// Shutdown stops serving
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("status_server_stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.Status()
	code := http.StatusOK
	if status.State == WorkerDraining {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	status := s.Status()
	code := http.StatusOK
	if status.State != WorkerConsuming {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"state": status.State})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
