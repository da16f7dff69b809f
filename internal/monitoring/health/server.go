package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shubhojit-17/cewce/internal/audit"
	"github.com/Shubhojit-17/cewce/internal/infra/chain"
	"github.com/Shubhojit-17/cewce/internal/infra/storage/postgres"
	"github.com/Shubhojit-17/cewce/internal/stream"
)

// Server provides HTTP endpoints for health monitoring, metrics, the
// websocket subscription endpoint, and read-only proof lookups.
type Server struct {
	client      *chain.UnifiedClient
	stream      *stream.Stream
	broadcaster *audit.Broadcaster
	proofs      *postgres.ProofRepo // optional
	server      *http.Server
}

// NewServer wires the monitoring surface. proofs may be nil when no database
// is configured.
func NewServer(
	port int,
	client *chain.UnifiedClient,
	st *stream.Stream,
	broadcaster *audit.Broadcaster,
	ws http.Handler,
	proofs *postgres.ProofRepo,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		client:      client,
		stream:      st,
		broadcaster: broadcaster,
		proofs:      proofs,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", ws)
	mux.HandleFunc("/proofs", s.handleProofs)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth reports the aggregate: serving while either chain backend
// answers, degraded is still 200 so load balancers keep routing.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	chainOK := s.client.Health(ctx)
	status := "healthy"
	code := http.StatusOK

	switch {
	case !chainOK:
		status = "critical"
		code = http.StatusServiceUnavailable
	case s.stream.Status() != stream.StatusOpen:
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := map[string]any{
		"backends": s.client.HealthDetail(ctx),
		"fallback": s.client.Metrics(),
		"stream": map[string]any{
			"status":  s.stream.Status().String(),
			"attempt": s.stream.Attempt(),
		},
		"broadcaster": s.broadcaster.Metrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// handleProofs serves GET /proofs?instance=<id>[&limit=n] from the audit
// store.
func (s *Server) handleProofs(w http.ResponseWriter, r *http.Request) {
	if s.proofs == nil {
		http.Error(w, "proof store not configured", http.StatusNotFound)
		return
	}

	instance := r.URL.Query().Get("instance")
	if instance == "" {
		http.Error(w, "missing instance parameter", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	proofs, err := s.proofs.ListByInstance(r.Context(), instance, limit)
	if err != nil {
		http.Error(w, "failed to load proofs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"instance": instance,
		"proofs":   proofs,
	})
}
