package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

// RunProvider exposes the most recent successful clustering run.
type RunProvider interface {
	LastRun() (domain.ClusterRun, bool)
}

// Server exposes health, readiness, metrics and result HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// ClustersResponse is the body of GET /clusters.
type ClustersResponse struct {
	RunID      string                  `json:"run_id"`
	ComputedAt time.Time               `json:"computed_at"`
	Hours      []int                   `json:"hours"`
	Labels     []domain.StationLabel   `json:"labels"`
	Centroids  []Centroid              `json:"centroids"`
	Dropped    []domain.DroppedStation `json:"dropped"`
	Inertia    float64                 `json:"inertia"`
}

// Centroid is one cluster's mean profile; Values[i] belongs to Hours[i].
type Centroid struct {
	Index  int       `json:"index"`
	Values []float64 `json:"values"`
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /clusters routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.HandleFunc("GET /clusters", handleClusters(runs))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleClusters(runs RunProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		run, ok := runs.LastRun()
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no clustering run has completed yet"})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, toResponse(run))
	}
}

func toResponse(run domain.ClusterRun) ClustersResponse {
	resp := ClustersResponse{
		RunID:      run.RunID,
		ComputedAt: run.ComputedAt,
		Hours:      run.Hours,
		Labels:     run.Labels,
		Centroids:  make([]Centroid, run.ClusterCount()),
		Dropped:    run.Profile.Dropped,
		Inertia:    run.Inertia,
	}
	for i := range resp.Centroids {
		resp.Centroids[i] = Centroid{Index: i, Values: run.Centroid(i)}
	}
	if resp.Dropped == nil {
		resp.Dropped = []domain.DroppedStation{}
	}
	return resp
}
