package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/station-clusters/internal/domain"
	"github.com/couchcryptid/station-clusters/internal/observability"
)

// ReadingSource supplies the complete batch of readings for a run.
type ReadingSource interface {
	LoadReadings(ctx context.Context) ([]domain.Reading, error)
}

// ResultSink persists or publishes the outcome of a run.
type ResultSink interface {
	Name() string
	SaveClusters(ctx context.Context, run domain.ClusterRun) error
}

// Options configures a Pipeline. Zero values fall back to sensible defaults.
type Options struct {
	ClusterCount int
	Cluster      domain.ClusterOptions
	Window       domain.Window
	Clock        clockwork.Clock
	NewRunID     func() string
}

// Pipeline orchestrates the load-cluster-save run.
type Pipeline struct {
	source  ReadingSource
	sinks   []ResultSink
	opts    Options
	clock   clockwork.Clock
	newID   func() string
	logger  *slog.Logger
	metrics *observability.Metrics

	ready atomic.Bool
	mu    sync.RWMutex
	last  *domain.ClusterRun
}

// New creates a Pipeline reading from source and writing to every sink.
func New(source ReadingSource, sinks []ResultSink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.ClusterCount == 0 {
		opts.ClusterCount = domain.DefaultClusterCount
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	newID := opts.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Pipeline{
		source:  source,
		sinks:   sinks,
		opts:    opts,
		clock:   clock,
		newID:   newID,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully and every
// source or sink that can report readiness (such as a database store) does.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if !p.ready.Load() {
		return errors.New("no clustering run has completed yet")
	}
	if c, ok := p.source.(sharedobs.ReadinessChecker); ok {
		if err := c.CheckReadiness(ctx); err != nil {
			return fmt.Errorf("reading source not ready: %w", err)
		}
	}
	for _, sink := range p.sinks {
		if c, ok := sink.(sharedobs.ReadinessChecker); ok {
			if err := c.CheckReadiness(ctx); err != nil {
				return fmt.Errorf("sink %s not ready: %w", sink.Name(), err)
			}
		}
	}
	return nil
}

// LastRun returns the most recent successful run.
func (p *Pipeline) LastRun() (domain.ClusterRun, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return domain.ClusterRun{}, false
	}
	return *p.last, true
}

// Run executes a single run when interval is zero or negative. Otherwise it
// runs immediately and then on every tick until ctx is cancelled; failed runs
// are logged and the loop carries on.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := p.RunOnce(ctx)
		return err
	}

	p.logger.Info("pipeline started", "interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("clustering run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce loads the readings, computes the clusters and hands the result to
// every sink concurrently. The run fails if any step or any sink fails.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.ClusterRun, error) {
	start := p.clock.Now()
	runID := p.newID()
	logger := p.logger.With("run_id", runID)

	run, err := p.execute(ctx, runID, logger)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return domain.ClusterRun{}, err
	}

	elapsed := p.clock.Since(start)
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(elapsed.Seconds())
	p.metrics.StationsClustered.Set(float64(len(run.Labels)))
	p.metrics.StationsDropped.Set(float64(len(run.Profile.Dropped)))

	p.mu.Lock()
	p.last = &run
	p.mu.Unlock()
	p.ready.Store(true)

	logger.Info("clustering run complete",
		"stations", len(run.Labels),
		"dropped", len(run.Profile.Dropped),
		"clusters", run.ClusterCount(),
		"inertia", run.Inertia,
		"duration", elapsed,
	)
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, runID string, logger *slog.Logger) (domain.ClusterRun, error) {
	readings, err := p.source.LoadReadings(ctx)
	if err != nil {
		return domain.ClusterRun{}, fmt.Errorf("load readings: %w", err)
	}
	readings = domain.FilterWindow(readings, p.opts.Window)
	p.metrics.ReadingsLoaded.Add(float64(len(readings)))
	logger.Debug("readings loaded", "readings", len(readings))

	clustering, err := domain.ComputeClustersWithOptions(readings, p.opts.ClusterCount, p.opts.Cluster)
	if err != nil {
		return domain.ClusterRun{}, fmt.Errorf("compute clusters: %w", err)
	}
	for _, d := range clustering.Profile.Dropped {
		logger.Debug("station dropped", "station_id", d.StationID, "reason", d.Reason)
	}

	run := domain.ClusterRun{
		RunID:      runID,
		ComputedAt: p.clock.Now().UTC(),
		Clustering: clustering,
	}
	if err := p.save(ctx, run, logger); err != nil {
		return domain.ClusterRun{}, err
	}
	return run, nil
}

// save writes the run to all sinks concurrently.
func (p *Pipeline) save(ctx context.Context, run domain.ClusterRun, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range p.sinks {
		g.Go(func() error {
			if err := sink.SaveClusters(gctx, run); err != nil {
				p.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
				logger.Error("save clusters failed", "sink", sink.Name(), "error", err)
				return fmt.Errorf("save clusters to %s: %w", sink.Name(), err)
			}
			logger.Debug("clusters saved", "sink", sink.Name())
			return nil
		})
	}
	return g.Wait()
}
