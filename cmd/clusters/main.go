// Command clusters groups bike-share stations by their weekday availability
// profile. With RUN_INTERVAL unset it runs once and exits; otherwise it
// recomputes on that interval and serves /healthz, /readyz, /metrics and
// /clusters until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	csvadapter "github.com/couchcryptid/station-clusters/internal/adapter/csv"
	httpadapter "github.com/couchcryptid/station-clusters/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/station-clusters/internal/adapter/kafka"
	"github.com/couchcryptid/station-clusters/internal/adapter/postgres"
	"github.com/couchcryptid/station-clusters/internal/adapter/s3"
	"github.com/couchcryptid/station-clusters/internal/adapter/sqlite"
	"github.com/couchcryptid/station-clusters/internal/adapter/xlsx"
	"github.com/couchcryptid/station-clusters/internal/config"
	"github.com/couchcryptid/station-clusters/internal/observability"
	"github.com/couchcryptid/station-clusters/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("clusters failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	w := &wiring{cfg: cfg, logger: logger}
	defer w.close()

	source, err := w.source()
	if err != nil {
		return err
	}
	sinks, err := w.sinks()
	if err != nil {
		return err
	}

	p := pipeline.New(source, sinks, pipeline.Options{
		ClusterCount: cfg.ClusterCount,
		Cluster:      cfg.ClusterOptions(),
		Window:       cfg.Window,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunInterval <= 0 {
		logger.Info("running once", "source", cfg.InputSource, "sinks", cfg.OutputSinks)
		return p.Run(ctx, 0)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	err = p.Run(ctx, cfg.RunInterval)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Error("http server shutdown error", "error", serr)
	}

	logger.Info("shutdown complete")
	return err
}

// wiring builds adapters from config, sharing one store when the same backend
// is both source and sink.
type wiring struct {
	cfg     *config.Config
	logger  *slog.Logger
	pg      *postgres.Store
	lite    *sqlite.Store
	closers []io.Closer
}

func (w *wiring) close() {
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			w.logger.Error("close error", "error", err)
		}
	}
}

func (w *wiring) postgres() (*postgres.Store, error) {
	if w.pg == nil {
		store, err := postgres.Open(w.cfg, w.logger)
		if err != nil {
			return nil, err
		}
		w.pg = store
		w.closers = append(w.closers, store)
	}
	return w.pg, nil
}

func (w *wiring) sqlite() (*sqlite.Store, error) {
	if w.lite == nil {
		store, err := sqlite.Open(w.cfg.SQLitePath, sqlite.Tables{
			Readings:  w.cfg.ReadingsTable,
			Labels:    w.cfg.LabelsTable,
			Centroids: w.cfg.CentroidsTable,
		}, w.cfg.Window)
		if err != nil {
			return nil, err
		}
		w.lite = store
		w.closers = append(w.closers, store)
	}
	return w.lite, nil
}

func (w *wiring) source() (pipeline.ReadingSource, error) {
	switch w.cfg.InputSource {
	case config.SourcePostgres:
		return w.postgres()
	case config.SourceSQLite:
		return w.sqlite()
	case config.SourceCSV:
		return csvadapter.NewFileSource(w.cfg.InputPath), nil
	case config.SourceS3:
		return s3.NewObjectSource(w.cfg)
	default:
		return nil, fmt.Errorf("unknown input source %q", w.cfg.InputSource)
	}
}

func (w *wiring) sinks() ([]pipeline.ResultSink, error) {
	sinks := make([]pipeline.ResultSink, 0, len(w.cfg.OutputSinks))
	for _, name := range w.cfg.OutputSinks {
		switch name {
		case config.SinkPostgres:
			store, err := w.postgres()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, store)
		case config.SinkSQLite:
			store, err := w.sqlite()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, store)
		case config.SinkKafka:
			writer := kafkaadapter.NewWriter(w.cfg, w.logger)
			w.closers = append(w.closers, writer)
			sinks = append(sinks, writer)
		case config.SinkXLSX:
			sinks = append(sinks, xlsx.NewExporter(w.cfg.XLSXPath))
		default:
			return nil, fmt.Errorf("unknown output sink %q", name)
		}
	}
	return sinks, nil
}
