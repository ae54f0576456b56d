package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.ClusterCount)
	assert.Equal(t, uint64(0), cfg.ClusterSeed)
	assert.Equal(t, 10, cfg.ClusterNInit)
	assert.Equal(t, 300, cfg.ClusterMaxIter)
	assert.Equal(t, 5*time.Minute, cfg.ResamplePeriod)
	assert.Nil(t, cfg.Location)
	assert.True(t, cfg.Window.Start.IsZero())
	assert.True(t, cfg.Window.End.IsZero())
	assert.Zero(t, cfg.RunInterval)
	assert.Equal(t, SourcePostgres, cfg.InputSource)
	assert.Equal(t, []string{SinkPostgres}, cfg.OutputSinks)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "postgres", cfg.DBUser)
	assert.Equal(t, "jitenshop", cfg.DBName)
	assert.Equal(t, "timeseries", cfg.ReadingsTable)
	assert.Equal(t, "clustered_stations", cfg.LabelsTable)
	assert.Equal(t, "centroids", cfg.CentroidsTable)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "station-clusters", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("N_CLUSTERS", "6")
	t.Setenv("CLUSTER_SEED", "42")
	t.Setenv("CLUSTER_N_INIT", "3")
	t.Setenv("CLUSTER_MAX_ITER", "50")
	t.Setenv("RESAMPLE_PERIOD", "10m")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WINDOW_START", "2024-04-01")
	t.Setenv("WINDOW_END", "2024-05-01T00:00:00Z")
	t.Setenv("RUN_INTERVAL", "1h")
	t.Setenv("INPUT_SOURCE", "CSV")
	t.Setenv("INPUT_PATH", "/tmp/readings.csv")
	t.Setenv("OUTPUT_SINKS", "sqlite, kafka,xlsx")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("SQLITE_PATH", "/tmp/out.db")
	t.Setenv("XLSX_PATH", "/tmp/out.xlsx")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.ClusterCount)
	assert.Equal(t, uint64(42), cfg.ClusterSeed)
	assert.Equal(t, 3, cfg.ClusterNInit)
	assert.Equal(t, 50, cfg.ClusterMaxIter)
	assert.Equal(t, 10*time.Minute, cfg.ResamplePeriod)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), cfg.Window.Start)
	assert.True(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Equal(cfg.Window.End))
	assert.Equal(t, time.Hour, cfg.RunInterval)
	assert.Equal(t, SourceCSV, cfg.InputSource)
	assert.Equal(t, "/tmp/readings.csv", cfg.InputPath)
	assert.Equal(t, []string{SinkSQLite, SinkKafka, SinkXLSX}, cfg.OutputSinks)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "/tmp/out.db", cfg.SQLitePath)
	assert.Equal(t, "/tmp/out.xlsx", cfg.XLSXPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)

	opts := cfg.ClusterOptions()
	assert.Equal(t, 10*time.Minute, opts.Profile.Period)
	assert.Equal(t, uint64(42), opts.KMeans.Seed)
	assert.Equal(t, 3, opts.KMeans.NInit)
	assert.Equal(t, 50, opts.KMeans.MaxIter)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, wantMsg string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"BATCH_SIZE", "0", "BATCH_SIZE"},
		{"N_CLUSTERS", "0", "N_CLUSTERS"},
		{"N_CLUSTERS", "many", "N_CLUSTERS"},
		{"CLUSTER_SEED", "-1", "CLUSTER_SEED"},
		{"CLUSTER_N_INIT", "-2", "CLUSTER_N_INIT"},
		{"CLUSTER_MAX_ITER", "x", "CLUSTER_MAX_ITER"},
		{"RESAMPLE_PERIOD", "0s", "RESAMPLE_PERIOD"},
		{"RUN_INTERVAL", "-1m", "RUN_INTERVAL"},
		{"TIMEZONE", "Not/AZone", "TIMEZONE"},
		{"WINDOW_START", "yesterday", "WINDOW_START"},
		{"INPUT_SOURCE", "ftp", "INPUT_SOURCE"},
		{"OUTPUT_SINKS", "postgres,carrier-pigeon", "OUTPUT_SINKS"},
		{"OUTPUT_SINKS", " , ", "OUTPUT_SINKS"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_WindowOrder(t *testing.T) {
	t.Setenv("WINDOW_START", "2024-05-01")
	t.Setenv("WINDOW_END", "2024-04-01")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WINDOW_START")
}

func TestLoad_CSVRequiresPath(t *testing.T) {
	t.Setenv("INPUT_SOURCE", "csv")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INPUT_PATH")
}

func TestLoad_S3RequiresObject(t *testing.T) {
	t.Setenv("INPUT_SOURCE", "s3")
	t.Setenv("S3_ENDPOINT", "localhost:9000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	t.Setenv("S3_BUCKET", "readings")
	t.Setenv("S3_KEY", "2024/04.csv")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "readings", cfg.S3Bucket)
	assert.False(t, cfg.S3UseSSL)
}

func TestConfig_HasSink(t *testing.T) {
	cfg := &Config{OutputSinks: []string{SinkSQLite, SinkXLSX}}
	assert.True(t, cfg.HasSink(SinkXLSX))
	assert.False(t, cfg.HasSink(SinkKafka))
}

func TestConfig_PostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5433", DBUser: "velo", DBName: "bikes", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://velo@db:5433/bikes?sslmode=disable", cfg.PostgresDSN())

	cfg.DBPassword = "p@ss word"
	assert.Equal(t, "postgres://velo:p%40ss%20word@db:5433/bikes?sslmode=disable", cfg.PostgresDSN())

	cfg.DBSSLMode = ""
	assert.Equal(t, "postgres://velo:p%40ss%20word@db:5433/bikes", cfg.PostgresDSN())
}
