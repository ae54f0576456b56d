package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Reading sources.
const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceCSV      = "csv"
	SourceS3       = "s3"
)

// Result sinks.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkKafka    = "kafka"
	SinkXLSX     = "xlsx"
)

var (
	validSources = []string{SourcePostgres, SourceSQLite, SourceCSV, SourceS3}
	validSinks   = []string{SinkPostgres, SinkSQLite, SinkKafka, SinkXLSX}
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ClusterCount   int
	ClusterSeed    uint64
	ClusterNInit   int
	ClusterMaxIter int
	ResamplePeriod time.Duration
	Location       *time.Location // nil keeps each timestamp's own zone
	Window         domain.Window
	RunInterval    time.Duration // 0 runs once and exits

	InputSource string
	InputPath   string
	OutputSinks []string

	// Postgres connection and tables.
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	ReadingsTable  string
	LabelsTable    string
	CentroidsTable string

	SQLitePath string

	// Object storage holding an input CSV.
	S3Endpoint  string
	S3Bucket    string
	S3Key       string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	KafkaBrokers   []string
	KafkaSinkTopic string

	XLSXPath string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	clusterCount, err := parsePositiveInt("N_CLUSTERS", domain.DefaultClusterCount)
	if err != nil {
		return nil, err
	}
	kmeansDefaults := domain.DefaultKMeansOptions()
	nInit, err := parsePositiveInt("CLUSTER_N_INIT", kmeansDefaults.NInit)
	if err != nil {
		return nil, err
	}
	maxIter, err := parsePositiveInt("CLUSTER_MAX_ITER", kmeansDefaults.MaxIter)
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("CLUSTER_SEED", "0"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid CLUSTER_SEED")
	}

	resamplePeriod, err := time.ParseDuration(sharedcfg.EnvOrDefault("RESAMPLE_PERIOD", domain.DefaultResamplePeriod.String()))
	if err != nil || resamplePeriod <= 0 {
		return nil, errors.New("invalid RESAMPLE_PERIOD")
	}

	runInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("RUN_INTERVAL", "0s"))
	if err != nil || runInterval < 0 {
		return nil, errors.New("invalid RUN_INTERVAL")
	}

	var loc *time.Location
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	window, err := parseWindow(loc)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ClusterCount:   clusterCount,
		ClusterSeed:    seed,
		ClusterNInit:   nInit,
		ClusterMaxIter: maxIter,
		ResamplePeriod: resamplePeriod,
		Location:       loc,
		Window:         window,
		RunInterval:    runInterval,

		InputSource: strings.ToLower(sharedcfg.EnvOrDefault("INPUT_SOURCE", SourcePostgres)),
		InputPath:   os.Getenv("INPUT_PATH"),
		OutputSinks: parseList(sharedcfg.EnvOrDefault("OUTPUT_SINKS", SinkPostgres)),

		DBHost:         sharedcfg.EnvOrDefault("DB_HOST", "localhost"),
		DBPort:         sharedcfg.EnvOrDefault("DB_PORT", "5432"),
		DBUser:         sharedcfg.EnvOrDefault("DB_USER", "postgres"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         sharedcfg.EnvOrDefault("DB_NAME", "jitenshop"),
		DBSSLMode:      sharedcfg.EnvOrDefault("DB_SSLMODE", "disable"),
		ReadingsTable:  sharedcfg.EnvOrDefault("READINGS_TABLE", "timeseries"),
		LabelsTable:    sharedcfg.EnvOrDefault("LABELS_TABLE", "clustered_stations"),
		CentroidsTable: sharedcfg.EnvOrDefault("CENTROIDS_TABLE", "centroids"),

		SQLitePath: sharedcfg.EnvOrDefault("SQLITE_PATH", "./data/clusters.db"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Key:       os.Getenv("S3_KEY"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:    os.Getenv("S3_USE_SSL") == "true",

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "station-clusters"),

		XLSXPath: sharedcfg.EnvOrDefault("XLSX_PATH", "./data/clusters.xlsx"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validSources, c.InputSource) {
		return fmt.Errorf("INPUT_SOURCE must be one of %s", strings.Join(validSources, ", "))
	}
	if c.InputSource == SourceCSV && c.InputPath == "" {
		return errors.New("INPUT_PATH is required when INPUT_SOURCE is csv")
	}
	if c.InputSource == SourceS3 && (c.S3Endpoint == "" || c.S3Bucket == "" || c.S3Key == "") {
		return errors.New("S3_ENDPOINT, S3_BUCKET and S3_KEY are required when INPUT_SOURCE is s3")
	}

	if len(c.OutputSinks) == 0 {
		return errors.New("OUTPUT_SINKS is required")
	}
	for _, s := range c.OutputSinks {
		if !slices.Contains(validSinks, s) {
			return fmt.Errorf("OUTPUT_SINKS: unknown sink %q", s)
		}
	}
	if c.HasSink(SinkKafka) {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required for the kafka sink")
		}
	}
	return nil
}

// HasSink reports whether name is listed in OUTPUT_SINKS.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.OutputSinks, name)
}

// ClusterOptions converts the clustering settings into domain options.
func (c *Config) ClusterOptions() domain.ClusterOptions {
	return domain.ClusterOptions{
		Profile: domain.ProfileOptions{Period: c.ResamplePeriod, Location: c.Location},
		KMeans: domain.KMeansOptions{
			Seed:      c.ClusterSeed,
			NInit:     c.ClusterNInit,
			MaxIter:   c.ClusterMaxIter,
			Tolerance: domain.DefaultKMeansOptions().Tolerance,
		},
	}
}

// PostgresDSN builds the connection URL for the configured database. The
// password is left out when DB_PASSWORD is unset.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword != "" {
		u.User = url.UserPassword(c.DBUser, c.DBPassword)
	} else {
		u.User = url.User(c.DBUser)
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseWindow reads WINDOW_START and WINDOW_END as RFC 3339 instants or
// YYYY-MM-DD dates. Dates are midnight in loc, or UTC when loc is nil.
func parseWindow(loc *time.Location) (domain.Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	var w domain.Window
	var err error
	if w.Start, err = parseBound("WINDOW_START", loc); err != nil {
		return w, err
	}
	if w.End, err = parseBound("WINDOW_END", loc); err != nil {
		return w, err
	}
	if !w.Start.IsZero() && !w.End.IsZero() && !w.Start.Before(w.End) {
		return w, errors.New("WINDOW_START must be before WINDOW_END")
	}
	return w, nil
}

func parseBound(key string, loc *time.Location) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid %s", key)
}
