//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

var monday = time.Date(2024, time.April, 22, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("station-clusters"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startPostgres runs a database and returns a connection URL.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("jitenshop"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start postgres")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// weekdayReadings returns one Monday of 5-minute readings for a morning
// station, an evening station, a second morning station and an empty station.
func weekdayReadings() []domain.Reading {
	shapes := map[string]func(h int) float64{
		"1001": func(h int) float64 { return pick(h < 12, 15, 2) },
		"1002": func(h int) float64 { return pick(h < 12, 1, 14) },
		"1003": func(h int) float64 { return pick(h < 12, 11, 3) },
		"1004": func(int) float64 { return 0 },
	}
	var readings []domain.Reading
	for _, id := range []string{"1001", "1002", "1003", "1004"} {
		for t := monday; t.Before(monday.Add(24 * time.Hour)); t = t.Add(5 * time.Minute) {
			readings = append(readings, domain.Reading{StationID: id, TS: t, NbBikes: shapes[id](t.Hour())})
		}
	}
	return readings
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
