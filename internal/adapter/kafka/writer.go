package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/station-clusters/internal/config"
	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Message kinds carried in the "kind" header.
const (
	KindLabel    = "label"
	KindCentroid = "centroid"
)

// LabelMessage is the value of a label message.
type LabelMessage struct {
	RunID      string    `json:"run_id"`
	ComputedAt time.Time `json:"computed_at"`
	StationID  string    `json:"id_station"`
	Label      int       `json:"labels"`
}

// CentroidMessage is the value of a centroid message. Values[i] is the
// normalized availability at Hours[i].
type CentroidMessage struct {
	RunID      string    `json:"run_id"`
	ComputedAt time.Time `json:"computed_at"`
	Index      int       `json:"index"`
	Hours      []int     `json:"hours"`
	Values     []float64 `json:"values"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes clustering runs to a Kafka topic.
// It implements pipeline.ResultSink.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newWriter(w, cfg.BatchSize, logger)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger}
}

// Name identifies the sink.
func (w *Writer) Name() string { return "kafka" }

// SaveClusters publishes one message per station label followed by one per
// centroid, in batches of at most batchSize messages.
func (w *Writer) SaveClusters(ctx context.Context, run domain.ClusterRun) error {
	msgs, err := runMessages(run)
	if err != nil {
		return err
	}
	for start := 0; start < len(msgs); start += w.batchSize {
		end := min(start+w.batchSize, len(msgs))
		if err := w.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish run %s: %w", run.RunID, err)
		}
	}
	w.logger.Debug("run published", "run_id", run.RunID, "messages", len(msgs))
	return nil
}

// Close flushes pending messages and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

func runMessages(run domain.ClusterRun) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(run.Labels)+run.ClusterCount())
	for _, l := range run.Labels {
		msg, err := serializeToMessage(run, l.StationID, KindLabel, LabelMessage{
			RunID:      run.RunID,
			ComputedAt: run.ComputedAt,
			StationID:  l.StationID,
			Label:      l.Label,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for i := range run.ClusterCount() {
		msg, err := serializeToMessage(run, "centroid-"+strconv.Itoa(i), KindCentroid, CentroidMessage{
			RunID:      run.RunID,
			ComputedAt: run.ComputedAt,
			Index:      i,
			Hours:      run.Hours,
			Values:     run.Centroid(i),
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals a payload into a Kafka message tagged with the run.
func serializeToMessage(run domain.ClusterRun, key, kind string, payload any) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s %s: %w", kind, key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "run_id", Value: []byte(run.RunID)},
			{Key: "computed_at", Value: []byte(run.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
