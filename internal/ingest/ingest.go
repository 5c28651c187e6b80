// Package ingest consumes final transcript events from Kafka, runs them
// through the session manager, and publishes the resolved references.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/metrics"
	"github.com/FocuswithJustin/versewatch/internal/session"
)

// Event types.
const (
	EventTranscriptFinal = "interaction.transcript.final"
	EventReferences      = "interaction.scripture.references"
)

// TranscriptFinal is a final transcript segment as published by the
// speech ingress service.
type TranscriptFinal struct {
	EventType     string  `json:"eventType"`
	InteractionID string  `json:"interactionId"`
	TenantID      string  `json:"tenantId"`
	Timestamp     int64   `json:"timestamp"`
	SegmentID     string  `json:"segmentId"`
	Text          string  `json:"text"`
	Confidence    float64 `json:"confidence"`
	AudioOffsetMs int64   `json:"audioOffsetMs"`
}

// ReferenceEvent carries the references found in one transcript segment.
type ReferenceEvent struct {
	EventType     string                `json:"eventType"`
	InteractionID string                `json:"interactionId"`
	TenantID      string                `json:"tenantId,omitempty"`
	SegmentID     string                `json:"segmentId"`
	Timestamp     int64                 `json:"timestamp"`
	AudioOffsetMs int64                 `json:"audioOffsetMs"`
	TranslationID string                `json:"translation"`
	Direct        []scripture.Reference `json:"direct"`
	Paraphrase    []scripture.Reference `json:"paraphrase"`
}

// Config holds Kafka consumer configuration.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	OutputTopic string

	// TranslationID is used for sessions the consumer opens. Empty means
	// the default translation.
	TranslationID string
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is the subset of *kafka.Writer the consumer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads transcript events and publishes reference events.
type Consumer struct {
	cfg      Config
	reader   Reader
	writer   Writer
	sessions *session.Manager
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a consumer connected to cfg.Brokers. With no brokers the
// consumer is disabled and Run returns at once.
func New(cfg Config, sessions *session.Manager, m *metrics.Metrics) *Consumer {
	if len(cfg.Brokers) == 0 {
		logging.Info("kafka ingest disabled", "reason", "no brokers configured")
		return NewWithClients(cfg, nil, nil, sessions, m)
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		Dialer:   dialer,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OutputTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logging.Info("kafka ingest initialized",
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic", cfg.Topic,
		"group_id", cfg.GroupID,
		"output_topic", cfg.OutputTopic)
	return NewWithClients(cfg, reader, writer, sessions, m)
}

// NewWithClients creates a consumer over the given reader and writer. A
// nil reader disables consumption.
func NewWithClients(cfg Config, r Reader, w Writer, sessions *session.Manager, m *metrics.Metrics) *Consumer {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Consumer{
		cfg:      cfg,
		reader:   r,
		writer:   w,
		sessions: sessions,
		metrics:  m,
		now:      time.Now,
	}
}

// Enabled reports whether the consumer has a broker connection.
func (c *Consumer) Enabled() bool {
	return c.reader != nil
}

// Run consumes until ctx is done. Messages of a partition are handled in
// offset order. A message that cannot be handled is logged, counted and
// committed so it does not block the partition.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		err = c.Handle(ctx, msg)
		c.metrics.RecordIngest(err)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.IngestError(msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit: %w", err)
		}
	}
}

// Handle processes one transcript message. Events of other types are
// ignored. A reference event is published only when the segment
// produced references.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var ev TranscriptFinal
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return errors.NewParse("json", msg.Topic, err.Error())
	}
	if ev.EventType != "" && ev.EventType != EventTranscriptFinal {
		logging.Debug("ingest skipped event", "event_type", ev.EventType, "offset", msg.Offset)
		return nil
	}
	if ev.InteractionID == "" {
		return errors.NewValidation("interactionId", "required")
	}

	if _, err := c.sessions.OpenWithID(ev.InteractionID, c.cfg.TranslationID); err != nil {
		return err
	}
	res, err := c.sessions.Process(ctx, ev.InteractionID, ev.Text)
	if err != nil {
		return err
	}
	if len(res.Direct) == 0 && len(res.Paraphrase) == 0 {
		return nil
	}

	out := ReferenceEvent{
		EventType:     EventReferences,
		InteractionID: ev.InteractionID,
		TenantID:      ev.TenantID,
		SegmentID:     ev.SegmentID,
		Timestamp:     c.now().UnixMilli(),
		AudioOffsetMs: ev.AudioOffsetMs,
		TranslationID: res.TranslationID,
		Direct:        res.Direct,
		Paraphrase:    res.Paraphrase,
	}
	return c.publish(ctx, ev.InteractionID, out)
}

func (c *Consumer) publish(ctx context.Context, key string, ev ReferenceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal reference event: %w", err)
	}
	logging.Debug("publishing reference event",
		"topic", c.cfg.OutputTopic, "key", key,
		"direct", len(ev.Direct), "paraphrase", len(ev.Paraphrase))

	if c.writer == nil {
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(ev.EventType)},
		},
	}
	if err := c.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", c.cfg.OutputTopic, err)
	}
	return nil
}

// Close closes the reader and writer.
func (c *Consumer) Close() error {
	var err error
	if c.reader != nil {
		if e := c.reader.Close(); e != nil {
			logging.Error("error closing kafka reader", "error", e)
			err = e
		}
	}
	if c.writer != nil {
		if e := c.writer.Close(); e != nil {
			logging.Error("error closing kafka writer", "error", e)
			err = e
		}
	}
	return err
}
