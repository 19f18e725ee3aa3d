// Package kafka publishes pricing audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/config"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/segmentio/kafka-go"
)

// DefaultAuditTopic is used when kafka.audit_topic is empty.
const DefaultAuditTopic = "pricing.audit"

// ErrNoBrokers is returned when no brokers are configured.
var ErrNoBrokers = errors.New("kafka brokers are required")

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditEvent is the message body published per analysis.
type AuditEvent struct {
	AnalysisID       string                 `json:"analysis_id"`
	QuoteID          string                 `json:"quote_id"`
	User             string                 `json:"user"`
	Timestamp        time.Time              `json:"timestamp"`
	ExecutionSeconds float64                `json:"execution_time_seconds"`
	FinalRating      string                 `json:"final_rating"`
	SuggestedPrice   float64                `json:"suggested_price"`
	Request          models.ShipmentRequest `json:"request"`
	Result           *models.AnalysisResult `json:"result"`
}

var _ interfaces.AuditSink = (*AuditSink)(nil)

// AuditSink publishes one JSON event per audit entry, keyed by analysis id so
// all events for an analysis land on the same partition.
type AuditSink struct {
	writer messageWriter
	topic  string
}

// NewAuditSink creates a synchronous writer for cfg.AuditTopic.
func NewAuditSink(cfg config.KafkaConfig) (*AuditSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	topic := cfg.AuditTopic
	if topic == "" {
		topic = DefaultAuditTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: config.Duration(cfg.WriteTimeout, 10*time.Second),
	}
	return &AuditSink{writer: writer, topic: topic}, nil
}

func (s *AuditSink) Name() string { return "kafka" }

// Topic returns the topic events are written to.
func (s *AuditSink) Topic() string { return s.topic }

func (s *AuditSink) Record(ctx context.Context, entry models.AuditEntry) error {
	event := AuditEvent{
		AnalysisID:       entry.ID,
		QuoteID:          entry.QuoteID,
		User:             entry.User,
		Timestamp:        entry.Timestamp,
		ExecutionSeconds: entry.ExecutionSeconds,
		Request:          entry.Request,
		Result:           entry.Result,
	}
	if entry.Result != nil {
		event.FinalRating = entry.Result.FinalRating
		event.SuggestedPrice = entry.Result.SuggestedPrice
		if event.AnalysisID == "" {
			event.AnalysisID = entry.Result.ID
		}
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AnalysisID),
		Value: value,
		Time:  entry.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close closes the producer.
func (s *AuditSink) Close() error {
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
