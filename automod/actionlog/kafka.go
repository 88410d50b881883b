package actionlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Minimal producer surface, satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Wraps an ActionLog and publishes every persisted record to a Kafka topic, for downstream audit consumers.
//
// Publishing is best-effort: the inner log remains the source of truth, and producer failures are only logged.
type KafkaTee struct {
	Inner  ActionLog
	Writer MessageWriter
	Logger *slog.Logger
}

var _ ActionLog = (*KafkaTee)(nil)

// brokers is a comma-separated host:port list.
func NewKafkaTee(inner ActionLog, brokers, topic string, logger *slog.Logger) *KafkaTee {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("subsystem", "kafka-audit", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("failed to publish audit records", "count", len(messages), "err", err)
			}
		},
	}
	return &KafkaTee{
		Inner:  inner,
		Writer: w,
		Logger: logger,
	}
}

type auditEvent struct {
	ActionRecord
	Evidence map[string]any `json:"evidence,omitempty"`
}

func (k *KafkaTee) LogAction(ctx context.Context, e Entry) (uint, error) {
	id, err := k.Inner.LogAction(ctx, e)
	if err != nil {
		return id, err
	}
	rec, err := e.record(time.Now().UTC())
	if err != nil {
		k.Logger.Warn("failed to encode audit record", "action", e.Action, "err", err)
		return id, nil
	}
	rec.ID = id
	evt := auditEvent{ActionRecord: rec, Evidence: e.Evidence}
	evt.EvidenceJSON = ""
	buf, err := json.Marshal(evt)
	if err != nil {
		k.Logger.Warn("failed to encode audit record", "action", e.Action, "err", err)
		return id, nil
	}
	msg := kafka.Message{
		Key:   []byte(rec.TargetID),
		Value: buf,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(rec.Action)},
			{Key: "status", Value: []byte(rec.Status)},
		},
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		k.Logger.Warn("failed to publish audit record", "action", e.Action, "err", err)
	}
	return id, nil
}

func (k *KafkaTee) CountRecent(ctx context.Context, targetID, action string, windowMinutes int) (int, error) {
	return k.Inner.CountRecent(ctx, targetID, action, windowMinutes)
}

func (k *KafkaTee) CountRecentLike(ctx context.Context, targetID, actionPrefix string, windowMinutes int) (int, error) {
	return k.Inner.CountRecentLike(ctx, targetID, actionPrefix, windowMinutes)
}

func (k *KafkaTee) Close() error {
	return k.Writer.Close()
}
