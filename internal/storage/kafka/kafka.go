// Package kafka публикует аудиторные события в топик Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"codebot/internal/storage"
)

var _ storage.AuditWriter = (*Sink)(nil)

// Config настраивает публикацию аудита.
type Config struct {
	Brokers []string
	Topic   string
}

// Sink пишет события аудита в Kafka; ключ сообщения - request id.
type Sink struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewSink создает Sink поверх kafka-go Writer.
func NewSink(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic must be provided")
	}
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newSink(writer), nil
}

func newSink(writer messageWriter) *Sink {
	return &Sink{writer: writer}
}

type auditMessage struct {
	Subject   string          `json:"subject"`
	Action    string          `json:"action"`
	Source    string          `json:"source"`
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	TS        time.Time       `json:"ts"`
}

// Write сериализует событие и публикует его.
func (s *Sink) Write(ctx context.Context, ev storage.AuditEvent) error {
	if s.writer == nil {
		return errors.New("kafka sink is not initialized")
	}
	ts := ev.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	msg := auditMessage{
		Subject:   ev.Subject,
		Action:    ev.Action,
		Source:    ev.Source,
		Status:    ev.Status,
		RequestID: ev.RequestID,
		TS:        ts,
	}
	if json.Valid(ev.Payload) {
		msg.Details = ev.Payload
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.RequestID),
		Value: payload,
		Time:  ts,
	}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close освобождает writer.
func (s *Sink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
