package events

import (
	"context"
	"encoding/json"
	"time"

	"echochat-backend/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageEvent is the record emitted for downstream consumers (push
// notifications, analytics). It repeats the identifiers those pipelines key
// on so they never have to call back into the chat service.
type MessageEvent struct {
	EventType  string             `json:"eventType"`
	ChatID     string             `json:"chatId"`
	MessageID  string             `json:"messageId"`
	SenderID   string             `json:"senderId"`
	SenderName string             `json:"senderName"`
	Type       models.MessageType `json:"type"`
	Preview    string             `json:"preview"`
	OccurredAt time.Time          `json:"occurredAt"`
}

const (
	EventMessageSent     = "message.sent"
	EventMessageDeleted  = "message.deleted"
	EventMessageRecalled = "message.recalled"
)

// Publisher emits message events to downstream pipelines.
type Publisher interface {
	PublishMessageEvent(ctx context.Context, event MessageEvent) error
	Close() error
}

// KafkaPublisher writes message events to a kafka topic, keyed by chat id so
// events for one conversation stay in order on a single partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.SugaredLogger) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) PublishMessageEvent(ctx context.Context, event MessageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ChatID),
		Value: payload,
	})
	if err != nil {
		p.log.Errorw("failed to publish message event", "eventType", event.EventType, "chatId", event.ChatID, "error", err)
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
