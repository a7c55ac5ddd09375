package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/cravings/internal/models"
)

const publishTimeout = 5 * time.Second

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// OrderEvent is the payload written to the order events topic.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        uuid.UUID          `json:"order_id"`
	CustomerID     uuid.UUID          `json:"customer_id"`
	RestaurantID   uuid.UUID          `json:"restaurant_id"`
	DeliveryCrewID *uuid.UUID         `json:"delivery_crew_id"`
	Status         models.OrderStatus `json:"status"`
	Total          string             `json:"total"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

type Producer struct {
	Writer MessageWriter
	Now    func() time.Time
}

func NewProducer(w MessageWriter) *Producer {
	return &Producer{Writer: w, Now: time.Now}
}

func (p *Producer) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	event := OrderEvent{
		Type:           eventType,
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		RestaurantID:   order.RestaurantID,
		DeliveryCrewID: order.DeliveryCrewID,
		Status:         order.Status,
		Total:          order.Total.StringFixed(2),
		OccurredAt:     now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID.String()),
		Value: data,
	}); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
