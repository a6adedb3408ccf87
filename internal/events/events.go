// Package events announces placed orders to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safar/hive-store/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const TypeOrderPlaced = "order.placed"

const batchTimeout = 5 * time.Millisecond

type OrderPlaced struct {
	Type      string                 `json:"type"`
	OrderID   string                 `json:"orderId"`
	UserID    string                 `json:"userId"`
	Items     []models.OrderLineItem `json:"items"`
	Total     decimal.Decimal        `json:"total"`
	CreatedAt time.Time              `json:"createdAt"`
}

func NewOrderPlaced(o models.Order) OrderPlaced {
	return OrderPlaced{
		Type:      TypeOrderPlaced,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Items:     o.Items,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, e OrderPlaced) error
}

// MultiPublisher fans out to every publisher and joins their errors.
type MultiPublisher struct {
	publishers []Publisher
}

func NewMultiPublisher(ps ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: ps}
}

func (m *MultiPublisher) PublishOrderPlaced(ctx context.Context, e OrderPlaced) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishOrderPlaced(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (l *LogPublisher) PublishOrderPlaced(ctx context.Context, e OrderPlaced) error {
	l.log.WithFields(logrus.Fields{
		"event":    e.Type,
		"order_id": e.OrderID,
		"user_id":  e.UserID,
		"items":    len(e.Items),
		"total":    e.Total.StringFixed(2),
	}).Info("order event")
	return nil
}

// messageWriter is the subset of kafka.Writer used here, so tests can swap it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per order keyed by order id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		// Each order is flushed on its own.
		BatchSize:    1,
		BatchTimeout: batchTimeout,
	}}
}

func newKafkaPublisherWith(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) PublishOrderPlaced(ctx context.Context, e OrderPlaced) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write order event %s: %w", e.OrderID, err)
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
