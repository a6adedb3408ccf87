package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/safar/hive-store/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleOrder() models.Order {
	return models.Order{
		ID:     "ord-1",
		UserID: "buyer-1",
		Items: []models.OrderLineItem{
			{ProductID: "1", Name: "Tee", Price: decimal.RequireFromString("49.99"), Quantity: 2},
		},
		Total:     decimal.RequireFromString("99.98"),
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisherWith(w)

	err := p.PublishOrderPlaced(context.Background(), NewOrderPlaced(sampleOrder()))
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeOrderPlaced, string(msg.Headers[0].Value))

	var got OrderPlaced
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "buyer-1", got.UserID)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("99.98")))
	assert.Len(t, got.Items, 1)
	assert.Contains(t, string(msg.Value), `"total":99.98`)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisherFlushesEachMessage(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "hive.orders.placed")

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "hive.orders.placed", w.Topic)
	assert.False(t, w.Async)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)

	require.NoError(t, p.Close())
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisherWith(&fakeWriter{err: boom})

	err := p.PublishOrderPlaced(context.Background(), NewOrderPlaced(sampleOrder()))
	assert.ErrorIs(t, err, boom)
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	boom := errors.New("broker down")
	ok := &fakeWriter{}
	m := NewMultiPublisher(newKafkaPublisherWith(&fakeWriter{err: boom}), newKafkaPublisherWith(ok))

	err := m.PublishOrderPlaced(context.Background(), NewOrderPlaced(sampleOrder()))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.msgs, 1, "a failing publisher must not stop the others")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	err := NewLogPublisher(log).PublishOrderPlaced(context.Background(), NewOrderPlaced(sampleOrder()))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ord-1", entry["order_id"])
	assert.Equal(t, "99.98", entry["total"])
}
