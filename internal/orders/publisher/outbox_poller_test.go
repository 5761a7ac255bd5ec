package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/domain"
	"github.com/zuhaib446/nayab-gemstone/internal/orders/repository"
	"github.com/zuhaib446/nayab-gemstone/pkg/logger"
	"go.uber.org/goleak"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkaGo.Message
	failKeys map[string]bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if w.failKeys[string(m.Key)] {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) sent() []kafkaGo.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafkaGo.Message(nil), w.messages...)
}

func placeOrder(t *testing.T, repo *repository.MemoryRepository) *domain.Order {
	t.Helper()
	items := []domain.OrderItem{{ProductID: "ruby", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}}
	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        "user-1",
		Items:         items,
		Total:         domain.ComputeTotal(items),
		Currency:      "usd",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repo.CreateOrder(context.Background(), order))
	return order
}

func TestOutboxPoller_PublishesAndMarks(t *testing.T) {
	repo := repository.NewMemoryRepository()
	writer := &fakeWriter{}
	order := placeOrder(t, repo)

	poller := NewOutboxPoller(repo, writer, logger.Discard())
	poller.processUnpublishedEvents(context.Background())

	msgs := writer.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, order.ID.String(), string(msgs[0].Key))
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, domain.EventOrderPlaced, string(msgs[0].Headers[0].Value))

	var payload domain.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Value, &payload))
	assert.Equal(t, order.ID, payload.OrderID)

	pending, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// nothing left to send
	poller.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.sent(), 1)
}

func TestOutboxPoller_FailedPublishIsRetried(t *testing.T) {
	repo := repository.NewMemoryRepository()
	failing := placeOrder(t, repo)
	ok := placeOrder(t, repo)
	writer := &fakeWriter{failKeys: map[string]bool{failing.ID.String(): true}}

	poller := NewOutboxPoller(repo, writer, logger.Discard())
	poller.processUnpublishedEvents(context.Background())

	msgs := writer.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, ok.ID.String(), string(msgs[0].Key))

	pending, err := repo.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, failing.ID.String(), pending[0].AggregateID)

	writer.mu.Lock()
	writer.failKeys = nil
	writer.mu.Unlock()
	poller.processUnpublishedEvents(context.Background())
	assert.Len(t, writer.sent(), 2)
}

func TestOutboxPoller_RunStopsAndClosesWriter(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := repository.NewMemoryRepository()
	placeOrder(t, repo)
	writer := &fakeWriter{}
	poller := NewOutboxPoller(repo, writer, logger.Discard())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(writer.sent()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.True(t, writer.closed)
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Kafka container test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	createTopic(t, brokers[0], "orders-outbox")

	repo := repository.NewMemoryRepository()
	order := placeOrder(t, repo)

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	poller := NewOutboxPoller(repo, NewKafkaWriter("orders-outbox", brokers...), logger.Discard())
	go poller.Run(runCtx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  brokers,
		Topic:    "orders-outbox",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(runCtx)
	require.NoError(t, err)
	assert.Equal(t, order.ID.String(), string(msg.Key))

	var payload domain.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, order.UserID, payload.UserID)
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}
