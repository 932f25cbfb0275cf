package worker

import (
	"context"
	"testing"
	"time"

	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce reads and applies a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, w *Worker) error {
	msg, err := w.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}
	return w.handle(ctx, msg.Value)
}

func encodeEvent(t *testing.T, eventType, authorID string) kafka.Message {
	t.Helper()
	msg, err := appkafka.EncodePostEvent(appkafka.NewPostEvent(eventType, models.Post{
		ID:        "p1",
		Title:     "t",
		Body:      "b",
		AuthorID:  authorID,
		CreatedAt: time.Now(),
	}))
	if err != nil {
		t.Fatalf("EncodePostEvent failed: %v", err)
	}
	return msg
}

// ---------- Positive tests ----------

func TestWorker_CountsCreatedAndDeleted(t *testing.T) {
	mockStore := store.NewMock()
	authorID, _ := mockStore.CreateUser(t.Context(), "author")

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{
			encodeEvent(t, models.PostCreated, authorID),
			encodeEvent(t, models.PostCreated, authorID),
			encodeEvent(t, models.PostUpdated, authorID),
			encodeEvent(t, models.PostDeleted, authorID),
		},
	}
	w := New(mockStore, mockKafka, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 4; i++ {
		if err := runWorkerOnce(ctx, w); err != nil {
			t.Fatalf("worker failed on message %d: %v", i, err)
		}
	}

	stats, _ := mockStore.GetAuthorStats(ctx, authorID)
	if stats.PostCount != 1 {
		t.Fatalf("expected post count 1, got %d", stats.PostCount)
	}
}

func TestWorker_UpdatedIsNoop(t *testing.T) {
	mockStore := &store.MockStoreFail{}
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{encodeEvent(t, models.PostUpdated, "author")},
	}

	// a failing store proves updates never write
	if err := runWorkerOnce(context.Background(), New(mockStore, mockKafka, 1, 1)); err != nil {
		t.Fatalf("expected no store call for post_updated, got %v", err)
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	w := New(store.NewMock(), &appkafka.MockKafkaFail{}, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid event JSON
func TestWorker_InvalidEventJSON(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{
			{Value: []byte("{invalid-json}")},
		},
	}

	if err := runWorkerOnce(context.Background(), New(store.NewMock(), mockKafka, 1, 1)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// Simulate store failure when updating stats
func TestWorker_StoreFail(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{encodeEvent(t, models.PostCreated, "author")},
	}

	if err := runWorkerOnce(context.Background(), New(&store.MockStoreFail{}, mockKafka, 1, 1)); err == nil {
		t.Fatalf("expected error from store AddAuthorPostCount")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}

	if err := runWorkerOnce(context.Background(), New(store.NewMock(), mockKafka, 1, 1)); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}
