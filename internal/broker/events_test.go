package appkafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/cassandrablog/internal/models"
)

func TestPublish_KeysByAuthor(t *testing.T) {
	mk := &MockKafka{}
	post := models.Post{
		ID:        "p1",
		Title:     "t",
		Body:      "b",
		AuthorID:  "u1",
		Author:    &models.User{ID: "u1", Username: "alice"},
		CreatedAt: time.Now(),
	}

	if err := Publish(context.Background(), mk, NewPostEvent(models.PostCreated, post)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	written := mk.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 message, got %d", len(written))
	}
	if string(written[0].Key) != "u1" {
		t.Fatalf("expected author key, got %q", written[0].Key)
	}

	ev, err := DecodePostEvent(written[0].Value)
	if err != nil {
		t.Fatalf("DecodePostEvent failed: %v", err)
	}
	if ev.Type != models.PostCreated || ev.Post.ID != "p1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Post.Author != nil {
		t.Fatal("populated author should not be published")
	}
}

func TestPublish_WriterFailure(t *testing.T) {
	if err := Publish(context.Background(), &MockKafkaFail{}, NewPostEvent(models.PostDeleted, models.Post{AuthorID: "u"})); err == nil {
		t.Fatal("expected write failure")
	}
}

func TestPublish_GivesUpAtDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Publish(ctx, &MockKafkaSlow{}, NewPostEvent(models.PostCreated, models.Post{AuthorID: "u"}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("publish blocked for %s", time.Since(start))
	}
}

func TestDecodePostEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", "{invalid"},
		{"unknown type", `{"type":"post_liked","post":{"author_id":"u1"}}`},
		{"missing author", `{"type":"post_created","post":{"id":"p1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePostEvent([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
