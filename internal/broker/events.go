package appkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/cassandrablog/internal/models"
	"github.com/segmentio/kafka-go"
)

// NewPostEvent stamps an event for post.
func NewPostEvent(eventType string, post models.Post) models.PostEvent {
	post.Author = nil
	return models.PostEvent{Type: eventType, Post: post, At: time.Now().UTC()}
}

// EncodePostEvent keys the message by author so one author's events stay
// ordered on a partition.
func EncodePostEvent(ev models.PostEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode post event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.Post.AuthorID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}, nil
}

func DecodePostEvent(data []byte) (models.PostEvent, error) {
	var ev models.PostEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("invalid post event: %w", err)
	}
	switch ev.Type {
	case models.PostCreated, models.PostUpdated, models.PostDeleted:
	default:
		return ev, fmt.Errorf("unknown post event type %q", ev.Type)
	}
	if ev.Post.AuthorID == "" {
		return ev, fmt.Errorf("post event without author")
	}
	return ev, nil
}

// Publish writes one post event, giving up when ctx is done.
func Publish(ctx context.Context, w KafkaWriter, ev models.PostEvent) error {
	msg, err := EncodePostEvent(ev)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish post event: %w", err)
	}
	return nil
}
