package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/logger"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/store"
)

var logg = logger.New()

// Worker consumes post events from Kafka and keeps per-author post counts
// up to date.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			// keep offering the message until it is queued or we stop
			for queued := false; !queued; {
				select {
				case jobs <- msg.Value:
					queued = true
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
					logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
				}
			}
		}
	}
}

// processLoop decodes events and applies them until jobs is closed.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for data := range jobs {
		if err := w.handle(ctx, data); err != nil {
			logg.Error("worker", "Failed to apply post event", err)
		}
	}
}

// statsDelta is the post count change an event causes.
func statsDelta(eventType string) int64 {
	switch eventType {
	case models.PostCreated:
		return 1
	case models.PostDeleted:
		return -1
	default:
		return 0
	}
}

// handle applies one encoded post event to the author's stats.
func (w *Worker) handle(ctx context.Context, data []byte) error {
	ev, err := appkafka.DecodePostEvent(data)
	if err != nil {
		return err
	}

	delta := statsDelta(ev.Type)
	if delta == 0 {
		return nil
	}

	// the message is already consumed, so finish the write even if we are stopping
	if err := w.store.AddAuthorPostCount(context.WithoutCancel(ctx), ev.Post.AuthorID, delta); err != nil {
		return fmt.Errorf("failed to update author stats: %w", err)
	}
	logg.Debug("worker", "Applied "+ev.Type+" to author stats (ids anonymized)")
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing store")
	w.store.Close()
	return nil
}
