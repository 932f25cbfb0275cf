package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/models"
	"github.com/gocql/gocql"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		total      int
		batchSize  int
		numWorkers int
		authors    int
		brokers    string
		topic      string
	)
	flag.IntVar(&total, "n", 100000, "total number of post events to send")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending messages")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.IntVar(&authors, "authors", 50, "number of distinct authors to spread events over")
	flag.StringVar(&brokers, "brokers", "localhost:29092", "comma separated Kafka brokers")
	flag.StringVar(&topic, "topic", "posts", "post events topic")
	flag.Parse()

	// Same partitioning as the server: events of one author share a partition
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    batchSize,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	defer w.Close()

	authorIDs := make([]string, authors)
	for i := range authorIDs {
		authorIDs[i] = gocql.TimeUUID().String()
	}
	start := time.Now()

	var successCount uint64
	var failCount uint64

	jobs := make(chan int, total)
	var wg sync.WaitGroup

	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			flush := func() {
				if err := w.WriteMessages(context.Background(), batch...); err != nil {
					atomic.AddUint64(&failCount, uint64(len(batch)))
					fmt.Printf("write error: %v\n", err)
				} else {
					atomic.AddUint64(&successCount, uint64(len(batch)))
				}
				batch = batch[:0]
			}

			for i := range jobs {
				ev := appkafka.NewPostEvent(models.PostCreated, models.Post{
					ID:        gocql.TimeUUID().String(),
					Title:     fmt.Sprintf("kafka bench %d", i),
					Body:      "Produced by the Kafka benchmark.",
					AuthorID:  authorIDs[i%len(authorIDs)],
					CreatedAt: time.Now().UTC(),
				})

				msg, err := appkafka.EncodePostEvent(ev)
				if err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("encode error: %v\n", err)
					continue
				}

				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush()
				}
			}

			if len(batch) > 0 {
				flush()
			}
		}()
	}

	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Total events: %d across %d authors\n", total, authors)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
