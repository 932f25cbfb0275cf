package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"example.com/cassandrablog/cmd/seed"
	"example.com/cassandrablog/cmd/server"
	"example.com/cassandrablog/cmd/worker"
	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/flash"
	config "example.com/cassandrablog/internal/init"
	"example.com/cassandrablog/internal/store"
	"example.com/cassandrablog/internal/telemetry"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Fatalf("Tracing init failed: %v", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	// Initialize the post store (Cassandra or Postgres)
	st, err := store.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Store connection failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partitions:   cfg.KafkaPartitions,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Run application depending on selected mode
	switch mode {
	case "server":
		runServer(ctx, cfg, st, kafkaCfg)
	case "worker":
		// Start the worker that reads post events and updates author stats
		if cfg.KafkaBroker == "" {
			log.Fatal("worker mode needs KAFKA_BROKER")
		}
		kafkaReader := appkafka.NewKafkaReader(kafkaCfg)
		w := worker.New(st, kafkaReader, 0, 0)
		w.Run(ctx)
		if err := kafkaReader.Close(); err != nil {
			log.Printf("Kafka reader close failed: %v", err)
		}
	case "seed":
		if err := seed.Run(ctx, st, cfg.SeedUsers, cfg.SeedPosts, nil); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}

func runServer(ctx context.Context, cfg *config.Config, st store.StoreInterface, kafkaCfg appkafka.KafkaConfig) {
	// Post events are optional; an empty broker disables them
	var kafkaWriter appkafka.KafkaWriter
	if cfg.KafkaBroker != "" {
		if err := appkafka.EnsureTopic(kafkaCfg); err != nil {
			log.Printf("Kafka topic check failed, continuing: %v", err)
		}
		writer, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer writer.Close()
		kafkaWriter = writer
	}

	// Flash messages live in Redis when configured, otherwise in memory
	var fl flash.Store
	if cfg.RedisAddr != "" {
		rdb, err := flash.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rdb.Close()
		fl = flash.NewRedisStore(rdb, cfg.FlashTTL)
	} else {
		fl = flash.NewMemoryStore(cfg.FlashTTL)
	}

	s, err := server.New(st, kafkaWriter, fl, server.Options{
		Addr:        cfg.ServerAddr,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenTTL:    cfg.TokenTTL,

		PublishTimeout: cfg.KafkaWriteTO,
	})
	if err != nil {
		log.Fatalf("Server init failed: %v", err)
	}

	// Start the HTTP server; returns after graceful shutdown
	s.Run(ctx)
}
