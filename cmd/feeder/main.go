package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/cmd/feeder/internal/feeder"
	"github.com/jwkim-dev/tickstream/pkg/config"
)

// Base prices in won for the default KOSPI symbols; anything configured
// beyond these falls back to a generic base inside the feeder.
var basePrices = map[string]int{
	"005930": 70000,  // Samsung Electronics
	"000660": 120000, // SK hynix
	"035420": 210000, // NAVER
	"035720": 55000,  // Kakao
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	clock := feeder.RealClock{}

	// Ensure the topic exists before the first write
	creator := feeder.NewTopicCreator(logger, &feeder.RealKafkaDialer{Dialer: kafka.DefaultDialer}, clock)
	creator.Create(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
		// Optimization: Send batches to reduce network IO
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}

	rnd := feeder.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
	f := feeder.NewTickFeeder(
		logger,
		writer,
		cfg.Feeder.Symbols,
		basePrices,
		rnd,
		clock,
		time.Duration(cfg.Feeder.IntervalMs)*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go f.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	// Flush the batched writer before exiting
	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
