package ingest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/cmd/ingestor/internal/ingest"
	"github.com/jwkim-dev/tickstream/cmd/ingestor/internal/testutils"
	"github.com/jwkim-dev/tickstream/pkg/config"
)

func rawMessage(symbol string, fields map[string]string) kafka.Message {
	m := map[string]string{"stockId": symbol}
	for k, v := range fields {
		m[k] = v
	}
	val, _ := json.Marshal(m)
	return kafka.Message{Key: []byte(symbol), Value: val}
}

func runPipeline(t *testing.T, rdb ingest.RedisClient, msgs []kafka.Message) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Ingest.NumWorkers = 1

	reader := &testutils.MockKafkaReader{Messages: msgs}
	pipeline := ingest.NewPipeline(cfg, zap.NewNop(), rdb, reader)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := pipeline.Run(ctx); err != nil {
		t.Fatalf("Pipeline returned error: %v", err)
	}
}

func TestPipeline_NormalizesAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	runPipeline(t, rdb, []kafka.Message{
		rawMessage("005930", map[string]string{"currentPrice": "70000"}),
	})

	entries, err := mr.List("stock:005930")
	if err != nil {
		t.Fatalf("Reading cache key: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 cached entry, got %d", len(entries))
	}

	var tick map[string]string
	if err := json.Unmarshal([]byte(entries[0]), &tick); err != nil {
		t.Fatalf("Bad cached entry: %v", err)
	}
	if tick["currentPrice"] != "70000" || tick["fluctuationPrice"] != "0" ||
		tick["fluctuationSign"] != "0" || tick["transactionVolume"] != "0" ||
		tick["tradingTime"] != "000000" {
		t.Errorf("Defaults not applied: %v", tick)
	}
}

func TestPipeline_DuplicateWritesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sub := rdb.Subscribe(context.Background(), ingest.FeedChannel)
	defer sub.Close()
	feed := sub.Channel()

	payload := map[string]string{"currentPrice": "70000"}
	runPipeline(t, rdb, []kafka.Message{
		rawMessage("005930", payload),
		rawMessage("005930", payload),
	})

	entries, err := mr.List("stock:005930")
	if err != nil {
		t.Fatalf("Reading cache key: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Duplicate delivery produced %d entries, want 1", len(entries))
	}

	// Exactly one broadcast fired
	broadcasts := 0
	timeout := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case <-feed:
			broadcasts++
		case <-timeout:
			break drain
		}
	}
	if broadcasts != 1 {
		t.Errorf("Expected exactly 1 broadcast, got %d", broadcasts)
	}
}

func TestPipeline_WindowKeepsNewestFive(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var msgs []kafka.Message
	for i := 1; i <= 6; i++ {
		msgs = append(msgs, rawMessage("005930", map[string]string{
			"currentPrice": fmt.Sprintf("%d", 70000+i),
		}))
	}
	runPipeline(t, rdb, msgs)

	entries, err := mr.List("stock:005930")
	if err != nil {
		t.Fatalf("Reading cache key: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected window of 5, got %d", len(entries))
	}

	var newest map[string]string
	json.Unmarshal([]byte(entries[0]), &newest)
	if newest["currentPrice"] != "70006" {
		t.Errorf("Window head should be the newest tick, got %v", newest["currentPrice"])
	}
	var oldest map[string]string
	json.Unmarshal([]byte(entries[4]), &oldest)
	if oldest["currentPrice"] != "70002" {
		t.Errorf("Oldest surviving entry should be tick 2, got %v", oldest["currentPrice"])
	}
}

func TestPipeline_DropsMalformedAndContinues(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	noID, _ := json.Marshal(map[string]string{"currentPrice": "100"})
	runPipeline(t, rdb, []kafka.Message{
		{Key: []byte("BAD"), Value: []byte("{broken-json")},
		{Key: []byte("BAD"), Value: noID},
		rawMessage("000660", map[string]string{"currentPrice": "120000"}),
	})

	if mr.Exists("stock:BAD") || mr.Exists("stock:") {
		t.Error("Malformed events must not reach the cache")
	}
	entries, _ := mr.List("stock:000660")
	if len(entries) != 1 {
		t.Errorf("Valid event after malformed ones was not processed, got %d entries", len(entries))
	}
}

func TestPipeline_CacheUnavailableIsNotFatal(t *testing.T) {
	mockRedis := testutils.NewMockRedisClient()
	mockRedis.PipelineSpy.ExecErr = context.DeadlineExceeded

	runPipeline(t, mockRedis, []kafka.Message{
		rawMessage("005930", map[string]string{"currentPrice": "70000"}),
		rawMessage("005930", map[string]string{"currentPrice": "70100"}),
	})

	spy := mockRedis.PipelineSpy
	spy.Mu.Lock()
	defer spy.Mu.Unlock()
	if spy.ExecCount != 2 {
		t.Errorf("Pipeline should keep attempting after cache failures, got %d execs", spy.ExecCount)
	}
}
