package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"github.com/jwkim-dev/tickstream/pkg/config"
)

// Pipeline consumes raw tick events from Kafka and drives each one through
// normalize -> dedup -> recency cache. Accepted ticks are announced to the
// gateway as part of the cache write. Every failure path drops exactly that
// event and moves on; nothing here is fatal.
type Pipeline struct {
	cfg        *config.Config
	logger     Logger
	cache      *RecencyCache
	dedup      *Deduplicator
	reader     KafkaReader
	numWorkers int
}

func NewPipeline(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Pipeline {
	cache := NewRecencyCache(rdb)
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		cache:      cache,
		dedup:      NewDeduplicator(cache),
		reader:     reader,
		numWorkers: cfg.Ingest.NumWorkers,
	}
}

func (p *Pipeline) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	go func() {
		p.logger.Info("Ingestor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			// Deterministic Sharding: Same symbol always goes to same worker,
			// so per-symbol arrival order survives the fan-out to workers.
			workerID := getWorkerID(m.Key, p.numWorkers)

			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			default:
				p.logger.Warn("Dropping slow packet", zap.String("key", string(m.Key)), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping ingestor...")

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

// worker processes one message to completion (or explicit drop) before
// taking the next from its shard.
func (p *Pipeline) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context prevents cancellation mid-cache-write; the per-op
	// timeout inside the cache still bounds every round trip.
	ctx := context.Background()

	for payload := range msgs {
		var raw map[string]string
		if err := json.Unmarshal(payload, &raw); err != nil {
			p.logger.Error("Malformed event payload", zap.Error(err))
			continue
		}

		tick, err := Normalize(raw)
		if err != nil {
			p.logger.Error("Malformed event", zap.Error(err))
			continue
		}

		dup, err := p.dedup.IsDuplicate(ctx, tick)
		if err != nil {
			p.logger.Error("Duplicate check failed, dropping event", zap.Error(err), zap.String("symbol", tick.StockID))
			continue
		}
		if dup {
			p.logger.Debug("Skipping duplicate tick", zap.String("symbol", tick.StockID))
			continue
		}

		if err := p.cache.Put(ctx, tick); err != nil {
			p.logger.Error("Cache write failed, dropping event", zap.Error(err), zap.String("symbol", tick.StockID))
			continue
		}

		p.logger.Debug("Processed", zap.String("symbol", tick.StockID), zap.Int("worker_id", id))
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32()) % numWorkers
}
