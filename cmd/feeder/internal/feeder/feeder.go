package feeder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TickFeeder simulates the upstream vendor feed: raw per-symbol tick
// records published to Kafka, keyed by symbol so partition order matches
// per-symbol order. Some records arrive sparse (optional fields missing)
// and some are exact resends of the previous record, which is what the
// ingestor's normalizer and deduplicator exist to absorb.
type TickFeeder struct {
	logger     *zap.Logger
	writer     KafkaWriter
	symbols    []string
	basePrices map[string]int
	rand       Rand
	clock      Clock
	interval   time.Duration

	lastSent map[string][]byte
}

func NewTickFeeder(
	logger *zap.Logger,
	writer KafkaWriter,
	symbols []string,
	basePrices map[string]int,
	rnd Rand,
	clock Clock,
	interval time.Duration,
) *TickFeeder {
	return &TickFeeder{
		logger:     logger,
		writer:     writer,
		symbols:    symbols,
		basePrices: basePrices,
		rand:       rnd,
		clock:      clock,
		interval:   interval,
		lastSent:   make(map[string][]byte),
	}
}

func (f *TickFeeder) Run(ctx context.Context) {
	f.logger.Info("Feeder Started", zap.Strings("symbols", f.symbols))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(f.symbols) == 0 {
				f.clock.Sleep(1 * time.Second)
				continue
			}

			symbol := f.symbols[f.rand.Intn(len(f.symbols))]
			payload := f.nextPayload(symbol)

			err := f.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(symbol),
				Value: payload,
			})

			if err != nil {
				f.logger.Error("Kafka Write Error", zap.Error(err))
			}

			f.clock.Sleep(f.interval)
		}
	}
}

// nextPayload builds the raw record for one emission. Roughly one in ten
// emissions repeats the symbol's previous payload byte for byte; roughly
// one in seven carries only the required fields.
func (f *TickFeeder) nextPayload(symbol string) []byte {
	if last, ok := f.lastSent[symbol]; ok && f.rand.Float64() < 0.1 {
		return last
	}

	base := f.basePrices[symbol]
	if base <= 0 {
		base = 10000
	}
	delta := f.rand.Intn(2*base/100+1) - base/100 // within +-1% of base
	price := base + delta

	record := map[string]string{
		"stockId":      symbol,
		"currentPrice": fmt.Sprintf("%d", price),
	}

	if f.rand.Float64() >= 0.15 {
		sign := "3"
		if delta > 0 {
			sign = "2"
		} else if delta < 0 {
			sign = "5"
		}
		record["fluctuationPrice"] = fmt.Sprintf("%d", delta)
		record["fluctuationRate"] = fmt.Sprintf("%.2f", float64(delta)/float64(base)*100)
		record["fluctuationSign"] = sign
		record["transactionVolume"] = fmt.Sprintf("%d", f.rand.Intn(100000))
		record["tradingTime"] = f.clock.Now().Format("150405")
	}

	payload, _ := json.Marshal(record)
	f.lastSent[symbol] = payload
	return payload
}
