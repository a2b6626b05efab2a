package ingest

import (
	"errors"
	"fmt"

	"github.com/jwkim-dev/tickstream/pkg/models"
)

// ErrMalformedEvent marks an event that cannot be repaired by defaulting:
// the stock identifier is missing or empty.
var ErrMalformedEvent = errors.New("malformed tick event")

// Normalize turns a raw decoded feed record into a fully-populated Tick.
// Every optional field missing from the record gets its documented default,
// so no absent value ever reaches the cache. Normalizing an already-complete
// record is a no-op.
func Normalize(raw map[string]string) (models.Tick, error) {
	stockID := raw["stockId"]
	if stockID == "" {
		return models.Tick{}, fmt.Errorf("%w: missing stockId", ErrMalformedEvent)
	}

	return models.Tick{
		StockID:           stockID,
		CurrentPrice:      fieldOr(raw, "currentPrice", "0"),
		FluctuationPrice:  fieldOr(raw, "fluctuationPrice", "0"),
		FluctuationRate:   fieldOr(raw, "fluctuationRate", "0.00"),
		FluctuationSign:   fieldOr(raw, "fluctuationSign", "0"),
		TransactionVolume: fieldOr(raw, "transactionVolume", "0"),
		TradingTime:       fieldOr(raw, "tradingTime", "000000"),
	}, nil
}

func fieldOr(raw map[string]string, key, def string) string {
	if v, ok := raw[key]; ok {
		return v
	}
	return def
}
