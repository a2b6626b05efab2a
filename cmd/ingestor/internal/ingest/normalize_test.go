package ingest_test

import (
	"errors"
	"testing"

	"github.com/jwkim-dev/tickstream/cmd/ingestor/internal/ingest"
	"github.com/jwkim-dev/tickstream/pkg/models"
)

func TestNormalize_FillsDefaults(t *testing.T) {
	raw := map[string]string{
		"stockId":      "005930",
		"currentPrice": "70000",
	}

	tick, err := ingest.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	want := models.Tick{
		StockID:           "005930",
		CurrentPrice:      "70000",
		FluctuationPrice:  "0",
		FluctuationRate:   "0.00",
		FluctuationSign:   "0",
		TransactionVolume: "0",
		TradingTime:       "000000",
	}
	if tick != want {
		t.Errorf("Normalized tick mismatch:\n got %+v\nwant %+v", tick, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := map[string]string{"stockId": "000660"}

	first, err := ingest.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	// Re-normalize the already-complete record
	complete := map[string]string{
		"stockId":           first.StockID,
		"currentPrice":      first.CurrentPrice,
		"fluctuationPrice":  first.FluctuationPrice,
		"fluctuationRate":   first.FluctuationRate,
		"fluctuationSign":   first.FluctuationSign,
		"transactionVolume": first.TransactionVolume,
		"tradingTime":       first.TradingTime,
	}
	second, err := ingest.Normalize(complete)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if !first.Equal(second) {
		t.Errorf("Normalize not idempotent:\n got %+v\nwant %+v", second, first)
	}
}

func TestNormalize_MissingStockID(t *testing.T) {
	cases := []map[string]string{
		{},
		{"currentPrice": "100"},
		{"stockId": ""},
	}

	for _, raw := range cases {
		if _, err := ingest.Normalize(raw); !errors.Is(err, ingest.ErrMalformedEvent) {
			t.Errorf("Expected ErrMalformedEvent for %v, got %v", raw, err)
		}
	}
}

func TestNormalize_PreservesProvidedFields(t *testing.T) {
	raw := map[string]string{
		"stockId":           "035420",
		"currentPrice":      "213500",
		"fluctuationPrice":  "-1500",
		"fluctuationRate":   "-0.70",
		"fluctuationSign":   "5",
		"transactionVolume": "412398",
		"tradingTime":       "093015",
	}

	tick, err := ingest.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if tick.FluctuationSign != "5" || tick.SignLabel() != "down" {
		t.Errorf("Sign mapping wrong: sign=%s label=%s", tick.FluctuationSign, tick.SignLabel())
	}
	if tick.TradingTime != "093015" {
		t.Errorf("TradingTime overwritten: %s", tick.TradingTime)
	}
}
