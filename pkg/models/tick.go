package models

// Tick represents a single normalized market event for one stock symbol.
// All fields are carried as strings exactly as the upstream feed delivers
// them; numeric interpretation happens client-side.
type Tick struct {
	StockID           string `json:"stockId"`
	CurrentPrice      string `json:"currentPrice"`
	FluctuationPrice  string `json:"fluctuationPrice"`
	FluctuationRate   string `json:"fluctuationRate"`   // percent, 2-decimal convention
	FluctuationSign   string `json:"fluctuationSign"`   // "1".."5", "0" = unknown
	TransactionVolume string `json:"transactionVolume"`
	TradingTime       string `json:"tradingTime"` // HHMMSS
}

// Equal reports whether two ticks are field-for-field identical.
// Exact string comparison, no numeric tolerance.
func (t Tick) Equal(o Tick) bool {
	return t == o
}

// SignLabel maps the fluctuation sign code to its display meaning.
func (t Tick) SignLabel() string {
	switch t.FluctuationSign {
	case "1":
		return "limit-up"
	case "2":
		return "up"
	case "3":
		return "flat"
	case "4":
		return "limit-down"
	case "5":
		return "down"
	default:
		return "unknown"
	}
}
