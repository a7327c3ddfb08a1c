package portfolio

// Holding is the read-only shape the analytics layer consumes. Ownership
// stays with the portfolio CRUD layer; nothing here mutates it.
type Holding struct {
	Ticker        string  `json:"ticker"`
	WeightPercent float64 `json:"weight_percent"`
	LastPrice     float64 `json:"last_price"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
}

// TotalWeight sums the weight of a set of holdings.
func TotalWeight(holdings []Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		total += h.WeightPercent
	}
	return total
}

// Tickers lists holding tickers in order.
func Tickers(holdings []Holding) []string {
	out := make([]string, len(holdings))
	for i, h := range holdings {
		out[i] = h.Ticker
	}
	return out
}
