package marketdata

import "strings"

// indexProxies maps index-style symbols to liquid ETF proxies the primary
// provider can actually quote and stream. Both the caret-prefixed and bare
// conventions are listed so callers can use either.
var indexProxies = map[string]string{
	"^GSPC": "SPY",
	"^SPX":  "SPY",
	"SPX":   "SPY",
	"GSPC":  "SPY",
	"^NDX":  "QQQ",
	"NDX":   "QQQ",
	"^IXIC": "QQQ",
	"IXIC":  "QQQ",
	"^DJI":  "DIA",
	"DJI":   "DIA",
	"^RUT":  "IWM",
	"RUT":   "IWM",
}

// Normalizer converts display/index tickers into symbols the primary
// provider recognizes, and builds the reverse mapping the streaming layer
// needs to fan one provider trade out to every original ticker behind it.
type Normalizer struct {
	proxies map[string]string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{proxies: indexProxies}
}

// Normalize returns the provider symbol for a ticker. Unmapped tickers pass
// through upcased and trimmed, so Normalize is idempotent.
func (n *Normalizer) Normalize(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if proxy, ok := n.proxies[t]; ok {
		return proxy
	}
	return t
}

// ReverseMap groups original tickers by the provider symbol they normalize
// to. Several originals can share one provider symbol (SPX and ^GSPC both
// land on SPY).
func (n *Normalizer) ReverseMap(tickers []string) map[string][]string {
	rev := make(map[string][]string, len(tickers))
	for _, t := range tickers {
		sym := n.Normalize(t)
		rev[sym] = append(rev[sym], t)
	}
	return rev
}
