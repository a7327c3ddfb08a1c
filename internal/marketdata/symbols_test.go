package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"^GSPC", "SPY"},
		{"SPX", "SPY"},
		{"^NDX", "QQQ"},
		{"ndx", "QQQ"},
		{"^DJI", "DIA"},
		{"^RUT", "IWM"},
		{"AAPL", "AAPL"},
		{" msft ", "MSFT"},
		{"SPY", "SPY"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer()
	inputs := []string{"^GSPC", "SPX", "NDX", "^DJI", "AAPL", "SPY", "BRK"}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "normalize(normalize(%q))", in)
	}
}

func TestReverseMapSharedProxy(t *testing.T) {
	n := NewNormalizer()
	rev := n.ReverseMap([]string{"SPX", "^GSPC", "QQQ", "AAPL"})

	assert.ElementsMatch(t, []string{"SPX", "^GSPC"}, rev["SPY"])
	assert.Equal(t, []string{"QQQ"}, rev["QQQ"])
	assert.Equal(t, []string{"AAPL"}, rev["AAPL"])
}
