package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Primary struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	WSURL            string `yaml:"ws_url"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	QuoteTTLSeconds  int    `yaml:"quote_ttl_seconds"`
	CandleTTLSeconds int    `yaml:"candle_ttl_seconds"`
	SearchTTLSeconds int    `yaml:"search_ttl_seconds"`
	StaggerMs        int    `yaml:"stagger_ms"`
}

type Secondary struct {
	ProxyURL         string `yaml:"proxy_url"`
	TimeoutMs        int    `yaml:"timeout_ms"`
	CandleTTLSeconds int    `yaml:"candle_ttl_seconds"`
	StaggerMs        int    `yaml:"stagger_ms"`
}

type Stream struct {
	ReconnectDelayMs int `yaml:"reconnect_delay_ms"`
}

type Analytics struct {
	RiskFreeRate    float64 `yaml:"risk_free_rate"`
	TradingDaysYear int     `yaml:"trading_days_year"`
}

type Root struct {
	Primary   Primary   `yaml:"primary"`
	Secondary Secondary `yaml:"secondary"`
	Stream    Stream    `yaml:"stream"`
	Analytics Analytics `yaml:"analytics"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults fills zero values so a partial config file still works.
func (c *Root) ApplyDefaults() {
	if c.Primary.BaseURL == "" {
		c.Primary.BaseURL = "https://finnhub.io/api/v1"
	}
	if c.Primary.WSURL == "" {
		c.Primary.WSURL = "wss://ws.finnhub.io"
	}
	if c.Primary.TimeoutMs == 0 {
		c.Primary.TimeoutMs = 10000
	}
	if c.Primary.QuoteTTLSeconds == 0 {
		c.Primary.QuoteTTLSeconds = 30
	}
	if c.Primary.CandleTTLSeconds == 0 {
		c.Primary.CandleTTLSeconds = 300
	}
	if c.Primary.SearchTTLSeconds == 0 {
		c.Primary.SearchTTLSeconds = 60
	}
	if c.Primary.StaggerMs == 0 {
		c.Primary.StaggerMs = 350
	}
	if c.Secondary.ProxyURL == "" {
		c.Secondary.ProxyURL = "http://localhost:8090/api/yahoo-chart"
	}
	if c.Secondary.TimeoutMs == 0 {
		c.Secondary.TimeoutMs = 10000
	}
	if c.Secondary.CandleTTLSeconds == 0 {
		c.Secondary.CandleTTLSeconds = 300
	}
	if c.Secondary.StaggerMs == 0 {
		c.Secondary.StaggerMs = 120
	}
	if c.Stream.ReconnectDelayMs == 0 {
		c.Stream.ReconnectDelayMs = 3000
	}
	if c.Analytics.RiskFreeRate == 0 {
		c.Analytics.RiskFreeRate = 0.04
	}
	if c.Analytics.TradingDaysYear == 0 {
		c.Analytics.TradingDaysYear = 252
	}
}
