package market

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"marketpulse/pkg/config"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// Static fallbacks used when Alpha Vantage is unavailable or unconfigured.
var (
	defaultEURUSD = ForexQuote{Rate: 1.0785, Change24h: 0.15}
	defaultGold   = Quote{Price: 2650.50, Change24h: 0.85}
)

// ForexClient resolves EUR/USD through Alpha Vantage. Gold has no live
// source wired yet and always returns the static quote.
type ForexClient struct {
	client  *resty.Client
	apiKey  string
	baseURL string
}

// NewForexClient creates a forex provider. The Alpha Vantage key comes from
// ALPHA_VANTAGE_KEY; without it the static EUR/USD default is used.
func NewForexClient() *ForexClient {
	return &ForexClient{
		client: resty.New().
			SetTimeout(6*time.Second).
			SetHeader("User-Agent", "MarketPulseBot"),
		apiKey:  config.GetEnvString("ALPHA_VANTAGE_KEY", ""),
		baseURL: alphaVantageBaseURL,
	}
}

// NewForexClientWithURL creates a provider against a custom endpoint, used
// in tests.
func NewForexClientWithURL(baseURL, apiKey string) *ForexClient {
	f := NewForexClient()
	f.client.SetTimeout(2 * time.Second)
	f.baseURL = baseURL
	f.apiKey = apiKey
	return f
}

// alphaVantageResponse is the CURRENCY_EXCHANGE_RATE envelope.
type alphaVantageResponse struct {
	Rate struct {
		ExchangeRate  string `json:"5. Exchange Rate"`
		ChangePercent string `json:"9. Change Percent"`
	} `json:"Realtime Currency Exchange Rate"`
}

// EURUSD returns the current EUR/USD rate.
func (f *ForexClient) EURUSD(ctx context.Context) ForexQuote {
	if f.apiKey == "" {
		return defaultEURUSD
	}

	var body alphaVantageResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":      "CURRENCY_EXCHANGE_RATE",
			"from_currency": "EUR",
			"to_currency":   "USD",
			"apikey":        f.apiKey,
		}).
		SetResult(&body).
		Get(f.baseURL + "/query")
	if err != nil || resp.StatusCode() != http.StatusOK {
		slog.Debug("alpha vantage request failed", slog.Any("error", err))
		return defaultEURUSD
	}

	rate, err := strconv.ParseFloat(body.Rate.ExchangeRate, 64)
	if err != nil || rate == 0 {
		return defaultEURUSD
	}

	change := 0.0
	if pct := strings.TrimSuffix(body.Rate.ChangePercent, "%"); pct != "" {
		change, _ = strconv.ParseFloat(pct, 64)
	}

	return ForexQuote{Rate: rate, Change24h: change}
}

// Gold returns the gold spot quote.
func (f *ForexClient) Gold(_ context.Context) Quote {
	return defaultGold
}
