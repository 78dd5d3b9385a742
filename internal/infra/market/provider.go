// Package market fetches crypto and traditional market quotes for the
// twice-daily reports. Each provider tries live APIs in priority order and
// falls back to static defaults so a report can always be rendered.
package market

import "context"

// Quote is a point-in-time price snapshot for one asset.
type Quote struct {
	Price     float64
	Change24h float64
	Volume24h float64
	MarketCap float64
}

// ForexQuote is an exchange rate snapshot.
type ForexQuote struct {
	Rate      float64
	Change24h float64
}

// CryptoProvider returns a quote for a CoinGecko-style asset id
// (bitcoin, ethereum, solana).
type CryptoProvider interface {
	Crypto(ctx context.Context, asset string) Quote
}

// ForexProvider returns the EUR/USD rate and a gold spot quote.
type ForexProvider interface {
	EURUSD(ctx context.Context) ForexQuote
	Gold(ctx context.Context) Quote
}
