// Package observability provides the observability infrastructure for the
// bot: structured logging and Prometheus metrics.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "marketpulse/internal/observability/logging"
//	    "marketpulse/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("bot started")
//
//	    metrics.RecordNewsFetched("cointelegraph", 10)
//	}
package observability
