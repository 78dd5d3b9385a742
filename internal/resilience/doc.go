// Package resilience provides reliability patterns for the external
// dependencies of the bot: circuit breakers for the feed and
// translation APIs and retry with exponential backoff for transient
// failures, including database lock contention.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchFeed(url)
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return performOperation()
//	})
package resilience
