// Package config provides fail-open environment loading for worker
// configuration: a value that does not parse or does not validate is
// replaced by its default and reported as a warning, never as an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult carries a loaded configuration value together with the
// fallback state. When FallbackApplied is true, Value holds the default
// and Warning explains what was wrong with the environment value.
type LoadResult[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

func fallback[T any](envKey, raw string, err error, def T) LoadResult[T] {
	return LoadResult[T]{
		Value:           def,
		Warning:         fmt.Sprintf("invalid %s=%q: %v, using default %v", envKey, raw, err, def),
		FallbackApplied: true,
	}
}

// LoadEnvString reads a string from the environment. An unset or empty
// variable yields the default without a warning; a value rejected by
// validate yields the default with a warning.
func LoadEnvString(envKey, defaultValue string, validate func(string) error) LoadResult[string] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult[string]{Value: defaultValue}
	}
	if validate != nil {
		if err := validate(raw); err != nil {
			return fallback(envKey, raw, err, defaultValue)
		}
	}
	return LoadResult[string]{Value: raw}
}

// LoadEnvDuration reads a Go duration string ("30s", "10m", "1h30m")
// from the environment. validate may be nil.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validate func(time.Duration) error) LoadResult[time.Duration] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult[time.Duration]{Value: defaultValue}
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback(envKey, raw, err, defaultValue)
	}
	if validate != nil {
		if err := validate(d); err != nil {
			return fallback(envKey, raw, err, defaultValue)
		}
	}
	return LoadResult[time.Duration]{Value: d}
}

// LoadEnvInt reads an integer from the environment. validate may be nil.
func LoadEnvInt(envKey string, defaultValue int, validate func(int) error) LoadResult[int] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult[int]{Value: defaultValue}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback(envKey, raw, fmt.Errorf("not an integer"), defaultValue)
	}
	if validate != nil {
		if err := validate(n); err != nil {
			return fallback(envKey, raw, err, defaultValue)
		}
	}
	return LoadResult[int]{Value: n}
}
