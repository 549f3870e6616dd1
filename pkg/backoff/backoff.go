// Package backoff provides capped exponential backoff calculation.
package backoff

import (
	"math"
	"time"
)

// Defaults match the DLP job polling schedule: 2s doubling up to one minute.
const (
	DefaultInitial = 2 * time.Second
	DefaultMax     = 60 * time.Second
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 2s
	Max     time.Duration // default: 60s
}

// Exponential calculates exponential backoff for a given attempt.
// Attempt 1 returns initial, attempt 2 returns initial*2, etc.
// With the defaults this is min(60s, 2^attempt seconds).
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := DefaultInitial
	maxBackoff := DefaultMax
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxBackoff = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// Schedule returns the delays of the first n sleeps of a poller whose attempt
// counter starts at first and is incremented before every sleep.
func Schedule(first, n int, cfg *Config) []time.Duration {
	delays := make([]time.Duration, 0, n)
	attempt := first
	for range n {
		attempt++
		delays = append(delays, Exponential(attempt, cfg))
	}
	return delays
}
