package stream

import (
	"math"
	"time"
)

// Policy computes reconnection delays. It is a pure function of the
// attempt number and its own configuration, so it is testable without a
// live transport.
type Policy struct {
	AutoReconnect bool
	BaseDelay     time.Duration
	BackoffFactor float64       // 1 (or less) = fixed delay
	MaxDelay      time.Duration // 0 = uncapped
	MaxAttempts   int           // 0 = unlimited
}

// policyFromConfig derives the reconnect policy from a client config.
func policyFromConfig(cfg Config) Policy {
	return Policy{
		AutoReconnect: cfg.AutoReconnect,
		BaseDelay:     cfg.ReconnectDelay,
		BackoffFactor: cfg.BackoffFactor,
		MaxDelay:      cfg.MaxReconnectDelay,
		MaxAttempts:   cfg.MaxReconnectAttempts,
	}
}

// Next returns the delay before reconnection attempt number attempt
// (1-based) and whether the attempt budget is exhausted. With
// AutoReconnect disabled the budget is exhausted after the first failure.
func (p Policy) Next(attempt int) (delay time.Duration, exhausted bool) {
	if !p.AutoReconnect {
		return 0, true
	}
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, true
	}

	delay = p.BaseDelay
	if p.BackoffFactor > 1 {
		for i := 1; i < attempt; i++ {
			next := float64(delay) * p.BackoffFactor
			if p.MaxDelay > 0 && next >= float64(p.MaxDelay) {
				delay = p.MaxDelay
				break
			}
			// Uncapped backoff must never overflow into a negative
			// duration, which would fire timers immediately.
			if next >= float64(math.MaxInt64) {
				break
			}
			delay = time.Duration(next)
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay, false
}
