package providers

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter is a token bucket sized from a provider's requests-per-second
// limit. Burst capacity equals one second of requests (at least one).
type RateLimiter struct {
	mu sync.Mutex

	rps   float64
	burst float64

	tokens     float64
	lastUpdate time.Time

	totalConsumed int64
	totalWaited   time.Duration
	last429       time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	TokensAvailable   int           `json:"tokens_available"`
	Burst             int           `json:"burst"`
	TimeUntilToken    time.Duration `json:"time_until_token"`
	TotalConsumed     int64         `json:"total_consumed"`
	TotalWaited       time.Duration `json:"total_waited"`
	Last429           time.Time     `json:"last_429,omitempty"`
}

// NewRateLimiter creates a limiter allowing rps requests per second.
// Non-positive rps disables limiting.
func NewRateLimiter(rps float64) *RateLimiter {
	burst := math.Max(1, math.Ceil(rps))
	return &RateLimiter{
		rps:        rps,
		burst:      burst,
		tokens:     burst,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rps <= 0 {
		return ctx.Err()
	}
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		}
		wait := r.untilTokenLocked()
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// Record429 drains the bucket after the upstream reported rate limiting.
func (r *RateLimiter) Record429() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last429 = time.Now()
	r.tokens = 0
	r.lastUpdate = r.last429
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	var until time.Duration
	if r.tokens < 1.0 && r.rps > 0 {
		until = r.untilTokenLocked()
	}
	return RateLimiterStatus{
		RequestsPerSecond: r.rps,
		TokensAvailable:   int(r.tokens),
		Burst:             int(r.burst),
		TimeUntilToken:    until,
		TotalConsumed:     r.totalConsumed,
		TotalWaited:       r.totalWaited,
		Last429:           r.last429,
	}
}

func (r *RateLimiter) untilTokenLocked() time.Duration {
	need := 1.0 - r.tokens
	return time.Duration(need / r.rps * float64(time.Second))
}

// refill must be called with mu held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	r.tokens = math.Min(r.burst, r.tokens+elapsed*r.rps)
}
