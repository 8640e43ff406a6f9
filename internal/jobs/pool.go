// Package jobs runs indexed work units against a rate-limited provider with
// a bounded number of workers, retrying failed units and keeping results in
// submission order.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/medsum/internal/providers"
)

// UnitState is the lifecycle of a single work unit.
type UnitState string

const (
	StatePending   UnitState = "pending"
	StateSucceeded UnitState = "succeeded"
	StateFailed    UnitState = "failed"
	StateSkipped   UnitState = "skipped"
)

// Result is the outcome of one work unit. Index is 1-based.
type Result[T any] struct {
	Index    int
	State    UnitState
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// Func performs one attempt of the work unit at a 1-based index.
type Func[T any] func(ctx context.Context, index int) (T, error)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Name   string
	Logger *slog.Logger

	// Workers bounds concurrent units. Defaults to 1 (sequential).
	Workers int

	// Limiter gates every dispatch. Nil means unlimited.
	Limiter *providers.RateLimiter

	// Retries is the number of extra attempts after a failure.
	Retries    int
	RetryDelay time.Duration

	// CallTimeout bounds each attempt. Zero means no deadline.
	CallTimeout time.Duration

	// StopOnError stops dispatching new units once any unit fails. Units
	// already in flight run to completion.
	StopOnError bool
}

// Pool dispatches work units in index order. A single dispatcher owns the
// rate limiter and hands units to workers.
type Pool struct {
	cfg    PoolConfig
	logger *slog.Logger

	inFlight   atomic.Int32
	dispatched atomic.Int64
	failed     atomic.Int64
}

// NewPool creates a pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Limiter == nil {
		cfg.Limiter = providers.NewRateLimiter(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:    cfg,
		logger: logger.With("pool", cfg.Name, "workers", cfg.Workers, "retries", cfg.Retries),
	}
}

// PoolStatus reports a pool's counters.
type PoolStatus struct {
	Name        string                      `json:"name"`
	Workers     int                         `json:"workers"`
	InFlight    int                         `json:"in_flight"`
	Dispatched  int64                       `json:"dispatched"`
	Failed      int64                       `json:"failed"`
	RateLimiter providers.RateLimiterStatus `json:"rate_limiter"`
}

// Status returns current pool status.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Name:        p.cfg.Name,
		Workers:     p.cfg.Workers,
		InFlight:    int(p.inFlight.Load()),
		Dispatched:  p.dispatched.Load(),
		Failed:      p.failed.Load(),
		RateLimiter: p.cfg.Limiter.Status(),
	}
}

// Run executes units 1..n and returns their results in index order. Units
// that were never dispatched end in StateSkipped.
func Run[T any](ctx context.Context, p *Pool, n int, fn Func[T]) []Result[T] {
	results := make([]Result[T], n)
	for i := range results {
		results[i] = Result[T]{Index: i + 1, State: StatePending}
	}
	if n == 0 {
		return results
	}

	// A slot is released only after the unit's result is stored, so the
	// dispatcher sees a failure before it can hand out the next unit.
	slots := make(chan struct{}, p.cfg.Workers)
	work := make(chan int, p.cfg.Workers)
	var halted atomic.Bool
	var wg sync.WaitGroup

	for range p.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				res := process(ctx, p, i+1, fn)
				results[i] = res
				if res.State == StateFailed {
					p.failed.Add(1)
					if p.cfg.StopOnError {
						halted.Store(true)
					}
				}
				p.inFlight.Add(-1)
				<-slots
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil || halted.Load() {
			break
		}
		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			break
		}
		p.inFlight.Add(1)
		p.dispatched.Add(1)
		work <- i
	}
	close(work)
	wg.Wait()

	skipped := 0
	for i := range results {
		if results[i].State == StatePending {
			results[i].State = StateSkipped
			skipped++
		}
	}
	if skipped > 0 {
		p.logger.Debug("units skipped", "count", skipped, "halted", halted.Load(), "ctx_err", ctx.Err())
	}
	return results
}

func process[T any](ctx context.Context, p *Pool, index int, fn Func[T]) Result[T] {
	res := Result[T]{Index: index}
	start := time.Now()

	err := retry.Do(
		func() error {
			res.Attempts++
			callCtx, cancel := ctx, context.CancelFunc(func() {})
			if p.cfg.CallTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
			}
			defer cancel()

			v, err := fn(callCtx, index)
			if err != nil {
				if providers.IsRateLimited(err) {
					p.cfg.Limiter.Record429()
				}
				return err
			}
			res.Value = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.cfg.Retries+1)),
		retry.Delay(p.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retry.IsRecoverable(err)
		}),
		// OnRetry also fires after the final attempt.
		retry.OnRetry(func(n uint, err error) {
			if int(n)+1 < p.cfg.Retries+1 {
				p.logger.Warn("unit failed, retrying", "index", index, "attempt", n+1, "error", err)
			}
		}),
	)

	res.Duration = time.Since(start)
	if err != nil {
		res.State = StateFailed
		res.Err = err
		p.logger.Debug("unit failed", "index", index, "attempts", res.Attempts, "error", err)
		return res
	}
	res.State = StateSucceeded
	return res
}

// Permanent marks err so the pool does not retry it.
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}

// Prefix returns the values of the leading run of succeeded units and the
// first unit that did not succeed, if any.
func Prefix[T any](results []Result[T]) ([]T, *Result[T]) {
	var out []T
	for i := range results {
		if results[i].State != StateSucceeded {
			return out, &results[i]
		}
		out = append(out, results[i].Value)
	}
	return out, nil
}

// Counts tallies results by state.
func Counts[T any](results []Result[T]) map[UnitState]int {
	counts := make(map[UnitState]int, 4)
	for _, r := range results {
		counts[r.State]++
	}
	return counts
}
