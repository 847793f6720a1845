package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resilient wraps a transport with a courtesy delay, a per-attempt timeout, a
// random User-Agent per attempt and exponential backoff between failures.
type Resilient struct {
	transport   Fetcher
	minDelay    time.Duration
	maxDelay    time.Duration
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	userAgents  []string

	sleep   SleepFunc
	metrics *observability.Metrics
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// ResilientOption configures a Resilient fetcher.
type ResilientOption func(*Resilient)

// WithSleep replaces the sleeper used for delays and backoff.
func WithSleep(fn SleepFunc) ResilientOption {
	return func(r *Resilient) { r.sleep = fn }
}

// WithMetrics records attempt outcomes.
func WithMetrics(m *observability.Metrics) ResilientOption {
	return func(r *Resilient) { r.metrics = m }
}

// WithSeed makes delay and User-Agent selection deterministic.
func WithSeed(seed int64) ResilientOption {
	return func(r *Resilient) { r.rng = rand.New(rand.NewSource(seed)) }
}

// NewResilient creates a Resilient fetcher over the given transport.
func NewResilient(transport Fetcher, cfg *config.FetcherConfig, logger *slog.Logger, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		transport:   transport,
		minDelay:    cfg.MinDelay,
		maxDelay:    cfg.MaxDelay,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		userAgents:  cfg.UserAgents,
		sleep:       Sleep,
		logger:      logger.With("component", "resilient_fetcher", "transport", transport.Type()),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get fetches rawURL. The error, when non-nil, is always a *types.FetchError; after
// the last failed attempt it wraps types.ErrMaxRetries.
func (r *Resilient) Get(ctx context.Context, rawURL string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.sleep(ctx, r.jitter()); err != nil {
			return nil, &types.FetchError{URL: rawURL, Attempts: attempt - 1, Err: err}
		}

		resp, err := r.attempt(ctx, req, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fe *types.FetchError
		if errors.As(err, &fe) {
			lastStatus = fe.StatusCode
			if !fe.Retryable {
				return nil, &types.FetchError{URL: rawURL, StatusCode: fe.StatusCode, Attempts: attempt, Err: fe.Err}
			}
		}

		backoff := r.backoff(attempt)
		r.logger.Warn("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"backoff", backoff,
			"error", err,
		)

		if err := r.sleep(ctx, backoff); err != nil {
			return nil, &types.FetchError{URL: rawURL, StatusCode: lastStatus, Attempts: attempt, Err: err}
		}
	}

	r.metrics.FetchExhausted(r.transport.Type())
	return nil, &types.FetchError{
		URL:        rawURL,
		StatusCode: lastStatus,
		Attempts:   r.maxAttempts,
		Err:        fmt.Errorf("%w: %w", types.ErrMaxRetries, lastErr),
	}
}

// attempt runs one transport call under the per-attempt timeout.
func (r *Resilient) attempt(ctx context.Context, req *types.Request, attempt int) (*types.Response, error) {
	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req.Attempt = attempt
	req.Timeout = r.timeout
	if ua := r.userAgent(); ua != "" {
		req.Headers.Set("User-Agent", ua)
	}

	start := time.Now()
	resp, err := r.transport.Fetch(attemptCtx, req)
	if err == nil && !resp.IsSuccess() {
		err = &types.FetchError{
			URL:        req.URLString(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Retryable:  true,
		}
	}
	r.metrics.FetchAttempt(r.transport.Type(), err, time.Since(start))
	if err != nil {
		var fe *types.FetchError
		if !errors.As(err, &fe) {
			err = &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
		}
		return nil, err
	}
	return resp, nil
}

// backoff returns base * 2^(attempt-1): 1s, 2s, 4s for the default base.
func (r *Resilient) backoff(attempt int) time.Duration {
	return r.backoffBase << (attempt - 1)
}

// jitter returns a uniformly random delay in [minDelay, maxDelay].
func (r *Resilient) jitter() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay + time.Duration(r.rng.Int63n(int64(r.maxDelay-r.minDelay)+1))
}

func (r *Resilient) userAgent() string {
	if len(r.userAgents) == 0 {
		return "StockGoat/" + config.Version
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userAgents[r.rng.Intn(len(r.userAgents))]
}

// Type returns the underlying transport type.
func (r *Resilient) Type() string {
	return r.transport.Type()
}

// Close closes the underlying transport.
func (r *Resilient) Close() error {
	return r.transport.Close()
}
