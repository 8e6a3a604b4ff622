package llm

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = 30 * time.Second
)

// Policy controls how a provider call is retried.
type Policy struct {
	Name       string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// AttemptTimeout bounds a single attempt. Zero means no per-attempt bound.
	AttemptTimeout time.Duration

	Logger *slog.Logger
	// Sleep and Jitter are replaced in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func(max time.Duration) time.Duration
}

func (p Policy) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// base*2^attempt plus up to base of jitter, clamped to [base, max].
func (p Policy) Backoff(attempt int) time.Duration {
	base, max := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max <= 0 {
		max = DefaultMaxDelay
	}
	if max < base {
		max = base
	}

	delay := max
	if attempt < 32 {
		if d := base << uint(attempt); d > 0 && d < max {
			delay = d
		}
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = func(max time.Duration) time.Duration {
			return time.Duration(rand.Int63n(int64(max) + 1))
		}
	}
	delay += jitter(base)
	if delay > max {
		delay = max
	}
	if delay < base {
		delay = base
	}
	return delay
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// MaxRetries retries are spent. The last error is returned as fn produced it.
func Retry[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := policy.logger()
	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := runAttempt(ctx, policy.AttemptTimeout, fn)
		if err == nil {
			if attempt > 0 {
				log.Info("provider call succeeded after retry", "provider", policy.Name, "attempt", attempt+1)
			}
			return result, nil
		}
		lastErr = err

		remaining := attempts - attempt - 1
		retryable := ctx.Err() == nil && IsRetryable(err)
		log.Warn("provider call failed",
			"provider", policy.Name,
			"attempt", attempt+1,
			"remaining", remaining,
			"retryable", retryable,
			"err", err,
		)
		if !retryable || remaining == 0 {
			break
		}
		if err := policy.sleep(ctx, policy.Backoff(attempt)); err != nil {
			break
		}
	}

	log.Error("provider call gave up", "provider", policy.Name, "err", lastErr)
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

var retryableStatus = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

var transientPhrases = []string{
	"rate limit",
	"timeout",
	"timed out",
	"try again",
	"temporarily unavailable",
	"connection reset",
}

var statusInText = regexp.MustCompile(`status(?: code)?:? (\d{3})`)

// IsRetryable reports whether err is worth another attempt: a transient HTTP
// status, a network-level transient failure, or a message naming one.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		return retryableStatus[status.HTTPStatus()]
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsNotFound || dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if m := statusInText.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil && retryableStatus[code] {
			return true
		}
	}
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
