// Package runner executes one named check under a deadline with a bounded
// retry loop, and records the final verdict into the shared report.
//
// A timed-out check is abandoned, not forcibly terminated: the check
// contract has no cancellation side channel, so a non-cancellable
// collaborator can leak its goroutine until it settles. This is an
// accepted limitation, not a resource-reclamation guarantee.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/report"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/runner"

// ErrTimeout marks an attempt that exceeded the configured deadline.
var ErrTimeout = errors.New("timeout")

// Config configures timeout and retry behavior for check execution.
type Config struct {
	// Timeout is the per-attempt deadline. Default: 30 seconds.
	Timeout time.Duration

	// MaxRetries is the total number of attempts. Default: 3.
	MaxRetries int

	// RetryDelay is the fixed delay between attempts. Default: 1 second.
	RetryDelay time.Duration
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
}

// Runner wraps check invocations with timeout and retry semantics.
type Runner struct {
	config *Config
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	attemptCounter metric.Int64Counter
	timeoutCounter metric.Int64Counter
}

// New creates a runner.
func New(cfg *Config, logger *zap.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	r := &Runner{
		config: cfg,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	r.initMetrics()
	return r, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (r *Runner) initMetrics() {
	var err error

	r.attemptCounter, err = r.meter.Int64Counter(
		"remedyd.runner.attempts_total",
		metric.WithDescription("Total number of check attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		r.logger.Warn("failed to create attempt counter", zap.Error(err))
	}

	r.timeoutCounter, err = r.meter.Int64Counter(
		"remedyd.runner.timeouts_total",
		metric.WithDescription("Total number of check timeouts"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		r.logger.Warn("failed to create timeout counter", zap.Error(err))
	}
}

// Once returns a runner sharing this runner's configuration except that
// every check gets a single attempt.
func (r *Runner) Once() *Runner {
	if r.config.MaxRetries == 1 {
		return r
	}
	cfg := *r.config
	cfg.MaxRetries = 1
	clone := *r
	clone.config = &cfg
	return &clone
}

// Run executes the named check under the configured deadline, retrying
// timeouts and panics up to MaxRetries total attempts with a fixed delay
// between attempts. A verdict the check itself supplies, passing or
// failing, is final and is not retried. Exactly one verdict is written
// into the report per invocation, overwriting any prior entry.
func (r *Runner) Run(ctx context.Context, name string, fn check.Func, rep *report.Report) check.Verdict {
	ctx, span := r.tracer.Start(ctx, "runner.run",
		trace.WithAttributes(attribute.String("check", name)))
	defer span.End()

	var lastErr error

	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		if r.attemptCounter != nil {
			r.attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("check", name)))
		}

		verdict, err := r.attempt(ctx, name, fn)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("check recovered after retries",
					zap.String("check", name),
					zap.Int("attempts", attempt),
				)
			}
			span.SetAttributes(attribute.String("outcome", string(verdict.Outcome)))
			rep.Add(name, verdict)
			return verdict
		}

		lastErr = err
		if errors.Is(err, ErrTimeout) && r.timeoutCounter != nil {
			r.timeoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("check", name)))
		}

		if attempt == r.config.MaxRetries {
			break
		}

		r.logger.Warn("check attempt failed, retrying",
			zap.String("check", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.config.MaxRetries),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(r.config.RetryDelay):
			continue
		}
		break
	}

	// Consumers key on the bare token; the deadline detail stays in the logs.
	detail := lastErr.Error()
	if errors.Is(lastErr, ErrTimeout) {
		detail = ErrTimeout.Error()
	}
	verdict := check.Fail(
		fmt.Sprintf("check %s failed after %d attempts", name, r.config.MaxRetries),
		detail,
		"TaskExecution",
	)
	span.SetAttributes(attribute.String("outcome", string(verdict.Outcome)))

	r.logger.Error("check failed after all retries",
		zap.String("check", name),
		zap.Int("attempts", r.config.MaxRetries),
		zap.Error(lastErr),
	)

	rep.Add(name, verdict)
	return verdict
}

// attempt races one check invocation against the deadline. The returned
// error is non-nil only for transient outcomes (timeout, panic); a
// verdict the check supplies is returned as-is.
func (r *Runner) attempt(ctx context.Context, name string, fn check.Func) (check.Verdict, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	type result struct {
		verdict check.Verdict
		err     error
	}

	// Buffered so an abandoned attempt can still settle and be collected.
	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("check panicked: %v", rec)}
			}
		}()
		done <- result{verdict: fn(attemptCtx)}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return check.Verdict{}, res.err
		}
		return res.verdict, nil
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return check.Verdict{}, fmt.Errorf("%w: check %s exceeded %s", ErrTimeout, name, r.config.Timeout)
		}
		return check.Verdict{}, attemptCtx.Err()
	}
}
