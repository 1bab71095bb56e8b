package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"pestai/api/internal/analysis"
	"pestai/api/internal/metrics"
)

// Policy retries a model call on transient failures only.
type Policy struct {
	MaxAttempts     int           // total attempts, first call included
	InitialInterval time.Duration // wait after the first failure
	MaxInterval     time.Duration // cap for a single wait
	AttemptTimeout  time.Duration // deadline of each attempt; 0 = none

	Log *logrus.Logger
}

// Default mirrors the production settings: 3 attempts, 2s doubling up to
// 10s, 120s per attempt.
func Default() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     10 * time.Second,
		AttemptTimeout:  120 * time.Second,
	}
}

// Single disables retrying while keeping the per-attempt deadline.
func Single(timeout time.Duration) Policy {
	return Policy{MaxAttempts: 1, AttemptTimeout: timeout}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0 // bounded by attempts, not wall time

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// Wrap returns a model whose Analyze applies the policy around m.
func (p Policy) Wrap(m analysis.Model) analysis.Model {
	return &retrying{policy: p, next: m}
}

// Do runs fn until it succeeds, fails with a non-transient kind, or the
// attempts are used up. The error of the last attempt is returned as is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !analysis.KindOf(err).Transient() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		kind := analysis.KindOf(err)
		metrics.ModelRetriesTotal.WithLabelValues(kind.String()).Inc()
		if p.Log != nil {
			p.Log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"kind":    kind.String(),
				"wait":    wait,
			}).Warn("transient upstream failure, retrying")
		}
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), notify)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	err := fn(actx)
	if err != nil && analysis.KindOf(err) == analysis.KindOther && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// the attempt ran out of time but the model reported something vaguer
		return &analysis.Error{Kind: analysis.KindTimeout, Op: "model call", Err: err}
	}
	return err
}

type retrying struct {
	policy Policy
	next   analysis.Model
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Analyze(ctx context.Context, in analysis.Input) (string, error) {
	var out string
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		txt, err := r.next.Analyze(ctx, in)
		if err != nil {
			return err
		}
		out = txt
		return nil
	})
	return out, err
}
