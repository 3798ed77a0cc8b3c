package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/observability"
	"github.com/yoockh/yoocv/internal/utils"
)

type RetryPolicy struct {
	MaxElapsed time.Duration
	Initial    time.Duration
	Max        time.Duration
}

// Retrying wraps a provider with bounded exponential backoff and maps
// failures onto the application error contract.
type Retrying struct {
	next   Provider
	policy RetryPolicy
	log    *logrus.Logger
}

func WithRetry(next Provider, policy RetryPolicy, log *logrus.Logger) *Retrying {
	return &Retrying{next: next, policy: policy, log: log}
}

func (r *Retrying) Name() string { return r.next.Name() }

func (r *Retrying) Close() error { return r.next.Close() }

func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	const op = "llm.Complete"

	var out string
	attempt := 0
	call := func() error {
		attempt++
		start := time.Now()
		text, err := r.next.Complete(ctx, req)
		observability.ObserveCompletion(r.next.Name(), time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			if r.log != nil {
				r.log.WithError(err).WithFields(logrus.Fields{
					"provider": r.next.Name(),
					"attempt":  attempt,
				}).Warn("completion attempt failed")
			}
			return err
		}
		out = text
		return nil
	}

	var err error
	if r.policy.MaxElapsed <= 0 {
		err = call()
	} else {
		expo := backoff.NewExponentialBackOff()
		expo.MaxElapsedTime = r.policy.MaxElapsed
		if r.policy.Initial > 0 {
			expo.InitialInterval = r.policy.Initial
		}
		if r.policy.Max > 0 {
			expo.MaxInterval = r.policy.Max
		}
		err = backoff.Retry(call, backoff.WithContext(expo, ctx))
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", utils.E(utils.CodeTimeout, op, "completion service timed out", err)
		}
		return "", utils.E(utils.CodeUnavailable, op, "completion service unavailable", err)
	}
	return out, nil
}
