package utils

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Retrier re-runs an action while its error is retryable and the strategy
// allows another attempt.
type Retrier[T any] struct {
	strategy  HandlingStrategy
	retryable func(error) bool
	onRetry   func(attempt int, err error, wait time.Duration)
}

// RetrierOption customizes a Retrier.
type RetrierOption[T any] func(*Retrier[T])

// WithRetryable restricts retries to errors accepted by fn.  Without it
// every error is retried.
func WithRetryable[T any](fn func(error) bool) RetrierOption[T] {
	return func(r *Retrier[T]) { r.retryable = fn }
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry[T any](fn func(attempt int, err error, wait time.Duration)) RetrierOption[T] {
	return func(r *Retrier[T]) { r.onRetry = fn }
}

func NewRetrier[T any](strategy HandlingStrategy, opts ...RetrierOption[T]) *Retrier[T] {
	r := &Retrier[T]{strategy: strategy, retryable: func(error) bool { return true }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DoWithReturn runs action until it succeeds, returns a non-retryable
// error, the strategy gives up or ctx is done.  The last error is
// returned in the failure cases; when ctx ends the wait it is joined
// with ctx.Err().
func (r *Retrier[T]) DoWithReturn(ctx context.Context, action func(ctx context.Context) (T, error)) (T, error) {
	var defaultT T
	attempt := 0
	for {
		attempt++
		result, err := action(ctx)
		if err == nil {
			r.strategy.HandleSuccess()
			return result, nil
		}
		if !r.retryable(err) {
			return defaultT, err
		}
		decision := r.strategy.HandleError(err)
		if decision.ReturnError {
			return defaultT, err
		}
		if r.onRetry != nil {
			r.onRetry(attempt, err, decision.TimeToWait)
		}
		if !sleep(ctx, decision.TimeToWait) {
			return defaultT, errors.Join(ctx.Err(), err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type Decision struct {
	TimeToWait  time.Duration
	ReturnError bool
}

type HandlingStrategy interface {
	HandleError(err error) Decision
	HandleSuccess()
}

// ExponentialBackoffStrategy doubles the wait after every failure up to
// maxDelay.  maximumRetries of -1 retries forever.  A strategy carries
// per-run state, so build one per DoWithReturn caller.
type ExponentialBackoffStrategy struct {
	maximumRetries   int
	initialDelay     time.Duration
	maxDelay         time.Duration
	jitterPercentage float64

	currentRetryNumber int
	nextDelay          time.Duration
	rndGenerator       *rand.Rand
}

func NewExponentialBackoffStrategy(maximumRetries int, initialDelay time.Duration, jitterPercentage float64, maxDelay time.Duration) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		maximumRetries:     maximumRetries,
		initialDelay:       initialDelay,
		maxDelay:           maxDelay,
		jitterPercentage:   jitterPercentage,
		currentRetryNumber: 0,
		nextDelay:          initialDelay,
		rndGenerator:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (ebs *ExponentialBackoffStrategy) HandleError(err error) Decision {
	if ebs.maximumRetries != -1 && ebs.currentRetryNumber >= ebs.maximumRetries {
		return Decision{ReturnError: true}
	}
	ebs.currentRetryNumber++
	currentDelay := ebs.nextDelay
	nextBaseDelay := ebs.nextDelay * 2
	if nextBaseDelay > ebs.maxDelay {
		nextBaseDelay = ebs.maxDelay
	}
	ebs.nextDelay = ebs.modifyWithJitter(nextBaseDelay)
	return Decision{TimeToWait: currentDelay}
}

func (ebs *ExponentialBackoffStrategy) HandleSuccess() {
	ebs.nextDelay = ebs.initialDelay
	ebs.currentRetryNumber = 0
}

func (ebs *ExponentialBackoffStrategy) modifyWithJitter(duration time.Duration) time.Duration {
	maxJitterMilliseconds := int64(float64(duration.Milliseconds()) * ebs.jitterPercentage)
	if maxJitterMilliseconds <= 0 {
		return duration
	}
	jitterMilliseconds := ebs.rndGenerator.Int63n(maxJitterMilliseconds)
	jitterMilliseconds -= maxJitterMilliseconds / 2
	return duration + time.Duration(jitterMilliseconds)*time.Millisecond
}

type NopRetryStrategy struct{}

func (nrs *NopRetryStrategy) HandleError(err error) Decision {
	return Decision{ReturnError: true}
}

func (nrs *NopRetryStrategy) HandleSuccess() {

}
