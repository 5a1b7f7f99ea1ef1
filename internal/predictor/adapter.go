package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/resilience"
)

// DefaultTimeout bounds a single inference.
const DefaultTimeout = 250 * time.Millisecond

// ModelUnavailableError reports that no usable prediction could be
// produced. Callers degrade to the rule score.
type ModelUnavailableError struct {
	ModelID string
	Reason  string
	Err     error
}

func (e *ModelUnavailableError) Error() string {
	if e.ModelID == "" {
		return "model unavailable: " + e.Reason
	}
	return fmt.Sprintf("model %s unavailable: %s", e.ModelID, e.Reason)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// IsModelUnavailable reports whether err carries a ModelUnavailableError.
func IsModelUnavailable(err error) bool {
	var mu *ModelUnavailableError
	return errors.As(err, &mu)
}

// Options configures an Adapter.
type Options struct {
	Timeout time.Duration
	Breaker resilience.CircuitBreakerConfig
}

// Adapter runs inference on a shared Artifact under a timeout and a
// circuit breaker. A nil artifact is allowed: every call then fails with
// ModelUnavailableError.
type Adapter struct {
	artifact *Artifact
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker

	infer func(model.FeatureVector) (model.Prediction, error)
}

// NewAdapter creates an Adapter for a (possibly nil) artifact.
func NewAdapter(a *Artifact, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Breaker.OnStateChange == nil {
		opts.Breaker.OnStateChange = resilience.StateLogger("model")
	}
	if opts.Breaker.ShouldTrip == nil {
		// Caller cancellation does not count against the model.
		opts.Breaker.ShouldTrip = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	ad := &Adapter{
		artifact: a,
		timeout:  opts.Timeout,
		breaker:  resilience.NewCircuitBreaker(opts.Breaker),
	}
	if a != nil {
		ad.infer = a.Predict
	}
	return ad
}

// Artifact returns the loaded artifact, or nil.
func (ad *Adapter) Artifact() *Artifact { return ad.artifact }

// BreakerState reports the inference circuit breaker state.
func (ad *Adapter) BreakerState() resilience.CircuitState { return ad.breaker.State() }

// BreakerFailures reports consecutive inference failures since the last
// success.
func (ad *Adapter) BreakerFailures() int { return ad.breaker.Failures() }

// Predict returns the probability of good credit for fv.
func (ad *Adapter) Predict(ctx context.Context, fv model.FeatureVector) (model.Prediction, error) {
	if ad.infer == nil {
		return model.Prediction{}, &ModelUnavailableError{Reason: "artifact not loaded"}
	}

	ctx, cancel := context.WithTimeout(ctx, ad.timeout)
	defer cancel()

	pred, err := resilience.ExecuteVal(ctx, ad.breaker, func(ctx context.Context) (model.Prediction, error) {
		return ad.run(ctx, fv)
	})
	if err != nil {
		return model.Prediction{}, ad.unavailable(err)
	}
	return pred, nil
}

type outcome struct {
	pred model.Prediction
	err  error
}

// run executes inference in its own goroutine so a slow model cannot hold
// the caller past the deadline. Panics become errors.
func (ad *Adapter) run(ctx context.Context, fv model.FeatureVector) (model.Prediction, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: eris.Errorf("predictor: inference panicked: %v", p)}
			}
		}()
		pred, err := ad.infer(fv)
		done <- outcome{pred: pred, err: err}
	}()

	select {
	case <-ctx.Done():
		return model.Prediction{}, eris.Wrap(ctx.Err(), "predictor: inference")
	case out := <-done:
		return out.pred, out.err
	}
}

func (ad *Adapter) unavailable(err error) *ModelUnavailableError {
	reason := err.Error()
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		reason = "circuit open"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "inference timed out"
	case errors.Is(err, context.Canceled):
		reason = "request cancelled"
	}
	var id string
	if ad.artifact != nil {
		id = ad.artifact.ID
	}
	return &ModelUnavailableError{ModelID: id, Reason: reason, Err: err}
}
