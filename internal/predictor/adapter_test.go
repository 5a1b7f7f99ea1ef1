package predictor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/resilience"
)

func testArtifact(t *testing.T) *Artifact {
	t.Helper()
	a, err := Parse([]byte(logisticYAML), false)
	require.NoError(t, err)
	return a
}

func unavailable(t *testing.T, err error) *ModelUnavailableError {
	t.Helper()
	var mu *ModelUnavailableError
	require.True(t, errors.As(err, &mu), "expected ModelUnavailableError, got %v", err)
	return mu
}

func TestAdapter_Predict(t *testing.T) {
	ad := NewAdapter(testArtifact(t), Options{})
	pred, err := ad.Predict(context.Background(), model.FeatureVector{DebtToIncome: 0.4, Age: 50})
	require.NoError(t, err)
	assert.InDelta(t, 0.182426, pred.Probability, 1e-6)
	assert.Equal(t, resilience.CircuitClosed, ad.BreakerState())
}

func TestAdapter_NoArtifact(t *testing.T) {
	ad := NewAdapter(nil, Options{})
	_, err := ad.Predict(context.Background(), model.FeatureVector{})
	mu := unavailable(t, err)
	assert.Equal(t, "artifact not loaded", mu.Reason)
	assert.Equal(t, "model unavailable: artifact not loaded", mu.Error())
	assert.Nil(t, ad.Artifact())
}

func TestAdapter_Timeout(t *testing.T) {
	ad := NewAdapter(testArtifact(t), Options{Timeout: 10 * time.Millisecond})
	ad.infer = func(model.FeatureVector) (model.Prediction, error) {
		time.Sleep(200 * time.Millisecond)
		return model.Prediction{Probability: 0.5}, nil
	}

	start := time.Now()
	_, err := ad.Predict(context.Background(), model.FeatureVector{})
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	mu := unavailable(t, err)
	assert.Equal(t, "inference timed out", mu.Reason)
	assert.Equal(t, "test-logit", mu.ModelID)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAdapter_Panic(t *testing.T) {
	ad := NewAdapter(testArtifact(t), Options{})
	ad.infer = func(model.FeatureVector) (model.Prediction, error) { panic("corrupt weights") }

	_, err := ad.Predict(context.Background(), model.FeatureVector{})
	mu := unavailable(t, err)
	assert.Contains(t, mu.Reason, "corrupt weights")
}

func TestAdapter_BreakerOpens(t *testing.T) {
	ad := NewAdapter(testArtifact(t), Options{
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute},
	})
	var calls atomic.Int32
	ad.infer = func(model.FeatureVector) (model.Prediction, error) {
		calls.Add(1)
		return model.Prediction{}, errors.New("feature \"x\" not available")
	}

	for i := 0; i < 2; i++ {
		_, err := ad.Predict(context.Background(), model.FeatureVector{})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, ad.BreakerState())
	assert.Equal(t, 2, ad.BreakerFailures())

	_, err := ad.Predict(context.Background(), model.FeatureVector{})
	assert.Equal(t, "circuit open", unavailable(t, err).Reason)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIsModelUnavailable(t *testing.T) {
	assert.True(t, IsModelUnavailable(&ModelUnavailableError{Reason: "x"}))
	assert.False(t, IsModelUnavailable(errors.New("x")))
	assert.Equal(t, "model m unavailable: down", (&ModelUnavailableError{ModelID: "m", Reason: "down"}).Error())
}
