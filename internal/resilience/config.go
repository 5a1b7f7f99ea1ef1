package resilience

import (
	"time"

	"github.com/sells-group/credit-scorer/internal/config"
)

// FromBreakerConfig converts the model breaker config section.
func FromBreakerConfig(c config.BreakerConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if c.FailureThreshold > 0 {
		cfg.FailureThreshold = c.FailureThreshold
	}
	if c.ResetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.ResetTimeoutSecs) * time.Second
	}
	return cfg
}

// FromStoreConfig builds the retry policy for store writes.
func FromStoreConfig(c config.StoreConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if c.RetryAttempts > 0 {
		cfg.MaxAttempts = c.RetryAttempts
	}
	cfg.OnRetry = RetryLogger("store: save application")
	return cfg
}
