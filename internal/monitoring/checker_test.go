package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/credit-scorer/internal/model"
)

func TestChecker_Check(t *testing.T) {
	apps := summaries(model.RiskHigh, model.RiskHigh, model.RiskHigh, model.RiskLow)
	c := NewChecker(NewCollector(&fakeLister{apps: apps}), NewAlerter(monitoringConfig("")), monitoringConfig(""))

	alerts := c.Check(context.Background())
	if assert.Len(t, alerts, 1) {
		assert.Equal(t, AlertHighRiskRate, alerts[0].Type)
	}
}

func TestChecker_CheckCollectError(t *testing.T) {
	c := NewChecker(NewCollector(&fakeLister{err: errors.New("db down")}), NewAlerter(monitoringConfig("")), monitoringConfig(""))
	assert.Nil(t, c.Check(context.Background()))
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(NewCollector(&fakeLister{}), NewAlerter(monitoringConfig("")), monitoringConfig(""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checker did not stop")
	}
}
