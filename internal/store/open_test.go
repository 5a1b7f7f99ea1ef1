package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/resilience"
)

// flakyStore fails the first n writes with err.
type flakyStore struct {
	Store
	failures int
	err      error
	calls    int
	ids      []string
}

func (f *flakyStore) SaveApplication(_ context.Context, app *model.Application) error {
	f.calls++
	f.ids = append(f.ids, app.ID)
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) SaveApplications(_ context.Context, apps []*model.Application) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return len(apps), nil
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestWithRetry_TransientWrite(t *testing.T) {
	inner := &flakyStore{failures: 2, err: errors.New("database is locked")}
	s := WithRetry(inner, fastRetry())

	app := testApplication("Jane", 81, model.RiskLow, false)
	require.NoError(t, s.SaveApplication(context.Background(), app))
	assert.Equal(t, 3, inner.calls)
	// Every attempt writes the same identity.
	assert.Equal(t, []string{app.ID, app.ID, app.ID}, inner.ids)
}

func TestWithRetry_PermanentWrite(t *testing.T) {
	inner := &flakyStore{failures: 5, err: errors.New("constraint violation")}
	s := WithRetry(inner, fastRetry())

	err := s.SaveApplication(context.Background(), testApplication("Jane", 81, model.RiskLow, false))
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestWithRetry_Batch(t *testing.T) {
	inner := &flakyStore{failures: 1, err: errors.New("connection reset by peer")}
	s := WithRetry(inner, fastRetry())

	apps := []*model.Application{testApplication("A", 50, model.RiskMedium, false)}
	n, err := s.SaveApplications(context.Background(), apps)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, inner.calls)
	assert.NotEmpty(t, apps[0].ID)
}

func TestOpen_None(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "apps.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	app := testApplication("Jane", 81, model.RiskLow, false)
	require.NoError(t, s.SaveApplication(ctx, app))

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, 81, got.Result.Score)
}
