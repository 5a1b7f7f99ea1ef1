package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/resilience"
)

// Open connects the configured driver and runs migrations. The "none"
// driver returns a nil Store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return WithRetry(s, resilience.FromStoreConfig(cfg)), nil
}

// retrying retries transient write failures. Reads pass through.
type retrying struct {
	Store
	cfg resilience.RetryConfig
}

// WithRetry wraps s so writes are retried under cfg.
func WithRetry(s Store, cfg resilience.RetryConfig) Store {
	return &retrying{Store: s, cfg: cfg}
}

func (r *retrying) SaveApplication(ctx context.Context, app *model.Application) error {
	prepare(app)
	return resilience.Do(ctx, r.cfg, func(ctx context.Context) error {
		return r.Store.SaveApplication(ctx, app)
	})
}

func (r *retrying) SaveApplications(ctx context.Context, apps []*model.Application) (int, error) {
	for _, app := range apps {
		prepare(app)
	}
	var n int
	err := resilience.Do(ctx, r.cfg, func(ctx context.Context) error {
		var err error
		n, err = r.Store.SaveApplications(ctx, apps)
		return err
	})
	return n, err
}
