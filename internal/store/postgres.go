package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/db"
	"github.com/sells-group/credit-scorer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const postgresInsert = `INSERT INTO applications
	(id, name, score, tier, degraded, model_version, profile, result, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const postgresGet = `SELECT id, profile, result, created_at FROM applications WHERE id = $1`

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_application": postgresInsert,
	"get_application":    postgresGet,
}

// copyColumns is the column order used by the bulk COPY path.
var copyColumns = []string{
	"id", "name", "score", "tier", "degraded", "model_version", "profile", "result", "created_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS applications (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name          TEXT NOT NULL,
	score         INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	tier          TEXT NOT NULL,
	degraded      BOOLEAN NOT NULL DEFAULT false,
	model_version TEXT NOT NULL DEFAULT '',
	profile       JSONB NOT NULL,
	result        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_applications_tier ON applications(tier);
CREATE INDEX IF NOT EXISTS idx_applications_created_at ON applications(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) SaveApplication(ctx context.Context, app *model.Application) error {
	prepare(app)
	args, err := insertArgs(app)
	if err != nil {
		return eris.Wrap(err, "postgres: save application")
	}
	if _, err := s.pool.Exec(ctx, postgresInsert, args...); err != nil {
		return eris.Wrapf(err, "postgres: insert application %s", app.ID)
	}
	return nil
}

// SaveApplications writes a batch with a single COPY.
func (s *PostgresStore) SaveApplications(ctx context.Context, apps []*model.Application) (int, error) {
	rows := make([][]any, 0, len(apps))
	for _, app := range apps {
		prepare(app)
		args, err := insertArgs(app)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: save applications")
		}
		rows = append(rows, args)
	}
	n, err := db.CopyFrom(ctx, s.pool, "applications", copyColumns, rows)
	if err != nil {
		return int(n), eris.Wrap(err, "postgres: save applications")
	}
	return int(n), nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	var profileJSON, resultJSON []byte
	err := s.pool.QueryRow(ctx, postgresGet, id).Scan(&app.ID, &profileJSON, &resultJSON, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get application %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get application %s", id)
	}
	if err := decodeApplication(&app, profileJSON, resultJSON); err != nil {
		return nil, eris.Wrap(err, "postgres: get application")
	}
	return &app, nil
}

func (s *PostgresStore) ListApplications(ctx context.Context, filter ListFilter) ([]model.ApplicationSummary, error) {
	query := `SELECT id, name, score, tier, degraded, created_at FROM applications WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		args = append(args, string(filter.Tier))
		query += fmt.Sprintf(` AND tier = $%d`, len(args))
	}
	if filter.Degraded != nil {
		args = append(args, *filter.Degraded)
		query += fmt.Sprintf(` AND degraded = $%d`, len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		query += fmt.Sprintf(` AND created_at > $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list applications")
	}
	defer rows.Close()

	var out []model.ApplicationSummary
	for rows.Next() {
		var sum model.ApplicationSummary
		var tier string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Score, &tier, &sum.Degraded, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan application")
		}
		sum.Tier = model.RiskTier(tier)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list applications")
}
