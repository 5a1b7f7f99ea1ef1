package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/credit-scorer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS applications (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	score         INTEGER NOT NULL,
	tier          TEXT NOT NULL,
	degraded      BOOLEAN NOT NULL DEFAULT 0,
	model_version TEXT NOT NULL DEFAULT '',
	profile       TEXT NOT NULL,
	result        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_applications_tier ON applications(tier);
CREATE INDEX IF NOT EXISTS idx_applications_created_at ON applications(created_at);
`

const sqliteInsert = `INSERT INTO applications
	(id, name, score, tier, degraded, model_version, profile, result, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveApplication(ctx context.Context, app *model.Application) error {
	prepare(app)
	args, err := insertArgs(app)
	if err != nil {
		return eris.Wrap(err, "sqlite: save application")
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsert, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert application %s", app.ID)
	}
	return nil
}

func (s *SQLiteStore) SaveApplications(ctx context.Context, apps []*model.Application) (int, error) {
	if len(apps) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, app := range apps {
		prepare(app)
		args, err := insertArgs(app)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: save applications")
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert application %s", app.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return len(apps), nil
}

func (s *SQLiteStore) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile, result, created_at FROM applications WHERE id = ?`, id,
	)

	var app model.Application
	var profileJSON, resultJSON string
	err := row.Scan(&app.ID, &profileJSON, &resultJSON, &app.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get application %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get application %s", id)
	}
	if err := decodeApplication(&app, []byte(profileJSON), []byte(resultJSON)); err != nil {
		return nil, eris.Wrap(err, "sqlite: get application")
	}
	return &app, nil
}

func (s *SQLiteStore) ListApplications(ctx context.Context, filter ListFilter) ([]model.ApplicationSummary, error) {
	query := `SELECT id, name, score, tier, degraded, created_at FROM applications WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.Degraded != nil {
		query += ` AND degraded = ?`
		args = append(args, *filter.Degraded)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list applications")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ApplicationSummary
	for rows.Next() {
		var sum model.ApplicationSummary
		var tier string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Score, &tier, &sum.Degraded, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan application")
		}
		sum.Tier = model.RiskTier(tier)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list applications")
}

// insertArgs flattens app into the column order shared by both drivers.
func insertArgs(app *model.Application) ([]any, error) {
	profileJSON, err := json.Marshal(app.Profile)
	if err != nil {
		return nil, eris.Wrap(err, "marshal profile")
	}
	resultJSON, err := json.Marshal(app.Result)
	if err != nil {
		return nil, eris.Wrap(err, "marshal result")
	}
	return []any{
		app.ID,
		app.Profile.DisplayName(),
		app.Result.Score,
		string(app.Result.Tier),
		app.Result.Degraded,
		app.Result.ModelVersion,
		string(profileJSON),
		string(resultJSON),
		app.CreatedAt,
	}, nil
}

func decodeApplication(app *model.Application, profileJSON, resultJSON []byte) error {
	if err := json.Unmarshal(profileJSON, &app.Profile); err != nil {
		return eris.Wrap(err, "unmarshal profile")
	}
	if err := json.Unmarshal(resultJSON, &app.Result); err != nil {
		return eris.Wrap(err, "unmarshal result")
	}
	return nil
}
