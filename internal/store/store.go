// Package store persists scored applications.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/model"
)

// ErrNotFound is returned when an application does not exist.
var ErrNotFound = eris.New("application not found")

// Default and maximum page sizes for ListApplications.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store is the persistence interface for scored applications.
type Store interface {
	// SaveApplication persists app, assigning ID and CreatedAt when unset.
	SaveApplication(ctx context.Context, app *model.Application) error
	// SaveApplications persists a batch and returns how many rows were written.
	SaveApplications(ctx context.Context, apps []*model.Application) (int, error)
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	ListApplications(ctx context.Context, filter ListFilter) ([]model.ApplicationSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ListFilter narrows ListApplications. Results are newest first.
type ListFilter struct {
	Tier         model.RiskTier
	Degraded     *bool
	CreatedAfter time.Time
	Limit        int
	Offset       int
}

// limit clamps the requested page size.
func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// prepare fills the identity fields of an application about to be written.
func prepare(app *model.Application) {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}
}
