package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/credit-scorer/internal/model"
	"github.com/sells-group/credit-scorer/internal/store"
)

// Snapshot summarizes recently scored applications.
type Snapshot struct {
	Total        int     `json:"total"`
	Low          int     `json:"low"`
	Medium       int     `json:"medium"`
	High         int     `json:"high"`
	Degraded     int     `json:"degraded"`
	DegradedRate float64 `json:"degraded_rate"`
	HighRiskRate float64 `json:"high_risk_rate"`
	AvgScore     float64 `json:"avg_score"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ApplicationLister is the store subset the collector reads.
type ApplicationLister interface {
	ListApplications(ctx context.Context, filter store.ListFilter) ([]model.ApplicationSummary, error)
}

// MaxLookbackHours caps the lookback window at one year.
const MaxLookbackHours = 24 * 365

// Collector builds snapshots from the application store.
type Collector struct {
	store   ApplicationLister
	nowFunc func() time.Time
}

// NewCollector creates a collector over st.
func NewCollector(st ApplicationLister) *Collector {
	return &Collector{store: st, nowFunc: time.Now}
}

// Collect summarizes up to store.MaxListLimit applications scored within
// the lookback window. Windows longer than MaxLookbackHours are clamped.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	if lookbackHours > MaxLookbackHours {
		lookbackHours = MaxLookbackHours
	}
	now := c.nowFunc().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}

	apps, err := c.store.ListApplications(ctx, store.ListFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        store.MaxListLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list applications")
	}

	var total int
	for _, a := range apps {
		switch a.Tier {
		case model.RiskLow:
			snap.Low++
		case model.RiskMedium:
			snap.Medium++
		case model.RiskHigh:
			snap.High++
		}
		if a.Degraded {
			snap.Degraded++
		}
		total += a.Score
	}

	snap.Total = len(apps)
	if snap.Total > 0 {
		n := float64(snap.Total)
		snap.DegradedRate = float64(snap.Degraded) / n
		snap.HighRiskRate = float64(snap.High) / n
		snap.AvgScore = float64(total) / n
	}
	return snap, nil
}
