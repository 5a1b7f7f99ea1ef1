package model

import "time"

// Application is a scored applicant as persisted by the store.
type Application struct {
	ID        string           `json:"id"`
	Profile   ApplicantProfile `json:"profile"`
	Result    ScoreResult      `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}

// ApplicationSummary is the list view of an Application.
type ApplicationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Tier      RiskTier  `json:"tier"`
	Degraded  bool      `json:"degraded"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects a into its list view.
func (a Application) Summary() ApplicationSummary {
	return ApplicationSummary{
		ID:        a.ID,
		Name:      a.Profile.DisplayName(),
		Score:     a.Result.Score,
		Tier:      a.Result.Tier,
		Degraded:  a.Result.Degraded,
		CreatedAt: a.CreatedAt,
	}
}
