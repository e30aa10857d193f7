package contracts

import "time"

// RankingRow is one entity's relative-strength result for a trading date.
// Horizon fields are nil when fewer sessions exist than the horizon needs.
// Rows are computed fresh on every ranking run and never persisted.
type RankingRow struct {
	ID    string    `json:"id"`
	Name  string    `json:"name,omitempty"`
	AsOf  time.Time `json:"as_of"`
	Rank  int       `json:"rank"`

	Return1D *float64 `json:"return_1d,omitempty"`
	Return2D *float64 `json:"return_2d,omitempty"`
	Return5D *float64 `json:"return_5d,omitempty"`

	Alpha1D *float64 `json:"alpha_1d,omitempty"`
	Alpha2D *float64 `json:"alpha_2d,omitempty"`
	Alpha5D *float64 `json:"alpha_5d,omitempty"`

	// Score = Alpha2D*0.6 + Alpha5D*0.4, degrading to Alpha2D alone when
	// Alpha5D is undefined. Nil only when Alpha2D itself is undefined.
	Score *float64 `json:"score,omitempty"`
}

// RankingResult is the outcome of one ranking run, including entities that
// were skipped and whether the run was cut short by cancellation.
type RankingResult struct {
	AsOf       time.Time    `json:"as_of"`
	Rows       []RankingRow `json:"rows"`
	Skipped    []SkipReason `json:"skipped,omitempty"`
	Incomplete bool         `json:"incomplete,omitempty"`
}

// VelocityRow tracks how one entity's rank moved across recent sessions.
// A nil change means the entity was absent from that day's ranking.
type VelocityRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	CurrentRank int      `json:"current_rank"`
	Score       *float64 `json:"score,omitempty"`
	Change1D    *int     `json:"rank_change_1d,omitempty"`
	Change2D    *int     `json:"rank_change_2d,omitempty"`
}

// VelocityReport is the outcome of one velocity run. ResolvedDates holds the
// trading dates actually used, most recent first; absent older dates are
// zero times.
type VelocityReport struct {
	Rows          []VelocityRow `json:"rows"`
	ResolvedDates []time.Time   `json:"resolved_dates"`
	Skipped       []SkipReason  `json:"skipped,omitempty"`
	Incomplete    bool          `json:"incomplete,omitempty"`
}
