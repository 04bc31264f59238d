package types

import "fmt"

// EvaluationMethod is how a competition entry is scored.
type EvaluationMethod string

const (
	EvaluationHarness EvaluationMethod = "harness"
	EvaluationManual  EvaluationMethod = "manual"
	EvaluationVote    EvaluationMethod = "vote"
)

// PrizeDistribution is the strategy used to split the prize pool.
type PrizeDistribution string

const (
	DistributionWinnerTakeAll PrizeDistribution = "winner-take-all"
	DistributionTop3          PrizeDistribution = "top-3"
	DistributionProportional  PrizeDistribution = "proportional"
)

// CompetitionStatus is the authoritative status enum for a Competition.
type CompetitionStatus string

const (
	CompetitionActive     CompetitionStatus = "active"
	CompetitionEvaluating CompetitionStatus = "evaluating"
	CompetitionFinalized  CompetitionStatus = "finalized"
	CompetitionCancelled  CompetitionStatus = "cancelled"
)

// PrizeConfig carries the distribution-specific parameters.
type PrizeConfig struct {
	// Percentages applies to top-3; must sum to 100 when set. Defaults
	// to [50, 30, 20] per spec §4.F.
	Percentages []float64
	// MinScore applies to proportional distribution: entries scoring
	// below this are excluded from the prize split.
	MinScore float64
}

// Competition is a multi-entry contest resolving to a ranked prize
// distribution, one per listing.
type Competition struct {
	ID                     string
	ListingID              string
	MaxSubmissionsPerAgent int
	EvaluationMethod       EvaluationMethod
	Distribution           PrizeDistribution
	Prizes                 PrizeConfig
	Deadline               int64 // unix, 0 = none
	Status                 CompetitionStatus
	WinnerID               string
	CreatedAt              int64
	UpdatedAt              int64
}

// Clone deep copies the competition.
func (c *Competition) Clone() *Competition {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Prizes.Percentages = append([]float64(nil), c.Prizes.Percentages...)
	return &clone
}

// Validate checks static invariants at creation time.
func (c *Competition) Validate() error {
	if c == nil {
		return fmt.Errorf("competition: nil")
	}
	if c.ListingID == "" {
		return fmt.Errorf("competition: listing required")
	}
	switch c.EvaluationMethod {
	case EvaluationHarness, EvaluationManual, EvaluationVote:
	default:
		return fmt.Errorf("competition: invalid evaluation method %q", c.EvaluationMethod)
	}
	switch c.Distribution {
	case DistributionWinnerTakeAll, DistributionTop3, DistributionProportional:
	default:
		return fmt.Errorf("competition: invalid distribution %q", c.Distribution)
	}
	if c.MaxSubmissionsPerAgent <= 0 {
		return fmt.Errorf("competition: max submissions per agent must be positive")
	}
	return nil
}

// EntryStatus is the authoritative status enum for a Competition Entry.
type EntryStatus string

const (
	EntryPending       EntryStatus = "pending"
	EntryEvaluating    EntryStatus = "evaluating"
	EntryScored        EntryStatus = "scored"
	EntryWinner        EntryStatus = "winner"
	EntryDisqualified  EntryStatus = "disqualified"
)

// CompetitionEntry is one agent's submission to a competition.
type CompetitionEntry struct {
	ID            string
	CompetitionID string
	AgentID       string
	Artifacts     []Artifact
	Score         *float64
	Rank          *int
	Status        EntryStatus
	PrizeAmount   *float64
	Reason        string // disqualification reason, if any
	SubmittedAt   int64
	CreatedAt     int64
	UpdatedAt     int64
}

// Clone deep copies the entry.
func (e *CompetitionEntry) Clone() *CompetitionEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Artifacts = append([]Artifact(nil), e.Artifacts...)
	if e.Score != nil {
		v := *e.Score
		clone.Score = &v
	}
	if e.Rank != nil {
		v := *e.Rank
		clone.Rank = &v
	}
	if e.PrizeAmount != nil {
		v := *e.PrizeAmount
		clone.PrizeAmount = &v
	}
	return &clone
}

// EvaluationResult is the external harness/evaluator contract, per
// spec §4.F: "accepts artifacts + listing id, returns {success, score,
// details, feedback?}".
type EvaluationResult struct {
	Success  bool
	Score    float64
	Details  string
	Feedback string
}
