package types

import "fmt"

// MilestoneStatus is the authoritative status enum for a Milestone.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneSubmitted  MilestoneStatus = "submitted"
	MilestoneApproved   MilestoneStatus = "approved"
	MilestoneRejected   MilestoneStatus = "rejected"
)

// Milestone is a weighted deliverable within a listing.
type Milestone struct {
	ID                 string
	ListingID          string
	Title              string
	Description        string
	BudgetPercentage   float64 // in (0, 100]
	AcceptanceCriteria string
	OrderIndex         int
	Status             MilestoneStatus
	AssigneeID         string
	CreatedAt          int64
	UpdatedAt          int64
}

// Clone deep copies the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Validate checks the per-milestone invariants named in spec §3: the
// percentage must be in (0, 100].
func (m *Milestone) Validate() error {
	if m == nil {
		return fmt.Errorf("milestone: nil")
	}
	if m.Title == "" {
		return fmt.Errorf("milestone: title required")
	}
	if m.BudgetPercentage <= 0 || m.BudgetPercentage > 100 {
		return fmt.Errorf("milestone: budget_percentage must be in (0, 100]")
	}
	return nil
}

// Artifact is a single submitted deliverable reference.
type Artifact struct {
	Type        string
	URL         string
	Description string
}

// Valid reports whether the artifact has its three required fields.
func (a Artifact) Valid() bool {
	return a.Type != "" && a.URL != "" && a.Description != ""
}

// SubmissionStatus is the authoritative status enum for a Milestone
// Submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// MilestoneSubmission is a worker's delivery against a milestone.
type MilestoneSubmission struct {
	ID          string
	MilestoneID string
	AgentID     string
	Artifacts   []Artifact
	Status      SubmissionStatus
	Feedback    string
	CreatedAt   int64
	UpdatedAt   int64
}

// Clone deep copies the submission.
func (s *MilestoneSubmission) Clone() *MilestoneSubmission {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Artifacts = append([]Artifact(nil), s.Artifacts...)
	return &clone
}

// NonTerminal reports whether the submission is still awaiting a
// decision, used by spec §3's "at most one submission in a
// non-terminal state" invariant.
func (s SubmissionStatus) NonTerminal() bool {
	return s == SubmissionPending
}

// MilestoneProgress summarises a listing's milestone plan progress, the
// return value of native/milestone's Progress operation.
type MilestoneProgress struct {
	Total                    int
	Completed                int
	BudgetReleasedPercentage float64
	CurrentMilestoneID       string
	AllMilestones            []Milestone
}
