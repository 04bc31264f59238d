// Package milestone implements Component D: percentage-weighted
// partial releases against one parent listing's budget. Modeled
// directly on the teacher's native/escrow.MilestoneEngine — an
// injected-clock engine with one method per lifecycle operation —
// generalised from escrow "legs" to Saltdig milestones.
package milestone

import (
	"context"
	"math"
	"time"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/eventbus"
	"saltdig/native/ledger"
	"saltdig/store"

	"github.com/google/uuid"
)

const budgetTolerance = 0.01

// Engine orchestrates milestone plan creation and lifecycle.
type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	bus    *eventbus.Bus
	now    func() time.Time
}

// New builds a milestone Engine.
func New(st store.Store, lg *ledger.Ledger, bus *eventbus.Bus, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, ledger: lg, bus: bus, now: now}
}

// MilestoneInput is one item of a createMilestones call.
type MilestoneInput struct {
	Title              string
	Description        string
	BudgetPercentage   float64
	AcceptanceCriteria string
}

// CreateMilestones validates and stores a listing's milestone plan,
// poster-only, allowed only on a frozen listing with no existing plan.
func (e *Engine) CreateMilestones(ctx context.Context, listingID, posterID string, inputs []MilestoneInput) ([]types.Milestone, error) {
	const op = "milestone.CreateMilestones"
	if len(inputs) == 0 {
		return nil, cerrors.InvalidArgument(op, "at least one milestone is required")
	}
	sum := 0.0
	for _, in := range inputs {
		sum += in.BudgetPercentage
	}
	if math.Abs(sum-100) > budgetTolerance {
		return nil, cerrors.InvalidArgument(op, "budget percentages must sum to 100 (got %.4f)", sum)
	}

	var milestones []types.Milestone
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", listingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may create milestones for listing %q", listingID)
		}
		if listing.Status != types.ListingFrozen {
			return cerrors.InvalidState(op, "listing %q is not frozen", listingID)
		}
		if existing, err := tx.MilestonesByListing(ctx, listingID); err == nil && len(existing) > 0 {
			return cerrors.Conflict(op, "listing %q already has a milestone plan", listingID)
		}

		now := e.now().Unix()
		milestones = make([]types.Milestone, len(inputs))
		for i, in := range inputs {
			m := types.Milestone{
				ID:                 uuid.NewString(),
				ListingID:          listingID,
				Title:              in.Title,
				Description:        in.Description,
				BudgetPercentage:   in.BudgetPercentage,
				AcceptanceCriteria: in.AcceptanceCriteria,
				OrderIndex:         i,
				Status:             types.MilestonePending,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := m.Validate(); err != nil {
				return cerrors.InvalidArgument(op, "milestone %d: %s", i, err)
			}
			milestones[i] = m
		}
		return tx.PutMilestones(ctx, milestones)
	})
	if err != nil {
		return nil, err
	}
	return milestones, nil
}

// Start transitions a milestone pending -> in_progress, assigning
// agent as its assignee. Allowed only once every lower-indexed
// milestone is approved.
func (e *Engine) Start(ctx context.Context, milestoneID, agentID string) error {
	const op = "milestone.Start"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		m, err := getMilestone(ctx, tx, op, milestoneID)
		if err != nil {
			return err
		}
		if m.Status != types.MilestonePending {
			return cerrors.InvalidState(op, "milestone %q is not pending", milestoneID)
		}
		siblings, err := tx.MilestonesByListing(ctx, m.ListingID)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if s.OrderIndex < m.OrderIndex && s.Status != types.MilestoneApproved {
				return cerrors.InvalidState(op, "milestone %q must wait for milestone %q", milestoneID, s.ID)
			}
		}
		m.AssigneeID = agentID
		m.Status = types.MilestoneInProgress
		m.UpdatedAt = e.now().Unix()
		if err := tx.PutMilestone(ctx, &m); err != nil {
			return err
		}
		e.emit(eventbus.TopicMilestoneStatusChanged, m.Clone())
		return nil
	})
}

// Submit records a delivery against an in-progress milestone, assignee
// only, requiring a non-empty, fully-formed artifacts array.
func (e *Engine) Submit(ctx context.Context, milestoneID, agentID string, artifacts []types.Artifact) error {
	const op = "milestone.Submit"
	if len(artifacts) == 0 {
		return cerrors.InvalidArgument(op, "at least one artifact is required")
	}
	for i, a := range artifacts {
		if !a.Valid() {
			return cerrors.InvalidArgument(op, "artifact %d is missing type, url or description", i)
		}
	}
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		m, err := getMilestone(ctx, tx, op, milestoneID)
		if err != nil {
			return err
		}
		if m.AssigneeID != agentID {
			return cerrors.Forbidden(op, "only the assignee may submit milestone %q", milestoneID)
		}
		if m.Status != types.MilestoneInProgress {
			return cerrors.InvalidState(op, "milestone %q is not in progress", milestoneID)
		}
		now := e.now().Unix()
		m.Status = types.MilestoneSubmitted
		m.UpdatedAt = now
		if err := tx.PutMilestone(ctx, &m); err != nil {
			return err
		}
		submission := &types.MilestoneSubmission{
			ID:          uuid.NewString(),
			MilestoneID: milestoneID,
			AgentID:     agentID,
			Artifacts:   artifacts,
			Status:      types.SubmissionPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.PutSubmission(ctx, submission); err != nil {
			return err
		}
		e.emit(eventbus.TopicMilestoneSubmitted, submission.Clone())
		return nil
	})
}

// Approve releases the milestone's share of the listing's budget,
// poster only. For Salt listings this issues a Ledger transfer; for
// USDC listings the release is deferred to the operator's separate
// on-chain call (spec §4.D, §9 Open Questions).
func (e *Engine) Approve(ctx context.Context, milestoneID, posterID string) error {
	const op = "milestone.Approve"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		m, err := getMilestone(ctx, tx, op, milestoneID)
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, m.ListingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", m.ListingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may approve milestone %q", milestoneID)
		}
		if m.Status != types.MilestoneSubmitted {
			return cerrors.InvalidState(op, "milestone %q is not submitted", milestoneID)
		}
		submission, err := tx.LatestSubmission(ctx, milestoneID)
		if err != nil {
			return err
		}

		now := e.now().Unix()
		m.Status = types.MilestoneApproved
		m.UpdatedAt = now
		if err := tx.PutMilestone(ctx, &m); err != nil {
			return err
		}
		submission.Status = types.SubmissionApproved
		submission.UpdatedAt = now
		if err := tx.PutSubmission(ctx, submission); err != nil {
			return err
		}

		if listing.Currency == types.CurrencySalt {
			price, perr := parseSaltPrice(listing.Price)
			if perr != nil {
				return cerrors.InvalidArgument(op, "%s", perr)
			}
			release := int64(math.Round(price * m.BudgetPercentage / 100))
			if release > 0 {
				if _, err := transferLocked(ctx, tx, "", m.AssigneeID, release, types.KindMilestonePayment, "milestone "+m.ID, now); err != nil {
					return err
				}
			}
		}

		siblings, err := tx.MilestonesByListing(ctx, m.ListingID)
		if err != nil {
			return err
		}
		allApproved := true
		for _, s := range siblings {
			status := s.Status
			if s.ID == m.ID {
				status = types.MilestoneApproved
			}
			if status != types.MilestoneApproved {
				allApproved = false
				break
			}
		}
		if allApproved {
			listing.Status = types.ListingCompleted
			listing.UpdatedAt = now
			listing.CompletedCount++
			if err := tx.PutListing(ctx, listing); err != nil {
				return err
			}
		}
		e.emit(eventbus.TopicMilestoneStatusChanged, m.Clone())
		return nil
	})
}

// Reject returns a submitted milestone to in_progress, poster only,
// requiring non-empty feedback.
func (e *Engine) Reject(ctx context.Context, milestoneID, posterID, feedback string) error {
	const op = "milestone.Reject"
	if feedback == "" {
		return cerrors.InvalidArgument(op, "feedback is required")
	}
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		m, err := getMilestone(ctx, tx, op, milestoneID)
		if err != nil {
			return err
		}
		listing, err := tx.GetListing(ctx, m.ListingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", m.ListingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may reject milestone %q", milestoneID)
		}
		if m.Status != types.MilestoneSubmitted {
			return cerrors.InvalidState(op, "milestone %q is not submitted", milestoneID)
		}
		submission, err := tx.LatestSubmission(ctx, milestoneID)
		if err != nil {
			return err
		}
		now := e.now().Unix()
		m.Status = types.MilestoneInProgress
		m.UpdatedAt = now
		if err := tx.PutMilestone(ctx, &m); err != nil {
			return err
		}
		submission.Status = types.SubmissionRejected
		submission.Feedback = feedback
		submission.UpdatedAt = now
		if err := tx.PutSubmission(ctx, submission); err != nil {
			return err
		}
		e.emit(eventbus.TopicMilestoneStatusChanged, m.Clone())
		return nil
	})
}

// Progress summarises a listing's milestone plan.
func (e *Engine) Progress(ctx context.Context, listingID string) (*types.MilestoneProgress, error) {
	const op = "milestone.Progress"
	milestones, err := e.store.MilestonesByListing(ctx, listingID)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	progress := &types.MilestoneProgress{Total: len(milestones), AllMilestones: milestones}
	for _, m := range milestones {
		if m.Status == types.MilestoneApproved {
			progress.Completed++
			progress.BudgetReleasedPercentage += m.BudgetPercentage
		}
	}
	for _, m := range milestones {
		if m.Status == types.MilestoneInProgress || m.Status == types.MilestoneSubmitted || m.Status == types.MilestonePending {
			progress.CurrentMilestoneID = m.ID
			break
		}
	}
	return progress, nil
}

func (e *Engine) emit(topic string, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventbus.Event{Topic: topic, Payload: payload})
}

func getMilestone(ctx context.Context, tx store.Store, op, id string) (types.Milestone, error) {
	m, err := tx.GetMilestone(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return types.Milestone{}, cerrors.NotFound(op, "milestone %q not found", id)
		}
		return types.Milestone{}, err
	}
	return *m, nil
}
