// Package competition implements Component F: bounty-listing
// contests with pluggable evaluation and three prize-distribution
// strategies.
package competition

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/eventbus"
	"saltdig/store"

	"github.com/google/uuid"
)

var defaultTop3Percentages = []float64{50, 30, 20}

// Engine orchestrates competition creation, entries, evaluation, and
// prize finalization.
type Engine struct {
	store      store.Store
	bus        *eventbus.Bus
	evaluators map[types.EvaluationMethod]Evaluator
	now        func() time.Time
}

// New builds a competition Engine. evaluators maps each evaluation
// method to the Evaluator invoked for it; a method with no registered
// Evaluator fails entries evaluated against it.
func New(st store.Store, bus *eventbus.Bus, evaluators map[types.EvaluationMethod]Evaluator, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, bus: bus, evaluators: evaluators, now: now}
}

// CreateCompetition opens a contest against a bounty-mode listing
// that has no existing competition.
func (e *Engine) CreateCompetition(ctx context.Context, listingID string, method types.EvaluationMethod, distribution types.PrizeDistribution, prizes types.PrizeConfig, maxSubmissionsPerAgent int, deadline int64) (*types.Competition, error) {
	const op = "competition.CreateCompetition"
	var competition *types.Competition
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", listingID)
			}
			return err
		}
		if listing.Mode != types.ListingModeBounty {
			return cerrors.InvalidState(op, "listing %q is not a bounty", listingID)
		}
		if existing, err := tx.CompetitionByListing(ctx, listingID); err == nil && existing != nil {
			return cerrors.Conflict(op, "listing %q already has a competition", listingID)
		}

		if distribution == types.DistributionTop3 && len(prizes.Percentages) == 0 {
			prizes.Percentages = append([]float64(nil), defaultTop3Percentages...)
		}
		if distribution == types.DistributionTop3 {
			sum := 0.0
			for _, p := range prizes.Percentages {
				sum += p
			}
			if math.Abs(sum-100) > 0.01 {
				return cerrors.InvalidArgument(op, "top-3 percentages must sum to 100 (got %.4f)", sum)
			}
		}

		now := e.now().Unix()
		competition = &types.Competition{
			ID:                     uuid.NewString(),
			ListingID:              listingID,
			MaxSubmissionsPerAgent: maxSubmissionsPerAgent,
			EvaluationMethod:       method,
			Distribution:           distribution,
			Prizes:                 prizes,
			Deadline:               deadline,
			Status:                 types.CompetitionActive,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := competition.Validate(); err != nil {
			return cerrors.InvalidArgument(op, "%s", err)
		}
		return tx.PutCompetition(ctx, competition)
	})
	if err != nil {
		return nil, err
	}
	return competition, nil
}

// Submit creates a pending entry for agent, enforcing the active
// window and per-agent submission cap.
func (e *Engine) Submit(ctx context.Context, competitionID, agentID string, artifacts []types.Artifact) (*types.CompetitionEntry, error) {
	const op = "competition.Submit"
	if len(artifacts) == 0 {
		return nil, cerrors.InvalidArgument(op, "at least one artifact is required")
	}
	var entry *types.CompetitionEntry
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		c, err := tx.GetCompetition(ctx, competitionID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "competition %q not found", competitionID)
			}
			return err
		}
		if c.Status != types.CompetitionActive {
			return cerrors.InvalidState(op, "competition %q is not active", competitionID)
		}
		now := e.now()
		if c.Deadline != 0 && now.Unix() > c.Deadline {
			return cerrors.InvalidState(op, "competition %q is past its deadline", competitionID)
		}
		count, err := tx.CountEntriesByAgent(ctx, competitionID, agentID)
		if err != nil {
			return err
		}
		if count >= c.MaxSubmissionsPerAgent {
			return cerrors.InvalidState(op, "agent %q has reached the submission limit for competition %q", agentID, competitionID)
		}

		nowUnix := now.Unix()
		entry = &types.CompetitionEntry{
			ID:            uuid.NewString(),
			CompetitionID: competitionID,
			AgentID:       agentID,
			Artifacts:     artifacts,
			Status:        types.EntryPending,
			SubmittedAt:   nowUnix,
			CreatedAt:     nowUnix,
			UpdatedAt:     nowUnix,
		}
		return tx.PutEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicCompetitionEntrySubmitted, entry.Clone())
	return entry, nil
}

// Evaluate dispatches entryID to the evaluator registered for its
// competition's method, scoring it on success or disqualifying it on
// evaluator failure.
func (e *Engine) Evaluate(ctx context.Context, entryID string) (*types.CompetitionEntry, error) {
	const op = "competition.Evaluate"
	entry, err := e.store.GetEntry(ctx, entryID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "entry %q not found", entryID)
		}
		return nil, err
	}
	if entry.Status != types.EntryPending {
		return nil, cerrors.InvalidState(op, "entry %q is not pending", entryID)
	}
	competition, err := e.store.GetCompetition(ctx, entry.CompetitionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "competition %q not found", entry.CompetitionID)
		}
		return nil, err
	}

	now := e.now().Unix()
	entry.Status = types.EntryEvaluating
	entry.UpdatedAt = now
	if err := e.store.PutEntry(ctx, entry); err != nil {
		return nil, err
	}

	evaluator, ok := e.evaluators[competition.EvaluationMethod]
	if !ok {
		return nil, cerrors.InvalidState(op, "no evaluator registered for method %q", competition.EvaluationMethod)
	}
	result, evalErr := evaluator.Evaluate(ctx, competition.ListingID, entry.Artifacts)
	now = e.now().Unix()
	entry.UpdatedAt = now
	if evalErr != nil || !result.Success {
		entry.Status = types.EntryDisqualified
		if evalErr != nil {
			entry.Reason = evalErr.Error()
		} else {
			entry.Reason = result.Details
		}
	} else {
		score := result.Score
		entry.Status = types.EntryScored
		entry.Score = &score
	}
	if err := e.store.PutEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Finalize ranks every scored entry, computes prizes by the
// competition's distribution strategy, and pays out Salt prizes
// through the Ledger; USDC prizes are recorded but deferred to the
// external payout rail.
func (e *Engine) Finalize(ctx context.Context, competitionID string) (*types.Competition, error) {
	const op = "competition.Finalize"
	var competition *types.Competition
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		c, err := tx.GetCompetition(ctx, competitionID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "competition %q not found", competitionID)
			}
			return err
		}
		if c.Status == types.CompetitionFinalized {
			return cerrors.InvalidState(op, "competition %q is already finalized", competitionID)
		}
		listing, err := tx.GetListing(ctx, c.ListingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", c.ListingID)
			}
			return err
		}

		entries, err := tx.EntriesByCompetition(ctx, competitionID)
		if err != nil {
			return err
		}
		var scored []*types.CompetitionEntry
		for i := range entries {
			if entries[i].Status == types.EntryScored {
				scored = append(scored, &entries[i])
			}
		}
		if len(scored) == 0 {
			return cerrors.InvalidState(op, "competition %q has no scored entries", competitionID)
		}
		sort.SliceStable(scored, func(i, j int) bool {
			if *scored[i].Score != *scored[j].Score {
				return *scored[i].Score > *scored[j].Score
			}
			return scored[i].SubmittedAt < scored[j].SubmittedAt
		})

		total, perr := totalPrizePool(listing)
		if perr != nil {
			return cerrors.InvalidArgument(op, "%s", perr)
		}
		prizes := computePrizes(scored, c.Distribution, c.Prizes, total)

		now := e.now().Unix()
		for i, entry := range scored {
			rank := i + 1
			entry.Rank = &rank
			if p, ok := prizes[entry.ID]; ok && p > 0 {
				amount := p
				entry.PrizeAmount = &amount
			}
			if rank == 1 {
				entry.Status = types.EntryWinner
			}
			entry.UpdatedAt = now
			if err := tx.PutEntry(ctx, entry); err != nil {
				return err
			}
			if p, ok := prizes[entry.ID]; ok && p > 0 && listing.Currency == types.CurrencySalt {
				release := int64(math.Round(p))
				if release > 0 {
					if _, err := transferLocked(ctx, tx, "", entry.AgentID, release, types.KindCompetitionPrize, "competition "+competitionID, now); err != nil {
						return err
					}
				}
			}
		}

		c.Status = types.CompetitionFinalized
		c.WinnerID = scored[0].AgentID
		c.UpdatedAt = now
		if err := tx.PutCompetition(ctx, c); err != nil {
			return err
		}
		competition = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicCompetitionFinalized, competition.Clone())
	return competition, nil
}

// computePrizes maps each scored entry's ID to its prize amount under
// the competition's distribution strategy. scored is assumed already
// ranked by score descending, submitted_at ascending.
func computePrizes(scored []*types.CompetitionEntry, distribution types.PrizeDistribution, prizes types.PrizeConfig, total float64) map[string]float64 {
	out := make(map[string]float64, len(scored))
	switch distribution {
	case types.DistributionWinnerTakeAll:
		if len(scored) > 0 {
			out[scored[0].ID] = total
		}
	case types.DistributionTop3:
		n := len(scored)
		if n > 3 {
			n = 3
		}
		percentages := prizes.Percentages
		if len(percentages) == 0 {
			percentages = defaultTop3Percentages
		}
		for i := 0; i < n && i < len(percentages); i++ {
			out[scored[i].ID] = total * percentages[i] / 100
		}
	case types.DistributionProportional:
		var eligible []*types.CompetitionEntry
		var scoreSum float64
		for _, entry := range scored {
			if *entry.Score >= prizes.MinScore {
				eligible = append(eligible, entry)
				scoreSum += *entry.Score
			}
		}
		if scoreSum > 0 {
			for _, entry := range eligible {
				out[entry.ID] = total * *entry.Score / scoreSum
			}
		}
	}
	return out
}

// totalPrizePool derives the prize pool from the listing's currency
// and price, per spec §4.F: the listing's USDC amount if USDC, else
// the parsed Salt price.
func totalPrizePool(listing *types.Listing) (float64, error) {
	return strconv.ParseFloat(listing.Price, 64)
}

func (e *Engine) emit(topic string, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventbus.Event{Topic: topic, Payload: payload})
}
