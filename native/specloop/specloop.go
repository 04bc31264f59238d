// Package specloop implements Component E: commitment deposits during
// the Clarify phase and change-order pricing over a listing's task
// DAG. The DAG impact analysis (CalculateChangeImpact) is kept as a
// standalone pure function over value types, grounded on the
// teacher's habit of isolating graph-traversal code
// (native/escrow/trade_engine.go's settlement walk) from the engine
// that calls it.
package specloop

import (
	"context"
	"math"
	"time"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/eventbus"
	"saltdig/store"

	"github.com/google/uuid"
)

const changeOrderDeltaRate = 0.20

// Engine orchestrates spec deposits and change orders.
type Engine struct {
	store store.Store
	bus   *eventbus.Bus
	now   func() time.Time
}

// New builds a specloop Engine.
func New(st store.Store, bus *eventbus.Bus, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, bus: bus, now: now}
}

// CreateSpecDeposit debits amount from poster and opens a commitment
// deposit, transitioning the listing into clarifying.
func (e *Engine) CreateSpecDeposit(ctx context.Context, listingID, posterID string, amount int64, currency types.Currency) (*types.SpecDeposit, error) {
	const op = "specloop.CreateSpecDeposit"
	var deposit *types.SpecDeposit
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", listingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the listing's poster may open a spec deposit")
		}
		if listing.Status != types.ListingActive && listing.Status != types.ListingClarifying {
			return cerrors.InvalidState(op, "listing %q is not active or clarifying", listingID)
		}

		now := e.now().Unix()
		deposit = &types.SpecDeposit{
			ID:          uuid.NewString(),
			ListingID:   listingID,
			DepositorID: posterID,
			Amount:      amount,
			Currency:    currency,
			Status:      types.DepositActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := deposit.Validate(); err != nil {
			return cerrors.InvalidArgument(op, "%s", err)
		}

		if currency == types.CurrencySalt {
			if _, err := transferLocked(ctx, tx, posterID, "", amount, types.KindSpecDeposit, "spec deposit "+deposit.ID, now); err != nil {
				return err
			}
		}

		if err := tx.PutDeposit(ctx, deposit); err != nil {
			return err
		}
		listing.Status = types.ListingClarifying
		listing.UpdatedAt = now
		if err := tx.PutListing(ctx, listing); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// Consume debits amount from an active deposit's remaining balance,
// recording a review-payment ledger entry. The deposit transitions to
// consumed once its remaining balance reaches zero.
func (e *Engine) Consume(ctx context.Context, listingID, reason string, amount int64) (*types.SpecDeposit, error) {
	const op = "specloop.Consume"
	if amount <= 0 {
		return nil, cerrors.InvalidArgument(op, "amount must be positive")
	}
	var deposit *types.SpecDeposit
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		d, err := activeDeposit(ctx, tx, op, listingID)
		if err != nil {
			return err
		}
		if amount > d.Remaining() {
			return cerrors.InvalidArgument(op, "amount %d exceeds remaining deposit balance %d", amount, d.Remaining())
		}
		now := e.now().Unix()
		d.Consumed += amount
		d.UpdatedAt = now
		if d.Consumed == d.Amount {
			d.Status = types.DepositConsumed
		}
		if d.Currency == types.CurrencySalt {
			if _, err := transferLocked(ctx, tx, "", "", amount, types.KindSpecReviewPayment, reason, now); err != nil {
				return err
			}
		}
		if err := tx.PutDeposit(ctx, d); err != nil {
			return err
		}
		deposit = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicSpecDepositConsumed, deposit.Clone())
	return deposit, nil
}

// Freeze closes out the Clarify phase, poster only, refunding the
// deposit's unconsumed balance and transitioning the listing to
// frozen.
func (e *Engine) Freeze(ctx context.Context, listingID, posterID string) (*types.SpecDeposit, error) {
	const op = "specloop.Freeze"
	var deposit *types.SpecDeposit
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", listingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may freeze listing %q", listingID)
		}
		if listing.Status != types.ListingClarifying {
			return cerrors.InvalidState(op, "listing %q is not clarifying", listingID)
		}
		d, err := tx.ActiveDepositByListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "no active deposit for listing %q", listingID)
			}
			return err
		}

		now := e.now().Unix()
		refund := d.Remaining()
		d.Status = types.DepositFrozen
		d.FrozenAt = now
		d.UpdatedAt = now
		if refund > 0 && d.Currency == types.CurrencySalt {
			if _, err := transferLocked(ctx, tx, "", d.DepositorID, refund, types.KindSpecFreezeCredit, "freeze refund "+d.ID, now); err != nil {
				return err
			}
		}
		if err := tx.PutDeposit(ctx, d); err != nil {
			return err
		}
		listing.Status = types.ListingFrozen
		listing.UpdatedAt = now
		if err := tx.PutListing(ctx, listing); err != nil {
			return err
		}
		deposit = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicSpecDepositFrozen, deposit.Clone())
	return deposit, nil
}

// CreateChangeOrder prices a post-freeze scope change against the
// listing's stored DAG and stores the resulting pending order.
func (e *Engine) CreateChangeOrder(ctx context.Context, listingID, requesterID, description string, affectedNodes []string) (*types.ChangeOrder, error) {
	const op = "specloop.CreateChangeOrder"
	if len(affectedNodes) == 0 {
		return nil, cerrors.InvalidArgument(op, "at least one affected node is required")
	}
	var order *types.ChangeOrder
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", listingID)
			}
			return err
		}
		if listing.Status != types.ListingFrozen {
			return cerrors.InvalidState(op, "listing %q is not frozen", listingID)
		}
		if listing.Graph == nil {
			return cerrors.InvalidState(op, "listing %q has no task graph", listingID)
		}
		report := CalculateChangeImpact(listing.Graph, affectedNodes)

		now := e.now().Unix()
		order = &types.ChangeOrder{
			ID:            uuid.NewString(),
			ListingID:     listingID,
			RequesterID:   requesterID,
			Description:   description,
			AffectedNodes: report.Changed,
			DeltaCost:     report.DeltaCost,
			DeltaCurrency: listing.Currency,
			Status:        types.ChangeOrderPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.PutChangeOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicChangeOrderCreated, order.Clone())
	return order, nil
}

// ApproveChangeOrder transitions a pending change order to approved,
// poster only. Materializing a delta escrow is out of scope here; a
// later step not covered by this core is expected to mark the order
// implemented.
func (e *Engine) ApproveChangeOrder(ctx context.Context, orderID, posterID string) (*types.ChangeOrder, error) {
	const op = "specloop.ApproveChangeOrder"
	var order *types.ChangeOrder
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		co, err := tx.GetChangeOrder(ctx, orderID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "change order %q not found", orderID)
			}
			return err
		}
		listing, err := tx.GetListing(ctx, co.ListingID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "listing %q not found", co.ListingID)
			}
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may approve change order %q", orderID)
		}
		if listing.Status != types.ListingFrozen {
			return cerrors.InvalidState(op, "listing %q is not frozen", co.ListingID)
		}
		if co.Status != types.ChangeOrderPending {
			return cerrors.InvalidState(op, "change order %q is not pending", orderID)
		}
		now := e.now().Unix()
		co.Status = types.ChangeOrderApproved
		co.ApprovedAt = now
		co.UpdatedAt = now
		if err := tx.PutChangeOrder(ctx, co); err != nil {
			return err
		}
		order = co
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicChangeOrderApproved, order.Clone())
	return order, nil
}

// CalculateChangeImpact runs the BFS-over-reverse-dependency-map
// impact analysis described for the task DAG: seeds are changed,
// depth-1 reachable nodes are direct, depth≥2 are transitive,
// delta_cost is 20% of the affected set's total cost rounded up, and
// risk is tiered by the affected node count. The analysis is pure and
// deterministic for a given graph and seed set.
func CalculateChangeImpact(graph *types.BountyGraph, seedIDs []string) types.ImpactReport {
	rev := make(map[string][]string)
	for _, n := range graph.Nodes {
		for _, dep := range n.Depends {
			rev[dep] = append(rev[dep], n.ID)
		}
	}

	changed := append([]string(nil), seedIDs...)
	visited := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		visited[id] = true
	}

	var direct, transitive []string
	frontier := append([]string(nil), seedIDs...)
	depth := 0
	for len(frontier) > 0 {
		depth++
		var next []string
		for _, id := range frontier {
			for _, child := range rev[id] {
				if visited[child] {
					continue
				}
				visited[child] = true
				if depth == 1 {
					direct = append(direct, child)
				} else {
					transitive = append(transitive, child)
				}
				next = append(next, child)
			}
		}
		frontier = next
	}

	affected := make([]string, 0, len(changed)+len(direct)+len(transitive))
	affected = append(affected, changed...)
	affected = append(affected, direct...)
	affected = append(affected, transitive...)

	var costSum float64
	for _, id := range affected {
		if node := graph.NodeByID(id); node != nil {
			costSum += node.Cost
		}
	}
	deltaCost := math.Ceil(costSum * changeOrderDeltaRate)

	total := len(affected)
	var risk types.RiskLevel
	switch {
	case total <= 2:
		risk = types.RiskLow
	case total <= 5:
		risk = types.RiskMedium
	default:
		risk = types.RiskHigh
	}

	return types.ImpactReport{
		Changed:    changed,
		Direct:     direct,
		Transitive: transitive,
		Total:      total,
		DeltaCost:  deltaCost,
		Risk:       risk,
		Reasoning:  reasoning(total, risk),
	}
}

func reasoning(total int, risk types.RiskLevel) string {
	switch risk {
	case types.RiskLow:
		return "few nodes affected; change is isolated"
	case types.RiskMedium:
		return "moderate reverse-dependency fan-out"
	default:
		return "large reverse-dependency fan-out across the task graph"
	}
}

func activeDeposit(ctx context.Context, tx store.Store, op, listingID string) (*types.SpecDeposit, error) {
	d, err := tx.ActiveDepositByListing(ctx, listingID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "no active deposit for listing %q", listingID)
		}
		return nil, err
	}
	if d.Status != types.DepositActive {
		return nil, cerrors.InvalidState(op, "deposit %q is not active", d.ID)
	}
	return d, nil
}

func (e *Engine) emit(topic string, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventbus.Event{Topic: topic, Payload: payload})
}
