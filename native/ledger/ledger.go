// Package ledger implements the Salt double-entry journal: Component A
// of the core engine. native/bounty, native/milestone, native/specloop
// and native/competition do not call it: each moves Salt through its
// own in-transaction transferLocked helper against the store.
package ledger

import (
	"context"
	"time"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/observability/metrics"
	"saltdig/store"

	"github.com/google/uuid"
)

// MaxTransferAmount bounds a single transfer, per spec §4.A.
const MaxTransferAmount = 10_000

// Ledger orchestrates Salt balance transfers and history, modeled on
// the teacher's injected-clock engine shape (escrow.MilestoneEngine).
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// New builds a Ledger bound to the supplied store. now defaults to
// time.Now when nil.
func New(st store.Store, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{store: st, now: now}
}

// Balance returns the agent's current Salt balance.
func (l *Ledger) Balance(ctx context.Context, agentID string) (int64, error) {
	const op = "ledger.Balance"
	agent, err := l.store.GetAgent(ctx, agentID)
	if err != nil {
		if err == store.ErrNotFound {
			return 0, cerrors.NotFound(op, "agent %q not found", agentID)
		}
		return 0, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	return agent.Balance, nil
}

// Transfer moves amount of Salt from one agent to another, appending a
// journal entry, inside one atomic store transaction. Either side may
// be empty to denote a system issuance or burn, per spec §3.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount int64, kind, description string) (*types.LedgerEntry, error) {
	const op = "ledger.Transfer"
	if amount <= 0 {
		return nil, cerrors.InvalidArgument(op, "amount must be positive")
	}
	if amount > MaxTransferAmount {
		return nil, cerrors.InvalidArgument(op, "amount %d exceeds max transfer %d", amount, MaxTransferAmount)
	}
	if from != "" && from == to {
		return nil, cerrors.InvalidArgument(op, "self-transfers are not allowed")
	}

	entry := &types.LedgerEntry{
		ID:          uuid.NewString(),
		FromAgentID: from,
		ToAgentID:   to,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		CreatedAt:   l.now().Unix(),
	}
	if err := entry.Validate(); err != nil {
		return nil, cerrors.InvalidArgument(op, "%s", err)
	}

	txErr := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if from != "" {
			newBal, err := tx.AdjustBalance(ctx, from, -amount)
			if err != nil {
				if err == store.ErrNotFound {
					return cerrors.NotFound(op, "agent %q not found", from)
				}
				if err == store.ErrConflict {
					return cerrors.InsufficientFunds(op, "agent %q has insufficient balance for transfer of %d", from, amount)
				}
				return cerrors.Wrap(cerrors.KindUnknown, op, err)
			}
			if newBal < 0 {
				return cerrors.InsufficientFunds(op, "agent %q balance %d insufficient for transfer of %d", from, newBal+amount, amount)
			}
		}
		if to != "" {
			if _, err := tx.AdjustBalance(ctx, to, amount); err != nil {
				if err == store.ErrNotFound {
					return cerrors.NotFound(op, "agent %q not found", to)
				}
				return cerrors.Wrap(cerrors.KindUnknown, op, err)
			}
		}
		return tx.AppendLedgerEntry(ctx, entry)
	})
	if txErr != nil {
		return nil, txErr
	}

	metrics.LedgerTransfersTotal.WithLabelValues(kind).Inc()
	return entry, nil
}

// History returns the most recent entries touching agentID, newest first.
func (l *Ledger) History(ctx context.Context, agentID string, limit int) ([]types.LedgerEntry, error) {
	const op = "ledger.History"
	if limit <= 0 {
		limit = 50
	}
	entries, err := l.store.LedgerHistory(ctx, agentID, limit)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	return entries, nil
}

// RichList returns the top limit agents by Salt balance, descending.
func (l *Ledger) RichList(ctx context.Context, limit int) ([]types.Agent, error) {
	const op = "ledger.RichList"
	if limit <= 0 {
		limit = 10
	}
	agents, err := l.store.RichList(ctx, limit)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	return agents, nil
}
