package memstore

import (
	"context"
	"errors"
	"testing"

	"saltdig/core/types"
	"saltdig/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New()
}

func TestAgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agent := &types.Agent{ID: "agent-1", DisplayName: "Ada", Balance: 100}
	if err := s.PutAgent(ctx, agent); err != nil {
		t.Fatalf("put agent: %v", err)
	}

	got, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.Balance != 100 {
		t.Fatalf("balance = %d, want 100", got.Balance)
	}

	// mutating the returned clone must not affect the stored record
	got.Balance = 999
	reread, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if reread.Balance != 100 {
		t.Fatalf("store leaked caller mutation: balance = %d, want 100", reread.Balance)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetAgent(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestAdjustBalanceRejectsOverdraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutAgent(ctx, &types.Agent{ID: "agent-1", Balance: 10})

	if _, err := s.AdjustBalance(ctx, "agent-1", -20); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want store.ErrConflict", err)
	}

	balance, err := s.AdjustBalance(ctx, "agent-1", -5)
	if err != nil {
		t.Fatalf("adjust balance: %v", err)
	}
	if balance != 5 {
		t.Fatalf("balance = %d, want 5", balance)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutAgent(ctx, &types.Agent{ID: "agent-1", Balance: 50})

	sentinel := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.AdjustBalance(ctx, "agent-1", -10); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}

	got, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.Balance != 50 {
		t.Fatalf("balance after rollback = %d, want 50", got.Balance)
	}
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.PutAgent(ctx, &types.Agent{ID: "agent-1", Balance: 50})

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		_, err := tx.AdjustBalance(ctx, "agent-1", -10)
		return err
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}

	got, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.Balance != 40 {
		t.Fatalf("balance after commit = %d, want 40", got.Balance)
	}
}

func TestActiveOrderByListingSkipsTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.PutOrder(ctx, &types.ServiceOrder{ID: "o1", ListingID: "l1", Status: types.OrderCancelled})
	if _, err := s.ActiveOrderByListing(ctx, "l1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound for all-terminal listing", err)
	}

	_ = s.PutOrder(ctx, &types.ServiceOrder{ID: "o2", ListingID: "l1", Status: types.OrderInProgress})
	active, err := s.ActiveOrderByListing(ctx, "l1")
	if err != nil {
		t.Fatalf("active order by listing: %v", err)
	}
	if active.ID != "o2" {
		t.Fatalf("active order id = %q, want o2", active.ID)
	}
}

func TestCountEntriesByAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.PutEntry(ctx, &types.CompetitionEntry{ID: "e1", CompetitionID: "c1", AgentID: "a1"})
	_ = s.PutEntry(ctx, &types.CompetitionEntry{ID: "e2", CompetitionID: "c1", AgentID: "a1"})
	_ = s.PutEntry(ctx, &types.CompetitionEntry{ID: "e3", CompetitionID: "c1", AgentID: "a2"})

	count, err := s.CountEntriesByAgent(ctx, "c1", "a1")
	if err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}
