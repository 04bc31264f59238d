package pgstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"saltdig/core/types"
	"saltdig/store"
)

// setupTestDB mirrors server_test.go's setupTestDB: an in-memory,
// shared-cache sqlite database gives each test its own isolated schema
// without a real Postgres instance.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &Store{db: db}
}

func TestAgentRoundTrip(t *testing.T) {
	s := setupTestDB(t)
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

	got.DisplayName = "Changed"
	if err := s.PutAgent(ctx, got); err != nil {
		t.Fatalf("put agent (update): %v", err)
	}
	reread, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if reread.DisplayName != "Changed" {
		t.Fatalf("display name = %q, want Changed", reread.DisplayName)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	s := setupTestDB(t)
	if _, err := s.GetAgent(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound", err)
	}
}

func TestAdjustBalanceRejectsOverdraft(t *testing.T) {
	s := setupTestDB(t)
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
	s := setupTestDB(t)
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
	s := setupTestDB(t)
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
	s := setupTestDB(t)
	ctx := context.Background()

	_ = s.PutOrder(ctx, &types.ServiceOrder{ID: "o1", ListingID: "l1", BuyerID: "b", SellerID: "x", Status: types.OrderCancelled})
	if _, err := s.ActiveOrderByListing(ctx, "l1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want store.ErrNotFound for all-terminal listing", err)
	}

	_ = s.PutOrder(ctx, &types.ServiceOrder{ID: "o2", ListingID: "l1", BuyerID: "b", SellerID: "y", Status: types.OrderInProgress})
	active, err := s.ActiveOrderByListing(ctx, "l1")
	if err != nil {
		t.Fatalf("active order by listing: %v", err)
	}
	if active.ID != "o2" {
		t.Fatalf("active order id = %q, want o2", active.ID)
	}
}

func TestListingGraphRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	listing := &types.Listing{
		ID:       "l1",
		PosterID: "p1",
		Currency: types.CurrencySalt,
		Mode:     types.ListingModeBounty,
		Status:   types.ListingActive,
		Graph: &types.BountyGraph{
			Nodes: []types.DAGNode{{ID: "n1", Status: "pending", Depends: []string{"n0"}, Cost: 1.5}},
			Edges: []types.DAGEdge{{From: "n0", To: "n1"}},
		},
	}
	if err := s.PutListing(ctx, listing); err != nil {
		t.Fatalf("put listing: %v", err)
	}

	got, err := s.GetListing(ctx, "l1")
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Graph == nil || len(got.Graph.Nodes) != 1 || got.Graph.Nodes[0].ID != "n1" {
		t.Fatalf("graph did not round trip: %+v", got.Graph)
	}
}

func TestUSDCRecordLookupByHash(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var hash [32]byte
	hash[0] = 0xAB
	record := &types.USDCTransactionRecord{ID: "u1", ListingID: "l1", PosterID: "p1", BountyHash: hash, Status: types.USDCCreated}
	if err := s.PutUSDCRecord(ctx, record); err != nil {
		t.Fatalf("put usdc record: %v", err)
	}

	got, err := s.GetUSDCRecordByHash(ctx, hash)
	if err != nil {
		t.Fatalf("get usdc record by hash: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("id = %q, want u1", got.ID)
	}
}

func TestCountEntriesByAgent(t *testing.T) {
	s := setupTestDB(t)
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
