// Package memstore is an in-memory store.Store, concurrency-safe via a
// single mutex guarding every table, modeled on the teacher's
// p2p.Peerstore (in-memory maps behind one lock, snapshot-and-restore
// in place of a real transaction log). It backs component unit tests
// and is usable standalone for local development; store/pgstore is
// the durable implementation.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"saltdig/core/types"
	"saltdig/store"
)

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu sync.Mutex

	agents       map[string]*types.Agent
	ledger       []types.LedgerEntry
	listings     map[string]*types.Listing
	orders       map[string]*types.ServiceOrder
	offers       map[string]*types.MarketOffer
	usdc         map[string]*types.USDCTransactionRecord
	milestones   map[string]*types.Milestone
	submissions  map[string]*types.MilestoneSubmission // keyed by milestone id, latest only
	deposits     map[string]*types.SpecDeposit
	changeOrders map[string]*types.ChangeOrder
	competitions map[string]*types.Competition
	entries      map[string]*types.CompetitionEntry
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		agents:       make(map[string]*types.Agent),
		listings:     make(map[string]*types.Listing),
		orders:       make(map[string]*types.ServiceOrder),
		offers:       make(map[string]*types.MarketOffer),
		usdc:         make(map[string]*types.USDCTransactionRecord),
		milestones:   make(map[string]*types.Milestone),
		submissions:  make(map[string]*types.MilestoneSubmission),
		deposits:     make(map[string]*types.SpecDeposit),
		changeOrders: make(map[string]*types.ChangeOrder),
		competitions: make(map[string]*types.Competition),
		entries:      make(map[string]*types.CompetitionEntry),
	}
}

// snapshot deep-copies every table so WithinTx can roll back on error.
// The store is small enough (in-memory test/dev use) that copying the
// whole state per transaction is simpler than a real undo log.
func (s *Store) snapshot() *Store {
	clone := &Store{
		agents:       make(map[string]*types.Agent, len(s.agents)),
		ledger:       append([]types.LedgerEntry(nil), s.ledger...),
		listings:     make(map[string]*types.Listing, len(s.listings)),
		orders:       make(map[string]*types.ServiceOrder, len(s.orders)),
		offers:       make(map[string]*types.MarketOffer, len(s.offers)),
		usdc:         make(map[string]*types.USDCTransactionRecord, len(s.usdc)),
		milestones:   make(map[string]*types.Milestone, len(s.milestones)),
		submissions:  make(map[string]*types.MilestoneSubmission, len(s.submissions)),
		deposits:     make(map[string]*types.SpecDeposit, len(s.deposits)),
		changeOrders: make(map[string]*types.ChangeOrder, len(s.changeOrders)),
		competitions: make(map[string]*types.Competition, len(s.competitions)),
		entries:      make(map[string]*types.CompetitionEntry, len(s.entries)),
	}
	for k, v := range s.agents {
		clone.agents[k] = v.Clone()
	}
	for k, v := range s.listings {
		clone.listings[k] = v.Clone()
	}
	for k, v := range s.orders {
		clone.orders[k] = v.Clone()
	}
	for k, v := range s.offers {
		clone.offers[k] = v.Clone()
	}
	for k, v := range s.usdc {
		clone.usdc[k] = v.Clone()
	}
	for k, v := range s.milestones {
		clone.milestones[k] = v.Clone()
	}
	for k, v := range s.submissions {
		clone.submissions[k] = v.Clone()
	}
	for k, v := range s.deposits {
		clone.deposits[k] = v.Clone()
	}
	for k, v := range s.changeOrders {
		clone.changeOrders[k] = v.Clone()
	}
	for k, v := range s.competitions {
		clone.competitions[k] = v.Clone()
	}
	for k, v := range s.entries {
		clone.entries[k] = v.Clone()
	}
	return clone
}

func (s *Store) restore(from *Store) {
	s.agents = from.agents
	s.ledger = from.ledger
	s.listings = from.listings
	s.orders = from.orders
	s.offers = from.offers
	s.usdc = from.usdc
	s.milestones = from.milestones
	s.submissions = from.submissions
	s.deposits = from.deposits
	s.changeOrders = from.changeOrders
	s.competitions = from.competitions
	s.entries = from.entries
}

// WithinTx runs fn against s, rolling every table back to its pre-call
// state if fn returns an error. fn's own calls into tx take the same
// per-method lock as any standalone call, so the lock is not held
// across fn itself — only around the snapshot and the rollback. Two
// concurrent WithinTx calls can interleave their individual reads and
// writes; callers that need true isolation should serialize at a
// higher level, as the teacher's p2p.Peerstore callers do. There is no
// nested transaction support: fn must not call WithinTx again.
func (s *Store) WithinTx(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	before := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx, s); err != nil {
		s.mu.Lock()
		s.restore(before)
		s.mu.Unlock()
		return err
	}
	return nil
}

// GetAgent implements store.AgentStore.
func (s *Store) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

// PutAgent implements store.AgentStore.
func (s *Store) PutAgent(ctx context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent.Clone()
	return nil
}

// AdjustBalance implements store.AgentStore.
func (s *Store) AdjustBalance(ctx context.Context, agentID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if a.Balance+delta < 0 {
		return 0, store.ErrConflict
	}
	a.Balance += delta
	return a.Balance, nil
}

// RichList implements store.AgentStore.
func (s *Store) RichList(ctx context.Context, limit int) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendLedgerEntry implements store.LedgerStore.
func (s *Store) AppendLedgerEntry(ctx context.Context, entry *types.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, *entry.Clone())
	return nil
}

// LedgerHistory implements store.LedgerStore.
func (s *Store) LedgerHistory(ctx context.Context, agentID string, limit int) ([]types.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0; i-- {
		e := s.ledger[i]
		if e.FromAgentID == agentID || e.ToAgentID == agentID {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// GetListing implements store.ListingStore.
func (s *Store) GetListing(ctx context.Context, id string) (*types.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return l.Clone(), nil
}

// PutListing implements store.ListingStore.
func (s *Store) PutListing(ctx context.Context, listing *types.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.ID] = listing.Clone()
	return nil
}

// GetOrder implements store.OrderStore.
func (s *Store) GetOrder(ctx context.Context, id string) (*types.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o.Clone(), nil
}

// PutOrder implements store.OrderStore.
func (s *Store) PutOrder(ctx context.Context, order *types.ServiceOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order.Clone()
	return nil
}

// ActiveOrderByListing implements store.OrderStore.
func (s *Store) ActiveOrderByListing(ctx context.Context, listingID string) (*types.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ListingID == listingID && !o.Status.Terminal() {
			return o.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetOffer implements store.OfferStore.
func (s *Store) GetOffer(ctx context.Context, id string) (*types.MarketOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o.Clone(), nil
}

// PutOffer implements store.OfferStore.
func (s *Store) PutOffer(ctx context.Context, offer *types.MarketOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers[offer.ID] = offer.Clone()
	return nil
}

// OffersByListing implements store.OfferStore.
func (s *Store) OffersByListing(ctx context.Context, listingID string) ([]types.MarketOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.MarketOffer
	for _, o := range s.offers {
		if o.ListingID == listingID {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// GetUSDCRecord implements store.USDCStore.
func (s *Store) GetUSDCRecord(ctx context.Context, id string) (*types.USDCTransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.usdc[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.Clone(), nil
}

// GetUSDCRecordByHash implements store.USDCStore.
func (s *Store) GetUSDCRecordByHash(ctx context.Context, hash [32]byte) (*types.USDCTransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.usdc {
		if r.BountyHash == hash {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetUSDCRecordByListing implements store.USDCStore.
func (s *Store) GetUSDCRecordByListing(ctx context.Context, listingID string) (*types.USDCTransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.usdc {
		if r.ListingID == listingID {
			return r.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// PutUSDCRecord implements store.USDCStore.
func (s *Store) PutUSDCRecord(ctx context.Context, record *types.USDCTransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usdc[record.ID] = record.Clone()
	return nil
}

// SubmittedUSDCRecords implements store.USDCStore.
func (s *Store) SubmittedUSDCRecords(ctx context.Context, before time.Time) ([]types.USDCTransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.USDCTransactionRecord
	for _, r := range s.usdc {
		if r.Status == types.USDCSubmitted && time.Unix(r.SubmittedAt, 0).Before(before) {
			out = append(out, *r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt < out[j].SubmittedAt })
	return out, nil
}

// MilestonesByListing implements store.MilestoneStore.
func (s *Store) MilestonesByListing(ctx context.Context, listingID string) ([]types.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Milestone
	for _, m := range s.milestones {
		if m.ListingID == listingID {
			out = append(out, *m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

// PutMilestones implements store.MilestoneStore.
func (s *Store) PutMilestones(ctx context.Context, milestones []types.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range milestones {
		m := milestones[i]
		s.milestones[m.ID] = m.Clone()
	}
	return nil
}

// GetMilestone implements store.MilestoneStore.
func (s *Store) GetMilestone(ctx context.Context, id string) (*types.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.milestones[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// PutMilestone implements store.MilestoneStore.
func (s *Store) PutMilestone(ctx context.Context, milestone *types.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestones[milestone.ID] = milestone.Clone()
	return nil
}

// LatestSubmission implements store.MilestoneStore.
func (s *Store) LatestSubmission(ctx context.Context, milestoneID string) (*types.MilestoneSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[milestoneID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sub.Clone(), nil
}

// PutSubmission implements store.MilestoneStore.
func (s *Store) PutSubmission(ctx context.Context, submission *types.MilestoneSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.MilestoneID] = submission.Clone()
	return nil
}

// ActiveDepositByListing implements store.SpecLoopStore.
func (s *Store) ActiveDepositByListing(ctx context.Context, listingID string) (*types.SpecDeposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deposits {
		if d.ListingID == listingID && d.Status == types.DepositActive {
			return d.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetDeposit implements store.SpecLoopStore.
func (s *Store) GetDeposit(ctx context.Context, id string) (*types.SpecDeposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

// PutDeposit implements store.SpecLoopStore.
func (s *Store) PutDeposit(ctx context.Context, deposit *types.SpecDeposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits[deposit.ID] = deposit.Clone()
	return nil
}

// GetChangeOrder implements store.SpecLoopStore.
func (s *Store) GetChangeOrder(ctx context.Context, id string) (*types.ChangeOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.changeOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o.Clone(), nil
}

// PutChangeOrder implements store.SpecLoopStore.
func (s *Store) PutChangeOrder(ctx context.Context, order *types.ChangeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changeOrders[order.ID] = order.Clone()
	return nil
}

// CompetitionByListing implements store.CompetitionStore.
func (s *Store) CompetitionByListing(ctx context.Context, listingID string) (*types.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.competitions {
		if c.ListingID == listingID {
			return c.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetCompetition implements store.CompetitionStore.
func (s *Store) GetCompetition(ctx context.Context, id string) (*types.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

// PutCompetition implements store.CompetitionStore.
func (s *Store) PutCompetition(ctx context.Context, competition *types.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.competitions[competition.ID] = competition.Clone()
	return nil
}

// GetEntry implements store.CompetitionStore.
func (s *Store) GetEntry(ctx context.Context, id string) (*types.CompetitionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

// PutEntry implements store.CompetitionStore.
func (s *Store) PutEntry(ctx context.Context, entry *types.CompetitionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry.Clone()
	return nil
}

// EntriesByCompetition implements store.CompetitionStore.
func (s *Store) EntriesByCompetition(ctx context.Context, competitionID string) ([]types.CompetitionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.CompetitionEntry
	for _, e := range s.entries {
		if e.CompetitionID == competitionID {
			out = append(out, *e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// CountEntriesByAgent implements store.CompetitionStore.
func (s *Store) CountEntriesByAgent(ctx context.Context, competitionID, agentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries {
		if e.CompetitionID == competitionID && e.AgentID == agentID {
			count++
		}
	}
	return count, nil
}
