// Package bounty implements Component C: the authoritative state
// machines for listings, service orders, market offers, and their
// on-chain USDC shadow records. Three separate transition tables are
// kept — a listing's lifecycle, an order's lifecycle, and a USDC
// record's lifecycle never collapse into one enum, per spec §3/§4.C.
//
// Modeled on the teacher's escrow engine shape
// (native/escrow/engine_milestone.go): an injected-clock struct with
// one method per operation, sentinel-free typed errors via
// core/errors, and every compound mutation run inside one store
// transaction.
package bounty

import (
	"context"
	"time"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/eventbus"
	"saltdig/native/escrowchain"
	"saltdig/native/ledger"
	"saltdig/store"

	"github.com/google/uuid"
)

// Engine orchestrates listing, order, offer and USDC-record
// transitions.
type Engine struct {
	store  store.Store
	ledger *ledger.Ledger
	chain  *escrowchain.Gateway
	bus    *eventbus.Bus
	now    func() time.Time
}

// New builds an Engine. chain may be nil for a Salt-only deployment;
// Currency == USDC operations then fail with InvalidState.
func New(st store.Store, lg *ledger.Ledger, chain *escrowchain.Gateway, bus *eventbus.Bus, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, ledger: lg, chain: chain, bus: bus, now: now}
}

func (e *Engine) emit(topic string, payload interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventbus.Event{Topic: topic, Payload: payload})
}

// --- Listing lifecycle -----------------------------------------------
//
// active -> clarifying (spec deposit created, see native/specloop)
// clarifying -> frozen (freeze)
// active|frozen -> completed (approved terminal payout)
// any -> cancelled (poster, no committed worker)

// CreateListing validates and stores a new listing, status active.
func (e *Engine) CreateListing(ctx context.Context, listing *types.Listing) (*types.Listing, error) {
	const op = "bounty.CreateListing"
	listing.ID = nonEmpty(listing.ID, uuid.NewString())
	if err := listing.Validate(); err != nil {
		return nil, cerrors.InvalidArgument(op, "%s", err)
	}
	listing.Status = types.ListingActive
	listing.CreatedAt = e.now().Unix()
	listing.UpdatedAt = listing.CreatedAt

	if err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.PutListing(ctx, listing)
	}); err != nil {
		return nil, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	e.emit(eventbus.TopicListingStatusChanged, listing.Clone())
	return listing, nil
}

// CancelListing cancels a listing with no committed worker. Allowed
// from any status, poster-only.
func (e *Engine) CancelListing(ctx context.Context, listingID, posterID string) error {
	const op = "bounty.CancelListing"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := getListing(ctx, tx, op, listingID)
		if err != nil {
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may cancel listing %q", listingID)
		}
		if order, err := tx.ActiveOrderByListing(ctx, listingID); err == nil && order != nil {
			return cerrors.InvalidState(op, "listing %q has a committed order", listingID)
		}
		if record, err := tx.GetUSDCRecordByListing(ctx, listingID); err == nil && record != nil {
			if record.Status == types.USDCClaimed || record.Status == types.USDCSubmitted {
				return cerrors.InvalidState(op, "listing %q has a committed worker on-chain", listingID)
			}
		}
		listing.Status = types.ListingCancelled
		listing.UpdatedAt = e.now().Unix()
		if err := tx.PutListing(ctx, listing); err != nil {
			return err
		}
		e.emit(eventbus.TopicListingStatusChanged, listing.Clone())
		return nil
	})
}

func completeListingLocked(now int64, listing *types.Listing) {
	listing.Status = types.ListingCompleted
	listing.UpdatedAt = now
	listing.CompletedCount++
}

// --- Service order lifecycle -------------------------------------------
//
// pending -> in_progress (seller starts)
// pending|in_progress -> delivered (seller delivers, response required)
// delivered -> accepted (buyer accepts, triggers Salt payout)
// delivered|in_progress -> disputed (either party)

// CreateOrder opens a service order against a service-mode listing.
// At most one non-terminal order may exist per listing.
func (e *Engine) CreateOrder(ctx context.Context, listingID, buyerID string) (*types.ServiceOrder, error) {
	const op = "bounty.CreateOrder"
	var order *types.ServiceOrder
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := getListing(ctx, tx, op, listingID)
		if err != nil {
			return err
		}
		if listing.Mode != types.ListingModeService {
			return cerrors.InvalidArgument(op, "listing %q is not service mode", listingID)
		}
		if listing.Status != types.ListingActive {
			return cerrors.InvalidState(op, "listing %q is not active", listingID)
		}
		if existing, err := tx.ActiveOrderByListing(ctx, listingID); err == nil && existing != nil {
			return cerrors.Conflict(op, "listing %q already has an active order", listingID)
		}
		now := e.now().Unix()
		order = &types.ServiceOrder{
			ID:        uuid.NewString(),
			ListingID: listingID,
			BuyerID:   buyerID,
			SellerID:  listing.PosterID,
			Price:     listing.Price,
			Status:    types.OrderPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := order.Validate(); err != nil {
			return cerrors.InvalidArgument(op, "%s", err)
		}
		return tx.PutOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicOrderStatusChanged, order.Clone())
	return order, nil
}

// StartOrder transitions pending -> in_progress, seller only.
func (e *Engine) StartOrder(ctx context.Context, orderID, sellerID string) error {
	return e.transitionOrder(ctx, "bounty.StartOrder", orderID, func(op string, order *types.ServiceOrder) error {
		if order.SellerID != sellerID {
			return cerrors.Forbidden(op, "only the seller may start order %q", orderID)
		}
		if order.Status != types.OrderPending {
			return cerrors.InvalidState(op, "order %q is not pending", orderID)
		}
		order.Status = types.OrderInProgress
		return nil
	})
}

// DeliverOrder transitions pending|in_progress -> delivered, requiring
// a response artifact, seller only.
func (e *Engine) DeliverOrder(ctx context.Context, orderID, sellerID, response string) error {
	return e.transitionOrder(ctx, "bounty.DeliverOrder", orderID, func(op string, order *types.ServiceOrder) error {
		if order.SellerID != sellerID {
			return cerrors.Forbidden(op, "only the seller may deliver order %q", orderID)
		}
		if order.Status != types.OrderPending && order.Status != types.OrderInProgress {
			return cerrors.InvalidState(op, "order %q cannot be delivered from %s", orderID, order.Status)
		}
		if response == "" {
			return cerrors.InvalidArgument(op, "delivery response is required")
		}
		order.Status = types.OrderDelivered
		order.Response = response
		return nil
	})
}

// AcceptOrder transitions delivered -> accepted, buyer only, and
// triggers the Salt payout plus listing completion in one transaction.
// USDC-priced orders are out of this path's Salt transfer (their
// settlement rail is the on-chain escrow, driven by the USDC record
// state machine below), but still complete the listing.
func (e *Engine) AcceptOrder(ctx context.Context, orderID, buyerID string) error {
	const op = "bounty.AcceptOrder"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		order, err := getOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return cerrors.Forbidden(op, "only the buyer may accept order %q", orderID)
		}
		if order.Status != types.OrderDelivered {
			return cerrors.InvalidState(op, "order %q is not delivered", orderID)
		}
		listing, err := getListing(ctx, tx, op, order.ListingID)
		if err != nil {
			return err
		}
		order.Status = types.OrderAccepted
		order.UpdatedAt = e.now().Unix()
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}

		if listing.Currency == types.CurrencySalt {
			amount, perr := parseSaltAmount(order.Price)
			if perr != nil {
				return cerrors.InvalidArgument(op, "%s", perr)
			}
			if _, err := e.transferLocked(ctx, tx, order.BuyerID, order.SellerID, amount, types.KindOrderPayout, "order "+order.ID); err != nil {
				return err
			}
		}

		completeListingLocked(e.now().Unix(), listing)
		if err := tx.PutListing(ctx, listing); err != nil {
			return err
		}
		e.emit(eventbus.TopicOrderStatusChanged, order.Clone())
		e.emit(eventbus.TopicListingStatusChanged, listing.Clone())
		return nil
	})
}

// DisputeOrder transitions delivered|in_progress -> disputed, either party.
func (e *Engine) DisputeOrder(ctx context.Context, orderID, requesterID string) error {
	return e.transitionOrder(ctx, "bounty.DisputeOrder", orderID, func(op string, order *types.ServiceOrder) error {
		if !order.IsParticipant(requesterID) {
			return cerrors.Forbidden(op, "%q is not a participant in order %q", requesterID, orderID)
		}
		if order.Status != types.OrderDelivered && order.Status != types.OrderInProgress {
			return cerrors.InvalidState(op, "order %q cannot be disputed from %s", orderID, order.Status)
		}
		order.Status = types.OrderDisputed
		return nil
	})
}

func (e *Engine) transitionOrder(ctx context.Context, op, orderID string, mutate func(op string, order *types.ServiceOrder) error) error {
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		order, err := getOrder(ctx, tx, op, orderID)
		if err != nil {
			return err
		}
		if err := mutate(op, order); err != nil {
			return err
		}
		order.UpdatedAt = e.now().Unix()
		if err := tx.PutOrder(ctx, order); err != nil {
			return err
		}
		e.emit(eventbus.TopicOrderStatusChanged, order.Clone())
		return nil
	})
}

// --- Market offers -------------------------------------------------------

// CreateOffer records an advisory offer against a listing.
func (e *Engine) CreateOffer(ctx context.Context, listingID, agentID, text string, price string) (*types.MarketOffer, error) {
	const op = "bounty.CreateOffer"
	var offer *types.MarketOffer
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing, err := getListing(ctx, tx, op, listingID)
		if err != nil {
			return err
		}
		if listing.Status != types.ListingActive {
			return cerrors.InvalidState(op, "listing %q is not active", listingID)
		}
		now := e.now().Unix()
		offer = &types.MarketOffer{
			ID:        uuid.NewString(),
			ListingID: listingID,
			OfferorID: agentID,
			Text:      text,
			Price:     price,
			Status:    types.OfferPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.PutOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	e.emit(eventbus.TopicOrderStatusChanged, offer.Clone())
	return offer, nil
}

// AcceptOffer accepts a pending offer. On a Salt listing this triggers
// a Ledger transfer from the poster to the offering agent, per spec §3.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, posterID string) error {
	const op = "bounty.AcceptOffer"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "offer %q not found", offerID)
			}
			return err
		}
		if offer.Status != types.OfferPending {
			return cerrors.InvalidState(op, "offer %q is not pending", offerID)
		}
		listing, err := getListing(ctx, tx, op, offer.ListingID)
		if err != nil {
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may accept offers on listing %q", offer.ListingID)
		}
		offer.Status = types.OfferAccepted
		offer.UpdatedAt = e.now().Unix()
		if err := tx.PutOffer(ctx, offer); err != nil {
			return err
		}
		if listing.Currency == types.CurrencySalt {
			amount, perr := parseSaltAmount(offer.Price)
			if perr != nil {
				return cerrors.InvalidArgument(op, "%s", perr)
			}
			if _, err := e.transferLocked(ctx, tx, posterID, offer.OfferorID, amount, types.KindOfferAccept, "offer "+offer.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// RejectOffer rejects a pending offer, poster only.
func (e *Engine) RejectOffer(ctx context.Context, offerID, posterID string) error {
	const op = "bounty.RejectOffer"
	return e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		offer, err := tx.GetOffer(ctx, offerID)
		if err != nil {
			if err == store.ErrNotFound {
				return cerrors.NotFound(op, "offer %q not found", offerID)
			}
			return err
		}
		listing, err := getListing(ctx, tx, op, offer.ListingID)
		if err != nil {
			return err
		}
		if !listing.IsOwner(posterID) {
			return cerrors.Forbidden(op, "only the poster may reject offers on listing %q", offer.ListingID)
		}
		if offer.Status != types.OfferPending {
			return cerrors.InvalidState(op, "offer %q is not pending", offerID)
		}
		offer.Status = types.OfferRejected
		offer.UpdatedAt = e.now().Unix()
		return tx.PutOffer(ctx, offer)
	})
}

func getListing(ctx context.Context, tx store.Store, op, id string) (*types.Listing, error) {
	listing, err := tx.GetListing(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "listing %q not found", id)
		}
		return nil, err
	}
	return listing, nil
}

func getOrder(ctx context.Context, tx store.Store, op, id string) (*types.ServiceOrder, error) {
	order, err := tx.GetOrder(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "order %q not found", id)
		}
		return nil, err
	}
	return order, nil
}

func nonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
