package pgstore

import (
	"context"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// GetOrder looks up a service order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (*types.ServiceOrder, error) {
	var m serviceOrderModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutOrder upserts a service order record.
func (s *Store) PutOrder(ctx context.Context, order *types.ServiceOrder) error {
	m := toServiceOrderModel(order)
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// ActiveOrderByListing returns the one non-terminal order for a
// listing, enforcing spec §3's "at most one active order per listing"
// invariant the same way memstore does: filter in the query rather
// than maintain a separate uniqueness column, since "terminal" is a
// derived property of OrderStatus.
func (s *Store) ActiveOrderByListing(ctx context.Context, listingID string) (*types.ServiceOrder, error) {
	var m serviceOrderModel
	err := s.db.WithContext(ctx).
		Where("listing_id = ? AND status NOT IN ?", listingID, terminalOrderStatuses()).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

func terminalOrderStatuses() []string {
	return []string{
		string(types.OrderAccepted),
		string(types.OrderDisputed),
		string(types.OrderCancelled),
	}
}

// GetOffer looks up a market offer by id.
func (s *Store) GetOffer(ctx context.Context, id string) (*types.MarketOffer, error) {
	var m marketOfferModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutOffer upserts a market offer record.
func (s *Store) PutOffer(ctx context.Context, offer *types.MarketOffer) error {
	m := toMarketOfferModel(offer)
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// OffersByListing returns every offer against a listing, newest first.
func (s *Store) OffersByListing(ctx context.Context, listingID string) ([]types.MarketOffer, error) {
	var rows []marketOfferModel
	err := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]types.MarketOffer, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}
