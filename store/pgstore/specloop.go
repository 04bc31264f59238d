package pgstore

import (
	"context"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// ActiveDepositByListing returns the one active spec deposit for a
// listing.
func (s *Store) ActiveDepositByListing(ctx context.Context, listingID string) (*types.SpecDeposit, error) {
	var m specDepositModel
	err := s.db.WithContext(ctx).
		Where("listing_id = ? AND status = ?", listingID, string(types.DepositActive)).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// GetDeposit looks up a spec deposit by id.
func (s *Store) GetDeposit(ctx context.Context, id string) (*types.SpecDeposit, error) {
	var m specDepositModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutDeposit upserts a spec deposit.
func (s *Store) PutDeposit(ctx context.Context, deposit *types.SpecDeposit) error {
	m := toSpecDepositModel(deposit)
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// GetChangeOrder looks up a change order by id.
func (s *Store) GetChangeOrder(ctx context.Context, id string) (*types.ChangeOrder, error) {
	var m changeOrderModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// PutChangeOrder upserts a change order.
func (s *Store) PutChangeOrder(ctx context.Context, order *types.ChangeOrder) error {
	m, err := toChangeOrderModel(order)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}
