package pgstore

import (
	"context"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// GetListing looks up a listing by id.
func (s *Store) GetListing(ctx context.Context, id string) (*types.Listing, error) {
	var m listingModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// PutListing upserts a listing record.
func (s *Store) PutListing(ctx context.Context, listing *types.Listing) error {
	m, err := toListingModel(listing)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}
