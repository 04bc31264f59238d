package pgstore

import (
	"context"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// CompetitionByListing returns the one competition attached to a
// listing.
func (s *Store) CompetitionByListing(ctx context.Context, listingID string) (*types.Competition, error) {
	var m competitionModel
	if err := s.db.WithContext(ctx).First(&m, "listing_id = ?", listingID).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// GetCompetition looks up a competition by id.
func (s *Store) GetCompetition(ctx context.Context, id string) (*types.Competition, error) {
	var m competitionModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// PutCompetition upserts a competition.
func (s *Store) PutCompetition(ctx context.Context, competition *types.Competition) error {
	m, err := toCompetitionModel(competition)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// GetEntry looks up a competition entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (*types.CompetitionEntry, error) {
	var m competitionEntryModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// PutEntry upserts a competition entry.
func (s *Store) PutEntry(ctx context.Context, entry *types.CompetitionEntry) error {
	m, err := toCompetitionEntryModel(entry)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// EntriesByCompetition returns every entry in a competition.
func (s *Store) EntriesByCompetition(ctx context.Context, competitionID string) ([]types.CompetitionEntry, error) {
	var rows []competitionEntryModel
	if err := s.db.WithContext(ctx).Where("competition_id = ?", competitionID).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]types.CompetitionEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}

// CountEntriesByAgent counts agentID's entries in a competition,
// enforcing spec §3's MaxSubmissionsPerAgent cap.
func (s *Store) CountEntriesByAgent(ctx context.Context, competitionID, agentID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&competitionEntryModel{}).
		Where("competition_id = ? AND agent_id = ?", competitionID, agentID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return int(count), nil
}
