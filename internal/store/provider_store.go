package store

import (
	"context"

	"marketplace/internal/models"
)

type ProviderStore struct {
	db DB
}

func NewProviderStore(db DB) *ProviderStore {
	return &ProviderStore{db: db}
}

const providerColumns = `id, user_id, display_name, payout_reference, verified, location, service_radius_km, created_at, updated_at`

func (s *ProviderStore) GetByID(ctx context.Context, providerID string) (models.ProviderProfile, error) {
	var row models.ProviderProfile
	err := s.db.GetContext(ctx, &row, `SELECT `+providerColumns+` FROM provider_profiles WHERE id = $1`, providerID)
	if err != nil {
		return models.ProviderProfile{}, err
	}
	return row, nil
}

func (s *ProviderStore) SetVerified(ctx context.Context, tx Execer, providerID string, verified bool) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE provider_profiles
		SET verified = $1, updated_at = NOW()
		WHERE id = $2
	`, verified, providerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
