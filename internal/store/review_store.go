package store

import (
	"context"

	"marketplace/internal/models"
)

type ReviewStore struct {
	db DB
}

type ReviewInput struct {
	ID        string
	BookingID string
	Rating    int
	Comment   string
}

func NewReviewStore(db DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) Create(ctx context.Context, tx Execer, input ReviewInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (id, booking_id, rating, comment)
		VALUES ($1, $2, $3, $4)
	`, input.ID, input.BookingID, input.Rating, input.Comment)
	return err
}

func (s *ReviewStore) ExistsForBooking(ctx context.Context, tx Getter, bookingID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id = $1)`, bookingID)
	return exists, err
}

func (s *ReviewStore) GetByBooking(ctx context.Context, bookingID string) (models.Review, error) {
	var row models.Review
	err := s.db.GetContext(ctx, &row, `
		SELECT id, booking_id, rating, comment, created_at
		FROM reviews
		WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return models.Review{}, err
	}
	return row, nil
}
