package store

import (
	"context"

	"marketplace/internal/models"
)

type MessageStore struct {
	db DB
}

type MessageInput struct {
	ID            string
	BookingID     string
	SenderID      string
	RecipientID   string
	Content       string
	AttachmentRef *string
}

func NewMessageStore(db DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(ctx context.Context, tx Getter, input MessageInput) (models.Message, error) {
	var row models.Message
	err := tx.GetContext(ctx, &row, `
		INSERT INTO messages (id, booking_id, sender_id, recipient_id, content, attachment_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, booking_id, sender_id, recipient_id, content, attachment_ref, is_read, created_at
	`, input.ID, input.BookingID, input.SenderID, input.RecipientID, input.Content, input.AttachmentRef)
	if err != nil {
		return models.Message{}, err
	}
	return row, nil
}

// ListByBooking returns a booking's messages in insertion order.
func (s *MessageStore) ListByBooking(ctx context.Context, bookingID string) ([]models.Message, error) {
	rows := []models.Message{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, booking_id, sender_id, recipient_id, content, attachment_ref, is_read, created_at
		FROM messages
		WHERE booking_id = $1
		ORDER BY seq ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, bookingID, recipientID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE booking_id = $1 AND recipient_id = $2 AND is_read = FALSE
	`, bookingID, recipientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MessageStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM messages
		WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID)
	return count, err
}
