package store

import (
	"context"
	"time"

	"marketplace/internal/models"

	"github.com/shopspring/decimal"
)

type BookingStore struct {
	db DB
}

type BookingInput struct {
	ID          string
	CustomerID  string
	ProviderID  string
	ServiceID   string
	ScheduledAt time.Time
	Address     string
	Description string
	Notes       string
}

type BookingFilter struct {
	CustomerID     string
	ProviderUserID string
	Status         models.BookingStatus
	Limit          int
	Offset         int
}

func NewBookingStore(db DB) *BookingStore {
	return &BookingStore{db: db}
}

const bookingSelect = `
		SELECT b.id, b.customer_id, b.provider_id, p.user_id AS provider_user_id, b.service_id,
		       b.status, b.amount, b.scheduled_at, b.address, b.description, b.notes,
		       b.created_at, b.updated_at
		FROM bookings b
		JOIN provider_profiles p ON p.id = b.provider_id
`

func (s *BookingStore) Create(ctx context.Context, tx Execer, input BookingInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (id, customer_id, provider_id, service_id, status, scheduled_at, address, description, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, input.ID, input.CustomerID, input.ProviderID, input.ServiceID, models.BookingPendingProvider,
		input.ScheduledAt, input.Address, input.Description, input.Notes)
	return err
}

func (s *BookingStore) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	var row models.Booking
	if err := s.db.GetContext(ctx, &row, bookingSelect+`WHERE b.id = $1`, bookingID); err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

// GetForUpdate locks the booking row until the surrounding transaction ends.
func (s *BookingStore) GetForUpdate(ctx context.Context, tx Getter, bookingID string) (models.Booking, error) {
	var row models.Booking
	if err := tx.GetContext(ctx, &row, bookingSelect+`WHERE b.id = $1 FOR UPDATE OF b`, bookingID); err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

// GetForShare blocks concurrent transitions but not other readers.
func (s *BookingStore) GetForShare(ctx context.Context, tx Getter, bookingID string) (models.Booking, error) {
	var row models.Booking
	if err := tx.GetContext(ctx, &row, bookingSelect+`WHERE b.id = $1 FOR SHARE OF b`, bookingID); err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

// UpdateStatus moves the booking only if it is still in status from.
func (s *BookingStore) UpdateStatus(ctx context.Context, tx Execer, bookingID string, from, to models.BookingStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, bookingID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetAmount writes the quoted price; it never overwrites an existing one.
func (s *BookingStore) SetAmount(ctx context.Context, tx Execer, bookingID string, amount decimal.Decimal) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET amount = $1, updated_at = NOW()
		WHERE id = $2 AND amount IS NULL
	`, amount, bookingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BookingStore) List(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	query := bookingSelect + `WHERE 1 = 1`
	var args []any
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += " AND b.customer_id = $" + itoa(len(args))
	}
	if filter.ProviderUserID != "" {
		args = append(args, filter.ProviderUserID)
		query += " AND p.user_id = $" + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND b.status = $" + itoa(len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " ORDER BY b.created_at DESC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))
	rows := []models.Booking{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
