package store

import (
	"context"

	"marketplace/internal/models"

	"github.com/shopspring/decimal"
)

type WalletRequestStore struct {
	db DB
}

type WalletRequestInput struct {
	ID             string
	UserID         string
	Type           models.WalletRequestType
	Amount         decimal.Decimal
	Reference      string
	ScreenshotRef  *string
	BalanceWarning bool
}

type WalletRequestResolution struct {
	ID              string
	Status          models.WalletRequestStatus
	RejectionReason *string
	ResolvedBy      string
}

type WalletRequestFilter struct {
	UserID string
	Status models.WalletRequestStatus
	Limit  int
	Offset int
}

func NewWalletRequestStore(db DB) *WalletRequestStore {
	return &WalletRequestStore{db: db}
}

const walletRequestColumns = `id, user_id, type, amount, reference, screenshot_ref, balance_warning, status, rejection_reason, resolved_by, requested_at, resolved_at`

func (s *WalletRequestStore) Create(ctx context.Context, tx Execer, input WalletRequestInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_requests (id, user_id, type, amount, reference, screenshot_ref, balance_warning, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
	`, input.ID, input.UserID, input.Type, input.Amount, input.Reference, input.ScreenshotRef, input.BalanceWarning)
	return err
}

func (s *WalletRequestStore) GetByID(ctx context.Context, tx Getter, requestID string) (models.WalletRequest, error) {
	var row models.WalletRequest
	err := tx.GetContext(ctx, &row, `SELECT `+walletRequestColumns+` FROM wallet_requests WHERE id = $1`, requestID)
	if err != nil {
		return models.WalletRequest{}, err
	}
	return row, nil
}

func (s *WalletRequestStore) GetForUpdate(ctx context.Context, tx Getter, requestID string) (models.WalletRequest, error) {
	var row models.WalletRequest
	err := tx.GetContext(ctx, &row, `SELECT `+walletRequestColumns+` FROM wallet_requests WHERE id = $1 FOR UPDATE`, requestID)
	if err != nil {
		return models.WalletRequest{}, err
	}
	return row, nil
}

// Resolve closes a pending request; a request that is no longer pending is
// left untouched and reports zero rows.
func (s *WalletRequestStore) Resolve(ctx context.Context, tx Execer, input WalletRequestResolution) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_requests
		SET status = $1, rejection_reason = $2, resolved_by = $3, resolved_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`, input.Status, input.RejectionReason, input.ResolvedBy, input.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WalletRequestStore) List(ctx context.Context, filter WalletRequestFilter) ([]models.WalletRequest, error) {
	query := `SELECT ` + walletRequestColumns + ` FROM wallet_requests WHERE 1 = 1`
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += " AND user_id = $" + itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND status = $" + itoa(len(args))
	}
	args = append(args, filter.Limit, filter.Offset)
	query += " ORDER BY requested_at ASC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))
	rows := []models.WalletRequest{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
