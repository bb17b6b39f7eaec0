package store

import (
	"context"

	"marketplace/internal/models"

	"github.com/shopspring/decimal"
)

type WalletTransactionStore struct {
	db DB
}

type WalletTransactionInput struct {
	ID             string
	UserID         string
	Type           models.WalletTransactionType
	Amount         decimal.Decimal
	BalanceAfter   decimal.Decimal
	BookingID      *string
	RequestID      *string
	IdempotencyKey *string
}

func NewWalletTransactionStore(db DB) *WalletTransactionStore {
	return &WalletTransactionStore{db: db}
}

const walletTransactionColumns = `id, user_id, type, amount, balance_after, booking_id, request_id, idempotency_key, created_at`

func (s *WalletTransactionStore) Insert(ctx context.Context, tx Execer, input WalletTransactionInput) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, type, amount, balance_after, booking_id, request_id, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, input.ID, input.UserID, input.Type, input.Amount, input.BalanceAfter, input.BookingID, input.RequestID, input.IdempotencyKey)
	return err
}

func (s *WalletTransactionStore) GetByIdempotencyKey(ctx context.Context, tx Getter, key string) (models.WalletTransaction, error) {
	var row models.WalletTransaction
	err := tx.GetContext(ctx, &row, `SELECT `+walletTransactionColumns+` FROM wallet_transactions WHERE idempotency_key = $1`, key)
	if err != nil {
		return models.WalletTransaction{}, err
	}
	return row, nil
}

func (s *WalletTransactionStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, error) {
	rows := []models.WalletTransaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+walletTransactionColumns+`
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

