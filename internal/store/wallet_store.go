package store

import (
	"context"

	"marketplace/internal/models"

	"github.com/shopspring/decimal"
)

type WalletStore struct {
	db DB
}

// WalletDrift is a wallet whose stored balance disagrees with its movements.
type WalletDrift struct {
	UserID            string          `db:"user_id"`
	StoredBalance     decimal.Decimal `db:"stored_balance"`
	CalculatedBalance decimal.Decimal `db:"calculated_balance"`
	Difference        decimal.Decimal `db:"difference"`
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// Ensure creates the zero-balance wallet for userID if it does not exist yet.
func (s *WalletStore) Ensure(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (s *WalletStore) GetOrCreate(ctx context.Context, userID string) (models.Wallet, error) {
	if err := s.Ensure(ctx, s.db, userID); err != nil {
		return models.Wallet{}, err
	}
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) UpdateBalance(ctx context.Context, tx Execer, userID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, updated_at = NOW()
		WHERE user_id = $2
	`, balance, userID)
	return err
}

func (s *WalletStore) Reconcile(ctx context.Context) ([]WalletDrift, error) {
	rows := []WalletDrift{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.user_id,
		       w.balance AS stored_balance,
		       COALESCE(SUM(t.amount), 0) AS calculated_balance,
		       (w.balance - COALESCE(SUM(t.amount), 0)) AS difference
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.user_id = w.user_id
		GROUP BY w.user_id, w.balance
		HAVING w.balance <> COALESCE(SUM(t.amount), 0)
		ORDER BY w.user_id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
