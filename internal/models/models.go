package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Role      string    `db:"role" json:"role"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type ProviderProfile struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	PayoutReference string    `db:"payout_reference" json:"-"`
	Verified        bool      `db:"verified" json:"verified"`
	Location        string    `db:"location" json:"location"`
	ServiceRadiusKM int       `db:"service_radius_km" json:"service_radius_km"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type Wallet struct {
	UserID    string          `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type WalletRequestType string

const (
	WalletRequestDeposit    WalletRequestType = "deposit"
	WalletRequestWithdrawal WalletRequestType = "withdrawal"
)

type WalletRequestStatus string

const (
	WalletRequestPending  WalletRequestStatus = "pending"
	WalletRequestApproved WalletRequestStatus = "approved"
	WalletRequestRejected WalletRequestStatus = "rejected"
)

type WalletRequest struct {
	ID              string              `db:"id"`
	UserID          string              `db:"user_id"`
	Type            WalletRequestType   `db:"type"`
	Amount          decimal.Decimal     `db:"amount"`
	Reference       string              `db:"reference"`
	ScreenshotRef   *string             `db:"screenshot_ref"`
	BalanceWarning  bool                `db:"balance_warning"`
	Status          WalletRequestStatus `db:"status"`
	RejectionReason *string             `db:"rejection_reason"`
	ResolvedBy      *string             `db:"resolved_by"`
	RequestedAt     time.Time           `db:"requested_at"`
	ResolvedAt      *time.Time          `db:"resolved_at"`
}

type WalletTransactionType string

const (
	TxDeposit        WalletTransactionType = "deposit"
	TxWithdrawal     WalletTransactionType = "withdrawal"
	TxBookingPayment WalletTransactionType = "booking_payment"
	TxBookingEarning WalletTransactionType = "booking_earning"
)

// WalletTransaction is one signed balance movement; the sum of a user's rows
// equals wallets.balance.
type WalletTransaction struct {
	ID             string                `db:"id"`
	UserID         string                `db:"user_id"`
	Type           WalletTransactionType `db:"type"`
	Amount         decimal.Decimal       `db:"amount"`
	BalanceAfter   decimal.Decimal       `db:"balance_after"`
	BookingID      *string               `db:"booking_id"`
	RequestID      *string               `db:"request_id"`
	IdempotencyKey *string               `db:"idempotency_key"`
	CreatedAt      time.Time             `db:"created_at"`
}

type Message struct {
	ID            string    `db:"id"`
	BookingID     string    `db:"booking_id"`
	SenderID      string    `db:"sender_id"`
	RecipientID   string    `db:"recipient_id"`
	Content       string    `db:"content"`
	AttachmentRef *string   `db:"attachment_ref"`
	IsRead        bool      `db:"is_read"`
	CreatedAt     time.Time `db:"created_at"`
}

type Review struct {
	ID        string    `db:"id"`
	BookingID string    `db:"booking_id"`
	Rating    int       `db:"rating"`
	Comment   string    `db:"comment"`
	CreatedAt time.Time `db:"created_at"`
}
