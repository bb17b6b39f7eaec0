package handlers

import (
	"context"

	"marketplace/internal/auth"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/store"

	"github.com/shopspring/decimal"
)

type BookingService interface {
	Create(ctx context.Context, actor auth.Actor, input services.CreateBookingInput) (models.Booking, error)
	Get(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	List(ctx context.Context, actor auth.Actor, filter services.BookingListFilter) ([]models.Booking, error)
	SetPriceAndAccept(ctx context.Context, actor auth.Actor, bookingID string, amount decimal.Decimal) (models.Booking, error)
	Reject(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	ConfirmPrice(ctx context.Context, actor auth.Actor, bookingID string, accept bool) (models.Booking, error)
	MarkCompleted(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	Pay(ctx context.Context, actor auth.Actor, bookingID, idempotencyKey string) (models.Booking, error)
	AttachReview(ctx context.Context, actor auth.Actor, bookingID string, input services.ReviewInput) (models.Review, error)
	GetReview(ctx context.Context, actor auth.Actor, bookingID string) (models.Review, error)
}

type WalletService interface {
	Balance(ctx context.Context, actor auth.Actor) (models.Wallet, error)
	ListTransactions(ctx context.Context, actor auth.Actor, limit, offset int) ([]models.WalletTransaction, error)
	ListRequests(ctx context.Context, actor auth.Actor, filter services.RequestListFilter) ([]models.WalletRequest, error)
	RequestDeposit(ctx context.Context, actor auth.Actor, input services.DepositInput) (models.WalletRequest, error)
	RequestWithdrawal(ctx context.Context, actor auth.Actor, input services.WithdrawalInput) (models.WalletRequest, error)
	ResolveRequest(ctx context.Context, actor auth.Actor, requestID string, input services.ResolveInput) (models.WalletRequest, error)
	Reconcile(ctx context.Context, actor auth.Actor) ([]store.WalletDrift, error)
}

type MessageService interface {
	Send(ctx context.Context, actor auth.Actor, bookingID string, input services.SendMessageInput) (models.Message, error)
	List(ctx context.Context, actor auth.Actor, bookingID string) ([]models.Message, error)
	MarkRead(ctx context.Context, actor auth.Actor, bookingID string) (int64, error)
	UnreadCount(ctx context.Context, actor auth.Actor) (int, error)
}

type AdminService interface {
	VerifyProvider(ctx context.Context, actor auth.Actor, providerID string, verified bool) (models.ProviderProfile, error)
	AuditLog(ctx context.Context, actor auth.Actor, entityType string, limit, offset int) ([]store.AuditEntry, error)
}
