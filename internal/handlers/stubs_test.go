package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/models"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/websocket"

	"github.com/shopspring/decimal"
)

var errNotStubbed = apperr.NotFound("not stubbed")

type stubBookings struct {
	createFn   func(ctx context.Context, actor auth.Actor, input services.CreateBookingInput) (models.Booking, error)
	getFn      func(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	listFn     func(ctx context.Context, actor auth.Actor, filter services.BookingListFilter) ([]models.Booking, error)
	priceFn    func(ctx context.Context, actor auth.Actor, bookingID string, amount decimal.Decimal) (models.Booking, error)
	rejectFn   func(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	confirmFn  func(ctx context.Context, actor auth.Actor, bookingID string, accept bool) (models.Booking, error)
	completeFn func(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error)
	payFn      func(ctx context.Context, actor auth.Actor, bookingID, key string) (models.Booking, error)
	reviewFn   func(ctx context.Context, actor auth.Actor, bookingID string, input services.ReviewInput) (models.Review, error)
	getReview  func(ctx context.Context, actor auth.Actor, bookingID string) (models.Review, error)
}

func (s stubBookings) Create(ctx context.Context, actor auth.Actor, input services.CreateBookingInput) (models.Booking, error) {
	if s.createFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.createFn(ctx, actor, input)
}

func (s stubBookings) Get(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	if s.getFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.getFn(ctx, actor, bookingID)
}

func (s stubBookings) List(ctx context.Context, actor auth.Actor, filter services.BookingListFilter) ([]models.Booking, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actor, filter)
}

func (s stubBookings) SetPriceAndAccept(ctx context.Context, actor auth.Actor, bookingID string, amount decimal.Decimal) (models.Booking, error) {
	if s.priceFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.priceFn(ctx, actor, bookingID, amount)
}

func (s stubBookings) Reject(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	if s.rejectFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.rejectFn(ctx, actor, bookingID)
}

func (s stubBookings) ConfirmPrice(ctx context.Context, actor auth.Actor, bookingID string, accept bool) (models.Booking, error) {
	if s.confirmFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.confirmFn(ctx, actor, bookingID, accept)
}

func (s stubBookings) MarkCompleted(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	if s.completeFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.completeFn(ctx, actor, bookingID)
}

func (s stubBookings) Pay(ctx context.Context, actor auth.Actor, bookingID, key string) (models.Booking, error) {
	if s.payFn == nil {
		return models.Booking{}, errNotStubbed
	}
	return s.payFn(ctx, actor, bookingID, key)
}

func (s stubBookings) AttachReview(ctx context.Context, actor auth.Actor, bookingID string, input services.ReviewInput) (models.Review, error) {
	if s.reviewFn == nil {
		return models.Review{}, errNotStubbed
	}
	return s.reviewFn(ctx, actor, bookingID, input)
}

func (s stubBookings) GetReview(ctx context.Context, actor auth.Actor, bookingID string) (models.Review, error) {
	if s.getReview == nil {
		return models.Review{}, errNotStubbed
	}
	return s.getReview(ctx, actor, bookingID)
}

type stubWallets struct {
	balanceFn      func(ctx context.Context, actor auth.Actor) (models.Wallet, error)
	transactionsFn func(ctx context.Context, actor auth.Actor, limit, offset int) ([]models.WalletTransaction, error)
	requestsFn     func(ctx context.Context, actor auth.Actor, filter services.RequestListFilter) ([]models.WalletRequest, error)
	depositFn      func(ctx context.Context, actor auth.Actor, input services.DepositInput) (models.WalletRequest, error)
	withdrawFn     func(ctx context.Context, actor auth.Actor, input services.WithdrawalInput) (models.WalletRequest, error)
	resolveFn      func(ctx context.Context, actor auth.Actor, requestID string, input services.ResolveInput) (models.WalletRequest, error)
	reconcileFn    func(ctx context.Context, actor auth.Actor) ([]store.WalletDrift, error)
}

func (s stubWallets) Balance(ctx context.Context, actor auth.Actor) (models.Wallet, error) {
	if s.balanceFn == nil {
		return models.Wallet{UserID: actor.ID}, nil
	}
	return s.balanceFn(ctx, actor)
}

func (s stubWallets) ListTransactions(ctx context.Context, actor auth.Actor, limit, offset int) ([]models.WalletTransaction, error) {
	if s.transactionsFn == nil {
		return nil, nil
	}
	return s.transactionsFn(ctx, actor, limit, offset)
}

func (s stubWallets) ListRequests(ctx context.Context, actor auth.Actor, filter services.RequestListFilter) ([]models.WalletRequest, error) {
	if s.requestsFn == nil {
		return nil, nil
	}
	return s.requestsFn(ctx, actor, filter)
}

func (s stubWallets) RequestDeposit(ctx context.Context, actor auth.Actor, input services.DepositInput) (models.WalletRequest, error) {
	if s.depositFn == nil {
		return models.WalletRequest{}, errNotStubbed
	}
	return s.depositFn(ctx, actor, input)
}

func (s stubWallets) RequestWithdrawal(ctx context.Context, actor auth.Actor, input services.WithdrawalInput) (models.WalletRequest, error) {
	if s.withdrawFn == nil {
		return models.WalletRequest{}, errNotStubbed
	}
	return s.withdrawFn(ctx, actor, input)
}

func (s stubWallets) ResolveRequest(ctx context.Context, actor auth.Actor, requestID string, input services.ResolveInput) (models.WalletRequest, error) {
	if s.resolveFn == nil {
		return models.WalletRequest{}, errNotStubbed
	}
	return s.resolveFn(ctx, actor, requestID, input)
}

func (s stubWallets) Reconcile(ctx context.Context, actor auth.Actor) ([]store.WalletDrift, error) {
	if s.reconcileFn == nil {
		return nil, nil
	}
	return s.reconcileFn(ctx, actor)
}

type stubMessages struct {
	sendFn     func(ctx context.Context, actor auth.Actor, bookingID string, input services.SendMessageInput) (models.Message, error)
	listFn     func(ctx context.Context, actor auth.Actor, bookingID string) ([]models.Message, error)
	markReadFn func(ctx context.Context, actor auth.Actor, bookingID string) (int64, error)
	unreadFn   func(ctx context.Context, actor auth.Actor) (int, error)
}

func (s stubMessages) Send(ctx context.Context, actor auth.Actor, bookingID string, input services.SendMessageInput) (models.Message, error) {
	if s.sendFn == nil {
		return models.Message{}, errNotStubbed
	}
	return s.sendFn(ctx, actor, bookingID, input)
}

func (s stubMessages) List(ctx context.Context, actor auth.Actor, bookingID string) ([]models.Message, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actor, bookingID)
}

func (s stubMessages) MarkRead(ctx context.Context, actor auth.Actor, bookingID string) (int64, error) {
	if s.markReadFn == nil {
		return 0, nil
	}
	return s.markReadFn(ctx, actor, bookingID)
}

func (s stubMessages) UnreadCount(ctx context.Context, actor auth.Actor) (int, error) {
	if s.unreadFn == nil {
		return 0, nil
	}
	return s.unreadFn(ctx, actor)
}

type stubAdmin struct {
	verifyFn func(ctx context.Context, actor auth.Actor, providerID string, verified bool) (models.ProviderProfile, error)
	auditFn  func(ctx context.Context, actor auth.Actor, entityType string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAdmin) VerifyProvider(ctx context.Context, actor auth.Actor, providerID string, verified bool) (models.ProviderProfile, error) {
	if s.verifyFn == nil {
		return models.ProviderProfile{}, errNotStubbed
	}
	return s.verifyFn(ctx, actor, providerID, verified)
}

func (s stubAdmin) AuditLog(ctx context.Context, actor auth.Actor, entityType string, limit, offset int) ([]store.AuditEntry, error) {
	if s.auditFn == nil {
		return nil, nil
	}
	return s.auditFn(ctx, actor, entityType, limit, offset)
}

type testDeps struct {
	bookings stubBookings
	wallets  stubWallets
	messages stubMessages
	admin    stubAdmin
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		AllowedOrigins: "*",
	}
	return New(cfg, deps.bookings, deps.wallets, deps.messages, deps.admin, websocket.NewHub(cfg.Origins()), nil)
}

// serve sends a request through the full router as actor. An empty actor ID
// sends no token.
func serve(t *testing.T, handler *Handler, actor auth.Actor, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if actor.ID != "" {
		token, err := auth.GenerateToken("secret", actor, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

var (
	customer = auth.Actor{ID: "cust-1", Role: auth.RoleCustomer}
	provider = auth.Actor{ID: "puser-1", Role: auth.RoleProvider}
	admin    = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
)
