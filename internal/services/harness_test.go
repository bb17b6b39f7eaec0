package services

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/auth"
	"marketplace/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	customer      = auth.Actor{ID: "cust-1", Role: auth.RoleCustomer}
	otherCustomer = auth.Actor{ID: "cust-2", Role: auth.RoleCustomer}
	provider      = auth.Actor{ID: "puser-1", Role: auth.RoleProvider}
	otherProvider = auth.Actor{ID: "puser-2", Role: auth.RoleProvider}
	admin         = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
)

type harness struct {
	db       *memDB
	notifier *recordingNotifier
	bookings *BookingService
	wallets  *WalletService
	messages *MessageService
	admin    *AdminService
}

func newHarness(t *testing.T, autoCredit bool) *harness {
	t.Helper()
	mem := newMemDB()
	mem.committed.users["cust-1"] = models.User{ID: "cust-1", Role: "customer", Email: "c1@example.com", Name: "Casey"}
	mem.committed.users["cust-2"] = models.User{ID: "cust-2", Role: "customer", Email: "c2@example.com", Name: "Cole"}
	mem.committed.users["puser-1"] = models.User{ID: "puser-1", Role: "provider", Email: "p1@example.com", Name: "Pat"}
	mem.committed.users["puser-2"] = models.User{ID: "puser-2", Role: "provider", Email: "p2@example.com", Name: "Pia"}
	mem.committed.users["admin-1"] = models.User{ID: "admin-1", Role: "admin", Email: "ops@example.com", Name: "Ops"}
	mem.committed.providers["prov-1"] = models.ProviderProfile{ID: "prov-1", UserID: "puser-1", DisplayName: "Pat Plumbing"}
	mem.committed.providers["prov-2"] = models.ProviderProfile{ID: "prov-2", UserID: "puser-2", DisplayName: "Pia Painting"}

	notifier := &recordingNotifier{db: mem}
	wallets := NewWalletService(mem, memWallets{mem}, memRequests{mem}, memTransactions{mem}, memAudit{mem}, notifier, decimal.RequireFromString("100.00"))
	return &harness{
		db:       mem,
		notifier: notifier,
		wallets:  wallets,
		bookings: NewBookingService(mem, memBookings{mem}, memProviders{mem}, memReviews{mem}, wallets, memAudit{mem}, notifier, autoCredit),
		messages: NewMessageService(mem, memBookings{mem}, memMessages{mem}, notifier),
		admin:    NewAdminService(mem, memProviders{mem}, memAudit{mem}, notifier),
	}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// fund tops a wallet up through the real deposit flow.
func (h *harness) fund(t *testing.T, actor auth.Actor, amount string) {
	t.Helper()
	ctx := context.Background()
	req, err := h.wallets.RequestDeposit(ctx, actor, DepositInput{Amount: dec(amount), Reference: "REF", ScreenshotRef: "https://files.example/shot.png"})
	require.NoError(t, err)
	_, err = h.wallets.ResolveRequest(ctx, admin, req.ID, ResolveInput{Approve: true})
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, actor auth.Actor) decimal.Decimal {
	t.Helper()
	wallet, err := h.wallets.Balance(context.Background(), actor)
	require.NoError(t, err)
	return wallet.Balance
}

func (h *harness) createBooking(t *testing.T) models.Booking {
	t.Helper()
	booking, err := h.bookings.Create(context.Background(), customer, CreateBookingInput{
		ProviderID:  "prov-1",
		ServiceID:   "svc-plumbing",
		ScheduledAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		Address:     "1 Main St",
		Description: "Leaking sink",
	})
	require.NoError(t, err)
	return booking
}

// bookingAt drives a fresh booking with a 500.00 price to status.
func (h *harness) bookingAt(t *testing.T, status models.BookingStatus) models.Booking {
	t.Helper()
	ctx := context.Background()
	booking := h.createBooking(t)
	steps := []struct {
		reached models.BookingStatus
		run     func() (models.Booking, error)
	}{
		{models.BookingAwaitingCustomerConfirmation, func() (models.Booking, error) {
			return h.bookings.SetPriceAndAccept(ctx, provider, booking.ID, dec("500.00"))
		}},
		{models.BookingAccepted, func() (models.Booking, error) {
			return h.bookings.ConfirmPrice(ctx, customer, booking.ID, true)
		}},
		{models.BookingCompleted, func() (models.Booking, error) {
			return h.bookings.MarkCompleted(ctx, provider, booking.ID)
		}},
		{models.BookingClosed, func() (models.Booking, error) {
			h.fund(t, customer, "500.00")
			return h.bookings.Pay(ctx, customer, booking.ID, "")
		}},
	}
	for _, step := range steps {
		if booking.Status == status {
			return booking
		}
		var err error
		booking, err = step.run()
		require.NoError(t, err)
		require.Equal(t, step.reached, booking.Status)
	}
	require.Equal(t, status, booking.Status)
	return booking
}
