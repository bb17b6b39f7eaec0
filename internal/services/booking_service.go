package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/db"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/notify"
	"marketplace/internal/store"
	"marketplace/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type BookingStore interface {
	Create(ctx context.Context, tx store.Execer, input store.BookingInput) error
	GetByID(ctx context.Context, bookingID string) (models.Booking, error)
	GetForUpdate(ctx context.Context, tx store.Getter, bookingID string) (models.Booking, error)
	UpdateStatus(ctx context.Context, tx store.Execer, bookingID string, from, to models.BookingStatus) (int64, error)
	SetAmount(ctx context.Context, tx store.Execer, bookingID string, amount decimal.Decimal) (int64, error)
	List(ctx context.Context, filter store.BookingFilter) ([]models.Booking, error)
}

type ProviderStore interface {
	GetByID(ctx context.Context, providerID string) (models.ProviderProfile, error)
	SetVerified(ctx context.Context, tx store.Execer, providerID string, verified bool) (int64, error)
}

type ReviewStore interface {
	Create(ctx context.Context, tx store.Execer, input store.ReviewInput) error
	ExistsForBooking(ctx context.Context, tx store.Getter, bookingID string) (bool, error)
	GetByBooking(ctx context.Context, bookingID string) (models.Review, error)
}

// Ledger is the slice of the wallet the booking machine needs to settle a
// payment inside its own transaction.
type Ledger interface {
	LockWallets(ctx context.Context, tx store.Tx, userIDs ...string) error
	Debit(ctx context.Context, tx store.Tx, entry LedgerEntry) (decimal.Decimal, error)
	Credit(ctx context.Context, tx store.Tx, entry LedgerEntry) (decimal.Decimal, error)
	FindPayment(ctx context.Context, tx store.Tx, key string) (models.WalletTransaction, bool, error)
}

type BookingService struct {
	txRunner   db.TxRunner
	bookings   BookingStore
	providers  ProviderStore
	reviews    ReviewStore
	ledger     Ledger
	audit      AuditStore
	notifier   notify.Notifier
	autoCredit bool
}

func NewBookingService(txRunner db.TxRunner, bookings BookingStore, providers ProviderStore, reviews ReviewStore, ledger Ledger, audit AuditStore, notifier notify.Notifier, autoCredit bool) *BookingService {
	return &BookingService{
		txRunner:   txRunner,
		bookings:   bookings,
		providers:  providers,
		reviews:    reviews,
		ledger:     ledger,
		audit:      audit,
		notifier:   notifier,
		autoCredit: autoCredit,
	}
}

type CreateBookingInput struct {
	ProviderID  string    `json:"provider_id" validate:"notblank"`
	ServiceID   string    `json:"service_id" validate:"notblank"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Address     string    `json:"address" validate:"notblank,max=500"`
	Description string    `json:"description" validate:"notblank,max=2000"`
	Notes       string    `json:"notes" validate:"max=2000"`
}

func (s *BookingService) Create(ctx context.Context, actor auth.Actor, input CreateBookingInput) (models.Booking, error) {
	if err := authorize(OpBookingCreate, actor); err != nil {
		return models.Booking{}, err
	}
	if err := validator.Struct(input); err != nil {
		return models.Booking{}, err
	}
	provider, err := s.providers.GetByID(ctx, input.ProviderID)
	if err != nil {
		return models.Booking{}, translate(err, "provider")
	}
	bookingID := uuid.NewString()
	var created models.Booking
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.bookings.Create(ctx, tx, store.BookingInput{
			ID:          bookingID,
			CustomerID:  actor.ID,
			ProviderID:  provider.ID,
			ServiceID:   strings.TrimSpace(input.ServiceID),
			ScheduledAt: input.ScheduledAt.UTC(),
			Address:     strings.TrimSpace(input.Address),
			Description: strings.TrimSpace(input.Description),
			Notes:       strings.TrimSpace(input.Notes),
		}); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"provider_id": provider.ID, "service_id": input.ServiceID})
		if err := s.audit.Log(ctx, tx, actor.ID, string(OpBookingCreate), "booking", bookingID, string(data)); err != nil {
			return err
		}
		row, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return models.Booking{}, s.fail(OpBookingCreate, translate(err, "booking"))
	}
	metrics.RecordTransition("", string(models.BookingPendingProvider))
	s.notify(ctx, notify.BookingCreated, created.ProviderUserID, created, nil)
	return created, nil
}

func (s *BookingService) SetPriceAndAccept(ctx context.Context, actor auth.Actor, bookingID string, amount decimal.Decimal) (models.Booking, error) {
	if err := authorize(OpBookingPrice, actor); err != nil {
		return models.Booking{}, err
	}
	if err := validateAmount(amount); err != nil {
		return models.Booking{}, err
	}
	return s.transition(ctx, actor, bookingID, transition{
		op:   OpBookingPrice,
		from: models.BookingPendingProvider,
		to:   models.BookingAwaitingCustomerConfirmation,
		apply: func(tx store.Tx, booking *models.Booking) error {
			rows, err := s.bookings.SetAmount(ctx, tx, booking.ID, amount)
			if err != nil {
				return err
			}
			if rows == 0 {
				return apperr.Conflict("booking %s already has a price", booking.ID)
			}
			booking.Amount = decimal.NewNullDecimal(amount)
			return nil
		},
		event:     notify.BookingPriced,
		recipient: customerOf,
		data:      map[string]string{"Amount": money.Format(amount)},
	})
}

func (s *BookingService) Reject(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	return s.transition(ctx, actor, bookingID, transition{
		op:        OpBookingReject,
		from:      models.BookingPendingProvider,
		to:        models.BookingRejected,
		event:     notify.BookingRejected,
		recipient: customerOf,
	})
}

// ConfirmPrice accepts or declines the quoted amount.
func (s *BookingService) ConfirmPrice(ctx context.Context, actor auth.Actor, bookingID string, accept bool) (models.Booking, error) {
	next := models.BookingAccepted
	event := notify.BookingConfirmed
	if !accept {
		next = models.BookingRejected
		event = notify.BookingDeclined
	}
	return s.transition(ctx, actor, bookingID, transition{
		op:        OpBookingConfirm,
		from:      models.BookingAwaitingCustomerConfirmation,
		to:        next,
		event:     event,
		recipient: providerOf,
	})
}

func (s *BookingService) MarkCompleted(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	return s.transition(ctx, actor, bookingID, transition{
		op:        OpBookingComplete,
		from:      models.BookingAccepted,
		to:        models.BookingCompleted,
		event:     notify.BookingCompleted,
		recipient: customerOf,
	})
}

// Pay debits the customer by the booking amount and closes the booking in
// one transaction. A non-empty idempotencyKey makes a repeated call with the
// same key return the closed booking instead of failing.
func (s *BookingService) Pay(ctx context.Context, actor auth.Actor, bookingID, idempotencyKey string) (models.Booking, error) {
	key := strings.TrimSpace(idempotencyKey)
	var keyRef *string
	if key != "" {
		keyRef = &key
	}
	return s.transition(ctx, actor, bookingID, transition{
		op:   OpBookingPay,
		from: models.BookingCompleted,
		to:   models.BookingClosed,
		replay: func(tx store.Tx, booking models.Booking) (bool, error) {
			if keyRef == nil {
				return false, nil
			}
			prior, found, err := s.ledger.FindPayment(ctx, tx, key)
			if err != nil || !found {
				return false, err
			}
			if prior.Type == models.TxBookingPayment && prior.UserID == actor.ID &&
				prior.BookingID != nil && *prior.BookingID == booking.ID {
				return true, nil
			}
			return false, apperr.Conflict("idempotency key was already used for another operation")
		},
		apply: func(tx store.Tx, booking *models.Booking) error {
			if !booking.Amount.Valid {
				return apperr.InvalidTransition("booking %s has no price", booking.ID)
			}
			id := booking.ID
			if s.autoCredit {
				if err := s.ledger.LockWallets(ctx, tx, booking.CustomerID, booking.ProviderUserID); err != nil {
					return err
				}
			}
			if _, err := s.ledger.Debit(ctx, tx, LedgerEntry{
				UserID:         booking.CustomerID,
				Type:           models.TxBookingPayment,
				Amount:         booking.Amount.Decimal,
				BookingID:      &id,
				IdempotencyKey: keyRef,
			}); err != nil {
				return err
			}
			if !s.autoCredit {
				return nil
			}
			_, err := s.ledger.Credit(ctx, tx, LedgerEntry{
				UserID:    booking.ProviderUserID,
				Type:      models.TxBookingEarning,
				Amount:    booking.Amount.Decimal,
				BookingID: &id,
			})
			return err
		},
		event:     notify.BookingPaid,
		recipient: providerOf,
	})
}

type ReviewInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (s *BookingService) AttachReview(ctx context.Context, actor auth.Actor, bookingID string, input ReviewInput) (models.Review, error) {
	if err := authorize(OpBookingReview, actor); err != nil {
		return models.Review{}, err
	}
	if err := validator.Struct(input); err != nil {
		return models.Review{}, err
	}
	var booking models.Booking
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return translate(err, "booking")
		}
		if row.CustomerID != actor.ID {
			return apperr.Forbidden("booking %s does not belong to you", bookingID)
		}
		if row.Status != models.BookingClosed {
			return apperr.InvalidTransition("booking is %s, reviews need %s", row.Status, models.BookingClosed)
		}
		exists, err := s.reviews.ExistsForBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("booking %s already has a review", bookingID)
		}
		if err := s.reviews.Create(ctx, tx, store.ReviewInput{
			ID:        uuid.NewString(),
			BookingID: bookingID,
			Rating:    input.Rating,
			Comment:   strings.TrimSpace(input.Comment),
		}); err != nil {
			return err
		}
		booking = row
		data, _ := json.Marshal(map[string]int{"rating": input.Rating})
		return s.audit.Log(ctx, tx, actor.ID, string(OpBookingReview), "booking", bookingID, string(data))
	})
	if err != nil {
		return models.Review{}, s.fail(OpBookingReview, translate(err, "review"))
	}
	s.notify(ctx, notify.BookingReviewed, booking.ProviderUserID, booking, nil)
	review, err := s.reviews.GetByBooking(ctx, bookingID)
	if err != nil {
		return models.Review{}, translate(err, "review")
	}
	return review, nil
}

func (s *BookingService) Get(ctx context.Context, actor auth.Actor, bookingID string) (models.Booking, error) {
	if err := authorize(OpBookingView, actor); err != nil {
		return models.Booking{}, err
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, translate(err, "booking")
	}
	if !canView(booking, actor) {
		return models.Booking{}, apperr.Forbidden("booking %s does not belong to you", bookingID)
	}
	return booking, nil
}

func (s *BookingService) GetReview(ctx context.Context, actor auth.Actor, bookingID string) (models.Review, error) {
	if _, err := s.Get(ctx, actor, bookingID); err != nil {
		return models.Review{}, err
	}
	review, err := s.reviews.GetByBooking(ctx, bookingID)
	if err != nil {
		return models.Review{}, translate(err, "review")
	}
	return review, nil
}

type BookingListFilter struct {
	Status models.BookingStatus
	Limit  int
	Offset int
}

func (s *BookingService) List(ctx context.Context, actor auth.Actor, filter BookingListFilter) ([]models.Booking, error) {
	if err := authorize(OpBookingView, actor); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := store.BookingFilter{Status: filter.Status, Limit: limit, Offset: offset}
	switch actor.Role {
	case auth.RoleCustomer:
		query.CustomerID = actor.ID
	case auth.RoleProvider:
		query.ProviderUserID = actor.ID
	}
	return s.bookings.List(ctx, query)
}

// transition describes one guarded edge of the booking state machine.
type transition struct {
	op        Operation
	from      models.BookingStatus
	to        models.BookingStatus
	replay    func(tx store.Tx, booking models.Booking) (bool, error)
	apply     func(tx store.Tx, booking *models.Booking) error
	event     notify.EventType
	recipient func(models.Booking) string
	data      map[string]string
}

// transition locks the booking, checks the caller owns it and that it is in
// t.from, runs t.apply, then moves it to t.to with a compare-and-set. The
// notification goes out only after commit.
func (s *BookingService) transition(ctx context.Context, actor auth.Actor, bookingID string, t transition) (models.Booking, error) {
	if err := authorize(t.op, actor); err != nil {
		return models.Booking{}, err
	}
	if !models.CanTransition(t.from, t.to) {
		return models.Booking{}, apperr.InvalidTransition("%s cannot move to %s", t.from, t.to)
	}
	var updated models.Booking
	var replayed bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		replayed = false
		booking, err := s.bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !ownsFor(t.op, booking, actor) {
			return apperr.Forbidden("booking %s does not belong to you", bookingID)
		}
		if t.replay != nil {
			done, err := t.replay(tx, booking)
			if err != nil {
				return err
			}
			if done {
				replayed = true
				updated = booking
				return nil
			}
		}
		if booking.Status != t.from {
			return apperr.InvalidTransition("booking is %s, expected %s", booking.Status, t.from)
		}
		if t.apply != nil {
			if err := t.apply(tx, &booking); err != nil {
				return err
			}
		}
		rows, err := s.bookings.UpdateStatus(ctx, tx, booking.ID, t.from, t.to)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.Conflict("booking %s was changed concurrently", booking.ID)
		}
		booking.Status = t.to
		data, _ := json.Marshal(map[string]string{"from": string(t.from), "to": string(t.to)})
		if err := s.audit.Log(ctx, tx, actor.ID, string(t.op), "booking", booking.ID, string(data)); err != nil {
			return err
		}
		updated = booking
		return nil
	})
	if err != nil {
		return models.Booking{}, s.fail(t.op, translate(err, "booking"))
	}
	if replayed {
		return updated, nil
	}
	metrics.RecordTransition(string(t.from), string(t.to))
	if t.recipient != nil {
		s.notify(ctx, t.event, t.recipient(updated), updated, t.data)
	}
	return updated, nil
}

func (s *BookingService) notify(ctx context.Context, event notify.EventType, recipientID string, booking models.Booking, data map[string]string) {
	s.notifier.Notify(ctx, notify.Event{
		Type:        event,
		RecipientID: recipientID,
		BookingID:   booking.ID,
		Status:      string(booking.Status),
		Data:        data,
	})
}

func (s *BookingService) fail(op Operation, err error) error {
	var appErr *apperr.Error
	code := "INTERNAL"
	if errors.As(err, &appErr) {
		code = string(appErr.Kind)
	}
	metrics.RecordTransitionFailure(string(op), code)
	return err
}

func customerOf(b models.Booking) string { return b.CustomerID }

func providerOf(b models.Booking) string { return b.ProviderUserID }

// ownsFor reports whether actor is the party op acts on behalf of.
func ownsFor(op Operation, booking models.Booking, actor auth.Actor) bool {
	switch op {
	case OpBookingPrice, OpBookingReject, OpBookingComplete:
		return booking.ProviderUserID == actor.ID
	default:
		return booking.CustomerID == actor.ID
	}
}

func canView(booking models.Booking, actor auth.Actor) bool {
	return actor.Is(auth.RoleAdmin) || booking.IsParty(actor.ID)
}
