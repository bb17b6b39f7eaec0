package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPendingProvider              BookingStatus = "pending_provider"
	BookingAwaitingCustomerConfirmation BookingStatus = "awaiting_customer_confirmation"
	BookingAccepted                     BookingStatus = "accepted"
	BookingCompleted                    BookingStatus = "completed"
	BookingClosed                       BookingStatus = "closed"
	BookingRejected                     BookingStatus = "rejected"
)

// BookingTransitions is the complete edge set of the booking lifecycle.
var BookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingProvider:              {BookingAwaitingCustomerConfirmation, BookingRejected},
	BookingAwaitingCustomerConfirmation: {BookingAccepted, BookingRejected},
	BookingAccepted:                     {BookingCompleted},
	BookingCompleted:                    {BookingClosed},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPendingProvider, BookingAwaitingCustomerConfirmation, BookingAccepted,
		BookingCompleted, BookingClosed, BookingRejected:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingClosed || s == BookingRejected
}

// ChatActive reports whether the parties may exchange messages.
func (s BookingStatus) ChatActive() bool {
	return s == BookingAccepted || s == BookingCompleted || s == BookingClosed
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range BookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             string              `db:"id"`
	CustomerID     string              `db:"customer_id"`
	ProviderID     string              `db:"provider_id"`
	ProviderUserID string              `db:"provider_user_id"`
	ServiceID      string              `db:"service_id"`
	Status         BookingStatus       `db:"status"`
	Amount         decimal.NullDecimal `db:"amount"`
	ScheduledAt    time.Time           `db:"scheduled_at"`
	Address        string              `db:"address"`
	Description    string              `db:"description"`
	Notes          string              `db:"notes"`
	CreatedAt      time.Time           `db:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at"`
}

// PartyOther returns the booking party opposite to userID, or "" when userID
// is not a party.
func (b Booking) PartyOther(userID string) string {
	switch userID {
	case b.CustomerID:
		return b.ProviderUserID
	case b.ProviderUserID:
		return b.CustomerID
	}
	return ""
}

func (b Booking) IsParty(userID string) bool {
	return b.PartyOther(userID) != ""
}
