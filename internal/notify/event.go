package notify

import "context"

type EventType string

const (
	BookingCreated        EventType = "booking.created"
	BookingPriced         EventType = "booking.priced"
	BookingRejected       EventType = "booking.rejected"
	BookingConfirmed      EventType = "booking.confirmed"
	BookingDeclined       EventType = "booking.declined"
	BookingCompleted      EventType = "booking.completed"
	BookingPaid           EventType = "booking.paid"
	BookingReviewed       EventType = "booking.reviewed"
	MessageReceived       EventType = "message.received"
	WalletRequestApproved EventType = "wallet.request_approved"
	WalletRequestRejected EventType = "wallet.request_rejected"
	ProviderVerified      EventType = "provider.verified"
)

// Event describes something a user should hear about after a commit.
type Event struct {
	Type        EventType
	RecipientID string
	BookingID   string
	RequestID   string
	Status      string
	Data        map[string]string
}

// Notifier is invoked after commit. Implementations must not block the caller
// and must never report delivery failures back to it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
