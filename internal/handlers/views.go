package handlers

import (
	"time"

	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/store"
)

// Amounts leave the API as fixed two-decimal strings.

type bookingView struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	ProviderID     string    `json:"provider_id"`
	ProviderUserID string    `json:"provider_user_id"`
	ServiceID      string    `json:"service_id"`
	Status         string    `json:"status"`
	Amount         *string   `json:"amount"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Address        string    `json:"address"`
	Description    string    `json:"description"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newBookingView(b models.Booking) bookingView {
	return bookingView{
		ID:             b.ID,
		CustomerID:     b.CustomerID,
		ProviderID:     b.ProviderID,
		ProviderUserID: b.ProviderUserID,
		ServiceID:      b.ServiceID,
		Status:         string(b.Status),
		Amount:         money.FormatNull(b.Amount),
		ScheduledAt:    b.ScheduledAt,
		Address:        b.Address,
		Description:    b.Description,
		Notes:          b.Notes,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

type reviewView struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func newReviewView(r models.Review) reviewView {
	return reviewView{ID: r.ID, BookingID: r.BookingID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt}
}

type walletView struct {
	UserID    string    `json:"user_id"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type walletRequestView struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Type            string     `json:"type"`
	Amount          string     `json:"amount"`
	Reference       string     `json:"reference"`
	ScreenshotRef   *string    `json:"screenshot_ref,omitempty"`
	BalanceWarning  bool       `json:"balance_warning"`
	Status          string     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ResolvedBy      *string    `json:"resolved_by,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func newWalletRequestView(r models.WalletRequest) walletRequestView {
	return walletRequestView{
		ID:              r.ID,
		UserID:          r.UserID,
		Type:            string(r.Type),
		Amount:          money.Format(r.Amount),
		Reference:       r.Reference,
		ScreenshotRef:   r.ScreenshotRef,
		BalanceWarning:  r.BalanceWarning,
		Status:          string(r.Status),
		RejectionReason: r.RejectionReason,
		ResolvedBy:      r.ResolvedBy,
		RequestedAt:     r.RequestedAt,
		ResolvedAt:      r.ResolvedAt,
	}
}

type walletTransactionView struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	BookingID    *string   `json:"booking_id,omitempty"`
	RequestID    *string   `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type driftView struct {
	UserID            string `json:"user_id"`
	StoredBalance     string `json:"stored_balance"`
	CalculatedBalance string `json:"calculated_balance"`
	Difference        string `json:"difference"`
}

func newDriftView(d store.WalletDrift) driftView {
	return driftView{
		UserID:            d.UserID,
		StoredBalance:     money.Format(d.StoredBalance),
		CalculatedBalance: money.Format(d.CalculatedBalance),
		Difference:        money.Format(d.Difference),
	}
}

type messageView struct {
	ID            string    `json:"id"`
	BookingID     string    `json:"booking_id"`
	SenderID      string    `json:"sender_id"`
	RecipientID   string    `json:"recipient_id"`
	Content       string    `json:"content"`
	AttachmentRef *string   `json:"attachment_ref,omitempty"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

func newMessageView(m models.Message) messageView {
	return messageView{
		ID:            m.ID,
		BookingID:     m.BookingID,
		SenderID:      m.SenderID,
		RecipientID:   m.RecipientID,
		Content:       m.Content,
		AttachmentRef: m.AttachmentRef,
		IsRead:        m.IsRead,
		CreatedAt:     m.CreatedAt,
	}
}

func mapViews[T, V any](rows []T, view func(T) V) []V {
	out := make([]V, 0, len(rows))
	for _, row := range rows {
		out = append(out, view(row))
	}
	return out
}
