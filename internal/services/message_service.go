package services

import (
	"context"
	"strings"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/db"
	"marketplace/internal/models"
	"marketplace/internal/notify"
	"marketplace/internal/store"
	"marketplace/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MessageStore interface {
	Create(ctx context.Context, tx store.Getter, input store.MessageInput) (models.Message, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Message, error)
	MarkRead(ctx context.Context, bookingID, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type BookingReader interface {
	GetByID(ctx context.Context, bookingID string) (models.Booking, error)
	GetForShare(ctx context.Context, tx store.Getter, bookingID string) (models.Booking, error)
}

type MessageService struct {
	txRunner db.TxRunner
	bookings BookingReader
	messages MessageStore
	notifier notify.Notifier
}

func NewMessageService(txRunner db.TxRunner, bookings BookingReader, messages MessageStore, notifier notify.Notifier) *MessageService {
	return &MessageService{
		txRunner: txRunner,
		bookings: bookings,
		messages: messages,
		notifier: notifier,
	}
}

type SendMessageInput struct {
	Content       string `json:"content" validate:"max=4000"`
	AttachmentRef string `json:"attachment_ref" validate:"omitempty,url"`
}

// Send posts a message from one booking party to the other. The booking is
// share-locked so its status cannot leave the active set mid-insert.
func (s *MessageService) Send(ctx context.Context, actor auth.Actor, bookingID string, input SendMessageInput) (models.Message, error) {
	if err := authorize(OpMessageSend, actor); err != nil {
		return models.Message{}, err
	}
	if err := validator.Struct(input); err != nil {
		return models.Message{}, err
	}
	content := strings.TrimSpace(input.Content)
	var attachment *string
	if ref := strings.TrimSpace(input.AttachmentRef); ref != "" {
		attachment = &ref
	}
	if content == "" && attachment == nil {
		return models.Message{}, apperr.Validation("content or attachment_ref is required")
	}
	var sent models.Message
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		booking, err := s.bookings.GetForShare(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		recipient := booking.PartyOther(actor.ID)
		if recipient == "" {
			return apperr.Forbidden("you are not a party to booking %s", bookingID)
		}
		if !booking.Status.ChatActive() {
			return apperr.Forbidden("chat is closed while booking is %s", booking.Status)
		}
		row, err := s.messages.Create(ctx, tx, store.MessageInput{
			ID:            uuid.NewString(),
			BookingID:     booking.ID,
			SenderID:      actor.ID,
			RecipientID:   recipient,
			Content:       content,
			AttachmentRef: attachment,
		})
		if err != nil {
			return err
		}
		sent = row
		return nil
	})
	if err != nil {
		return models.Message{}, translate(err, "booking")
	}
	s.notifier.Notify(ctx, notify.Event{
		Type:        notify.MessageReceived,
		RecipientID: sent.RecipientID,
		BookingID:   sent.BookingID,
	})
	return sent, nil
}

// List returns the thread oldest first.
func (s *MessageService) List(ctx context.Context, actor auth.Actor, bookingID string) ([]models.Message, error) {
	if err := authorize(OpMessageList, actor); err != nil {
		return nil, err
	}
	if _, err := s.partyBooking(ctx, actor, bookingID, true); err != nil {
		return nil, err
	}
	return s.messages.ListByBooking(ctx, bookingID)
}

// MarkRead flags every unread message addressed to actor in the booking and
// returns how many changed. Repeating it changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, actor auth.Actor, bookingID string) (int64, error) {
	if err := authorize(OpMessageRead, actor); err != nil {
		return 0, err
	}
	if _, err := s.partyBooking(ctx, actor, bookingID, false); err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, bookingID, actor.ID)
}

func (s *MessageService) UnreadCount(ctx context.Context, actor auth.Actor) (int, error) {
	if err := authorize(OpMessageRead, actor); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, actor.ID)
}

func (s *MessageService) partyBooking(ctx context.Context, actor auth.Actor, bookingID string, adminAllowed bool) (models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, translate(err, "booking")
	}
	if booking.IsParty(actor.ID) || (adminAllowed && actor.Is(auth.RoleAdmin)) {
		return booking, nil
	}
	return models.Booking{}, apperr.Forbidden("you are not a party to booking %s", bookingID)
}

