package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/logger"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/websocket"
)

type UserLookup interface {
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type EmailQueue interface {
	Enqueue(ctx context.Context, job EmailJob) error
}

type EventPublisher interface {
	Publish(userID string, event websocket.Event) int
}

const maxInFlight = 64

// Dispatcher fans committed events out to the email queue and the websocket
// hub on background goroutines. Delivery errors are logged and counted only.
type Dispatcher struct {
	users   UserLookup
	queue   EmailQueue
	hub     EventPublisher
	timeout time.Duration
	slots   chan struct{}
	wg      sync.WaitGroup
}

func NewDispatcher(users UserLookup, queue EmailQueue, hub EventPublisher, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		users:   users,
		queue:   queue,
		hub:     hub,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	if event.RecipientID == "" {
		return
	}
	select {
	case d.slots <- struct{}{}:
	default:
		logger.Warnf("notification %s for %s dropped: dispatcher saturated", event.Type, event.RecipientID)
		metrics.RecordNotification("dispatch", "dropped")
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.slots }()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.deliver(ctx, event)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	entry := logger.WithField("event", string(event.Type)).WithField("recipient", event.RecipientID)

	if d.hub != nil && event.Type != MessageReceived {
		d.hub.Publish(event.RecipientID, websocket.Event{
			Type:      string(event.Type),
			BookingID: event.BookingID,
			RequestID: event.RequestID,
			Status:    event.Status,
		})
		metrics.RecordNotification("websocket", "published")
	}

	if d.queue == nil || d.users == nil {
		return
	}
	user, err := d.users.GetByID(ctx, event.RecipientID)
	if err != nil {
		entry.Warnf("resolve recipient: %v", err)
		metrics.RecordNotification("email", "failed")
		return
	}
	subject, body := render(event, user.Name)
	if err := d.queue.Enqueue(ctx, EmailJob{
		To:      user.Email,
		Name:    user.Name,
		Kind:    string(event.Type),
		Subject: subject,
		Body:    body,
	}); err != nil {
		entry.Warnf("enqueue email: %v", err)
		metrics.RecordNotification("email", "failed")
		return
	}
	metrics.RecordNotification("email", "queued")
}

var subjects = map[EventType]string{
	BookingCreated:        "New booking request",
	BookingPriced:         "Your booking has a price",
	BookingRejected:       "Booking rejected",
	BookingConfirmed:      "Price confirmed",
	BookingDeclined:       "Price declined",
	BookingCompleted:      "Service marked as completed",
	BookingPaid:           "Booking paid",
	BookingReviewed:       "New review",
	MessageReceived:       "New message",
	WalletRequestApproved: "Wallet request approved",
	WalletRequestRejected: "Wallet request rejected",
	ProviderVerified:      "Profile verified",
}

func render(event Event, name string) (string, string) {
	subject, ok := subjects[event.Type]
	if !ok {
		subject = "Account update"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s.\n", name, subject)
	if event.BookingID != "" {
		fmt.Fprintf(&b, "\nBooking: %s\n", event.BookingID)
	}
	if event.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest: %s\n", event.RequestID)
	}
	if event.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", event.Status)
	}
	for _, key := range sortedKeys(event.Data) {
		fmt.Fprintf(&b, "%s: %s\n", key, event.Data[key])
	}
	return subject, b.String()
}

func sortedKeys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
