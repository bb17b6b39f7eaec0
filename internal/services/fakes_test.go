package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/notify"
	"marketplace/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// memState is the whole fake database. Structs are copied by value, so a
// shallow clone of every map and slice is a full snapshot.
type memState struct {
	users        map[string]models.User
	providers    map[string]models.ProviderProfile
	bookings     map[string]models.Booking
	wallets      map[string]models.Wallet
	requests     map[string]models.WalletRequest
	transactions []models.WalletTransaction
	messages     []models.Message
	reviews      map[string]models.Review
	audit        []store.AuditEntry
}

func newMemState() memState {
	return memState{
		users:     map[string]models.User{},
		providers: map[string]models.ProviderProfile{},
		bookings:  map[string]models.Booking{},
		wallets:   map[string]models.Wallet{},
		requests:  map[string]models.WalletRequest{},
		reviews:   map[string]models.Review{},
	}
}

func (s memState) clone() memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.providers {
		c.providers[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.reviews {
		c.reviews[k] = v
	}
	c.transactions = append([]models.WalletTransaction(nil), s.transactions...)
	c.messages = append([]models.Message(nil), s.messages...)
	c.audit = append([]store.AuditEntry(nil), s.audit...)
	return c
}

// memDB serializes transactions behind one mutex, which is a stricter
// version of the row locks the real stores take. A transaction works on a
// private copy that replaces the committed state only when fn succeeds.
type memDB struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	committed memState
	work      *memState
	inTx      atomic.Bool
	clock     time.Time
}

func newMemDB() *memDB {
	return &memDB{
		committed: newMemState(),
		clock:     time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	work := m.committed.clone()
	m.mu.Unlock()
	m.work = &work
	m.inTx.Store(true)
	err := fn(nil)
	m.inTx.Store(false)
	m.work = nil
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.committed = work
	m.mu.Unlock()
	return nil
}

// tx is the state visible to statements run inside WithTx.
func (m *memDB) tx() *memState {
	if m.work == nil {
		panic("statement issued outside a transaction")
	}
	return m.work
}

func (m *memDB) read(fn func(s *memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.committed)
}

// write applies an autocommit statement; it waits for running transactions.
func (m *memDB) write(fn func(s *memState)) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.committed)
}

func (m *memDB) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

type memBookings struct{ db *memDB }

func (f memBookings) Create(ctx context.Context, tx store.Execer, input store.BookingInput) error {
	s := f.db.tx()
	now := f.db.now()
	s.bookings[input.ID] = models.Booking{
		ID:             input.ID,
		CustomerID:     input.CustomerID,
		ProviderID:     input.ProviderID,
		ProviderUserID: s.providers[input.ProviderID].UserID,
		ServiceID:      input.ServiceID,
		Status:         models.BookingPendingProvider,
		ScheduledAt:    input.ScheduledAt,
		Address:        input.Address,
		Description:    input.Description,
		Notes:          input.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (f memBookings) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	var row models.Booking
	var ok bool
	f.db.read(func(s *memState) { row, ok = s.bookings[bookingID] })
	if !ok {
		return models.Booking{}, sql.ErrNoRows
	}
	return row, nil
}

func (f memBookings) GetForUpdate(ctx context.Context, tx store.Getter, bookingID string) (models.Booking, error) {
	row, ok := f.db.tx().bookings[bookingID]
	if !ok {
		return models.Booking{}, sql.ErrNoRows
	}
	return row, nil
}

func (f memBookings) GetForShare(ctx context.Context, tx store.Getter, bookingID string) (models.Booking, error) {
	return f.GetForUpdate(ctx, tx, bookingID)
}

func (f memBookings) UpdateStatus(ctx context.Context, tx store.Execer, bookingID string, from, to models.BookingStatus) (int64, error) {
	s := f.db.tx()
	row, ok := s.bookings[bookingID]
	if !ok || row.Status != from {
		return 0, nil
	}
	row.Status = to
	row.UpdatedAt = f.db.now()
	s.bookings[bookingID] = row
	return 1, nil
}

func (f memBookings) SetAmount(ctx context.Context, tx store.Execer, bookingID string, amount decimal.Decimal) (int64, error) {
	s := f.db.tx()
	row, ok := s.bookings[bookingID]
	if !ok || row.Amount.Valid {
		return 0, nil
	}
	row.Amount = decimal.NewNullDecimal(amount)
	s.bookings[bookingID] = row
	return 1, nil
}

func (f memBookings) List(ctx context.Context, filter store.BookingFilter) ([]models.Booking, error) {
	rows := []models.Booking{}
	f.db.read(func(s *memState) {
		for _, b := range s.bookings {
			if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
				continue
			}
			if filter.ProviderUserID != "" && b.ProviderUserID != filter.ProviderUserID {
				continue
			}
			if filter.Status != "" && b.Status != filter.Status {
				continue
			}
			rows = append(rows, b)
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return page(rows, filter.Limit, filter.Offset), nil
}

type memProviders struct{ db *memDB }

func (f memProviders) GetByID(ctx context.Context, providerID string) (models.ProviderProfile, error) {
	var row models.ProviderProfile
	var ok bool
	f.db.read(func(s *memState) { row, ok = s.providers[providerID] })
	if !ok {
		return models.ProviderProfile{}, sql.ErrNoRows
	}
	return row, nil
}

func (f memProviders) SetVerified(ctx context.Context, tx store.Execer, providerID string, verified bool) (int64, error) {
	s := f.db.tx()
	row, ok := s.providers[providerID]
	if !ok {
		return 0, nil
	}
	row.Verified = verified
	s.providers[providerID] = row
	return 1, nil
}

type memReviews struct{ db *memDB }

func (f memReviews) Create(ctx context.Context, tx store.Execer, input store.ReviewInput) error {
	s := f.db.tx()
	if _, exists := s.reviews[input.BookingID]; exists {
		return uniqueViolation("reviews_booking_id_key")
	}
	s.reviews[input.BookingID] = models.Review{
		ID:        input.ID,
		BookingID: input.BookingID,
		Rating:    input.Rating,
		Comment:   input.Comment,
		CreatedAt: f.db.now(),
	}
	return nil
}

func (f memReviews) ExistsForBooking(ctx context.Context, tx store.Getter, bookingID string) (bool, error) {
	_, exists := f.db.tx().reviews[bookingID]
	return exists, nil
}

func (f memReviews) GetByBooking(ctx context.Context, bookingID string) (models.Review, error) {
	var row models.Review
	var ok bool
	f.db.read(func(s *memState) { row, ok = s.reviews[bookingID] })
	if !ok {
		return models.Review{}, sql.ErrNoRows
	}
	return row, nil
}

type memWallets struct{ db *memDB }

func (f memWallets) Ensure(ctx context.Context, tx store.Execer, userID string) error {
	s := f.db.tx()
	if _, ok := s.wallets[userID]; !ok {
		s.wallets[userID] = models.Wallet{UserID: userID, Balance: decimal.Zero}
	}
	return nil
}

func (f memWallets) GetOrCreate(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	f.db.write(func(s *memState) {
		if _, ok := s.wallets[userID]; !ok {
			s.wallets[userID] = models.Wallet{UserID: userID, Balance: decimal.Zero}
		}
		row = s.wallets[userID]
	})
	return row, nil
}

func (f memWallets) GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error) {
	row, ok := f.db.tx().wallets[userID]
	if !ok {
		return models.Wallet{}, sql.ErrNoRows
	}
	return row, nil
}

func (f memWallets) UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return &pq.Error{Code: "23514", Constraint: "wallets_balance_check"}
	}
	s := f.db.tx()
	row := s.wallets[userID]
	row.Balance = balance
	s.wallets[userID] = row
	return nil
}

func (f memWallets) Reconcile(ctx context.Context) ([]store.WalletDrift, error) {
	drift := []store.WalletDrift{}
	f.db.read(func(s *memState) {
		sums := map[string]decimal.Decimal{}
		for _, tx := range s.transactions {
			sums[tx.UserID] = sums[tx.UserID].Add(tx.Amount)
		}
		for userID, wallet := range s.wallets {
			if !wallet.Balance.Equal(sums[userID]) {
				drift = append(drift, store.WalletDrift{
					UserID:            userID,
					StoredBalance:     wallet.Balance,
					CalculatedBalance: sums[userID],
					Difference:        wallet.Balance.Sub(sums[userID]),
				})
			}
		}
	})
	return drift, nil
}

type memRequests struct{ db *memDB }

func (f memRequests) Create(ctx context.Context, tx store.Execer, input store.WalletRequestInput) error {
	f.db.tx().requests[input.ID] = models.WalletRequest{
		ID:             input.ID,
		UserID:         input.UserID,
		Type:           input.Type,
		Amount:         input.Amount,
		Reference:      input.Reference,
		ScreenshotRef:  input.ScreenshotRef,
		BalanceWarning: input.BalanceWarning,
		Status:         models.WalletRequestPending,
		RequestedAt:    f.db.now(),
	}
	return nil
}

func (f memRequests) GetByID(ctx context.Context, tx store.Getter, requestID string) (models.WalletRequest, error) {
	row, ok := f.db.tx().requests[requestID]
	if !ok {
		return models.WalletRequest{}, sql.ErrNoRows
	}
	return row, nil
}

func (f memRequests) GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (models.WalletRequest, error) {
	return f.GetByID(ctx, tx, requestID)
}

func (f memRequests) Resolve(ctx context.Context, tx store.Execer, input store.WalletRequestResolution) (int64, error) {
	s := f.db.tx()
	row, ok := s.requests[input.ID]
	if !ok || row.Status != models.WalletRequestPending {
		return 0, nil
	}
	now := f.db.now()
	resolvedBy := input.ResolvedBy
	row.Status = input.Status
	row.RejectionReason = input.RejectionReason
	row.ResolvedBy = &resolvedBy
	row.ResolvedAt = &now
	s.requests[input.ID] = row
	return 1, nil
}

func (f memRequests) List(ctx context.Context, filter store.WalletRequestFilter) ([]models.WalletRequest, error) {
	rows := []models.WalletRequest{}
	f.db.read(func(s *memState) {
		for _, r := range s.requests {
			if filter.UserID != "" && r.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
			rows = append(rows, r)
		}
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].RequestedAt.Before(rows[j].RequestedAt) })
	return page(rows, filter.Limit, filter.Offset), nil
}

type memTransactions struct{ db *memDB }

func (f memTransactions) Insert(ctx context.Context, tx store.Execer, input store.WalletTransactionInput) error {
	s := f.db.tx()
	for _, existing := range s.transactions {
		if input.IdempotencyKey != nil && existing.IdempotencyKey != nil && *input.IdempotencyKey == *existing.IdempotencyKey {
			return uniqueViolation("wallet_transactions_idempotency_key_key")
		}
		if input.BookingID != nil && existing.BookingID != nil && *input.BookingID == *existing.BookingID && input.Type == existing.Type {
			return uniqueViolation("wallet_transactions_booking_type_key")
		}
		if input.RequestID != nil && existing.RequestID != nil && *input.RequestID == *existing.RequestID {
			return uniqueViolation("wallet_transactions_request_key")
		}
	}
	s.transactions = append(s.transactions, models.WalletTransaction{
		ID:             input.ID,
		UserID:         input.UserID,
		Type:           input.Type,
		Amount:         input.Amount,
		BalanceAfter:   input.BalanceAfter,
		BookingID:      input.BookingID,
		RequestID:      input.RequestID,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      f.db.now(),
	})
	return nil
}

func (f memTransactions) GetByIdempotencyKey(ctx context.Context, tx store.Getter, key string) (models.WalletTransaction, error) {
	for _, existing := range f.db.tx().transactions {
		if existing.IdempotencyKey != nil && *existing.IdempotencyKey == key {
			return existing, nil
		}
	}
	return models.WalletTransaction{}, sql.ErrNoRows
}

func (f memTransactions) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, error) {
	rows := []models.WalletTransaction{}
	f.db.read(func(s *memState) {
		for i := len(s.transactions) - 1; i >= 0; i-- {
			if s.transactions[i].UserID == userID {
				rows = append(rows, s.transactions[i])
			}
		}
	})
	return page(rows, limit, offset), nil
}

type memMessages struct{ db *memDB }

func (f memMessages) Create(ctx context.Context, tx store.Getter, input store.MessageInput) (models.Message, error) {
	s := f.db.tx()
	row := models.Message{
		ID:            input.ID,
		BookingID:     input.BookingID,
		SenderID:      input.SenderID,
		RecipientID:   input.RecipientID,
		Content:       input.Content,
		AttachmentRef: input.AttachmentRef,
		CreatedAt:     f.db.now(),
	}
	s.messages = append(s.messages, row)
	return row, nil
}

func (f memMessages) ListByBooking(ctx context.Context, bookingID string) ([]models.Message, error) {
	rows := []models.Message{}
	f.db.read(func(s *memState) {
		for _, m := range s.messages {
			if m.BookingID == bookingID {
				rows = append(rows, m)
			}
		}
	})
	// append order stands in for the seq column
	return rows, nil
}

func (f memMessages) MarkRead(ctx context.Context, bookingID, recipientID string) (int64, error) {
	var updated int64
	f.db.write(func(s *memState) {
		for i := range s.messages {
			m := &s.messages[i]
			if m.BookingID == bookingID && m.RecipientID == recipientID && !m.IsRead {
				m.IsRead = true
				updated++
			}
		}
	})
	return updated, nil
}

func (f memMessages) CountUnread(ctx context.Context, recipientID string) (int, error) {
	count := 0
	f.db.read(func(s *memState) {
		for _, m := range s.messages {
			if m.RecipientID == recipientID && !m.IsRead {
				count++
			}
		}
	})
	return count, nil
}

type memAudit struct{ db *memDB }

func (f memAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	s := f.db.tx()
	actor := actorID
	s.audit = append(s.audit, store.AuditEntry{
		ID:          entityType + ":" + entityID + ":" + action,
		ActorUserID: &actor,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Data:        data,
		CreatedAt:   f.db.now(),
	})
	return nil
}

func (f memAudit) List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditEntry, error) {
	rows := []store.AuditEntry{}
	f.db.read(func(s *memState) {
		for i := len(s.audit) - 1; i >= 0; i-- {
			if entityType == "" || s.audit[i].EntityType == entityType {
				rows = append(rows, s.audit[i])
			}
		}
	})
	return page(rows, limit, offset), nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return rows[:0]
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

type sentEvent struct {
	event    notify.Event
	duringTx bool
}

type recordingNotifier struct {
	mu     sync.Mutex
	db     *memDB
	events []sentEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{event: event, duringTx: n.db != nil && n.db.inTx.Load()})
}

func (n *recordingNotifier) ofType(eventType notify.EventType) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, sent := range n.events {
		if sent.event.Type == eventType {
			out = append(out, sent.event)
		}
	}
	return out
}

func (n *recordingNotifier) sentDuringTx() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, sent := range n.events {
		if sent.duringTx {
			count++
		}
	}
	return count
}
