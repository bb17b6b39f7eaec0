package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/db"
	"marketplace/internal/metrics"
	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/notify"
	"marketplace/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const reasonInsufficientFunds = "insufficient_funds"

type WalletStore interface {
	Ensure(ctx context.Context, tx store.Execer, userID string) error
	GetOrCreate(ctx context.Context, userID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID string, balance decimal.Decimal) error
	Reconcile(ctx context.Context) ([]store.WalletDrift, error)
}

type WalletRequestStore interface {
	Create(ctx context.Context, tx store.Execer, input store.WalletRequestInput) error
	GetByID(ctx context.Context, tx store.Getter, requestID string) (models.WalletRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, requestID string) (models.WalletRequest, error)
	Resolve(ctx context.Context, tx store.Execer, input store.WalletRequestResolution) (int64, error)
	List(ctx context.Context, filter store.WalletRequestFilter) ([]models.WalletRequest, error)
}

type WalletTransactionStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.WalletTransactionInput) error
	GetByIdempotencyKey(ctx context.Context, tx store.Getter, key string) (models.WalletTransaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.WalletTransaction, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// LedgerEntry is one balance movement. Amount is always positive; Debit and
// Credit decide the sign.
type LedgerEntry struct {
	UserID         string
	Type           models.WalletTransactionType
	Amount         decimal.Decimal
	BookingID      *string
	RequestID      *string
	IdempotencyKey *string
}

type WalletService struct {
	txRunner      db.TxRunner
	wallets       WalletStore
	requests      WalletRequestStore
	transactions  WalletTransactionStore
	audit         AuditStore
	notifier      notify.Notifier
	minWithdrawal decimal.Decimal
}

func NewWalletService(txRunner db.TxRunner, wallets WalletStore, requests WalletRequestStore, transactions WalletTransactionStore, audit AuditStore, notifier notify.Notifier, minWithdrawal decimal.Decimal) *WalletService {
	return &WalletService{
		txRunner:      txRunner,
		wallets:       wallets,
		requests:      requests,
		transactions:  transactions,
		audit:         audit,
		notifier:      notifier,
		minWithdrawal: minWithdrawal,
	}
}

// Debit takes entry.Amount from the wallet inside tx. It fails with
// InsufficientFunds, leaving the wallet untouched, when the balance is short.
func (s *WalletService) Debit(ctx context.Context, tx store.Tx, entry LedgerEntry) (decimal.Decimal, error) {
	return s.apply(ctx, tx, entry, entry.Amount.Neg())
}

func (s *WalletService) Credit(ctx context.Context, tx store.Tx, entry LedgerEntry) (decimal.Decimal, error) {
	return s.apply(ctx, tx, entry, entry.Amount)
}

func (s *WalletService) apply(ctx context.Context, tx store.Tx, entry LedgerEntry, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(entry.Amount); err != nil {
		return decimal.Zero, err
	}
	if err := s.wallets.Ensure(ctx, tx, entry.UserID); err != nil {
		return decimal.Zero, err
	}
	wallet, err := s.wallets.GetForUpdate(ctx, tx, entry.UserID)
	if err != nil {
		return decimal.Zero, err
	}
	next := wallet.Balance.Add(delta)
	if next.IsNegative() {
		return wallet.Balance, apperr.InsufficientFunds("balance %s is below %s", money.Format(wallet.Balance), money.Format(entry.Amount))
	}
	if !money.InRange(next) {
		return wallet.Balance, apperr.Validation("balance would exceed %s", money.Format(money.Max))
	}
	if err := s.wallets.UpdateBalance(ctx, tx, entry.UserID, next); err != nil {
		return decimal.Zero, err
	}
	err = s.transactions.Insert(ctx, tx, store.WalletTransactionInput{
		ID:             uuid.NewString(),
		UserID:         entry.UserID,
		Type:           entry.Type,
		Amount:         delta,
		BalanceAfter:   next,
		BookingID:      entry.BookingID,
		RequestID:      entry.RequestID,
		IdempotencyKey: entry.IdempotencyKey,
	})
	if db.IsUniqueViolation(err, "") {
		return decimal.Zero, apperr.Conflict("%s already recorded", entry.Type)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

// LockWallets row-locks several wallets in user id order so two transactions
// locking the same pair can never deadlock.
func (s *WalletService) LockWallets(ctx context.Context, tx store.Tx, userIDs ...string) error {
	for _, userID := range orderedIDs(userIDs) {
		if err := s.wallets.Ensure(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.wallets.GetForUpdate(ctx, tx, userID); err != nil {
			return err
		}
	}
	return nil
}

// FindPayment looks up an earlier movement recorded under key.
func (s *WalletService) FindPayment(ctx context.Context, tx store.Tx, key string) (models.WalletTransaction, bool, error) {
	row, err := s.transactions.GetByIdempotencyKey(ctx, tx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WalletTransaction{}, false, nil
	}
	if err != nil {
		return models.WalletTransaction{}, false, err
	}
	return row, true, nil
}

type DepositInput struct {
	Amount        decimal.Decimal
	Reference     string
	ScreenshotRef string
}

func (s *WalletService) RequestDeposit(ctx context.Context, actor auth.Actor, input DepositInput) (models.WalletRequest, error) {
	if err := authorize(OpWalletDeposit, actor); err != nil {
		return models.WalletRequest{}, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return models.WalletRequest{}, err
	}
	reference := strings.TrimSpace(input.Reference)
	screenshot := strings.TrimSpace(input.ScreenshotRef)
	if reference == "" {
		return models.WalletRequest{}, apperr.Validation("reference is required")
	}
	if screenshot == "" {
		return models.WalletRequest{}, apperr.Validation("screenshot_ref is required")
	}
	created, err := s.createRequest(ctx, actor, store.WalletRequestInput{
		ID:            uuid.NewString(),
		UserID:        actor.ID,
		Type:          models.WalletRequestDeposit,
		Amount:        input.Amount,
		Reference:     reference,
		ScreenshotRef: &screenshot,
	})
	if err != nil {
		return models.WalletRequest{}, err
	}
	metrics.RecordWalletOperation("deposit_request", "ok")
	return created, nil
}

type WithdrawalInput struct {
	Amount          decimal.Decimal
	PayoutReference string
}

// RequestWithdrawal files a payout request. The balance check here is
// advisory: funds are not held, so a short balance only sets BalanceWarning
// and the binding check happens at approval.
func (s *WalletService) RequestWithdrawal(ctx context.Context, actor auth.Actor, input WithdrawalInput) (models.WalletRequest, error) {
	if err := authorize(OpWalletWithdraw, actor); err != nil {
		return models.WalletRequest{}, err
	}
	if err := validateAmount(input.Amount); err != nil {
		return models.WalletRequest{}, err
	}
	if input.Amount.LessThan(s.minWithdrawal) {
		return models.WalletRequest{}, apperr.Validation("minimum withdrawal is %s", money.Format(s.minWithdrawal))
	}
	reference := strings.TrimSpace(input.PayoutReference)
	if reference == "" {
		return models.WalletRequest{}, apperr.Validation("payout_reference is required")
	}
	wallet, err := s.wallets.GetOrCreate(ctx, actor.ID)
	if err != nil {
		return models.WalletRequest{}, err
	}
	created, err := s.createRequest(ctx, actor, store.WalletRequestInput{
		ID:             uuid.NewString(),
		UserID:         actor.ID,
		Type:           models.WalletRequestWithdrawal,
		Amount:         input.Amount,
		Reference:      reference,
		BalanceWarning: input.Amount.GreaterThan(wallet.Balance),
	})
	if err != nil {
		return models.WalletRequest{}, err
	}
	metrics.RecordWalletOperation("withdrawal_request", "ok")
	return created, nil
}

func (s *WalletService) createRequest(ctx context.Context, actor auth.Actor, input store.WalletRequestInput) (models.WalletRequest, error) {
	var created models.WalletRequest
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.wallets.Ensure(ctx, tx, input.UserID); err != nil {
			return err
		}
		if err := s.requests.Create(ctx, tx, input); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"type":   string(input.Type),
			"amount": money.Format(input.Amount),
		})
		if err := s.audit.Log(ctx, tx, actor.ID, "wallet."+string(input.Type)+"_requested", "wallet_request", input.ID, string(data)); err != nil {
			return err
		}
		row, err := s.requests.GetByID(ctx, tx, input.ID)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return models.WalletRequest{}, translate(err, "wallet request")
	}
	return created, nil
}

type ResolveInput struct {
	Approve bool
	Reason  string
}

// ResolveRequest settles a pending request exactly once. An approved
// withdrawal that the balance no longer covers is committed as rejected and
// then reported as InsufficientFunds.
func (s *WalletService) ResolveRequest(ctx context.Context, actor auth.Actor, requestID string, input ResolveInput) (models.WalletRequest, error) {
	if err := authorize(OpWalletResolve, actor); err != nil {
		return models.WalletRequest{}, err
	}
	var resolved models.WalletRequest
	var autoRejected bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		autoRejected = false
		req, err := s.requests.GetForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.WalletRequestPending {
			return apperr.InvalidTransition("wallet request %s is already %s", req.ID, req.Status)
		}
		status := models.WalletRequestRejected
		var reason *string
		if input.Approve {
			status = models.WalletRequestApproved
			entry := LedgerEntry{UserID: req.UserID, Amount: req.Amount, RequestID: &req.ID}
			switch req.Type {
			case models.WalletRequestDeposit:
				entry.Type = models.TxDeposit
				_, err = s.Credit(ctx, tx, entry)
			case models.WalletRequestWithdrawal:
				entry.Type = models.TxWithdrawal
				_, err = s.Debit(ctx, tx, entry)
			}
			if errors.Is(err, apperr.ErrInsufficientFunds) {
				status = models.WalletRequestRejected
				insufficient := reasonInsufficientFunds
				reason = &insufficient
				autoRejected = true
			} else if err != nil {
				return err
			}
		} else if trimmed := strings.TrimSpace(input.Reason); trimmed != "" {
			reason = &trimmed
		}
		rows, err := s.requests.Resolve(ctx, tx, store.WalletRequestResolution{
			ID:              req.ID,
			Status:          status,
			RejectionReason: reason,
			ResolvedBy:      actor.ID,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.Conflict("wallet request %s was resolved concurrently", req.ID)
		}
		data, _ := json.Marshal(map[string]string{
			"status": string(status),
			"type":   string(req.Type),
			"amount": money.Format(req.Amount),
		})
		if err := s.audit.Log(ctx, tx, actor.ID, "wallet.request_resolved", "wallet_request", req.ID, string(data)); err != nil {
			return err
		}
		resolved, err = s.requests.GetByID(ctx, tx, req.ID)
		return err
	})
	if err != nil {
		err = translate(err, "wallet request")
		metrics.RecordWalletOperation("resolve", string(apperr.KindOf(err)))
		return models.WalletRequest{}, err
	}

	event := notify.WalletRequestApproved
	if resolved.Status == models.WalletRequestRejected {
		event = notify.WalletRequestRejected
	}
	data := map[string]string{"Amount": money.Format(resolved.Amount), "Type": string(resolved.Type)}
	if resolved.RejectionReason != nil {
		data["Reason"] = *resolved.RejectionReason
	}
	s.notifier.Notify(ctx, notify.Event{
		Type:        event,
		RecipientID: resolved.UserID,
		RequestID:   resolved.ID,
		Status:      string(resolved.Status),
		Data:        data,
	})

	if autoRejected {
		metrics.RecordWalletOperation("resolve", reasonInsufficientFunds)
		return resolved, apperr.InsufficientFunds("wallet balance no longer covers withdrawal %s; request rejected", resolved.ID)
	}
	metrics.RecordWalletOperation("resolve", string(resolved.Status))
	return resolved, nil
}

func (s *WalletService) Balance(ctx context.Context, actor auth.Actor) (models.Wallet, error) {
	if err := authorize(OpWalletView, actor); err != nil {
		return models.Wallet{}, err
	}
	return s.wallets.GetOrCreate(ctx, actor.ID)
}

func (s *WalletService) ListTransactions(ctx context.Context, actor auth.Actor, limit, offset int) ([]models.WalletTransaction, error) {
	if err := authorize(OpWalletView, actor); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.transactions.ListByUser(ctx, actor.ID, limit, offset)
}

type RequestListFilter struct {
	UserID string
	Status models.WalletRequestStatus
	Limit  int
	Offset int
}

// ListRequests shows a user their own requests; admins see everyone's and
// may narrow by user.
func (s *WalletService) ListRequests(ctx context.Context, actor auth.Actor, filter RequestListFilter) ([]models.WalletRequest, error) {
	if err := authorize(OpWalletView, actor); err != nil {
		return nil, err
	}
	if filter.Status != "" && filter.Status != models.WalletRequestPending &&
		filter.Status != models.WalletRequestApproved && filter.Status != models.WalletRequestRejected {
		return nil, apperr.Validation("unknown status %q", filter.Status)
	}
	userID := filter.UserID
	if !actor.Is(auth.RoleAdmin) {
		userID = actor.ID
	}
	limit, offset := clampPage(filter.Limit, filter.Offset)
	return s.requests.List(ctx, store.WalletRequestFilter{
		UserID: userID,
		Status: filter.Status,
		Limit:  limit,
		Offset: offset,
	})
}

// Reconcile reports wallets whose stored balance differs from the sum of
// their movements.
func (s *WalletService) Reconcile(ctx context.Context, actor auth.Actor) ([]store.WalletDrift, error) {
	if err := authorize(OpWalletReconcile, actor); err != nil {
		return nil, err
	}
	return s.wallets.Reconcile(ctx)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(money.Scale)) {
		return apperr.Validation("amount must have at most %d decimal places", money.Scale)
	}
	if !money.InRange(amount) {
		return apperr.Validation("amount must not exceed %s", money.Format(money.Max))
	}
	return nil
}

func orderedIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	return ordered
}
