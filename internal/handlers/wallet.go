package handlers

import (
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/money"
	"marketplace/internal/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	wallet, err := h.wallets.Balance(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, walletView{
		UserID:    wallet.UserID,
		Balance:   money.Format(wallet.Balance),
		UpdatedAt: wallet.UpdatedAt,
	})
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	rows, err := h.wallets.ListTransactions(r.Context(), actor, limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapViews(rows, func(tx models.WalletTransaction) walletTransactionView {
		return walletTransactionView{
			ID:           tx.ID,
			Type:         string(tx.Type),
			Amount:       money.Format(tx.Amount),
			BalanceAfter: money.Format(tx.BalanceAfter),
			BookingID:    tx.BookingID,
			RequestID:    tx.RequestID,
			CreatedAt:    tx.CreatedAt,
		}
	}))
}

// ListWalletRequests serves both the caller's own list and the admin queue;
// the service decides how far the user_id filter reaches.
func (h *Handler) ListWalletRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	query := r.URL.Query()
	rows, err := h.wallets.ListRequests(r.Context(), actor, services.RequestListFilter{
		UserID: query.Get("user_id"),
		Status: models.WalletRequestStatus(query.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapViews(rows, newWalletRequestView))
}

func (h *Handler) AdminListWalletRequests(w http.ResponseWriter, r *http.Request) {
	h.ListWalletRequests(w, r)
}

type depositRequest struct {
	Amount        string `json:"amount"`
	Reference     string `json:"reference"`
	ScreenshotRef string `json:"screenshot_ref"`
}

func (h *Handler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	created, err := h.wallets.RequestDeposit(r.Context(), actor, services.DepositInput{
		Amount:        amount,
		Reference:     req.Reference,
		ScreenshotRef: req.ScreenshotRef,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newWalletRequestView(created))
}

type withdrawalRequest struct {
	Amount          string `json:"amount"`
	PayoutReference string `json:"payout_reference"`
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	created, err := h.wallets.RequestWithdrawal(r.Context(), actor, services.WithdrawalInput{
		Amount:          amount,
		PayoutReference: req.PayoutReference,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newWalletRequestView(created))
}

type resolveRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *Handler) ResolveWalletRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resolved, err := h.wallets.ResolveRequest(r.Context(), actor, chi.URLParam(r, "id"), services.ResolveInput(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newWalletRequestView(resolved))
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	drift, err := h.wallets.Reconcile(r.Context(), actor)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":      len(drift) == 0,
		"wallets": mapViews(drift, newDriftView),
	})
}
