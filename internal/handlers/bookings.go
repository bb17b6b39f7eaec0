package handlers

import (
	"net/http"
	"time"

	"marketplace/internal/apperr"
	"marketplace/internal/models"
	"marketplace/internal/services"

	"github.com/go-chi/chi/v5"
)

type createBookingRequest struct {
	ProviderID  string    `json:"provider_id"`
	ServiceID   string    `json:"service_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Address     string    `json:"address"`
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	booking, err := h.bookings.Create(r.Context(), actor, services.CreateBookingInput(req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newBookingView(booking))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	bookings, err := h.bookings.List(r.Context(), actor, services.BookingListFilter{
		Status: models.BookingStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, mapViews(bookings, newBookingView))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	booking, err := h.bookings.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newBookingView(booking))
}

type priceRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) PriceBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req priceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	h.respondBooking(w, r)(h.bookings.SetPriceAndAccept(r.Context(), actor, chi.URLParam(r, "id"), amount))
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	h.respondBooking(w, r)(h.bookings.Reject(r.Context(), actor, chi.URLParam(r, "id")))
}

type confirmRequest struct {
	Accept *bool `json:"accept"`
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Accept == nil {
		respondServiceError(w, r, apperr.Validation("accept is required"))
		return
	}
	h.respondBooking(w, r)(h.bookings.ConfirmPrice(r.Context(), actor, chi.URLParam(r, "id"), *req.Accept))
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	h.respondBooking(w, r)(h.bookings.MarkCompleted(r.Context(), actor, chi.URLParam(r, "id")))
}

func (h *Handler) PayBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if len(key) > 255 {
		respondServiceError(w, r, apperr.Validation("Idempotency-Key is too long"))
		return
	}
	h.respondBooking(w, r)(h.bookings.Pay(r.Context(), actor, chi.URLParam(r, "id"), key))
}

func (h *Handler) respondBooking(w http.ResponseWriter, r *http.Request) func(models.Booking, error) {
	return func(booking models.Booking, err error) {
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, newBookingView(booking))
	}
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req services.ReviewInput
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.bookings.AttachReview(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newReviewView(review))
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	review, err := h.bookings.GetReview(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newReviewView(review))
}
