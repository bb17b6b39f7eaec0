package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/logger"
	"marketplace/internal/middleware"
	"marketplace/internal/money"

	"github.com/shopspring/decimal"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidTransition: http.StatusConflict,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindInsufficientFunds: http.StatusUnprocessableEntity,
}

// respondServiceError maps an apperr kind onto its HTTP status. Anything else
// is logged and hidden behind a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if status, ok := kindStatus[appErr.Kind]; ok {
			respondError(w, status, string(appErr.Kind), appErr.Message)
			return
		}
	}
	logger.WithField("path", r.URL.Path).Errorf("request failed: %v", err)
	respondError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func actorFrom(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	}
	return actor, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, string(apperr.KindValidation), "invalid payload")
		return false
	}
	return true
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := money.ParsePositive(raw)
	if err != nil {
		return decimal.Zero, apperr.Validation("amount: %v", err)
	}
	return amount, nil
}

func pagination(r *http.Request) (int, int) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	return limit, offset
}
