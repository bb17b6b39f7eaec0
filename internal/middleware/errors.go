package middleware

import (
	"encoding/json"
	"net/http"

	"marketplace/internal/apperr"
)

// writeError writes the {"error": {"code", "message"}} envelope the handlers
// package uses.
func writeError(w http.ResponseWriter, status int, code apperr.Kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": string(code), "message": message},
	})
}

const codeUnauthorized apperr.Kind = "UNAUTHORIZED"
