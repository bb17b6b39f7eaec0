package services

import (
	"database/sql"
	"errors"

	"marketplace/internal/apperr"
	"marketplace/internal/db"
)

// translate maps storage errors onto the client-facing taxonomy. Retryable
// serialization failures must reach db.WithTx untouched, so call this only
// on errors leaving a transaction or on reads outside one.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("%s not found", entity)
	case errors.Is(err, db.ErrRetryLimit):
		return apperr.Conflict("%s was modified concurrently, retry", entity)
	case db.IsUniqueViolation(err, ""):
		return apperr.Conflict("%s already exists", entity)
	case db.IsNumericOverflow(err):
		return apperr.Validation("%s amount is out of range", entity)
	}
	return err
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
