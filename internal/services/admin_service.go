package services

import (
	"context"
	"encoding/json"

	"marketplace/internal/apperr"
	"marketplace/internal/auth"
	"marketplace/internal/db"
	"marketplace/internal/models"
	"marketplace/internal/notify"
	"marketplace/internal/store"

	"github.com/jmoiron/sqlx"
)

type AuditReader interface {
	AuditStore
	List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditEntry, error)
}

type AdminService struct {
	txRunner  db.TxRunner
	providers ProviderStore
	audit     AuditReader
	notifier  notify.Notifier
}

func NewAdminService(txRunner db.TxRunner, providers ProviderStore, audit AuditReader, notifier notify.Notifier) *AdminService {
	return &AdminService{
		txRunner:  txRunner,
		providers: providers,
		audit:     audit,
		notifier:  notifier,
	}
}

// VerifyProvider sets the verified flag on a provider profile.
func (s *AdminService) VerifyProvider(ctx context.Context, actor auth.Actor, providerID string, verified bool) (models.ProviderProfile, error) {
	if err := authorize(OpProviderVerify, actor); err != nil {
		return models.ProviderProfile{}, err
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.providers.SetVerified(ctx, tx, providerID, verified)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperr.NotFound("provider %s not found", providerID)
		}
		data, _ := json.Marshal(map[string]bool{"verified": verified})
		return s.audit.Log(ctx, tx, actor.ID, string(OpProviderVerify), "provider_profile", providerID, string(data))
	})
	if err != nil {
		return models.ProviderProfile{}, translate(err, "provider")
	}
	profile, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return models.ProviderProfile{}, translate(err, "provider")
	}
	if verified {
		s.notifier.Notify(ctx, notify.Event{Type: notify.ProviderVerified, RecipientID: profile.UserID})
	}
	return profile, nil
}

func (s *AdminService) AuditLog(ctx context.Context, actor auth.Actor, entityType string, limit, offset int) ([]store.AuditEntry, error) {
	if err := authorize(OpAuditView, actor); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.audit.List(ctx, entityType, limit, offset)
}
