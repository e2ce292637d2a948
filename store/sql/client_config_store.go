package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/security"
	"github.com/uptrace/bun"
)

// ClientConfigStore resolves per-credential delivery configuration. An
// unknown credential is not an error: delivery and review gating both fall
// back to zero-value behavior.
type ClientConfigStore struct {
	db      *bun.DB
	repo    repository.Repository[*clientWebhookConfigRecord]
	secrets core.SecretProvider
	now     func() time.Time
}

type ClientConfigStoreOption func(*ClientConfigStore)

// WithSecretProvider seals signature keys at rest. Rows written before
// encryption was enabled are read back as plaintext.
func WithSecretProvider(provider core.SecretProvider) ClientConfigStoreOption {
	return func(s *ClientConfigStore) {
		s.secrets = provider
	}
}

func NewClientConfigStore(db *bun.DB, opts ...ClientConfigStoreOption) (*ClientConfigStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*clientWebhookConfigRecord](db, clientConfigHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid client config repository wiring: %w", err)
		}
	}
	store := &ClientConfigStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *ClientConfigStore) GetByCredential(ctx context.Context, credentialID string) (core.ClientWebhookConfig, error) {
	if s == nil || s.db == nil {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: client config store is not configured")
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return core.ClientWebhookConfig{}, nil
	}
	record := &clientWebhookConfigRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.credential_id = ?", credentialID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.ClientWebhookConfig{CredentialID: credentialID}, nil
		}
		return core.ClientWebhookConfig{}, err
	}
	config := record.toDomain()
	config.SignatureKey, err = s.openSignatureKey(ctx, config.SignatureKey)
	if err != nil {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: unseal signature key for %s: %w", credentialID, err)
	}
	return config, nil
}

// Upsert writes the delivery configuration for a credential, replacing any
// existing row.
func (s *ClientConfigStore) Upsert(ctx context.Context, config core.ClientWebhookConfig) (core.ClientWebhookConfig, error) {
	if s == nil || s.db == nil {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: client config store is not configured")
	}
	config.CredentialID = strings.TrimSpace(config.CredentialID)
	if config.CredentialID == "" {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: credential id is required")
	}
	signatureKey, err := s.sealSignatureKey(ctx, strings.TrimSpace(config.SignatureKey))
	if err != nil {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: seal signature key for %s: %w", config.CredentialID, err)
	}
	now := s.now()
	record := &clientWebhookConfigRecord{
		ID:                uuid.NewString(),
		CredentialID:      config.CredentialID,
		WebhookURL:        strings.TrimSpace(config.WebhookURL),
		SignatureKey:      signatureKey,
		NeedsManualReview: config.NeedsManualReview,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (credential_id) DO UPDATE").
		Set("webhook_url = EXCLUDED.webhook_url").
		Set("signature_key = EXCLUDED.signature_key").
		Set("needs_manual_review = EXCLUDED.needs_manual_review").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx); err != nil {
		return core.ClientWebhookConfig{}, err
	}
	stored := record.toDomain()
	stored.SignatureKey = strings.TrimSpace(config.SignatureKey)
	return stored, nil
}

func (s *ClientConfigStore) sealSignatureKey(ctx context.Context, key string) (string, error) {
	if s.secrets == nil || key == "" {
		return key, nil
	}
	sealed, err := s.secrets.Encrypt(ctx, []byte(key))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

func (s *ClientConfigStore) openSignatureKey(ctx context.Context, stored string) (string, error) {
	if s.secrets == nil || stored == "" || !security.IsEnvelope([]byte(stored)) {
		return stored, nil
	}
	plaintext, err := s.secrets.Decrypt(ctx, []byte(stored))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
