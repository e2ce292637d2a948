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
	"github.com/uptrace/bun"
)

// VerificationStore persists verification records with bun.
type VerificationStore struct {
	db   *bun.DB
	repo repository.Repository[*verificationRecord]
	now  func() time.Time
}

func NewVerificationStore(db *bun.DB) (*VerificationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*verificationRecord](db, verificationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid verification repository wiring: %w", err)
		}
	}
	return &VerificationStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *VerificationStore) Create(ctx context.Context, input core.CreateVerificationInput) (core.VerificationRecord, error) {
	if s == nil || s.db == nil {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	if !input.Platform.Valid() {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: %w: %q", core.ErrInvalidPlatform, input.Platform)
	}
	now := s.now()
	record := core.VerificationRecord{
		ID:                  uuid.NewString(),
		Status:              core.StatusPending,
		Platform:            input.Platform,
		ProviderReferenceID: strings.TrimSpace(input.ProviderReferenceID),
		CredentialID:        strings.TrimSpace(input.CredentialID),
		ProfileData:         input.ProfileData,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	model := newVerificationRecord(record)
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return core.VerificationRecord{}, err
	}
	return model.toDomain(), nil
}

func (s *VerificationStore) Get(ctx context.Context, id string) (core.VerificationRecord, error) {
	if s == nil || s.db == nil {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: record id is required")
	}
	record := &verificationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.VerificationRecord{}, fmt.Errorf("%w: id %q", core.ErrRecordNotFound, id)
		}
		return core.VerificationRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *VerificationStore) GetByProviderReference(
	ctx context.Context,
	platform core.Platform,
	providerReferenceID string,
) (core.VerificationRecord, error) {
	if s == nil || s.db == nil {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	providerReferenceID = strings.TrimSpace(providerReferenceID)
	if providerReferenceID == "" {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: provider reference id is required")
	}
	record := &verificationRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.platform = ?", string(platform)).
		Where("?TableAlias.provider_reference_id = ?", providerReferenceID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.VerificationRecord{}, fmt.Errorf("%w: provider reference %q", core.ErrRecordNotFound, providerReferenceID)
		}
		return core.VerificationRecord{}, err
	}
	return record.toDomain(), nil
}

func (s *VerificationStore) Update(ctx context.Context, record core.VerificationRecord) (core.VerificationRecord, error) {
	if s == nil || s.db == nil {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: verification store is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return core.VerificationRecord{}, fmt.Errorf("sqlstore: record id is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}
	model := newVerificationRecord(record)
	result, err := s.db.NewUpdate().
		Model(model).
		Where("id = ?", model.ID).
		Exec(ctx)
	if err != nil {
		return core.VerificationRecord{}, err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return core.VerificationRecord{}, fmt.Errorf("%w: id %q", core.ErrRecordNotFound, record.ID)
	}
	return model.toDomain(), nil
}
