package sqlstore

import (
	"time"

	"github.com/msahq/go-verification/core"
	"github.com/uptrace/bun"
)

type verificationRecord struct {
	bun.BaseModel `bun:"table:verification_records,alias:vr"`

	ID                  string         `bun:"id,pk"`
	Status              string         `bun:"status,notnull"`
	ProviderStatus      string         `bun:"provider_status"`
	Platform            string         `bun:"platform,notnull"`
	ProviderReferenceID string         `bun:"provider_reference_id"`
	CredentialID        string         `bun:"credential_id"`
	ReviewNotes         string         `bun:"review_notes"`
	ReviewedBy          string         `bun:"reviewed_by"`
	ReviewedAt          *time.Time     `bun:"reviewed_at,nullzero"`
	ProfileData         map[string]any `bun:"profile_data,type:jsonb,notnull"`
	CreatedAt           time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt           time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newVerificationRecord(record core.VerificationRecord) *verificationRecord {
	profileData := record.ProfileData
	if profileData == nil {
		profileData = map[string]any{}
	}
	return &verificationRecord{
		ID:                  record.ID,
		Status:              record.Status.String(),
		ProviderStatus:      record.ProviderStatus.String(),
		Platform:            string(record.Platform),
		ProviderReferenceID: record.ProviderReferenceID,
		CredentialID:        record.CredentialID,
		ReviewNotes:         record.ReviewNotes,
		ReviewedBy:          record.ReviewedBy,
		ReviewedAt:          record.ReviewedAt,
		ProfileData:         profileData,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func (r *verificationRecord) toDomain() core.VerificationRecord {
	if r == nil {
		return core.VerificationRecord{}
	}
	return core.VerificationRecord{
		ID:                  r.ID,
		Status:              core.Status(r.Status),
		ProviderStatus:      core.Status(r.ProviderStatus),
		Platform:            core.Platform(r.Platform),
		ProviderReferenceID: r.ProviderReferenceID,
		CredentialID:        r.CredentialID,
		ReviewNotes:         r.ReviewNotes,
		ReviewedBy:          r.ReviewedBy,
		ReviewedAt:          r.ReviewedAt,
		ProfileData:         r.ProfileData,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

type inboundWebhookLogRecord struct {
	bun.BaseModel `bun:"table:inbound_webhook_logs,alias:iwl"`

	ID             string    `bun:"id,pk"`
	IdempotencyKey string    `bun:"idempotency_key,notnull,unique"`
	Platform       string    `bun:"platform,notnull"`
	CallbackType   string    `bun:"callback_type,notnull"`
	Payload        []byte    `bun:"payload"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newInboundWebhookLogRecord(entry core.InboundWebhookLog) *inboundWebhookLogRecord {
	return &inboundWebhookLogRecord{
		ID:             entry.ID,
		IdempotencyKey: entry.IdempotencyKey,
		Platform:       string(entry.Platform),
		CallbackType:   string(entry.CallbackType),
		Payload:        entry.Payload,
		CreatedAt:      entry.CreatedAt,
	}
}

func (r *inboundWebhookLogRecord) toDomain() core.InboundWebhookLog {
	if r == nil {
		return core.InboundWebhookLog{}
	}
	return core.InboundWebhookLog{
		ID:             r.ID,
		IdempotencyKey: r.IdempotencyKey,
		Platform:       core.Platform(r.Platform),
		CallbackType:   core.CallbackType(r.CallbackType),
		Payload:        r.Payload,
		CreatedAt:      r.CreatedAt,
	}
}

type clientWebhookConfigRecord struct {
	bun.BaseModel `bun:"table:client_webhook_configs,alias:cwc"`

	ID                string    `bun:"id,pk"`
	CredentialID      string    `bun:"credential_id,notnull,unique"`
	WebhookURL        string    `bun:"webhook_url"`
	SignatureKey      string    `bun:"signature_key"`
	NeedsManualReview bool      `bun:"needs_manual_review,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *clientWebhookConfigRecord) toDomain() core.ClientWebhookConfig {
	if r == nil {
		return core.ClientWebhookConfig{}
	}
	return core.ClientWebhookConfig{
		CredentialID:      r.CredentialID,
		WebhookURL:        r.WebhookURL,
		SignatureKey:      r.SignatureKey,
		NeedsManualReview: r.NeedsManualReview,
	}
}
