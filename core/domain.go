package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus       = errors.New("core: invalid verification status")
	ErrInvalidPlatform     = errors.New("core: invalid screening platform")
	ErrInvalidCallbackType = errors.New("core: invalid callback type")
	ErrRecordNotFound      = errors.New("core: verification record not found")
	ErrNotAwaitingReview   = errors.New("core: record is not awaiting review")
)

// Status is the closed set of verification workflow states. The provider_*
// values are intermediate awaiting-review states; everything else is final.
type Status string

const (
	StatusPending          Status = "pending"
	StatusProviderApproved Status = "provider_approved"
	StatusProviderRejected Status = "provider_rejected"
	StatusProviderError    Status = "provider_error"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusError            Status = "error"
	StatusUnresolved       Status = "unresolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProviderApproved, StatusProviderRejected,
		StatusProviderError, StatusApproved, StatusRejected, StatusError,
		StatusUnresolved:
		return true
	default:
		return false
	}
}

// AwaitingReview reports whether the status holds a provider verdict that a
// human reviewer still has to confirm.
func (s Status) AwaitingReview() bool {
	switch s {
	case StatusProviderApproved, StatusProviderRejected, StatusProviderError:
		return true
	default:
		return false
	}
}

// Final reports whether the status requires no further review.
func (s Status) Final() bool {
	return s.Valid() && !s.AwaitingReview()
}

func (s Status) String() string {
	return string(s)
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.TrimSpace(strings.ToLower(value)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
	return status, nil
}

type Platform string

const (
	PlatformRegtank Platform = "regtank"
)

func (p Platform) Valid() bool {
	return strings.TrimSpace(string(p)) != ""
}

// CallbackType identifies which screening endpoint a provider callback
// targets. Each type dedupes independently because the type is part of the
// idempotency key.
type CallbackType string

const (
	CallbackTypeKYC         CallbackType = "kyc"
	CallbackTypeLiveness    CallbackType = "liveness"
	CallbackTypeBusinessKYC CallbackType = "business_kyc"
	CallbackTypeBusinessKYB CallbackType = "business_kyb"
)

func (t CallbackType) Valid() bool {
	switch t {
	case CallbackTypeKYC, CallbackTypeLiveness, CallbackTypeBusinessKYC, CallbackTypeBusinessKYB:
		return true
	default:
		return false
	}
}

// IdempotencyKey builds the deterministic key used to detect redelivered
// provider callbacks: "{platform}:{type}:{requestId}".
func IdempotencyKey(platform Platform, callbackType CallbackType, requestID string) string {
	return fmt.Sprintf("%s:%s:%s", platform, callbackType, strings.TrimSpace(requestID))
}

// VerificationRecord is the per-subject audit trail tracked through the
// workflow. Records are created once in StatusPending, mutated in place by
// provider-result processing and review actions, and never deleted.
type VerificationRecord struct {
	ID                  string
	Status              Status
	ProviderStatus      Status
	Platform            Platform
	ProviderReferenceID string
	CredentialID        string
	ReviewNotes         string
	ReviewedBy          string
	ReviewedAt          *time.Time
	ProfileData         map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ClientReferenceID returns the client-supplied reference carried in the
// profile payload when the screening request was accepted.
func (r VerificationRecord) ClientReferenceID() string {
	if len(r.ProfileData) == 0 {
		return ""
	}
	value, ok := r.ProfileData["reference_id"]
	if !ok {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// InboundWebhookLog is the dedup row written for every admitted provider
// callback. At most one row ever exists per idempotency key; the store
// enforces uniqueness.
type InboundWebhookLog struct {
	ID             string
	IdempotencyKey string
	Platform       Platform
	CallbackType   CallbackType
	Payload        []byte
	CreatedAt      time.Time
}

// ClientWebhookConfig is the per-credential delivery configuration. A missing
// WebhookURL disables delivery; a missing SignatureKey disables signing.
type ClientWebhookConfig struct {
	CredentialID      string
	WebhookURL        string
	SignatureKey      string
	NeedsManualReview bool
}

func (c ClientWebhookConfig) DeliveryEnabled() bool {
	return strings.TrimSpace(c.WebhookURL) != ""
}

func (c ClientWebhookConfig) SigningEnabled() bool {
	return strings.TrimSpace(c.SignatureKey) != ""
}
