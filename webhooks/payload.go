package webhooks

import (
	"fmt"
	"strings"
	"time"

	"github.com/msahq/go-verification/core"
)

// EventStatusChanged is the single event name carried by every outbound
// notification.
const EventStatusChanged = "kyc.status.changed"

const (
	messageApproved   = "Your verification has been approved."
	messageRejected   = "Your verification has been rejected."
	messageError      = "Your verification could not be completed due to a processing error."
	messageUnresolved = "Your verification requires additional attention."

	defaultFailureReason = "Verification rejected by compliance screening."
)

// Extra carries per-delivery context that is not part of the stored record:
// the provider error text for failed screenings, the provider risk level, and
// reviewer-supplied notes when the caller has fresher data than the record.
type Extra struct {
	ErrorMessage string
	RiskLevel    string
	ReviewNotes  string
	Review       bool
}

// Envelope is the outbound JSON body.
type Envelope struct {
	Event   string `json:"event"`
	Payload Body   `json:"payload"`
}

type Body struct {
	MSAReferenceID         string  `json:"msa_reference_id"`
	ProviderReferenceID    *string `json:"provider_reference_id"`
	ReferenceID            *string `json:"reference_id"`
	Platform               string  `json:"platform"`
	Status                 string  `json:"status"`
	Verified               bool    `json:"verified"`
	VerifiedAt             *string `json:"verified_at"`
	RejectedAt             *string `json:"rejected_at"`
	Message                string  `json:"message"`
	ReviewNotes            *string `json:"review_notes"`
	FailureReason          *string `json:"failure_reason"`
	ReviewedBy             *string `json:"reviewed_by"`
	ReviewedAt             *string `json:"reviewed_at"`
	OriginalProviderStatus *string `json:"original_provider_status"`
}

// BuildEnvelope derives the outbound notification body from a verification
// record and per-delivery extras.
func BuildEnvelope(record core.VerificationRecord, extra Extra) Envelope {
	body := Body{
		MSAReferenceID:         record.ID,
		ProviderReferenceID:    optionalString(record.ProviderReferenceID),
		ReferenceID:            optionalString(record.ClientReferenceID()),
		Platform:               string(record.Platform),
		Status:                 record.Status.String(),
		Verified:               record.Status == core.StatusApproved,
		Message:                statusMessage(record.Status, extra),
		ReviewNotes:            reviewNotes(record, extra),
		ReviewedBy:             optionalString(record.ReviewedBy),
		ReviewedAt:             optionalTime(record.ReviewedAt),
		OriginalProviderStatus: optionalString(record.ProviderStatus.String()),
	}

	switch record.Status {
	case core.StatusApproved:
		body.VerifiedAt = optionalTimeValue(record.UpdatedAt)
	case core.StatusRejected:
		body.RejectedAt = optionalTimeValue(record.UpdatedAt)
		body.FailureReason = rejectionReason(record, extra)
	}

	return Envelope{Event: EventStatusChanged, Payload: body}
}

func statusMessage(status core.Status, extra Extra) string {
	if message := strings.TrimSpace(extra.ErrorMessage); message != "" {
		return message
	}
	if level := strings.TrimSpace(extra.RiskLevel); level != "" {
		return fmt.Sprintf("Verification completed with risk level %s.", level)
	}
	switch status {
	case core.StatusApproved:
		return messageApproved
	case core.StatusRejected:
		return messageRejected
	case core.StatusError:
		return messageError
	case core.StatusUnresolved:
		return messageUnresolved
	default:
		return fmt.Sprintf("Verification status changed to %s.", status.String())
	}
}

func reviewNotes(record core.VerificationRecord, extra Extra) *string {
	if notes := strings.TrimSpace(extra.ReviewNotes); notes != "" {
		return &notes
	}
	if notes := strings.TrimSpace(record.ReviewNotes); notes != "" {
		return &notes
	}
	if record.ProviderStatus != "" && record.ProviderStatus.AwaitingReview() {
		hint := fmt.Sprintf("Provider reported %s.", record.ProviderStatus.String())
		return &hint
	}
	return nil
}

func rejectionReason(record core.VerificationRecord, extra Extra) *string {
	if reason := strings.TrimSpace(record.ReviewNotes); reason != "" {
		return &reason
	}
	if reason := strings.TrimSpace(extra.ErrorMessage); reason != "" {
		return &reason
	}
	reason := defaultFailureReason
	return &reason
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func optionalTime(value *time.Time) *string {
	if value == nil || value.IsZero() {
		return nil
	}
	formatted := value.UTC().Format(time.RFC3339)
	return &formatted
}

func optionalTimeValue(value time.Time) *string {
	return optionalTime(&value)
}
