package webhooks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/msahq/go-verification/core"
)

func approvedRecord() core.VerificationRecord {
	return core.VerificationRecord{
		ID:                  "rec-1",
		Status:              core.StatusApproved,
		Platform:            core.PlatformRegtank,
		ProviderReferenceID: "RT-889",
		CredentialID:        "cred-1",
		ProfileData:         map[string]any{"reference_id": "client-77"},
		UpdatedAt:           time.Date(2025, time.March, 4, 10, 30, 0, 0, time.UTC),
	}
}

func TestBuildEnvelopeApproved(t *testing.T) {
	envelope := BuildEnvelope(approvedRecord(), Extra{})

	if envelope.Event != EventStatusChanged {
		t.Fatalf("unexpected event name %q", envelope.Event)
	}
	body := envelope.Payload
	if body.MSAReferenceID != "rec-1" {
		t.Fatalf("unexpected msa reference %q", body.MSAReferenceID)
	}
	if body.ReferenceID == nil || *body.ReferenceID != "client-77" {
		t.Fatalf("expected client reference from profile data, got %v", body.ReferenceID)
	}
	if body.ProviderReferenceID == nil || *body.ProviderReferenceID != "RT-889" {
		t.Fatalf("expected provider reference, got %v", body.ProviderReferenceID)
	}
	if !body.Verified {
		t.Fatalf("expected verified=true for approved status")
	}
	if body.VerifiedAt == nil || *body.VerifiedAt != "2025-03-04T10:30:00Z" {
		t.Fatalf("expected verified_at from record, got %v", body.VerifiedAt)
	}
	if body.RejectedAt != nil {
		t.Fatalf("expected rejected_at=null for approved status")
	}
	if body.FailureReason != nil {
		t.Fatalf("expected failure_reason=null for approved status")
	}
	if body.Message != messageApproved {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestBuildEnvelopeRejectedFailureReason(t *testing.T) {
	record := approvedRecord()
	record.Status = core.StatusRejected

	body := BuildEnvelope(record, Extra{}).Payload
	if body.Verified {
		t.Fatalf("expected verified=false for rejected status")
	}
	if body.RejectedAt == nil {
		t.Fatalf("expected rejected_at for rejected status")
	}
	if body.VerifiedAt != nil {
		t.Fatalf("expected verified_at=null for rejected status")
	}
	if body.FailureReason == nil || *body.FailureReason != defaultFailureReason {
		t.Fatalf("expected generic failure reason, got %v", body.FailureReason)
	}

	record.ReviewNotes = "document mismatch"
	body = BuildEnvelope(record, Extra{}).Payload
	if body.FailureReason == nil || *body.FailureReason != "document mismatch" {
		t.Fatalf("expected review notes as failure reason, got %v", body.FailureReason)
	}
}

func TestBuildEnvelopeErrorCarriesMessageNotFailureReason(t *testing.T) {
	record := approvedRecord()
	record.Status = core.StatusError

	body := BuildEnvelope(record, Extra{ErrorMessage: "provider timeout"}).Payload
	if body.Message != "provider timeout" {
		t.Fatalf("expected error message override, got %q", body.Message)
	}
	if body.FailureReason != nil {
		t.Fatalf("expected failure_reason=null for error status, got %v", body.FailureReason)
	}
	if body.VerifiedAt != nil || body.RejectedAt != nil {
		t.Fatalf("expected no outcome timestamps for error status")
	}
}

func TestBuildEnvelopeMessagePrecedence(t *testing.T) {
	record := approvedRecord()

	body := BuildEnvelope(record, Extra{RiskLevel: "LOW"}).Payload
	if body.Message != "Verification completed with risk level LOW." {
		t.Fatalf("expected risk level message, got %q", body.Message)
	}

	body = BuildEnvelope(record, Extra{ErrorMessage: "explicit", RiskLevel: "LOW"}).Payload
	if body.Message != "explicit" {
		t.Fatalf("expected error message to win over risk level, got %q", body.Message)
	}
}

func TestBuildEnvelopeReviewNotesPrecedence(t *testing.T) {
	record := approvedRecord()
	record.ProviderStatus = core.StatusProviderRejected

	body := BuildEnvelope(record, Extra{}).Payload
	if body.ReviewNotes == nil || *body.ReviewNotes != "Provider reported provider_rejected." {
		t.Fatalf("expected provider status hint, got %v", body.ReviewNotes)
	}
	if body.OriginalProviderStatus == nil || *body.OriginalProviderStatus != "provider_rejected" {
		t.Fatalf("expected original provider status, got %v", body.OriginalProviderStatus)
	}

	record.ReviewNotes = "verified manually"
	body = BuildEnvelope(record, Extra{}).Payload
	if body.ReviewNotes == nil || *body.ReviewNotes != "verified manually" {
		t.Fatalf("expected stored notes over the hint, got %v", body.ReviewNotes)
	}

	body = BuildEnvelope(record, Extra{ReviewNotes: "fresh decision"}).Payload
	if body.ReviewNotes == nil || *body.ReviewNotes != "fresh decision" {
		t.Fatalf("expected explicit notes to win, got %v", body.ReviewNotes)
	}
}

func TestBuildEnvelopeReviewedFields(t *testing.T) {
	reviewedAt := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	record := approvedRecord()
	record.ReviewedBy = "ops@example.com"
	record.ReviewedAt = &reviewedAt

	body := BuildEnvelope(record, Extra{Review: true}).Payload
	if body.ReviewedBy == nil || *body.ReviewedBy != "ops@example.com" {
		t.Fatalf("expected reviewed_by, got %v", body.ReviewedBy)
	}
	if body.ReviewedAt == nil || *body.ReviewedAt != "2025-03-05T09:00:00Z" {
		t.Fatalf("expected reviewed_at, got %v", body.ReviewedAt)
	}
}

func TestEnvelopeJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(BuildEnvelope(approvedRecord(), Extra{}))
	if err != nil {
		t.Fatalf("expected marshal to succeed, got %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("expected unmarshal to succeed, got %v", err)
	}
	payload, ok := decoded["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload object, got %T", decoded["payload"])
	}
	for _, field := range []string{
		"msa_reference_id",
		"provider_reference_id",
		"reference_id",
		"platform",
		"status",
		"verified",
		"verified_at",
		"rejected_at",
		"message",
		"review_notes",
		"failure_reason",
		"reviewed_by",
		"reviewed_at",
		"original_provider_status",
	} {
		if _, present := payload[field]; !present {
			t.Fatalf("expected payload field %q", field)
		}
	}
}
