package core

import "testing"

func TestStatus_Predicates(t *testing.T) {
	cases := []struct {
		status         Status
		awaitingReview bool
		final          bool
	}{
		{StatusPending, false, true},
		{StatusProviderApproved, true, false},
		{StatusProviderRejected, true, false},
		{StatusProviderError, true, false},
		{StatusApproved, false, true},
		{StatusRejected, false, true},
		{StatusError, false, true},
		{StatusUnresolved, false, true},
	}
	for _, tc := range cases {
		if got := tc.status.AwaitingReview(); got != tc.awaitingReview {
			t.Fatalf("%s: AwaitingReview() = %v, want %v", tc.status, got, tc.awaitingReview)
		}
		if got := tc.status.Final(); got != tc.final {
			t.Fatalf("%s: Final() = %v, want %v", tc.status, got, tc.final)
		}
		if !tc.status.Valid() {
			t.Fatalf("%s: expected valid status", tc.status)
		}
	}
}

func TestStatus_InvalidValue(t *testing.T) {
	if Status("banana").Valid() {
		t.Fatalf("expected invalid status")
	}
	if Status("banana").Final() {
		t.Fatalf("invalid status must not report final")
	}
	if _, err := ParseStatus("nope"); err == nil {
		t.Fatalf("expected parse error")
	}
	status, err := ParseStatus("  Provider_Approved ")
	if err != nil {
		t.Fatalf("parse provider_approved: %v", err)
	}
	if status != StatusProviderApproved {
		t.Fatalf("expected provider_approved, got %q", status)
	}
}

func TestIdempotencyKey_Format(t *testing.T) {
	key := IdempotencyKey(PlatformRegtank, CallbackTypeKYC, " REQ-123 ")
	if key != "regtank:kyc:REQ-123" {
		t.Fatalf("unexpected idempotency key %q", key)
	}
}

func TestClientWebhookConfig_Toggles(t *testing.T) {
	cfg := ClientWebhookConfig{}
	if cfg.DeliveryEnabled() || cfg.SigningEnabled() {
		t.Fatalf("empty config must disable delivery and signing")
	}
	cfg.WebhookURL = "https://client.example/hooks"
	cfg.SignatureKey = "whsec_1"
	if !cfg.DeliveryEnabled() || !cfg.SigningEnabled() {
		t.Fatalf("expected delivery and signing enabled")
	}
}

func TestVerificationRecord_ClientReferenceID(t *testing.T) {
	record := VerificationRecord{}
	if record.ClientReferenceID() != "" {
		t.Fatalf("expected empty reference for empty profile")
	}
	record.ProfileData = map[string]any{"reference_id": " client-77 "}
	if record.ClientReferenceID() != "client-77" {
		t.Fatalf("unexpected reference %q", record.ClientReferenceID())
	}
}
