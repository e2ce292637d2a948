package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/msahq/go-verification/core"
)

type capturedRequest struct {
	body      []byte
	signature string
	timestamp string
}

func newTestDispatcher() *Dispatcher {
	dispatcher := NewDispatcher(core.DefaultConfig().Delivery, nil)
	dispatcher.Sleep = func(context.Context, time.Duration) error { return nil }
	dispatcher.Now = func() time.Time {
		return time.Date(2025, time.March, 4, 10, 30, 0, 0, time.UTC)
	}
	return dispatcher
}

func deliverableConfig(url string) core.ClientWebhookConfig {
	return core.ClientWebhookConfig{
		CredentialID: "cred-1",
		WebhookURL:   url,
		SignatureKey: "whsec_test_key",
	}
}

func TestDispatcherDeliversSignedNotification(t *testing.T) {
	var mu sync.Mutex
	var captured capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = capturedRequest{
			body:      body,
			signature: r.Header.Get(HeaderSignature),
			timestamp: r.Header.Get(HeaderTimestamp),
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher()
	record := approvedRecord()
	if err := dispatcher.Deliver(context.Background(), record, deliverableConfig(server.URL), Extra{}); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	timestamp, err := strconv.ParseInt(captured.timestamp, 10, 64)
	if err != nil {
		t.Fatalf("expected unix timestamp header, got %q", captured.timestamp)
	}
	if timestamp != dispatcher.Now().Unix() {
		t.Fatalf("expected timestamp %d, got %d", dispatcher.Now().Unix(), timestamp)
	}
	if !VerifySignature("whsec_test_key", timestamp, captured.body, captured.signature) {
		t.Fatalf("expected signature to verify against the exact body bytes")
	}

	var envelope Envelope
	if err := json.Unmarshal(captured.body, &envelope); err != nil {
		t.Fatalf("expected valid json body, got %v", err)
	}
	if envelope.Event != EventStatusChanged {
		t.Fatalf("unexpected event %q", envelope.Event)
	}
	if envelope.Payload.MSAReferenceID != record.ID {
		t.Fatalf("unexpected record id %q", envelope.Payload.MSAReferenceID)
	}
}

func TestDispatcherSkipsSigningWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderSignature) != "" || r.Header.Get(HeaderTimestamp) != "" {
			t.Errorf("expected no signature headers without a key")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher()
	config := deliverableConfig(server.URL)
	config.SignatureKey = ""
	if err := dispatcher.Deliver(context.Background(), approvedRecord(), config, Extra{}); err != nil {
		t.Fatalf("expected delivery to succeed, got %v", err)
	}
}

func TestDispatcherSkipsWithoutWebhookURL(t *testing.T) {
	dispatcher := newTestDispatcher()
	config := deliverableConfig("")
	if err := dispatcher.Deliver(context.Background(), approvedRecord(), config, Extra{}); err != nil {
		t.Fatalf("expected missing url to be a logged no-op, got %v", err)
	}
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		current := attempts
		mu.Unlock()
		if current < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher()
	waits := 0
	dispatcher.Sleep = func(context.Context, time.Duration) error {
		waits++
		return nil
	}

	if err := dispatcher.Deliver(context.Background(), approvedRecord(), deliverableConfig(server.URL), Extra{}); err != nil {
		t.Fatalf("expected delivery to succeed on the final attempt, got %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected three attempts, got %d", attempts)
	}
	if waits != 2 {
		t.Fatalf("expected a wait between each retry, got %d", waits)
	}
}

func TestDispatcherExhaustsAttemptBudget(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	dispatcher := newTestDispatcher()
	record := approvedRecord()
	err := dispatcher.Deliver(context.Background(), record, deliverableConfig(server.URL), Extra{})
	if err == nil {
		t.Fatalf("expected permanent failure after exhausting the budget")
	}

	var envelope *goerrors.Error
	if !goerrors.As(err, &envelope) {
		t.Fatalf("expected error envelope, got %T", err)
	}
	if envelope.TextCode != core.ServiceErrorDeliveryFailed {
		t.Fatalf("expected text code %q, got %q", core.ServiceErrorDeliveryFailed, envelope.TextCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected exactly three attempts, got %d", attempts)
	}
	if record.Status != core.StatusApproved {
		t.Fatalf("expected record status untouched, got %s", record.Status)
	}
}

func TestDispatcherRetriesOnConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dispatcher := newTestDispatcher()
	waits := 0
	dispatcher.Sleep = func(context.Context, time.Duration) error {
		waits++
		return nil
	}
	if err := dispatcher.Deliver(context.Background(), approvedRecord(), deliverableConfig(url), Extra{}); err == nil {
		t.Fatalf("expected connection failures to exhaust the budget")
	}
	if waits != 2 {
		t.Fatalf("expected retries between attempts, got %d waits", waits)
	}
}

func TestDispatcherGate(t *testing.T) {
	dispatcher := newTestDispatcher()

	parked := approvedRecord()
	parked.Status = core.StatusProviderApproved
	if dispatcher.ShouldNotify(parked, true) {
		t.Fatalf("expected awaiting-review record to defer notification")
	}
	if !dispatcher.ShouldNotify(parked, false) {
		t.Fatalf("expected notification when review is not required")
	}
	if !dispatcher.ShouldNotify(approvedRecord(), true) {
		t.Fatalf("expected final status to notify regardless of review flag")
	}
}
