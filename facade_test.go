package verification

import (
	"context"
	"fmt"
	"sync"
	"testing"

	verificationcommand "github.com/msahq/go-verification/command"
	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/inbound"
	verificationquery "github.com/msahq/go-verification/query"
)

type facadeRecordStore struct {
	mu      sync.Mutex
	nextID  int
	records map[string]core.VerificationRecord
}

func newFacadeRecordStore() *facadeRecordStore {
	return &facadeRecordStore{records: map[string]core.VerificationRecord{}}
}

func (s *facadeRecordStore) Create(_ context.Context, input core.CreateVerificationInput) (core.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record := core.VerificationRecord{
		ID:                  fmt.Sprintf("rec-%d", s.nextID),
		Status:              core.StatusPending,
		Platform:            input.Platform,
		ProviderReferenceID: input.ProviderReferenceID,
		CredentialID:        input.CredentialID,
		ProfileData:         input.ProfileData,
	}
	s.records[record.ID] = record
	return record, nil
}

func (s *facadeRecordStore) Get(_ context.Context, id string) (core.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return core.VerificationRecord{}, core.ErrRecordNotFound
	}
	return record, nil
}

func (s *facadeRecordStore) GetByProviderReference(_ context.Context, platform core.Platform, ref string) (core.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Platform == platform && record.ProviderReferenceID == ref {
			return record, nil
		}
	}
	return core.VerificationRecord{}, core.ErrRecordNotFound
}

func (s *facadeRecordStore) Update(_ context.Context, record core.VerificationRecord) (core.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return core.VerificationRecord{}, core.ErrRecordNotFound
	}
	s.records[record.ID] = record
	return record, nil
}

type facadeConfigStore struct{}

func (facadeConfigStore) GetByCredential(_ context.Context, credentialID string) (core.ClientWebhookConfig, error) {
	return core.ClientWebhookConfig{CredentialID: credentialID}, nil
}

func newFacadeEngine(t *testing.T) (*core.Engine, *facadeRecordStore, *inbound.InMemoryWebhookLogStore) {
	t.Helper()
	records := newFacadeRecordStore()
	logs := inbound.NewInMemoryWebhookLogStore()
	engine, err := core.NewEngine(core.DefaultConfig(),
		core.WithRecordStore(records),
		core.WithWebhookLogStore(logs),
		core.WithClientConfigStore(facadeConfigStore{}),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, records, logs
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	engine, _, _ := newFacadeEngine(t)

	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.AcceptScreening == nil || commands.ProcessResult == nil ||
		commands.SubmitReview == nil || commands.DispatchNotification == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetVerification == nil || queries.ListInboundLogs == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if facade.Notifier() == nil {
		t.Fatalf("expected a default notifier")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	engine, records, _ := newFacadeEngine(t)

	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	if err := facade.Commands().AcceptScreening.Execute(context.Background(), verificationcommand.AcceptScreeningMessage{
		Input: core.AcceptScreeningInput{
			Platform:            core.PlatformRegtank,
			ProviderReferenceID: "RT-77",
			CredentialID:        "cred-1",
			ProfileData:         map[string]any{"reference_id": "client-1"},
		},
	}); err != nil {
		t.Fatalf("execute accept screening: %v", err)
	}

	records.mu.Lock()
	stored := len(records.records)
	records.mu.Unlock()
	if stored != 1 {
		t.Fatalf("expected one stored record, got %d", stored)
	}

	record, err := facade.Queries().GetVerification.Query(context.Background(), verificationquery.GetVerificationMessage{
		Platform:            core.PlatformRegtank,
		ProviderReferenceID: "RT-77",
	})
	if err != nil {
		t.Fatalf("query by provider reference: %v", err)
	}
	if record.Status != core.StatusPending {
		t.Fatalf("expected pending record, got %q", record.Status)
	}
}

type facadeDequeuer struct{}

func (facadeDequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestFacade_RunnerWiring(t *testing.T) {
	engine, _, _ := newFacadeEngine(t)
	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	runner, err := facade.Runner(facadeDequeuer{})
	if err != nil {
		t.Fatalf("build runner: %v", err)
	}
	if runner == nil {
		t.Fatalf("expected a runner")
	}

	if _, err := facade.Runner(nil); err == nil {
		t.Fatalf("expected error for missing dequeuer")
	}
}

func TestFacade_SubscribeRegistersHandlers(t *testing.T) {
	engine, _, _ := newFacadeEngine(t)
	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	subscriptions, err := facade.Subscribe(nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() {
		for _, subscription := range subscriptions {
			subscription.Unsubscribe()
		}
	}()

	if len(subscriptions) != 6 {
		t.Fatalf("expected four command and two query subscriptions, got %d", len(subscriptions))
	}
}

func TestFacade_JobLoggers(t *testing.T) {
	engine, _, _ := newFacadeEngine(t)
	facade, err := NewFacade(engine)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	provider, logger := facade.JobLoggers()
	if provider == nil {
		t.Fatalf("expected a bridged logger provider")
	}
	if logger == nil {
		t.Fatalf("expected a bridged logger")
	}
}

func TestNewFacade_RequiresEngine(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected nil engine to fail")
	}
}
