package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/webhooks"
)

type stubDelivery struct {
	msg *core.JobExecutionMessage

	mu    sync.Mutex
	acks  int
	nacks []core.JobNackOptions
}

func (d *stubDelivery) Message() *core.JobExecutionMessage { return d.msg }

func (d *stubDelivery) Ack(context.Context) error {
	d.mu.Lock()
	d.acks++
	d.mu.Unlock()
	return nil
}

func (d *stubDelivery) Nack(_ context.Context, opts core.JobNackOptions) error {
	d.mu.Lock()
	d.nacks = append(d.nacks, opts)
	d.mu.Unlock()
	return nil
}

func (d *stubDelivery) ackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acks
}

type stubNotificationService struct {
	err    error
	inputs []webhooks.DispatchInput
}

func (s *stubNotificationService) Dispatch(_ context.Context, input webhooks.DispatchInput) error {
	s.inputs = append(s.inputs, input)
	return s.err
}

type stubResultService struct {
	err    error
	inputs []core.ProviderResultInput
}

func (s *stubResultService) ProcessProviderResult(_ context.Context, input core.ProviderResultInput) (core.ProviderResultOutcome, error) {
	s.inputs = append(s.inputs, input)
	return core.ProviderResultOutcome{}, s.err
}

func notifyDelivery(key string) *stubDelivery {
	return &stubDelivery{msg: &core.JobExecutionMessage{
		JobID: core.JobIDNotify,
		Parameters: map[string]any{
			"record_id":     "rec-1",
			"credential_id": "cred-1",
			"risk_level":    "LOW",
			"review":        true,
		},
		IdempotencyKey: key,
	}}
}

func TestRunnerProcess_NotifyAcksOnSuccess(t *testing.T) {
	notifications := &stubNotificationService{}
	runner, err := NewRunner(stubDequeuer{}, nil, notifications)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	delivery := notifyDelivery("rec-1:approved")
	runner.Process(context.Background(), delivery)

	if delivery.acks != 1 {
		t.Fatalf("expected one ack, got %d", delivery.acks)
	}
	if len(delivery.nacks) != 0 {
		t.Fatalf("expected no nacks, got %d", len(delivery.nacks))
	}
	if len(notifications.inputs) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(notifications.inputs))
	}
	input := notifications.inputs[0]
	if input.RecordID != "rec-1" || input.CredentialID != "cred-1" {
		t.Fatalf("unexpected dispatch input: %+v", input)
	}
	if input.RiskLevel != "LOW" || !input.Review {
		t.Fatalf("expected decoded risk level and review flag: %+v", input)
	}
}

func TestRunnerProcess_FailureRequeuesWithFixedDelay(t *testing.T) {
	notifications := &stubNotificationService{err: errors.New("endpoint unavailable")}
	runner, err := NewRunner(stubDequeuer{}, nil, notifications)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	delivery := notifyDelivery("rec-1:approved")
	runner.Process(context.Background(), delivery)

	if delivery.acks != 0 {
		t.Fatalf("expected no acks, got %d", delivery.acks)
	}
	if len(delivery.nacks) != 1 {
		t.Fatalf("expected one nack, got %d", len(delivery.nacks))
	}
	nack := delivery.nacks[0]
	if !nack.Requeue || nack.DeadLetter {
		t.Fatalf("expected requeue without dead letter: %+v", nack)
	}
	if nack.Delay != 60*time.Second {
		t.Fatalf("expected fixed 60s retry delay, got %s", nack.Delay)
	}
}

func TestRunnerProcess_ExhaustedAttemptsDeadLetter(t *testing.T) {
	notifications := &stubNotificationService{err: errors.New("endpoint unavailable")}
	runner, err := NewRunner(stubDequeuer{}, nil, notifications, WithMaxAttempts(3))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	var last *stubDelivery
	for i := 0; i < 3; i++ {
		last = notifyDelivery("rec-1:approved")
		runner.Process(context.Background(), last)
	}

	if len(last.nacks) != 1 {
		t.Fatalf("expected one nack on final attempt, got %d", len(last.nacks))
	}
	final := last.nacks[0]
	if !final.DeadLetter || final.Requeue {
		t.Fatalf("expected dead letter on exhausted attempts: %+v", final)
	}

	// A fresh task for the same record starts its attempt budget over.
	retry := notifyDelivery("rec-1:approved")
	runner.Process(context.Background(), retry)
	if len(retry.nacks) != 1 || retry.nacks[0].DeadLetter {
		t.Fatalf("expected attempt counter reset after dead letter: %+v", retry.nacks)
	}
}

func TestRunnerProcess_RoutesProviderResults(t *testing.T) {
	results := &stubResultService{}
	runner, err := NewRunner(stubDequeuer{}, results, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	delivery := &stubDelivery{msg: &core.JobExecutionMessage{
		JobID: core.JobIDProcessResult,
		Parameters: map[string]any{
			"platform":      "regtank",
			"callback_type": "kyc",
			"request_id":    "req-7",
			"record_id":     "rec-7",
			"result":        "approved",
			"payload":       `{"refId":"req-7"}`,
		},
	}}
	runner.Process(context.Background(), delivery)

	if delivery.acks != 1 {
		t.Fatalf("expected ack, got %d acks and %d nacks", delivery.acks, len(delivery.nacks))
	}
	if len(results.inputs) != 1 {
		t.Fatalf("expected one result call, got %d", len(results.inputs))
	}
	input := results.inputs[0]
	if input.Platform != core.PlatformRegtank || input.CallbackType != core.CallbackTypeKYC {
		t.Fatalf("unexpected routing input: %+v", input)
	}
	if input.RequestID != "req-7" || string(input.Payload) != `{"refId":"req-7"}` {
		t.Fatalf("expected decoded request id and payload: %+v", input)
	}
}

func TestRunnerProcess_UnknownJobDeadLetters(t *testing.T) {
	runner, err := NewRunner(stubDequeuer{}, &stubResultService{}, &stubNotificationService{})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	delivery := &stubDelivery{msg: &core.JobExecutionMessage{JobID: "verification.unknown"}}
	runner.Process(context.Background(), delivery)

	if delivery.acks != 0 || len(delivery.nacks) != 1 {
		t.Fatalf("expected a single nack, got %d acks %d nacks", delivery.acks, len(delivery.nacks))
	}
	if !delivery.nacks[0].DeadLetter {
		t.Fatalf("expected unknown job to be dead lettered: %+v", delivery.nacks[0])
	}
}

type stubDequeuer struct {
	deliveries chan core.JobDelivery
}

func (s stubDequeuer) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if s.deliveries == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	select {
	case delivery := <-s.deliveries:
		return delivery, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRunnerRun_ConsumesUntilCanceled(t *testing.T) {
	notifications := &stubNotificationService{}
	deliveries := make(chan core.JobDelivery, 1)
	delivery := notifyDelivery("rec-1:approved")
	deliveries <- delivery

	runner, err := NewRunner(stubDequeuer{deliveries: deliveries}, nil, notifications)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for delivery.ackCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for delivery to be processed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for runner shutdown")
	}
}

type stubQueueDelivery struct {
	msg   *job.ExecutionMessage
	acked bool
}

func (d *stubQueueDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *stubQueueDelivery) Ack(context.Context) error {
	d.acked = true
	return nil
}

func (d *stubQueueDelivery) Nack(context.Context, queue.NackOptions) error { return nil }

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if s.delivery == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	delivery := s.delivery
	s.delivery = nil
	return delivery, nil
}

func TestNewQueueRunner_ProcessesRawQueueDeliveries(t *testing.T) {
	notifications := &stubNotificationService{}
	queueDelivery := &stubQueueDelivery{msg: &job.ExecutionMessage{
		JobID:      core.JobIDNotify,
		Parameters: map[string]any{"record_id": "rec-3"},
	}}
	runner, err := NewQueueRunner(&stubQueueDequeuer{delivery: queueDelivery}, nil, notifications)
	if err != nil {
		t.Fatalf("new queue runner: %v", err)
	}

	delivery, err := runner.dequeuer.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	runner.Process(context.Background(), delivery)

	if !queueDelivery.acked {
		t.Fatalf("expected underlying queue delivery to be acked")
	}
	if len(notifications.inputs) != 1 || notifications.inputs[0].RecordID != "rec-3" {
		t.Fatalf("expected dispatch for rec-3, got %+v", notifications.inputs)
	}
}

func TestNewRunner_RequiresDequeuer(t *testing.T) {
	if _, err := NewRunner(nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing dequeuer")
	}
	if _, err := NewQueueRunner(nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing queue dequeuer")
	}
}
