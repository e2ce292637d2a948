package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type CreateVerificationInput struct {
	Platform            Platform
	ProviderReferenceID string
	CredentialID        string
	ProfileData         map[string]any
}

// Admission is the outcome of the inbound idempotency check. A non-admitted
// callback was already processed and must be acknowledged without any further
// state mutation.
type Admission struct {
	Admitted bool
	Log      InboundWebhookLog
}

// InboundGuard deduplicates provider callbacks before they may affect state.
// Release withdraws an admission whose processing failed before the record
// update landed, so the provider's redelivery can be admitted again.
type InboundGuard interface {
	Admit(ctx context.Context, platform Platform, callbackType CallbackType, requestID string, payload []byte) (Admission, error)
	Release(ctx context.Context, platform Platform, callbackType CallbackType, requestID string) error
}

// RecordStore persists verification records. Creation is transactional; the
// store is a passive keyed container and the engine owns all mutation.
type RecordStore interface {
	Create(ctx context.Context, input CreateVerificationInput) (VerificationRecord, error)
	Get(ctx context.Context, id string) (VerificationRecord, error)
	GetByProviderReference(ctx context.Context, platform Platform, providerReferenceID string) (VerificationRecord, error)
	Update(ctx context.Context, record VerificationRecord) (VerificationRecord, error)
}

// WebhookLogStore records admitted inbound callbacks. Insert must be atomic
// with respect to the idempotency key: the second insert for the same key
// reports created=false and returns the existing row. Delete removes a claim
// by key and treats a missing row as a no-op.
type WebhookLogStore interface {
	Insert(ctx context.Context, log InboundWebhookLog) (InboundWebhookLog, bool, error)
	Delete(ctx context.Context, idempotencyKey string) error
	List(ctx context.Context, filter ListInboundLogsFilter) ([]InboundWebhookLog, int, error)
}

type ListInboundLogsFilter struct {
	Platform     Platform
	CallbackType CallbackType
	Limit        int
	Offset       int
}

// InboundLogPage is one page of the inbound callback audit trail plus the
// unpaged match count.
type InboundLogPage struct {
	Entries []InboundWebhookLog
	Total   int
}

// ClientConfigStore resolves the delivery configuration for the API
// credential a record was created under.
type ClientConfigStore interface {
	GetByCredential(ctx context.Context, credentialID string) (ClientWebhookConfig, error)
}

// StoreProvider is implemented by repository factories that build the full
// store set from a shared persistence client.
type StoreProvider interface {
	RecordStore() RecordStore
	WebhookLogStore() WebhookLogStore
	ClientConfigStore() ClientConfigStore
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// RecordLocker serializes concurrent tasks touching the same record, so a
// duplicate task delivery racing a reviewer action cannot both finalize.
type RecordLocker interface {
	Acquire(ctx context.Context, recordID string, ttl time.Duration) (LockHandle, error)
}

// NotificationGate decides whether a state transition should produce an
// outbound notification.
type NotificationGate interface {
	ShouldNotify(record VerificationRecord, needsManualReview bool) bool
}

// TokenSource yields a valid provider API token, refreshing it when needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SecretProvider protects secrets at rest, e.g. client signature keys stored
// alongside webhook configuration.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

// JobEnqueuer hands units of work to the at-least-once task runner. Handlers
// must tolerate redelivery.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
