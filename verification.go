package verification

import (
	"github.com/goliatone/go-job/queue"
	gojob "github.com/msahq/go-verification/adapters/gojob"
	"github.com/msahq/go-verification/core"
)

type Config = core.Config

type DeliveryConfig = core.DeliveryConfig

type Option = core.Option

type Engine = core.Engine

type VerificationRecord = core.VerificationRecord
type ClientWebhookConfig = core.ClientWebhookConfig
type InboundWebhookLog = core.InboundWebhookLog

type Status = core.Status
type Platform = core.Platform
type CallbackType = core.CallbackType
type ReviewDecision = core.ReviewDecision

type RecordStore = core.RecordStore
type WebhookLogStore = core.WebhookLogStore
type ClientConfigStore = core.ClientConfigStore
type RecordLocker = core.RecordLocker
type InboundGuard = core.InboundGuard
type NotificationGate = core.NotificationGate
type JobEnqueuer = core.JobEnqueuer
type TokenSource = core.TokenSource

type AcceptScreeningInput = core.AcceptScreeningInput
type ProviderResultInput = core.ProviderResultInput
type ProviderResultOutcome = core.ProviderResultOutcome
type SubmitReviewInput = core.SubmitReviewInput

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithRecordStore       = core.WithRecordStore
	WithWebhookLogStore   = core.WithWebhookLogStore
	WithClientConfigStore = core.WithClientConfigStore
	WithRecordLocker      = core.WithRecordLocker
	WithInboundGuard      = core.WithInboundGuard
	WithNotificationGate  = core.WithNotificationGate
	WithScheduler         = core.WithScheduler
	WithTokenSource       = core.WithTokenSource
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	return core.NewEngine(cfg, opts...)
}

// WithQueueScheduler wires a go-job queue enqueuer as the engine's
// notification task scheduler.
func WithQueueScheduler(enqueuer queue.Enqueuer) Option {
	return core.WithScheduler(gojob.NewEnqueuerAdapter(enqueuer))
}
