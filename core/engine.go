package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDProcessResult = "verification.result.process"
	JobIDNotify        = "verification.webhook.notify"

	defaultRecordLockTTL = 30 * time.Second
)

// ShouldNotify is the dispatch gate: a transition produces an outbound
// notification unless the record is parked in an awaiting-review status for a
// client that requires manual review.
func ShouldNotify(record VerificationRecord, needsManualReview bool) bool {
	if needsManualReview && record.Status.AwaitingReview() {
		return false
	}
	return true
}

type defaultNotificationGate struct{}

func (defaultNotificationGate) ShouldNotify(record VerificationRecord, needsManualReview bool) bool {
	return ShouldNotify(record, needsManualReview)
}

// Engine owns the verification workflow: it creates records, applies provider
// results behind the inbound idempotency guard, applies reviewer decisions,
// and hands notification work to the task runner.
type Engine struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	recordStore       RecordStore
	webhookLogStore   WebhookLogStore
	clientConfigStore ClientConfigStore
	recordLocker      RecordLocker
	guard             InboundGuard
	gate              NotificationGate
	scheduler         JobEnqueuer
	tokenSource       TokenSource
	now               func() time.Time
}

func NewEngine(cfg Config, options ...Option) (*Engine, error) {
	builder := defaultEngineBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("verification", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("verification"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.recordLocker == nil {
		builder.recordLocker = NewMemoryRecordLocker()
	}
	if builder.gate == nil {
		builder.gate = defaultNotificationGate{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.recordStore == nil || builder.webhookLogStore == nil || builder.clientConfigStore == nil) &&
		builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				if builder.recordStore == nil {
					builder.recordStore = stores.RecordStore()
				}
				if builder.webhookLogStore == nil {
					builder.webhookLogStore = stores.WebhookLogStore()
				}
				if builder.clientConfigStore == nil {
					builder.clientConfigStore = stores.ClientConfigStore()
				}
			}
		}
	}

	return &Engine{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		recordStore:       builder.recordStore,
		webhookLogStore:   builder.webhookLogStore,
		clientConfigStore: builder.clientConfigStore,
		recordLocker:      builder.recordLocker,
		guard:             builder.guard,
		gate:              builder.gate,
		scheduler:         builder.scheduler,
		tokenSource:       builder.tokenSource,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// RepositoryStoreFactory builds the store set lazily from an injected
// persistence client.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (e *Engine) mapError(err error) error {
	if err == nil {
		return nil
	}
	if e == nil || e.errorMapper == nil {
		return err
	}
	if mapped := e.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) RecordStore() RecordStore {
	if e == nil {
		return nil
	}
	return e.recordStore
}

func (e *Engine) WebhookLogStore() WebhookLogStore {
	if e == nil {
		return nil
	}
	return e.webhookLogStore
}

func (e *Engine) ClientConfigStore() ClientConfigStore {
	if e == nil {
		return nil
	}
	return e.clientConfigStore
}

func (e *Engine) Logger() Logger {
	if e == nil {
		return nil
	}
	return e.logger
}

// ProviderToken yields a valid provider API token from the configured token
// source, refreshing it when needed.
func (e *Engine) ProviderToken(ctx context.Context) (string, error) {
	if e == nil || e.tokenSource == nil {
		return "", newEngineError("core: token source is not configured", goerrors.CategoryInternal, ServiceErrorInternal)
	}
	return e.tokenSource.Token(ctx)
}

type AcceptScreeningInput struct {
	Platform            Platform
	ProviderReferenceID string
	CredentialID        string
	ProfileData         map[string]any
}

// AcceptScreening creates the verification record for an accepted screening
// request. Records always start in StatusPending.
func (e *Engine) AcceptScreening(ctx context.Context, input AcceptScreeningInput) (VerificationRecord, error) {
	startedAt := time.Now()
	if e == nil || e.recordStore == nil {
		return VerificationRecord{}, newEngineError("core: record store is required", goerrors.CategoryInternal, ServiceErrorInternal)
	}
	if !input.Platform.Valid() {
		return VerificationRecord{}, e.mapError(fmt.Errorf("%w: %q", ErrInvalidPlatform, input.Platform))
	}

	record, err := e.recordStore.Create(ctx, CreateVerificationInput{
		Platform:            input.Platform,
		ProviderReferenceID: strings.TrimSpace(input.ProviderReferenceID),
		CredentialID:        strings.TrimSpace(input.CredentialID),
		ProfileData:         input.ProfileData,
	})
	e.observeOperation(ctx, startedAt, "screening_accept", err, map[string]any{
		"record_id": record.ID,
		"platform":  string(input.Platform),
	})
	if err != nil {
		return VerificationRecord{}, e.mapError(err)
	}
	return record, nil
}

type ProviderResultInput struct {
	Platform     Platform
	CallbackType CallbackType
	RequestID    string
	RecordID     string
	Result       Status
	RiskLevel    string
	ErrorMessage string
	Payload      []byte
}

func (in ProviderResultInput) validate() error {
	if !in.Platform.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, in.Platform)
	}
	if !in.CallbackType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCallbackType, in.CallbackType)
	}
	if strings.TrimSpace(in.RequestID) == "" {
		return fmt.Errorf("core: callback request id is required")
	}
	return nil
}

type ProviderResultOutcome struct {
	// Duplicate marks a callback the idempotency guard had seen before.
	Duplicate bool
	// Ignored marks an admitted callback that arrived after the record had
	// already left StatusPending; the record is returned unchanged.
	Ignored  bool
	Record   VerificationRecord
	Notified bool
}

// ProcessProviderResult applies an asynchronous provider verdict to a record.
//
// The inbound guard runs before any state mutation; a duplicate callback is
// acknowledged as a no-op. Admitted callbacks resolve the next status via the
// client's manual-review flag, persist the record under a per-record lock, and
// schedule a notification task when the dispatch gate allows it. Only a
// StatusPending record accepts a provider result; a late callback against a
// record the workflow already moved on is ignored without touching it. When
// processing fails after admission the claim is released so the queue's
// redelivery is admitted instead of discarded as a duplicate.
func (e *Engine) ProcessProviderResult(ctx context.Context, input ProviderResultInput) (ProviderResultOutcome, error) {
	startedAt := time.Now()
	if e == nil || e.recordStore == nil || e.guard == nil {
		return ProviderResultOutcome{}, newEngineError("core: record store and inbound guard are required", goerrors.CategoryInternal, ServiceErrorInternal)
	}
	if err := input.validate(); err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}

	admission, err := e.guard.Admit(ctx, input.Platform, input.CallbackType, input.RequestID, input.Payload)
	if err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}
	if !admission.Admitted {
		e.logWarn(ctx, "duplicate provider callback discarded", map[string]any{
			"idempotency_key": IdempotencyKey(input.Platform, input.CallbackType, input.RequestID),
			"platform":        string(input.Platform),
			"callback_type":   string(input.CallbackType),
		})
		return ProviderResultOutcome{Duplicate: true}, nil
	}

	outcome, err := e.applyProviderResult(ctx, startedAt, input)
	if err != nil {
		e.releaseAdmission(ctx, input)
		return ProviderResultOutcome{}, err
	}
	return outcome, nil
}

func (e *Engine) applyProviderResult(ctx context.Context, startedAt time.Time, input ProviderResultInput) (ProviderResultOutcome, error) {
	unlock, err := e.lockRecord(ctx, input.RecordID)
	if err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}
	defer unlock()

	record, err := e.loadRecord(ctx, input)
	if err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}

	if record.Status != StatusPending {
		e.logWarn(ctx, "provider callback ignored for settled record", map[string]any{
			"record_id":     record.ID,
			"status":        record.Status.String(),
			"platform":      string(input.Platform),
			"callback_type": string(input.CallbackType),
		})
		e.observeOperation(ctx, startedAt, "provider_result", nil, map[string]any{
			"record_id":   record.ID,
			"platform":    string(input.Platform),
			"next_status": record.Status.String(),
			"ignored":     true,
		})
		return ProviderResultOutcome{Ignored: true, Record: record}, nil
	}

	config, err := e.clientConfig(ctx, record.CredentialID)
	if err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}

	next, err := ResolveStatus(input.Result, config.NeedsManualReview)
	if err != nil {
		return ProviderResultOutcome{}, e.mapError(err)
	}

	record.Status = next
	if next.AwaitingReview() && record.ProviderStatus == "" {
		record.ProviderStatus = next
	}
	if record.ProviderReferenceID == "" {
		record.ProviderReferenceID = strings.TrimSpace(input.RequestID)
	}
	record.UpdatedAt = e.now()

	record, err = e.recordStore.Update(ctx, record)
	if err != nil {
		e.observeOperation(ctx, startedAt, "provider_result", err, map[string]any{
			"record_id":     record.ID,
			"platform":      string(input.Platform),
			"callback_type": string(input.CallbackType),
		})
		return ProviderResultOutcome{}, e.mapError(err)
	}

	outcome := ProviderResultOutcome{Record: record}
	if e.gate.ShouldNotify(record, config.NeedsManualReview) {
		e.scheduleNotification(ctx, record, notificationExtra{
			ErrorMessage: input.ErrorMessage,
			RiskLevel:    input.RiskLevel,
		})
		outcome.Notified = true
	} else {
		e.logInfo(ctx, "notification deferred until review", map[string]any{
			"record_id": record.ID,
			"status":    record.Status.String(),
		})
	}

	e.observeOperation(ctx, startedAt, "provider_result", nil, map[string]any{
		"record_id":     record.ID,
		"platform":      string(input.Platform),
		"callback_type": string(input.CallbackType),
		"next_status":   record.Status.String(),
		"notified":      outcome.Notified,
	})
	return outcome, nil
}

type SubmitReviewInput struct {
	RecordID string
	Decision ReviewDecision
}

// SubmitReview finalizes an awaiting-review record with a human decision and
// always schedules a notification, since a review always yields a final
// status.
func (e *Engine) SubmitReview(ctx context.Context, input SubmitReviewInput) (VerificationRecord, error) {
	startedAt := time.Now()
	if e == nil || e.recordStore == nil {
		return VerificationRecord{}, newEngineError("core: record store is required", goerrors.CategoryInternal, ServiceErrorInternal)
	}
	recordID := strings.TrimSpace(input.RecordID)
	if recordID == "" {
		return VerificationRecord{}, e.mapError(fmt.Errorf("core: record id is required"))
	}

	unlock, err := e.lockRecord(ctx, recordID)
	if err != nil {
		return VerificationRecord{}, e.mapError(err)
	}
	defer unlock()

	record, err := e.recordStore.Get(ctx, recordID)
	if err != nil {
		return VerificationRecord{}, e.mapError(err)
	}

	if err := ApplyReview(&record, input.Decision, e.now()); err != nil {
		e.observeOperation(ctx, startedAt, "review_submit", err, map[string]any{
			"record_id": recordID,
		})
		return VerificationRecord{}, e.mapError(err)
	}

	record, err = e.recordStore.Update(ctx, record)
	if err != nil {
		return VerificationRecord{}, e.mapError(err)
	}

	e.scheduleNotification(ctx, record, notificationExtra{Review: true})

	e.observeOperation(ctx, startedAt, "review_submit", nil, map[string]any{
		"record_id":   record.ID,
		"next_status": record.Status.String(),
		"reviewed_by": record.ReviewedBy,
	})
	return record, nil
}

type notificationExtra struct {
	ErrorMessage string
	RiskLevel    string
	Review       bool
}

func (e *Engine) scheduleNotification(ctx context.Context, record VerificationRecord, extra notificationExtra) {
	if e == nil {
		return
	}
	if e.scheduler == nil {
		e.logWarn(ctx, "notification scheduler is not configured", map[string]any{
			"record_id": record.ID,
		})
		return
	}
	msg := &JobExecutionMessage{
		JobID: JobIDNotify,
		Parameters: map[string]any{
			"record_id":     record.ID,
			"credential_id": record.CredentialID,
			"error_message": extra.ErrorMessage,
			"risk_level":    extra.RiskLevel,
			"review":        extra.Review,
		},
		IdempotencyKey: record.ID + ":" + record.Status.String(),
	}
	if err := e.scheduler.Enqueue(ctx, msg); err != nil {
		e.logError(ctx, "failed to enqueue notification task", map[string]any{
			"record_id": record.ID,
			"error":     err.Error(),
		})
	}
}

// releaseAdmission withdraws the callback claim taken by Admit so the queue's
// redelivery of a failed callback is processed, not discarded as a duplicate.
func (e *Engine) releaseAdmission(ctx context.Context, input ProviderResultInput) {
	if e == nil || e.guard == nil {
		return
	}
	if err := e.guard.Release(ctx, input.Platform, input.CallbackType, input.RequestID); err != nil {
		e.logWarn(ctx, "failed to release callback claim", map[string]any{
			"idempotency_key": IdempotencyKey(input.Platform, input.CallbackType, input.RequestID),
			"error":           err.Error(),
		})
	}
}

func (e *Engine) lockRecord(ctx context.Context, recordID string) (func(), error) {
	if e == nil || e.recordLocker == nil {
		return func() {}, nil
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return func() {}, nil
	}
	ttl := e.config.RecordLockTTL()
	if ttl <= 0 {
		ttl = defaultRecordLockTTL
	}
	handle, err := e.recordLocker.Acquire(ctx, recordID, ttl)
	if err != nil {
		return nil, err
	}
	return func() {
		_ = handle.Unlock(ctx)
	}, nil
}

func (e *Engine) loadRecord(ctx context.Context, input ProviderResultInput) (VerificationRecord, error) {
	recordID := strings.TrimSpace(input.RecordID)
	if recordID != "" {
		return e.recordStore.Get(ctx, recordID)
	}
	return e.recordStore.GetByProviderReference(ctx, input.Platform, strings.TrimSpace(input.RequestID))
}

func (e *Engine) clientConfig(ctx context.Context, credentialID string) (ClientWebhookConfig, error) {
	if e == nil || e.clientConfigStore == nil {
		return ClientWebhookConfig{}, nil
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return ClientWebhookConfig{}, nil
	}
	return e.clientConfigStore.GetByCredential(ctx, credentialID)
}

// MemoryRecordLocker is the in-process per-record lock used when no external
// lease store is injected. First acquirer wins until unlock or TTL expiry.
type MemoryRecordLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryRecordLocker() *MemoryRecordLocker {
	return &MemoryRecordLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryRecordLocker) Acquire(_ context.Context, recordID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: record locker is not configured")
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, fmt.Errorf("core: record id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRecordLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[recordID]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: record lock already held for %q", recordID)
	}
	l.locks[recordID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, recordID: recordID}, nil
}

type memoryLockHandle struct {
	locker   *MemoryRecordLocker
	recordID string
	once     sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.recordID)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ RecordLocker = (*MemoryRecordLocker)(nil)
