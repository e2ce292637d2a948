package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	gojob "github.com/msahq/go-verification/adapters/gojob"
	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/webhooks"
)

const (
	defaultRetryDelay  = 60 * time.Second
	defaultMaxAttempts = 3
)

// ResultService applies an admitted provider verdict to a verification
// record.
type ResultService interface {
	ProcessProviderResult(ctx context.Context, input core.ProviderResultInput) (core.ProviderResultOutcome, error)
}

// NotificationService executes one scheduled webhook delivery.
type NotificationService interface {
	Dispatch(ctx context.Context, input webhooks.DispatchInput) error
}

type RunnerOption func(*Runner)

func WithRunnerLogger(logger core.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = glog.Ensure(logger)
	}
}

func WithRunnerHook(hook core.JobWorkerHook) RunnerOption {
	return func(r *Runner) {
		r.hook = hook
	}
}

func WithRetryDelay(delay time.Duration) RunnerOption {
	return func(r *Runner) {
		if delay > 0 {
			r.retryDelay = delay
		}
	}
}

func WithMaxAttempts(attempts int) RunnerOption {
	return func(r *Runner) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// Runner drains the task queue and routes each delivery to the matching
// handler: provider results re-enter the engine, notification tasks are
// handed to the notifier. Handlers are at-least-once; a failed delivery is
// requeued with a fixed delay until the attempt budget runs out, then dead
// lettered.
type Runner struct {
	dequeuer      core.JobDequeuer
	results       ResultService
	notifications NotificationService
	hook          core.JobWorkerHook
	logger        core.Logger

	retryDelay  time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int
}

func NewRunner(
	dequeuer core.JobDequeuer,
	results ResultService,
	notifications NotificationService,
	opts ...RunnerOption,
) (*Runner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("workers: dequeuer is required")
	}
	runner := &Runner{
		dequeuer:      dequeuer,
		results:       results,
		notifications: notifications,
		logger:        glog.Nop(),
		retryDelay:    defaultRetryDelay,
		maxAttempts:   defaultMaxAttempts,
		attempts:      map[string]int{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(runner)
	}
	return runner, nil
}

// NewQueueRunner wraps a raw go-job dequeuer in the runner's contracts. The
// queue-side retry policy mirrors the runner's attempt budget so nacks stay
// bounded even when the broker applies its own redelivery rules.
func NewQueueRunner(
	dequeuer queue.Dequeuer,
	results ResultService,
	notifications NotificationService,
	opts ...RunnerOption,
) (*Runner, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("workers: dequeuer is required")
	}
	scratch := &Runner{
		retryDelay:  defaultRetryDelay,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(scratch)
	}
	adapter := gojob.NewDequeuerAdapter(dequeuer, gojob.RetryPolicy{
		MaxAttempts:     scratch.maxAttempts,
		MaxDelay:        scratch.retryDelay,
		DeadLetterOnMax: true,
	})
	return NewRunner(adapter, results, notifications, opts...)
}

// Run consumes deliveries until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.dequeuer == nil {
		return fmt.Errorf("workers: runner is not configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := r.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("workers: dequeue failed: %w", err)
		}
		if delivery == nil {
			continue
		}
		r.Process(ctx, delivery)
	}
}

// Process handles one delivery end to end, including the ack or nack.
func (r *Runner) Process(ctx context.Context, delivery core.JobDelivery) {
	if r == nil || delivery == nil {
		return
	}
	msg := delivery.Message()
	if msg == nil {
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "empty delivery",
		})
		return
	}

	attempt := r.beginAttempt(msg)
	startedAt := time.Now()
	r.emitStart(ctx, msg, attempt, startedAt)

	err := r.handle(ctx, msg)
	duration := time.Since(startedAt)
	if err == nil {
		r.clearAttempts(msg)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			r.log(ctx, "error", "task ack failed", map[string]any{
				"job_id": msg.JobID,
				"error":  ackErr.Error(),
			})
		}
		r.emitSuccess(ctx, msg, attempt, startedAt, duration)
		return
	}

	if errors.Is(err, errUnroutable) {
		r.clearAttempts(msg)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
		r.log(ctx, "error", "unroutable task dead lettered", map[string]any{
			"job_id": msg.JobID,
			"error":  err.Error(),
		})
		return
	}

	if attempt >= r.maxAttempts {
		r.clearAttempts(msg)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
		r.log(ctx, "error", "task attempts exhausted", map[string]any{
			"job_id":       msg.JobID,
			"attempt":      attempt,
			"max_attempts": r.maxAttempts,
			"error":        err.Error(),
		})
		r.emitFailure(ctx, msg, attempt, startedAt, duration, err)
		return
	}

	_ = delivery.Nack(ctx, core.JobNackOptions{
		Delay:   r.retryDelay,
		Requeue: true,
		Reason:  err.Error(),
	})
	r.log(ctx, "warn", "task requeued", map[string]any{
		"job_id":  msg.JobID,
		"attempt": attempt,
		"delay":   r.retryDelay.String(),
		"error":   err.Error(),
	})
	r.emitRetry(ctx, msg, attempt, startedAt, duration, err)
}

var errUnroutable = errors.New("workers: no handler for job id")

func (r *Runner) handle(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch msg.JobID {
	case core.JobIDNotify:
		if r.notifications == nil {
			return fmt.Errorf("workers: notification service is not configured")
		}
		return r.notifications.Dispatch(ctx, dispatchInputFromParams(msg.Parameters))
	case core.JobIDProcessResult:
		if r.results == nil {
			return fmt.Errorf("workers: result service is not configured")
		}
		_, err := r.results.ProcessProviderResult(ctx, resultInputFromParams(msg.Parameters))
		return err
	default:
		return fmt.Errorf("%w: %q", errUnroutable, msg.JobID)
	}
}

func dispatchInputFromParams(params map[string]any) webhooks.DispatchInput {
	return webhooks.DispatchInput{
		RecordID:     stringParam(params, "record_id"),
		CredentialID: stringParam(params, "credential_id"),
		ErrorMessage: stringParam(params, "error_message"),
		RiskLevel:    stringParam(params, "risk_level"),
		ReviewNotes:  stringParam(params, "review_notes"),
		Review:       boolParam(params, "review"),
	}
}

func resultInputFromParams(params map[string]any) core.ProviderResultInput {
	return core.ProviderResultInput{
		Platform:     core.Platform(stringParam(params, "platform")),
		CallbackType: core.CallbackType(stringParam(params, "callback_type")),
		RequestID:    stringParam(params, "request_id"),
		RecordID:     stringParam(params, "record_id"),
		Result:       core.Status(stringParam(params, "result")),
		RiskLevel:    stringParam(params, "risk_level"),
		ErrorMessage: stringParam(params, "error_message"),
		Payload:      []byte(stringParam(params, "payload")),
	}
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	value, ok := params[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return strings.TrimSpace(text)
}

func boolParam(params map[string]any, key string) bool {
	if params == nil {
		return false
	}
	value, ok := params[key].(bool)
	return ok && value
}

func (r *Runner) beginAttempt(msg *core.JobExecutionMessage) int {
	key := attemptKey(msg)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[key]++
	return r.attempts[key]
}

func (r *Runner) clearAttempts(msg *core.JobExecutionMessage) {
	key := attemptKey(msg)
	r.mu.Lock()
	delete(r.attempts, key)
	r.mu.Unlock()
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return msg.JobID + ":" + key
	}
	return msg.JobID
}

func (r *Runner) log(ctx context.Context, level string, message string, fields map[string]any) {
	if r == nil || r.logger == nil {
		return
	}
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	switch level {
	case "warn":
		logger.Warn(message, args...)
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (r *Runner) emitStart(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time) {
	if r.hook == nil {
		return
	}
	r.hook.OnStart(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt})
}

func (r *Runner) emitSuccess(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, duration time.Duration) {
	if r.hook == nil {
		return
	}
	r.hook.OnSuccess(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt, Duration: duration})
}

func (r *Runner) emitFailure(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, duration time.Duration, err error) {
	if r.hook == nil {
		return
	}
	r.hook.OnFailure(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt, Duration: duration, Err: err})
}

func (r *Runner) emitRetry(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, duration time.Duration, err error) {
	if r.hook == nil {
		return
	}
	r.hook.OnRetry(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, Delay: r.retryDelay, StartedAt: startedAt, Duration: duration, Err: err})
}
