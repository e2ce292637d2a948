package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/msahq/go-verification/core"
)

// HTTPClient is the transport surface the dispatcher depends on; *http.Client
// satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher delivers status-change notifications to client webhook
// endpoints. Failed attempts are retried on a fixed interval until the
// attempt budget runs out; exhaustion is logged at critical severity and
// never touches the verification record.
type Dispatcher struct {
	Client  HTTPClient
	Logger  core.Logger
	Metrics core.MetricsRecorder

	MaxAttempts   int
	RetryInterval time.Duration

	// Sleep waits between attempts. Injectable so tests can collapse the
	// retry delay; the default honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewDispatcher builds a dispatcher from the delivery configuration. The
// HTTP client carries the per-attempt timeout.
func NewDispatcher(config core.DeliveryConfig, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		Client:        &http.Client{Timeout: config.Timeout()},
		Logger:        glog.Ensure(logger),
		Metrics:       core.NopMetricsRecorder{},
		MaxAttempts:   config.MaxAttempts,
		RetryInterval: config.RetryInterval(),
		Sleep:         sleepContext,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ShouldNotify implements the dispatch gate.
func (d *Dispatcher) ShouldNotify(record core.VerificationRecord, needsManualReview bool) bool {
	return core.ShouldNotify(record, needsManualReview)
}

// Deliver sends one notification for the record. A missing webhook URL is not
// an error: the delivery is skipped with a warning. Any other failure is
// retried up to the attempt budget; the returned error is non-nil only once
// the budget is exhausted.
func (d *Dispatcher) Deliver(
	ctx context.Context,
	record core.VerificationRecord,
	config core.ClientWebhookConfig,
	extra Extra,
) error {
	if d == nil || d.Client == nil {
		return webhookInternal("webhooks: dispatcher requires an http client", nil)
	}
	if !config.DeliveryEnabled() {
		d.warn(ctx, "client webhook url is not configured, skipping notification", map[string]any{
			"record_id":     record.ID,
			"credential_id": config.CredentialID,
			"status":        record.Status.String(),
		})
		return nil
	}

	envelope := BuildEnvelope(record, extra)
	body, err := json.Marshal(envelope)
	if err != nil {
		return webhookInternal("webhooks: payload serialization failed", map[string]any{
			"record_id": record.ID,
		})
	}

	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = core.DefaultConfig().Delivery.MaxAttempts
	}

	startedAt := d.now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = d.send(ctx, config, body)
		if lastErr == nil {
			d.info(ctx, "notification delivered", map[string]any{
				"record_id": record.ID,
				"platform":  string(record.Platform),
				"status":    record.Status.String(),
				"attempt":   attempt,
			})
			d.observe(ctx, record, "delivered", attempt, startedAt)
			return nil
		}
		d.warn(ctx, "notification attempt failed", map[string]any{
			"record_id": record.ID,
			"platform":  string(record.Platform),
			"status":    record.Status.String(),
			"attempt":   attempt,
			"error":     lastErr.Error(),
		})
		if attempt == maxAttempts {
			break
		}
		if err := d.wait(ctx); err != nil {
			lastErr = err
			break
		}
	}

	return d.handlePermanentFailure(ctx, record, maxAttempts, startedAt, lastErr)
}

// handlePermanentFailure runs once the attempt budget is exhausted. It is
// safe to call for a record that may already have been notified by an earlier
// task; it only logs and reports, the record status stays untouched.
func (d *Dispatcher) handlePermanentFailure(
	ctx context.Context,
	record core.VerificationRecord,
	attempts int,
	startedAt time.Time,
	cause error,
) error {
	fields := map[string]any{
		"severity":  "critical",
		"record_id": record.ID,
		"platform":  string(record.Platform),
		"status":    record.Status.String(),
		"attempts":  attempts,
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	d.error(ctx, "notification delivery failed permanently", fields)
	d.observe(ctx, record, "failed", attempts, startedAt)
	return webhookDeliveryFailed(cause, "webhooks: notification delivery failed permanently", map[string]any{
		"record_id": record.ID,
		"attempts":  attempts,
	})
}

func (d *Dispatcher) send(ctx context.Context, config core.ClientWebhookConfig, body []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhooks: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.SigningEnabled() {
		timestamp := d.now().Unix()
		req.Header.Set(HeaderSignature, Sign(config.SignatureKey, timestamp, body))
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhooks: request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhooks: endpoint responded %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) wait(ctx context.Context) error {
	interval := d.RetryInterval
	if interval <= 0 {
		interval = core.DefaultConfig().Delivery.RetryInterval()
	}
	if d.Sleep != nil {
		return d.Sleep(ctx, interval)
	}
	return sleepContext(ctx, interval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) observe(ctx context.Context, record core.VerificationRecord, result string, attempts int, startedAt time.Time) {
	if d == nil || d.Metrics == nil {
		return
	}
	tags := map[string]string{
		"result":   result,
		"platform": string(record.Platform),
	}
	d.Metrics.IncCounter(ctx, "webhooks.delivery.total", 1, tags)
	d.Metrics.ObserveHistogram(ctx, "webhooks.delivery.attempts", float64(attempts), tags)
	d.Metrics.ObserveHistogram(ctx, "webhooks.delivery.duration_ms", float64(d.now().Sub(startedAt).Milliseconds()), tags)
}

func (d *Dispatcher) info(ctx context.Context, message string, fields map[string]any) {
	d.log(ctx, "info", message, fields)
}

func (d *Dispatcher) warn(ctx context.Context, message string, fields map[string]any) {
	d.log(ctx, "warn", message, fields)
}

func (d *Dispatcher) error(ctx context.Context, message string, fields map[string]any) {
	d.log(ctx, "error", message, fields)
}

func (d *Dispatcher) log(ctx context.Context, level string, message string, fields map[string]any) {
	if d == nil || d.Logger == nil {
		return
	}
	logger := d.Logger
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

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

var _ core.NotificationGate = (*Dispatcher)(nil)
