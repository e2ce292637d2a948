package inbound

import (
	"context"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/msahq/go-verification/core"
)

// Guard performs the at-most-once admission check for provider callbacks.
// The store insert is the serialization point: of two concurrent deliveries
// carrying the same key, exactly one observes created=true.
type Guard struct {
	Store  core.WebhookLogStore
	Logger core.Logger
	Now    func() time.Time
}

func NewGuard(store core.WebhookLogStore, logger core.Logger) *Guard {
	return &Guard{
		Store:  store,
		Logger: glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Admit attempts to claim the callback identified by (platform, type,
// requestId). The returned admission reports Admitted=false for a redelivered
// callback; the caller must acknowledge it to the provider and stop.
func (g *Guard) Admit(
	ctx context.Context,
	platform core.Platform,
	callbackType core.CallbackType,
	requestID string,
	payload []byte,
) (core.Admission, error) {
	if g == nil || g.Store == nil {
		return core.Admission{}, inboundInternal("inbound: guard requires a webhook log store", nil)
	}
	if !platform.Valid() {
		return core.Admission{}, inboundBadInput("inbound: platform is required", nil)
	}
	if !callbackType.Valid() {
		return core.Admission{}, inboundBadInput("inbound: unsupported callback type", map[string]any{
			"callback_type": string(callbackType),
		})
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return core.Admission{}, inboundBadInput("inbound: callback request id is required", map[string]any{
			"platform":      string(platform),
			"callback_type": string(callbackType),
		})
	}

	key := core.IdempotencyKey(platform, callbackType, requestID)
	entry := core.InboundWebhookLog{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		Platform:       platform,
		CallbackType:   callbackType,
		Payload:        append([]byte(nil), payload...),
		CreatedAt:      g.now(),
	}

	stored, created, err := g.Store.Insert(ctx, entry)
	if err != nil {
		return core.Admission{}, inboundStoreFailure(
			err,
			"inbound: webhook log insert failed",
			map[string]any{"idempotency_key": key},
		)
	}
	if !created {
		g.warn(ctx, "duplicate provider callback", map[string]any{
			"idempotency_key": key,
			"platform":        string(platform),
			"callback_type":   string(callbackType),
		})
		return core.Admission{Admitted: false, Log: stored}, nil
	}
	return core.Admission{Admitted: true, Log: stored}, nil
}

// Release withdraws an admitted claim so the provider's redelivery of the
// same callback can be admitted again. Callers use it when processing fails
// after Admit but before the record update lands.
func (g *Guard) Release(
	ctx context.Context,
	platform core.Platform,
	callbackType core.CallbackType,
	requestID string,
) error {
	if g == nil || g.Store == nil {
		return inboundInternal("inbound: guard requires a webhook log store", nil)
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return inboundBadInput("inbound: callback request id is required", map[string]any{
			"platform":      string(platform),
			"callback_type": string(callbackType),
		})
	}
	key := core.IdempotencyKey(platform, callbackType, requestID)
	if err := g.Store.Delete(ctx, key); err != nil {
		return inboundStoreFailure(
			err,
			"inbound: webhook log delete failed",
			map[string]any{"idempotency_key": key},
		)
	}
	return nil
}

func (g *Guard) warn(ctx context.Context, message string, fields map[string]any) {
	if g == nil || g.Logger == nil {
		return
	}
	logger := g.Logger
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
	logger.Warn(message, args...)
}

func (g *Guard) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

// InMemoryWebhookLogStore is the store used by tests and single-process
// deployments. Uniqueness is enforced under one mutex, mirroring the unique
// index the SQL store relies on.
type InMemoryWebhookLogStore struct {
	mu      sync.Mutex
	entries map[string]core.InboundWebhookLog
	order   []string
}

func NewInMemoryWebhookLogStore() *InMemoryWebhookLogStore {
	return &InMemoryWebhookLogStore{
		entries: map[string]core.InboundWebhookLog{},
	}
}

func (s *InMemoryWebhookLogStore) Insert(_ context.Context, entry core.InboundWebhookLog) (core.InboundWebhookLog, bool, error) {
	if s == nil {
		return core.InboundWebhookLog{}, false, inboundInternal("inbound: webhook log store is nil", nil)
	}
	key := strings.TrimSpace(entry.IdempotencyKey)
	if key == "" {
		return core.InboundWebhookLog{}, false, inboundBadInput("inbound: idempotency key is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		return existing, false, nil
	}
	s.entries[key] = entry
	s.order = append(s.order, key)
	return entry, true, nil
}

func (s *InMemoryWebhookLogStore) Delete(_ context.Context, idempotencyKey string) error {
	if s == nil {
		return inboundInternal("inbound: webhook log store is nil", nil)
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return inboundBadInput("inbound: idempotency key is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	for i, existing := range s.order {
		if existing == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryWebhookLogStore) List(_ context.Context, filter core.ListInboundLogsFilter) ([]core.InboundWebhookLog, int, error) {
	if s == nil {
		return nil, 0, inboundInternal("inbound: webhook log store is nil", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]core.InboundWebhookLog, 0, len(s.order))
	for _, key := range s.order {
		entry := s.entries[key]
		if filter.Platform != "" && entry.Platform != filter.Platform {
			continue
		}
		if filter.CallbackType != "" && entry.CallbackType != filter.CallbackType {
			continue
		}
		matched = append(matched, entry)
	}
	total := len(matched)

	offset := filter.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

var (
	_ core.InboundGuard    = (*Guard)(nil)
	_ core.WebhookLogStore = (*InMemoryWebhookLogStore)(nil)
)
