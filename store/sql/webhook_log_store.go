package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/msahq/go-verification/core"
	"github.com/uptrace/bun"
)

// WebhookLogStore is the SQL-backed inbound dedup ledger. The unique index on
// idempotency_key is the serialization point: the second insert for a key
// loses the race and resolves the existing row instead.
type WebhookLogStore struct {
	db   *bun.DB
	repo repository.Repository[*inboundWebhookLogRecord]
	now  func() time.Time
}

func NewWebhookLogStore(db *bun.DB) (*WebhookLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*inboundWebhookLogRecord](db, inboundLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid inbound log repository wiring: %w", err)
		}
	}
	return &WebhookLogStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (s *WebhookLogStore) Insert(ctx context.Context, entry core.InboundWebhookLog) (core.InboundWebhookLog, bool, error) {
	if s == nil || s.db == nil {
		return core.InboundWebhookLog{}, false, fmt.Errorf("sqlstore: webhook log store is not configured")
	}
	entry.IdempotencyKey = strings.TrimSpace(entry.IdempotencyKey)
	if entry.IdempotencyKey == "" {
		return core.InboundWebhookLog{}, false, fmt.Errorf("sqlstore: idempotency key is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	model := newInboundWebhookLogRecord(entry)
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return core.InboundWebhookLog{}, false, err
		}
		existing, lookupErr := s.getByKey(ctx, entry.IdempotencyKey)
		if lookupErr != nil {
			return core.InboundWebhookLog{}, false, lookupErr
		}
		return existing, false, nil
	}
	return model.toDomain(), true, nil
}

// Delete removes a claim by idempotency key. A missing row is a no-op so the
// release path stays idempotent under redelivery races.
func (s *WebhookLogStore) Delete(ctx context.Context, idempotencyKey string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook log store is not configured")
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return fmt.Errorf("sqlstore: idempotency key is required")
	}
	_, err := s.db.NewDelete().
		Model((*inboundWebhookLogRecord)(nil)).
		Where("idempotency_key = ?", idempotencyKey).
		Exec(ctx)
	return err
}

func (s *WebhookLogStore) List(ctx context.Context, filter core.ListInboundLogsFilter) ([]core.InboundWebhookLog, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("sqlstore: webhook log store is not configured")
	}
	var records []*inboundWebhookLogRecord
	q := s.db.NewSelect().Model(&records)
	if filter.Platform != "" {
		q = q.Where("?TableAlias.platform = ?", string(filter.Platform))
	}
	if filter.CallbackType != "" {
		q = q.Where("?TableAlias.callback_type = ?", string(filter.CallbackType))
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	q = q.Order("created_at ASC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, 0, err
	}
	entries := make([]core.InboundWebhookLog, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, total, nil
}

func (s *WebhookLogStore) getByKey(ctx context.Context, idempotencyKey string) (core.InboundWebhookLog, error) {
	record := &inboundWebhookLogRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.idempotency_key = ?", idempotencyKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.InboundWebhookLog{}, fmt.Errorf("sqlstore: idempotency key %q lost the insert race but has no row", idempotencyKey)
		}
		return core.InboundWebhookLog{}, err
	}
	return record.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
