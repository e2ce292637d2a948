package query

import (
	"context"
	"strings"

	"github.com/msahq/go-verification/core"
)

// RecordReader is the read-only surface of the record store the queries use.
type RecordReader interface {
	GetVerification(ctx context.Context, recordID string) (core.VerificationRecord, error)
	GetVerificationByProviderReference(ctx context.Context, platform core.Platform, providerReferenceID string) (core.VerificationRecord, error)
}

// InboundLogReader lists the inbound callback audit trail.
type InboundLogReader interface {
	ListInboundLogs(ctx context.Context, filter core.ListInboundLogsFilter) (core.InboundLogPage, error)
}

type GetVerificationQuery struct {
	reader RecordReader
}

func NewGetVerificationQuery(reader RecordReader) *GetVerificationQuery {
	return &GetVerificationQuery{reader: reader}
}

func (q *GetVerificationQuery) Query(ctx context.Context, msg GetVerificationMessage) (core.VerificationRecord, error) {
	if q == nil || q.reader == nil {
		return core.VerificationRecord{}, queryDependencyError("query: record reader is required")
	}
	if recordID := strings.TrimSpace(msg.RecordID); recordID != "" {
		return q.reader.GetVerification(ctx, recordID)
	}
	return q.reader.GetVerificationByProviderReference(ctx, msg.Platform, strings.TrimSpace(msg.ProviderReferenceID))
}

type ListInboundLogsQuery struct {
	reader InboundLogReader
}

func NewListInboundLogsQuery(reader InboundLogReader) *ListInboundLogsQuery {
	return &ListInboundLogsQuery{reader: reader}
}

func (q *ListInboundLogsQuery) Query(ctx context.Context, msg ListInboundLogsMessage) (core.InboundLogPage, error) {
	if q == nil || q.reader == nil {
		return core.InboundLogPage{}, queryDependencyError("query: inbound log reader is required")
	}
	return q.reader.ListInboundLogs(ctx, msg.Filter)
}

// StoreReader adapts the engine's store contracts to the reader interfaces.
type StoreReader struct {
	Records core.RecordStore
	Logs    core.WebhookLogStore
}

func (r StoreReader) GetVerification(ctx context.Context, recordID string) (core.VerificationRecord, error) {
	if r.Records == nil {
		return core.VerificationRecord{}, queryDependencyError("query: record store is required")
	}
	return r.Records.Get(ctx, recordID)
}

func (r StoreReader) GetVerificationByProviderReference(ctx context.Context, platform core.Platform, providerReferenceID string) (core.VerificationRecord, error) {
	if r.Records == nil {
		return core.VerificationRecord{}, queryDependencyError("query: record store is required")
	}
	return r.Records.GetByProviderReference(ctx, platform, providerReferenceID)
}

func (r StoreReader) ListInboundLogs(ctx context.Context, filter core.ListInboundLogsFilter) (core.InboundLogPage, error) {
	if r.Logs == nil {
		return core.InboundLogPage{}, queryDependencyError("query: webhook log store is required")
	}
	entries, total, err := r.Logs.List(ctx, filter)
	if err != nil {
		return core.InboundLogPage{}, err
	}
	return core.InboundLogPage{Entries: entries, Total: total}, nil
}
