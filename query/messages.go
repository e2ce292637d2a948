package query

import (
	"strings"

	"github.com/msahq/go-verification/core"
)

const (
	TypeGetVerification = "verification.query.record.get"
	TypeListInboundLogs = "verification.query.inbound_logs.list"
)

type GetVerificationMessage struct {
	RecordID            string
	Platform            core.Platform
	ProviderReferenceID string
}

func (GetVerificationMessage) Type() string { return TypeGetVerification }

func (m GetVerificationMessage) Validate() error {
	if strings.TrimSpace(m.RecordID) == "" && strings.TrimSpace(m.ProviderReferenceID) == "" {
		return queryValidationError("record_id", "record id or provider reference id is required")
	}
	return nil
}

type ListInboundLogsMessage struct {
	Filter core.ListInboundLogsFilter
}

func (ListInboundLogsMessage) Type() string { return TypeListInboundLogs }

func (m ListInboundLogsMessage) Validate() error {
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Filter.CallbackType != "" && !m.Filter.CallbackType.Valid() {
		return queryValidationError("callback_type", "unsupported callback type")
	}
	return nil
}
