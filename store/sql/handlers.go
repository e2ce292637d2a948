package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func verificationHandlers() repository.ModelHandlers[*verificationRecord] {
	return repository.ModelHandlers[*verificationRecord]{
		NewRecord: func() *verificationRecord {
			return &verificationRecord{}
		},
		GetID: func(record *verificationRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *verificationRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *verificationRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func inboundLogHandlers() repository.ModelHandlers[*inboundWebhookLogRecord] {
	return repository.ModelHandlers[*inboundWebhookLogRecord]{
		NewRecord: func() *inboundWebhookLogRecord {
			return &inboundWebhookLogRecord{}
		},
		GetID: func(record *inboundWebhookLogRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *inboundWebhookLogRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *inboundWebhookLogRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func clientConfigHandlers() repository.ModelHandlers[*clientWebhookConfigRecord] {
	return repository.ModelHandlers[*clientWebhookConfigRecord]{
		NewRecord: func() *clientWebhookConfigRecord {
			return &clientWebhookConfigRecord{}
		},
		GetID: func(record *clientWebhookConfigRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *clientWebhookConfigRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *clientWebhookConfigRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
