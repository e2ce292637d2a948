package webhooks

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/msahq/go-verification/core"
)

// DispatchInput identifies one scheduled notification. The extras mirror the
// task parameters captured when the transition was recorded, so the payload
// reflects the provider context at transition time even if the delivery runs
// later.
type DispatchInput struct {
	RecordID     string
	CredentialID string
	ErrorMessage string
	RiskLevel    string
	ReviewNotes  string
	Review       bool
}

// Notifier executes scheduled notification tasks: it rehydrates the record
// and the client's webhook configuration, then hands delivery to the
// dispatcher.
type Notifier struct {
	Records    core.RecordStore
	Configs    core.ClientConfigStore
	Dispatcher *Dispatcher
	Logger     core.Logger
}

func NewNotifier(
	records core.RecordStore,
	configs core.ClientConfigStore,
	dispatcher *Dispatcher,
	logger core.Logger,
) *Notifier {
	return &Notifier{
		Records:    records,
		Configs:    configs,
		Dispatcher: dispatcher,
		Logger:     glog.Ensure(logger),
	}
}

// Dispatch delivers the notification for one record. Re-execution for an
// already-notified record is safe: delivery carries no record mutation, the
// receiving side dedupes on record id and status.
func (n *Notifier) Dispatch(ctx context.Context, input DispatchInput) error {
	if n == nil || n.Records == nil || n.Dispatcher == nil {
		return webhookInternal("webhooks: notifier requires a record store and dispatcher", nil)
	}
	recordID := strings.TrimSpace(input.RecordID)
	if recordID == "" {
		return webhookBadInput("webhooks: record id is required", nil)
	}

	record, err := n.Records.Get(ctx, recordID)
	if err != nil {
		return webhookOperationFailed(err, "webhooks: record lookup failed", map[string]any{
			"record_id": recordID,
		})
	}

	config := core.ClientWebhookConfig{}
	credentialID := strings.TrimSpace(input.CredentialID)
	if credentialID == "" {
		credentialID = strings.TrimSpace(record.CredentialID)
	}
	if n.Configs != nil && credentialID != "" {
		config, err = n.Configs.GetByCredential(ctx, credentialID)
		if err != nil {
			return webhookOperationFailed(err, "webhooks: client webhook config lookup failed", map[string]any{
				"record_id":     recordID,
				"credential_id": credentialID,
			})
		}
	}

	return n.Dispatcher.Deliver(ctx, record, config, Extra{
		ErrorMessage: input.ErrorMessage,
		RiskLevel:    input.RiskLevel,
		ReviewNotes:  input.ReviewNotes,
		Review:       input.Review,
	})
}
