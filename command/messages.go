package command

import (
	"strings"

	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/webhooks"
)

const (
	TypeAcceptScreening      = "verification.command.screening.accept"
	TypeProcessResult        = "verification.command.result.process"
	TypeSubmitReview         = "verification.command.review.submit"
	TypeDispatchNotification = "verification.command.notification.dispatch"
)

type AcceptScreeningMessage struct {
	Input core.AcceptScreeningInput
}

func (AcceptScreeningMessage) Type() string { return TypeAcceptScreening }

func (m AcceptScreeningMessage) Validate() error {
	if !m.Input.Platform.Valid() {
		return commandValidationError("platform", "screening platform is required")
	}
	return nil
}

type ProcessResultMessage struct {
	Input core.ProviderResultInput
}

func (ProcessResultMessage) Type() string { return TypeProcessResult }

func (m ProcessResultMessage) Validate() error {
	if !m.Input.Platform.Valid() {
		return commandValidationError("platform", "screening platform is required")
	}
	if !m.Input.CallbackType.Valid() {
		return commandValidationError("callback_type", "callback type is required")
	}
	if strings.TrimSpace(m.Input.RequestID) == "" {
		return commandValidationError("request_id", "callback request id is required")
	}
	if !m.Input.Result.Valid() {
		return commandValidationError("result", "provider result status is required")
	}
	return nil
}

type SubmitReviewMessage struct {
	Input core.SubmitReviewInput
}

func (SubmitReviewMessage) Type() string { return TypeSubmitReview }

func (m SubmitReviewMessage) Validate() error {
	if strings.TrimSpace(m.Input.RecordID) == "" {
		return commandValidationError("record_id", "record id is required")
	}
	if err := m.Input.Decision.Validate(); err != nil {
		return commandWrapValidation(err, "command: review decision is invalid")
	}
	return nil
}

type DispatchNotificationMessage struct {
	Input webhooks.DispatchInput
}

func (DispatchNotificationMessage) Type() string { return TypeDispatchNotification }

func (m DispatchNotificationMessage) Validate() error {
	if strings.TrimSpace(m.Input.RecordID) == "" {
		return commandValidationError("record_id", "record id is required")
	}
	return nil
}
