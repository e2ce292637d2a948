package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/msahq/go-verification/core"
	"github.com/msahq/go-verification/webhooks"
)

// WorkflowService is the mutating surface of the verification engine the
// command handlers drive.
type WorkflowService interface {
	AcceptScreening(ctx context.Context, input core.AcceptScreeningInput) (core.VerificationRecord, error)
	ProcessProviderResult(ctx context.Context, input core.ProviderResultInput) (core.ProviderResultOutcome, error)
	SubmitReview(ctx context.Context, input core.SubmitReviewInput) (core.VerificationRecord, error)
}

// NotificationService executes scheduled webhook deliveries.
type NotificationService interface {
	Dispatch(ctx context.Context, input webhooks.DispatchInput) error
}

type AcceptScreeningCommand struct {
	service WorkflowService
}

func NewAcceptScreeningCommand(service WorkflowService) *AcceptScreeningCommand {
	return &AcceptScreeningCommand{service: service}
}

func (c *AcceptScreeningCommand) Execute(ctx context.Context, msg AcceptScreeningMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: screening service is required")
	}
	out, err := c.service.AcceptScreening(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessResultCommand struct {
	service WorkflowService
}

func NewProcessResultCommand(service WorkflowService) *ProcessResultCommand {
	return &ProcessResultCommand{service: service}
}

func (c *ProcessResultCommand) Execute(ctx context.Context, msg ProcessResultMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: result service is required")
	}
	out, err := c.service.ProcessProviderResult(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SubmitReviewCommand struct {
	service WorkflowService
}

func NewSubmitReviewCommand(service WorkflowService) *SubmitReviewCommand {
	return &SubmitReviewCommand{service: service}
}

func (c *SubmitReviewCommand) Execute(ctx context.Context, msg SubmitReviewMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: review service is required")
	}
	out, err := c.service.SubmitReview(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DispatchNotificationCommand struct {
	service NotificationService
}

func NewDispatchNotificationCommand(service NotificationService) *DispatchNotificationCommand {
	return &DispatchNotificationCommand{service: service}
}

func (c *DispatchNotificationCommand) Execute(ctx context.Context, msg DispatchNotificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: notification service is required")
	}
	return c.service.Dispatch(ctx, msg.Input)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
