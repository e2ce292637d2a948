package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/msahq/go-verification/core"
)

func TestProcessResultMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ProcessResultMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
}

func TestSubmitReviewMessage_ValidateRejectsNonFinalDecision(t *testing.T) {
	msg := SubmitReviewMessage{Input: core.SubmitReviewInput{
		RecordID: "rec-1",
		Decision: core.ReviewDecision{
			Status:   core.StatusPending,
			Notes:    "notes",
			Reviewer: "ops@example.com",
		},
	}}
	err := msg.Validate()
	if err == nil {
		t.Fatalf("expected validation error for non-final decision")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
}

func TestProcessResultCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *ProcessResultCommand
	err := cmd.Execute(context.Background(), ProcessResultMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
