package inbound

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/msahq/go-verification/core"
)

// Error constructors for the guard. Each error carries a category plus the
// HTTP code and text code surfaced in callback responses.

func inboundBadInput(message string, metadata map[string]any) error {
	return decorate(
		goerrors.New(message, goerrors.CategoryBadInput),
		http.StatusBadRequest,
		core.ServiceErrorBadInput,
		metadata,
	)
}

func inboundInternal(message string, metadata map[string]any) error {
	return decorate(
		goerrors.New(message, goerrors.CategoryInternal),
		http.StatusInternalServerError,
		core.ServiceErrorInternal,
		metadata,
	)
}

// inboundStoreFailure wraps a failed log-store operation. Unique violations
// never reach here; the store reports those as a non-created insert.
func inboundStoreFailure(source error, message string, metadata map[string]any) error {
	if source == nil {
		return inboundInternal(message, metadata)
	}
	return decorate(
		goerrors.Wrap(source, goerrors.CategoryOperation, message),
		http.StatusInternalServerError,
		core.ServiceErrorOperationFailed,
		metadata,
	)
}

func decorate(err *goerrors.Error, code int, textCode string, metadata map[string]any) error {
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
