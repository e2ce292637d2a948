package webhooks

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/msahq/go-verification/core"
)

func webhookError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func webhookWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return webhookError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func webhookInternal(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.ServiceErrorInternal,
		metadata,
	)
}

func webhookBadInput(message string, metadata map[string]any) error {
	return webhookError(
		message,
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		core.ServiceErrorBadInput,
		metadata,
	)
}

func webhookOperationFailed(source error, message string, metadata map[string]any) error {
	return webhookWrapError(
		source,
		goerrors.CategoryOperation,
		message,
		http.StatusInternalServerError,
		core.ServiceErrorOperationFailed,
		metadata,
	)
}

func webhookDeliveryFailed(source error, message string, metadata map[string]any) error {
	return webhookWrapError(
		source,
		goerrors.CategoryExternal,
		message,
		http.StatusBadGateway,
		core.ServiceErrorDeliveryFailed,
		metadata,
	)
}
