package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ServiceErrorBadInput          = "VERIFICATION_BAD_INPUT"
	ServiceErrorRecordNotFound    = "VERIFICATION_RECORD_NOT_FOUND"
	ServiceErrorNotAwaitingReview = "VERIFICATION_NOT_AWAITING_REVIEW"
	ServiceErrorDuplicateCallback = "VERIFICATION_DUPLICATE_CALLBACK"
	ServiceErrorRecordLocked      = "VERIFICATION_RECORD_LOCKED"
	ServiceErrorDeliveryFailed    = "VERIFICATION_DELIVERY_FAILED"
	ServiceErrorOperationFailed   = "VERIFICATION_OPERATION_FAILED"
	ServiceErrorInternal          = "VERIFICATION_INTERNAL_ERROR"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func engineErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureEngineErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newEngineError(err.Error(), goerrors.CategoryNotFound, ServiceErrorRecordNotFound)
	case strings.Contains(msg, "not awaiting review"):
		return newEngineError(err.Error(), goerrors.CategoryConflict, ServiceErrorNotAwaitingReview)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "record lock"):
		return newEngineError(err.Error(), goerrors.CategoryConflict, ServiceErrorRecordLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newEngineError(err.Error(), goerrors.CategoryBadInput, ServiceErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureEngineErrorEnvelope(mapped)
}

func newEngineError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureEngineErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureEngineErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = engineHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultEngineTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultEngineTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ServiceErrorBadInput
	case goerrors.CategoryNotFound:
		return ServiceErrorRecordNotFound
	case goerrors.CategoryConflict:
		return ServiceErrorRecordLocked
	case goerrors.CategoryOperation:
		return ServiceErrorOperationFailed
	default:
		return ServiceErrorInternal
	}
}

func engineHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
