package qdrant

import (
	"fmt"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
)

type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
)

type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "qdrant operation failed"
	}
	if e.Message != "" {
		return fmt.Sprintf(
			"qdrant operation failed (op=%s code=%s status=%d): %s",
			e.Operation,
			e.Code,
			e.StatusCode,
			e.Message,
		)
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"qdrant operation failed (op=%s code=%s status=%d): %v",
			e.Operation,
			e.Code,
			e.StatusCode,
			e.Cause,
		)
	}
	return fmt.Sprintf(
		"qdrant operation failed (op=%s code=%s status=%d)",
		e.Operation,
		e.Code,
		e.StatusCode,
	)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// DomainKind maps the low-level failure onto the service-wide error
// categories. Server-side 5xx and transport faults are retryable; everything
// else is either caller error or a permanent store fault.
func (e *OperationError) DomainKind() domain.Kind {
	if e == nil {
		return domain.KindStorePermanent
	}
	switch e.Code {
	case OperationErrorValidation:
		return domain.KindInvalidInput
	case OperationErrorTransportFailed, OperationErrorTimeout:
		return domain.KindStoreTransient
	case OperationErrorQueryFailed:
		if e.StatusCode >= 500 || e.StatusCode == 429 {
			return domain.KindStoreTransient
		}
		return domain.KindStorePermanent
	default:
		return domain.KindStorePermanent
	}
}

func opErr(op string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:      code,
		Operation: op,
		Message:   msg,
		Cause:     cause,
	}
}
