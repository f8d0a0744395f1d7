package domain

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the error category carried across layer boundaries. DALs surface
// only the store kinds; services wrap with operation context but keep the
// innermost kind intact.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindStoreTransient   Kind = "store_transient"
	KindStorePermanent   Kind = "store_permanent"
	KindEmbeddingFailure Kind = "embedding_failure"
	KindPartialIngest    Kind = "partial_ingest"
	KindCancelled        Kind = "cancelled"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap keeps the innermost kind while adding operation context. Errors with
// no kind yet get the fallback.
func Wrap(op string, err error, fallback Kind) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != "" {
		return &Error{Kind: k, Op: op, Err: err}
	}
	return &Error{Kind: fallback, Op: op, Err: err}
}

// KindOf walks the wrap chain for a categorized error. Context cancellation
// and deadline expiry map to KindCancelled regardless of wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

type strErr string

func (s strErr) Error() string { return string(s) }
