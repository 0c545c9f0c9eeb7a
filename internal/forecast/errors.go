package forecast

import (
	"errors"
	"fmt"

	"github.com/Veraticus/spence/internal/common"
)

// Kind classifies a request-level forecast failure.
type Kind string

// Forecast failure kinds.
const (
	KindInsufficientData Kind = "insufficient_data"
	KindEmptyInput       Kind = "empty_input"
	KindModelFit         Kind = "model_fit"
)

// Error is a classified forecast failure. None of its kinds succeed on retry
// without new history.
type Error struct {
	Err     error
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind's sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether repeating the same request could succeed.
func (e *Error) Retryable() bool {
	return false
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindInsufficientData:
		return common.ErrInsufficientData
	case KindEmptyInput:
		return common.ErrEmptyInput
	default:
		return common.ErrModelFit
	}
}

// KindOf returns the classification of err if it is a forecast error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: err, Message: fmt.Sprintf(format, args...)}
}
