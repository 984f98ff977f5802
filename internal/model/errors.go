package model

import (
	"errors"
	"fmt"
	"strings"
)

// ModelErrorCode categorizes static declaration errors.
type ModelErrorCode string

const (
	ErrCodeEmptyName          ModelErrorCode = "EMPTY_NAME"
	ErrCodeDuplicateClass     ModelErrorCode = "DUPLICATE_CLASS"
	ErrCodeUnknownClass       ModelErrorCode = "UNKNOWN_CLASS"
	ErrCodeDuplicateBase      ModelErrorCode = "DUPLICATE_BASE"
	ErrCodeDuplicateMember    ModelErrorCode = "DUPLICATE_MEMBER"
	ErrCodeCycle              ModelErrorCode = "CYCLE"
	ErrCodeUnknownInitializer ModelErrorCode = "UNKNOWN_INITIALIZER"
	ErrCodeUnknownConstructor ModelErrorCode = "UNKNOWN_CONSTRUCTOR"
	ErrCodeDelegationCycle    ModelErrorCode = "DELEGATION_CYCLE"
	ErrCodeDelegationInits    ModelErrorCode = "DELEGATION_WITH_INITIALIZERS"
)

// ModelError is a malformed hierarchy declaration. It is detected once,
// when the class is declared, and is fatal to that declaration.
type ModelError struct {
	Code    ModelErrorCode
	Class   string
	Message string

	// Path is the offending cycle for CYCLE and DELEGATION_CYCLE.
	Path []string
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Class != "" {
		msg = fmt.Sprintf("%s (class=%s)", msg, e.Class)
	}
	if len(e.Path) > 0 {
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(e.Path, " → "))
	}
	return msg
}

// IsModelError reports whether err is (or wraps) a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

// HasCode reports whether err is a ModelError with the given code.
func HasCode(err error, code ModelErrorCode) bool {
	var me *ModelError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

func newModelError(code ModelErrorCode, class, format string, args ...any) *ModelError {
	return &ModelError{
		Code:    code,
		Class:   class,
		Message: fmt.Sprintf(format, args...),
	}
}
