package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
)

// RuntimeError is a misuse of an object detected while the engine runs:
// a call that cannot be dispatched or an operation on an object in the
// wrong phase.
//
// RuntimeErrors never unwind anything by themselves. When a body returns
// one, it becomes the Cause of a LifecycleFailure like any other error.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Object is the path of the affected object.
	Object string

	// Class is the layer (or dynamic type) involved.
	Class string

	// Method is the method name for dispatch errors.
	Method string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePureVirtualCall indicates a call resolved to a pure virtual
	// declaration, typically from a base layer's constructor or destructor.
	ErrCodePureVirtualCall RuntimeErrorCode = "PURE_VIRTUAL_CALL"

	// ErrCodeNoSuchMethod indicates no class in the active layer's graph
	// declares the method.
	ErrCodeNoSuchMethod RuntimeErrorCode = "NO_SUCH_METHOD"

	// ErrCodeNoSuchConstructor indicates an initializer selected a
	// constructor the class does not declare.
	ErrCodeNoSuchConstructor RuntimeErrorCode = "NO_SUCH_CONSTRUCTOR"

	// ErrCodeObjectDestroyed indicates an operation on a destroyed object.
	ErrCodeObjectDestroyed RuntimeErrorCode = "OBJECT_DESTROYED"

	// ErrCodeNotConstructed indicates an operation on an object whose
	// construction failed or has not finished.
	ErrCodeNotConstructed RuntimeErrorCode = "NOT_CONSTRUCTED"

	// ErrCodePartialDestruction indicates deletion through a base without a
	// virtual destructor: only the base sub-object was torn down.
	ErrCodePartialDestruction RuntimeErrorCode = "PARTIAL_DESTRUCTION"

	// ErrCodeCallDepthExceeded indicates virtual calls on one object nested
	// deeper than MaxCallDepth, as a method that calls itself does.
	ErrCodeCallDepthExceeded RuntimeErrorCode = "CALL_DEPTH_EXCEEDED"
)

// Sentinel values for errors.Is. A RuntimeError matches a sentinel with
// the same Code.
var (
	ErrPureVirtualCall    = &RuntimeError{Code: ErrCodePureVirtualCall, Message: "pure virtual method called"}
	ErrNoSuchMethod       = &RuntimeError{Code: ErrCodeNoSuchMethod, Message: "no such method"}
	ErrNoSuchConstructor  = &RuntimeError{Code: ErrCodeNoSuchConstructor, Message: "no such constructor"}
	ErrObjectDestroyed    = &RuntimeError{Code: ErrCodeObjectDestroyed, Message: "object already destroyed"}
	ErrNotConstructed     = &RuntimeError{Code: ErrCodeNotConstructed, Message: "object is not constructed"}
	ErrPartialDestruction = &RuntimeError{Code: ErrCodePartialDestruction, Message: "destructor is not virtual; only the base sub-object was destroyed"}
	ErrCallDepthExceeded  = &RuntimeError{Code: ErrCodeCallDepthExceeded, Message: "virtual calls nested too deeply"}
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Object != "" && e.Method != "":
		return fmt.Sprintf("%s (object=%s, class=%s, method=%s)", msg, e.Object, e.Class, e.Method)
	case e.Object != "":
		return fmt.Sprintf("%s (object=%s, class=%s)", msg, e.Object, e.Class)
	}
	return msg
}

// Is reports whether target is a RuntimeError with the same code.
func (e *RuntimeError) Is(target error) bool {
	var re *RuntimeError
	if errors.As(target, &re) {
		return re.Code == e.Code
	}
	return false
}

func newRuntimeError(sentinel *RuntimeError, inst *Instance, class, method string) *RuntimeError {
	return &RuntimeError{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Object:  inst.path,
		Class:   class,
		Method:  method,
	}
}

// LifecycleFailure is a single step's failure during one Construct call.
//
// The engine creates it once, where the failure happens, and then returns
// the same pointer through every enclosing layer while they unwind. The
// caller of Construct receives it unchanged.
type LifecycleFailure struct {
	// Object is the path of the object whose step failed. For a failure
	// inside a class-type member, this is the member's own path.
	Object string

	// Path is the failing sub-object or layer.
	Path string

	// Class is the class of the failing sub-object or layer.
	Class string

	// Step is the kind of the failing step, or ir.StepBody when a layer's
	// constructor body failed.
	Step ir.StepKind

	// Cause is the opaque payload.
	Cause error
}

// Error implements the error interface.
func (f *LifecycleFailure) Error() string {
	return fmt.Sprintf("construction of %s failed at %s %s (%s): %v", f.Object, f.Step, f.Path, f.Class, f.Cause)
}

// Unwrap returns the cause.
func (f *LifecycleFailure) Unwrap() error {
	return f.Cause
}

// IsLifecycleFailure returns true if err is (or wraps) a LifecycleFailure.
func IsLifecycleFailure(err error) bool {
	var lf *LifecycleFailure
	return errors.As(err, &lf)
}

// CastError is a failed cast to a reference type.
// The queried instance is never changed by a failed cast.
type CastError struct {
	Object  string
	Dynamic string // dynamic type at the time of the query
	Target  string
	Reason  string
}

// Error implements the error interface.
func (e *CastError) Error() string {
	return fmt.Sprintf("bad cast of %s (dynamic type %s) to %s: %s", e.Object, e.Dynamic, e.Target, e.Reason)
}

// IsCastError returns true if err is (or wraps) a CastError.
func IsCastError(err error) bool {
	var ce *CastError
	return errors.As(err, &ce)
}
