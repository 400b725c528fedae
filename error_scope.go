package softgpu

import (
	"errors"
	"fmt"
)

// ErrInvalidErrorFilter is returned by PushErrorScope for an unknown filter.
var ErrInvalidErrorFilter = errors.New("softgpu: invalid error filter")

// ErrorFilter selects the class of GPU errors an error scope captures.
type ErrorFilter int

const (
	// ErrorFilterValidation captures *ValidationError.
	ErrorFilterValidation ErrorFilter = iota
	// ErrorFilterOutOfMemory captures *OutOfMemoryError.
	ErrorFilterOutOfMemory
	// ErrorFilterInternal captures *InternalError.
	ErrorFilterInternal
)

// String returns the WebGPU name of the filter.
func (f ErrorFilter) String() string {
	switch f {
	case ErrorFilterValidation:
		return "validation"
	case ErrorFilterOutOfMemory:
		return "out-of-memory"
	case ErrorFilterInternal:
		return "internal"
	default:
		return fmt.Sprintf("ErrorFilter(%d)", int(f))
	}
}

func (f ErrorFilter) valid() bool {
	return f >= ErrorFilterValidation && f <= ErrorFilterInternal
}

// GPUError is an error reported through error scopes rather than returned.
// It is one of *ValidationError, *OutOfMemoryError or *InternalError.
type GPUError interface {
	error
	// Filter returns the filter that captures this error.
	Filter() ErrorFilter

	gpuError()
}

// ValidationError reports invalid input detected by the device, such as a
// shader that fails to compile.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string     { return "softgpu: validation error: " + e.Message }
func (*ValidationError) Filter() ErrorFilter { return ErrorFilterValidation }
func (*ValidationError) gpuError()           {}

// OutOfMemoryError reports an allocation the device could not satisfy.
type OutOfMemoryError struct {
	Message string
}

func (e *OutOfMemoryError) Error() string     { return "softgpu: out of memory: " + e.Message }
func (*OutOfMemoryError) Filter() ErrorFilter { return ErrorFilterOutOfMemory }
func (*OutOfMemoryError) gpuError()           {}

// InternalError reports a failure while executing valid work, such as a
// shader engine error during dispatch.
type InternalError struct {
	Message string
	// Err is the underlying engine error, if any.
	Err error
}

func (e *InternalError) Error() string     { return "softgpu: internal error: " + e.Message }
func (e *InternalError) Unwrap() error     { return e.Err }
func (*InternalError) Filter() ErrorFilter { return ErrorFilterInternal }
func (*InternalError) gpuError()           {}

// errorScope is one frame of a device's error scope stack.
type errorScope struct {
	filter ErrorFilter
	errors []GPUError
}

// PushErrorScope pushes a scope capturing errors matching filter.
func (d *Device) PushErrorScope(filter ErrorFilter) error {
	if !filter.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidErrorFilter, int(filter))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scopes = append(d.scopes, &errorScope{filter: filter})
	return nil
}

// PopErrorScope pops the top scope and returns the first error it captured,
// or nil if it captured none.
//
// Returns ErrErrorScopeStackEmpty if no scope is pushed.
func (d *Device) PopErrorScope() (GPUError, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.scopes)
	if n == 0 {
		return nil, ErrErrorScopeStackEmpty
	}
	top := d.scopes[n-1]
	d.scopes[n-1] = nil
	d.scopes = d.scopes[:n-1]

	if len(top.errors) == 0 {
		return nil, nil
	}
	return top.errors[0], nil
}

// ErrorScopeDepth returns the number of pushed error scopes.
func (d *Device) ErrorScopeDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.scopes)
}

// SetUncapturedErrorHandler replaces the handler for errors no scope
// captures. Pass nil to only log them.
func (d *Device) SetUncapturedErrorHandler(h func(GPUError)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uncaptured = h
}

// reportError routes err to the top error scope when its filter matches.
// Deeper scopes never capture. Anything else is logged at Warn and passed to
// the uncaptured error handler.
func (d *Device) reportError(err GPUError) {
	d.mu.Lock()
	if n := len(d.scopes); n > 0 && d.scopes[n-1].filter == err.Filter() {
		top := d.scopes[n-1]
		top.errors = append(top.errors, err)
		d.mu.Unlock()
		return
	}
	h := d.uncaptured
	d.mu.Unlock()

	Logger().Warn("softgpu: uncaptured error",
		"device", d.label,
		"filter", err.Filter().String(),
		"error", err.Error())
	if h != nil {
		h(err)
	}
}
