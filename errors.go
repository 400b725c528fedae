package softgpu

import "errors"

// Instance and device errors.
var (
	// ErrNoEngine is returned by New when no shader engine is registered.
	ErrNoEngine = errors.New("softgpu: no shader engine available")

	// ErrNilDescriptor is returned when a required descriptor is nil.
	ErrNilDescriptor = errors.New("softgpu: descriptor is nil")

	// ErrDeviceDestroyed is returned by factory methods of a destroyed device.
	ErrDeviceDestroyed = errors.New("softgpu: device has been destroyed")

	// ErrFeatureNotSupported is returned when a device requests a feature
	// the adapter does not offer.
	ErrFeatureNotSupported = errors.New("softgpu: feature not supported")

	// ErrErrorScopeStackEmpty is returned by PopErrorScope with no scope pushed.
	ErrErrorScopeStackEmpty = errors.New("softgpu: error scope stack is empty")

	// ErrNotImplemented is matched by every error returned for an operation
	// this implementation does not support.
	ErrNotImplemented = errors.New("softgpu: not implemented")
)

// notImplementedError names the unsupported operation.
type notImplementedError struct {
	op string
}

func (e *notImplementedError) Error() string {
	return "softgpu: " + e.op + ": not implemented"
}

// Is makes errors.Is(err, ErrNotImplemented) hold.
func (e *notImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}

// notImplemented returns the error for an unsupported operation.
func notImplemented(op string) error {
	return &notImplementedError{op: op}
}
