package softgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// DeviceLostReason explains why a device was lost.
type DeviceLostReason int

const (
	// DeviceLostReasonUnknown is the zero value.
	DeviceLostReasonUnknown DeviceLostReason = iota
	// DeviceLostReasonDestroyed means Destroy was called.
	DeviceLostReasonDestroyed
)

// String returns the WebGPU name of the reason.
func (r DeviceLostReason) String() string {
	switch r {
	case DeviceLostReasonUnknown:
		return "unknown"
	case DeviceLostReasonDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("DeviceLostReason(%d)", int(r))
	}
}

// DeviceLostInfo describes a lost device.
type DeviceLostInfo struct {
	Reason  DeviceLostReason
	Message string
}

// Device creates GPU objects and owns the error scope stack.
//
// Thread Safety:
// Device is safe for concurrent use. Objects it creates guard their own
// state; the device does not track them.
type Device struct {
	// mu protects scopes, uncaptured, lostInfo and destroyed.
	mu sync.Mutex

	label    string
	adapter  *Adapter
	engine   engine.Engine
	limits   gputypes.Limits
	features Features
	queue    *Queue

	scopes     []*errorScope
	uncaptured func(GPUError)

	lost      chan struct{}
	lostOnce  sync.Once
	lostInfo  DeviceLostInfo
	destroyed bool
}

func newDevice(a *Adapter, label string) *Device {
	cfg := &a.instance.cfg
	d := &Device{
		label:      label,
		adapter:    a,
		engine:     cfg.Engine,
		limits:     a.limits,
		features:   a.features.clone(),
		uncaptured: cfg.UncapturedErrorHandler,
		lost:       make(chan struct{}),
	}
	d.queue = &Queue{device: d}
	Logger().Debug("softgpu: device created", "label", label, "engine", d.engine.Name())
	return d
}

// Label returns the device's debug label.
func (d *Device) Label() string { return d.label }

// Adapter returns the adapter that created the device.
func (d *Device) Adapter() *Adapter { return d.adapter }

// Queue returns the device queue.
func (d *Device) Queue() *Queue { return d.queue }

// Engine returns the shader engine.
func (d *Device) Engine() engine.Engine { return d.engine }

// Limits returns the device limit table.
func (d *Device) Limits() gputypes.Limits { return d.limits }

// Features returns the device feature table.
func (d *Device) Features() Features { return d.features.clone() }

// Destroy marks the device lost. The Lost channel closes exactly once;
// later factory calls return ErrDeviceDestroyed. Destroy is idempotent.
func (d *Device) Destroy() {
	d.lostOnce.Do(func() {
		d.mu.Lock()
		d.destroyed = true
		d.lostInfo = DeviceLostInfo{Reason: DeviceLostReasonDestroyed, Message: "device destroyed"}
		d.mu.Unlock()
		close(d.lost)
		Logger().Debug("softgpu: device destroyed", "label", d.label)
	})
}

// Lost returns a channel closed when the device is lost.
// It is never closed except by Destroy.
func (d *Device) Lost() <-chan struct{} { return d.lost }

// LostInfo returns why the device was lost and whether it is lost.
func (d *Device) LostInfo() (DeviceLostInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lostInfo, d.destroyed
}

// checkAlive returns ErrDeviceDestroyed after Destroy.
func (d *Device) checkAlive(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return fmt.Errorf("%s: %w", op, ErrDeviceDestroyed)
	}
	return nil
}

// ============================================================================
// Resource factories
// ============================================================================

// CreateBuffer creates a zero-filled buffer.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc is nil
//   - desc.Size is 0 or above the MaxBufferSize limit
func (d *Device) CreateBuffer(desc *gputypes.BufferDescriptor) (*Buffer, error) {
	if err := d.checkAlive("create buffer"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create buffer: %w", ErrNilDescriptor)
	}
	if desc.Size == 0 || desc.Size > d.limits.MaxBufferSize {
		return nil, fmt.Errorf("create buffer %q: %w: %d (max %d)",
			desc.Label, ErrInvalidBufferSize, desc.Size, d.limits.MaxBufferSize)
	}
	buf := newBuffer(desc)
	Logger().Debug("softgpu: buffer created",
		"label", desc.Label,
		"size", desc.Size,
		"usage", desc.Usage,
		"mapped_at_creation", desc.MappedAtCreation)
	return buf, nil
}

// CreateBufferInit creates a buffer holding a copy of data, rounded up to a
// multiple of 4 bytes.
func (d *Device) CreateBufferInit(label string, usage gputypes.BufferUsage, data []byte) (*Buffer, error) {
	size := alignUp4(uint64(len(data)))
	buf, err := d.CreateBuffer(&gputypes.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, err
	}
	copy(buf.data, data)
	return buf, nil
}

// CreateTexture is not implemented.
func (d *Device) CreateTexture() error { return notImplemented("CreateTexture") }

// CreateSampler is not implemented.
func (d *Device) CreateSampler() error { return notImplemented("CreateSampler") }

// ImportExternalTexture is not implemented.
func (d *Device) ImportExternalTexture() error { return notImplemented("ImportExternalTexture") }

// CreateQuerySet is not implemented.
func (d *Device) CreateQuerySet() error { return notImplemented("CreateQuerySet") }

// CreateRenderBundleEncoder is not implemented.
func (d *Device) CreateRenderBundleEncoder() error {
	return notImplemented("CreateRenderBundleEncoder")
}

func alignUp4(n uint64) uint64 {
	if n == 0 {
		return 4
	}
	return (n + 3) &^ 3
}
