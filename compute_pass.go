package softgpu

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// Compute pass errors.
var (
	// ErrComputePassEnded is returned when operations are called on an ended
	// compute pass.
	ErrComputePassEnded = errors.New("softgpu: compute pass has already ended")

	// ErrNilPipeline is returned when SetPipeline is called with nil.
	ErrNilPipeline = errors.New("softgpu: pipeline is nil")

	// ErrNoPipeline is returned when dispatching before SetPipeline.
	ErrNoPipeline = errors.New("softgpu: no pipeline set")

	// ErrNoEntryPointOrCode is returned when the pipeline has no entry point
	// name or its module has no source.
	ErrNoEntryPointOrCode = errors.New("softgpu: pipeline has no entry point or shader code")

	// ErrNoBindingLayout is returned when a bound resource has no entry in
	// the pipeline layout.
	ErrNoBindingLayout = errors.New("softgpu: no pipeline layout entry for binding")

	// ErrUndefinedBufferType is returned when a pipeline layout entry has a
	// buffer sub-descriptor with an undefined type.
	ErrUndefinedBufferType = errors.New("softgpu: layout entry has undefined buffer type")

	// ErrDynamicOffsetCount is returned when SetBindGroup receives a number of
	// dynamic offsets different from the number of dynamic entries.
	ErrDynamicOffsetCount = errors.New("softgpu: dynamic offset count mismatch")

	// ErrDynamicOffsetAlignment is returned when a dynamic offset is not a
	// multiple of the device's minimum buffer offset alignment.
	ErrDynamicOffsetAlignment = errors.New("softgpu: dynamic offset misaligned")
)

// ComputePassDescriptor describes a compute pass.
type ComputePassDescriptor struct {
	Label string
}

// boundGroup is a bind group set on a pass, with its dynamic offsets
// resolved per binding.
type boundGroup struct {
	group   *BindGroup
	offsets map[uint32]uint64
}

// ComputePassEncoder records and runs compute dispatches.
//
// DispatchWorkgroups executes synchronously: binding contents are copied to
// the shader engine, the entry point runs, and results are written back
// before it returns.
//
// Thread Safety:
// ComputePassEncoder is safe for concurrent use; dispatches are serialized.
//
// Lifecycle:
//  1. Created by CommandEncoder.BeginComputePass()
//  2. SetPipeline, SetBindGroup, DispatchWorkgroups
//  3. Call End() to complete the pass
type ComputePassEncoder struct {
	mu sync.Mutex

	device *Device
	label  string
	ended  bool

	pipeline      *ComputePipeline
	groups        map[uint32]boundGroup
	dispatchCount uint32
}

func newComputePass(d *Device, desc *ComputePassDescriptor) *ComputePassEncoder {
	p := &ComputePassEncoder{device: d, groups: make(map[uint32]boundGroup)}
	if desc != nil {
		p.label = desc.Label
	}
	return p
}

func (*ComputePassEncoder) command() {}

// Label returns the pass's debug label.
func (p *ComputePassEncoder) Label() string { return p.label }

// IsEnded returns true if the pass has been ended.
func (p *ComputePassEncoder) IsEnded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

// DispatchCount returns the number of dispatches sent to the engine.
func (p *ComputePassEncoder) DispatchCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatchCount
}

// SetPipeline sets the pipeline for subsequent dispatches.
func (p *ComputePassEncoder) SetPipeline(pipeline *ComputePipeline) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return ErrComputePassEnded
	}
	if pipeline == nil {
		return ErrNilPipeline
	}
	p.pipeline = pipeline
	return nil
}

// SetBindGroup binds group at index for subsequent dispatches. A nil group
// clears the slot.
//
// dynamicOffsets apply, in binding order, to the group's buffer entries
// whose layout sets HasDynamicOffset.
//
// Returns an error if the pass has ended, index is at or above the
// MaxBindGroups limit, or the number of dynamic offsets does not match.
func (p *ComputePassEncoder) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return ErrComputePassEnded
	}
	offsets, err := bindGroupSlot(p.device, index, group, dynamicOffsets)
	if err != nil {
		return err
	}
	if group == nil {
		delete(p.groups, index)
		return nil
	}
	p.groups[index] = boundGroup{group: group, offsets: offsets}
	return nil
}

// bindGroupSlot validates a SetBindGroup call and maps dynamic offsets to
// bindings.
func bindGroupSlot(d *Device, index uint32, group *BindGroup, dynamicOffsets []uint32) (map[uint32]uint64, error) {
	if index >= d.limits.MaxBindGroups {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrBindGroupIndexOutOfRange, index, d.limits.MaxBindGroups)
	}
	if group == nil {
		return nil, nil
	}

	var dynamic []gputypes.BindGroupLayoutEntry
	for _, e := range group.layout.entries {
		if e.Buffer != nil && e.Buffer.HasDynamicOffset {
			dynamic = append(dynamic, e)
		}
	}
	if len(dynamic) != len(dynamicOffsets) {
		return nil, fmt.Errorf("%w: group %d has %d dynamic entries, got %d offsets",
			ErrDynamicOffsetCount, index, len(dynamic), len(dynamicOffsets))
	}
	slices.SortFunc(dynamic, func(a, b gputypes.BindGroupLayoutEntry) int {
		return cmp.Compare(a.Binding, b.Binding)
	})

	offsets := make(map[uint32]uint64, len(dynamic))
	for i, e := range dynamic {
		align := d.limits.MinStorageBufferOffsetAlignment
		if e.Buffer.Type == gputypes.BufferBindingTypeUniform {
			align = d.limits.MinUniformBufferOffsetAlignment
		}
		if align > 0 && dynamicOffsets[i]%align != 0 {
			return nil, fmt.Errorf("%w: group %d binding %d offset %d is not a multiple of %d",
				ErrDynamicOffsetAlignment, index, e.Binding, dynamicOffsets[i], align)
		}
		offsets[e.Binding] = uint64(dynamicOffsets[i])
	}
	return offsets, nil
}

// dispatchTarget is the buffer range a binding was read from.
type dispatchTarget struct {
	key    engine.BindingKey
	buffer *Buffer
	offset uint64
	size   uint64
}

// DispatchWorkgroups runs the pipeline's entry point over x*y*z workgroups.
//
// The bytes of every buffer bound through the groups set on the pass are
// sent to the engine; the returned bytes are written back to the same
// ranges once the engine has returned every binding.
//
// Usage errors are returned and change nothing. Engine failures, including
// a binding missing from the engine's response, are reported to the device
// as *InternalError and DispatchWorkgroups returns nil.
func (p *ComputePassEncoder) DispatchWorkgroups(x, y, z uint32) error {
	gpuErr, err := p.dispatch(x, y, z)
	// Reported without p.mu held so handlers may call back into the pass.
	if gpuErr != nil {
		p.device.reportError(gpuErr)
	}
	return err
}

// dispatch runs one dispatch under p.mu and returns the engine failure to
// report, if any.
func (p *ComputePassEncoder) dispatch(x, y, z uint32) (GPUError, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return nil, ErrComputePassEnded
	}
	if p.pipeline == nil {
		return nil, ErrNoPipeline
	}
	pl := p.pipeline
	code := pl.module.code
	if pl.entryPoint == "" || code == "" {
		return nil, ErrNoEntryPointOrCode
	}

	bindings, targets, err := p.collectBindings(pl.layout)
	if err != nil {
		return nil, fmt.Errorf("dispatch workgroups: %w", err)
	}

	req := &engine.ExecRequest{
		Source:     engine.SingleFile(code),
		EntryPoint: pl.entryPoint,
		Bindings:   bindings,
		Overrides:  map[string]float64{},
		Workgroups: [3]uint32{x, y, z},
	}
	p.dispatchCount++
	Logger().Debug("softgpu: dispatch",
		"pass", p.label,
		"entry_point", pl.entryPoint,
		"workgroups", req.Workgroups,
		"bindings", len(bindings))

	out, err := p.device.engine.Execute(req)
	if err != nil {
		return &InternalError{
			Message: fmt.Sprintf("dispatch %q: %v", pl.entryPoint, err),
			Err:     err,
		}, nil
	}

	results := make([][]byte, len(targets))
	for i, t := range targets {
		b, ok := engine.Find(out, t.key)
		if !ok {
			return &InternalError{
				Message: fmt.Sprintf("engine did not return binding %s", t.key),
			}, nil
		}
		results[i] = b.Data
	}
	for i, t := range targets {
		if err := writeBack(t, results[i]); err != nil {
			return &InternalError{
				Message: fmt.Sprintf("write back binding %s: %v", t.key, err),
				Err:     err,
			}, nil
		}
	}
	return nil, nil
}

// collectBindings snapshots every bound buffer range in group then binding
// order and resolves its kind from layout.
func (p *ComputePassEncoder) collectBindings(layout *PipelineLayout) ([]engine.Binding, []dispatchTarget, error) {
	var (
		bindings []engine.Binding
		targets  []dispatchTarget
	)
	for _, gi := range slices.Sorted(maps.Keys(p.groups)) {
		bound := p.groups[gi]
		entries := slices.SortedFunc(slices.Values(bound.group.entries), func(a, b BindGroupEntry) int {
			return cmp.Compare(a.Binding, b.Binding)
		})
		for _, e := range entries {
			bb, ok := e.Resource.(BufferBinding)
			if !ok {
				continue
			}
			key := engine.BindingKey{Group: gi, Binding: e.Binding}

			offset := bb.Offset + bound.offsets[e.Binding]
			size := bb.Size
			if size == 0 {
				size = WholeSize
			}
			size, err := resolveRange(bb.Buffer.Size(), offset, size)
			if err != nil {
				return nil, nil, fmt.Errorf("binding %s: %w: %w", key, ErrBindingOutOfRange, err)
			}

			kind, err := bindingKind(layout, key)
			if err != nil {
				return nil, nil, err
			}
			data, err := bb.Buffer.read(offset, size)
			if err != nil {
				return nil, nil, fmt.Errorf("binding %s: %w", key, err)
			}

			bindings = append(bindings, engine.Binding{
				Group:   gi,
				Binding: e.Binding,
				Kind:    kind,
				Data:    data,
			})
			targets = append(targets, dispatchTarget{key: key, buffer: bb.Buffer, offset: offset, size: size})
		}
	}
	return bindings, targets, nil
}

// bindingKind resolves the engine kind of a binding from the pipeline
// layout. An entry with no sub-descriptor is a uniform buffer.
func bindingKind(layout *PipelineLayout, key engine.BindingKey) (engine.BindingKind, error) {
	bgl := layout.bindGroupLayout(key.Group)
	if bgl == nil {
		return "", fmt.Errorf("%w: %s", ErrNoBindingLayout, key)
	}
	le, ok := bgl.entry(key.Binding)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBindingLayout, key)
	}

	switch {
	case le.Buffer != nil:
		switch le.Buffer.Type {
		case gputypes.BufferBindingTypeUniform:
			return engine.BindingUniform, nil
		case gputypes.BufferBindingTypeStorage:
			return engine.BindingStorage, nil
		case gputypes.BufferBindingTypeReadOnlyStorage:
			return engine.BindingReadOnlyStorage, nil
		default:
			return "", fmt.Errorf("%w: %s", ErrUndefinedBufferType, key)
		}
	case le.Sampler != nil, le.Texture != nil, le.StorageTexture != nil:
		return "", notImplemented(fmt.Sprintf("dispatch with %s binding %s", entryKind(le), key))
	default:
		return engine.BindingUniform, nil
	}
}

// writeBack copies data into the target range. Short results are
// zero-padded and long ones truncated to the declared range.
func writeBack(t dispatchTarget, data []byte) error {
	n := min(uint64(len(data)), t.size)
	if uint64(len(data)) != t.size {
		Logger().Warn("softgpu: engine returned binding with unexpected length",
			"binding", t.key.String(),
			"want", t.size,
			"got", len(data))
	}
	if err := t.buffer.write(t.offset, data[:n]); err != nil {
		return err
	}
	if n < t.size {
		return t.buffer.fill(t.offset+n, t.size-n)
	}
	return nil
}

// DispatchWorkgroupsIndirect is not implemented.
func (p *ComputePassEncoder) DispatchWorkgroupsIndirect(*Buffer, uint64) error {
	return notImplemented("DispatchWorkgroupsIndirect")
}

// PushDebugGroup is not implemented.
func (p *ComputePassEncoder) PushDebugGroup(string) error {
	return notImplemented("ComputePassEncoder.PushDebugGroup")
}

// PopDebugGroup is not implemented.
func (p *ComputePassEncoder) PopDebugGroup() error {
	return notImplemented("ComputePassEncoder.PopDebugGroup")
}

// InsertDebugMarker is not implemented.
func (p *ComputePassEncoder) InsertDebugMarker(string) error {
	return notImplemented("ComputePassEncoder.InsertDebugMarker")
}

// End completes the pass. End is idempotent.
func (p *ComputePassEncoder) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return nil
}
