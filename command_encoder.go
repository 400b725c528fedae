package softgpu

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Command encoder errors.
var (
	// ErrEncoderFinished is returned when operations are called on an encoder
	// that has already been finished.
	ErrEncoderFinished = errors.New("softgpu: encoder already finished")

	// ErrCopyOffsetNotAligned is returned when a copy or clear offset is not
	// 4-byte aligned.
	ErrCopyOffsetNotAligned = errors.New("softgpu: offset must be 4-byte aligned")

	// ErrCopySizeNotAligned is returned when a copy or clear size is not
	// 4-byte aligned.
	ErrCopySizeNotAligned = errors.New("softgpu: size must be 4-byte aligned")

	// ErrCopyRangeOutOfBounds is returned when a copy or clear exceeds a
	// buffer.
	ErrCopyRangeOutOfBounds = errors.New("softgpu: copy range out of bounds")

	// ErrCopySameBuffer is returned when a copy names one buffer as both
	// source and destination.
	ErrCopySameBuffer = errors.New("softgpu: source and destination are the same buffer")
)

// Command is one entry of a command buffer: *ComputePassEncoder,
// *RenderPassEncoder, *BufferCopy or *BufferClear.
type Command interface {
	command()
}

// BufferCopy records a CopyBufferToBuffer call.
type BufferCopy struct {
	Source            *Buffer
	SourceOffset      uint64
	Destination       *Buffer
	DestinationOffset uint64
	Size              uint64
}

// BufferClear records a ClearBuffer call.
type BufferClear struct {
	Buffer *Buffer
	Offset uint64
	Size   uint64
}

func (*BufferCopy) command()  {}
func (*BufferClear) command() {}

// CommandEncoderDescriptor describes a command encoder.
type CommandEncoderDescriptor struct {
	Label string
}

// CommandBufferDescriptor describes the command buffer Finish returns.
type CommandBufferDescriptor struct {
	Label string
}

// CommandEncoder records commands into a CommandBuffer.
//
// Buffer copies and clears take effect when they are recorded, and compute
// passes dispatch when DispatchWorkgroups is called. The recorded list
// documents what ran.
//
// Thread Safety:
// CommandEncoder is safe for concurrent use, but interleaving commands from
// several goroutines yields an unspecified order.
//
// State machine:
//
//	Recording -> Finish() -> Finished
type CommandEncoder struct {
	mu sync.Mutex

	device   *Device
	label    string
	commands []Command
	finished bool
}

// CreateCommandEncoder returns an encoder in the recording state.
// desc may be nil.
func (d *Device) CreateCommandEncoder(desc *CommandEncoderDescriptor) (*CommandEncoder, error) {
	if err := d.checkAlive("create command encoder"); err != nil {
		return nil, err
	}
	var label string
	if desc != nil {
		label = desc.Label
	}
	return &CommandEncoder{device: d, label: label}, nil
}

// Label returns the encoder's debug label.
func (e *CommandEncoder) Label() string { return e.label }

// checkRecordingLocked returns ErrEncoderFinished after Finish.
// The caller must hold e.mu.
func (e *CommandEncoder) checkRecordingLocked(op string) error {
	if e.finished {
		return fmt.Errorf("%s: %w", op, ErrEncoderFinished)
	}
	return nil
}

// BeginComputePass starts a compute pass and appends it to the command list.
// desc may be nil.
func (e *CommandEncoder) BeginComputePass(desc *ComputePassDescriptor) (*ComputePassEncoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRecordingLocked("begin compute pass"); err != nil {
		return nil, err
	}
	pass := newComputePass(e.device, desc)
	e.commands = append(e.commands, pass)
	return pass, nil
}

// BeginRenderPass starts a render pass and appends it to the command list.
// desc may be nil.
func (e *CommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) (*RenderPassEncoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRecordingLocked("begin render pass"); err != nil {
		return nil, err
	}
	pass := newRenderPass(e.device, desc)
	e.commands = append(e.commands, pass)
	return pass, nil
}

// CopyBufferToBuffer copies size bytes from src to dst immediately. A size
// of WholeSize copies the rest of src.
//
// Validation:
//   - Both offsets and size must be 4-byte aligned.
//   - src and dst must be different buffers.
//   - Ranges must be within buffer bounds.
//
// Returns nil on success.
// Returns an error if validation fails, a buffer has been destroyed or the
// encoder is finished.
func (e *CommandEncoder) CopyBufferToBuffer(src *Buffer, srcOffset uint64, dst *Buffer, dstOffset, size uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRecordingLocked("copy buffer to buffer"); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("copy buffer to buffer: %w", ErrNilBuffer)
	}
	if src == dst {
		return fmt.Errorf("copy buffer to buffer %q: %w", src.Label(), ErrCopySameBuffer)
	}
	if size == WholeSize {
		if srcOffset > src.Size() {
			return fmt.Errorf("%w: source offset %d > size %d", ErrCopyRangeOutOfBounds, srcOffset, src.Size())
		}
		size = src.Size() - srcOffset
	}

	const alignment uint64 = 4
	if srcOffset%alignment != 0 {
		return fmt.Errorf("%w: source offset %d", ErrCopyOffsetNotAligned, srcOffset)
	}
	if dstOffset%alignment != 0 {
		return fmt.Errorf("%w: destination offset %d", ErrCopyOffsetNotAligned, dstOffset)
	}
	if size%alignment != 0 {
		return fmt.Errorf("%w: size %d", ErrCopySizeNotAligned, size)
	}
	if _, err := resolveRange(src.Size(), srcOffset, size); err != nil {
		return fmt.Errorf("%w: source: %w", ErrCopyRangeOutOfBounds, err)
	}
	if _, err := resolveRange(dst.Size(), dstOffset, size); err != nil {
		return fmt.Errorf("%w: destination: %w", ErrCopyRangeOutOfBounds, err)
	}

	data, err := src.read(srcOffset, size)
	if err != nil {
		return fmt.Errorf("copy buffer to buffer: source %q: %w", src.Label(), err)
	}
	if err := dst.write(dstOffset, data); err != nil {
		return fmt.Errorf("copy buffer to buffer: destination %q: %w", dst.Label(), err)
	}

	e.commands = append(e.commands, &BufferCopy{
		Source:            src,
		SourceOffset:      srcOffset,
		Destination:       dst,
		DestinationOffset: dstOffset,
		Size:              size,
	})
	return nil
}

// ClearBuffer zero-fills [offset, offset+size) of buf immediately. A size of
// WholeSize clears the rest of the buffer.
//
// Returns an error if buf is nil or destroyed, offset or size is not 4-byte
// aligned, the range is out of bounds or the encoder is finished.
func (e *CommandEncoder) ClearBuffer(buf *Buffer, offset, size uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRecordingLocked("clear buffer"); err != nil {
		return err
	}
	if buf == nil {
		return fmt.Errorf("clear buffer: %w", ErrNilBuffer)
	}
	size, err := resolveRange(buf.Size(), offset, size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCopyRangeOutOfBounds, err)
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: offset %d", ErrCopyOffsetNotAligned, offset)
	}
	if size%4 != 0 {
		return fmt.Errorf("%w: size %d", ErrCopySizeNotAligned, size)
	}
	if err := buf.fill(offset, size); err != nil {
		return fmt.Errorf("clear buffer %q: %w", buf.Label(), err)
	}

	e.commands = append(e.commands, &BufferClear{Buffer: buf, Offset: offset, Size: size})
	return nil
}

// CopyBufferToTexture is not implemented.
func (e *CommandEncoder) CopyBufferToTexture() error {
	return notImplemented("CopyBufferToTexture")
}

// CopyTextureToBuffer is not implemented.
func (e *CommandEncoder) CopyTextureToBuffer() error {
	return notImplemented("CopyTextureToBuffer")
}

// CopyTextureToTexture is not implemented.
func (e *CommandEncoder) CopyTextureToTexture() error {
	return notImplemented("CopyTextureToTexture")
}

// ResolveQuerySet is not implemented.
func (e *CommandEncoder) ResolveQuerySet() error {
	return notImplemented("ResolveQuerySet")
}

// PushDebugGroup is not implemented.
func (e *CommandEncoder) PushDebugGroup(string) error {
	return notImplemented("CommandEncoder.PushDebugGroup")
}

// PopDebugGroup is not implemented.
func (e *CommandEncoder) PopDebugGroup() error {
	return notImplemented("CommandEncoder.PopDebugGroup")
}

// InsertDebugMarker is not implemented.
func (e *CommandEncoder) InsertDebugMarker(string) error {
	return notImplemented("CommandEncoder.InsertDebugMarker")
}

// Finish ends recording and returns the command buffer. Every later call on
// the encoder returns ErrEncoderFinished. desc may be nil.
func (e *CommandEncoder) Finish(desc *CommandBufferDescriptor) (*CommandBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkRecordingLocked("finish"); err != nil {
		return nil, err
	}
	e.finished = true

	label := e.label
	if desc != nil && desc.Label != "" {
		label = desc.Label
	}
	cb := &CommandBuffer{label: label, commands: e.commands}
	e.commands = nil
	return cb, nil
}

// CommandBuffer is the immutable result of CommandEncoder.Finish.
type CommandBuffer struct {
	label    string
	commands []Command
}

// Label returns the command buffer's debug label.
func (b *CommandBuffer) Label() string { return b.label }

// Commands returns the recorded commands in order.
func (b *CommandBuffer) Commands() []Command { return slices.Clone(b.commands) }
