package softgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// WholeSize selects the rest of a buffer from the given offset.
const WholeSize = ^uint64(0)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("softgpu: buffer has been destroyed")

	// ErrNilBuffer is returned when a buffer argument is nil.
	ErrNilBuffer = errors.New("softgpu: buffer is nil")

	// ErrInvalidBufferSize is returned when a buffer size is 0 or too large.
	ErrInvalidBufferSize = errors.New("softgpu: invalid buffer size")

	// ErrBufferAlreadyMapped is returned when mapping a mapped buffer.
	ErrBufferAlreadyMapped = errors.New("softgpu: buffer is already mapped")

	// ErrBufferNotMapped is returned when accessing mapped data of an
	// unmapped buffer.
	ErrBufferNotMapped = errors.New("softgpu: buffer is not mapped")

	// ErrInvalidMapMode is returned when mapping with a mode other than read
	// or write.
	ErrInvalidMapMode = errors.New("softgpu: invalid map mode")

	// ErrInvalidMapRange is returned when a mapped range is out of bounds.
	ErrInvalidMapRange = errors.New("softgpu: map range out of bounds")

	// ErrNoMappedRange is returned by Unmap when GetMappedRange was never
	// called for the current mapping.
	ErrNoMappedRange = errors.New("softgpu: no mapped range to unmap")
)

// Buffer is a host memory region visible to shaders.
//
// Thread Safety:
// Buffer is safe for concurrent access. All state mutations are protected
// by a mutex.
//
// Lifecycle:
//  1. Create via Device.CreateBuffer()
//  2. Map() to enter the mapped state
//  3. GetMappedRange() for a scratch copy of a range
//  4. Unmap() to commit the scratch copy back
//  5. Destroy() when the buffer is no longer needed
type Buffer struct {
	// mu protects mutable state.
	mu sync.Mutex

	// descriptor holds the buffer configuration (immutable after creation).
	descriptor gputypes.BufferDescriptor

	// data is the backing storage, nil after Destroy.
	data []byte

	// mapState is the current mapping state.
	mapState gputypes.BufferMapState

	// mapMode, mapOffset and mapSize describe the current mapping.
	mapMode   gputypes.MapMode
	mapOffset uint64
	mapSize   uint64

	// pending is the scratch range handed out by GetMappedRange.
	pending *mappedRange

	destroyed bool
}

// mappedRange is a scratch copy awaiting Unmap.
type mappedRange struct {
	offset uint64
	data   []byte
}

func newBuffer(desc *gputypes.BufferDescriptor) *Buffer {
	buf := &Buffer{
		descriptor: *desc,
		data:       make([]byte, desc.Size),
		mapState:   gputypes.BufferMapStateUnmapped,
	}
	if desc.MappedAtCreation {
		buf.mapState = gputypes.BufferMapStateMapped
		buf.mapMode = gputypes.MapModeWrite
		buf.mapSize = desc.Size
	}
	return buf
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	return b.descriptor.Label
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return b.descriptor.Size
}

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.descriptor.Usage
}

// MapState returns the current mapping state.
func (b *Buffer) MapState() gputypes.BufferMapState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapState
}

// IsDestroyed returns true if the buffer has been destroyed.
func (b *Buffer) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Map maps [offset, offset+size) of the buffer. A size of WholeSize maps the
// rest of the buffer. Map completes before it returns. Usage flags are not
// checked.
//
// Returns nil on success.
// Returns an error if:
//   - The buffer has been destroyed
//   - The buffer is already mapped
//   - mode is neither MapModeRead nor MapModeWrite
//   - The range is out of bounds
func (b *Buffer) Map(mode gputypes.MapMode, offset, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapState != gputypes.BufferMapStateUnmapped {
		return ErrBufferAlreadyMapped
	}
	if mode != gputypes.MapModeRead && mode != gputypes.MapModeWrite {
		return fmt.Errorf("%w: %d", ErrInvalidMapMode, mode)
	}
	size, err := resolveRange(b.descriptor.Size, offset, size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMapRange, err)
	}

	b.mapState = gputypes.BufferMapStateMapped
	b.mapMode = mode
	b.mapOffset = offset
	b.mapSize = size
	return nil
}

// GetMappedRange returns a copy of [offset, offset+size) and records it as
// the range Unmap commits. A size of WholeSize selects the rest of the
// mapping. Each call replaces the previously recorded range.
//
// Returns an error if:
//   - The buffer has been destroyed
//   - The buffer is not mapped
//   - The range is outside the mapping
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapState != gputypes.BufferMapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset < b.mapOffset {
		return nil, fmt.Errorf("%w: offset %d before mapping at %d", ErrInvalidMapRange, offset, b.mapOffset)
	}
	size, err := resolveRange(b.mapOffset+b.mapSize, offset, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMapRange, err)
	}

	scratch := make([]byte, size)
	copy(scratch, b.data[offset:offset+size])
	b.pending = &mappedRange{offset: offset, data: scratch}
	return scratch, nil
}

// Unmap writes the range returned by the last GetMappedRange back into the
// buffer and returns to the unmapped state.
//
// Returns ErrNoMappedRange, leaving the state unchanged, when no range was
// obtained.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.pending == nil {
		return ErrNoMappedRange
	}

	copy(b.data[b.pending.offset:], b.pending.data)
	b.pending = nil
	b.mapState = gputypes.BufferMapStateUnmapped
	b.mapMode = gputypes.MapModeNone
	b.mapOffset = 0
	b.mapSize = 0
	return nil
}

// Destroy releases the backing storage. Destroy is idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.pending = nil
	b.mapState = gputypes.BufferMapStateUnmapped
}

// read returns a copy of [offset, offset+size).
func (b *Buffer) read(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if _, err := resolveRange(b.descriptor.Size, offset, size); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

// write copies data into the buffer at offset.
func (b *Buffer) write(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if _, err := resolveRange(b.descriptor.Size, offset, uint64(len(data))); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

// fill zeroes [offset, offset+size).
func (b *Buffer) fill(offset, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if _, err := resolveRange(b.descriptor.Size, offset, size); err != nil {
		return err
	}
	clear(b.data[offset : offset+size])
	return nil
}

// resolveRange checks [offset, offset+size) against limit and returns the
// effective size, expanding WholeSize to limit-offset.
func resolveRange(limit, offset, size uint64) (uint64, error) {
	if offset > limit {
		return 0, fmt.Errorf("offset %d > size %d", offset, limit)
	}
	if size == WholeSize {
		return limit - offset, nil
	}
	if size > limit-offset {
		return 0, fmt.Errorf("offset %d + size %d > size %d", offset, size, limit)
	}
	return size, nil
}
