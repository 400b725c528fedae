package softgpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// Bind group errors.
var (
	// ErrNilBindGroupLayout is returned when a bind group has no layout.
	ErrNilBindGroupLayout = errors.New("softgpu: bind group layout is nil")

	// ErrBindingNotInLayout is returned when a bind group entry names a
	// binding its layout does not declare.
	ErrBindingNotInLayout = errors.New("softgpu: binding not declared in layout")

	// ErrBindingTypeMismatch is returned when a resource does not match the
	// kind its layout entry declares.
	ErrBindingTypeMismatch = errors.New("softgpu: resource does not match layout entry")

	// ErrBindingOutOfRange is returned when a buffer binding range exceeds
	// its buffer.
	ErrBindingOutOfRange = errors.New("softgpu: buffer binding out of range")
)

// BindingResource is a resource bound by a bind group entry.
// BufferBinding is the only implementation.
type BindingResource interface {
	bindingResource()
}

// BufferBinding binds [Offset, Offset+Size) of Buffer. A Size of 0 or
// WholeSize binds the rest of the buffer.
type BufferBinding struct {
	Buffer *Buffer
	Offset uint64
	Size   uint64
}

func (BufferBinding) bindingResource() {}

// size resolves the binding size against the buffer.
func (b BufferBinding) size() uint64 {
	if b.Size == 0 || b.Size == WholeSize {
		if b.Offset > b.Buffer.Size() {
			return 0
		}
		return b.Buffer.Size() - b.Offset
	}
	return b.Size
}

// BindGroupEntry binds one resource to a binding index.
type BindGroupEntry struct {
	Binding  uint32
	Resource BindingResource
}

// BindGroupDescriptor describes a bind group.
type BindGroupDescriptor struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []BindGroupEntry
}

// BindGroup is an immutable set of resources matching a layout.
type BindGroup struct {
	label   string
	layout  *BindGroupLayout
	entries []BindGroupEntry
}

// CreateBindGroup validates desc against its layout and snapshots it.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc is nil or has no layout
//   - an entry's binding is missing from the layout or repeated
//   - a buffer is bound where the layout declares a sampler or texture
//   - a buffer range is out of bounds
func (d *Device) CreateBindGroup(desc *BindGroupDescriptor) (*BindGroup, error) {
	if err := d.checkAlive("create bind group"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create bind group: %w", ErrNilDescriptor)
	}
	if desc.Layout == nil {
		return nil, fmt.Errorf("create bind group %q: %w", desc.Label, ErrNilBindGroupLayout)
	}

	seen := make(map[uint32]struct{}, len(desc.Entries))
	entries := make([]BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		if p, ok := e.Resource.(*BufferBinding); ok && p != nil {
			e.Resource = *p
		}
		if _, dup := seen[e.Binding]; dup {
			return nil, fmt.Errorf("create bind group %q: %w: %d", desc.Label, ErrDuplicateBinding, e.Binding)
		}
		seen[e.Binding] = struct{}{}

		if err := validateBindGroupEntry(desc.Layout, e); err != nil {
			return nil, fmt.Errorf("create bind group %q: binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = e
	}

	return &BindGroup{
		label:   desc.Label,
		layout:  desc.Layout,
		entries: entries,
	}, nil
}

func validateBindGroupEntry(layout *BindGroupLayout, e BindGroupEntry) error {
	le, ok := layout.entry(e.Binding)
	if !ok {
		return ErrBindingNotInLayout
	}

	switch r := e.Resource.(type) {
	case BufferBinding:
		if r.Buffer == nil {
			return ErrNilBuffer
		}
		if !isBufferEntry(le) {
			return fmt.Errorf("%w: buffer bound to %s entry", ErrBindingTypeMismatch, entryKind(le))
		}
		if _, err := resolveRange(r.Buffer.Size(), r.Offset, r.size()); err != nil {
			return fmt.Errorf("%w: %w", ErrBindingOutOfRange, err)
		}
		return nil
	case nil:
		return fmt.Errorf("%w: no resource", ErrBindingTypeMismatch)
	default:
		return fmt.Errorf("%w: %T", ErrBindingTypeMismatch, r)
	}
}

// isBufferEntry reports whether le accepts a buffer. An entry with no
// sub-descriptor is treated as a uniform buffer.
func isBufferEntry(le *gputypes.BindGroupLayoutEntry) bool {
	return le.Buffer != nil ||
		(le.Sampler == nil && le.Texture == nil && le.StorageTexture == nil)
}

// entryKind names the resource kind a layout entry declares.
func entryKind(le *gputypes.BindGroupLayoutEntry) string {
	switch {
	case le.Buffer != nil:
		return "buffer"
	case le.Sampler != nil:
		return "sampler"
	case le.Texture != nil:
		return "texture"
	case le.StorageTexture != nil:
		return "storage texture"
	default:
		return "uniform"
	}
}

// Label returns the bind group's debug label.
func (g *BindGroup) Label() string { return g.label }

// Layout returns the layout the bind group was created against.
func (g *BindGroup) Layout() *BindGroupLayout { return g.layout }

// Entries returns a copy of the entries.
func (g *BindGroup) Entries() []BindGroupEntry { return slices.Clone(g.entries) }
