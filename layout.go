package softgpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// Layout errors.
var (
	// ErrDuplicateBinding is returned when a bind group layout repeats a
	// binding index.
	ErrDuplicateBinding = errors.New("softgpu: duplicate binding in bind group layout")

	// ErrTooManyBindGroups is returned when a pipeline layout has more slots
	// than the MaxBindGroups limit.
	ErrTooManyBindGroups = errors.New("softgpu: too many bind group layouts")

	// ErrNoBindGroupLayout is returned by GetBindGroupLayout for an empty or
	// missing slot.
	ErrNoBindGroupLayout = errors.New("softgpu: no bind group layout at index")
)

// BindGroupLayout is an immutable set of binding declarations.
type BindGroupLayout struct {
	label   string
	entries []gputypes.BindGroupLayoutEntry
}

// CreateBindGroupLayout snapshots desc.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc is nil
//   - two entries share a binding index
func (d *Device) CreateBindGroupLayout(desc *gputypes.BindGroupLayoutDescriptor) (*BindGroupLayout, error) {
	if err := d.checkAlive("create bind group layout"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create bind group layout: %w", ErrNilDescriptor)
	}
	return newBindGroupLayout(desc.Label, desc.Entries)
}

func newBindGroupLayout(label string, entries []gputypes.BindGroupLayoutEntry) (*BindGroupLayout, error) {
	seen := make(map[uint32]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Binding]; dup {
			return nil, fmt.Errorf("create bind group layout %q: %w: %d", label, ErrDuplicateBinding, e.Binding)
		}
		seen[e.Binding] = struct{}{}
	}

	l := &BindGroupLayout{label: label, entries: make([]gputypes.BindGroupLayoutEntry, len(entries))}
	for i, e := range entries {
		l.entries[i] = cloneLayoutEntry(e)
	}
	return l, nil
}

// cloneLayoutEntry deep-copies the sub-descriptors so later edits to the
// caller's descriptor cannot reach the layout.
func cloneLayoutEntry(e gputypes.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	if e.Buffer != nil {
		b := *e.Buffer
		e.Buffer = &b
	}
	if e.Sampler != nil {
		s := *e.Sampler
		e.Sampler = &s
	}
	if e.Texture != nil {
		t := *e.Texture
		e.Texture = &t
	}
	if e.StorageTexture != nil {
		st := *e.StorageTexture
		e.StorageTexture = &st
	}
	return e
}

// Label returns the layout's debug label.
func (l *BindGroupLayout) Label() string { return l.label }

// Entries returns a copy of the layout entries in declaration order.
func (l *BindGroupLayout) Entries() []gputypes.BindGroupLayoutEntry {
	out := make([]gputypes.BindGroupLayoutEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = cloneLayoutEntry(e)
	}
	return out
}

// Entry returns the entry for binding.
func (l *BindGroupLayout) Entry(binding uint32) (gputypes.BindGroupLayoutEntry, bool) {
	e, ok := l.entry(binding)
	if !ok {
		return gputypes.BindGroupLayoutEntry{}, false
	}
	return cloneLayoutEntry(*e), true
}

func (l *BindGroupLayout) entry(binding uint32) (*gputypes.BindGroupLayoutEntry, bool) {
	i := slices.IndexFunc(l.entries, func(e gputypes.BindGroupLayoutEntry) bool {
		return e.Binding == binding
	})
	if i < 0 {
		return nil, false
	}
	return &l.entries[i], true
}

// PipelineLayoutDescriptor describes a pipeline layout. Nil slots are
// allowed for unused groups.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []*BindGroupLayout
}

// PipelineLayout is an immutable list of bind group layouts indexed by group.
type PipelineLayout struct {
	label   string
	layouts []*BindGroupLayout
}

func (*PipelineLayout) layoutSource() {}

// CreatePipelineLayout snapshots desc.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc is nil
//   - desc has more slots than the MaxBindGroups limit
func (d *Device) CreatePipelineLayout(desc *PipelineLayoutDescriptor) (*PipelineLayout, error) {
	if err := d.checkAlive("create pipeline layout"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create pipeline layout: %w", ErrNilDescriptor)
	}
	if n := len(desc.BindGroupLayouts); n > int(d.limits.MaxBindGroups) {
		return nil, fmt.Errorf("create pipeline layout %q: %w: %d > %d",
			desc.Label, ErrTooManyBindGroups, n, d.limits.MaxBindGroups)
	}
	return &PipelineLayout{label: desc.Label, layouts: slices.Clone(desc.BindGroupLayouts)}, nil
}

// Label returns the layout's debug label.
func (p *PipelineLayout) Label() string { return p.label }

// BindGroupLayouts returns the slots in group order.
func (p *PipelineLayout) BindGroupLayouts() []*BindGroupLayout {
	return slices.Clone(p.layouts)
}

// bindGroupLayout returns the layout for group, or nil.
func (p *PipelineLayout) bindGroupLayout(group uint32) *BindGroupLayout {
	if int(group) >= len(p.layouts) {
		return nil
	}
	return p.layouts[group]
}
