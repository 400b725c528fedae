package softgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// Layout inference errors.
var (
	// ErrNoEntryPoint is returned when a shader has no compute entry point,
	// or none with the requested name.
	ErrNoEntryPoint = errors.New("softgpu: no compute entry point")

	// ErrBindGroupIndexOutOfRange is returned when a shader or SetBindGroup
	// uses a group at or above the MaxBindGroups limit.
	ErrBindGroupIndexOutOfRange = errors.New("softgpu: bind group index out of range")
)

// reflectError is an engine reflection failure. Async pipeline creation
// reports it with PipelineErrorInternal.
type reflectError struct {
	err error
}

func (e *reflectError) Error() string { return "reflect shader: " + e.err.Error() }
func (e *reflectError) Unwrap() error { return e.err }

// findComputeEntryPoint reflects code and returns the compute entry point
// named entryPoint, or the first one when entryPoint is empty.
func (d *Device) findComputeEntryPoint(code, entryPoint string) (*engine.Module, *engine.Function, error) {
	mod, err := d.engine.Reflect(code)
	if err != nil {
		return nil, nil, &reflectError{err: err}
	}
	fn, ok := mod.EntryPoint(gputypes.ShaderStageCompute, entryPoint)
	if !ok {
		if entryPoint != "" {
			return nil, nil, fmt.Errorf("%w: %q", ErrNoEntryPoint, entryPoint)
		}
		return nil, nil, ErrNoEntryPoint
	}
	return mod, fn, nil
}

// inferLayout builds the default pipeline layout for a compute shader.
//
// Every variable with a @group/@binding attribute anywhere in the module
// contributes an entry, whether or not the entry point reaches it. Groups
// with no resources up to the highest used group get empty layouts.
//
// Returns the layout and the resolved entry point name.
func (d *Device) inferLayout(label, code, entryPoint string) (*PipelineLayout, string, error) {
	mod, fn, err := d.findComputeEntryPoint(code, entryPoint)
	if err != nil {
		return nil, "", err
	}

	groups := make(map[uint32][]gputypes.BindGroupLayoutEntry)
	var maxGroup uint32
	for _, v := range mod.Resources() {
		group := v.Binding.Group
		if group >= d.limits.MaxBindGroups {
			return nil, "", fmt.Errorf("%w: %s uses group %d (max %d)",
				ErrBindGroupIndexOutOfRange, v.Name, group, d.limits.MaxBindGroups)
		}
		entry, err := inferEntry(v)
		if err != nil {
			return nil, "", err
		}
		groups[group] = append(groups[group], entry)
		maxGroup = max(maxGroup, group)
	}

	var layouts []*BindGroupLayout
	if len(groups) > 0 {
		layouts = make([]*BindGroupLayout, maxGroup+1)
		for g := range layouts {
			bgl, err := newBindGroupLayout(fmt.Sprintf("%s group %d", label, g), groups[uint32(g)])
			if err != nil {
				return nil, "", err
			}
			layouts[g] = bgl
		}
	}

	Logger().Debug("softgpu: inferred pipeline layout",
		"label", label,
		"entry_point", fn.Name,
		"groups", len(layouts))
	return &PipelineLayout{label: label, layouts: layouts}, fn.Name, nil
}

// inferEntry returns the layout entry a resource variable implies.
func inferEntry(v *engine.Variable) (gputypes.BindGroupLayoutEntry, error) {
	entry := gputypes.BindGroupLayoutEntry{
		Binding:    v.Binding.Binding,
		Visibility: gputypes.ShaderStageCompute,
	}
	switch v.Space {
	case engine.SpaceStorage:
		typ := gputypes.BufferBindingTypeStorage
		if v.Access == engine.AccessRead || v.Access == engine.AccessUnspecified {
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entry.Buffer = &gputypes.BufferBindingLayout{Type: typ}
	case engine.SpaceUniform:
		// No sub-descriptor: dispatch treats an all-nil entry as uniform.
	case engine.SpaceHandle:
		return entry, notImplemented(fmt.Sprintf("layout inference for %s %q", v.Handle, v.Name))
	default:
		return entry, fmt.Errorf("softgpu: %s variable %q cannot be bound", v.Space, v.Name)
	}
	return entry, nil
}
