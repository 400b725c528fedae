package engine

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Module is the reflected, module-scope view of a shader.
type Module struct {
	Declarations []Declaration
}

// Declaration is a module-scope declaration: *Function or *Variable.
type Declaration interface {
	// DeclName returns the declared identifier.
	DeclName() string

	declaration()
}

// Function is a module-scope function.
type Function struct {
	Name string
	// Stage is the entry point stage, or 0 for a plain function.
	Stage gputypes.ShaderStage
	// WorkgroupSize is set for compute entry points.
	WorkgroupSize [3]uint32
}

// DeclName implements Declaration.
func (f *Function) DeclName() string { return f.Name }

func (*Function) declaration() {}

// IsEntryPoint reports whether f is an entry point of any stage.
func (f *Function) IsEntryPoint() bool { return f.Stage != 0 }

// Variable is a module-scope variable.
type Variable struct {
	Name  string
	Space AddressSpace
	// Access is meaningful for SpaceStorage only.
	Access StorageAccess
	// Handle is meaningful for SpaceHandle only.
	Handle HandleKind
	// Binding is nil for variables without @group/@binding.
	Binding *ResourceBinding
}

// DeclName implements Declaration.
func (v *Variable) DeclName() string { return v.Name }

func (*Variable) declaration() {}

// ResourceBinding is the @group/@binding pair of a resource variable.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// AddressSpace is the address space of a module-scope variable.
type AddressSpace uint8

// Address spaces.
const (
	SpacePrivate AddressSpace = iota
	SpaceWorkgroup
	SpaceUniform
	SpaceStorage
	SpaceHandle
	SpacePushConstant
)

// String returns the WGSL spelling of the address space.
func (s AddressSpace) String() string {
	switch s {
	case SpacePrivate:
		return "private"
	case SpaceWorkgroup:
		return "workgroup"
	case SpaceUniform:
		return "uniform"
	case SpaceStorage:
		return "storage"
	case SpaceHandle:
		return "handle"
	case SpacePushConstant:
		return "push_constant"
	default:
		return fmt.Sprintf("AddressSpace(%d)", uint8(s))
	}
}

// StorageAccess is the access qualifier of a storage variable.
type StorageAccess uint8

// Storage access modes. AccessUnspecified is read-only in WGSL.
const (
	AccessUnspecified StorageAccess = iota
	AccessRead
	AccessReadWrite
)

// String returns the WGSL spelling of the access mode.
func (a StorageAccess) String() string {
	switch a {
	case AccessUnspecified:
		return ""
	case AccessRead:
		return "read"
	case AccessReadWrite:
		return "read_write"
	default:
		return fmt.Sprintf("StorageAccess(%d)", uint8(a))
	}
}

// HandleKind distinguishes opaque handle resources.
type HandleKind uint8

// Handle kinds.
const (
	HandleNone HandleKind = iota
	HandleTexture
	HandleStorageTexture
	HandleSampler
)

// String returns a short name for the handle kind.
func (h HandleKind) String() string {
	switch h {
	case HandleNone:
		return "none"
	case HandleTexture:
		return "texture"
	case HandleStorageTexture:
		return "storage_texture"
	case HandleSampler:
		return "sampler"
	default:
		return fmt.Sprintf("HandleKind(%d)", uint8(h))
	}
}

// EntryPoint returns the first function declared for stage.
// When name is non-empty the function must also carry that name.
func (m *Module) EntryPoint(stage gputypes.ShaderStage, name string) (*Function, bool) {
	for _, d := range m.Declarations {
		f, ok := d.(*Function)
		if !ok || f.Stage != stage {
			continue
		}
		if name == "" || f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Resources returns every variable carrying a resource binding, in
// declaration order.
func (m *Module) Resources() []*Variable {
	var res []*Variable
	for _, d := range m.Declarations {
		if v, ok := d.(*Variable); ok && v.Binding != nil {
			res = append(res, v)
		}
	}
	return res
}
