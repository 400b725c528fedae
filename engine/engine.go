package engine

import (
	"errors"
	"fmt"
)

// RootModule is the module path a device compiles its single source file under.
const RootModule = "package::main"

// ErrMissingRoot is returned when a Source does not contain its root module.
var ErrMissingRoot = errors.New("engine: source has no root module")

// Engine compiles, reflects and executes shader source.
//
// Implementations must be safe for concurrent use; a single engine is shared
// by every device created from the same instance.
type Engine interface {
	// Name returns a short identifier such as "software".
	Name() string

	// Compile validates src. Failures are reported as *CompileError.
	Compile(src Source) error

	// Reflect returns the module-scope declarations of code.
	// Failures are reported as *CompileError.
	Reflect(code string) (*Module, error)

	// Execute runs req.EntryPoint once per requested workgroup and returns
	// the bindings with their updated contents.
	Execute(req *ExecRequest) ([]Binding, error)
}

// Source is a set of shader files addressed by module path.
type Source struct {
	// Files maps module paths to source text.
	Files map[string]string
	// Root is the module path of the entry file.
	Root string
}

// SingleFile returns a Source holding code under RootModule.
func SingleFile(code string) Source {
	return Source{
		Files: map[string]string{RootModule: code},
		Root:  RootModule,
	}
}

// RootCode returns the source text of the root module.
func (s Source) RootCode() (string, error) {
	code, ok := s.Files[s.Root]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingRoot, s.Root)
	}
	return code, nil
}

// BindingKind is the semantic kind of a buffer binding.
type BindingKind string

// Binding kinds understood by every engine.
const (
	BindingUniform         BindingKind = "uniform"
	BindingStorage         BindingKind = "storage"
	BindingReadOnlyStorage BindingKind = "read-only-storage"
)

// Writable reports whether a shader may modify bindings of this kind.
func (k BindingKind) Writable() bool {
	return k == BindingStorage
}

// Binding is one resource crossing the engine boundary.
type Binding struct {
	Group   uint32
	Binding uint32
	Kind    BindingKind
	Data    []byte
}

// Key returns the (group, binding) pair identifying b.
func (b Binding) Key() BindingKey {
	return BindingKey{Group: b.Group, Binding: b.Binding}
}

// BindingKey identifies a binding slot.
type BindingKey struct {
	Group   uint32
	Binding uint32
}

// String returns "g=G b=B".
func (k BindingKey) String() string {
	return fmt.Sprintf("g=%d b=%d", k.Group, k.Binding)
}

// ExecRequest describes a single compute dispatch.
type ExecRequest struct {
	Source     Source
	EntryPoint string
	Bindings   []Binding
	// Overrides holds pipeline-overridable constant values by name.
	Overrides map[string]float64
	// Workgroups is the dispatch size in workgroups along x, y and z.
	Workgroups [3]uint32
}

// Find returns the binding for key in bindings.
func Find(bindings []Binding, key BindingKey) (Binding, bool) {
	for _, b := range bindings {
		if b.Group == key.Group && b.Binding == key.Binding {
			return b, true
		}
	}
	return Binding{}, false
}
