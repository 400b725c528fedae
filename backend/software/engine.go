package software

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal/software/shader"

	"github.com/gogpu/softgpu/engine"
	"github.com/gogpu/softgpu/internal/cache"
)

// Name is the registry name of the software engine.
const Name = "software"

// DefaultCacheSize is the number of compiled programs kept by default.
const DefaultCacheSize = 64

// Engine errors.
var (
	// ErrOverridesUnsupported is returned when a request sets pipeline
	// overridable constants.
	ErrOverridesUnsupported = errors.New("software: pipeline overrides are not supported")

	// ErrUnknownEntryPoint is returned when the requested entry point is not
	// a compute entry point of the program.
	ErrUnknownEntryPoint = errors.New("software: unknown compute entry point")
)

// shared is the instance installed in the engine registry.
var shared = New()

func init() {
	engine.Register(Name, func() engine.Engine { return shared })
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	cacheSize int
}

func defaultOptions() options {
	return options{cacheSize: DefaultCacheSize}
}

// WithCacheSize sets how many compiled programs the engine keeps.
// A size of 0 or less keeps every program.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// Engine is the naga + SPIR-V interpreter shader engine.
// It is safe for concurrent use.
type Engine struct {
	programs *cache.Cache[cache.Digest, *program]
}

var _ engine.Engine = (*Engine)(nil)

// New creates a software engine.
func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{programs: cache.New[cache.Digest, *program](o.cacheSize)}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// CacheStats returns the program cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.programs.Stats()
}

// Compile parses, lowers and validates the root module of src.
// Returns nil on success.
// Returns an error if:
//   - src has no root module
//   - the code fails to parse, lower or validate (*engine.CompileError)
func (e *Engine) Compile(src engine.Source) error {
	code, err := src.RootCode()
	if err != nil {
		return err
	}

	ast, err := naga.Parse(code)
	if err != nil {
		return compileError(src.Root, code, err)
	}
	mod, err := naga.LowerWithSource(ast, code)
	if err != nil {
		return compileError(src.Root, code, err)
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return compileError(src.Root, code, err)
	}
	if len(verrs) > 0 {
		return compileError(src.Root, code, &verrs[0])
	}

	engine.Logger().Debug("software: compiled", "root", src.Root, "digest", cache.DigestOf(code))
	return nil
}

// Reflect implements engine.Engine.
func (e *Engine) Reflect(code string) (*engine.Module, error) {
	ast, err := naga.Parse(code)
	if err != nil {
		return nil, compileError(engine.RootModule, code, err)
	}
	mod, err := naga.LowerWithSource(ast, code)
	if err != nil {
		return nil, compileError(engine.RootModule, code, err)
	}
	return reflectModule(mod), nil
}

// Execute runs req.EntryPoint over req.Workgroups and returns the bindings in
// request order. Storage bindings carry the bytes left by the shader; the
// request's slices are never modified.
func (e *Engine) Execute(req *engine.ExecRequest) ([]engine.Binding, error) {
	if req == nil {
		return nil, errors.New("software: nil request")
	}
	if len(req.Overrides) > 0 {
		names := slices.Sorted(maps.Keys(req.Overrides))
		return nil, fmt.Errorf("%w: %v", ErrOverridesUnsupported, names)
	}

	out := make([]engine.Binding, len(req.Bindings))
	for i, b := range req.Bindings {
		out[i] = b
		out[i].Data = bytes.Clone(b.Data)
	}

	x, y, z := req.Workgroups[0], req.Workgroups[1], req.Workgroups[2]
	if x == 0 || y == 0 || z == 0 {
		return out, nil
	}

	code, err := req.Source.RootCode()
	if err != nil {
		return nil, err
	}
	digest := cache.DigestOf(code)
	prog, err := e.programs.Load(digest, func() (*program, error) {
		return buildProgram(code)
	})
	if err != nil {
		return nil, err
	}
	if !prog.hasEntryPoint(req.EntryPoint) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryPoint, req.EntryPoint)
	}

	ctx := &shader.ExecutionContext{Buffers: make(map[shader.BindingKey][]byte, len(out))}
	for _, b := range out {
		ctx.Buffers[shader.BindingKey{Group: b.Group, Binding: b.Binding}] = b.Data
	}

	engine.Logger().Debug("software: dispatch",
		"entry", req.EntryPoint,
		"digest", digest,
		"workgroups", req.Workgroups,
		"workgroup_size", prog.workgroupSize(req.EntryPoint),
		"spirv_words", prog.words,
		"bindings", len(out))

	if err := prog.module.DispatchCompute(req.EntryPoint, ctx, x, y, z); err != nil {
		return nil, fmt.Errorf("software: execute %q: %w", req.EntryPoint, err)
	}

	for i, b := range out {
		out[i].Data = ctx.Buffers[shader.BindingKey{Group: b.Group, Binding: b.Binding}]
	}
	return out, nil
}
