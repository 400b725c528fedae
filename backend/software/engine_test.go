package software

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

const tripleWGSL = `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> output: array<u32>;
@compute @workgroup_size(4)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x;
    output[i] = input[i] * 3u;
}
`

func u32Bytes(vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func tripleRequest() *engine.ExecRequest {
	return &engine.ExecRequest{
		Source:     engine.SingleFile(tripleWGSL),
		EntryPoint: "main",
		Bindings: []engine.Binding{
			{Group: 0, Binding: 0, Kind: engine.BindingReadOnlyStorage, Data: u32Bytes(10, 11, 12, 13)},
			{Group: 0, Binding: 1, Kind: engine.BindingStorage, Data: make([]byte, 16)},
		},
		Workgroups: [3]uint32{1, 1, 1},
	}
}

// ===== Registration Tests =====

func TestRegistered(t *testing.T) {
	e, err := engine.Lookup(Name)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", Name, err)
	}
	if e.Name() != Name {
		t.Errorf("Name() = %q, want %q", e.Name(), Name)
	}
	if engine.DefaultName() != Name {
		t.Errorf("DefaultName() = %q, want %q", engine.DefaultName(), Name)
	}
}

// ===== Compile Tests =====

func TestCompileValid(t *testing.T) {
	if err := New().Compile(engine.SingleFile(tripleWGSL)); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
}

func TestCompileMissingRoot(t *testing.T) {
	src := engine.Source{Files: map[string]string{}, Root: engine.RootModule}
	if err := New().Compile(src); !errors.Is(err, engine.ErrMissingRoot) {
		t.Errorf("Compile() error = %v, want %v", err, engine.ErrMissingRoot)
	}
}

func TestCompileSyntaxError(t *testing.T) {
	code := "@compute @workgroup_size(1)\nfn main() {\n    let x = ;\n}\n"
	err := New().Compile(engine.SingleFile(code))
	ce, ok := engine.AsCompileError(err)
	if !ok {
		t.Fatalf("Compile() error = %v, want *engine.CompileError", err)
	}
	if ce.Message == "" {
		t.Error("Message is empty")
	}
	span, ok := ce.FirstSpan()
	if !ok {
		t.Fatalf("no diagnostic span in %q", ce.Message)
	}
	if span.Start < len("@compute @workgroup_size(1)\nfn main() {\n") || span.Start > len(code) {
		t.Errorf("span start %d is outside line 3", span.Start)
	}
}

func TestCompileUndefinedIdentifier(t *testing.T) {
	code := "fn f() -> u32 {\n    return missing;\n}\n"
	err := New().Compile(engine.SingleFile(code))
	if _, ok := engine.AsCompileError(err); !ok {
		t.Fatalf("Compile() error = %v, want *engine.CompileError", err)
	}
}

// ===== Reflect Tests =====

func TestReflectCompute(t *testing.T) {
	code := `
@group(0) @binding(0) var<storage, read> input: array<u32>;
@group(0) @binding(1) var<storage, read_write> output: array<u32>;
@group(1) @binding(0) var<uniform> params: vec4<u32>;

fn scale(x: u32) -> u32 {
    return x * params.x;
}

@compute @workgroup_size(8, 2)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    output[id.x] = scale(input[id.x]);
}
`
	mod, err := New().Reflect(code)
	if err != nil {
		t.Fatalf("Reflect() error = %v", err)
	}

	fn, ok := mod.EntryPoint(gputypes.ShaderStageCompute, "")
	if !ok {
		t.Fatal("no compute entry point")
	}
	if fn.Name != "main" {
		t.Errorf("entry point = %q, want %q", fn.Name, "main")
	}
	if fn.WorkgroupSize != [3]uint32{8, 2, 1} {
		t.Errorf("WorkgroupSize = %v, want [8 2 1]", fn.WorkgroupSize)
	}

	vars := map[string]*engine.Variable{}
	for _, v := range mod.Resources() {
		vars[v.Name] = v
	}

	tests := []struct {
		name    string
		space   engine.AddressSpace
		access  engine.StorageAccess
		group   uint32
		binding uint32
	}{
		{"input", engine.SpaceStorage, engine.AccessRead, 0, 0},
		{"output", engine.SpaceStorage, engine.AccessReadWrite, 0, 1},
		{"params", engine.SpaceUniform, engine.AccessUnspecified, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := vars[tt.name]
			if !ok {
				t.Fatalf("resource %q not reflected", tt.name)
			}
			if v.Space != tt.space {
				t.Errorf("Space = %v, want %v", v.Space, tt.space)
			}
			if v.Access != tt.access {
				t.Errorf("Access = %v, want %v", v.Access, tt.access)
			}
			if v.Binding.Group != tt.group || v.Binding.Binding != tt.binding {
				t.Errorf("Binding = %+v, want {%d %d}", *v.Binding, tt.group, tt.binding)
			}
		})
	}

	var helper bool
	for _, d := range mod.Declarations {
		if f, ok := d.(*engine.Function); ok && f.Name == "scale" {
			helper = true
			if f.IsEntryPoint() {
				t.Error("scale reported as entry point")
			}
		}
	}
	if !helper {
		t.Error("helper function scale not reflected")
	}
}

func TestReflectHandles(t *testing.T) {
	code := `
@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn fs(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, pos.xy);
}
`
	mod, err := New().Reflect(code)
	if err != nil {
		t.Fatalf("Reflect() error = %v", err)
	}
	if _, ok := mod.EntryPoint(gputypes.ShaderStageFragment, "fs"); !ok {
		t.Error("fragment entry point fs not reflected")
	}

	want := map[string]engine.HandleKind{
		"tex":  engine.HandleTexture,
		"samp": engine.HandleSampler,
	}
	for _, v := range mod.Resources() {
		if v.Space != engine.SpaceHandle {
			t.Errorf("%s: Space = %v, want handle", v.Name, v.Space)
		}
		if v.Handle != want[v.Name] {
			t.Errorf("%s: Handle = %v, want %v", v.Name, v.Handle, want[v.Name])
		}
	}
}

func TestReflectError(t *testing.T) {
	_, err := New().Reflect("fn (")
	if _, ok := engine.AsCompileError(err); !ok {
		t.Errorf("Reflect() error = %v, want *engine.CompileError", err)
	}
}

// ===== Execute Tests =====

func TestExecute(t *testing.T) {
	e := New()
	req := tripleRequest()
	input := append([]byte(nil), req.Bindings[1].Data...)

	out, err := e.Execute(req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}

	got, ok := engine.Find(out, engine.BindingKey{Group: 0, Binding: 1})
	if !ok {
		t.Fatal("output binding missing from result")
	}
	for i := range 4 {
		v := binary.LittleEndian.Uint32(got.Data[i*4:])
		if want := uint32(10+i) * 3; v != want {
			t.Errorf("output[%d] = %d, want %d", i, v, want)
		}
	}

	if string(req.Bindings[1].Data) != string(input) {
		t.Error("Execute() modified the request bindings")
	}
}

func TestExecuteCachesProgram(t *testing.T) {
	e := New()
	for range 3 {
		if _, err := e.Execute(tripleRequest()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	stats := e.CacheStats()
	if stats.Len != 1 {
		t.Errorf("cache Len = %d, want 1", stats.Len)
	}
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 2/1", stats.Hits, stats.Misses)
	}
}

func TestExecuteZeroWorkgroups(t *testing.T) {
	req := tripleRequest()
	req.Workgroups = [3]uint32{0, 1, 1}

	out, err := New().Execute(req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for i := range out {
		if string(out[i].Data) != string(req.Bindings[i].Data) {
			t.Errorf("binding %v changed on empty dispatch", out[i].Key())
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*engine.ExecRequest)
		want   error
	}{
		{
			name:   "overrides",
			modify: func(r *engine.ExecRequest) { r.Overrides = map[string]float64{"scale": 2} },
			want:   ErrOverridesUnsupported,
		},
		{
			name:   "unknown entry point",
			modify: func(r *engine.ExecRequest) { r.EntryPoint = "missing" },
			want:   ErrUnknownEntryPoint,
		},
		{
			name:   "missing root",
			modify: func(r *engine.ExecRequest) { r.Source.Root = "package::other" },
			want:   engine.ErrMissingRoot,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tripleRequest()
			tt.modify(req)
			if _, err := New().Execute(req); !errors.Is(err, tt.want) {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecuteCompileFailure(t *testing.T) {
	req := tripleRequest()
	req.Source = engine.SingleFile("fn (")
	e := New()
	if _, err := e.Execute(req); err == nil {
		t.Fatal("Execute() error = nil, want compile failure")
	}
	if e.CacheStats().Len != 0 {
		t.Error("failed program was cached")
	}
}

func TestWithCacheSize(t *testing.T) {
	e := New(WithCacheSize(2))
	if got := e.programs.Capacity(); got != 2 {
		t.Errorf("Capacity() = %d, want 2", got)
	}
}
