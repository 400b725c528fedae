package softgpu

import (
	"encoding/binary"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// fakeEngine is an in-memory engine. By default Execute doubles every u32
// of writable bindings.
type fakeEngine struct {
	mu sync.Mutex

	compileErr error
	module     *engine.Module
	reflectErr error
	exec       func(req *engine.ExecRequest) ([]engine.Binding, error)

	compiled []engine.Source
	requests []*engine.ExecRequest
	logger   *slog.Logger
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Compile(src engine.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiled = append(f.compiled, src)
	return f.compileErr
}

func (f *fakeEngine) Reflect(string) (*engine.Module, error) {
	if f.reflectErr != nil {
		return nil, f.reflectErr
	}
	if f.module == nil {
		return &engine.Module{}, nil
	}
	return f.module, nil
}

func (f *fakeEngine) Execute(req *engine.ExecRequest) ([]engine.Binding, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.exec != nil {
		return f.exec(req)
	}
	out := make([]engine.Binding, len(req.Bindings))
	for i, b := range req.Bindings {
		b.Data = slices.Clone(b.Data)
		if b.Kind.Writable() {
			for j := 0; j+4 <= len(b.Data); j += 4 {
				v := binary.LittleEndian.Uint32(b.Data[j:])
				binary.LittleEndian.PutUint32(b.Data[j:], v*2)
			}
		}
		out[i] = b
	}
	return out, nil
}

func (f *fakeEngine) SetLogger(l *slog.Logger) { f.logger = l }

func (f *fakeEngine) lastRequest(t *testing.T) *engine.ExecRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("engine received no request")
	}
	return f.requests[len(f.requests)-1]
}

// computeModule reflects as an input/output compute shader.
func computeModule() *engine.Module {
	return &engine.Module{Declarations: []engine.Declaration{
		&engine.Variable{
			Name:    "input",
			Space:   engine.SpaceStorage,
			Access:  engine.AccessRead,
			Binding: &engine.ResourceBinding{Group: 0, Binding: 0},
		},
		&engine.Variable{
			Name:    "output",
			Space:   engine.SpaceStorage,
			Access:  engine.AccessReadWrite,
			Binding: &engine.ResourceBinding{Group: 0, Binding: 1},
		},
		&engine.Function{
			Name:          "main",
			Stage:         gputypes.ShaderStageCompute,
			WorkgroupSize: [3]uint32{64, 1, 1},
		},
	}}
}

func newTestDevice(t *testing.T, e engine.Engine, opts ...Option) *Device {
	t.Helper()
	inst, err := New(append([]Option{WithEngine(e)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	adapter, err := inst.RequestAdapter(nil)
	if err != nil {
		t.Fatalf("RequestAdapter() error = %v", err)
	}
	device, err := adapter.RequestDevice(&gputypes.DeviceDescriptor{Label: t.Name()})
	if err != nil {
		t.Fatalf("RequestDevice() error = %v", err)
	}
	return device
}

func newTestShader(t *testing.T, d *Device) *ShaderModule {
	t.Helper()
	m, err := d.CreateShaderModule(&gputypes.ShaderModuleDescriptor{
		Label:  "shader",
		Source: gputypes.ShaderSourceWGSL{Code: "// compute"},
	})
	if err != nil {
		t.Fatalf("CreateShaderModule() error = %v", err)
	}
	return m
}

func newTestBuffer(t *testing.T, d *Device, data []byte) *Buffer {
	t.Helper()
	buf, err := d.CreateBufferInit("buf", gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc, data)
	if err != nil {
		t.Fatalf("CreateBufferInit() error = %v", err)
	}
	return buf
}

func u32Bytes(vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func readAll(t *testing.T, b *Buffer) []byte {
	t.Helper()
	data, err := b.read(0, b.Size())
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	return data
}
