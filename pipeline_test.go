package softgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// =============================================================================
// Default Layout Inference Tests
// =============================================================================

func TestInferLayout(t *testing.T) {
	fe := &fakeEngine{module: &engine.Module{Declarations: []engine.Declaration{
		&engine.Function{Name: "helper"},
		&engine.Variable{Name: "ro", Space: engine.SpaceStorage, Access: engine.AccessRead,
			Binding: &engine.ResourceBinding{Group: 0, Binding: 0}},
		&engine.Variable{Name: "unspecified", Space: engine.SpaceStorage, Access: engine.AccessUnspecified,
			Binding: &engine.ResourceBinding{Group: 0, Binding: 1}},
		&engine.Variable{Name: "rw", Space: engine.SpaceStorage, Access: engine.AccessReadWrite,
			Binding: &engine.ResourceBinding{Group: 2, Binding: 5}},
		&engine.Variable{Name: "params", Space: engine.SpaceUniform,
			Binding: &engine.ResourceBinding{Group: 2, Binding: 0}},
		&engine.Variable{Name: "scratch", Space: engine.SpaceWorkgroup},
		&engine.Function{Name: "vs", Stage: gputypes.ShaderStageVertex},
		&engine.Function{Name: "main", Stage: gputypes.ShaderStageCompute, WorkgroupSize: [3]uint32{64, 1, 1}},
	}}}
	d := newTestDevice(t, fe)

	p, err := d.CreateComputePipeline(&ComputePipelineDescriptor{
		Label:   "auto",
		Compute: ProgrammableStage{Module: newTestShader(t, d)},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline() error = %v", err)
	}
	if p.EntryPoint() != "main" {
		t.Errorf("EntryPoint() = %q, want %q", p.EntryPoint(), "main")
	}

	layouts := p.Layout().BindGroupLayouts()
	if len(layouts) != 3 {
		t.Fatalf("len(BindGroupLayouts()) = %d, want 3", len(layouts))
	}
	if n := len(layouts[1].Entries()); n != 0 {
		t.Errorf("gap group has %d entries, want 0", n)
	}

	tests := []struct {
		group, binding uint32
		wantType       gputypes.BufferBindingType
		wantUniform    bool
	}{
		{0, 0, gputypes.BufferBindingTypeReadOnlyStorage, false},
		{0, 1, gputypes.BufferBindingTypeReadOnlyStorage, false},
		{2, 5, gputypes.BufferBindingTypeStorage, false},
		{2, 0, 0, true},
	}
	for _, tt := range tests {
		bgl, err := p.GetBindGroupLayout(tt.group)
		if err != nil {
			t.Fatalf("GetBindGroupLayout(%d) error = %v", tt.group, err)
		}
		e, ok := bgl.Entry(tt.binding)
		if !ok {
			t.Fatalf("group %d binding %d missing", tt.group, tt.binding)
		}
		if e.Visibility != gputypes.ShaderStageCompute {
			t.Errorf("group %d binding %d visibility = %v", tt.group, tt.binding, e.Visibility)
		}
		if tt.wantUniform {
			if e.Buffer != nil || e.Sampler != nil || e.Texture != nil || e.StorageTexture != nil {
				t.Errorf("group %d binding %d = %+v, want all-nil uniform entry", tt.group, tt.binding, e)
			}
			continue
		}
		if e.Buffer == nil || e.Buffer.Type != tt.wantType {
			t.Errorf("group %d binding %d buffer = %+v, want type %v", tt.group, tt.binding, e.Buffer, tt.wantType)
		}
	}

	if _, err := p.GetBindGroupLayout(3); !errors.Is(err, ErrNoBindGroupLayout) {
		t.Errorf("GetBindGroupLayout(3) error = %v, want %v", err, ErrNoBindGroupLayout)
	}
}

func TestInferLayoutErrors(t *testing.T) {
	compute := &engine.Function{Name: "main", Stage: gputypes.ShaderStageCompute}
	reflectErr := &engine.CompileError{Message: "bad"}

	tests := []struct {
		name       string
		decls      []engine.Declaration
		reflectErr error
		entryPoint string
		wantErr    error
		notImpl    bool
	}{
		{
			name:    "no compute entry point",
			decls:   []engine.Declaration{&engine.Function{Name: "vs", Stage: gputypes.ShaderStageVertex}},
			wantErr: ErrNoEntryPoint,
		},
		{
			name:       "named entry point missing",
			decls:      []engine.Declaration{compute},
			entryPoint: "other",
			wantErr:    ErrNoEntryPoint,
		},
		{
			name: "group out of range",
			decls: []engine.Declaration{compute, &engine.Variable{
				Name: "far", Space: engine.SpaceStorage,
				Binding: &engine.ResourceBinding{Group: 4, Binding: 0},
			}},
			wantErr: ErrBindGroupIndexOutOfRange,
		},
		{
			name: "texture resource",
			decls: []engine.Declaration{compute, &engine.Variable{
				Name: "tex", Space: engine.SpaceHandle, Handle: engine.HandleTexture,
				Binding: &engine.ResourceBinding{Group: 0, Binding: 0},
			}},
			notImpl: true,
		},
		{
			name:       "reflection failure",
			reflectErr: reflectErr,
			wantErr:    reflectErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := &fakeEngine{module: &engine.Module{Declarations: tt.decls}, reflectErr: tt.reflectErr}
			d := newTestDevice(t, fe)
			_, err := d.CreateComputePipeline(&ComputePipelineDescriptor{
				Layout:  AutoLayout{},
				Compute: ProgrammableStage{Module: newTestShader(t, d), EntryPoint: tt.entryPoint},
			})
			if tt.notImpl {
				if !errors.Is(err, ErrNotImplemented) {
					t.Errorf("error = %v, want ErrNotImplemented", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInferLayoutNoResources(t *testing.T) {
	fe := &fakeEngine{module: &engine.Module{Declarations: []engine.Declaration{
		&engine.Function{Name: "main", Stage: gputypes.ShaderStageCompute},
	}}}
	d := newTestDevice(t, fe)
	p, err := d.CreateComputePipeline(&ComputePipelineDescriptor{
		Compute: ProgrammableStage{Module: newTestShader(t, d)},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline() error = %v", err)
	}
	if n := len(p.Layout().BindGroupLayouts()); n != 0 {
		t.Errorf("len(BindGroupLayouts()) = %d, want 0", n)
	}
}

// =============================================================================
// Compute Pipeline Tests
// =============================================================================

func TestComputePipelineExplicitLayout(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{module: computeModule()})
	bgl, _ := d.CreateBindGroupLayout(&gputypes.BindGroupLayoutDescriptor{
		Entries: []gputypes.BindGroupLayoutEntry{storageEntry(0, gputypes.BufferBindingTypeStorage)},
	})
	pl, _ := d.CreatePipelineLayout(&PipelineLayoutDescriptor{BindGroupLayouts: []*BindGroupLayout{bgl}})

	p, err := d.CreateComputePipeline(&ComputePipelineDescriptor{
		Layout:  pl,
		Compute: ProgrammableStage{Module: newTestShader(t, d)},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline() error = %v", err)
	}
	if p.Layout() != pl {
		t.Error("explicit layout was not used verbatim")
	}
	if p.EntryPoint() != "main" {
		t.Errorf("EntryPoint() = %q, want it resolved to %q", p.EntryPoint(), "main")
	}
}

func TestComputePipelineErrors(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{module: computeModule()})

	if _, err := d.CreateComputePipeline(nil); !errors.Is(err, ErrNilDescriptor) {
		t.Errorf("nil descriptor error = %v, want %v", err, ErrNilDescriptor)
	}
	if _, err := d.CreateComputePipeline(&ComputePipelineDescriptor{}); !errors.Is(err, ErrNilShaderModule) {
		t.Errorf("nil module error = %v, want %v", err, ErrNilShaderModule)
	}
	_, err := d.CreateComputePipeline(&ComputePipelineDescriptor{
		Compute: ProgrammableStage{Module: newTestShader(t, d), Constants: map[string]float64{"k": 1}},
	})
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("constants error = %v, want ErrNotImplemented", err)
	}
}

func TestCreateComputePipelineAsync(t *testing.T) {
	fe := &fakeEngine{module: computeModule()}
	d := newTestDevice(t, fe)
	module := newTestShader(t, d)

	p, err := d.CreateComputePipelineAsync(&ComputePipelineDescriptor{
		Label:   "async",
		Compute: ProgrammableStage{Module: module},
	})
	if err != nil {
		t.Fatalf("CreateComputePipelineAsync() error = %v", err)
	}
	if p.EntryPoint() != "main" || p.Label() != "async" {
		t.Errorf("pipeline = %q/%q, want async/main", p.Label(), p.EntryPoint())
	}
	if _, err := p.GetBindGroupLayout(0); err != nil {
		t.Errorf("GetBindGroupLayout(0) error = %v", err)
	}

	cause := errors.New("reflection crashed")
	tests := []struct {
		name       string
		reflectErr error
		desc       *ComputePipelineDescriptor
		wantReason PipelineErrorReason
		wantErr    error
	}{
		{"nil descriptor", nil, nil, PipelineErrorValidation, ErrNilDescriptor},
		{
			"missing entry point", nil,
			&ComputePipelineDescriptor{Compute: ProgrammableStage{Module: module, EntryPoint: "nope"}},
			PipelineErrorValidation, ErrNoEntryPoint,
		},
		{
			"reflection failure", cause,
			&ComputePipelineDescriptor{Compute: ProgrammableStage{Module: module}},
			PipelineErrorInternal, cause,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe.reflectErr = tt.reflectErr
			t.Cleanup(func() { fe.reflectErr = nil })

			p, err := d.CreateComputePipelineAsync(tt.desc)
			if p != nil {
				t.Errorf("pipeline = %v, want nil", p)
			}
			var pe *PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *PipelineError", err)
			}
			if pe.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.wantReason)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want it to wrap %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipelineErrorMessage(t *testing.T) {
	err := &PipelineError{Reason: PipelineErrorInternal, Err: errors.New("boom")}
	if want := "softgpu: pipeline error (internal): boom"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// =============================================================================
// Render Pipeline Tests
// =============================================================================

func TestRenderPipeline(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	module := newTestShader(t, d)

	_, err := d.CreateRenderPipeline(&RenderPipelineDescriptor{
		Vertex: ProgrammableStage{Module: module, EntryPoint: "vs"},
	})
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("auto layout error = %v, want ErrNotImplemented", err)
	}

	bgl, _ := d.CreateBindGroupLayout(&gputypes.BindGroupLayoutDescriptor{})
	pl, _ := d.CreatePipelineLayout(&PipelineLayoutDescriptor{BindGroupLayouts: []*BindGroupLayout{nil, bgl}})
	p, err := d.CreateRenderPipeline(&RenderPipelineDescriptor{
		Layout:   pl,
		Vertex:   ProgrammableStage{Module: module, EntryPoint: "vs"},
		Fragment: &ProgrammableStage{Module: module, EntryPoint: "fs"},
	})
	if err != nil {
		t.Fatalf("CreateRenderPipeline() error = %v", err)
	}
	if _, err := p.GetBindGroupLayout(0); !errors.Is(err, ErrNoBindGroupLayout) {
		t.Errorf("GetBindGroupLayout(0) error = %v, want %v", err, ErrNoBindGroupLayout)
	}
	if got, err := p.GetBindGroupLayout(1); err != nil || got != bgl {
		t.Errorf("GetBindGroupLayout(1) = %v, %v", got, err)
	}
	if p.Fragment().EntryPoint != "fs" || p.Vertex().EntryPoint != "vs" {
		t.Errorf("stages = %+v, %+v", p.Vertex(), p.Fragment())
	}
}

func TestCreateRenderPipelineAsync(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	module := newTestShader(t, d)

	_, err := d.CreateRenderPipelineAsync(&RenderPipelineDescriptor{
		Vertex: ProgrammableStage{Module: module, EntryPoint: "vs"},
	})
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Reason != PipelineErrorValidation {
		t.Errorf("auto layout error = %v, want validation *PipelineError", err)
	}
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("auto layout error = %v, want it to wrap ErrNotImplemented", err)
	}

	pl, _ := d.CreatePipelineLayout(&PipelineLayoutDescriptor{})
	p, err := d.CreateRenderPipelineAsync(&RenderPipelineDescriptor{
		Label:  "async",
		Layout: pl,
		Vertex: ProgrammableStage{Module: module, EntryPoint: "vs"},
	})
	if err != nil {
		t.Fatalf("CreateRenderPipelineAsync() error = %v", err)
	}
	if p.Label() != "async" || p.Layout() != pl {
		t.Errorf("pipeline = %q %v", p.Label(), p.Layout())
	}
}
