package softgpu

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/softgpu/engine"
)

// ErrNilShaderModule is returned when a programmable stage has no module.
var ErrNilShaderModule = errors.New("softgpu: shader module is nil")

// PipelineErrorReason classifies a failed async pipeline creation.
type PipelineErrorReason string

// Pipeline error reasons.
const (
	// PipelineErrorValidation means the descriptor or shader was rejected.
	PipelineErrorValidation PipelineErrorReason = "validation"
	// PipelineErrorInternal means the shader engine failed to reflect a
	// shader it had accepted.
	PipelineErrorInternal PipelineErrorReason = "internal"
)

// PipelineError is returned by the async pipeline constructors. Err is the
// error the synchronous constructor returned.
type PipelineError struct {
	Reason PipelineErrorReason
	Err    error
}

func (e *PipelineError) Error() string {
	return "softgpu: pipeline error (" + string(e.Reason) + "): " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error { return e.Err }

func newPipelineError(err error) *PipelineError {
	reason := PipelineErrorValidation
	var re *reflectError
	if errors.As(err, &re) {
		reason = PipelineErrorInternal
	}
	return &PipelineError{Reason: reason, Err: err}
}

// LayoutSource selects a pipeline's layout: AutoLayout or a *PipelineLayout.
// A nil LayoutSource means AutoLayout.
type LayoutSource interface {
	layoutSource()
}

// AutoLayout requests a layout inferred from the shader's resources.
type AutoLayout struct{}

func (AutoLayout) layoutSource() {}

// ProgrammableStage selects a shader entry point.
type ProgrammableStage struct {
	Module *ShaderModule
	// EntryPoint names the entry function. When empty, the first entry
	// point of the stage is used.
	EntryPoint string
	// Constants holds pipeline-overridable constant values. Only an empty
	// map is supported.
	Constants map[string]float64
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label   string
	Layout  LayoutSource
	Compute ProgrammableStage
}

// ComputePipeline is a resolved compute stage plus its layout.
type ComputePipeline struct {
	label      string
	layout     *PipelineLayout
	module     *ShaderModule
	entryPoint string
}

// CreateComputePipeline resolves desc. With an AutoLayout the layout is
// inferred from the shader; an empty entry point is resolved by reflection
// in either case.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc or its module is nil
//   - overridable constants are given (matches ErrNotImplemented)
//   - reflection fails or finds no matching compute entry point
//   - layout inference fails
func (d *Device) CreateComputePipeline(desc *ComputePipelineDescriptor) (*ComputePipeline, error) {
	if err := d.checkAlive("create compute pipeline"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create compute pipeline: %w", ErrNilDescriptor)
	}
	stage := desc.Compute
	if stage.Module == nil {
		return nil, fmt.Errorf("create compute pipeline %q: %w", desc.Label, ErrNilShaderModule)
	}
	if len(stage.Constants) > 0 {
		return nil, notImplemented(fmt.Sprintf("pipeline-overridable constants %v",
			slices.Sorted(maps.Keys(stage.Constants))))
	}

	var (
		layout     *PipelineLayout
		entryPoint = stage.EntryPoint
		err        error
	)
	if explicit, _ := desc.Layout.(*PipelineLayout); explicit != nil {
		layout = explicit
		if entryPoint == "" {
			var fn *engine.Function
			if _, fn, err = d.findComputeEntryPoint(stage.Module.code, ""); err == nil {
				entryPoint = fn.Name
			}
		}
	} else {
		layout, entryPoint, err = d.inferLayout(desc.Label, stage.Module.code, entryPoint)
	}
	if err != nil {
		return nil, fmt.Errorf("create compute pipeline %q: %w", desc.Label, err)
	}

	Logger().Debug("softgpu: compute pipeline created",
		"label", desc.Label,
		"entry_point", entryPoint,
		"groups", len(layout.layouts))
	return &ComputePipeline{
		label:      desc.Label,
		layout:     layout,
		module:     stage.Module,
		entryPoint: entryPoint,
	}, nil
}

// CreateComputePipelineAsync is CreateComputePipeline with the error
// returned as a *PipelineError. Pipelines are resolved on the calling
// goroutine, so it blocks until the pipeline is ready.
func (d *Device) CreateComputePipelineAsync(desc *ComputePipelineDescriptor) (*ComputePipeline, error) {
	p, err := d.CreateComputePipeline(desc)
	if err != nil {
		return nil, newPipelineError(err)
	}
	return p, nil
}

// Label returns the pipeline's debug label.
func (p *ComputePipeline) Label() string { return p.label }

// Layout returns the resolved pipeline layout.
func (p *ComputePipeline) Layout() *PipelineLayout { return p.layout }

// Module returns the shader module.
func (p *ComputePipeline) Module() *ShaderModule { return p.module }

// EntryPoint returns the resolved entry point name.
func (p *ComputePipeline) EntryPoint() string { return p.entryPoint }

// GetBindGroupLayout returns the layout of group index.
//
// Returns ErrNoBindGroupLayout for a missing or nil slot.
func (p *ComputePipeline) GetBindGroupLayout(index uint32) (*BindGroupLayout, error) {
	return getBindGroupLayout(p.layout, index)
}

func getBindGroupLayout(layout *PipelineLayout, index uint32) (*BindGroupLayout, error) {
	bgl := layout.bindGroupLayout(index)
	if bgl == nil {
		return nil, fmt.Errorf("%w: %d", ErrNoBindGroupLayout, index)
	}
	return bgl, nil
}

// RenderPipelineDescriptor describes a render pipeline. Only the shader
// stages and layout are modeled; rasterization is not emulated.
type RenderPipelineDescriptor struct {
	Label    string
	Layout   LayoutSource
	Vertex   ProgrammableStage
	Fragment *ProgrammableStage
}

// RenderPipeline records a render pipeline's stages and layout. Render
// passes can bind it but cannot draw with it.
type RenderPipeline struct {
	label    string
	layout   *PipelineLayout
	vertex   ProgrammableStage
	fragment *ProgrammableStage
}

// CreateRenderPipeline snapshots desc.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc or its vertex module is nil
//   - the layout is AutoLayout (matches ErrNotImplemented)
func (d *Device) CreateRenderPipeline(desc *RenderPipelineDescriptor) (*RenderPipeline, error) {
	if err := d.checkAlive("create render pipeline"); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, fmt.Errorf("create render pipeline: %w", ErrNilDescriptor)
	}
	if desc.Vertex.Module == nil {
		return nil, fmt.Errorf("create render pipeline %q: %w", desc.Label, ErrNilShaderModule)
	}
	if desc.Fragment != nil && desc.Fragment.Module == nil {
		return nil, fmt.Errorf("create render pipeline %q: fragment: %w", desc.Label, ErrNilShaderModule)
	}
	layout, ok := desc.Layout.(*PipelineLayout)
	if !ok || layout == nil {
		return nil, notImplemented("CreateRenderPipeline with auto layout")
	}

	p := &RenderPipeline{label: desc.Label, layout: layout, vertex: desc.Vertex}
	if desc.Fragment != nil {
		f := *desc.Fragment
		p.fragment = &f
	}
	Logger().Debug("softgpu: render pipeline created", "label", desc.Label)
	return p, nil
}

// CreateRenderPipelineAsync is CreateRenderPipeline with the error returned
// as a *PipelineError. It blocks until the pipeline is ready.
func (d *Device) CreateRenderPipelineAsync(desc *RenderPipelineDescriptor) (*RenderPipeline, error) {
	p, err := d.CreateRenderPipeline(desc)
	if err != nil {
		return nil, newPipelineError(err)
	}
	return p, nil
}

// Label returns the pipeline's debug label.
func (p *RenderPipeline) Label() string { return p.label }

// Layout returns the pipeline layout.
func (p *RenderPipeline) Layout() *PipelineLayout { return p.layout }

// GetBindGroupLayout returns the layout of group index.
//
// Returns ErrNoBindGroupLayout for a missing or nil slot.
func (p *RenderPipeline) GetBindGroupLayout(index uint32) (*BindGroupLayout, error) {
	return getBindGroupLayout(p.layout, index)
}

// Vertex returns the vertex stage.
func (p *RenderPipeline) Vertex() ProgrammableStage { return p.vertex }

// Fragment returns the fragment stage, or nil.
func (p *RenderPipeline) Fragment() *ProgrammableStage { return p.fragment }
