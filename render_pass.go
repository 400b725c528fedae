package softgpu

import (
	"errors"
	"sync"

	"github.com/gogpu/gputypes"
)

// ErrRenderPassEnded is returned when operations are called on an ended
// render pass.
var ErrRenderPassEnded = errors.New("softgpu: render pass has already ended")

// RenderPassDescriptor describes a render pass. Attachments are not modeled.
type RenderPassDescriptor struct {
	Label string
}

// RenderPassEncoder records pipeline and bind group state. Nothing is
// rasterized: every draw and fixed-function state call returns an error
// matching ErrNotImplemented.
type RenderPassEncoder struct {
	mu sync.Mutex

	device   *Device
	label    string
	ended    bool
	pipeline *RenderPipeline
	groups   map[uint32]boundGroup
}

func newRenderPass(d *Device, desc *RenderPassDescriptor) *RenderPassEncoder {
	p := &RenderPassEncoder{device: d, groups: make(map[uint32]boundGroup)}
	if desc != nil {
		p.label = desc.Label
	}
	return p
}

func (*RenderPassEncoder) command() {}

// Label returns the pass's debug label.
func (p *RenderPassEncoder) Label() string { return p.label }

// Pipeline returns the pipeline set on the pass, or nil.
func (p *RenderPassEncoder) Pipeline() *RenderPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pipeline
}

// BindGroup returns the group bound at index, or nil.
func (p *RenderPassEncoder) BindGroup(index uint32) *BindGroup {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.groups[index].group
}

// SetPipeline records the pipeline.
func (p *RenderPassEncoder) SetPipeline(pipeline *RenderPipeline) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return ErrRenderPassEnded
	}
	if pipeline == nil {
		return ErrNilPipeline
	}
	p.pipeline = pipeline
	return nil
}

// SetBindGroup records group at index. A nil group clears the slot.
func (p *RenderPassEncoder) SetBindGroup(index uint32, group *BindGroup, dynamicOffsets []uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ended {
		return ErrRenderPassEnded
	}
	offsets, err := bindGroupSlot(p.device, index, group, dynamicOffsets)
	if err != nil {
		return err
	}
	if group == nil {
		delete(p.groups, index)
		return nil
	}
	p.groups[index] = boundGroup{group: group, offsets: offsets}
	return nil
}

// End completes the pass. End is idempotent.
func (p *RenderPassEncoder) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	return nil
}

// =============================================================================
// Unsupported render state and draws
// =============================================================================

// SetViewport is not implemented.
func (p *RenderPassEncoder) SetViewport(x, y, width, height, minDepth, maxDepth float32) error {
	return notImplemented("SetViewport")
}

// SetScissorRect is not implemented.
func (p *RenderPassEncoder) SetScissorRect(x, y, width, height uint32) error {
	return notImplemented("SetScissorRect")
}

// SetBlendConstant is not implemented.
func (p *RenderPassEncoder) SetBlendConstant(gputypes.Color) error {
	return notImplemented("SetBlendConstant")
}

// SetStencilReference is not implemented.
func (p *RenderPassEncoder) SetStencilReference(uint32) error {
	return notImplemented("SetStencilReference")
}

// BeginOcclusionQuery is not implemented.
func (p *RenderPassEncoder) BeginOcclusionQuery(uint32) error {
	return notImplemented("BeginOcclusionQuery")
}

// EndOcclusionQuery is not implemented.
func (p *RenderPassEncoder) EndOcclusionQuery() error {
	return notImplemented("EndOcclusionQuery")
}

// ExecuteBundles is not implemented.
func (p *RenderPassEncoder) ExecuteBundles() error {
	return notImplemented("ExecuteBundles")
}

// SetIndexBuffer is not implemented.
func (p *RenderPassEncoder) SetIndexBuffer(buf *Buffer, format gputypes.IndexFormat, offset, size uint64) error {
	return notImplemented("SetIndexBuffer")
}

// SetVertexBuffer is not implemented.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, buf *Buffer, offset, size uint64) error {
	return notImplemented("SetVertexBuffer")
}

// Draw is not implemented.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	return notImplemented("Draw")
}

// DrawIndexed is not implemented.
func (p *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) error {
	return notImplemented("DrawIndexed")
}

// DrawIndirect is not implemented.
func (p *RenderPassEncoder) DrawIndirect(buf *Buffer, offset uint64) error {
	return notImplemented("DrawIndirect")
}

// DrawIndexedIndirect is not implemented.
func (p *RenderPassEncoder) DrawIndexedIndirect(buf *Buffer, offset uint64) error {
	return notImplemented("DrawIndexedIndirect")
}

// PushDebugGroup is not implemented.
func (p *RenderPassEncoder) PushDebugGroup(string) error {
	return notImplemented("RenderPassEncoder.PushDebugGroup")
}

// PopDebugGroup is not implemented.
func (p *RenderPassEncoder) PopDebugGroup() error {
	return notImplemented("RenderPassEncoder.PopDebugGroup")
}

// InsertDebugMarker is not implemented.
func (p *RenderPassEncoder) InsertDebugMarker(string) error {
	return notImplemented("RenderPassEncoder.InsertDebugMarker")
}
