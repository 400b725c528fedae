package software

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/softgpu/engine"
)

// reflectModule maps a lowered naga module onto engine declarations:
// globals first, then entry points, then helper functions.
func reflectModule(mod *ir.Module) *engine.Module {
	out := &engine.Module{
		Declarations: make([]engine.Declaration, 0,
			len(mod.GlobalVariables)+len(mod.EntryPoints)+len(mod.Functions)),
	}

	for i := range mod.GlobalVariables {
		out.Declarations = append(out.Declarations, reflectGlobal(mod, &mod.GlobalVariables[i]))
	}
	for i := range mod.EntryPoints {
		ep := &mod.EntryPoints[i]
		fn := &engine.Function{Name: ep.Name, Stage: stageOf(ep.Stage)}
		if ep.Stage == ir.StageCompute {
			fn.WorkgroupSize = ep.Workgroup
		}
		out.Declarations = append(out.Declarations, fn)
	}
	for i := range mod.Functions {
		out.Declarations = append(out.Declarations, &engine.Function{Name: mod.Functions[i].Name})
	}
	return out
}

func reflectGlobal(mod *ir.Module, gv *ir.GlobalVariable) *engine.Variable {
	v := &engine.Variable{Name: gv.Name, Space: spaceOf(gv.Space)}
	if gv.Binding != nil {
		v.Binding = &engine.ResourceBinding{Group: gv.Binding.Group, Binding: gv.Binding.Binding}
	}

	switch v.Space {
	case engine.SpaceStorage:
		if gv.Access == ir.StorageReadWrite {
			v.Access = engine.AccessReadWrite
		} else {
			v.Access = engine.AccessRead
		}
	case engine.SpaceHandle:
		if int(gv.Type) < len(mod.Types) {
			v.Handle = handleOf(mod, mod.Types[gv.Type].Inner)
		}
	}
	return v
}

func handleOf(mod *ir.Module, inner ir.TypeInner) engine.HandleKind {
	switch t := inner.(type) {
	case ir.SamplerType:
		return engine.HandleSampler
	case ir.ImageType:
		if t.Class == ir.ImageClassStorage {
			return engine.HandleStorageTexture
		}
		return engine.HandleTexture
	case ir.BindingArrayType:
		if int(t.Base) < len(mod.Types) {
			return handleOf(mod, mod.Types[t.Base].Inner)
		}
	}
	return engine.HandleNone
}

func spaceOf(s ir.AddressSpace) engine.AddressSpace {
	switch s {
	case ir.SpaceWorkGroup, ir.SpaceTaskPayload:
		return engine.SpaceWorkgroup
	case ir.SpaceUniform:
		return engine.SpaceUniform
	case ir.SpaceStorage:
		return engine.SpaceStorage
	case ir.SpaceHandle:
		return engine.SpaceHandle
	case ir.SpacePushConstant, ir.SpaceImmediate:
		return engine.SpacePushConstant
	default:
		return engine.SpacePrivate
	}
}

// stageOf maps naga stages onto WebGPU stages. Task and mesh stages have no
// WebGPU counterpart and reflect as plain functions.
func stageOf(s ir.ShaderStage) gputypes.ShaderStage {
	switch s {
	case ir.StageVertex:
		return gputypes.ShaderStageVertex
	case ir.StageFragment:
		return gputypes.ShaderStageFragment
	case ir.StageCompute:
		return gputypes.ShaderStageCompute
	default:
		return 0
	}
}
