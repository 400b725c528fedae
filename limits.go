package softgpu

import (
	"slices"

	"github.com/gogpu/gputypes"
)

// DefaultLimits returns the static limit table: the WebGPU defaults with the
// binding and inter-stage budgets of the CPU executor.
func DefaultLimits() gputypes.Limits {
	l := gputypes.DefaultLimits()
	l.MaxBindingsPerBindGroup = 640
	l.MaxInterStageShaderVariables = 60
	return l
}

// FeatureName is a WebGPU feature name.
type FeatureName string

// Features advertised by default.
const (
	FeatureDepthClipControl               FeatureName = "depth-clip-control"
	FeatureDepth32FloatStencil8           FeatureName = "depth32float-stencil8"
	FeatureTextureCompressionBC           FeatureName = "texture-compression-bc"
	FeatureTextureCompressionBCSliced3D   FeatureName = "texture-compression-bc-sliced-3d"
	FeatureTextureCompressionETC2         FeatureName = "texture-compression-etc2"
	FeatureTextureCompressionASTC         FeatureName = "texture-compression-astc"
	FeatureTextureCompressionASTCSliced3D FeatureName = "texture-compression-astc-sliced-3d"
	FeatureTimestampQuery                 FeatureName = "timestamp-query"
	FeatureIndirectFirstInstance          FeatureName = "indirect-first-instance"
	FeatureShaderF16                      FeatureName = "shader-f16"
	FeatureRG11B10UfloatRenderable        FeatureName = "rg11b10ufloat-renderable"
	FeatureBGRA8UnormStorage              FeatureName = "bgra8unorm-storage"
	FeatureFloat32Filterable              FeatureName = "float32-filterable"
	FeatureFloat32Blendable               FeatureName = "float32-blendable"
	FeatureClipDistances                  FeatureName = "clip-distances"
	FeatureDualSourceBlending             FeatureName = "dual-source-blending"
)

// gputypesFeatures maps feature names onto the gputypes bitmask. Names with
// no gputypes flag are absent.
var gputypesFeatures = map[FeatureName]gputypes.Feature{
	FeatureDepthClipControl:        gputypes.FeatureDepthClipControl,
	FeatureDepth32FloatStencil8:    gputypes.FeatureDepth32FloatStencil8,
	FeatureTextureCompressionBC:    gputypes.FeatureTextureCompressionBC,
	FeatureTextureCompressionETC2:  gputypes.FeatureTextureCompressionETC2,
	FeatureTextureCompressionASTC:  gputypes.FeatureTextureCompressionASTC,
	FeatureTimestampQuery:          gputypes.FeatureTimestampQuery,
	FeatureIndirectFirstInstance:   gputypes.FeatureIndirectFirstInstance,
	FeatureShaderF16:               gputypes.FeatureShaderF16,
	FeatureRG11B10UfloatRenderable: gputypes.FeatureRG11B10UfloatRenderable,
	FeatureBGRA8UnormStorage:       gputypes.FeatureBGRA8UnormStorage,
	FeatureFloat32Filterable:       gputypes.FeatureFloat32Filterable,
}

// Features is a feature table.
type Features []FeatureName

// DefaultFeatures returns every feature the CPU executor advertises.
func DefaultFeatures() Features {
	return Features{
		FeatureDepthClipControl,
		FeatureDepth32FloatStencil8,
		FeatureTextureCompressionBC,
		FeatureTextureCompressionBCSliced3D,
		FeatureTextureCompressionETC2,
		FeatureTextureCompressionASTC,
		FeatureTextureCompressionASTCSliced3D,
		FeatureTimestampQuery,
		FeatureIndirectFirstInstance,
		FeatureShaderF16,
		FeatureRG11B10UfloatRenderable,
		FeatureBGRA8UnormStorage,
		FeatureFloat32Filterable,
		FeatureFloat32Blendable,
		FeatureClipDistances,
		FeatureDualSourceBlending,
	}
}

// Has reports whether name is in the table.
func (f Features) Has(name FeatureName) bool {
	return slices.Contains(f, name)
}

// Names returns the feature names sorted.
func (f Features) Names() []string {
	names := make([]string, len(f))
	for i, n := range f {
		names[i] = string(n)
	}
	slices.Sort(names)
	return names
}

// GPUTypes returns the table as a gputypes bitmask.
func (f Features) GPUTypes() gputypes.Features {
	var out gputypes.Features
	for _, n := range f {
		if flag, ok := gputypesFeatures[n]; ok {
			out.Insert(flag)
		}
	}
	return out
}

// clone returns an independent copy.
func (f Features) clone() Features {
	return slices.Clone(f)
}

// wgslLanguageFeatures lists the WGSL language extensions the executor accepts.
var wgslLanguageFeatures = []string{"shader-f16", "clip-distances", "dual-source-blending"}
