package softgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Adapter identification reported by Info.
const (
	AdapterName   = "softgpu CPU executor"
	AdapterVendor = "softgpu"
)

// Instance is the entry point: it holds the configuration every adapter and
// device created from it shares.
type Instance struct {
	cfg Config
}

// New creates an Instance.
//
// Returns ErrNoEngine if no engine was given and none is registered, and an
// error wrapping engine.ErrUnknownEngine for an unknown WithEngineName.
func New(opts ...Option) (*Instance, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.resolveEngine(); err != nil {
		return nil, fmt.Errorf("softgpu: new instance: %w", err)
	}
	propagateLogger(cfg.Engine, Logger())

	Logger().Debug("softgpu: instance created",
		"engine", cfg.Engine.Name(),
		"features", len(cfg.Features))
	return &Instance{cfg: cfg}, nil
}

// Config returns a copy of the instance configuration.
func (i *Instance) Config() Config {
	cfg := i.cfg
	cfg.Features = cfg.Features.clone()
	return cfg
}

// RequestAdapter returns the CPU adapter. There is exactly one adapter, so
// the options only affect logging.
func (i *Instance) RequestAdapter(opts *gputypes.RequestAdapterOptions) (*Adapter, error) {
	if opts != nil {
		Logger().Debug("softgpu: adapter requested",
			"power_preference", opts.PowerPreference,
			"force_fallback", opts.ForceFallbackAdapter)
	}
	return &Adapter{
		instance: i,
		features: i.cfg.Features.clone(),
		limits:   i.cfg.Limits,
	}, nil
}

// WGSLLanguageFeatures returns the WGSL language extensions accepted by the
// shader engine.
func (i *Instance) WGSLLanguageFeatures() []string {
	return slices.Clone(wgslLanguageFeatures)
}

// PreferredCanvasFormat is not implemented: the executor has no
// presentation surface. It returns TextureFormatUndefined.
func (i *Instance) PreferredCanvasFormat() (gputypes.TextureFormat, error) {
	return gputypes.TextureFormatUndefined, notImplemented("PreferredCanvasFormat")
}

// Adapter describes the CPU executor and creates devices.
type Adapter struct {
	instance *Instance
	features Features
	limits   gputypes.Limits
}

// Info returns the adapter identification.
func (a *Adapter) Info() gputypes.AdapterInfo {
	return gputypes.AdapterInfo{
		Name:       AdapterName,
		Vendor:     AdapterVendor,
		DeviceType: gputypes.DeviceTypeCPU,
		Driver:     a.instance.cfg.Engine.Name(),
		DriverInfo: "shader engine",
		Backend:    gputypes.BackendEmpty,
	}
}

// ContextInfo returns the adapter metadata in gpucontext form.
func (a *Adapter) ContextInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: AdapterName,
		Type: gpucontext.AdapterTypeSoftware,
	}
}

// Features returns the adapter feature table.
func (a *Adapter) Features() Features {
	return a.features.clone()
}

// Limits returns the adapter limit table.
func (a *Adapter) Limits() gputypes.Limits {
	return a.limits
}

// IsFallbackAdapter reports false: the CPU executor is the primary adapter.
func (a *Adapter) IsFallbackAdapter() bool {
	return false
}

// RequestDevice creates a device.
//
// Required features must all be offered by the adapter; required limits are
// ignored because the limit table is static.
//
// Returns ErrFeatureNotSupported for a feature outside the table.
func (a *Adapter) RequestDevice(desc *gputypes.DeviceDescriptor) (*Device, error) {
	var label string
	if desc != nil {
		label = desc.Label
		offered := a.features.GPUTypes()
		for _, f := range desc.RequiredFeatures {
			if !offered.Contains(f) {
				return nil, fmt.Errorf("%w: %s", ErrFeatureNotSupported, f)
			}
		}
	}
	return newDevice(a, label), nil
}

// RequestDeviceWithFeatures creates a device requiring features by name,
// including names with no gputypes flag.
func (a *Adapter) RequestDeviceWithFeatures(label string, names ...FeatureName) (*Device, error) {
	for _, n := range names {
		if !a.features.Has(n) {
			return nil, fmt.Errorf("%w: %s", ErrFeatureNotSupported, n)
		}
	}
	return newDevice(a, label), nil
}
