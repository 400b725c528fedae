package softgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// Option configures an Instance during creation.
//
// Example:
//
//	// Default engine, default tables
//	inst, err := softgpu.New()
//
//	// Injected engine and a reduced feature table
//	inst, err := softgpu.New(
//	    softgpu.WithEngine(myEngine),
//	    softgpu.WithFeatures(softgpu.FeatureShaderF16),
//	)
type Option func(*Config)

// Config is the explicit configuration an Instance and every adapter and
// device created from it share.
type Config struct {
	// Engine compiles and runs shaders. When nil, EngineName is looked up in
	// the engine registry, and when that is empty the registry's default is
	// used.
	Engine engine.Engine

	// EngineName selects a registered engine by name.
	EngineName string

	// Limits is the static limit table reported by adapters and devices.
	Limits gputypes.Limits

	// Features is the static feature table reported by adapters and devices.
	Features Features

	// UncapturedErrorHandler receives GPU errors no error scope captured.
	UncapturedErrorHandler func(GPUError)
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return Config{
		Limits:   DefaultLimits(),
		Features: DefaultFeatures(),
	}
}

// WithEngine sets the shader engine directly, bypassing the registry.
func WithEngine(e engine.Engine) Option {
	return func(c *Config) {
		c.Engine = e
	}
}

// WithEngineName selects a registered engine by name.
func WithEngineName(name string) Option {
	return func(c *Config) {
		c.EngineName = name
	}
}

// WithLimits replaces the limit table.
func WithLimits(l gputypes.Limits) Option {
	return func(c *Config) {
		c.Limits = l
	}
}

// WithFeatures replaces the feature table.
func WithFeatures(names ...FeatureName) Option {
	return func(c *Config) {
		c.Features = Features(names)
	}
}

// WithUncapturedErrorHandler installs the default handler for uncaptured
// GPU errors on every device created from the instance.
func WithUncapturedErrorHandler(h func(GPUError)) Option {
	return func(c *Config) {
		c.UncapturedErrorHandler = h
	}
}

// resolveEngine fills in c.Engine from the registry.
func (c *Config) resolveEngine() error {
	if c.Engine != nil {
		return nil
	}
	if c.EngineName != "" {
		e, err := engine.Lookup(c.EngineName)
		if err != nil {
			return err
		}
		c.Engine = e
		return nil
	}
	c.Engine = engine.Default()
	if c.Engine == nil {
		return ErrNoEngine
	}
	return nil
}
