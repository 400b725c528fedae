// Package softgpu is a software implementation of the WebGPU compute API.
//
// Buffers live in host memory and every operation completes before it
// returns. Shader compilation, reflection and execution are delegated to a
// shader engine (see package engine); the default engine is registered by
// importing backend/software:
//
//	import (
//	    "github.com/gogpu/softgpu"
//	    _ "github.com/gogpu/softgpu/backend/software"
//	)
//
//	inst, err := softgpu.New()
//	adapter, err := inst.RequestAdapter(nil)
//	device, err := adapter.RequestDevice(nil)
//
// # Object model
//
// Device is the factory for buffers, layouts, bind groups, shader modules,
// pipelines and command encoders. Copies recorded on a CommandEncoder run
// immediately; a compute pass runs the shader when DispatchWorkgroups is
// called. Queue.Submit therefore has nothing left to do.
//
// # Errors
//
// Caller mistakes (dispatch without a pipeline, unmap without a mapped
// range, popping an empty error scope stack) are returned as errors wrapping
// the sentinel values of this package. Operations this implementation does
// not support return errors matching [ErrNotImplemented].
//
// Shader compilation failures and dispatch failures are never returned.
// They are routed to the device's error scopes as [GPUError] values, the way
// WebGPU reports them asynchronously. Errors no scope captures go to the
// handler set with [WithUncapturedErrorHandler] and to the Warn log.
//
// # Logging
//
// softgpu is silent by default. Call [SetLogger] to enable output.
//
// # Command line
//
// cmd/softgpu checks WGSL files, prints inferred layouts and runs compute
// jobs described in YAML or TOML files.
package softgpu
