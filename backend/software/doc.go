// Package software provides the default shader engine: WGSL is parsed,
// lowered and validated by gogpu/naga, compiled to SPIR-V, and executed on the
// CPU by the gogpu/wgpu SPIR-V interpreter.
//
// Importing the package registers the engine under the name "software":
//
//	import _ "github.com/gogpu/softgpu/backend/software"
//
// Compiled programs are cached by source digest, so repeated dispatches of the
// same pipeline compile once.
//
// The engine runs every invocation sequentially on the calling goroutine.
// Pipeline-overridable constants are not supported yet.
package software
