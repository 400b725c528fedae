// Package engine defines the boundary between a softgpu device and the shader
// engine that compiles, reflects and executes shader source.
//
// A device never inspects shader code itself. Everything it needs crosses this
// boundary:
//
//   - Compile validates a set of source files rooted at one module.
//   - Reflect returns the module-scope declarations of a source text, used to
//     infer default pipeline layouts.
//   - Execute runs one compute entry point against a flat list of
//     (group, binding, kind, bytes) tuples and returns the updated tuples.
//
// Engines register themselves by name, typically from an init function in a
// backend package:
//
//	import _ "github.com/gogpu/softgpu/backend/software"
//
// after which [Default] returns the best registered engine.
package engine
