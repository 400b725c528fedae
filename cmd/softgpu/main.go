// Command softgpu compiles, inspects and runs WGSL compute shaders on the
// software WebGPU device.
package main

import (
	"os"

	"github.com/gogpu/softgpu/cmd/softgpu/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
