package software

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal/software/shader"
)

// program is a WGSL module compiled for the SPIR-V interpreter.
type program struct {
	module *shader.Module
	words  int
}

// buildProgram compiles code to SPIR-V and parses it for interpretation.
func buildProgram(code string) (*program, error) {
	spirv, err := naga.Compile(code)
	if err != nil {
		return nil, fmt.Errorf("software: compile: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("software: compile: SPIR-V length %d is not word aligned", len(spirv))
	}

	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}

	mod, err := shader.ParseModule(words)
	if err != nil {
		return nil, fmt.Errorf("software: load SPIR-V: %w", err)
	}
	return &program{module: mod, words: len(words)}, nil
}

// hasEntryPoint reports whether the program declares the named entry point.
func (p *program) hasEntryPoint(name string) bool {
	_, ok := p.module.EntryPoints[name]
	return ok
}

// workgroupSize returns the declared local size of an entry point.
func (p *program) workgroupSize(name string) [3]uint32 {
	return p.module.GetWorkgroupSize(name)
}
