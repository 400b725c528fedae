package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/softgpu"
)

// errCompile is returned when at least one shader fails to compile. The
// diagnostics have already been printed.
var errCompile = errors.New("compilation failed")

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Compile WGSL files and report diagnostics",
	Long: `Compile each WGSL file with the configured shader engine and print its
compilation messages as FILE:LINE:COL: TYPE: MESSAGE.

Exits non-zero if any file has an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	File     string                       `json:"file"`
	Messages []softgpu.CompilationMessage `json:"messages"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	device, err := openDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	results := make([]checkResult, 0, len(args))
	failed := false
	for _, path := range args {
		module, err := compileFile(device, path)
		if err != nil {
			return err
		}
		info := module.GetCompilationInfo()
		failed = failed || info.HasErrors()
		results = append(results, checkResult{File: path, Messages: info.Messages})
	}

	w := cmd.OutOrStdout()
	if jsonOutput() {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printMessages(w, r.File, r.Messages)
			if len(r.Messages) == 0 {
				fmt.Fprintf(w, "%s: ok\n", r.File)
			}
		}
	}
	if failed {
		return errCompile
	}
	return nil
}

// compileFile reads and compiles a WGSL file.
func compileFile(device *softgpu.Device, path string) (*softgpu.ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compileSource(device, path, string(code))
}

// compileSource compiles WGSL code. Compilation errors are left in the
// module's compilation info rather than reported as uncaptured errors.
func compileSource(device *softgpu.Device, label, code string) (*softgpu.ShaderModule, error) {
	if err := device.PushErrorScope(softgpu.ErrorFilterValidation); err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&gputypes.ShaderModuleDescriptor{
		Label:  label,
		Source: gputypes.ShaderSourceWGSL{Code: code},
	})
	if _, popErr := device.PopErrorScope(); popErr != nil && err == nil {
		err = popErr
	}
	if err != nil {
		return nil, err
	}
	return module, nil
}

func printMessages(w io.Writer, file string, msgs []softgpu.CompilationMessage) {
	for _, m := range msgs {
		if m.LineNum > 0 {
			fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", file, m.LineNum, m.LinePos, m.Type, m.Message)
		} else {
			fmt.Fprintf(w, "%s: %s: %s\n", file, m.Type, m.Message)
		}
	}
}
