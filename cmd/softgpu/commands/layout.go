package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/softgpu"
)

var layoutEntry string

var layoutCmd = &cobra.Command{
	Use:   "layout FILE",
	Short: "Print the bind group layout inferred for a compute shader",
	Long: `Compile a WGSL file, create a compute pipeline with an automatic layout
and print the inferred bind group layouts.

Storage variables declared read-only map to read-only-storage bindings,
read-write variables to storage bindings and uniforms to uniform bindings.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayout,
}

func init() {
	layoutCmd.Flags().StringVarP(&layoutEntry, "entry", "e", "", "compute entry point (default: the first one)")
	rootCmd.AddCommand(layoutCmd)
}

type layoutBinding struct {
	Group      uint32 `json:"group"`
	Binding    uint32 `json:"binding"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
}

type layoutReport struct {
	EntryPoint string          `json:"entry_point"`
	Groups     int             `json:"groups"`
	Bindings   []layoutBinding `json:"bindings"`
}

func runLayout(cmd *cobra.Command, args []string) error {
	device, err := openDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	module, err := compileFile(device, args[0])
	if err != nil {
		return err
	}
	pipeline, err := computePipeline(cmd, device, module, layoutEntry)
	if err != nil {
		return err
	}

	groups := pipeline.Layout().BindGroupLayouts()
	report := layoutReport{EntryPoint: pipeline.EntryPoint(), Groups: len(groups)}
	for g, bgl := range groups {
		if bgl == nil {
			continue
		}
		for _, e := range bgl.Entries() {
			report.Bindings = append(report.Bindings, layoutBinding{
				Group:      uint32(g),
				Binding:    e.Binding,
				Type:       bindingType(e),
				Visibility: e.Visibility.String(),
			})
		}
	}

	w := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "entry point %s, %d bind group(s)\n", report.EntryPoint, report.Groups)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tBINDING\tTYPE\tVISIBILITY")
	for _, b := range report.Bindings {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", b.Group, b.Binding, b.Type, b.Visibility)
	}
	return tw.Flush()
}

// computePipeline creates a compute pipeline with an automatic layout.
// Compilation diagnostics are printed before failing.
func computePipeline(cmd *cobra.Command, device *softgpu.Device, module *softgpu.ShaderModule, entry string) (*softgpu.ComputePipeline, error) {
	if info := module.GetCompilationInfo(); info.HasErrors() {
		printMessages(cmd.ErrOrStderr(), module.Label(), info.Messages)
		return nil, errCompile
	}
	return device.CreateComputePipeline(&softgpu.ComputePipelineDescriptor{
		Label:   module.Label(),
		Layout:  softgpu.AutoLayout{},
		Compute: softgpu.ProgrammableStage{Module: module, EntryPoint: entry},
	})
}

func bindingType(e gputypes.BindGroupLayoutEntry) string {
	switch {
	case e.Buffer != nil:
		return e.Buffer.Type.String()
	case e.Sampler != nil:
		return "Sampler"
	case e.Texture != nil:
		return "Texture"
	case e.StorageTexture != nil:
		return "StorageTexture"
	}
	return "Uniform"
}
