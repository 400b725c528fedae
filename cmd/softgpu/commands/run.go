package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/softgpu"
	"github.com/gogpu/softgpu/backend/software"
	"github.com/gogpu/softgpu/internal/job"
)

var runCmd = &cobra.Command{
	Use:   "run JOB",
	Short: "Run a compute job file",
	Long: `Run the compute dispatch described by a YAML or TOML job file.

The job names a WGSL shader, the workgroup counts and the storage buffers
to bind. Buffers marked as output are printed after the dispatch; buffers
with an image section are also saved as RGBA8 images (.png, .bmp, .tif).`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

type bufferResult struct {
	Name    string   `json:"name"`
	Group   uint32   `json:"group"`
	Binding uint32   `json:"binding"`
	Type    string   `json:"type"`
	Values  []string `json:"values"`
}

// boundBuffer pairs a job buffer with its device buffer and, for outputs,
// the staging buffer it is copied into.
type boundBuffer struct {
	desc    *job.Buffer
	buffer  *softgpu.Buffer
	staging *softgpu.Buffer
}

func runJob(cmd *cobra.Command, args []string) error {
	j, err := job.Load(args[0])
	if err != nil {
		return err
	}
	code, err := j.Source()
	if err != nil {
		return err
	}

	device, err := openDevice()
	if err != nil {
		return err
	}
	defer device.Destroy()

	label := j.Name
	if label == "" {
		label = args[0]
	}
	module, err := compileSource(device, label, code)
	if err != nil {
		return err
	}
	pipeline, err := computePipeline(cmd, device, module, j.EntryPoint)
	if err != nil {
		return err
	}

	bound, err := createBuffers(device, j)
	if err != nil {
		return err
	}
	groups, err := createBindGroups(device, pipeline, bound)
	if err != nil {
		return err
	}

	if err := dispatch(device, pipeline, groups, bound, j); err != nil {
		return err
	}

	results, err := readOutputs(j, bound)
	if err != nil {
		return err
	}
	return printResults(cmd, results)
}

func createBuffers(device *softgpu.Device, j *job.Job) ([]boundBuffer, error) {
	bound := make([]boundBuffer, 0, len(j.Buffers))
	for i := range j.Buffers {
		desc := &j.Buffers[i]
		data, err := desc.Contents()
		if err != nil {
			return nil, err
		}
		buf, err := device.CreateBufferInit(desc.Label(),
			gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst, data)
		if err != nil {
			return nil, fmt.Errorf("buffer %s: %w", desc.Label(), err)
		}

		b := boundBuffer{desc: desc, buffer: buf}
		if desc.Output || desc.Image != nil {
			b.staging, err = device.CreateBuffer(&gputypes.BufferDescriptor{
				Label: desc.Label() + " staging",
				Size:  buf.Size(),
				Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
			})
			if err != nil {
				return nil, fmt.Errorf("buffer %s: %w", desc.Label(), err)
			}
		}
		bound = append(bound, b)
	}
	return bound, nil
}

// createBindGroups builds one bind group per group index used by the job,
// against the pipeline's inferred layouts.
func createBindGroups(device *softgpu.Device, pipeline *softgpu.ComputePipeline, bound []boundBuffer) (map[uint32]*softgpu.BindGroup, error) {
	byGroup := make(map[uint32][]softgpu.BindGroupEntry)
	for _, b := range bound {
		byGroup[b.desc.Group] = append(byGroup[b.desc.Group], softgpu.BindGroupEntry{
			Binding:  b.desc.Binding,
			Resource: softgpu.BufferBinding{Buffer: b.buffer},
		})
	}

	groups := make(map[uint32]*softgpu.BindGroup, len(byGroup))
	for _, g := range slices.Sorted(maps.Keys(byGroup)) {
		bgl, err := pipeline.GetBindGroupLayout(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
		group, err := device.CreateBindGroup(&softgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("group %d", g),
			Layout:  bgl,
			Entries: byGroup[g],
		})
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
		groups[g] = group
	}
	return groups, nil
}

// dispatch records the compute pass and the staging copies, submits them and
// returns the first internal error the device reported.
func dispatch(device *softgpu.Device, pipeline *softgpu.ComputePipeline, groups map[uint32]*softgpu.BindGroup, bound []boundBuffer, j *job.Job) error {
	if err := device.PushErrorScope(softgpu.ErrorFilterInternal); err != nil {
		return err
	}
	start := time.Now()
	recordErr := record(device, pipeline, groups, bound, j)
	gpuErr, popErr := device.PopErrorScope()
	if err := errors.Join(recordErr, popErr); err != nil {
		return err
	}
	if gpuErr != nil {
		return gpuErr
	}

	x, y, z := j.Counts()
	log := softgpu.Logger()
	log.Info("dispatch complete",
		"workgroups", fmt.Sprintf("%dx%dx%d", x, y, z),
		"elapsed", time.Since(start))
	if e, ok := device.Engine().(*software.Engine); ok {
		s := e.CacheStats()
		log.Debug("program cache", "len", s.Len, "hits", s.Hits, "misses", s.Misses)
	}
	return nil
}

func record(device *softgpu.Device, pipeline *softgpu.ComputePipeline, groups map[uint32]*softgpu.BindGroup, bound []boundBuffer, j *job.Job) error {
	encoder, err := device.CreateCommandEncoder(&softgpu.CommandEncoderDescriptor{Label: j.Name})
	if err != nil {
		return err
	}
	pass, err := encoder.BeginComputePass(nil)
	if err != nil {
		return err
	}
	if err := pass.SetPipeline(pipeline); err != nil {
		return err
	}
	for g, group := range groups {
		if err := pass.SetBindGroup(g, group, nil); err != nil {
			return err
		}
	}
	if err := pass.DispatchWorkgroups(j.Counts()); err != nil {
		return err
	}
	if err := pass.End(); err != nil {
		return err
	}

	for _, b := range bound {
		if b.staging == nil {
			continue
		}
		if err := encoder.CopyBufferToBuffer(b.buffer, 0, b.staging, 0, softgpu.WholeSize); err != nil {
			return fmt.Errorf("buffer %s: %w", b.desc.Label(), err)
		}
	}

	cb, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	device.Queue().Submit(cb)
	return nil
}

// readOutputs maps each staging buffer, decodes output buffers and saves
// image dumps.
func readOutputs(j *job.Job, bound []boundBuffer) ([]bufferResult, error) {
	var results []bufferResult
	for _, b := range bound {
		if b.staging == nil {
			continue
		}
		data, err := readStaging(b.staging)
		if err != nil {
			return nil, fmt.Errorf("buffer %s: %w", b.desc.Label(), err)
		}
		if img := b.desc.Image; img != nil {
			if err := saveImage(j.ImagePath(img), img.Width, img.Height, data); err != nil {
				return nil, fmt.Errorf("buffer %s: %w", b.desc.Label(), err)
			}
		}
		if b.desc.Output {
			results = append(results, bufferResult{
				Name:    b.desc.Label(),
				Group:   b.desc.Group,
				Binding: b.desc.Binding,
				Type:    string(b.desc.Type),
				Values:  b.desc.Type.Decode(data),
			})
		}
	}
	return results, nil
}

func readStaging(staging *softgpu.Buffer) ([]byte, error) {
	if err := staging.Map(gputypes.MapModeRead, 0, softgpu.WholeSize); err != nil {
		return nil, err
	}
	mapped, err := staging.GetMappedRange(0, softgpu.WholeSize)
	if err != nil {
		return nil, err
	}
	data := slices.Clone(mapped)
	if err := staging.Unmap(); err != nil {
		return nil, err
	}
	return data, nil
}

func printResults(cmd *cobra.Command, results []bufferResult) error {
	w := cmd.OutOrStdout()
	if jsonOutput() {
		if results == nil {
			results = []bufferResult{}
		}
		return writeJSON(w, results)
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s (%s, %d values): %s\n", r.Name, r.Type, len(r.Values), strings.Join(r.Values, " "))
	}
	return nil
}
