// Package job reads compute job files for the softgpu CLI.
//
// A job names a WGSL shader (inline or by path), the workgroup counts to
// dispatch, and the buffers to bind. Jobs are written in YAML or TOML; the
// format is chosen by file extension.
//
// Example (YAML):
//
//	name: double
//	shader: double.wgsl
//	workgroups: [4]
//	buffers:
//	  - name: data
//	    binding: 0
//	    type: u32
//	    init: "1 2 3 4"
//	    output: true
package job

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Errors returned by Load and Validate.
var (
	// ErrUnknownFormat is returned for a file extension other than
	// .yaml, .yml or .toml.
	ErrUnknownFormat = errors.New("job: unknown file format")

	// ErrNoShader is returned when neither shader nor code is set, or both are.
	ErrNoShader = errors.New("job: exactly one of shader or code must be set")

	// ErrBadWorkgroups is returned for more than three workgroup counts.
	ErrBadWorkgroups = errors.New("job: workgroups takes at most three counts")

	// ErrDuplicateBinding is returned when two buffers share a group and binding.
	ErrDuplicateBinding = errors.New("job: duplicate buffer binding")

	// ErrBadBuffer is returned for a buffer with an invalid type or size.
	ErrBadBuffer = errors.New("job: invalid buffer")
)

// Job describes one compute dispatch.
type Job struct {
	Name       string   `yaml:"name,omitempty" toml:"name,omitempty"`
	Shader     string   `yaml:"shader,omitempty" toml:"shader,omitempty"`
	Code       string   `yaml:"code,omitempty" toml:"code,omitempty"`
	EntryPoint string   `yaml:"entry_point,omitempty" toml:"entry_point,omitempty"`
	Workgroups []uint32 `yaml:"workgroups,flow,omitempty" toml:"workgroups,omitempty"`
	Buffers    []Buffer `yaml:"buffers" toml:"buffers"`

	// dir resolves a relative Shader path.
	dir string
}

// Buffer is one storage buffer bound to the shader.
type Buffer struct {
	Name    string   `yaml:"name,omitempty" toml:"name,omitempty"`
	Group   uint32   `yaml:"group,omitempty" toml:"group,omitempty"`
	Binding uint32   `yaml:"binding" toml:"binding"`
	Type    ElemType `yaml:"type,omitempty" toml:"type,omitempty"`

	// Size is the buffer size in bytes. Zero sizes the buffer to Init.
	Size uint64 `yaml:"size,omitempty" toml:"size,omitempty"`

	// Init holds the initial values, separated by spaces or commas.
	Init string `yaml:"init,omitempty" toml:"init,omitempty"`

	// Output prints the buffer after the dispatch.
	Output bool `yaml:"output,omitempty" toml:"output,omitempty"`

	// Image additionally saves the buffer as an RGBA8 image.
	Image *Image `yaml:"image,omitempty" toml:"image,omitempty"`
}

// Image describes an RGBA8 image dump of a buffer.
type Image struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Path   string `yaml:"path" toml:"path"`
}

// Load reads and validates a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: %w", err)
	}
	j, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", path, err)
	}
	j.dir = filepath.Dir(path)
	return j, nil
}

// Parse decodes and validates a job. ext selects the format and includes
// the leading dot. Unknown fields are errors.
func Parse(data []byte, ext string) (*Job, error) {
	var j Job
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&j); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&j); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Marshal encodes the job in the format selected by ext.
func (j *Job) Marshal(ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(j)
	case ".toml":
		return toml.Marshal(j)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
}

// Validate checks the job for structural errors. Missing element types
// default to u32.
func (j *Job) Validate() error {
	if (j.Shader == "") == (j.Code == "") {
		return ErrNoShader
	}
	if len(j.Workgroups) > 3 {
		return ErrBadWorkgroups
	}

	type key struct{ group, binding uint32 }
	seen := make(map[key]bool, len(j.Buffers))
	for i := range j.Buffers {
		b := &j.Buffers[i]
		k := key{b.Group, b.Binding}
		if seen[k] {
			return fmt.Errorf("%w: group %d binding %d", ErrDuplicateBinding, b.Group, b.Binding)
		}
		seen[k] = true

		if b.Type == "" {
			b.Type = U32
		}
		if !b.Type.Valid() {
			return fmt.Errorf("%w %s: unknown type %q", ErrBadBuffer, b.Label(), string(b.Type))
		}
		if b.Size%elemSize != 0 {
			return fmt.Errorf("%w %s: size %d is not a multiple of 4", ErrBadBuffer, b.Label(), b.Size)
		}
		if b.Size == 0 && strings.TrimSpace(b.Init) == "" {
			return fmt.Errorf("%w %s: needs a size or init values", ErrBadBuffer, b.Label())
		}
		if img := b.Image; img != nil {
			if img.Width <= 0 || img.Height <= 0 || img.Path == "" {
				return fmt.Errorf("%w %s: image needs width, height and path", ErrBadBuffer, b.Label())
			}
		}
	}
	return nil
}

// Source returns the WGSL source, reading Shader relative to the job file.
func (j *Job) Source() (string, error) {
	if j.Code != "" {
		return j.Code, nil
	}
	path := j.Shader
	if !filepath.IsAbs(path) && j.dir != "" {
		path = filepath.Join(j.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("job: shader: %w", err)
	}
	return string(data), nil
}

// Counts returns the workgroup counts. Omitted dimensions are 1.
func (j *Job) Counts() (x, y, z uint32) {
	c := [3]uint32{1, 1, 1}
	copy(c[:], j.Workgroups)
	return c[0], c[1], c[2]
}

// ImagePath resolves an image path relative to the job file.
func (j *Job) ImagePath(img *Image) string {
	if filepath.IsAbs(img.Path) || j.dir == "" {
		return img.Path
	}
	return filepath.Join(j.dir, img.Path)
}

// Label names the buffer in messages.
func (b *Buffer) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("g%d.b%d", b.Group, b.Binding)
}

// Contents returns the initial buffer bytes: Init encoded as Type, padded
// with zeros or truncated to Size when Size is set.
func (b *Buffer) Contents() ([]byte, error) {
	data, err := b.Type.Encode(b.Init)
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", b.Label(), err)
	}
	if b.Size == 0 {
		return data, nil
	}
	out := make([]byte, b.Size)
	copy(out, data)
	return out, nil
}
