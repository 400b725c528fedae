package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlJob = `
name: double
shader: double.wgsl
entry_point: main
workgroups: [4, 2]
buffers:
  - name: input
    binding: 0
    init: "1, 2, 3, 4"
  - name: output
    binding: 1
    type: f32
    size: 16
    output: true
    image:
      width: 2
      height: 2
      path: out.bmp
`

const tomlJob = `
name = "double"
shader = "double.wgsl"
entry_point = "main"
workgroups = [4, 2]

[[buffers]]
name = "input"
binding = 0
init = "1, 2, 3, 4"

[[buffers]]
name = "output"
binding = 1
type = "f32"
size = 16
output = true

[buffers.image]
width = 2
height = 2
path = "out.bmp"
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAMLAndTOMLAgree(t *testing.T) {
	dir := t.TempDir()
	fromYAML, err := Load(writeFile(t, dir, "job.yaml", yamlJob))
	require.NoError(t, err)
	fromTOML, err := Load(writeFile(t, dir, "job.toml", tomlJob))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromTOML)
	assert.Equal(t, U32, fromYAML.Buffers[0].Type, "type defaults to u32")
	require.NotNil(t, fromYAML.Buffers[1].Image)
	assert.Equal(t, filepath.Join(dir, "out.bmp"), fromYAML.ImagePath(fromYAML.Buffers[1].Image))
}

func TestMarshalRoundTrip(t *testing.T) {
	j, err := Parse([]byte(yamlJob), ".yaml")
	require.NoError(t, err)

	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			data, err := j.Marshal(ext)
			require.NoError(t, err)
			back, err := Parse(data, ext)
			require.NoError(t, err)
			assert.Equal(t, j, back)
		})
	}

	_, err = j.Marshal(".json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "double.wgsl", "fn main() {}")

	j, err := Load(writeFile(t, dir, "job.yml", yamlJob))
	require.NoError(t, err)
	src, err := j.Source()
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", src)

	inline := &Job{Code: "inline"}
	src, err = inline.Source()
	require.NoError(t, err)
	assert.Equal(t, "inline", src)

	missing := &Job{Shader: filepath.Join(dir, "missing.wgsl")}
	_, err = missing.Source()
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	tests := []struct {
		workgroups []uint32
		want       [3]uint32
	}{
		{nil, [3]uint32{1, 1, 1}},
		{[]uint32{8}, [3]uint32{8, 1, 1}},
		{[]uint32{8, 0}, [3]uint32{8, 0, 1}},
		{[]uint32{2, 3, 4}, [3]uint32{2, 3, 4}},
	}
	for _, tt := range tests {
		j := &Job{Workgroups: tt.workgroups}
		x, y, z := j.Counts()
		assert.Equal(t, tt.want, [3]uint32{x, y, z}, "%v", tt.workgroups)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ext     string
		wantErr error
	}{
		{"unknown format", "name: x", ".json", ErrUnknownFormat},
		{"no shader", "buffers: []", ".yaml", ErrNoShader},
		{"both shader and code", "shader: a.wgsl\ncode: x\n", ".yaml", ErrNoShader},
		{"too many workgroups", "code: x\nworkgroups: [1, 1, 1, 1]\n", ".yaml", ErrBadWorkgroups},
		{"duplicate binding", "code: x\nbuffers:\n  - {binding: 0, size: 4}\n  - {binding: 0, size: 4}\n", ".yaml", ErrDuplicateBinding},
		{"bad type", "code: x\nbuffers:\n  - {binding: 0, size: 4, type: u8}\n", ".yaml", ErrBadBuffer},
		{"unaligned size", "code: x\nbuffers:\n  - {binding: 0, size: 6}\n", ".yaml", ErrBadBuffer},
		{"empty buffer", "code: x\nbuffers:\n  - {binding: 0}\n", ".yaml", ErrBadBuffer},
		{"bad image", "code: x\nbuffers:\n  - {binding: 0, size: 4, image: {width: 1}}\n", ".yaml", ErrBadBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), tt.ext)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseUnknownFields(t *testing.T) {
	_, err := Parse([]byte("code: x\nbogus: 1\n"), ".yaml")
	assert.Error(t, err)
	_, err = Parse([]byte("code = \"x\"\nbogus = 1\n"), ".toml")
	assert.Error(t, err)
}

func TestBufferContents(t *testing.T) {
	b := Buffer{Binding: 0, Type: U32, Init: "1 2", Size: 12}
	data, err := b.Contents()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0}, data)

	b = Buffer{Type: U32, Init: "1 2 3", Size: 4}
	data, err = b.Contents()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, data, "init is truncated to size")

	b = Buffer{Name: "bad", Type: U32, Init: "x"}
	_, err = b.Contents()
	assert.ErrorContains(t, err, "buffer bad")
	assert.Equal(t, "g2.b3", (&Buffer{Group: 2, Binding: 3}).Label())
}
