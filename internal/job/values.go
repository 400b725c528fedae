package job

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ElemType is the element type of a buffer, used to encode initial values
// and to decode results.
type ElemType string

// Element types. All are four bytes, little-endian.
const (
	U32 ElemType = "u32"
	I32 ElemType = "i32"
	F32 ElemType = "f32"
)

// elemSize is the byte width shared by every ElemType.
const elemSize = 4

// Valid reports whether t is a known element type.
func (t ElemType) Valid() bool {
	switch t {
	case U32, I32, F32:
		return true
	}
	return false
}

// Encode parses whitespace- or comma-separated values and returns their
// little-endian encoding. Integer values accept Go literal prefixes (0x, 0b,
// 0o) and underscores.
func (t ElemType) Encode(text string) ([]byte, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]byte, elemSize*len(fields))
	for i, f := range fields {
		bits, err := t.parse(f)
		if err != nil {
			return nil, fmt.Errorf("value %d %q: %w", i, f, err)
		}
		binary.LittleEndian.PutUint32(out[i*elemSize:], bits)
	}
	return out, nil
}

func (t ElemType) parse(s string) (uint32, error) {
	switch t {
	case U32:
		v, err := strconv.ParseUint(s, 0, 32)
		return uint32(v), err
	case I32:
		v, err := strconv.ParseInt(s, 0, 32)
		return uint32(int32(v)), err
	case F32:
		v, err := strconv.ParseFloat(s, 32)
		return math.Float32bits(float32(v)), err
	}
	return 0, fmt.Errorf("unknown element type %q", string(t))
}

// Decode formats data as values of type t. Trailing bytes that do not fill
// an element are ignored.
func (t ElemType) Decode(data []byte) []string {
	n := len(data) / elemSize
	out := make([]string, n)
	for i := range n {
		bits := binary.LittleEndian.Uint32(data[i*elemSize:])
		switch t {
		case I32:
			out[i] = strconv.FormatInt(int64(int32(bits)), 10)
		case F32:
			out[i] = strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32)
		default:
			out[i] = strconv.FormatUint(uint64(bits), 10)
		}
	}
	return out
}
