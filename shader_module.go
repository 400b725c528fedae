package softgpu

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/softgpu/engine"
)

// CompilationMessageType is the severity of a compilation message.
type CompilationMessageType int

const (
	// MessageTypeError marks a message that made compilation fail.
	MessageTypeError CompilationMessageType = iota
	// MessageTypeWarning marks a non-fatal finding.
	MessageTypeWarning
	// MessageTypeInfo marks an informational note.
	MessageTypeInfo
)

// String returns the WebGPU name of the message type.
func (t CompilationMessageType) String() string {
	switch t {
	case MessageTypeError:
		return "error"
	case MessageTypeWarning:
		return "warning"
	case MessageTypeInfo:
		return "info"
	default:
		return fmt.Sprintf("CompilationMessageType(%d)", int(t))
	}
}

// MarshalText encodes the type by name.
func (t CompilationMessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// CompilationMessage is one compiler finding. LineNum and LinePos are
// 1-based; Offset and Length are byte counts. All four are 0 when the
// finding could not be located in the source.
type CompilationMessage struct {
	Message string
	Type    CompilationMessageType
	LineNum uint64
	LinePos uint64
	Offset  uint64
	Length  uint64
}

// CompilationInfo holds the messages recorded when a module was compiled.
type CompilationInfo struct {
	Messages []CompilationMessage
}

// HasErrors reports whether any message is an error.
func (i CompilationInfo) HasErrors() bool {
	return slices.ContainsFunc(i.Messages, func(m CompilationMessage) bool {
		return m.Type == MessageTypeError
	})
}

// ShaderModule is WGSL source compiled once at creation.
//
// A module that failed to compile is still returned; its CompilationInfo
// carries the error and the device reports a *ValidationError.
type ShaderModule struct {
	label string
	code  string
	info  CompilationInfo

	// device is a non-owning back-reference used to route errors.
	device *Device
}

// CreateShaderModule compiles desc.Source with the device's engine.
//
// Only gputypes.ShaderSourceWGSL sources are supported.
//
// Returns an error if:
//   - the device has been destroyed
//   - desc or its source is nil
//   - the source is not WGSL (matches ErrNotImplemented)
func (d *Device) CreateShaderModule(desc *gputypes.ShaderModuleDescriptor) (*ShaderModule, error) {
	if err := d.checkAlive("create shader module"); err != nil {
		return nil, err
	}
	if desc == nil || desc.Source == nil {
		return nil, fmt.Errorf("create shader module: %w", ErrNilDescriptor)
	}

	var code string
	switch src := desc.Source.(type) {
	case gputypes.ShaderSourceWGSL:
		code = src.Code
	case *gputypes.ShaderSourceWGSL:
		if src == nil {
			return nil, fmt.Errorf("create shader module: %w", ErrNilDescriptor)
		}
		code = src.Code
	default:
		return nil, notImplemented(fmt.Sprintf("CreateShaderModule(%T)", src))
	}

	m := &ShaderModule{label: desc.Label, code: code, device: d}
	if err := d.engine.Compile(engine.SingleFile(code)); err != nil {
		msg := compilationMessage(code, err)
		m.info.Messages = []CompilationMessage{msg}
		Logger().Debug("softgpu: shader module failed to compile",
			"label", desc.Label,
			"line", msg.LineNum,
			"pos", msg.LinePos)
		d.reportError(&ValidationError{
			Message: fmt.Sprintf("shader module %q: %s", desc.Label, msg.Message),
		})
		return m, nil
	}

	Logger().Debug("softgpu: shader module created", "label", desc.Label, "bytes", len(code))
	return m, nil
}

// compilationMessage converts an engine error into a located message.
func compilationMessage(code string, err error) CompilationMessage {
	msg := CompilationMessage{Type: MessageTypeError, Message: err.Error()}

	ce, ok := engine.AsCompileError(err)
	if !ok {
		return msg
	}
	msg.Message = ce.Message
	span, ok := ce.FirstSpan()
	if !ok || span.Start < 0 || span.End > len(code) || span.Start > span.End {
		return msg
	}
	line, pos := lineAndPos(code, span.Start)
	msg.LineNum = line
	msg.LinePos = pos
	msg.Offset = uint64(span.Start)
	msg.Length = uint64(span.Len())
	return msg
}

// lineAndPos returns the 1-based line and byte column of offset.
func lineAndPos(code string, offset int) (line, pos uint64) {
	before := code[:offset]
	line = uint64(strings.Count(before, "\n")) + 1
	pos = uint64(offset - (strings.LastIndexByte(before, '\n') + 1) + 1)
	return line, pos
}

// Label returns the module's debug label.
func (m *ShaderModule) Label() string { return m.label }

// Code returns the WGSL source.
func (m *ShaderModule) Code() string { return m.code }

// GetCompilationInfo returns the messages recorded at creation. It never
// blocks.
func (m *ShaderModule) GetCompilationInfo() CompilationInfo {
	return CompilationInfo{Messages: slices.Clone(m.info.Messages)}
}
