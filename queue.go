package softgpu

import "fmt"

// Queue accepts command buffers. Work runs while it is recorded, so Submit
// only logs.
type Queue struct {
	device *Device
}

// Device returns the device that owns the queue.
func (q *Queue) Device() *Device { return q.device }

// Submit accepts command buffers. Their commands have already run.
func (q *Queue) Submit(buffers ...*CommandBuffer) {
	var commands int
	for _, cb := range buffers {
		if cb != nil {
			commands += len(cb.commands)
		}
	}
	Logger().Debug("softgpu: submit",
		"device", q.device.label,
		"command_buffers", len(buffers),
		"commands", commands)
}

// OnSubmittedWorkDone returns immediately: submitted work is always done.
func (q *Queue) OnSubmittedWorkDone() {}

// WriteBuffer copies data into buf at offset immediately.
//
// Returns an error if buf is nil or destroyed, offset or the data length is
// not 4-byte aligned, or the range is out of bounds.
func (q *Queue) WriteBuffer(buf *Buffer, offset uint64, data []byte) error {
	if err := q.device.checkAlive("write buffer"); err != nil {
		return err
	}
	if buf == nil {
		return fmt.Errorf("write buffer: %w", ErrNilBuffer)
	}
	if offset%4 != 0 {
		return fmt.Errorf("write buffer %q: %w: offset %d", buf.Label(), ErrCopyOffsetNotAligned, offset)
	}
	if len(data)%4 != 0 {
		return fmt.Errorf("write buffer %q: %w: size %d", buf.Label(), ErrCopySizeNotAligned, len(data))
	}
	if err := buf.write(offset, data); err != nil {
		return fmt.Errorf("write buffer %q: %w", buf.Label(), err)
	}
	return nil
}

// WriteTexture is not implemented.
func (q *Queue) WriteTexture() error {
	return notImplemented("WriteTexture")
}

// CopyExternalImageToTexture is not implemented.
func (q *Queue) CopyExternalImageToTexture() error {
	return notImplemented("CopyExternalImageToTexture")
}
