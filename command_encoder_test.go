package softgpu

import (
	"bytes"
	"errors"
	"testing"
)

// =============================================================================
// CopyBufferToBuffer Tests
// =============================================================================

func TestCopyBufferToBuffer(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	src := newTestBuffer(t, d, u32Bytes(1, 2, 3, 4))
	dst := newTestBuffer(t, d, make([]byte, 16))
	enc, _ := d.CreateCommandEncoder(&CommandEncoderDescriptor{Label: "enc"})

	if err := enc.CopyBufferToBuffer(src, 4, dst, 8, 8); err != nil {
		t.Fatalf("CopyBufferToBuffer() error = %v", err)
	}
	// The copy runs at record time.
	if got := readAll(t, dst); !bytes.Equal(got, u32Bytes(0, 0, 2, 3)) {
		t.Errorf("dst = %v", got)
	}

	cb, err := enc.Finish(nil)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	cmds := cb.Commands()
	if len(cmds) != 1 {
		t.Fatalf("len(Commands()) = %d, want 1", len(cmds))
	}
	cp, ok := cmds[0].(*BufferCopy)
	if !ok {
		t.Fatalf("command = %T, want *BufferCopy", cmds[0])
	}
	want := BufferCopy{Source: src, SourceOffset: 4, Destination: dst, DestinationOffset: 8, Size: 8}
	if *cp != want {
		t.Errorf("BufferCopy = %+v, want %+v", *cp, want)
	}
	if cb.Label() != "enc" {
		t.Errorf("Label() = %q, want %q", cb.Label(), "enc")
	}
}

func TestCopyBufferToBufferWholeSize(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	src := newTestBuffer(t, d, u32Bytes(1, 2, 3, 4))
	dst := newTestBuffer(t, d, make([]byte, 16))
	enc, _ := d.CreateCommandEncoder(nil)

	if err := enc.CopyBufferToBuffer(src, 8, dst, 0, WholeSize); err != nil {
		t.Fatalf("CopyBufferToBuffer() error = %v", err)
	}
	if got := readAll(t, dst); !bytes.Equal(got, u32Bytes(3, 4, 0, 0)) {
		t.Errorf("dst = %v", got)
	}
}

func TestCopyBufferToBufferErrors(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	src := newTestBuffer(t, d, make([]byte, 16))
	dst := newTestBuffer(t, d, make([]byte, 8))

	tests := []struct {
		name      string
		src, dst  *Buffer
		srcOffset uint64
		dstOffset uint64
		size      uint64
		wantErr   error
	}{
		{"nil source", nil, dst, 0, 0, 4, ErrNilBuffer},
		{"nil destination", src, nil, 0, 0, 4, ErrNilBuffer},
		{"same buffer", src, src, 0, 8, 4, ErrCopySameBuffer},
		{"source offset unaligned", src, dst, 2, 0, 4, ErrCopyOffsetNotAligned},
		{"destination offset unaligned", src, dst, 0, 1, 4, ErrCopyOffsetNotAligned},
		{"size unaligned", src, dst, 0, 0, 3, ErrCopySizeNotAligned},
		{"source out of bounds", src, dst, 12, 0, 8, ErrCopyRangeOutOfBounds},
		{"destination out of bounds", src, dst, 0, 4, 8, ErrCopyRangeOutOfBounds},
		{"whole size offset past end", src, dst, 20, 0, WholeSize, ErrCopyRangeOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, _ := d.CreateCommandEncoder(nil)
			err := enc.CopyBufferToBuffer(tt.src, tt.srcOffset, tt.dst, tt.dstOffset, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CopyBufferToBuffer() error = %v, want %v", err, tt.wantErr)
			}
			cb, _ := enc.Finish(nil)
			if n := len(cb.Commands()); n != 0 {
				t.Errorf("failed copy recorded %d commands", n)
			}
		})
	}
}

func TestCopyBufferToBufferDestroyed(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	src := newTestBuffer(t, d, make([]byte, 8))
	dst := newTestBuffer(t, d, make([]byte, 8))
	src.Destroy()

	enc, _ := d.CreateCommandEncoder(nil)
	if err := enc.CopyBufferToBuffer(src, 0, dst, 0, 8); !errors.Is(err, ErrBufferDestroyed) {
		t.Errorf("CopyBufferToBuffer() error = %v, want %v", err, ErrBufferDestroyed)
	}
}

// =============================================================================
// ClearBuffer Tests
// =============================================================================

func TestClearBuffer(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	buf := newTestBuffer(t, d, u32Bytes(1, 2, 3, 4))
	enc, _ := d.CreateCommandEncoder(nil)

	if err := enc.ClearBuffer(buf, 4, WholeSize); err != nil {
		t.Fatalf("ClearBuffer() error = %v", err)
	}
	if got := readAll(t, buf); !bytes.Equal(got, u32Bytes(1, 0, 0, 0)) {
		t.Errorf("contents = %v", got)
	}
	if err := enc.ClearBuffer(buf, 2, 4); !errors.Is(err, ErrCopyOffsetNotAligned) {
		t.Errorf("unaligned offset error = %v, want %v", err, ErrCopyOffsetNotAligned)
	}
	if err := enc.ClearBuffer(buf, 0, 6); !errors.Is(err, ErrCopySizeNotAligned) {
		t.Errorf("unaligned size error = %v, want %v", err, ErrCopySizeNotAligned)
	}
	if err := enc.ClearBuffer(buf, 8, 16); !errors.Is(err, ErrCopyRangeOutOfBounds) {
		t.Errorf("out of bounds error = %v, want %v", err, ErrCopyRangeOutOfBounds)
	}
	if err := enc.ClearBuffer(nil, 0, 4); !errors.Is(err, ErrNilBuffer) {
		t.Errorf("nil buffer error = %v, want %v", err, ErrNilBuffer)
	}

	cb, _ := enc.Finish(nil)
	cmds := cb.Commands()
	if len(cmds) != 1 {
		t.Fatalf("len(Commands()) = %d, want 1", len(cmds))
	}
	if c, ok := cmds[0].(*BufferClear); !ok || c.Offset != 4 || c.Size != 12 {
		t.Errorf("command = %+v, want clear of [4, 16)", cmds[0])
	}
}

// =============================================================================
// Encoder State Tests
// =============================================================================

func TestCommandEncoderOrder(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	buf := newTestBuffer(t, d, make([]byte, 8))
	enc, _ := d.CreateCommandEncoder(nil)

	cp, _ := enc.BeginComputePass(nil)
	_ = enc.ClearBuffer(buf, 0, WholeSize)
	rp, _ := enc.BeginRenderPass(nil)

	cb, err := enc.Finish(&CommandBufferDescriptor{Label: "cb"})
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	cmds := cb.Commands()
	if len(cmds) != 3 {
		t.Fatalf("len(Commands()) = %d, want 3", len(cmds))
	}
	if cmds[0] != cp || cmds[2] != rp {
		t.Errorf("Commands() = %v, want passes in begin order", cmds)
	}
	if _, ok := cmds[1].(*BufferClear); !ok {
		t.Errorf("Commands()[1] = %T, want *BufferClear", cmds[1])
	}
	if cb.Label() != "cb" {
		t.Errorf("Label() = %q, want %q", cb.Label(), "cb")
	}
}

func TestCommandEncoderFinished(t *testing.T) {
	d := newTestDevice(t, &fakeEngine{})
	buf := newTestBuffer(t, d, make([]byte, 8))
	other := newTestBuffer(t, d, make([]byte, 8))
	enc, _ := d.CreateCommandEncoder(nil)
	if _, err := enc.Finish(nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	calls := map[string]func() error{
		"Finish": func() error {
			_, err := enc.Finish(nil)
			return err
		},
		"BeginComputePass": func() error {
			_, err := enc.BeginComputePass(nil)
			return err
		},
		"BeginRenderPass": func() error {
			_, err := enc.BeginRenderPass(nil)
			return err
		},
		"CopyBufferToBuffer": func() error { return enc.CopyBufferToBuffer(buf, 0, other, 0, 4) },
		"ClearBuffer":        func() error { return enc.ClearBuffer(buf, 0, 4) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrEncoderFinished) {
			t.Errorf("%s() error = %v, want %v", name, err, ErrEncoderFinished)
		}
	}
}

func TestCommandEncoderUnsupported(t *testing.T) {
	enc := &CommandEncoder{}
	for name, err := range map[string]error{
		"CopyBufferToTexture":  enc.CopyBufferToTexture(),
		"CopyTextureToBuffer":  enc.CopyTextureToBuffer(),
		"CopyTextureToTexture": enc.CopyTextureToTexture(),
		"ResolveQuerySet":      enc.ResolveQuerySet(),
		"PushDebugGroup":       enc.PushDebugGroup("g"),
		"PopDebugGroup":        enc.PopDebugGroup(),
		"InsertDebugMarker":    enc.InsertDebugMarker("m"),
	} {
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("%s() error = %v, want ErrNotImplemented", name, err)
		}
	}
}
