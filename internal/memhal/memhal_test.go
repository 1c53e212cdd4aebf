package memhal

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func newEncoder(t *testing.T, d *Device) hal.CommandEncoder {
	t.Helper()
	enc, err := d.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "test"})
	if err != nil {
		t.Fatalf("CreateCommandEncoder: %v", err)
	}
	if err := enc.BeginEncoding("test"); err != nil {
		t.Fatalf("BeginEncoding: %v", err)
	}
	return enc
}

func submit(t *testing.T, q *Queue, enc hal.CommandEncoder) uint64 {
	t.Helper()
	cb, err := enc.EndEncoding()
	if err != nil {
		t.Fatalf("EndEncoding: %v", err)
	}
	idx, err := q.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return idx
}

func TestBufferCopyRunsAtSubmit(t *testing.T) {
	d, q := New()
	src, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: 8})
	dst, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: 8})
	copy(src.(*Buffer).Data(), "abcdefgh")

	enc := newEncoder(t, d)
	enc.CopyBufferToBuffer(src, dst, []hal.BufferCopy{{SrcOffset: 2, DstOffset: 0, Size: 4}})
	if got := dst.(*Buffer).Data()[:4]; !bytes.Equal(got, make([]byte, 4)) {
		t.Fatalf("copy ran before submit: %q", got)
	}
	if idx := submit(t, q, enc); idx != 1 {
		t.Errorf("submission index = %d, want 1", idx)
	}
	if got := string(dst.(*Buffer).Data()[:4]); got != "cdef" {
		t.Errorf("dst = %q, want %q", got, "cdef")
	}
}

func TestTextureRoundTripWithPaddedRows(t *testing.T) {
	d, q := New()
	tex, err := d.CreateTexture(&hal.TextureDescriptor{
		Size:          hal.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 2},
		MipLevelCount: 1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRG8Unorm,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	const stride = 16
	up, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: stride * 2 * 2})
	down, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: stride * 2 * 2})
	for i := range up.(*Buffer).Data() {
		up.(*Buffer).Data()[i] = byte(i)
	}
	region := hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: stride, RowsPerImage: 2},
		TextureBase:  hal.ImageCopyTexture{Texture: tex},
		Size:         hal.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 2},
	}

	enc := newEncoder(t, d)
	enc.CopyBufferToTexture(up, tex, []hal.BufferTextureCopy{region})
	enc.CopyTextureToBuffer(tex, down, []hal.BufferTextureCopy{region})
	submit(t, q, enc)

	layer1 := tex.(*Texture).Level(1, 0)
	if layer1[0] != 2*stride {
		t.Errorf("layer 1 first byte = %d, want %d", layer1[0], 2*stride)
	}
	for row := 0; row < 4; row++ {
		want := up.(*Buffer).Data()[row*stride : row*stride+8]
		got := down.(*Buffer).Data()[row*stride : row*stride+8]
		if !bytes.Equal(got, want) {
			t.Errorf("row %d = %v, want %v", row, got, want)
		}
	}
	if s := d.Stats(); s.Copies != 2 || s.Submits != 1 {
		t.Errorf("stats = %+v, want 2 copies, 1 submit", s)
	}
}

func TestBudget(t *testing.T) {
	d, _ := New()
	d.SetBudget(100)
	b, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 64})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if _, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 64}); !errors.Is(err, hal.ErrDeviceOutOfMemory) {
		t.Fatalf("over budget err = %v, want ErrDeviceOutOfMemory", err)
	}
	d.DestroyBuffer(b)
	if d.Allocated() != 0 {
		t.Errorf("Allocated = %d after destroy, want 0", d.Allocated())
	}
	if _, err := d.CreateBuffer(&hal.BufferDescriptor{Size: 64}); err != nil {
		t.Errorf("CreateBuffer after release: %v", err)
	}
}

func TestMapBuffer(t *testing.T) {
	d, _ := New()
	b, _ := d.CreateBuffer(&hal.BufferDescriptor{Size: 16, MappedAtCreation: true})
	m, err := d.MapBuffer(b, 4, 8)
	if err != nil {
		t.Fatalf("MapBuffer: %v", err)
	}
	copy(unsafe.Slice((*byte)(m.Ptr), 8), "12345678")
	if err := d.UnmapBuffer(b); err != nil {
		t.Fatalf("UnmapBuffer: %v", err)
	}
	if got := string(b.(*Buffer).Data()[4:12]); got != "12345678" {
		t.Errorf("data = %q", got)
	}
	if _, err := d.MapBuffer(b, 12, 8); !errors.Is(err, hal.ErrInvalidMapRange) {
		t.Errorf("out of range map err = %v", err)
	}
}

func TestAutoComplete(t *testing.T) {
	d, q := New()
	q.SetAutoComplete(false)
	enc := newEncoder(t, d)
	idx := submit(t, q, enc)
	if q.PollCompleted() >= idx {
		t.Fatalf("PollCompleted = %d before Complete", q.PollCompleted())
	}
	q.Complete()
	if q.PollCompleted() != idx {
		t.Errorf("PollCompleted = %d, want %d", q.PollCompleted(), idx)
	}
}

func TestDrawWithoutPipelineFails(t *testing.T) {
	d, q := New()
	enc := newEncoder(t, d)
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{})
	pass.Draw(3, 1, 0, 0)
	pass.End()
	cb, _ := enc.EndEncoding()
	if _, err := q.Submit([]hal.CommandBuffer{cb}); err == nil {
		t.Error("Submit succeeded for draw without pipeline")
	}
	if d.Stats().Draws != 1 {
		t.Errorf("Draws = %d, want 1", d.Stats().Draws)
	}
}
