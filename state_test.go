package texcache

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestTextureBarriersElideUnchanged(t *testing.T) {
	tr := newStateTracker(2, 3)

	b := tr.textureBarriers(nil, gputypes.TextureAspectAll, 0, 2, 0, 3, StateTransferDst)
	if len(b) != 2 {
		t.Fatalf("first transition: %d barriers, want one per layer", len(b))
	}
	for i, br := range b {
		if br.Range.BaseArrayLayer != uint32(i) || br.Range.MipLevelCount != 3 {
			t.Errorf("barrier %d range = %+v", i, br.Range)
		}
		if br.Usage.NewUsage != gputypes.TextureUsageCopyDst {
			t.Errorf("barrier %d new usage = %v", i, br.Usage.NewUsage)
		}
	}

	if b := tr.textureBarriers(nil, gputypes.TextureAspectAll, 0, 2, 0, 3, StateTransferDst); len(b) != 0 {
		t.Errorf("repeated transition recorded %d barriers", len(b))
	}
}

func TestTextureBarriersSplitRuns(t *testing.T) {
	tr := newStateTracker(2, 3)
	tr.textureBarriers(nil, gputypes.TextureAspectAll, 0, 2, 0, 3, StateTransferDst)
	tr.textureBarriers(nil, gputypes.TextureAspectAll, 0, 1, 1, 1, StateShaderRead)

	b := tr.textureBarriers(nil, gputypes.TextureAspectAll, 0, 2, 0, 3, StateShaderRead)
	want := []hal.TextureRange{
		{Aspect: gputypes.TextureAspectAll, BaseMipLevel: 0, MipLevelCount: 1, BaseArrayLayer: 0, ArrayLayerCount: 1},
		{Aspect: gputypes.TextureAspectAll, BaseMipLevel: 2, MipLevelCount: 1, BaseArrayLayer: 0, ArrayLayerCount: 1},
		{Aspect: gputypes.TextureAspectAll, BaseMipLevel: 0, MipLevelCount: 3, BaseArrayLayer: 1, ArrayLayerCount: 1},
	}
	if len(b) != len(want) {
		t.Fatalf("got %d barriers, want %d", len(b), len(want))
	}
	for i := range want {
		if b[i].Range != want[i] {
			t.Errorf("barrier %d range = %+v, want %+v", i, b[i].Range, want[i])
		}
	}
	if got := tr.state(0, 1); got != StateShaderRead {
		t.Errorf("state(0, 1) = %+v", got)
	}
}

func TestBufferBarrier(t *testing.T) {
	tr := newStateTracker(1, 1)
	b, ok := tr.bufferBarrier(nil, StateTransferSrc)
	if !ok {
		t.Fatal("first buffer transition elided")
	}
	if b.Usage.NewUsage != gputypes.BufferUsageCopySrc {
		t.Errorf("new usage = %v", b.Usage.NewUsage)
	}
	if _, ok := tr.bufferBarrier(nil, StateTransferSrc); ok {
		t.Error("repeated buffer transition not elided")
	}
}
