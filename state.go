// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Stage is a set of pipeline stages that a transition waits on or blocks.
type Stage uint32

// Pipeline stages.
const (
	StageTopOfPipe Stage = 1 << iota
	StageTransfer
	StageVertexShader
	StageFragmentShader
	StageComputeShader
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageHost
	StageAllCommands

	StageNone Stage = 0
)

// Access is a set of memory access kinds.
type Access uint32

// Memory accesses.
const (
	AccessTransferRead Access = 1 << iota
	AccessTransferWrite
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
	AccessHostRead
	AccessHostWrite

	AccessNone Access = 0
)

// Layout is the memory layout of an image subresource.
type Layout uint8

// Image layouts.
const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutTransferSrc
	LayoutTransferDst
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutDepthStencilReadOnly
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutGeneral:
		return "General"
	case LayoutTransferSrc:
		return "TransferSrc"
	case LayoutTransferDst:
		return "TransferDst"
	case LayoutShaderReadOnly:
		return "ShaderReadOnly"
	case LayoutColorAttachment:
		return "ColorAttachment"
	case LayoutDepthStencilAttachment:
		return "DepthStencilAttachment"
	case LayoutDepthStencilReadOnly:
		return "DepthStencilReadOnly"
	default:
		return "Layout(?)"
	}
}

// textureUsage maps a layout to the HAL usage that barriers are expressed in.
func (l Layout) textureUsage() gputypes.TextureUsage {
	switch l {
	case LayoutGeneral:
		return gputypes.TextureUsageStorageBinding
	case LayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	case LayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	case LayoutShaderReadOnly, LayoutDepthStencilReadOnly:
		return gputypes.TextureUsageTextureBinding
	case LayoutColorAttachment, LayoutDepthStencilAttachment:
		return gputypes.TextureUsageRenderAttachment
	default:
		return gputypes.TextureUsageNone
	}
}

func (l Layout) bufferUsage() gputypes.BufferUsage {
	switch l {
	case LayoutTransferSrc:
		return gputypes.BufferUsageCopySrc
	case LayoutTransferDst:
		return gputypes.BufferUsageCopyDst
	case LayoutGeneral, LayoutShaderReadOnly:
		return gputypes.BufferUsageStorage
	default:
		return gputypes.BufferUsageNone
	}
}

// SyncState is the stage, access and layout a subresource was last
// transitioned to.
type SyncState struct {
	Stage  Stage
	Access Access
	Layout Layout
}

// Common states.
var (
	StateTransferSrc = SyncState{StageTransfer, AccessTransferRead, LayoutTransferSrc}
	StateTransferDst = SyncState{StageTransfer, AccessTransferWrite, LayoutTransferDst}
	StateShaderRead  = SyncState{StageFragmentShader, AccessShaderRead, LayoutShaderReadOnly}
	StateColorWrite  = SyncState{StageColorAttachmentOutput, AccessColorAttachmentWrite, LayoutColorAttachment}
)

// stateTracker records the sync state of every (layer, level) of a surface.
// Buffer-backed surfaces have a single subresource.
type stateTracker struct {
	numLevels uint32
	states    []SyncState
}

func newStateTracker(numLayers, numLevels uint32) *stateTracker {
	return &stateTracker{
		numLevels: numLevels,
		states:    make([]SyncState, numLayers*numLevels),
	}
}

func (t *stateTracker) at(layer, level uint32) *SyncState {
	return &t.states[layer*t.numLevels+level]
}

// textureBarriers updates the tracked range to next and returns one barrier
// per run of consecutive levels within a layer that shared the same prior
// state. Subresources already in next are skipped.
func (t *stateTracker) textureBarriers(tex hal.Texture, aspect gputypes.TextureAspect,
	baseLayer, numLayers, baseLevel, numLevels uint32, next SyncState,
) []hal.TextureBarrier {
	var barriers []hal.TextureBarrier
	for layer := baseLayer; layer < baseLayer+numLayers; layer++ {
		level := baseLevel
		for level < baseLevel+numLevels {
			prev := *t.at(layer, level)
			if prev == next {
				level++
				continue
			}
			start := level
			for level < baseLevel+numLevels && *t.at(layer, level) == prev {
				*t.at(layer, level) = next
				level++
			}
			barriers = append(barriers, hal.TextureBarrier{
				Texture: tex,
				Range: hal.TextureRange{
					Aspect:          aspect,
					BaseMipLevel:    start,
					MipLevelCount:   level - start,
					BaseArrayLayer:  layer,
					ArrayLayerCount: 1,
				},
				Usage: hal.TextureUsageTransition{
					OldUsage: prev.Layout.textureUsage(),
					NewUsage: next.Layout.textureUsage(),
				},
			})
		}
	}
	return barriers
}

// bufferBarrier updates the single buffer state. ok is false when the
// buffer is already in next.
func (t *stateTracker) bufferBarrier(buf hal.Buffer, next SyncState) (barrier hal.BufferBarrier, ok bool) {
	prev := t.states[0]
	if prev == next {
		return hal.BufferBarrier{}, false
	}
	t.states[0] = next
	return hal.BufferBarrier{
		Buffer: buf,
		Usage: hal.BufferUsageTransition{
			OldUsage: prev.Layout.bufferUsage(),
			NewUsage: next.Layout.bufferUsage(),
		},
	}, true
}

// reset returns every subresource to the undefined state.
func (t *stateTracker) reset() {
	clear(t.states)
}

func (t *stateTracker) state(layer, level uint32) SyncState {
	return *t.at(layer, level)
}
