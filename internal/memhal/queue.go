// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package memhal

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Queue runs command buffers synchronously on Submit.
type Queue struct {
	noop.Queue

	dev          *Device
	mu           sync.Mutex
	submitted    uint64
	completed    uint64
	autoComplete bool
}

var _ hal.Queue = (*Queue)(nil)

// SetAutoComplete controls whether submissions complete immediately.
// With auto-completion off, PollCompleted stays behind until Complete.
func (q *Queue) SetAutoComplete(on bool) {
	q.mu.Lock()
	q.autoComplete = on
	if on {
		q.completed = q.submitted
	}
	q.mu.Unlock()
}

// Complete marks every submission so far as completed.
func (q *Queue) Complete() {
	q.mu.Lock()
	q.completed = q.submitted
	q.mu.Unlock()
}

// Submit executes the recorded operations in order and returns the
// submission index.
func (q *Queue) Submit(buffers []hal.CommandBuffer) (uint64, error) {
	for _, b := range buffers {
		cb, ok := b.(*CommandBuffer)
		if !ok {
			return 0, fmt.Errorf("memhal: submit %T", b)
		}
		for _, op := range cb.ops {
			if err := op(); err != nil {
				return 0, err
			}
		}
	}
	q.dev.count(func(s *Stats) { s.Submits++ })

	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted++
	if q.autoComplete {
		q.completed = q.submitted
	}
	return q.submitted, nil
}

// PollCompleted returns the highest completed submission index.
func (q *Queue) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// WriteBuffer copies data into the buffer immediately.
func (q *Queue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*Buffer)
	if !ok {
		return fmt.Errorf("memhal: WriteBuffer to %T", buffer)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("memhal: WriteBuffer of %d bytes at %d outside %d-byte buffer",
			len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// WriteTexture copies data into the texture immediately.
func (q *Queue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	t, ok := dst.Texture.(*Texture)
	if !ok {
		return fmt.Errorf("memhal: WriteTexture to %T", dst.Texture)
	}
	src := &Buffer{data: data}
	return walkRows(src, t, hal.BufferTextureCopy{
		BufferLayout: *layout,
		TextureBase:  *dst,
		Size:         *size,
	}, func(buf, tex []byte) { copy(tex, buf) })
}
