// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// ImageView is a native texture view plus the channel remap it was
// requested with. WebGPU views cannot swizzle, so shaders sampling the
// view apply Swizzle themselves (see Swizzle.Matrix).
type ImageView struct {
	View    hal.TextureView
	Swizzle Swizzle
}

// BufferView is the byte range of a buffer-backed surface covered by a View.
type BufferView struct {
	Buffer hal.Buffer
	Offset uint64
	Size   uint64
	Format PixelFormat
}

// View is a window onto a layer and level range of a Surface. It does not
// own memory: it is valid only while its Surface is alive, and Surface
// destruction releases every native view it created.
//
// Views cache one native view per distinct swizzle.
type View struct {
	surface *Surface
	params  ViewParams

	handles map[uint32]*ImageView
	lastKey uint32
	last    *ImageView

	destroyed bool
}

// CreateView returns the view of s covering vp. Equal parameters always
// return the same *View.
func (s *Surface) CreateView(vp ViewParams) (*View, error) {
	if s.destroyed {
		return nil, ErrSurfaceDestroyed
	}
	if v, ok := s.views[vp]; ok {
		return v, nil
	}
	if err := vp.validate(s.params); err != nil {
		return nil, err
	}
	v := &View{
		surface: s,
		params:  vp,
		handles: make(map[uint32]*ImageView),
	}
	s.views[vp] = v
	s.env.metrics.viewCreated()
	s.env.logger().Debug("texcache: view created",
		"addr", fmt.Sprintf("%#x", uint64(s.addr)), "target", vp.Target,
		"layers", [2]uint32{vp.BaseLayer, vp.NumLayers}, "levels", [2]uint32{vp.BaseLevel, vp.NumLevels})
	return v, nil
}

// MainView returns the view covering the whole surface.
func (s *Surface) MainView() (*View, error) {
	return s.CreateView(s.params.MainView())
}

// Surface returns the surface the view looks at.
func (v *View) Surface() *Surface { return v.surface }

// Params returns the view parameters.
func (v *View) Params() ViewParams { return v.params }

// Width returns the width of the view's base level.
func (v *View) Width() uint32 { return v.surface.params.MipWidth(v.params.BaseLevel) }

// Height returns the height of the view's base level.
func (v *View) Height() uint32 { return v.surface.params.MipHeight(v.params.BaseLevel) }

// IsBufferView reports whether the view aliases a buffer instead of an image.
func (v *View) IsBufferView() bool { return v.surface.IsBuffer() }

// IsSameSurface reports whether v and other look at the same Surface.
func (v *View) IsSameSurface(other *View) bool {
	return other != nil && v.surface == other.surface
}

// Handle returns the native view with identity swizzle.
func (v *View) Handle() (*ImageView, error) {
	return v.GetHandle(SwizzleIdentity, SwizzleIdentity, SwizzleIdentity, SwizzleIdentity)
}

// GetHandle returns the native view presenting the range remapped by the
// four selectors. Each distinct selector combination creates one native
// view, cached until the View is destroyed.
func (v *View) GetHandle(x, y, z, w SwizzleSource) (*ImageView, error) {
	if v.destroyed {
		return nil, ErrSurfaceDestroyed
	}
	if v.IsBufferView() {
		return nil, ErrBufferView
	}
	swz := Swizzle{x, y, z, w}
	key := swz.Key()
	if v.last != nil && v.lastKey == key {
		return v.last, nil
	}
	h, ok := v.handles[key]
	if !ok {
		if !swz.valid() {
			return nil, unsupported("swizzle", "%s", swz)
		}
		s := v.surface
		tv, err := s.env.device.CreateTextureView(s.texture, &hal.TextureViewDescriptor{
			Label:           fmt.Sprintf("texcache_view_%#x_%08x", uint64(s.addr), key),
			Format:          s.format,
			Dimension:       v.params.viewDimension(),
			Aspect:          s.aspect,
			BaseMipLevel:    v.params.BaseLevel,
			MipLevelCount:   v.params.NumLevels,
			BaseArrayLayer:  v.params.BaseLayer,
			ArrayLayerCount: v.params.NumLayers,
		})
		if err != nil {
			return nil, &ResourceAllocationError{Resource: "view", Err: err}
		}
		h = &ImageView{View: tv, Swizzle: swz}
		v.handles[key] = h
		s.env.metrics.handleCreated()
	}
	v.lastKey, v.last = key, h
	return h, nil
}

// BufferView returns the byte range of the view's layers and levels.
func (v *View) BufferView() (BufferView, error) {
	if v.destroyed {
		return BufferView{}, ErrSurfaceDestroyed
	}
	if !v.IsBufferView() {
		return BufferView{}, unsupported("buffer view", "surface is image backed")
	}
	p := v.surface.params
	start := p.LevelOffset(v.params.BaseLayer, v.params.BaseLevel)
	last := v.params.BaseLayer + v.params.NumLayers - 1
	end := p.LevelOffset(last, v.params.BaseLevel+v.params.NumLevels-1) +
		p.LevelSize(v.params.BaseLevel+v.params.NumLevels-1)
	return BufferView{
		Buffer: v.surface.buffer,
		Offset: start,
		Size:   end - start,
		Format: p.Format,
	}, nil
}

// Transition moves the view's range to the given state.
func (v *View) Transition(stage Stage, access Access, layout Layout) {
	if v.destroyed {
		return
	}
	v.surface.Transition(v.params.BaseLayer, v.params.NumLayers, v.params.BaseLevel, v.params.NumLevels,
		stage, access, layout)
}

// MarkAsModified marks the owning surface modified at tick.
func (v *View) MarkAsModified(tick uint64) {
	v.surface.MarkAsModified(tick)
}

func (v *View) destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	device := v.surface.env.device
	views := make([]hal.TextureView, 0, len(v.handles))
	for _, h := range v.handles {
		views = append(views, h.View)
	}
	if len(views) > 0 {
		v.surface.env.afterCurrentTick(func() {
			for _, tv := range views {
				device.DestroyTextureView(tv)
			}
		})
	}
	clear(v.handles)
	v.last = nil
}
