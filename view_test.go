package texcache

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/texcache/internal/memhal"
)

func TestCreateViewCaches(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := mustSurface(t, m, 0x1000, params2D(FormatRGBA8, 16, 16, 2))

	vp := ViewParams{Target: Target2D, NumLayers: 1, BaseLevel: 1, NumLevels: 1}
	a, err := s.CreateView(vp)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.CreateView(vp)
	if a != b {
		t.Error("equal view params returned different views")
	}
	if a.Width() != 8 || a.Height() != 8 {
		t.Errorf("level 1 view is %dx%d, want 8x8", a.Width(), a.Height())
	}
	main, _ := s.MainView()
	if main == a || !main.IsSameSurface(a) {
		t.Error("main view should differ from the level view but share the surface")
	}
	if _, err := s.CreateView(ViewParams{Target: Target2D, NumLayers: 2, NumLevels: 1}); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Errorf("CreateView(out of range) = %v", err)
	}
}

func TestGetHandleSwizzleCache(t *testing.T) {
	m, dev, _ := newTestManager(t)
	s := mustSurface(t, m, 0x1000, params2D(FormatRGBA8, 16, 16, 2))
	v, _ := s.CreateView(ViewParams{Target: Target2D, NumLayers: 1, BaseLevel: 1, NumLevels: 1})

	id1, err := v.Handle()
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := v.Handle()
	if id1 != id2 {
		t.Error("identity handle not cached")
	}
	if got := dev.Stats().ViewsCreated; got != 1 {
		t.Errorf("ViewsCreated = %d, want 1", got)
	}

	bgra, err := v.GetHandle(SwizzleB, SwizzleG, SwizzleR, SwizzleA)
	if err != nil {
		t.Fatal(err)
	}
	if bgra == id1 || bgra.Swizzle != (Swizzle{SwizzleB, SwizzleG, SwizzleR, SwizzleA}) {
		t.Errorf("swizzled handle = %+v", bgra)
	}
	if again, _ := v.Handle(); again != id1 {
		t.Error("identity handle evicted by swizzled request")
	}
	if got := dev.Stats().ViewsCreated; got != 2 {
		t.Errorf("ViewsCreated = %d, want 2", got)
	}

	desc := id1.View.(*memhal.TextureView).Desc
	if desc.BaseMipLevel != 1 || desc.MipLevelCount != 1 || desc.Dimension != gputypes.TextureViewDimension2D {
		t.Errorf("native view descriptor = %+v", desc)
	}

	if _, err := v.GetHandle(SwizzleA+1, 0, 0, 0); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Errorf("invalid swizzle = %v", err)
	}
}

func TestBufferView(t *testing.T) {
	m, _, _ := newTestManager(t)
	p := params2D(FormatRGB8, 16, 16, 2)
	s := mustSurface(t, m, 0x1000, p)
	main, _ := s.MainView()

	if !main.IsBufferView() {
		t.Fatal("RGB8 view is not a buffer view")
	}
	if _, err := main.Handle(); !errors.Is(err, ErrBufferView) {
		t.Errorf("Handle() on buffer view = %v, want ErrBufferView", err)
	}
	bv, err := main.BufferView()
	if err != nil {
		t.Fatal(err)
	}
	if bv.Offset != 0 || bv.Size != p.SizeInBytes() || bv.Buffer != s.Buffer() {
		t.Errorf("main buffer view = %+v", bv)
	}

	lvl, _ := s.CreateView(ViewParams{Target: Target2D, NumLayers: 1, BaseLevel: 1, NumLevels: 1})
	bv, _ = lvl.BufferView()
	if bv.Offset != p.LevelSize(0) || bv.Size != p.LevelSize(1) {
		t.Errorf("level 1 buffer view = %+v", bv)
	}

	img := mustSurface(t, m, 0x2000, params2D(FormatRGBA8, 8, 8, 1))
	iv, _ := img.MainView()
	if _, err := iv.BufferView(); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Errorf("BufferView() on image view = %v", err)
	}
}

func TestViewAfterDestroy(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := mustSurface(t, m, 0x1000, params2D(FormatRGBA8, 8, 8, 1))
	v, _ := s.MainView()
	if _, err := v.Handle(); err != nil {
		t.Fatal(err)
	}
	s.Destroy()

	if _, err := v.Handle(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("Handle() after Destroy = %v", err)
	}
	if _, err := s.CreateView(ViewParams{Target: Target2D, NumLayers: 1, NumLevels: 1}); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Errorf("CreateView() after Destroy = %v", err)
	}
}
