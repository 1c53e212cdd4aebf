package texcache

import (
	"context"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/texcache/internal/memhal"
)

// memProvider exposes an in-memory device the way a host window does.
type memProvider struct {
	dev *memhal.Device
	q   *memhal.Queue
}

func (p memProvider) Device() gpucontext.Device { return p.dev }
func (p memProvider) Queue() gpucontext.Queue   { return p.q }
func (p memProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (p memProvider) Adapter() gpucontext.Adapter { return nil }
func (p memProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "memhal", Type: gpucontext.AdapterTypeSoftware}
}

// halProvider additionally exposes the HAL objects explicitly.
type halProvider struct {
	memProvider
}

func (p halProvider) Device() gpucontext.Device { return "opaque" }
func (p halProvider) Queue() gpucontext.Queue   { return "opaque" }
func (p halProvider) HalDevice() any            { return p.dev }
func (p halProvider) HalQueue() any             { return p.q }

func TestNewManagerFromProvider(t *testing.T) {
	dev, q := memhal.New()
	for name, provider := range map[string]gpucontext.DeviceProvider{
		"direct": memProvider{dev, q},
		"hal":    halProvider{memProvider{dev, q}},
	} {
		t.Run(name, func(t *testing.T) {
			m, err := NewManagerFromProvider(provider)
			if err != nil {
				t.Fatalf("NewManagerFromProvider: %v", err)
			}
			if _, ok := m.Scheduler().(*HALScheduler); !ok {
				t.Errorf("scheduler is %T, want *HALScheduler", m.Scheduler())
			}
			s, err := m.GetSurface(0x1000, params2D(FormatRGBA8, 8, 8, 1))
			if err != nil {
				t.Fatal(err)
			}
			out := make([]byte, s.Params().SizeInBytes())
			if err := s.DownloadTexture(context.Background(), out); err != nil {
				t.Fatalf("DownloadTexture: %v", err)
			}
			if err := m.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := m.Scheduler().(*HALScheduler).Flush(context.Background()); err == nil {
				t.Error("owned scheduler still open after Close")
			}
		})
	}
}

func TestNewManagerFromProviderRejectsForeignDevice(t *testing.T) {
	dev, q := memhal.New()
	p := halProvider{memProvider{dev, q}}
	if _, err := NewManagerFromProvider(foreignProvider{p}); err == nil {
		t.Error("provider with non-HAL device accepted")
	}
	if _, err := NewManagerFromProvider(nil); err == nil {
		t.Error("nil provider accepted")
	}
}

// foreignProvider hides the HAL accessors and returns opaque handles.
type foreignProvider struct {
	p halProvider
}

func (f foreignProvider) Device() gpucontext.Device             { return f.p.Device() }
func (f foreignProvider) Queue() gpucontext.Queue               { return f.p.Queue() }
func (f foreignProvider) SurfaceFormat() gputypes.TextureFormat { return f.p.SurfaceFormat() }
func (f foreignProvider) Adapter() gpucontext.Adapter           { return nil }
func (f foreignProvider) AdapterInfo() gpucontext.AdapterInfo   { return f.p.AdapterInfo() }
