package texcache

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// NewManagerFromProvider creates a manager sharing the device and queue of
// a host application's gpucontext.DeviceProvider. The manager owns the
// HALScheduler it creates and closes it in Close.
//
// The provider must either implement HalDevice() any and HalQueue() any
// returning wgpu HAL types, or return them from Device and Queue directly.
func NewManagerFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("texcache: nil device provider")
	}
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var sopts []SchedulerOption
	if o.tracerProvider != nil {
		sopts = append(sopts, WithSchedulerTracer(o.tracerProvider))
	}
	sched := NewHALScheduler(device, queue, sopts...)

	m, err := NewManager(device, sched, opts...)
	if err != nil {
		_ = sched.Close()
		return nil, err
	}
	m.owned = sched

	info := provider.AdapterInfo()
	m.env.logger().Info("texcache: using shared device",
		"adapter", info.Name, "type", info.Type.String(), "surface_format", provider.SurfaceFormat())
	return m, nil
}

func halFromProvider(provider gpucontext.DeviceProvider) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var dev, q any
	if hp, ok := provider.(halProvider); ok {
		dev, q = hp.HalDevice(), hp.HalQueue()
	} else {
		dev, q = provider.Device(), provider.Queue()
	}
	device, ok := dev.(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("texcache: provider device %T is not hal.Device", dev)
	}
	queue, ok := q.(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("texcache: provider queue %T is not hal.Queue", q)
	}
	return device, queue, nil
}
