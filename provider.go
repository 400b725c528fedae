package softgpu

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// deviceProvider exposes a Device through gpucontext.DeviceProvider.
type deviceProvider struct {
	device *Device
}

// Provider returns a gpucontext.DeviceProvider view of the device for code
// written against gpucontext. There is no surface, so SurfaceFormat is
// undefined.
func (d *Device) Provider() gpucontext.DeviceProvider {
	return deviceProvider{device: d}
}

func (p deviceProvider) Device() gpucontext.Device   { return p.device }
func (p deviceProvider) Queue() gpucontext.Queue     { return p.device.queue }
func (p deviceProvider) Adapter() gpucontext.Adapter { return p.device.adapter }

func (deviceProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func (p deviceProvider) AdapterInfo() gpucontext.AdapterInfo {
	return p.device.adapter.ContextInfo()
}
