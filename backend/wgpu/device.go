// Package wgpu implements the rg backend.Device on gogpu/wgpu's HAL,
// rendering node programs as fullscreen-triangle passes with WGSL
// shaders validated through naga.
//
// Importing the package registers the device under backend.DeviceWGPU:
//
//	import _ "github.com/gogpu/rg/backend/wgpu"
//
// Shader programs supply a fragment-stage entry in WGSL:
//
//	fn rg_main(uv: vec2<f32>) -> vec4<f32>
//
// or, for multi-target programs:
//
//	fn rg_main_mrt(uv: vec2<f32>) -> Targets
//
// The surrounding module (uniform struct, texture/sampler bindings, the
// vertex stage and the Targets struct) is generated from the program
// descriptor; see pipeline.go.
package wgpu

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/rg/backend"
)

func init() {
	backend.Register(backend.DeviceWGPU, func() backend.Device {
		return NewDevice()
	})
}

// Device implements backend.Device on a hal.Device/hal.Queue pair. It
// either brings up its own Vulkan instance on Init or adopts a shared
// device from a gpucontext provider via AdoptProvider.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// external is set when the device came from a provider and must
	// not be destroyed on Close.
	external    bool
	initialized bool

	logger *slog.Logger
}

var _ backend.Device = (*Device)(nil)

// NewDevice creates an uninitialized wgpu device.
func NewDevice() *Device {
	return &Device{logger: slog.New(slog.DiscardHandler)}
}

// SetLogger sets the device's structured logger.
func (d *Device) SetLogger(l *slog.Logger) {
	if l != nil {
		d.logger = l
	}
}

// Name returns "wgpu".
func (d *Device) Name() string { return backend.DeviceWGPU }

// Init creates a Vulkan instance, picks an adapter (preferring discrete
// then integrated GPUs) and opens a device. A no-op when a shared
// device was already adopted.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return nil
	}
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("rg-wgpu: vulkan: %w", backend.ErrBackendNotAvailable)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("rg-wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("rg-wgpu: no adapters: %w", backend.ErrBackendNotAvailable)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("rg-wgpu: open device: %w", err)
	}
	d.instance = instance
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.initialized = true
	d.logger.Info("rg-wgpu: device initialized", "adapter", selected.Info.Name)
	return nil
}

// AdoptProvider switches to a shared hal device exposed by a
// gpucontext-style provider implementing HalDevice() any and
// HalQueue() any. Shared resources are not destroyed on Close.
func (d *Device) AdoptProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("rg-wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("rg-wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("rg-wgpu: provider HalQueue is not hal.Queue")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.external && d.device != nil {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.device = device
	d.queue = queue
	d.external = true
	d.initialized = true
	d.logger.Info("rg-wgpu: adopted shared device")
	return nil
}

// Close releases the device and instance unless they are shared.
// Idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return nil
	}
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	d.external = false
	d.initialized = false
	return nil
}

func (d *Device) ready() error {
	if !d.initialized || d.device == nil {
		return backend.ErrNotInitialized
	}
	return nil
}
