package backend

import (
	"errors"
	"slices"
	"sync"
)

// DeviceFactory creates a new device instance.
type DeviceFactory func() Device

// registry holds registered device factories.
var (
	registryMu sync.RWMutex
	devices    = make(map[string]DeviceFactory)
	// Priority order for device selection (first available wins).
	// Hardware over software fallback.
	devicePriority = []string{DeviceWGPU, DeviceSoftware}
)

// Device name constants.
const (
	// DeviceSoftware is the name of the in-memory reference device.
	DeviceSoftware = "software"
	// DeviceWGPU is the name of the GPU device built on gogpu/wgpu.
	DeviceWGPU = "wgpu"
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in device packages.
// If a device with the same name is already registered, it is replaced.
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	devices[name] = factory
}

// Unregister removes a device from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(devices, name)
}

// Available returns a list of registered device names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a device with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := devices[name]
	return ok
}

// Get returns a device instance by name.
// Returns nil if the device is not registered.
func Get(name string) Device {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := devices[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available device based on priority.
// Priority order: wgpu > software.
// Returns nil if no devices are registered.
func Default() Device {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range devicePriority {
		if factory, ok := devices[name]; ok {
			if d := factory(); d != nil {
				return d
			}
		}
	}

	// Fallback: return first available.
	for _, factory := range devices {
		if d := factory(); d != nil {
			return d
		}
	}

	return nil
}

// MustDefault returns the default device or panics.
func MustDefault() Device {
	d := Default()
	if d == nil {
		panic("backend: no device available")
	}
	return d
}

// InitDefault initializes the best available device. Candidates are
// tried in priority order; a device whose Init fails (e.g. wgpu on a
// machine without Vulkan) is skipped in favor of the next one.
func InitDefault() (Device, error) {
	registryMu.RLock()
	candidates := make([]DeviceFactory, 0, len(devices))
	for _, name := range devicePriority {
		if factory, ok := devices[name]; ok {
			candidates = append(candidates, factory)
		}
	}
	for name, factory := range devices {
		if !slices.Contains(devicePriority, name) {
			candidates = append(candidates, factory)
		}
	}
	registryMu.RUnlock()

	var errs []error
	for _, factory := range candidates {
		d := factory()
		if d == nil {
			continue
		}
		if err := d.Init(); err != nil {
			errs = append(errs, err)
			continue
		}
		return d, nil
	}
	return nil, errors.Join(append([]error{ErrBackendNotAvailable}, errs...)...)
}
