package wgpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// Adopt switches the device to a shared GPU exposed by a gpucontext
// provider, typically a host application that already owns an instance.
// The provider must also implement gpucontext.HalProvider so the raw
// hal handles are reachable.
func (d *Device) Adopt(provider gpucontext.DeviceProvider) error {
	hp, ok := provider.(gpucontext.HalProvider)
	if !ok {
		return fmt.Errorf("rg-wgpu: provider does not implement gpucontext.HalProvider")
	}
	return d.AdoptProvider(hp)
}
