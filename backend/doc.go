// Package backend provides the device abstraction for rg.
//
// A Device owns textures, render targets and compiled shader programs,
// and executes full-surface shader passes. Two implementations ship with
// rg:
//
//   - the software device (this package), an in-memory reference used for
//     tests and headless runs, registered by default
//   - the wgpu device (backend/wgpu), GPU-accelerated via gogpu/wgpu,
//     registered by blank import:
//
//     import _ "github.com/gogpu/rg/backend/wgpu"
//
// Devices self-register in init() and are selected by priority (wgpu
// before software) via Default, or explicitly via Get.
package backend
