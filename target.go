package rg

import (
	"errors"
	"fmt"

	"github.com/gogpu/rg/backend"
)

// renderTarget owns the device textures a node renders into. It handles
// format negotiation: when the device rejects a float format the target
// is recreated once as RGBA8 and the downgrade is remembered, so the
// retry never repeats on later resizes.
type renderTarget struct {
	device backend.Device
	label  string

	width, height int
	format        backend.TextureFormat
	filter        backend.FilterMode
	wrap          backend.WrapMode
	count         int

	textures []backend.Texture
	target   backend.Target

	// downgraded records a permanent float->RGBA8 negotiation.
	downgraded bool
	released   bool
}

func newRenderTarget(device backend.Device, label string, opts nodeOptions) (*renderTarget, error) {
	if opts.targets < 1 || opts.targets > backend.MaxColorAttachments {
		return nil, fmt.Errorf("rg: %q wants %d attachments: %w", label, opts.targets, ErrTargetCount)
	}
	rt := &renderTarget{
		device: device,
		label:  label,
		width:  opts.width,
		height: opts.height,
		format: opts.format,
		filter: opts.filter,
		wrap:   opts.wrap,
		count:  opts.targets,
	}
	if err := rt.allocate(); err != nil {
		return nil, err
	}
	return rt, nil
}

// allocate creates the attachment textures and the target wrapping
// them, negotiating the format down to RGBA8 when the device refuses a
// float format. Fresh attachments are cleared to transparent black;
// GPU texture memory is undefined until first written.
func (rt *renderTarget) allocate() error {
	format := rt.format
	if rt.downgraded {
		format = backend.FormatRGBA8
	}
	textures, err := rt.createTextures(format)
	if errors.Is(err, backend.ErrFormatUnsupported) && format.Float() {
		Logger().Warn("rg: float format unsupported, falling back to rgba8",
			"target", rt.label, "format", format.String())
		rt.downgraded = true
		textures, err = rt.createTextures(backend.FormatRGBA8)
	}
	if err != nil {
		return err
	}
	target, err := rt.device.CreateTarget(textures)
	if err != nil {
		for _, tex := range textures {
			rt.device.DestroyTexture(tex)
		}
		return err
	}
	if err := rt.device.Clear(target, [4]float32{}); err != nil {
		rt.device.DestroyTarget(target)
		for _, tex := range textures {
			rt.device.DestroyTexture(tex)
		}
		return err
	}
	rt.textures = textures
	rt.target = target
	return nil
}

func (rt *renderTarget) createTextures(format backend.TextureFormat) ([]backend.Texture, error) {
	textures := make([]backend.Texture, 0, rt.count)
	for i := 0; i < rt.count; i++ {
		tex, err := rt.device.CreateTexture(backend.TextureDescriptor{
			Label:  fmt.Sprintf("%s[%d]", rt.label, i),
			Width:  rt.width,
			Height: rt.height,
			Format: format,
			Filter: rt.filter,
			Wrap:   rt.wrap,
		})
		if err != nil {
			for _, prev := range textures {
				rt.device.DestroyTexture(prev)
			}
			return nil, err
		}
		textures = append(textures, tex)
	}
	return textures, nil
}

// Format reports the format actually in use after negotiation.
func (rt *renderTarget) Format() backend.TextureFormat {
	if rt.downgraded {
		return backend.FormatRGBA8
	}
	return rt.format
}

// Texture returns the i-th attachment texture.
func (rt *renderTarget) Texture(i int) backend.Texture { return rt.textures[i] }

// Target returns the device target for drawing.
func (rt *renderTarget) Target() backend.Target { return rt.target }

// Resize destroys and recreates the attachments at the new resolution.
// Content is not preserved. A negotiated format downgrade is kept.
func (rt *renderTarget) Resize(width, height int) error {
	if rt.released {
		return backend.ErrTextureReleased
	}
	if width == rt.width && height == rt.height {
		return nil
	}
	rt.destroy()
	rt.width, rt.height = width, height
	return rt.allocate()
}

// Release frees the device resources. Safe to call twice.
func (rt *renderTarget) Release() {
	if rt.released {
		return
	}
	rt.destroy()
	rt.released = true
}

func (rt *renderTarget) destroy() {
	if rt.target != nil {
		rt.device.DestroyTarget(rt.target)
		rt.target = nil
	}
	for _, tex := range rt.textures {
		rt.device.DestroyTexture(tex)
	}
	rt.textures = nil
}
