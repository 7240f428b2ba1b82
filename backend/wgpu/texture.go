package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg/backend"
)

// texture wraps a hal texture plus the view and sampler every draw
// binds it with.
type texture struct {
	tex     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler

	width, height int
	format        backend.TextureFormat
}

var _ backend.Texture = (*texture)(nil)

func (t *texture) Width() int                    { return t.width }
func (t *texture) Height() int                   { return t.height }
func (t *texture) Format() backend.TextureFormat { return t.format }

// target groups attachment views for one render pass.
type target struct {
	attachments []backend.Texture
	views       []hal.TextureView
}

var _ backend.Target = (*target)(nil)

func (t *target) Attachments() []backend.Texture { return t.attachments }

func halFormat(f backend.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case backend.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case backend.FormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float, nil
	case backend.FormatRGBA32F:
		return gputypes.TextureFormatRGBA32Float, nil
	default:
		return 0, fmt.Errorf("rg-wgpu: format %s: %w", f, backend.ErrFormatUnsupported)
	}
}

func halFilter(f backend.FilterMode) gputypes.FilterMode {
	if f == backend.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func halAddressMode(w backend.WrapMode) gputypes.AddressMode {
	switch w {
	case backend.WrapRepeat:
		return gputypes.AddressModeRepeat
	case backend.WrapMirror:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}

// CreateTexture creates a sampleable, attachable, copyable texture with
// its view and sampler. A rejected float format maps to
// backend.ErrFormatUnsupported so the caller can negotiate down.
func (d *Device) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	format, err := halFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		if desc.Format.Float() {
			return nil, fmt.Errorf("rg-wgpu: create %s texture: %w: %w", desc.Format, backend.ErrFormatUnsupported, err)
		}
		return nil, fmt.Errorf("rg-wgpu: create texture: %w", err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("rg-wgpu: create texture view: %w", err)
	}
	filter := halFilter(desc.Filter)
	address := halAddressMode(desc.Wrap)
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label + "_sampler",
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("rg-wgpu: create sampler: %w", err)
	}
	return &texture{
		tex:     tex,
		view:    view,
		sampler: sampler,
		width:   desc.Width,
		height:  desc.Height,
		format:  desc.Format,
	}, nil
}

// DestroyTexture releases the texture, its view and its sampler.
func (d *Device) DestroyTexture(t backend.Texture) {
	tex, ok := t.(*texture)
	if !ok || tex.tex == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.device.DestroySampler(tex.sampler)
	d.device.DestroyTextureView(tex.view)
	d.device.DestroyTexture(tex.tex)
	tex.tex = nil
	tex.view = nil
	tex.sampler = nil
}

// Upload writes tightly packed RGBA8 pixels covering the whole texture.
func (d *Device) Upload(t backend.Texture, pixels []byte) error {
	tex, ok := t.(*texture)
	if !ok || tex.tex == nil {
		return backend.ErrTextureReleased
	}
	if tex.format != backend.FormatRGBA8 {
		return fmt.Errorf("rg-wgpu: upload to %s texture: %w", tex.format, backend.ErrFormatUnsupported)
	}
	if want := tex.width * tex.height * 4; len(pixels) != want {
		return fmt.Errorf("rg-wgpu: upload %d bytes, want %d: %w", len(pixels), want, backend.ErrSizeMismatch)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(tex.width * 4),
			RowsPerImage: uint32(tex.height),
		},
		&hal.Extent3D{Width: uint32(tex.width), Height: uint32(tex.height), DepthOrArrayLayers: 1},
	)
	return nil
}

// ReadPixels copies the texture into a staging buffer and reads it back
// as tightly packed RGBA8 bytes. BytesPerRow is padded to the 256-byte
// copy pitch alignment and stripped after readback.
func (d *Device) ReadPixels(t backend.Texture) ([]byte, error) {
	tex, ok := t.(*texture)
	if !ok || tex.tex == nil {
		return nil, backend.ErrTextureReleased
	}
	if tex.format != backend.FormatRGBA8 {
		return nil, fmt.Errorf("rg-wgpu: read %s texture: %w", tex.format, backend.ErrFormatUnsupported)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}

	w, h := uint32(tex.width), uint32(tex.height)
	bytesPerRow := w * 4
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "rg_readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("rg-wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(stagingBuf)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rg_readback"})
	if err != nil {
		return nil, fmt.Errorf("rg-wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("rg_readback"); err != nil {
		return nil, fmt.Errorf("rg-wgpu: begin encoding: %w", err)
	}

	// The last draw left the texture in attachment layout; the copy
	// needs transfer-source. No-op on non-Vulkan backends.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("rg-wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	if err := d.submitAndWait([]hal.CommandBuffer{cmdBuf}); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("rg-wgpu: readback: %w", err)
	}
	if alignedBytesPerRow == bytesPerRow {
		return readback[:uint64(bytesPerRow)*uint64(h)], nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// CreateTarget wraps attachment textures for drawing. All attachments
// must share one size.
func (d *Device) CreateTarget(attachments []backend.Texture) (backend.Target, error) {
	if len(attachments) == 0 || len(attachments) > backend.MaxColorAttachments {
		return nil, backend.ErrTooManyAttachments
	}
	views := make([]hal.TextureView, len(attachments))
	for i, a := range attachments {
		tex, ok := a.(*texture)
		if !ok || tex.tex == nil {
			return nil, backend.ErrTextureReleased
		}
		if a.Width() != attachments[0].Width() || a.Height() != attachments[0].Height() {
			return nil, backend.ErrSizeMismatch
		}
		views[i] = tex.view
	}
	return &target{attachments: attachments, views: views}, nil
}

// DestroyTarget releases the target wrapper. The attachment textures
// stay alive; their owner destroys them.
func (d *Device) DestroyTarget(t backend.Target) {
	if tgt, ok := t.(*target); ok {
		tgt.views = nil
		tgt.attachments = nil
	}
}

// Clear renders a clear-load pass filling every attachment with the
// given color.
func (d *Device) Clear(t backend.Target, color [4]float32) error {
	tgt, ok := t.(*target)
	if !ok || len(tgt.views) == 0 {
		return backend.ErrTextureReleased
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rg_clear"})
	if err != nil {
		return fmt.Errorf("rg-wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("rg_clear"); err != nil {
		return fmt.Errorf("rg-wgpu: begin encoding: %w", err)
	}
	attachments := make([]hal.RenderPassColorAttachment, len(tgt.views))
	for i, view := range tgt.views {
		attachments[i] = hal.RenderPassColorAttachment{
			View:    view,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(color[0]), G: float64(color[1]),
				B: float64(color[2]), A: float64(color[3]),
			},
		}
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "rg_clear_pass",
		ColorAttachments: attachments,
	})
	rp.End()
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("rg-wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)
	return d.submitAndWait([]hal.CommandBuffer{cmdBuf})
}

// submitAndWait submits command buffers behind a fence and blocks until
// the GPU signals it. Callers hold d.mu.
func (d *Device) submitAndWait(bufs []hal.CommandBuffer) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("rg-wgpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit(bufs, fence, 1); err != nil {
		return fmt.Errorf("rg-wgpu: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return fmt.Errorf("rg-wgpu: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}
