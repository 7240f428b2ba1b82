package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg/backend"
)

// packUniforms serializes the uniform bindings into the vec4 array the
// generated WGSL module reads. Binding order must match the compiled
// UniformNames order.
func packUniforms(p *program, uniforms []backend.UniformBinding) ([]byte, error) {
	if len(uniforms) != len(p.desc.UniformNames) {
		return nil, fmt.Errorf("rg-wgpu: %s: %d uniforms bound, program has %d: %w",
			p.desc.Label, len(uniforms), len(p.desc.UniformNames), backend.ErrSizeMismatch)
	}
	data := make([]byte, p.uniformSize)
	for i, u := range uniforms {
		if u.Name != p.desc.UniformNames[i] {
			return nil, fmt.Errorf("rg-wgpu: %s: uniform %d is %q, program expects %q: %w",
				p.desc.Label, i, u.Name, p.desc.UniformNames[i], backend.ErrSizeMismatch)
		}
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint32(data[i*16+c*4:], math.Float32bits(u.Components[c]))
		}
	}
	return data, nil
}

// Draw runs one fullscreen pass of the program into the target: write
// the packed uniforms, build a transient bind group over the bound
// textures, clear-load the attachments and draw the triangle.
func (d *Device) Draw(op backend.DrawOp) error {
	prog, ok := op.Program.(*program)
	if !ok || prog.pipeline == nil {
		return backend.ErrNotInitialized
	}
	tgt, ok := op.Target.(*target)
	if !ok || len(tgt.views) == 0 {
		return backend.ErrTextureReleased
	}
	if len(tgt.views) != prog.desc.TargetCount {
		return fmt.Errorf("rg-wgpu: %s: target has %d attachments, program writes %d: %w",
			prog.desc.Label, len(tgt.views), prog.desc.TargetCount, backend.ErrTargetMismatch)
	}
	if len(op.Textures) != len(prog.desc.TextureNames) {
		return fmt.Errorf("rg-wgpu: %s: %d textures bound, program has %d: %w",
			prog.desc.Label, len(op.Textures), len(prog.desc.TextureNames), backend.ErrSizeMismatch)
	}
	uniformData, err := packUniforms(prog, op.Uniforms)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	d.queue.WriteBuffer(prog.uniformBuf, 0, uniformData)

	entries := make([]gputypes.BindGroupEntry, 0, 1+2*len(op.Textures))
	entries = append(entries, gputypes.BindGroupEntry{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: prog.uniformBuf.NativeHandle(), Offset: 0, Size: prog.uniformSize,
		},
	})
	for i, tb := range op.Textures {
		if tb.Name != prog.desc.TextureNames[i] {
			return fmt.Errorf("rg-wgpu: %s: texture %d is %q, program expects %q: %w",
				prog.desc.Label, i, tb.Name, prog.desc.TextureNames[i], backend.ErrSizeMismatch)
		}
		tex, ok := tb.Texture.(*texture)
		if !ok || tex.tex == nil {
			return backend.ErrTextureReleased
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding: uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{
					TextureView: tex.view.NativeHandle(),
				},
			},
			gputypes.BindGroupEntry{
				Binding: uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{
					Sampler: tex.sampler.NativeHandle(),
				},
			},
		)
	}
	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   prog.desc.Label + "_bind",
		Layout:  prog.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("rg-wgpu: create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: prog.desc.Label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("rg-wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(prog.desc.Label); err != nil {
		return fmt.Errorf("rg-wgpu: begin encoding: %w", err)
	}

	attachments := make([]hal.RenderPassColorAttachment, len(tgt.views))
	for i, view := range tgt.views {
		attachments[i] = hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            prog.desc.Label + "_pass",
		ColorAttachments: attachments,
	})
	rp.SetPipeline(prog.pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("rg-wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	return d.submitAndWait([]hal.CommandBuffer{cmdBuf})
}
