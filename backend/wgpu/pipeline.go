package wgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rg/backend"
)

// program is a compiled node shader: the render pipeline, its layouts
// and a persistent uniform buffer rewritten before every draw.
type program struct {
	desc backend.ProgramDescriptor

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	uniformBuf  hal.Buffer
	uniformSize uint64
}

var _ backend.Program = (*program)(nil)

func (p *program) Label() string { return p.desc.Label }

// buildModule wraps the user's fragment body in the generated WGSL
// module: the packed uniform array with one accessor function per
// uniform name, a texture/sampler pair and sample helper per texture
// name, the fullscreen-triangle vertex stage and the fragment entry
// dispatching to rg_main (or rg_main_mrt for multi-target programs).
func buildModule(desc backend.ProgramDescriptor) string {
	var b strings.Builder
	uniformCount := len(desc.UniformNames)
	if uniformCount == 0 {
		uniformCount = 1
	}
	fmt.Fprintf(&b, "struct RGUniforms {\n    values: array<vec4<f32>, %d>,\n}\n", uniformCount)
	b.WriteString("@group(0) @binding(0) var<uniform> rg_uniforms: RGUniforms;\n\n")
	for i, name := range desc.TextureNames {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var rg_tex_%s: texture_2d<f32>;\n", 1+2*i, name)
		fmt.Fprintf(&b, "@group(0) @binding(%d) var rg_smp_%s: sampler;\n", 2+2*i, name)
	}
	b.WriteString("\n")
	for i, name := range desc.UniformNames {
		fmt.Fprintf(&b, "fn %s() -> vec4<f32> { return rg_uniforms.values[%d]; }\n", name, i)
	}
	for _, name := range desc.TextureNames {
		fmt.Fprintf(&b, "fn rg_sample_%s(uv: vec2<f32>) -> vec4<f32> { return textureSample(rg_tex_%s, rg_smp_%s, uv); }\n",
			name, name, name)
	}

	b.WriteString(`
struct RGVertexOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> RGVertexOut {
    var out: RGVertexOut;
    let x = f32(i32(vi) / 2) * 4.0 - 1.0;
    let y = f32(i32(vi) % 2) * 4.0 - 1.0;
    out.pos = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = vec2<f32>((x + 1.0) * 0.5, (1.0 - y) * 0.5);
    return out;
}

`)
	if desc.TargetCount > 1 {
		b.WriteString("struct Targets {\n")
		for i := 0; i < desc.TargetCount; i++ {
			fmt.Fprintf(&b, "    @location(%d) c%d: vec4<f32>,\n", i, i)
		}
		b.WriteString("}\n\n")
		b.WriteString(desc.Source)
		b.WriteString("\n@fragment\nfn fs_main(in: RGVertexOut) -> Targets {\n    return rg_main_mrt(in.uv);\n}\n")
	} else {
		b.WriteString(desc.Source)
		b.WriteString("\n@fragment\nfn fs_main(in: RGVertexOut) -> @location(0) vec4<f32> {\n    return rg_main(in.uv);\n}\n")
	}
	return b.String()
}

// CompileProgram validates the assembled WGSL through naga, then builds
// the shader module, bind group layout, pipeline layout, uniform buffer
// and render pipeline.
func (d *Device) CompileProgram(desc backend.ProgramDescriptor) (backend.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return nil, err
	}
	if desc.TargetCount < 1 || desc.TargetCount > backend.MaxColorAttachments {
		return nil, backend.ErrTooManyAttachments
	}
	format, err := halFormat(desc.TargetFormat)
	if err != nil {
		return nil, err
	}

	source := buildModule(desc)
	if _, err := naga.Compile(source); err != nil {
		return nil, fmt.Errorf("rg-wgpu: validate %s: %w", desc.Label, err)
	}

	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "_shader",
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("rg-wgpu: compile %s: %w", desc.Label, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, 1+2*len(desc.TextureNames))
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range desc.TextureNames {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("rg-wgpu: create bind group layout: %w", err)
	}

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("rg-wgpu: create pipeline layout: %w", err)
	}

	targets := make([]gputypes.ColorTargetState, desc.TargetCount)
	for i := range targets {
		targets[i] = gputypes.ColorTargetState{
			Format:    format,
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label + "_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pipeLayout)
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("rg-wgpu: create pipeline %s: %w", desc.Label, err)
	}

	uniformCount := len(desc.UniformNames)
	if uniformCount == 0 {
		uniformCount = 1
	}
	uniformSize := uint64(uniformCount) * 16
	uniformBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label + "_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.device.DestroyRenderPipeline(pipeline)
		d.device.DestroyPipelineLayout(pipeLayout)
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("rg-wgpu: create uniform buffer: %w", err)
	}

	d.logger.Debug("rg-wgpu: program compiled",
		"label", desc.Label,
		"textures", len(desc.TextureNames),
		"uniforms", len(desc.UniformNames),
		"targets", desc.TargetCount)
	return &program{
		desc:        desc,
		shader:      shader,
		bindLayout:  bindLayout,
		pipeLayout:  pipeLayout,
		pipeline:    pipeline,
		uniformBuf:  uniformBuf,
		uniformSize: uniformSize,
	}, nil
}

// DestroyProgram releases the program's device objects in reverse
// creation order.
func (d *Device) DestroyProgram(p backend.Program) {
	prog, ok := p.(*program)
	if !ok || prog.pipeline == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.device.DestroyBuffer(prog.uniformBuf)
	d.device.DestroyRenderPipeline(prog.pipeline)
	d.device.DestroyPipelineLayout(prog.pipeLayout)
	d.device.DestroyBindGroupLayout(prog.bindLayout)
	d.device.DestroyShaderModule(prog.shader)
	prog.pipeline = nil
	prog.uniformBuf = nil
}
