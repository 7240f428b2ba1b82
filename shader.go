package rg

import (
	"fmt"
	"slices"
	"sort"

	"github.com/gogpu/rg/backend"
)

// programState carries a node's compiled shader program and the slot
// and uniform name layout it was compiled against. Compilation is lazy
// (first Process, not construction) and a failure is sticky: the node
// reports the same error every frame until SetSource replaces the
// program text.
type programState struct {
	source string

	program  backend.Program
	texNames []string
	uniNames []string

	compileErr error
}

// ensure returns a program whose binding layout matches the given
// sorted texture and uniform names, recompiling when a name appears
// that the current layout does not cover.
func (ps *programState) ensure(device backend.Device, label string, texNames, uniNames []string, targetCount int, format backend.TextureFormat) (backend.Program, error) {
	if ps.compileErr != nil {
		return nil, ps.compileErr
	}
	if ps.program != nil && slices.Equal(texNames, ps.texNames) && slices.Equal(uniNames, ps.uniNames) {
		return ps.program, nil
	}
	if ps.source == "" {
		ps.compileErr = ErrNoShaderSource
		return nil, ps.compileErr
	}
	program, err := device.CompileProgram(backend.ProgramDescriptor{
		Label:        label,
		Source:       ExpandSnippets(ps.source),
		TextureNames: texNames,
		UniformNames: uniNames,
		TargetCount:  targetCount,
		TargetFormat: format,
	})
	if err != nil {
		ps.compileErr = fmt.Errorf("%w: %s: %w", ErrCompile, label, err)
		return nil, ps.compileErr
	}
	if ps.program != nil {
		device.DestroyProgram(ps.program)
	}
	ps.program = program
	ps.texNames = slices.Clone(texNames)
	ps.uniNames = slices.Clone(uniNames)
	return program, nil
}

// setSource replaces the program text, dropping the compiled program
// and clearing a sticky compile error.
func (ps *programState) setSource(device backend.Device, source string) {
	if ps.program != nil {
		device.DestroyProgram(ps.program)
		ps.program = nil
	}
	ps.source = source
	ps.texNames = nil
	ps.uniNames = nil
	ps.compileErr = nil
}

func (ps *programState) release(device backend.Device) {
	if ps.program != nil {
		device.DestroyProgram(ps.program)
		ps.program = nil
	}
}

// mergedUniforms builds the uniform set for one draw: the frame globals,
// one u_<slot>Size vec2 per bound input, then the node-local values.
// Locals win on collision; reserved names never reach the local map.
func mergedUniforms(f *Frame, b *baseNode, slots []string, textures []backend.TextureBinding) Uniforms {
	u := make(Uniforms, len(f.Globals)+len(slots)+len(b.uniforms))
	for name, v := range f.Globals {
		u[name] = v
	}
	for i, slot := range slots {
		tex := textures[i].Texture
		u["u_"+slot+"Size"] = Vec2(float64(tex.Width()), float64(tex.Height()))
	}
	for name, v := range b.uniforms {
		u[name] = v
	}
	return u
}

// uniformBindings flattens a uniform map into name-sorted bindings, the
// order the binding protocol requires.
func uniformBindings(u Uniforms) []backend.UniformBinding {
	names := make([]string, 0, len(u))
	for name := range u {
		names = append(names, name)
	}
	sort.Strings(names)
	bindings := make([]backend.UniformBinding, len(names))
	for i, name := range names {
		bindings[i] = u[name].binding(name)
	}
	return bindings
}

func uniformNames(bindings []backend.UniformBinding) []string {
	names := make([]string, len(bindings))
	for i, b := range bindings {
		names[i] = b.Name
	}
	return names
}

// ShaderNode runs one full-surface shader pass per frame: bind the
// connected input textures by slot name, merge global and node-local
// uniforms, draw into the owned render target.
type ShaderNode struct {
	baseNode
	rt *renderTarget
	ps programState
}

// NewShader creates a single-pass shader node. The program compiles on
// the first frame the node is processed, not here.
func (g *Graph) NewShader(source string, opts ...NodeOption) (*ShaderNode, error) {
	o := defaultNodeOptions(g)
	for _, opt := range opts {
		opt(&o)
	}
	o.targets = 1
	if o.name == "" {
		o.name = "shader"
	}
	rt, err := newRenderTarget(g.device, o.name, o)
	if err != nil {
		return nil, err
	}
	n := &ShaderNode{
		baseNode: newBaseNode(g, g.allocID(), o.name, o.width, o.height),
		rt:       rt,
		ps:       programState{source: source},
	}
	n.seedUniforms(o.uniforms)
	g.register(n)
	return n, nil
}

// SetSource replaces the shader program text. The node recompiles on
// the next frame; a prior sticky compile error is cleared.
func (n *ShaderNode) SetSource(source string) {
	n.ps.setSource(n.graph.device, source)
}

func (n *ShaderNode) Output(outputName string) backend.Texture {
	if n.disposed {
		return n.graph.fallbackTexture()
	}
	if outputName != "" && outputName != DefaultOutput {
		Logger().Warn("rg: unknown output name", "node", n.name, "output", outputName)
		return n.graph.fallbackTexture()
	}
	return n.rt.Texture(0)
}

func (n *ShaderNode) Process(f *Frame) error {
	n.lastFrame = f.Number
	if n.disposed {
		return ErrDisposed
	}
	slots := n.slotNames()
	textures := make([]backend.TextureBinding, len(slots))
	for i, slot := range slots {
		textures[i] = backend.TextureBinding{Name: slot, Texture: n.inputTexture(slot)}
	}
	uniforms := uniformBindings(mergedUniforms(f, &n.baseNode, slots, textures))
	program, err := n.ps.ensure(f.device, n.name, slots, uniformNames(uniforms), 1, n.rt.Format())
	if err != nil {
		return err
	}
	return f.device.Draw(backend.DrawOp{
		Program:  program,
		Target:   n.rt.Target(),
		Textures: textures,
		Uniforms: uniforms,
	})
}

func (n *ShaderNode) Resize(width, height int) error {
	if n.disposed {
		return ErrDisposed
	}
	if width == n.width && height == n.height {
		return nil
	}
	n.width, n.height = width, height
	return n.rt.Resize(width, height)
}

func (n *ShaderNode) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	n.detachAll()
	n.ps.release(n.graph.device)
	n.rt.Release()
}
