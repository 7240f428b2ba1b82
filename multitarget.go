package rg

import (
	"strconv"

	"github.com/gogpu/rg/backend"
)

// MultiTargetNode runs one shader pass that writes up to
// backend.MaxColorAttachments textures simultaneously. Outputs are
// addressed by numeric name ("0".."3"); the default output name is an
// alias for "0".
type MultiTargetNode struct {
	baseNode
	rt *renderTarget
	ps programState
}

// NewMultiTargetShader creates a multi-target shader node with the
// attachment count from WithTargets (default 1, at most 4).
func (g *Graph) NewMultiTargetShader(source string, opts ...NodeOption) (*MultiTargetNode, error) {
	o := defaultNodeOptions(g)
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "multitarget"
	}
	rt, err := newRenderTarget(g.device, o.name, o)
	if err != nil {
		return nil, err
	}
	n := &MultiTargetNode{
		baseNode: newBaseNode(g, g.allocID(), o.name, o.width, o.height),
		rt:       rt,
		ps:       programState{source: source},
	}
	n.seedUniforms(o.uniforms)
	g.register(n)
	return n, nil
}

// Targets returns the attachment count.
func (n *MultiTargetNode) Targets() int { return n.rt.count }

// SetSource replaces the shader program text, clearing any sticky
// compile error.
func (n *MultiTargetNode) SetSource(source string) {
	n.ps.setSource(n.graph.device, source)
}

// Output resolves a numeric output name to the matching attachment.
// Out-of-range or non-numeric names degrade to the fallback texture.
func (n *MultiTargetNode) Output(outputName string) backend.Texture {
	if n.disposed {
		return n.graph.fallbackTexture()
	}
	if outputName == "" || outputName == DefaultOutput {
		return n.rt.Texture(0)
	}
	i, err := strconv.Atoi(outputName)
	if err != nil || i < 0 || i >= n.rt.count {
		Logger().Warn("rg: unknown output name", "node", n.name, "output", outputName)
		return n.graph.fallbackTexture()
	}
	return n.rt.Texture(i)
}

func (n *MultiTargetNode) Process(f *Frame) error {
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
	program, err := n.ps.ensure(f.device, n.name, slots, uniformNames(uniforms), n.rt.count, n.rt.Format())
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

func (n *MultiTargetNode) Resize(width, height int) error {
	if n.disposed {
		return ErrDisposed
	}
	if width == n.width && height == n.height {
		return nil
	}
	n.width, n.height = width, height
	return n.rt.Resize(width, height)
}

func (n *MultiTargetNode) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	n.detachAll()
	n.ps.release(n.graph.device)
	n.rt.Release()
}
