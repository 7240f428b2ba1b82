package rg

import (
	"fmt"

	"github.com/gogpu/rg/backend"
)

// FeedbackNode is a shader node that double-buffers its render target
// so the shader can read its own previous frame under the reserved
// GlobalPrev texture name. Each frame draws into the inactive target
// while exposing the other, then flips.
type FeedbackNode struct {
	baseNode
	targets [2]*renderTarget

	// current indexes the target holding the latest completed output.
	current int
	ps      programState
}

// NewFeedbackShader creates a ping-pong feedback shader node. The
// previous-frame texture starts out transparent black and is reset to
// it on every resize.
func (g *Graph) NewFeedbackShader(source string, opts ...NodeOption) (*FeedbackNode, error) {
	o := defaultNodeOptions(g)
	for _, opt := range opts {
		opt(&o)
	}
	o.targets = 1
	if o.name == "" {
		o.name = "feedback"
	}
	n := &FeedbackNode{
		baseNode: newBaseNode(g, g.allocID(), o.name, o.width, o.height),
		ps:       programState{source: source},
	}
	for i := range n.targets {
		rt, err := newRenderTarget(g.device, fmt.Sprintf("%s.%c", o.name, 'a'+i), o)
		if err != nil {
			if i > 0 {
				n.targets[0].Release()
			}
			return nil, err
		}
		n.targets[i] = rt
	}
	n.seedUniforms(o.uniforms)
	g.register(n)
	return n, nil
}

// SetSource replaces the shader program text, clearing any sticky
// compile error.
func (n *FeedbackNode) SetSource(source string) {
	n.ps.setSource(n.graph.device, source)
}

func (n *FeedbackNode) Output(outputName string) backend.Texture {
	if n.disposed {
		return n.graph.fallbackTexture()
	}
	if outputName != "" && outputName != DefaultOutput {
		Logger().Warn("rg: unknown output name", "node", n.name, "output", outputName)
		return n.graph.fallbackTexture()
	}
	return n.targets[n.current].Texture(0)
}

func (n *FeedbackNode) Process(f *Frame) error {
	n.lastFrame = f.Number
	if n.disposed {
		return ErrDisposed
	}
	prev := n.targets[n.current]
	write := 1 - n.current

	slots := n.slotNames()
	textures := make([]backend.TextureBinding, 0, len(slots)+1)
	for _, slot := range slots {
		textures = append(textures, backend.TextureBinding{Name: slot, Texture: n.inputTexture(slot)})
	}
	uniforms := uniformBindings(mergedUniforms(f, &n.baseNode, slots, textures))
	// The previous-frame texture binds last, after the user slots, so
	// its slot index stays stable as connections change.
	textures = append(textures, backend.TextureBinding{Name: GlobalPrev, Texture: prev.Texture(0)})

	texNames := append(slots, GlobalPrev)
	program, err := n.ps.ensure(f.device, n.name, texNames, uniformNames(uniforms), 1, prev.Format())
	if err != nil {
		return err
	}
	if err := f.device.Draw(backend.DrawOp{
		Program:  program,
		Target:   n.targets[write].Target(),
		Textures: textures,
		Uniforms: uniforms,
	}); err != nil {
		return err
	}
	n.current = write
	return nil
}

// Resize recreates both targets and resets the flip index, so feedback
// history is discarded.
func (n *FeedbackNode) Resize(width, height int) error {
	if n.disposed {
		return ErrDisposed
	}
	if width == n.width && height == n.height {
		return nil
	}
	n.width, n.height = width, height
	n.current = 0
	for _, rt := range n.targets {
		if err := rt.Resize(width, height); err != nil {
			return err
		}
	}
	return nil
}

func (n *FeedbackNode) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	n.detachAll()
	n.ps.release(n.graph.device)
	for _, rt := range n.targets {
		rt.Release()
	}
}
