package rg

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/rg/backend"
)

// rasterize scales src into an RGBA buffer of the node's size and
// returns the tightly packed pixel bytes. A src already at the right
// size and layout is passed through without copying.
func rasterize(src image.Image, width, height int) []byte {
	if rgba, ok := src.(*image.RGBA); ok {
		b := rgba.Bounds()
		if b.Dx() == width && b.Dy() == height && rgba.Stride == 4*width && b.Min == (image.Point{}) {
			return rgba.Pix
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst.Pix
}

// sourceNode is the shared body of the source variants: an owned
// render target the CPU uploads into, plus a dirty flag deciding
// whether the next Process re-uploads. Sources always allocate RGBA8
// since uploads are 8-bit pixel data.
type sourceNode struct {
	baseNode
	rt    *renderTarget
	dirty bool
}

func (g *Graph) newSourceNode(name string, opts []NodeOption) (sourceNode, error) {
	o := defaultNodeOptions(g)
	for _, opt := range opts {
		opt(&o)
	}
	o.format = backend.FormatRGBA8
	o.targets = 1
	id := g.allocID()
	if o.name == "" {
		o.name = name
	}
	rt, err := newRenderTarget(g.device, o.name, o)
	if err != nil {
		return sourceNode{}, err
	}
	return sourceNode{
		baseNode: newBaseNode(g, id, o.name, o.width, o.height),
		rt:       rt,
	}, nil
}

// Output returns the source's texture for the default output name and
// the graph fallback otherwise.
func (s *sourceNode) Output(outputName string) backend.Texture {
	if s.disposed || s.rt == nil {
		return s.graph.fallbackTexture()
	}
	if outputName != "" && outputName != DefaultOutput {
		Logger().Warn("rg: unknown output name", "node", s.name, "output", outputName)
		return s.graph.fallbackTexture()
	}
	return s.rt.Texture(0)
}

// Resize recreates the target and forces a re-upload on the next frame.
func (s *sourceNode) Resize(width, height int) error {
	if s.disposed {
		return ErrDisposed
	}
	if width == s.width && height == s.height {
		return nil
	}
	s.width, s.height = width, height
	s.dirty = true
	return s.rt.Resize(width, height)
}

// Dispose releases the source's target. Idempotent.
func (s *sourceNode) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.detachAll()
	s.rt.Release()
}

// ImageSource produces a texture from a still image. The image is
// rescaled to the node's resolution and uploaded once; it re-uploads
// only when SetImage supplies a new one or the node is resized.
type ImageSource struct {
	sourceNode
	img image.Image
}

// NewImageSource creates an image source node. The image may be nil and
// supplied later via SetImage; until then the texture stays
// transparent black.
func (g *Graph) NewImageSource(img image.Image, opts ...NodeOption) (*ImageSource, error) {
	sn, err := g.newSourceNode("image", opts)
	if err != nil {
		return nil, err
	}
	n := &ImageSource{sourceNode: sn, img: img}
	n.dirty = img != nil
	g.register(n)
	return n, nil
}

// SetImage replaces the source image. The upload happens on the next
// frame.
func (n *ImageSource) SetImage(img image.Image) {
	n.img = img
	n.dirty = img != nil
}

func (n *ImageSource) Process(f *Frame) error {
	n.lastFrame = f.Number
	if !n.dirty || n.img == nil {
		return nil
	}
	if err := n.graph.device.Upload(n.rt.Texture(0), rasterize(n.img, n.width, n.height)); err != nil {
		return err
	}
	// Stays dirty on a failed upload so the next frame retries.
	n.dirty = false
	return nil
}

// DrawFunc paints a frame of a canvas source into dst, which is sized
// to the node's resolution and starts out zeroed.
type DrawFunc func(dst *image.RGBA)

// CanvasSource produces a texture from a CPU-side draw callback. The
// callback runs only when the node is marked dirty, not every frame,
// so static overlays cost one rasterization.
type CanvasSource struct {
	sourceNode
	drawFn DrawFunc
}

// NewCanvasSource creates a canvas source node. A non-nil callback is
// invoked on the first frame and after every MarkDirty or SetDraw.
func (g *Graph) NewCanvasSource(fn DrawFunc, opts ...NodeOption) (*CanvasSource, error) {
	sn, err := g.newSourceNode("canvas", opts)
	if err != nil {
		return nil, err
	}
	n := &CanvasSource{sourceNode: sn, drawFn: fn}
	n.dirty = fn != nil
	g.register(n)
	return n, nil
}

// SetDraw replaces the draw callback and schedules a redraw.
func (n *CanvasSource) SetDraw(fn DrawFunc) {
	n.drawFn = fn
	n.dirty = fn != nil
}

// MarkDirty schedules a redraw with the current callback on the next
// frame.
func (n *CanvasSource) MarkDirty() { n.dirty = n.drawFn != nil }

func (n *CanvasSource) Process(f *Frame) error {
	n.lastFrame = f.Number
	if !n.dirty || n.drawFn == nil {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, n.width, n.height))
	n.drawFn(dst)
	if err := n.graph.device.Upload(n.rt.Texture(0), dst.Pix); err != nil {
		return err
	}
	n.dirty = false
	return nil
}

// FrameProvider supplies decoded video frames. NextFrame returns the
// most recent frame and whether it is new since the previous call; a
// (nil, false) result leaves the texture untouched.
type FrameProvider interface {
	NextFrame() (image.Image, bool)
}

// VideoSource produces a texture from a FrameProvider polled once per
// graph frame. Decoding and pacing live in the provider; the node only
// uploads frames the provider reports as new.
type VideoSource struct {
	sourceNode
	provider FrameProvider
}

// NewVideoSource creates a video source node backed by the given
// provider.
func (g *Graph) NewVideoSource(provider FrameProvider, opts ...NodeOption) (*VideoSource, error) {
	sn, err := g.newSourceNode("video", opts)
	if err != nil {
		return nil, err
	}
	n := &VideoSource{sourceNode: sn, provider: provider}
	g.register(n)
	return n, nil
}

func (n *VideoSource) Process(f *Frame) error {
	n.lastFrame = f.Number
	if n.provider == nil {
		return nil
	}
	img, ok := n.provider.NextFrame()
	if !ok || img == nil {
		return nil
	}
	return n.graph.device.Upload(n.rt.Texture(0), rasterize(img, n.width, n.height))
}
