package rg

import (
	"errors"
	"fmt"

	"github.com/gogpu/rg/backend"
)

// Frame is the per-evaluation context handed to every node's Process.
// It carries the frame stamp, the driver-supplied time and the global
// uniforms computed once at the top of Graph.Frame.
type Frame struct {
	// Number is the monotonically increasing frame counter, starting
	// at 1 for the first evaluation.
	Number uint64

	// Time is the driver-supplied time in seconds.
	Time float64

	// Globals holds the auto-injected uniforms (resolution, frame,
	// time, pointer state, pixel size, aspect). Shared by every node
	// in the frame; nodes must not mutate it.
	Globals Uniforms

	device backend.Device
}

// Device returns the device the frame renders on.
func (f *Frame) Device() backend.Device { return f.device }

// GraphOption configures a Graph at construction time.
type GraphOption func(*graphConfig)

type graphConfig struct {
	device backend.Device
}

// WithDevice renders on an explicit device instead of the default
// registry selection.
func WithDevice(d backend.Device) GraphOption {
	return func(c *graphConfig) { c.device = d }
}

// Graph owns a set of nodes, the designated output node and the cached
// execution order. All methods must be called from a single goroutine;
// the evaluation model is synchronous and frame-driven.
type Graph struct {
	device     backend.Device
	ownsDevice bool

	width, height int

	nodes  map[NodeID]Node
	nextID NodeID

	output     Node
	outputName string

	frame uint64

	// order caches the dependency-first traversal from the output
	// node. Recomputed lazily at the top of the next Frame after any
	// connect/disconnect/structural change.
	order      []Node
	orderDirty bool

	// pointer state fed in by the driver, exposed as globals.
	pointerX, pointerY float64
	pointerClick       float64
	pointerVelX        float64
	pointerVelY        float64

	// fallback is the shared 1x1 transparent texture handed out for
	// unconnected inputs and never-evaluated outputs.
	fallback backend.Texture

	disposed bool
}

// New creates a graph with the given default node resolution. Without
// WithDevice, the highest-priority registered device is initialized and
// owned by the graph (closed on Dispose).
func New(width, height int, opts ...GraphOption) (*Graph, error) {
	var cfg graphConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	g := &Graph{
		device:     cfg.device,
		width:      width,
		height:     height,
		nodes:      make(map[NodeID]Node),
		orderDirty: true,
	}
	if g.device == nil {
		dev, err := backend.InitDefault()
		if err != nil {
			return nil, fmt.Errorf("rg: %w: %w", ErrNoDevice, err)
		}
		g.device = dev
		g.ownsDevice = true
	}
	propagateLogger(g.device, Logger())
	fallback, err := g.device.CreateTexture(backend.TextureDescriptor{
		Label:  "rg-fallback",
		Width:  1,
		Height: 1,
		Format: backend.FormatRGBA8,
		Filter: backend.FilterNearest,
		Wrap:   backend.WrapClamp,
	})
	if err != nil {
		if g.ownsDevice {
			g.device.Close()
		}
		return nil, err
	}
	if err := g.device.Upload(fallback, []byte{0, 0, 0, 0}); err != nil {
		g.device.DestroyTexture(fallback)
		if g.ownsDevice {
			g.device.Close()
		}
		return nil, err
	}
	g.fallback = fallback
	Logger().Debug("rg: graph created", "device", g.device.Name(), "width", width, "height", height)
	return g, nil
}

// Device returns the device the graph renders on.
func (g *Graph) Device() backend.Device { return g.device }

// Size returns the graph's default node resolution.
func (g *Graph) Size() (int, int) { return g.width, g.height }

// register assigns an id and adds the node to the live set.
func (g *Graph) register(n Node) {
	g.nodes[n.base().id] = n
	g.orderDirty = true
}

// allocID reserves the next node id.
func (g *Graph) allocID() NodeID {
	g.nextID++
	return g.nextID
}

func (g *Graph) invalidateOrder() { g.orderDirty = true }

// dropConsumer removes a consumer back-reference from the producer with
// the given id, if it is still registered.
func (g *Graph) dropConsumer(producer NodeID, consumer NodeID) {
	if p, ok := g.nodes[producer]; ok {
		delete(p.base().consumers, consumer)
	}
}

func (g *Graph) fallbackTexture() backend.Texture { return g.fallback }

// SetOutput designates the node whose default output is the graph's
// result. Evaluation only traverses nodes reachable from it.
func (g *Graph) SetOutput(n Node) {
	g.SetOutputNamed(n, DefaultOutput)
}

// SetOutputNamed designates the output node and which of its named
// outputs Frame returns.
func (g *Graph) SetOutputNamed(n Node, outputName string) {
	if outputName == "" {
		outputName = DefaultOutput
	}
	g.output = n
	g.outputName = outputName
	g.orderDirty = true
}

// Connect is graph-level sugar for consumer.Connect, matching the
// producer-first wiring direction used when building graphs from data.
func (g *Graph) Connect(producer, consumer Node, slot, outputName string) error {
	if consumer == nil {
		return ErrNilProducer
	}
	return consumer.Connect(slot, producer, outputName)
}

// Remove disposes a node and unregisters it, detaching every edge that
// touches it. Consumers referencing it afterwards bind the fallback
// texture.
func (g *Graph) Remove(n Node) {
	if n == nil {
		return
	}
	b := n.base()
	if _, ok := g.nodes[b.id]; !ok {
		return
	}
	n.Dispose()
	delete(g.nodes, b.id)
	if g.output == n {
		g.output = nil
	}
	g.orderDirty = true
}

// Frame evaluates the graph once and returns the output node's texture.
// The order is the cached dependency-first traversal from the output
// node; nodes not reachable from it are skipped. A node failure stops
// neither the traversal nor the frame: remaining nodes still run and
// the joined errors are returned alongside the (possibly stale) output.
func (g *Graph) Frame(t float64) (backend.Texture, error) {
	if g.disposed {
		return nil, ErrDisposed
	}
	if g.output == nil {
		return g.fallback, nil
	}
	g.frame++
	if g.orderDirty {
		g.computeOrder()
	}
	f := &Frame{
		Number:  g.frame,
		Time:    t,
		Globals: g.globals(t),
		device:  g.device,
	}
	var errs []error
	for _, n := range g.order {
		b := n.base()
		if b.disposed || b.lastFrame == g.frame {
			continue
		}
		if err := n.Process(f); err != nil {
			errs = append(errs, fmt.Errorf("rg: node %q: %w", n.Name(), err))
		}
	}
	return g.output.Output(g.outputName), errors.Join(errs...)
}

// globals computes the per-frame auto-injected uniforms once.
func (g *Graph) globals(t float64) Uniforms {
	w, h := float64(g.width), float64(g.height)
	u := make(Uniforms, 8)
	u[GlobalResolution] = Vec2(w, h)
	u[GlobalFrame] = Float(float64(g.frame))
	u[GlobalTime] = Float(t)
	u[GlobalPointer] = Vec3(g.pointerX, g.pointerY, g.pointerClick)
	u[GlobalPointerVelocity] = Vec2(g.pointerVelX, g.pointerVelY)
	u[GlobalPixelSize] = Vec2(1/w, 1/h)
	u[GlobalAspect] = Float(w / h)
	return u
}

// computeOrder rebuilds the cached execution order: a depth-first
// dependency traversal from the output node that appends a node only
// after all of its producers. Edges back into the active visit stack
// are skipped, so a cycle's consumer sees the producer's previous-frame
// texture instead of deadlocking the traversal.
func (g *Graph) computeOrder() {
	g.order = g.order[:0]
	g.orderDirty = false
	if g.output == nil {
		return
	}
	visited := make(map[NodeID]bool, len(g.nodes))
	onStack := make(map[NodeID]bool)

	var visit func(n Node)
	visit = func(n Node) {
		b := n.base()
		if visited[b.id] || onStack[b.id] {
			return
		}
		onStack[b.id] = true
		for _, slot := range b.slotNames() {
			conn := b.inputs[slot]
			if producer, ok := g.nodes[conn.producer]; ok {
				visit(producer)
			}
		}
		delete(onStack, b.id)
		visited[b.id] = true
		g.order = append(g.order, n)
	}
	visit(g.output)
}

// SetPointer feeds driver-side pointer state into the global uniforms:
// position in pixels, click state (0 or 1) and per-frame velocity.
func (g *Graph) SetPointer(x, y float64, click bool) {
	g.pointerVelX = x - g.pointerX
	g.pointerVelY = y - g.pointerY
	g.pointerX, g.pointerY = x, y
	if click {
		g.pointerClick = 1
	} else {
		g.pointerClick = 0
	}
}

// Resize changes the graph's default resolution and resizes every
// registered node. Feedback history is discarded by the nodes.
func (g *Graph) Resize(width, height int) error {
	g.width, g.height = width, height
	var errs []error
	for _, n := range g.nodes {
		if err := n.Resize(width, height); err != nil {
			errs = append(errs, fmt.Errorf("rg: resize %q: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// OutputTexture returns the current output texture without evaluating a
// frame. Never nil: before the first frame it is the fallback texture.
func (g *Graph) OutputTexture() backend.Texture {
	if g.output == nil {
		return g.fallback
	}
	return g.output.Output(g.outputName)
}

// ReadPixels reads back the current output texture as tightly packed
// RGBA8 bytes.
func (g *Graph) ReadPixels() ([]byte, error) {
	return g.device.ReadPixels(g.OutputTexture())
}

// Dispose releases every node and the graph's own device resources.
// The device is closed only when the graph created it. Idempotent.
func (g *Graph) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	for id, n := range g.nodes {
		n.Dispose()
		delete(g.nodes, id)
	}
	g.output = nil
	g.order = nil
	if g.fallback != nil {
		g.device.DestroyTexture(g.fallback)
		g.fallback = nil
	}
	if g.ownsDevice {
		if err := g.device.Close(); err != nil {
			Logger().Warn("rg: device close failed", "error", err)
		}
	}
}
