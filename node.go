package rg

import (
	"sort"

	"github.com/gogpu/rg/backend"
)

// NodeID is the stable identity of a node within its graph.
type NodeID uint64

// DefaultOutput is the output name used when a connection does not name
// one explicitly.
const DefaultOutput = "default"

// Node is a unit in the rendering graph that produces a texture.
//
// The concrete kinds are a closed set: image/canvas/video sources
// (SourceNode), single-pass shaders (ShaderNode), ping-pong feedback
// shaders (FeedbackNode), multi-target shaders (MultiTargetNode) and
// sub-graph facades (CompositeNode). All are created through Graph
// factory methods, which allocate their render targets immediately.
type Node interface {
	// ID returns the node's stable identity.
	ID() NodeID

	// Name returns the node's human-readable name.
	Name() string

	// Size returns the node's logical render resolution.
	Size() (width, height int)

	// Connect wires the named input slot to a producer's named output.
	// An empty outputName means DefaultOutput. Connecting over an
	// existing edge silently replaces it. Fails only on a nil producer
	// or a producer from another graph.
	Connect(slot string, producer Node, outputName string) error

	// Disconnect removes the edge on the named input slot; a no-op when
	// the slot is not connected.
	Disconnect(slot string)

	// Output returns the texture behind the named output. It never
	// returns nil: before first evaluation (or for unknown names) it
	// degrades to the graph's shared 1x1 transparent texture.
	Output(outputName string) backend.Texture

	// UpdateUniform sets a node-local uniform. Reserved global names are
	// ignored with a warning.
	UpdateUniform(name string, value Uniform)

	// Process evaluates the node for the given frame. Called by the
	// graph scheduler in dependency order; a node whose frame stamp
	// already equals the current frame is skipped.
	Process(f *Frame) error

	// Resize recreates the node's render target(s) at the new
	// resolution. Feedback nodes discard their history.
	Resize(width, height int) error

	// Dispose releases the node's device resources. Safe to call twice.
	Dispose()

	// base exposes the embedded graph bookkeeping. Unexported so the
	// set of node kinds stays closed.
	base() *baseNode
}

// connection is one directed edge: an input slot referencing a
// producer's named output. The producer is held by id so the consumer
// side stays the only strong reference.
type connection struct {
	producer NodeID
	output   string
}

// baseNode carries the graph bookkeeping shared by every node kind:
// identity, input edges, consumer back-references, logical resolution,
// node-local uniforms and the per-frame memoization stamp.
type baseNode struct {
	id    NodeID
	name  string
	graph *Graph

	width, height int

	// inputs maps slot name to edge. Iteration order is irrelevant to
	// semantics; helpers sort slot names for deterministic binding.
	inputs map[string]connection

	// consumers holds back-references by id, used only to invalidate;
	// never traversed for evaluation and never owning.
	consumers map[NodeID]struct{}

	uniforms  Uniforms
	lastFrame uint64
	disposed  bool
}

func newBaseNode(g *Graph, id NodeID, name string, width, height int) baseNode {
	return baseNode{
		id:        id,
		name:      name,
		graph:     g,
		width:     width,
		height:    height,
		inputs:    make(map[string]connection),
		consumers: make(map[NodeID]struct{}),
		uniforms:  make(Uniforms),
	}
}

func (b *baseNode) base() *baseNode { return b }

// ID returns the node's stable identity.
func (b *baseNode) ID() NodeID { return b.id }

// Name returns the node's human-readable name.
func (b *baseNode) Name() string { return b.name }

// Size returns the node's logical render resolution.
func (b *baseNode) Size() (int, int) { return b.width, b.height }

// Connect wires an input slot to a producer's named output, replacing
// any existing edge on the slot and invalidating the graph's cached
// execution order.
func (b *baseNode) Connect(slot string, producer Node, outputName string) error {
	if producer == nil {
		return ErrNilProducer
	}
	if b.disposed {
		return ErrDisposed
	}
	pb := producer.base()
	if pb.graph != b.graph {
		return ErrNotInGraph
	}
	if outputName == "" {
		outputName = DefaultOutput
	}
	if old, ok := b.inputs[slot]; ok {
		b.graph.dropConsumer(old.producer, b.id)
	}
	b.inputs[slot] = connection{producer: pb.id, output: outputName}
	pb.consumers[b.id] = struct{}{}
	b.graph.invalidateOrder()
	return nil
}

// Disconnect removes the edge on the named slot and drops the consumer
// back-reference on its producer.
func (b *baseNode) Disconnect(slot string) {
	conn, ok := b.inputs[slot]
	if !ok {
		return
	}
	delete(b.inputs, slot)
	b.graph.dropConsumer(conn.producer, b.id)
	b.graph.invalidateOrder()
}

// UpdateUniform sets a node-local uniform value. Reserved global names
// cannot be redefined and are dropped with a warning.
func (b *baseNode) UpdateUniform(name string, value Uniform) {
	if reservedUniform(name) {
		Logger().Warn("rg: uniform name is reserved", "node", b.name, "uniform", name)
		return
	}
	b.uniforms[name] = value
}

// seedUniforms applies initial uniform values through UpdateUniform, so
// reserved names get the same screening.
func (b *baseNode) seedUniforms(u Uniforms) {
	for name, v := range u {
		b.UpdateUniform(name, v)
	}
}

// slotNames returns the connected input slot names in sorted order, so
// texture binding and program layouts are deterministic.
func (b *baseNode) slotNames() []string {
	names := make([]string, 0, len(b.inputs))
	for slot := range b.inputs {
		names = append(names, slot)
	}
	sort.Strings(names)
	return names
}

// inputTexture resolves the texture connected to a slot. A removed
// producer degrades to the graph's fallback texture; per the Node
// contract the result is never nil.
func (b *baseNode) inputTexture(slot string) backend.Texture {
	conn, ok := b.inputs[slot]
	if !ok {
		return b.graph.fallbackTexture()
	}
	producer, ok := b.graph.nodes[conn.producer]
	if !ok {
		Logger().Warn("rg: input producer no longer registered", "node", b.name, "slot", slot)
		return b.graph.fallbackTexture()
	}
	return producer.Output(conn.output)
}

// detachAll removes this node's own input edges (so producers drop
// their back-references) and clears its consumer set. Consumers keep
// their edges; once the node is unregistered their inputTexture lookup
// degrades to the fallback texture instead of crashing the frame.
func (b *baseNode) detachAll() {
	for slot, conn := range b.inputs {
		b.graph.dropConsumer(conn.producer, b.id)
		delete(b.inputs, slot)
	}
	clear(b.consumers)
	b.graph.invalidateOrder()
}
