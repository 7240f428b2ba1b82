package rg

import (
	"github.com/gogpu/rg/backend"
)

// routeTarget addresses an internal node's slot or uniform name.
type routeTarget struct {
	node NodeID
	name string
}

// CompositeNode is a facade over a fixed internal pipeline: an ordered
// list of member nodes plus routing tables mapping the composite's
// external input slots, uniforms and output names onto its members.
// Names without an explicit route forward to the designated output
// member.
// Evaluation order for the members is the authored Add order, not a
// derived one; the composite is a builder-configured pipeline, not a
// nested scheduler.
type CompositeNode struct {
	baseNode

	members []Node

	inputRoutes   map[string][]routeTarget
	uniformRoutes map[string][]routeTarget
	outputRoutes  map[string]routeTarget
}

// NewComposite creates an empty composite node. Members are created
// through the usual graph factories, then attached with Add and exposed
// with RouteInput, RouteUniform and RouteOutput.
func (g *Graph) NewComposite(opts ...NodeOption) (*CompositeNode, error) {
	o := defaultNodeOptions(g)
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = "composite"
	}
	n := &CompositeNode{
		baseNode:      newBaseNode(g, g.allocID(), o.name, o.width, o.height),
		inputRoutes:   make(map[string][]routeTarget),
		uniformRoutes: make(map[string][]routeTarget),
		outputRoutes:  make(map[string]routeTarget),
	}
	g.register(n)
	return n, nil
}

// Add appends a member to the composite's evaluation order. The last
// member added becomes the default output unless RouteOutput overrides
// it. Internal wiring between members uses their own Connect calls.
func (c *CompositeNode) Add(member Node) *CompositeNode {
	if member == nil || member.base().graph != c.graph {
		Logger().Warn("rg: composite member rejected", "composite", c.name)
		return c
	}
	c.members = append(c.members, member)
	c.outputRoutes[DefaultOutput] = routeTarget{node: member.base().id, name: DefaultOutput}
	return c
}

// RouteInput exposes a member's input slot as an external slot on the
// composite. One external slot may fan out to several members.
func (c *CompositeNode) RouteInput(externalSlot string, member Node, memberSlot string) *CompositeNode {
	if member == nil {
		return c
	}
	c.inputRoutes[externalSlot] = append(c.inputRoutes[externalSlot],
		routeTarget{node: member.base().id, name: memberSlot})
	return c
}

// RouteUniform exposes a member's uniform as an external uniform name
// on the composite.
func (c *CompositeNode) RouteUniform(externalName string, member Node, memberName string) *CompositeNode {
	if member == nil {
		return c
	}
	c.uniformRoutes[externalName] = append(c.uniformRoutes[externalName],
		routeTarget{node: member.base().id, name: memberName})
	return c
}

// RouteOutput exposes a member's named output under an external output
// name on the composite.
func (c *CompositeNode) RouteOutput(externalName string, member Node, memberOutput string) *CompositeNode {
	if member == nil {
		return c
	}
	if externalName == "" {
		externalName = DefaultOutput
	}
	if memberOutput == "" {
		memberOutput = DefaultOutput
	}
	c.outputRoutes[externalName] = routeTarget{node: member.base().id, name: memberOutput}
	return c
}

// inputTargets resolves an external slot name through the routing table,
// defaulting to the same slot on the designated output member when no
// mapping exists.
func (c *CompositeNode) inputTargets(slot string) []routeTarget {
	if routes, ok := c.inputRoutes[slot]; ok {
		return routes
	}
	if out, ok := c.outputRoutes[DefaultOutput]; ok {
		return []routeTarget{{node: out.node, name: slot}}
	}
	return nil
}

// Connect wires an external producer to every member slot routed under
// the external slot name (unrouted slots go to the output member), and
// records the edge on the composite itself so the scheduler visits the
// producer before the composite.
func (c *CompositeNode) Connect(slot string, producer Node, outputName string) error {
	if err := c.baseNode.Connect(slot, producer, outputName); err != nil {
		return err
	}
	for _, route := range c.inputTargets(slot) {
		member, ok := c.graph.nodes[route.node]
		if !ok {
			continue
		}
		if err := member.Connect(route.name, producer, outputName); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect removes the edge on the external slot and on every routed
// member slot.
func (c *CompositeNode) Disconnect(slot string) {
	c.baseNode.Disconnect(slot)
	for _, route := range c.inputTargets(slot) {
		if member, ok := c.graph.nodes[route.node]; ok {
			member.Disconnect(route.name)
		}
	}
}

// UpdateUniform forwards the value to every member uniform routed under
// the external name, defaulting to the output member for unrouted names.
func (c *CompositeNode) UpdateUniform(name string, value Uniform) {
	routes, ok := c.uniformRoutes[name]
	if !ok {
		if out, hasOut := c.outputRoutes[DefaultOutput]; hasOut {
			routes = []routeTarget{{node: out.node, name: name}}
		} else {
			Logger().Warn("rg: composite has no members", "composite", c.name, "uniform", name)
			return
		}
	}
	for _, route := range routes {
		if member, ok := c.graph.nodes[route.node]; ok {
			member.UpdateUniform(route.name, value)
		}
	}
}

// Output resolves an external output name through the routing table.
func (c *CompositeNode) Output(outputName string) backend.Texture {
	if c.disposed {
		return c.graph.fallbackTexture()
	}
	if outputName == "" {
		outputName = DefaultOutput
	}
	route, ok := c.outputRoutes[outputName]
	if !ok {
		Logger().Warn("rg: unknown output name", "node", c.name, "output", outputName)
		return c.graph.fallbackTexture()
	}
	member, ok := c.graph.nodes[route.node]
	if !ok {
		return c.graph.fallbackTexture()
	}
	return member.Output(route.name)
}

// Process evaluates the members in authored order. A member already
// stamped for this frame (for example because it is also reachable
// outside the composite) is skipped, as is a member disposed behind the
// composite's back.
func (c *CompositeNode) Process(f *Frame) error {
	c.lastFrame = f.Number
	if c.disposed {
		return ErrDisposed
	}
	for _, member := range c.members {
		b := member.base()
		if b.disposed || b.lastFrame == f.Number {
			continue
		}
		if err := member.Process(f); err != nil {
			return err
		}
	}
	return nil
}

// Resize fans out to every member.
func (c *CompositeNode) Resize(width, height int) error {
	if c.disposed {
		return ErrDisposed
	}
	c.width, c.height = width, height
	for _, member := range c.members {
		if err := member.Resize(width, height); err != nil {
			return err
		}
	}
	return nil
}

// Dispose disposes every member and detaches the composite. Idempotent.
func (c *CompositeNode) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	for _, member := range c.members {
		member.Dispose()
	}
	c.members = nil
	c.detachAll()
}
