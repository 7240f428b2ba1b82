package rg

import "github.com/gogpu/rg/backend"

// NodeOption configures a node during creation.
// Use functional options to customize node behavior.
//
// Example:
//
//	// Quarter-resolution float buffer for an accumulation pass:
//	fx, err := g.NewFeedbackShader(accumSrc,
//	    rg.WithSize(256, 256),
//	    rg.WithFormat(backend.FormatRGBA16F))
type NodeOption func(*nodeOptions)

// nodeOptions holds optional configuration for node creation.
type nodeOptions struct {
	width, height int
	format        backend.TextureFormat
	filter        backend.FilterMode
	wrap          backend.WrapMode
	targets       int
	name          string
	uniforms      Uniforms
}

// defaultNodeOptions returns the defaults for a graph of the given size.
func defaultNodeOptions(g *Graph) nodeOptions {
	return nodeOptions{
		width:   g.width,
		height:  g.height,
		format:  backend.FormatRGBA8,
		filter:  backend.FilterLinear,
		wrap:    backend.WrapClamp,
		targets: 1,
	}
}

// WithSize sets the node's logical render resolution, independent of the
// graph's display resolution.
func WithSize(width, height int) NodeOption {
	return func(o *nodeOptions) {
		o.width = width
		o.height = height
	}
}

// WithFormat requests a render target pixel format. A floating point
// format the device cannot attach falls back once to FormatRGBA8; the
// downgrade is permanent for the node.
func WithFormat(f backend.TextureFormat) NodeOption {
	return func(o *nodeOptions) {
		o.format = f
	}
}

// WithFilter sets the sampling filter used when the node's output is
// bound as another node's input.
func WithFilter(f backend.FilterMode) NodeOption {
	return func(o *nodeOptions) {
		o.filter = f
	}
}

// WithWrap sets the addressing mode used when the node's output is
// bound as another node's input.
func WithWrap(w backend.WrapMode) NodeOption {
	return func(o *nodeOptions) {
		o.wrap = w
	}
}

// WithTargets sets the number of simultaneous color outputs of a
// multi-target node (1 to 4). Other node kinds ignore it.
func WithTargets(n int) NodeOption {
	return func(o *nodeOptions) {
		o.targets = n
	}
}

// WithUniforms seeds the node's local uniform values at creation, as if
// UpdateUniform had been called for each entry. Reserved global names
// are rejected the same way.
func WithUniforms(u Uniforms) NodeOption {
	return func(o *nodeOptions) {
		o.uniforms = u
	}
}

// WithName sets the node's human-readable name, used in logs and debug
// labels. Defaults to the node kind ("shader", "feedback", ...).
func WithName(name string) NodeOption {
	return func(o *nodeOptions) {
		o.name = name
	}
}
