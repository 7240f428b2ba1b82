// Package rg is a dataflow rendering engine for Go.
//
// # Overview
//
// rg evaluates a directed graph of texture-producing nodes once per
// frame: image, video and canvas sources feed single-pass shaders,
// ping-pong feedback shaders and multi-target shaders, and the
// designated output node's texture is the frame result. It is designed
// to integrate with the GoGPU ecosystem and runs on gogpu/wgpu or on a
// pure-Go software device.
//
// # Quick Start
//
//	import "github.com/gogpu/rg"
//
//	g, err := rg.New(512, 512)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Dispose()
//
//	src, _ := g.NewCanvasSource(func(img *image.RGBA) {
//		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)
//	})
//	fx, _ := g.NewShader(invertSource)
//	_ = fx.Connect("u_image", src, "")
//	g.SetOutput(fx)
//
//	for t := 0.0; running; t += 1.0 / 60 {
//		tex, err := g.Frame(t)
//		// blit tex to the display surface
//	}
//
// # Architecture
//
// The library is organized into:
//   - Public API: Graph, Node, the node variants, Uniform
//   - Devices: backend (registry + software), backend/wgpu (GPU)
//
// Shader-backed nodes receive a set of auto-injected global uniforms
// (resolution, frame, time, pointer state, pixel size, aspect ratio)
// merged with their node-local uniforms, and their source runs through
// the snippet preprocessor (see RegisterSnippet) before compilation.
//
// # Scheduling
//
// Evaluation is single-threaded and frame-driven. The graph caches a
// dependency-first execution order, recomputed on the frame after any
// connect or disconnect, and stamps each node with the frame on which it
// last evaluated so shared producers run exactly once per frame.
package rg

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
