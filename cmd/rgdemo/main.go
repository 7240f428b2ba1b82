// Command rgdemo demonstrates the rg dataflow rendering engine. It
// builds a small graph (animated canvas source into a vignette shader
// into a feedback trail), evaluates a number of frames and writes the
// final frame as a PNG.
package main

import (
	"flag"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"

	"github.com/gogpu/rg"
	"github.com/gogpu/rg/backend"
	_ "github.com/gogpu/rg/backend/wgpu"
)

const vignetteSource = `
fn rg_main(uv: vec2<f32>) -> vec4<f32> {
    let c = rg_sample_image(uv);
    let d = distance(uv, vec2<f32>(0.5, 0.5));
    return vec4<f32>(c.rgb * (1.0 - d * d * u_strength().x), c.a);
}
`

const trailSource = `
fn rg_main(uv: vec2<f32>) -> vec4<f32> {
    let cur = rg_sample_image(uv);
    let prev = rg_sample_u_prev(uv);
    return mix(prev, cur, 0.2);
}
`

func main() {
	var (
		width   = flag.Int("width", 512, "render width")
		height  = flag.Int("height", 512, "render height")
		frames  = flag.Int("frames", 120, "frames to evaluate")
		output  = flag.String("output", "demo.png", "output file")
		device  = flag.String("device", "", "device name (default: best available)")
		verbose = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		rg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var opts []rg.GraphOption
	if *device != "" {
		d := backend.Get(*device)
		if d == nil {
			log.Fatalf("unknown device %q (available: %v)", *device, backend.Available())
		}
		if err := d.Init(); err != nil {
			log.Fatalf("init device %q: %v", *device, err)
		}
		opts = append(opts, rg.WithDevice(d))
	}
	g, err := rg.New(*width, *height, opts...)
	if err != nil {
		log.Fatalf("create graph: %v", err)
	}
	defer g.Dispose()

	var t float64
	src, err := g.NewCanvasSource(func(dst *image.RGBA) {
		drawOrbit(dst, t)
	})
	if err != nil {
		log.Fatalf("create source: %v", err)
	}

	vignette, err := g.NewShader(vignetteSource)
	if err != nil {
		log.Fatalf("create vignette: %v", err)
	}
	vignette.UpdateUniform("u_strength", rg.Float(1.5))
	if err := vignette.Connect("image", src, ""); err != nil {
		log.Fatalf("connect vignette: %v", err)
	}

	trail, err := g.NewFeedbackShader(trailSource)
	if err != nil {
		log.Fatalf("create trail: %v", err)
	}
	if err := trail.Connect("image", vignette, ""); err != nil {
		log.Fatalf("connect trail: %v", err)
	}
	g.SetOutput(trail)

	for i := 0; i < *frames; i++ {
		t = float64(i) / 60
		src.MarkDirty()
		if _, err := g.Frame(t); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
	}

	pix, err := g.ReadPixels()
	if err != nil {
		log.Fatalf("read pixels: %v", err)
	}
	img := &image.RGBA{
		Pix:    pix,
		Stride: *width * 4,
		Rect:   image.Rect(0, 0, *width, *height),
	}
	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatalf("encode png: %v", err)
	}
	log.Printf("demo saved to %s (%dx%d, %d frames, device %s)",
		*output, *width, *height, *frames, g.Device().Name())
}

// drawOrbit paints a bright dot orbiting the canvas center.
func drawOrbit(dst *image.RGBA, t float64) {
	b := dst.Bounds()
	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	r := math.Min(cx, cy) * 0.6
	x := int(cx + r*math.Cos(t*2*math.Pi*0.5))
	y := int(cy + r*math.Sin(t*2*math.Pi*0.5))
	dot := image.Rect(x-12, y-12, x+12, y+12)
	draw.Draw(dst, dot, image.NewUniform(color.RGBA{R: 255, G: 200, B: 64, A: 255}), image.Point{}, draw.Src)
}
