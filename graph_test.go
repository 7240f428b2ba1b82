package rg

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/rg/backend"
)

// passthrough is a shader body the software device accepts; it never
// parses, but nodes require non-empty source.
const passthrough = `
fn rg_main(uv: vec2<f32>) -> vec4<f32> {
    return rg_sample_image(uv);
}
`

func newTestGraph(t *testing.T, w, h int) (*Graph, *backend.SoftwareDevice) {
	t.Helper()
	dev := backend.NewSoftwareDevice()
	if err := dev.Init(); err != nil {
		t.Fatalf("init software device: %v", err)
	}
	g, err := New(w, h, WithDevice(dev))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(g.Dispose)
	return g, dev
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func TestFrameWithoutOutput(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	tex, err := g.Frame(0)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if tex == nil {
		t.Fatal("Frame returned nil texture")
	}
	if tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("expected 1x1 fallback, got %dx%d", tex.Width(), tex.Height())
	}
}

func TestDependencyFirstOrder(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	a, err := g.NewShader(passthrough, WithName("a"))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	b, _ := g.NewShader(passthrough, WithName("b"))
	c, _ := g.NewShader(passthrough, WithName("c"))
	if err := b.Connect("image", a, ""); err != nil {
		t.Fatalf("connect b<-a: %v", err)
	}
	if err := c.Connect("image", b, ""); err != nil {
		t.Fatalf("connect c<-b: %v", err)
	}
	g.SetOutput(c)
	g.computeOrder()

	pos := make(map[NodeID]int)
	for i, n := range g.order {
		pos[n.ID()] = i
	}
	if len(g.order) != 3 {
		t.Fatalf("order has %d nodes, want 3", len(g.order))
	}
	if !(pos[a.ID()] < pos[b.ID()] && pos[b.ID()] < pos[c.ID()]) {
		t.Errorf("order does not respect dependencies: a=%d b=%d c=%d",
			pos[a.ID()], pos[b.ID()], pos[c.ID()])
	}
}

func TestOrderRecomputedAfterReconnect(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	a, _ := g.NewShader(passthrough, WithName("a"))
	b, _ := g.NewShader(passthrough, WithName("b"))
	c, _ := g.NewShader(passthrough, WithName("c"))
	if err := c.Connect("image", a, ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	g.SetOutput(c)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(g.order) != 2 {
		t.Fatalf("order has %d nodes, want 2", len(g.order))
	}

	// Reroute through b; the next frame must pick up the new shape.
	if err := c.Connect("image", b, ""); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if err := b.Connect("image", a, ""); err != nil {
		t.Fatalf("connect b<-a: %v", err)
	}
	if !g.orderDirty {
		t.Fatal("connect did not invalidate cached order")
	}
	if _, err := g.Frame(1); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(g.order) != 3 {
		t.Errorf("order has %d nodes after reconnect, want 3", len(g.order))
	}
}

func TestDiamondEvaluatesSharedProducerOnce(t *testing.T) {
	g, dev := newTestGraph(t, 8, 8)
	src, _ := g.NewShader(passthrough, WithName("shared"))
	left, _ := g.NewShader(passthrough, WithName("left"))
	right, _ := g.NewShader(passthrough, WithName("right"))
	sink, _ := g.NewShader(passthrough, WithName("sink"))
	if err := left.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	if err := right.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	if err := sink.Connect("a", left, ""); err != nil {
		t.Fatal(err)
	}
	if err := sink.Connect("b", right, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(sink)

	for frame := 1; frame <= 3; frame++ {
		if _, err := g.Frame(float64(frame)); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		if got := dev.DrawCount(src.ps.program); got != frame {
			t.Errorf("after frame %d shared producer drew %d times, want %d", frame, got, frame)
		}
	}
}

func TestUnreachableNodeNotProcessed(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	out, _ := g.NewShader(passthrough, WithName("out"))
	orphan, _ := g.NewShader(passthrough, WithName("orphan"))
	g.SetOutput(out)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if out.lastFrame != 1 {
		t.Errorf("output node lastFrame = %d, want 1", out.lastFrame)
	}
	if orphan.lastFrame != 0 {
		t.Errorf("unreachable node was processed (lastFrame = %d)", orphan.lastFrame)
	}
}

func TestCycleTerminates(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	a, _ := g.NewShader(passthrough, WithName("a"))
	b, _ := g.NewShader(passthrough, WithName("b"))
	if err := a.Connect("image", b, ""); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect("image", a, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(b)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame on cyclic graph: %v", err)
	}
	if a.lastFrame != 1 || b.lastFrame != 1 {
		t.Errorf("cycle members not each evaluated once: a=%d b=%d", a.lastFrame, b.lastFrame)
	}
}

func TestReconnectChangesOutputColor(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	red, err := g.NewImageSource(solidImage(4, 4, color.RGBA{R: 255, A: 255}), WithName("red"))
	if err != nil {
		t.Fatalf("NewImageSource: %v", err)
	}
	fx, _ := g.NewShader(passthrough, WithName("fx"))
	if err := fx.Connect("image", red, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(fx)

	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	pix, err := g.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if pix[0] != 255 || pix[1] != 0 || pix[2] != 0 || pix[3] != 255 {
		t.Fatalf("first frame pixel = %v, want red", pix[:4])
	}

	blue, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{B: 255, A: 255}), WithName("blue"))
	if err := fx.Connect("image", blue, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Frame(1); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	pix, err = g.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if pix[0] != 0 || pix[1] != 0 || pix[2] != 255 || pix[3] != 255 {
		t.Errorf("second frame pixel = %v, want blue", pix[:4])
	}
}

func TestRemoveProducerDegradesToFallback(t *testing.T) {
	g, dev := newTestGraph(t, 4, 4)
	src, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{R: 255, A: 255}))
	fx, _ := g.NewShader(passthrough)
	if err := fx.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(fx)
	if _, err := g.Frame(0); err != nil {
		t.Fatal(err)
	}

	g.Remove(src)
	if _, err := g.Frame(1); err != nil {
		t.Fatalf("Frame after Remove: %v", err)
	}
	last := dev.LastDraw()
	if len(last.Textures) != 1 {
		t.Fatalf("draw bound %d textures, want 1", len(last.Textures))
	}
	tex := last.Textures[0].Texture
	if tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("expected 1x1 fallback binding, got %dx%d", tex.Width(), tex.Height())
	}
}

func TestGlobalUniformsInjected(t *testing.T) {
	g, dev := newTestGraph(t, 16, 8)
	fx, _ := g.NewShader(passthrough)
	g.SetOutput(fx)
	g.SetPointer(3, 4, true)
	if _, err := g.Frame(2.5); err != nil {
		t.Fatal(err)
	}

	got := make(map[string][4]float32)
	for _, u := range dev.LastDraw().Uniforms {
		got[u.Name] = u.Components
	}
	if v := got[GlobalResolution]; v[0] != 16 || v[1] != 8 {
		t.Errorf("%s = %v, want [16 8]", GlobalResolution, v)
	}
	if v := got[GlobalFrame]; v[0] != 1 {
		t.Errorf("%s = %v, want 1", GlobalFrame, v)
	}
	if v := got[GlobalTime]; v[0] != 2.5 {
		t.Errorf("%s = %v, want 2.5", GlobalTime, v)
	}
	if v := got[GlobalPointer]; v[0] != 3 || v[1] != 4 || v[2] != 1 {
		t.Errorf("%s = %v, want [3 4 1]", GlobalPointer, v)
	}
	if v := got[GlobalAspect]; v[0] != 2 {
		t.Errorf("%s = %v, want 2", GlobalAspect, v)
	}
	if v := got[GlobalPixelSize]; v[0] != 1.0/16 || v[1] != 1.0/8 {
		t.Errorf("%s = %v", GlobalPixelSize, v)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	fx, _ := g.NewShader(passthrough)
	g.SetOutput(fx)
	g.Dispose()
	g.Dispose()
	if _, err := g.Frame(0); !errors.Is(err, ErrDisposed) {
		t.Errorf("Frame after Dispose = %v, want ErrDisposed", err)
	}
	fx.Dispose()
}

func TestGraphResizePropagates(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	fx, _ := g.NewShader(passthrough)
	g.SetOutput(fx)
	if err := g.Resize(32, 16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h := fx.Size(); w != 32 || h != 16 {
		t.Errorf("node size after resize = %dx%d, want 32x16", w, h)
	}
	if tex := fx.Output(""); tex.Width() != 32 || tex.Height() != 16 {
		t.Errorf("output texture = %dx%d, want 32x16", tex.Width(), tex.Height())
	}
}
