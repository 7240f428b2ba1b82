package rg

import (
	"image/color"
	"testing"

	"github.com/gogpu/rg/backend"
)

func TestFeedbackPrevIsPreviousFrameOutput(t *testing.T) {
	g, dev := newTestGraph(t, 4, 4)
	fb, err := g.NewFeedbackShader(passthrough)
	if err != nil {
		t.Fatalf("NewFeedbackShader: %v", err)
	}
	g.SetOutput(fb)

	var prevOutput backend.Texture
	for frame := 1; frame <= 4; frame++ {
		if _, err := g.Frame(float64(frame)); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
		last := dev.LastDraw()
		bound := last.Textures[len(last.Textures)-1]
		if bound.Name != GlobalPrev {
			t.Fatalf("frame %d: last binding is %q, want %q", frame, bound.Name, GlobalPrev)
		}
		if frame > 1 && bound.Texture != prevOutput {
			t.Errorf("frame %d: %s is not the previous frame's output texture", frame, GlobalPrev)
		}
		if bound.Texture == fb.Output("") {
			t.Errorf("frame %d: node read and wrote the same buffer", frame)
		}
		prevOutput = fb.Output("")
	}
}

func TestFeedbackBuffersStartCleared(t *testing.T) {
	g, dev := newTestGraph(t, 4, 4)
	base := dev.Stats().Clears
	fb, err := g.NewFeedbackShader(passthrough)
	if err != nil {
		t.Fatalf("NewFeedbackShader: %v", err)
	}
	if n := dev.Stats().Clears - base; n != 2 {
		t.Errorf("%d clears at creation, want one per history buffer", n)
	}
	// The first frame samples a buffer nothing has drawn into yet; it
	// must already hold transparent black.
	pix, err := g.Device().ReadPixels(fb.targets[fb.current].Texture(0))
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range pix {
		if b != 0 {
			t.Fatalf("fresh history buffer not transparent black: byte %d = %d", i, b)
		}
	}
}

func TestFeedbackAccumulatesInput(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	src, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{G: 255, A: 255}))
	fb, _ := g.NewFeedbackShader(passthrough)
	if err := fb.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(fb)

	if _, err := g.Frame(0); err != nil {
		t.Fatal(err)
	}
	pix, err := g.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if pix[1] != 255 || pix[3] != 255 {
		t.Errorf("first frame pixel = %v, want opaque green", pix[:4])
	}
}

func TestFeedbackResizeDiscardsHistory(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	src, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{R: 255, A: 255}))
	fb, _ := g.NewFeedbackShader(passthrough)
	if err := fb.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(fb)
	for frame := 0; frame < 3; frame++ {
		if _, err := g.Frame(float64(frame)); err != nil {
			t.Fatal(err)
		}
	}

	if err := fb.Resize(8, 8); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if fb.current != 0 {
		t.Errorf("flip index = %d after resize, want 0", fb.current)
	}
	out := fb.Output("")
	if out.Width() != 8 || out.Height() != 8 {
		t.Fatalf("output = %dx%d after resize, want 8x8", out.Width(), out.Height())
	}
	pix, err := g.Device().ReadPixels(out)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range pix {
		if b != 0 {
			t.Fatalf("history survived resize: byte %d = %d", i, b)
		}
	}
}

func TestFeedbackDisposeIdempotent(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	fb, _ := g.NewFeedbackShader(passthrough)
	fb.Dispose()
	fb.Dispose()
	if fb.Output("") == nil {
		t.Error("Output after Dispose is nil")
	}
}
