package rg

import (
	"errors"
	"testing"
)

const mrtSource = `
fn rg_main_mrt(uv: vec2<f32>) -> Targets {
    var out: Targets;
    let c = rg_sample_image(uv);
    out.c0 = c;
    out.c1 = vec4<f32>(c.a, 0.0, 0.0, 1.0);
    out.c2 = vec4<f32>(uv, 0.0, 1.0);
    return out;
}
`

func TestMultiTargetOutputs(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	mt, err := g.NewMultiTargetShader(mrtSource, WithTargets(3))
	if err != nil {
		t.Fatalf("NewMultiTargetShader: %v", err)
	}
	if mt.Targets() != 3 {
		t.Fatalf("Targets() = %d, want 3", mt.Targets())
	}

	if mt.Output("0") != mt.Output("") || mt.Output("0") != mt.Output(DefaultOutput) {
		t.Error("default output is not an alias for output 0")
	}
	if mt.Output("1") == mt.Output("0") || mt.Output("2") == mt.Output("1") {
		t.Error("numeric outputs are not distinct textures")
	}

	// Out-of-range and non-numeric names degrade to the fallback.
	if tex := mt.Output("3"); tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("out-of-range output = %dx%d, want 1x1 fallback", tex.Width(), tex.Height())
	}
	if tex := mt.Output("glow"); tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("non-numeric output = %dx%d, want 1x1 fallback", tex.Width(), tex.Height())
	}
}

func TestMultiTargetTooManyTargets(t *testing.T) {
	g, _ := newTestGraph(t, 8, 8)
	if _, err := g.NewMultiTargetShader(mrtSource, WithTargets(5)); !errors.Is(err, ErrTargetCount) {
		t.Errorf("WithTargets(5) = %v, want ErrTargetCount", err)
	}
	if _, err := g.NewMultiTargetShader(mrtSource, WithTargets(0)); !errors.Is(err, ErrTargetCount) {
		t.Errorf("WithTargets(0) = %v, want ErrTargetCount", err)
	}
}

func TestMultiTargetDrawsOnce(t *testing.T) {
	g, dev := newTestGraph(t, 8, 8)
	src, _ := g.NewShader(passthrough, WithName("src"))
	mt, _ := g.NewMultiTargetShader(mrtSource, WithTargets(2))
	if err := mt.Connect("image", src, ""); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(mt)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := dev.DrawCount(mt.ps.program); got != 1 {
		t.Errorf("multi-target node drew %d times, want 1", got)
	}
	if got := len(dev.LastDraw().Target.Attachments()); got != 2 {
		t.Errorf("draw target has %d attachments, want 2", got)
	}
}

func TestMultiTargetSecondaryOutputAsInput(t *testing.T) {
	g, dev := newTestGraph(t, 8, 8)
	mt, _ := g.NewMultiTargetShader(mrtSource, WithTargets(2))
	fx, _ := g.NewShader(passthrough)
	if err := fx.Connect("image", mt, "1"); err != nil {
		t.Fatal(err)
	}
	g.SetOutput(fx)
	if _, err := g.Frame(0); err != nil {
		t.Fatal(err)
	}
	last := dev.LastDraw()
	if last.Textures[0].Texture != mt.Output("1") {
		t.Error("consumer did not receive the producer's named output")
	}
}
