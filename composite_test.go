package rg

import (
	"image/color"
	"testing"
)

// buildBloomLike assembles a two-stage composite: an inner "blur" stage
// feeding an inner "combine" stage, with the external image routed to
// both members.
func buildBloomLike(t *testing.T, g *Graph) (*CompositeNode, *ShaderNode, *ShaderNode) {
	t.Helper()
	blur, err := g.NewShader(passthrough, WithName("blur"))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	combine, err := g.NewShader(passthrough, WithName("combine"))
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if err := combine.Connect("blurred", blur, ""); err != nil {
		t.Fatalf("internal wiring: %v", err)
	}
	comp, err := g.NewComposite(WithName("bloom"))
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}
	comp.Add(blur).Add(combine).
		RouteInput("image", blur, "image").
		RouteInput("image", combine, "image").
		RouteUniform("u_amount", blur, "u_radius")
	return comp, blur, combine
}

func TestCompositeRoutesInputs(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	src, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{R: 255, A: 255}))
	if err := comp.Connect("image", src, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for _, member := range []*ShaderNode{blur, combine} {
		conn, ok := member.base().inputs["image"]
		if !ok {
			t.Fatalf("%s did not receive the routed input", member.Name())
		}
		if conn.producer != src.ID() {
			t.Errorf("%s input references %d, want %d", member.Name(), conn.producer, src.ID())
		}
	}
	g.SetOutput(comp)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	pix, err := g.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if pix[0] != 255 || pix[3] != 255 {
		t.Errorf("composite output pixel = %v, want red flowing through", pix[:4])
	}
}

func TestCompositeMembersRunInAuthoredOrder(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	g.SetOutput(comp)
	if _, err := g.Frame(0); err != nil {
		t.Fatal(err)
	}
	if blur.lastFrame != 1 || combine.lastFrame != 1 {
		t.Errorf("members not evaluated: blur=%d combine=%d", blur.lastFrame, combine.lastFrame)
	}
	if comp.lastFrame != 1 {
		t.Errorf("composite not stamped: %d", comp.lastFrame)
	}
}

func TestCompositeDefaultOutputIsLastMember(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, _, combine := buildBloomLike(t, g)
	if comp.Output("") != combine.Output("") {
		t.Error("default output is not the last added member's output")
	}
}

func TestCompositeRouteOutput(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, _ := buildBloomLike(t, g)
	comp.RouteOutput("raw", blur, "")
	if comp.Output("raw") != blur.Output("") {
		t.Error("routed output does not resolve to the member texture")
	}
	if tex := comp.Output("missing"); tex.Width() != 1 || tex.Height() != 1 {
		t.Errorf("unknown output = %dx%d, want 1x1 fallback", tex.Width(), tex.Height())
	}
}

func TestCompositeRoutesUniforms(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	comp.UpdateUniform("u_amount", Float(7))
	if u, ok := blur.base().uniforms["u_radius"]; !ok || u.vec[0] != 7 {
		t.Errorf("routed uniform = %v (present=%v), want 7 on blur.u_radius", u.vec, ok)
	}
	if _, ok := combine.base().uniforms["u_radius"]; ok {
		t.Error("uniform leaked to an unrouted member")
	}
	// Unrouted external names forward to the output member.
	comp.UpdateUniform("u_other", Float(1))
	if u, ok := combine.base().uniforms["u_other"]; !ok || u.vec[0] != 1 {
		t.Errorf("unrouted uniform = %v (present=%v), want 1 on the output member", u.vec, ok)
	}
	if _, ok := comp.uniforms["u_other"]; ok {
		t.Error("unrouted uniform stored on the composite itself")
	}
}

func TestCompositeUnroutedConnectGoesToOutputMember(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	src, _ := g.NewImageSource(solidImage(4, 4, color.RGBA{G: 255, A: 255}))
	if err := comp.Connect("overlay", src, ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn, ok := combine.base().inputs["overlay"]
	if !ok || conn.producer != src.ID() {
		t.Fatalf("output member did not receive the unrouted slot (present=%v)", ok)
	}
	if _, ok := blur.base().inputs["overlay"]; ok {
		t.Error("unrouted slot leaked to a non-output member")
	}
	comp.Disconnect("overlay")
	if _, ok := combine.base().inputs["overlay"]; ok {
		t.Error("Disconnect did not forward to the output member")
	}
}

func TestCompositeSkipsDisposedMember(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	g.SetOutput(comp)
	if _, err := g.Frame(0); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	g.Remove(blur)
	if _, err := g.Frame(0.1); err != nil {
		t.Fatalf("Frame after removing a member: %v", err)
	}
	if combine.lastFrame != 2 {
		t.Errorf("surviving member not evaluated: lastFrame=%d, want 2", combine.lastFrame)
	}
}

func TestCompositeDisposeDisposesMembers(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	comp.Dispose()
	comp.Dispose()
	if !blur.disposed || !combine.disposed {
		t.Error("members not disposed with the composite")
	}
}

func TestCompositeResizeFansOut(t *testing.T) {
	g, _ := newTestGraph(t, 4, 4)
	comp, blur, combine := buildBloomLike(t, g)
	if err := comp.Resize(16, 16); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	for _, member := range []*ShaderNode{blur, combine} {
		if w, h := member.Size(); w != 16 || h != 16 {
			t.Errorf("%s = %dx%d after resize, want 16x16", member.Name(), w, h)
		}
	}
}
