package rg

import "testing"

func TestUniformKinds(t *testing.T) {
	cases := []struct {
		value Uniform
		kind  UniformKind
		count int
	}{
		{Float(1.5), UniformFloat, 1},
		{Vec2(1, 2), UniformVec2, 2},
		{Vec3(1, 2, 3), UniformVec3, 3},
		{Vec4(1, 2, 3, 4), UniformVec4, 4},
	}
	for _, c := range cases {
		if c.value.Kind() != c.kind {
			t.Errorf("%v: Kind() = %v, want %v", c.value, c.value.Kind(), c.kind)
		}
		if got := c.value.Kind().Components(); got != c.count {
			t.Errorf("%v: Components() = %d, want %d", c.kind, got, c.count)
		}
	}
}

func TestUniformBinding(t *testing.T) {
	b := Vec3(0.5, 0.25, 1).binding("u_tint")
	if b.Name != "u_tint" || b.Count != 3 {
		t.Fatalf("binding = %+v", b)
	}
	if b.Components != [4]float32{0.5, 0.25, 1, 0} {
		t.Errorf("components = %v", b.Components)
	}
}

func TestReservedUniformNames(t *testing.T) {
	for _, name := range []string{
		GlobalResolution, GlobalFrame, GlobalTime, GlobalPointer,
		GlobalPointerVelocity, GlobalPixelSize, GlobalAspect, GlobalPrev,
	} {
		if !reservedUniform(name) {
			t.Errorf("%q not reserved", name)
		}
	}
	if reservedUniform("u_strength") {
		t.Error("u_strength wrongly reserved")
	}
}
