package rg

import (
	"fmt"

	"github.com/gogpu/rg/backend"
)

// Reserved global uniform names. These are injected by the graph once
// per frame and cannot be redefined by node-local uniforms.
const (
	// GlobalResolution is the node's render resolution (vec2).
	GlobalResolution = "u_resolution"

	// GlobalFrame is the frame counter (float).
	GlobalFrame = "u_frame"

	// GlobalTime is the driver-supplied time in seconds (float).
	GlobalTime = "u_time"

	// GlobalPointer is the pointer position and click state (vec3:
	// x, y in pixels, z is 1 while pressed).
	GlobalPointer = "u_pointer"

	// GlobalPointerVelocity is the pointer movement since the previous
	// frame (vec2, pixels per frame).
	GlobalPointerVelocity = "u_pointerVelocity"

	// GlobalPixelSize is the reciprocal render resolution (vec2).
	GlobalPixelSize = "u_pixelSize"

	// GlobalAspect is width divided by height (float).
	GlobalAspect = "u_aspect"

	// GlobalPrev is the previous-frame texture of a feedback node. It is
	// a texture binding, not a numeric uniform, and is distinct from
	// regular input slots so shader authors can tell history from inputs.
	GlobalPrev = "u_prev"
)

// reservedUniform reports whether name is one of the auto-injected
// global uniform names.
func reservedUniform(name string) bool {
	switch name {
	case GlobalResolution, GlobalFrame, GlobalTime, GlobalPointer,
		GlobalPointerVelocity, GlobalPixelSize, GlobalAspect, GlobalPrev:
		return true
	}
	return false
}

// UniformKind identifies the component layout of a Uniform value.
type UniformKind uint8

const (
	// UniformFloat is a single float component.
	UniformFloat UniformKind = iota

	// UniformVec2 is two float components.
	UniformVec2

	// UniformVec3 is three float components.
	UniformVec3

	// UniformVec4 is four float components.
	UniformVec4
)

// String returns the string representation of the kind.
func (k UniformKind) String() string {
	switch k {
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Components returns the number of meaningful float components.
func (k UniformKind) Components() int {
	switch k {
	case UniformFloat:
		return 1
	case UniformVec2:
		return 2
	case UniformVec3:
		return 3
	case UniformVec4:
		return 4
	default:
		return 0
	}
}

// Uniform is a numeric shader uniform value: a float or a 2-, 3- or
// 4-component vector. The zero value is a float 0.
type Uniform struct {
	kind UniformKind
	vec  [4]float32
}

// Float returns a scalar uniform value.
func Float(v float64) Uniform {
	return Uniform{kind: UniformFloat, vec: [4]float32{float32(v)}}
}

// Vec2 returns a 2-component uniform value.
func Vec2(x, y float64) Uniform {
	return Uniform{kind: UniformVec2, vec: [4]float32{float32(x), float32(y)}}
}

// Vec3 returns a 3-component uniform value.
func Vec3(x, y, z float64) Uniform {
	return Uniform{kind: UniformVec3, vec: [4]float32{float32(x), float32(y), float32(z)}}
}

// Vec4 returns a 4-component uniform value.
func Vec4(x, y, z, w float64) Uniform {
	return Uniform{kind: UniformVec4, vec: [4]float32{float32(x), float32(y), float32(z), float32(w)}}
}

// Kind returns the component layout of the value.
func (u Uniform) Kind() UniformKind { return u.kind }

// binding converts the value to a device uniform binding.
func (u Uniform) binding(name string) backend.UniformBinding {
	return backend.UniformBinding{
		Name:       name,
		Components: u.vec,
		Count:      u.kind.Components(),
	}
}

// Uniforms maps uniform names to values.
type Uniforms map[string]Uniform
