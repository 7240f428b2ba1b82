package backend

import (
	"errors"
	"fmt"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested device backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrFormatUnsupported is returned by CreateTexture when the device cannot
	// allocate an attachable texture in the requested format. Callers are
	// expected to negotiate down to an 8-bit normalized format.
	ErrFormatUnsupported = errors.New("backend: texture format not supported")

	// ErrTextureReleased is returned when operating on a destroyed texture.
	ErrTextureReleased = errors.New("backend: texture has been released")

	// ErrTooManyAttachments is returned when a target is created with more
	// color attachments than the device supports.
	ErrTooManyAttachments = errors.New("backend: too many color attachments")

	// ErrSizeMismatch is returned when uploaded pixel data or draw
	// bindings do not match what the texture or program declares.
	ErrSizeMismatch = errors.New("backend: pixel data size does not match texture")

	// ErrTargetMismatch is returned when a program is drawn into a
	// target whose attachment count differs from the program's declared
	// output count.
	ErrTargetMismatch = errors.New("backend: target attachment count does not match program")
)

// MaxColorAttachments is the maximum number of simultaneous color
// attachments a target may carry. All supported devices guarantee at
// least this many.
const MaxColorAttachments = 4

// TextureFormat represents the pixel format of a device texture.
type TextureFormat uint8

const (
	// FormatRGBA8 is 8-bit normalized RGBA, 4 bytes per pixel.
	FormatRGBA8 TextureFormat = iota

	// FormatRGBA16F is 16-bit floating point RGBA.
	FormatRGBA16F

	// FormatRGBA32F is 32-bit floating point RGBA.
	FormatRGBA32F
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// Float reports whether the format stores floating point components.
func (f TextureFormat) Float() bool {
	return f == FormatRGBA16F || f == FormatRGBA32F
}

// FilterMode selects how a texture is sampled when bound as an input.
type FilterMode uint8

const (
	// FilterLinear is bilinear interpolation.
	FilterLinear FilterMode = iota

	// FilterNearest is nearest-neighbor sampling.
	FilterNearest
)

// WrapMode selects how out-of-range texture coordinates are handled.
type WrapMode uint8

const (
	// WrapClamp clamps coordinates to the edge texel.
	WrapClamp WrapMode = iota

	// WrapRepeat tiles the texture.
	WrapRepeat

	// WrapMirror tiles the texture with alternating reflection.
	WrapMirror
)

// TextureDescriptor holds configuration for creating a device texture.
type TextureDescriptor struct {
	// Label is used for device debug output.
	Label string

	// Width and Height are the texture dimensions in pixels.
	Width, Height int

	// Format is the requested pixel format.
	Format TextureFormat

	// Filter is the sampling filter used when this texture is bound as
	// a shader input.
	Filter FilterMode

	// Wrap is the addressing mode used when this texture is bound as a
	// shader input.
	Wrap WrapMode
}

// Texture is a device-owned texture handle.
//
// Textures are created and destroyed by the Device that owns them;
// holding a Texture as a shader input binding carries no ownership.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Format returns the negotiated pixel format.
	Format() TextureFormat
}

// Target is an attachable render target: one or more color attachments
// sharing a single framebuffer-like object.
type Target interface {
	// Attachments returns the color attachment textures in location order.
	Attachments() []Texture
}

// Program is a compiled shader program handle.
type Program interface {
	// Label returns the debug label the program was compiled with.
	Label() string
}

// ProgramDescriptor holds everything a device needs to compile a shader
// pass. The binding protocol is positional under the hood: textures bind
// in the order of TextureNames and numeric uniforms pack in the order of
// UniformNames, so both lists must be in the same order at compile time
// and at draw time. Callers sort them by name.
type ProgramDescriptor struct {
	// Label is used for device debug output.
	Label string

	// Source is the fully preprocessed shader source.
	Source string

	// TextureNames lists the shader's texture inputs in binding order.
	TextureNames []string

	// UniformNames lists the shader's numeric uniforms in packing order.
	UniformNames []string

	// TargetCount is the number of simultaneous color outputs (1 for a
	// single-pass program, up to MaxColorAttachments).
	TargetCount int

	// TargetFormat is the format of the color attachments the program
	// renders into.
	TargetFormat TextureFormat
}

// TextureBinding binds a texture to a named shader input for one draw.
type TextureBinding struct {
	Name    string
	Texture Texture
}

// UniformBinding supplies one numeric uniform value for one draw.
// Components holds the value padded to four floats; Count is the number
// of meaningful components (1, 2, 3 or 4).
type UniformBinding struct {
	Name       string
	Components [4]float32
	Count      int
}

// DrawOp describes one full-surface shader pass: a program, a target to
// render into, and the textures and uniforms to bind. The binding slices
// must match the orders declared in the program's descriptor.
type DrawOp struct {
	Program  Program
	Target   Target
	Textures []TextureBinding
	Uniforms []UniformBinding
}

// Device is the interface rendering devices implement. It abstracts the
// GPU so the graph engine can run against wgpu hardware or the in-memory
// software device.
//
// Devices must be registered via Register and are selected via Get or
// Default. All Device methods are called from the single frame-driving
// goroutine; implementations need no internal locking beyond their own
// initialization.
type Device interface {
	// Name returns the device identifier (e.g. "software", "wgpu").
	Name() string

	// Init initializes the device. It must be called before any other
	// operation; calling it again on an initialized device is a no-op.
	Init() error

	// Close releases all device resources. The device must not be used
	// after Close. Closing an uninitialized or already-closed device is
	// a no-op.
	Close() error

	// CreateTexture allocates an attachable texture. Returns
	// ErrFormatUnsupported when the requested format cannot be used as
	// a color attachment on this device.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// DestroyTexture releases a texture. Destroying an already-destroyed
	// texture is a no-op.
	DestroyTexture(t Texture)

	// Upload writes tightly packed RGBA pixel data (4 bytes per pixel,
	// row-major) into the texture.
	Upload(t Texture, pix []byte) error

	// ReadPixels copies the texture contents back to the CPU as tightly
	// packed RGBA bytes. Intended for final-frame readback and tests,
	// not per-frame use on GPU devices.
	ReadPixels(t Texture) ([]byte, error)

	// CreateTarget builds an attachable target over the given color
	// attachments. All attachments must share dimensions and format.
	CreateTarget(attachments []Texture) (Target, error)

	// DestroyTarget releases a target. The attachments are not destroyed.
	DestroyTarget(t Target)

	// Clear fills every attachment of the target with the given RGBA
	// color.
	Clear(t Target, color [4]float32) error

	// CompileProgram compiles a shader pass. A compile failure is final:
	// the caller must not retry the same source every frame.
	CompileProgram(desc ProgramDescriptor) (Program, error)

	// DestroyProgram releases a compiled program.
	DestroyProgram(p Program)

	// Draw executes one full-surface pass.
	Draw(op DrawOp) error
}
