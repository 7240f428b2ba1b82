package backend

import (
	"fmt"
	"log/slog"
)

// init registers the software device on package import.
func init() {
	Register(DeviceSoftware, func() Device {
		return NewSoftwareDevice()
	})
}

// SoftwareDevice is an in-memory reference device. Textures are plain
// byte buffers and a shader pass is approximated by source-over
// compositing the bound input textures, in binding order, into every
// attachment. That is enough to exercise the whole binding protocol
// (programs, targets, texture routing, uniform packing) without GPU
// hardware, which is what the engine's unit tests and headless use run
// against.
//
// The device rejects floating point texture formats so that format
// negotiation (float falling back to RGBA8) is observable in tests.
type SoftwareDevice struct {
	initialized bool
	logger      *slog.Logger

	// Operation counters, readable via Stats and DrawCount. Useful for
	// asserting per-frame evaluation counts.
	stats     SoftwareStats
	drawCalls map[Program]int
	lastDraw  DrawOp
}

// SoftwareStats holds cumulative operation counts for a SoftwareDevice.
type SoftwareStats struct {
	Compiles int
	Draws    int
	Uploads  int
	Clears   int
}

// NewSoftwareDevice creates a new software device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{
		logger:    slog.New(slog.DiscardHandler),
		drawCalls: make(map[Program]int),
	}
}

// Name returns the device identifier.
func (d *SoftwareDevice) Name() string { return DeviceSoftware }

// Init initializes the device.
func (d *SoftwareDevice) Init() error {
	d.initialized = true
	return nil
}

// Close releases all device resources.
func (d *SoftwareDevice) Close() error {
	d.initialized = false
	d.drawCalls = make(map[Program]int)
	d.lastDraw = DrawOp{}
	return nil
}

// SetLogger configures the device logger. Called by the engine when its
// package logger changes.
func (d *SoftwareDevice) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.logger = l
}

// Stats returns cumulative operation counts.
func (d *SoftwareDevice) Stats() SoftwareStats { return d.stats }

// DrawCount returns how many draws have executed with the given program.
func (d *SoftwareDevice) DrawCount(p Program) int { return d.drawCalls[p] }

// LastDraw returns the most recently executed draw op.
func (d *SoftwareDevice) LastDraw() DrawOp { return d.lastDraw }

// softwareTexture is a CPU byte-buffer texture. Pixels are tightly
// packed straight-alpha RGBA regardless of the nominal format.
type softwareTexture struct {
	width, height int
	format        TextureFormat
	filter        FilterMode
	wrap          WrapMode
	pix           []byte
	released      bool
}

func (t *softwareTexture) Width() int            { return t.width }
func (t *softwareTexture) Height() int           { return t.height }
func (t *softwareTexture) Format() TextureFormat { return t.format }

// softwareTarget groups attachments; there is no separate framebuffer
// object on the CPU.
type softwareTarget struct {
	attachments []Texture
}

func (t *softwareTarget) Attachments() []Texture { return t.attachments }

// softwareProgram retains the descriptor so draws can be validated
// against the compile-time binding layout.
type softwareProgram struct {
	desc ProgramDescriptor
}

func (p *softwareProgram) Label() string { return p.desc.Label }

// CreateTexture allocates a byte-buffer texture. Floating point formats
// are rejected with ErrFormatUnsupported.
func (d *SoftwareDevice) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if desc.Format.Float() {
		return nil, fmt.Errorf("%w: %s is not attachable on the software device", ErrFormatUnsupported, desc.Format)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("backend: invalid texture size %dx%d", desc.Width, desc.Height)
	}
	return &softwareTexture{
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		filter: desc.Filter,
		wrap:   desc.Wrap,
		pix:    make([]byte, desc.Width*desc.Height*4),
	}, nil
}

// DestroyTexture releases a texture buffer.
func (d *SoftwareDevice) DestroyTexture(t Texture) {
	st, ok := t.(*softwareTexture)
	if !ok || st.released {
		return
	}
	st.released = true
	st.pix = nil
}

// Upload copies tightly packed RGBA bytes into the texture.
func (d *SoftwareDevice) Upload(t Texture, pix []byte) error {
	st, err := d.software(t)
	if err != nil {
		return err
	}
	if len(pix) != len(st.pix) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(pix), len(st.pix))
	}
	copy(st.pix, pix)
	d.stats.Uploads++
	return nil
}

// ReadPixels returns a copy of the texture contents.
func (d *SoftwareDevice) ReadPixels(t Texture) ([]byte, error) {
	st, err := d.software(t)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(st.pix))
	copy(out, st.pix)
	return out, nil
}

// CreateTarget groups color attachments into a target.
func (d *SoftwareDevice) CreateTarget(attachments []Texture) (Target, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if len(attachments) == 0 || len(attachments) > MaxColorAttachments {
		return nil, fmt.Errorf("%w: %d attachments", ErrTooManyAttachments, len(attachments))
	}
	for _, a := range attachments {
		if _, err := d.software(a); err != nil {
			return nil, err
		}
	}
	return &softwareTarget{attachments: attachments}, nil
}

// DestroyTarget releases a target. Attachments stay alive.
func (d *SoftwareDevice) DestroyTarget(Target) {}

// Clear fills every attachment with the given color.
func (d *SoftwareDevice) Clear(t Target, color [4]float32) error {
	st, ok := t.(*softwareTarget)
	if !ok {
		return fmt.Errorf("backend: target does not belong to the software device")
	}
	px := [4]byte{
		floatByte(color[0]),
		floatByte(color[1]),
		floatByte(color[2]),
		floatByte(color[3]),
	}
	for _, a := range st.attachments {
		tex, err := d.software(a)
		if err != nil {
			return err
		}
		for i := 0; i < len(tex.pix); i += 4 {
			copy(tex.pix[i:i+4], px[:])
		}
	}
	d.stats.Clears++
	return nil
}

// CompileProgram accepts any non-empty source. The software device does
// not parse shader text; the descriptor is retained so draws can be
// checked against the declared binding layout.
func (d *SoftwareDevice) CompileProgram(desc ProgramDescriptor) (Program, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if desc.Source == "" {
		return nil, fmt.Errorf("backend: program %q has empty source", desc.Label)
	}
	if desc.TargetCount < 1 || desc.TargetCount > MaxColorAttachments {
		return nil, fmt.Errorf("%w: program %q declares %d targets", ErrTooManyAttachments, desc.Label, desc.TargetCount)
	}
	d.stats.Compiles++
	d.logger.Debug("software: compiled program", "label", desc.Label,
		"textures", len(desc.TextureNames), "uniforms", len(desc.UniformNames))
	return &softwareProgram{desc: desc}, nil
}

// DestroyProgram releases a program.
func (d *SoftwareDevice) DestroyProgram(p Program) {
	delete(d.drawCalls, p)
}

// Draw composites the bound input textures, in binding order, over a
// transparent background into every attachment of the target. Inputs of
// a different size are nearest-sampled to the attachment size.
func (d *SoftwareDevice) Draw(op DrawOp) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	prog, ok := op.Program.(*softwareProgram)
	if !ok {
		return fmt.Errorf("backend: program does not belong to the software device")
	}
	tgt, ok := op.Target.(*softwareTarget)
	if !ok {
		return fmt.Errorf("backend: target does not belong to the software device")
	}
	if len(tgt.attachments) < prog.desc.TargetCount {
		return fmt.Errorf("%w: program %q wants %d attachments, target has %d",
			ErrTooManyAttachments, prog.desc.Label, prog.desc.TargetCount, len(tgt.attachments))
	}

	for _, a := range tgt.attachments {
		tex, err := d.software(a)
		if err != nil {
			return err
		}
		for i := range tex.pix {
			tex.pix[i] = 0
		}
		for _, binding := range op.Textures {
			src, err := d.software(binding.Texture)
			if err != nil {
				return err
			}
			compositeOver(tex, src)
		}
	}

	d.stats.Draws++
	d.drawCalls[op.Program]++
	d.lastDraw = op
	return nil
}

// software resolves a Texture to the device's concrete type, checking
// liveness.
func (d *SoftwareDevice) software(t Texture) (*softwareTexture, error) {
	st, ok := t.(*softwareTexture)
	if !ok {
		return nil, fmt.Errorf("backend: texture does not belong to the software device")
	}
	if st.released {
		return nil, ErrTextureReleased
	}
	return st, nil
}

// compositeOver source-over composites src onto dst, nearest-sampling
// when dimensions differ. Straight (non-premultiplied) alpha.
func compositeOver(dst, src *softwareTexture) {
	for y := 0; y < dst.height; y++ {
		sy := y * src.height / dst.height
		for x := 0; x < dst.width; x++ {
			sx := x * src.width / dst.width
			si := (sy*src.width + sx) * 4
			di := (y*dst.width + x) * 4

			sa := float64(src.pix[si+3]) / 255
			da := float64(dst.pix[di+3]) / 255
			oa := sa + da*(1-sa)
			if oa == 0 {
				dst.pix[di+0] = 0
				dst.pix[di+1] = 0
				dst.pix[di+2] = 0
				dst.pix[di+3] = 0
				continue
			}
			for c := 0; c < 3; c++ {
				sc := float64(src.pix[si+c]) / 255
				dc := float64(dst.pix[di+c]) / 255
				oc := (sc*sa + dc*da*(1-sa)) / oa
				dst.pix[di+c] = floatByte(float32(oc))
			}
			dst.pix[di+3] = floatByte(float32(oa))
		}
	}
}

func floatByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
