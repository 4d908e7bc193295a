package graphicsstate

import (
	"fmt"
	"image"

	"github.com/tsawler/safepdf/model"
)

// maxStackDepth bounds q nesting. Deeper saves are ignored together with
// their matching restores.
const maxStackDepth = 256

// GraphicsState represents the PDF graphics state
type GraphicsState struct {
	// Current Transformation Matrix
	CTM model.Matrix

	// Text state
	Text TextState

	// Graphics state stack (for q/Q operators)
	stack    []*GraphicsState
	overflow int

	// Line attributes
	LineWidth float64

	// Colors as RGB in [0, 1], with constant alpha from ExtGState
	StrokeColor [3]float64
	FillColor   [3]float64
	StrokeAlpha float64
	FillAlpha   float64

	// Colour space names set by CS and cs
	StrokeSpace string
	FillSpace   string

	// Clip is the device-space clip mask; nil means unclipped. The
	// renderer owns its contents. Masks are replaced, never modified, so
	// saved states can share them.
	Clip *image.Alpha
}

// TextState represents text-specific state
type TextState struct {
	// Font and size
	FontName string
	FontSize float64

	// Character and word spacing
	CharSpacing float64
	WordSpacing float64

	// Horizontal scaling (percentage)
	HorizontalScaling float64

	// Leading (line spacing)
	Leading float64

	// Text rendering mode
	RenderingMode int

	// Text rise
	Rise float64

	// Text matrices
	TextMatrix     model.Matrix
	TextLineMatrix model.Matrix
}

// NewGraphicsState creates a new graphics state with default values
func NewGraphicsState() *GraphicsState {
	return &GraphicsState{
		CTM:         model.Identity(),
		LineWidth:   1.0,
		StrokeAlpha: 1,
		FillAlpha:   1,
		StrokeSpace: "DeviceGray",
		FillSpace:   "DeviceGray",
		Text: TextState{
			FontSize:          12.0,
			HorizontalScaling: 100.0,
			TextMatrix:        model.Identity(),
			TextLineMatrix:    model.Identity(),
		},
	}
}

// Clone creates a copy of the graphics state without its stack
func (gs *GraphicsState) Clone() *GraphicsState {
	clone := *gs
	clone.stack = nil
	clone.overflow = 0
	return &clone
}

// Depth returns the number of saved states
func (gs *GraphicsState) Depth() int {
	return len(gs.stack)
}

// Save pushes the current graphics state onto the stack (q operator)
func (gs *GraphicsState) Save() {
	if len(gs.stack) >= maxStackDepth {
		gs.overflow++
		return
	}
	gs.stack = append(gs.stack, gs.Clone())
}

// Restore pops a graphics state from the stack (Q operator)
func (gs *GraphicsState) Restore() error {
	if gs.overflow > 0 {
		gs.overflow--
		return nil
	}
	if len(gs.stack) == 0 {
		return fmt.Errorf("graphics state stack underflow")
	}

	saved := gs.stack[len(gs.stack)-1]
	stack := gs.stack[:len(gs.stack)-1]
	*gs = *saved
	gs.stack = stack
	return nil
}

// Transform applies a transformation matrix to CTM (cm operator)
func (gs *GraphicsState) Transform(m model.Matrix) {
	gs.CTM = m.Multiply(gs.CTM)
}

// SetLineWidth sets the line width (w operator)
func (gs *GraphicsState) SetLineWidth(width float64) {
	gs.LineWidth = width
}

// SetStrokeColorRGB sets the stroke color (RG operator)
func (gs *GraphicsState) SetStrokeColorRGB(r, g, b float64) {
	gs.StrokeColor = [3]float64{clamp01(r), clamp01(g), clamp01(b)}
}

// SetFillColorRGB sets the fill color (rg operator)
func (gs *GraphicsState) SetFillColorRGB(r, g, b float64) {
	gs.FillColor = [3]float64{clamp01(r), clamp01(g), clamp01(b)}
}

// SetFont sets the current font (Tf operator)
func (gs *GraphicsState) SetFont(name string, size float64) {
	gs.Text.FontName = name
	gs.Text.FontSize = size
}

// SetCharSpacing sets character spacing (Tc operator)
func (gs *GraphicsState) SetCharSpacing(spacing float64) {
	gs.Text.CharSpacing = spacing
}

// SetWordSpacing sets word spacing (Tw operator)
func (gs *GraphicsState) SetWordSpacing(spacing float64) {
	gs.Text.WordSpacing = spacing
}

// SetHorizontalScaling sets horizontal scaling (Tz operator)
func (gs *GraphicsState) SetHorizontalScaling(scale float64) {
	gs.Text.HorizontalScaling = scale
}

// SetLeading sets text leading (TL operator)
func (gs *GraphicsState) SetLeading(leading float64) {
	gs.Text.Leading = leading
}

// SetRenderingMode sets text rendering mode (Tr operator)
func (gs *GraphicsState) SetRenderingMode(mode int) {
	gs.Text.RenderingMode = mode
}

// SetTextRise sets text rise (Ts operator)
func (gs *GraphicsState) SetTextRise(rise float64) {
	gs.Text.Rise = rise
}

// BeginText initializes text state (BT operator)
func (gs *GraphicsState) BeginText() {
	gs.Text.TextMatrix = model.Identity()
	gs.Text.TextLineMatrix = model.Identity()
}

// SetTextMatrix sets the text matrix (Tm operator)
func (gs *GraphicsState) SetTextMatrix(m model.Matrix) {
	gs.Text.TextMatrix = m
	gs.Text.TextLineMatrix = m
}

// TranslateText starts a new line offset from the current one (Td operator)
func (gs *GraphicsState) TranslateText(tx, ty float64) {
	gs.Text.TextLineMatrix = model.Translate(tx, ty).Multiply(gs.Text.TextLineMatrix)
	gs.Text.TextMatrix = gs.Text.TextLineMatrix
}

// TranslateTextSetLeading translates text and sets leading (TD operator)
func (gs *GraphicsState) TranslateTextSetLeading(tx, ty float64) {
	gs.SetLeading(-ty)
	gs.TranslateText(tx, ty)
}

// NextLine moves to next line (T* operator)
func (gs *GraphicsState) NextLine() {
	gs.TranslateText(0, -gs.Text.Leading)
}

// GlyphAdvance moves the text matrix past one glyph. width is the glyph
// width in thousandths of text space units; space reports whether word
// spacing applies to the code.
func (gs *GraphicsState) GlyphAdvance(width float64, space bool) float64 {
	t := &gs.Text
	tx := width/1000*t.FontSize + t.CharSpacing
	if space {
		tx += t.WordSpacing
	}
	tx *= t.HorizontalScaling / 100
	t.TextMatrix = model.Translate(tx, 0).Multiply(t.TextMatrix)
	return tx
}

// Kern applies a TJ adjustment in thousandths of an em. Positive values
// move left.
func (gs *GraphicsState) Kern(adjust float64) {
	t := &gs.Text
	tx := -adjust / 1000 * t.FontSize * t.HorizontalScaling / 100
	t.TextMatrix = model.Translate(tx, 0).Multiply(t.TextMatrix)
}

// TextRenderingMatrix maps glyph space, scaled to a unit em, to device
// space.
func (gs *GraphicsState) TextRenderingMatrix() model.Matrix {
	t := gs.Text
	params := model.Matrix{t.FontSize * t.HorizontalScaling / 100, 0, 0, t.FontSize, 0, t.Rise}
	return params.Multiply(t.TextMatrix).Multiply(gs.CTM)
}

// GetTextPosition returns the current text position in device space
func (gs *GraphicsState) GetTextPosition() (x, y float64) {
	p := gs.CTM.Transform(gs.Text.TextMatrix.Transform(model.Point{X: 0, Y: gs.Text.Rise}))
	return p.X, p.Y
}

// GetEffectiveFontSize returns the font size accounting for the text
// matrix and CTM. The text matrix can scale the font even when the Tf
// operator uses size=1.
func (gs *GraphicsState) GetEffectiveFontSize() float64 {
	_, sy := gs.TextRenderingMatrix().ScaleFactors()
	return sy
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
