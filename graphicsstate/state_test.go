package graphicsstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/model"
)

const eps = 1e-9

func TestNewGraphicsState(t *testing.T) {
	gs := NewGraphicsState()
	assert.True(t, gs.CTM.IsIdentity())
	assert.Equal(t, 1.0, gs.LineWidth)
	assert.Equal(t, 1.0, gs.FillAlpha)
	assert.Equal(t, 1.0, gs.StrokeAlpha)
	assert.Equal(t, 100.0, gs.Text.HorizontalScaling)
}

func TestSaveRestore(t *testing.T) {
	gs := NewGraphicsState()
	gs.SetLineWidth(3)
	gs.SetFillColorRGB(1, 0, 0)
	gs.Save()
	gs.SetLineWidth(7)
	gs.SetFillColorRGB(0, 1, 0)
	gs.Transform(model.Translate(10, 10))

	require.NoError(t, gs.Restore())
	assert.Equal(t, 3.0, gs.LineWidth)
	assert.Equal(t, [3]float64{1, 0, 0}, gs.FillColor)
	assert.True(t, gs.CTM.IsIdentity())
	assert.Equal(t, 0, gs.Depth())
}

func TestRestoreUnderflow(t *testing.T) {
	assert.Error(t, NewGraphicsState().Restore())
}

func TestStackDepthLimit(t *testing.T) {
	gs := NewGraphicsState()
	for i := 0; i < maxStackDepth+10; i++ {
		gs.Save()
	}
	assert.Equal(t, maxStackDepth, gs.Depth())
	for i := 0; i < maxStackDepth+10; i++ {
		require.NoError(t, gs.Restore(), "restore %d", i)
	}
	assert.Error(t, gs.Restore(), "balanced restores must end in underflow")
}

// cm premultiplies the CTM
func TestTransformOrder(t *testing.T) {
	gs := NewGraphicsState()
	gs.Transform(model.Translate(100, 0))
	gs.Transform(model.Scale(2, 2))

	// The scale applies in the translated space
	p := gs.CTM.Transform(model.Point{X: 1, Y: 1})
	assert.InDelta(t, 102, p.X, eps)
	assert.InDelta(t, 2, p.Y, eps)
}

func TestColorsClamped(t *testing.T) {
	gs := NewGraphicsState()
	gs.SetStrokeColorRGB(-1, 0.5, 2)
	assert.Equal(t, [3]float64{0, 0.5, 1}, gs.StrokeColor)
}

func TestTextPositioning(t *testing.T) {
	gs := NewGraphicsState()
	gs.BeginText()
	gs.SetFont("F1", 10)
	gs.TranslateText(72, 700)
	gs.TranslateTextSetLeading(0, -12)
	assert.Equal(t, 12.0, gs.Text.Leading)

	gs.NextLine()
	x, y := gs.GetTextPosition()
	assert.InDelta(t, 72, x, eps)
	assert.InDelta(t, 676, y, eps)
}

func TestGlyphAdvance(t *testing.T) {
	gs := NewGraphicsState()
	gs.SetFont("F1", 10)
	gs.SetCharSpacing(1)
	gs.SetWordSpacing(2)
	gs.SetHorizontalScaling(50)

	// (500/1000*10 + 1 + 2) * 0.5 = 4
	assert.InDelta(t, 4, gs.GlyphAdvance(500, true), eps)
	// -1000/1000*10*0.5 = -5
	gs.Kern(1000)
	assert.InDelta(t, -1, gs.Text.TextMatrix[4], eps)
}

func TestTextRenderingMatrix(t *testing.T) {
	gs := NewGraphicsState()
	gs.Transform(model.Scale(2, 2))
	gs.SetFont("F1", 1)
	gs.SetTextMatrix(model.Matrix{12, 0, 0, 12, 10, 20})
	assert.Equal(t, model.Matrix{24, 0, 0, 24, 20, 40}, gs.TextRenderingMatrix())
	assert.InDelta(t, 24, gs.GetEffectiveFontSize(), eps)
}

func TestClone(t *testing.T) {
	gs := NewGraphicsState()
	gs.Save()
	clone := gs.Clone()
	assert.Equal(t, 0, clone.Depth(), "clone carries the stack")
	clone.SetLineWidth(9)
	assert.NotEqual(t, 9.0, gs.LineWidth, "clone shares state with the original")
}

func parseOps(t *testing.T, src string) []contentstream.Operation {
	t.Helper()
	ops, err := contentstream.Parse([]byte(src))
	require.NoError(t, err)
	return ops
}

func TestProcessor(t *testing.T) {
	p := NewProcessor(model.Identity())
	p.ExtGState = func(name string) core.Dict {
		if name == "GS1" {
			return core.Dict{"ca": core.Real(0.5), "LW": core.Int(4)}
		}
		return nil
	}

	var unhandled []string
	src := "q 2 0 0 2 0 0 cm 0 0 1 rg 1 0 0 0 K /GS1 gs /Missing gs 10 10 m 20 20 l re f BT /F1 9 Tf 5 6 Td (x) Tj ET Q"
	for _, op := range parseOps(t, src) {
		if !p.Apply(op) {
			unhandled = append(unhandled, op.Operator)
		}
		switch op.Operator {
		case "l":
			assert.Len(t, p.Path.Segments, 2)
		case "Tj":
			gs := p.State
			assert.Equal(t, [3]float64{0, 0, 1}, gs.FillColor)
			assert.Equal(t, [3]float64{0, 1, 1}, gs.StrokeColor)
			assert.Equal(t, 0.5, gs.FillAlpha)
			assert.Equal(t, 4.0, gs.LineWidth)
			assert.Equal(t, "F1", gs.Text.FontName)
			assert.Equal(t, 9.0, gs.Text.FontSize)
			x, y := gs.GetTextPosition()
			assert.InDelta(t, 10, x, eps)
			assert.InDelta(t, 12, y, eps)
		}
	}
	// "re" has no operands here and is ignored, but still handled
	assert.Equal(t, []string{"f", "Tj"}, unhandled)
	assert.True(t, p.State.CTM.IsIdentity(), "Q did not restore the CTM")
}

func TestProcessorColorSpaces(t *testing.T) {
	p := NewProcessor(model.Identity())
	for _, op := range parseOps(t, "/CS0 cs 0.25 sc /P1 scn 0.1 0.2 0.3 scn /Sep CS 1 0 0 0 SCN") {
		p.Apply(op)
	}
	assert.Equal(t, "CS0", p.State.FillSpace)
	assert.Equal(t, "Sep", p.State.StrokeSpace)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, p.State.FillColor)
	assert.Equal(t, [3]float64{0, 1, 1}, p.State.StrokeColor)
}

func TestMatrixFromOperands(t *testing.T) {
	_, ok := MatrixFromOperands([]core.Object{core.Int(1)})
	assert.False(t, ok, "short operand list")
	_, ok = MatrixFromOperands([]core.Object{core.Int(1), core.Int(0), core.Int(0), core.Int(1), core.Name("x"), core.Int(0)})
	assert.False(t, ok, "non-numeric operand")

	m, ok := MatrixFromOperands([]core.Object{core.Int(1), core.Int(0), core.Int(0), core.Real(1.5), core.Int(3), core.Int(4)})
	require.True(t, ok)
	assert.Equal(t, model.Matrix{1, 0, 0, 1.5, 3, 4}, m)
}
