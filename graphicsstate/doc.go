// Package graphicsstate provides PDF graphics state management.
//
// The PDF graphics state controls how content is rendered, including
// transformation matrices, colors, line properties, and text state.
// This package implements the state stack used during content stream
// processing.
//
// # Graphics State
//
// The main type is GraphicsState, which tracks:
//   - CTM (Current Transformation Matrix) for coordinate transformations
//   - Line width and constant alpha
//   - Colors (stroke and fill)
//   - Text state (font, size, spacing, matrices)
//
// Example usage:
//
//	gs := graphicsstate.NewGraphicsState()
//	gs.Save()              // Push state (q operator)
//	gs.Transform(matrix)   // Premultiply CTM (cm operator)
//	gs.SetFont("F1", 12)   // Set font (Tf operator)
//	gs.Restore()           // Pop state (Q operator)
//
// # Text State
//
// Text rendering uses a separate TextState structure that tracks:
//   - Font name and size (Tf operator)
//   - Character and word spacing (Tc, Tw operators)
//   - Horizontal scaling (Tz operator)
//   - Leading for line spacing (TL operator)
//   - Text and text line matrices (Tm, Td operators)
//
// # Path Operations
//
// Path records path construction in user space. The renderer maps it to
// device space with Transform when the path is painted.
//
// # Processing Content
//
// Processor applies the state-changing operators of a parsed content
// stream and reports the ones it does not handle, which leaves painting,
// text showing and XObjects to the caller:
//
//	p := graphicsstate.NewProcessor(pageMatrix)
//	for _, op := range ops {
//	    if p.Apply(op) {
//	        continue
//	    }
//	    switch op.Operator {
//	    case "f":
//	        fill(p.Path.Transform(p.State.CTM), p.State.FillColor)
//	        p.Path.Clear()
//	    }
//	}
package graphicsstate
