// Package render rasterizes pages into RGBA tiles without running any
// active content.
//
// The renderer interprets page content streams directly: paths are
// filled and stroked with golang.org/x/image/vector, images are decoded
// by the pdfimage package and resampled with golang.org/x/image/draw,
// and text is drawn with a fixed bitmap face placed and stretched by the
// font's metrics. Font programs, JavaScript, actions and links are never
// executed; Tile.Ignored reports how many actions were present.
//
// Resource use is bounded. A tile never exceeds the configured pixel
// limit, form XObjects nest at most MaxFormDepth levels and each form
// is drawn at most once along a nesting chain.
//
// Basic usage:
//
//	r := render.New(doc, render.WithDPI(96))
//	tiles := r.Tiles()
//	for tiles.Next(ctx) {
//	    if err := render.EncodePNG(w, tiles.Tile()); err != nil {
//	        return err
//	    }
//	}
//	if err := tiles.Err(); err != nil {
//	    return err
//	}
package render
