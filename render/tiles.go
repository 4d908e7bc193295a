package render

import (
	"context"
	"image/png"
	"io"
)

// TileIterator renders pages one at a time, so only the current tile is
// held in memory.
type TileIterator struct {
	r     *Renderer
	pages []int
	pos   int
	tile  *Tile
	err   error
}

// Tiles returns an iterator over the given page indexes, or over every
// page when none are given.
func (r *Renderer) Tiles(pages ...int) *TileIterator {
	if len(pages) == 0 {
		pages = make([]int, r.doc.PageCount())
		for i := range pages {
			pages[i] = i
		}
	}
	return &TileIterator{r: r, pages: append([]int(nil), pages...)}
}

// Next renders the next page. It returns false when the pages are
// exhausted or rendering failed; Err tells the two apart.
func (it *TileIterator) Next(ctx context.Context) bool {
	it.tile = nil
	if it.err != nil || it.pos >= len(it.pages) {
		return false
	}
	tile, err := it.r.RenderPage(ctx, it.pages[it.pos])
	if err != nil {
		it.err = err
		return false
	}
	it.pos++
	it.tile = tile
	return true
}

// Tile returns the tile rendered by the last successful Next.
func (it *TileIterator) Tile() *Tile {
	return it.tile
}

// Err returns the error that stopped the iteration, if any.
func (it *TileIterator) Err() error {
	return it.err
}

// Len returns the number of pages the iterator covers.
func (it *TileIterator) Len() int {
	return len(it.pages)
}

// Reset restarts the iteration from the first page.
func (it *TileIterator) Reset() {
	it.pos = 0
	it.tile = nil
	it.err = nil
}

// EncodePNG writes the tile image as PNG.
func EncodePNG(w io.Writer, t *Tile) error {
	return png.Encode(w, t.Image)
}
