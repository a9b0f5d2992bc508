// Package render rasterizes text, barcodes, and QR codes into the
// packed bitmaps the dialect encoders consume.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/fogleman/gg"

	"github.com/minithermal/print-engine/pkg/raster"
)

// DefaultFontSize is the point size used when a renderer does not set
// one. Sized for legibility on a 384px head.
const DefaultFontSize = 24

// systemFontPaths is searched in order when no explicit font is
// configured.
var systemFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"C:\\Windows\\Fonts\\arial.ttf",
}

// TextRenderer rasterizes strings at a print width. The zero value is
// usable: default size, system font search, default threshold.
type TextRenderer struct {
	// FontPath picks a TTF or TTC file. Empty searches the system
	// list; when nothing loads, gg's built-in bitmap face is used, so
	// rendering never fails for lack of a font.
	FontPath string
	// FontSize is the point size. Zero means DefaultFontSize.
	FontSize float64
	// Threshold is the monochrome cutoff for the rendered canvas.
	// Zero means the packed conversion default.
	Threshold uint8
}

// NewTextRenderer returns a renderer with defaults.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

// RenderText draws the text word-wrapped at the given width and packs
// it to a monochrome bitmap. Bold is faked by double-striking one pixel
// to the right; it degrades to regular strokes rather than failing.
func (r *TextRenderer) RenderText(text string, widthPx int, bold bool) (*raster.Bitmap, error) {
	if widthPx <= 0 {
		return nil, fmt.Errorf("invalid print width %d", widthPx)
	}
	size := r.FontSize
	if size == 0 {
		size = DefaultFontSize
	}

	const margin = 4.0
	maxWidth := float64(widthPx) - 2*margin

	meas := gg.NewContext(widthPx, 1)
	r.loadFont(meas, size)
	lines := meas.WordWrap(text, maxWidth)
	if len(lines) == 0 {
		lines = []string{text}
	}
	lineHeight := meas.FontHeight() * 1.3
	height := int(math.Ceil(float64(len(lines))*lineHeight + 2*margin))

	ctx := gg.NewContext(widthPx, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)
	r.loadFont(ctx, size)

	y := margin + ctx.FontHeight()
	for _, line := range lines {
		ctx.DrawString(line, margin, y)
		if bold {
			ctx.DrawString(line, margin+1, y)
		}
		y += lineHeight
	}

	return raster.FromImage(ctx.Image(), widthPx, raster.ConvertOptions{Threshold: r.Threshold})
}

// loadFont loads the configured or first available system font. When
// nothing loads the context keeps gg's built-in face.
func (r *TextRenderer) loadFont(ctx *gg.Context, size float64) {
	if r.FontPath != "" {
		if err := ctx.LoadFontFace(r.FontPath, size); err == nil {
			return
		}
	}
	for _, path := range systemFontPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := ctx.LoadFontFace(path, size); err == nil {
			return
		}
	}
}
