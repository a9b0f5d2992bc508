// Package raster provides the packed monochrome bitmap representation
// consumed by the dialect encoders, and conversion from image.Image.
package raster

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/makeworld-the-better-one/dither/v2"
)

// Bitmap is a 1-bit-per-pixel monochrome bitmap, packed MSB-first and
// row-major: bit 7 of Data[0] is the top-left pixel. A set bit is a black
// (printed) pixel. Rows are padded to whole bytes when the width is not a
// multiple of 8; padding bits are always zero.
type Bitmap struct {
	Width  int
	Height int
	Stride int // bytes per row
	Data   []byte
}

// New returns an all-white bitmap of the given size.
func New(width, height int) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid bitmap size %dx%d", width, height)
	}
	stride := (width + 7) / 8
	return &Bitmap{
		Width:  width,
		Height: height,
		Stride: stride,
		Data:   make([]byte, stride*height),
	}, nil
}

// Bit reports the pixel at (x, y): 1 is black, 0 is white.
func (b *Bitmap) Bit(x, y int) byte {
	return (b.Data[y*b.Stride+x/8] >> (7 - uint(x%8))) & 1
}

// SetBit sets the pixel at (x, y) to black (1) or white (0).
func (b *Bitmap) SetBit(x, y int, v byte) {
	idx := y*b.Stride + x/8
	mask := byte(1) << (7 - uint(x%8))
	if v != 0 {
		b.Data[idx] |= mask
	} else {
		b.Data[idx] &^= mask
	}
}

// Row returns the packed bytes of row y. The slice aliases Data.
func (b *Bitmap) Row(y int) []byte {
	return b.Data[y*b.Stride : (y+1)*b.Stride]
}

// Clone returns an independent copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{
		Width:  b.Width,
		Height: b.Height,
		Stride: b.Stride,
		Data:   append([]byte(nil), b.Data...),
	}
}

// PadToLines extends the bitmap with blank (white) rows until it is at
// least n rows tall.
func (b *Bitmap) PadToLines(n int) {
	if b.Height >= n {
		return
	}
	pad := make([]byte, (n-b.Height)*b.Stride)
	b.Data = append(b.Data, pad...)
	b.Height = n
}

// AppendBlankLines appends n blank (white) rows to the bottom.
func (b *Bitmap) AppendBlankLines(n int) {
	if n <= 0 {
		return
	}
	b.Data = append(b.Data, make([]byte, n*b.Stride)...)
	b.Height += n
}

// ConvertOptions controls FromImage monochrome conversion.
type ConvertOptions struct {
	// Dither selects Floyd-Steinberg error diffusion instead of a fixed
	// threshold. Dithering suits photographs; thresholding suits text and
	// line art.
	Dither bool
	// Threshold is the grayscale cutoff (0-255) below which a pixel is
	// black when Dither is false. Zero means the default of 128.
	Threshold uint8
}

// FromImage converts an image to a packed monochrome bitmap at the given
// print width. Wider or narrower images are resized preserving aspect
// ratio; images already at the target width are converted as-is.
func FromImage(img image.Image, width int, opts ConvertOptions) (*Bitmap, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if width <= 0 {
		return nil, fmt.Errorf("invalid print width %d", width)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	if img.Bounds().Dx() != width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)

	if opts.Dither {
		return packPaletted(ditherToPaletted(gray), width)
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = 128
	}
	return packThreshold(gray, width, threshold)
}

// ditherToPaletted reduces a grayscale image to a two-colour paletted
// image with serpentine Floyd-Steinberg error diffusion.
func ditherToPaletted(img image.Image) *image.Paletted {
	palette := []color.Color{color.Black, color.White}
	d := dither.NewDitherer(palette)
	d.Matrix = dither.FloydSteinberg
	d.Serpentine = true
	return d.DitherPaletted(img)
}

func packPaletted(img *image.Paletted, width int) (*Bitmap, error) {
	bounds := img.Bounds()
	bmp, err := New(width, bounds.Dy())
	if err != nil {
		return nil, err
	}
	// Palette index of the colour closest to white prints as 0.
	blackIdx := uint8(0)
	if img.Palette.Index(color.White) == 0 {
		blackIdx = 1
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width && x < bounds.Dx(); x++ {
			if img.ColorIndexAt(bounds.Min.X+x, bounds.Min.Y+y) == blackIdx {
				bmp.SetBit(x, y, 1)
			}
		}
	}
	return bmp, nil
}

func packThreshold(img image.Image, width int, threshold uint8) (*Bitmap, error) {
	bounds := img.Bounds()
	bmp, err := New(width, bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width && x < bounds.Dx(); x++ {
			c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			if c.Y < threshold {
				bmp.SetBit(x, y, 1)
			}
		}
	}
	return bmp, nil
}
