package render

import (
	"fmt"
	"image/color"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/minithermal/print-engine/pkg/raster"
)

// BarcodeFormat names a supported linear barcode symbology.
type BarcodeFormat string

const (
	FormatCode128 BarcodeFormat = "CODE128"
	FormatCode39  BarcodeFormat = "CODE39"
	FormatEAN13   BarcodeFormat = "EAN13"
	FormatEAN8    BarcodeFormat = "EAN8"
)

// barcodeMargin keeps quiet zones at the paper edges.
const barcodeMargin = 20

// Barcode renders value as a centered barcode bitmap at the print
// width. heightPx zero means 80 rows of bars.
func Barcode(value string, format BarcodeFormat, widthPx, heightPx int) (*raster.Bitmap, error) {
	if value == "" {
		return nil, fmt.Errorf("empty barcode value")
	}
	if widthPx <= 2*barcodeMargin {
		return nil, fmt.Errorf("print width %d is too narrow for a barcode", widthPx)
	}
	if heightPx == 0 {
		heightPx = 80
	}

	var code barcode.Barcode
	var err error
	switch format {
	case FormatCode39:
		code, err = code39.Encode(value, false, false)
	case FormatEAN13, FormatEAN8:
		code, err = ean.Encode(value)
	case FormatCode128, "":
		code, err = code128.Encode(value)
	default:
		return nil, fmt.Errorf("unsupported barcode format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode barcode: %w", err)
	}

	code, err = barcode.Scale(code, widthPx-2*barcodeMargin, heightPx)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	return compose(code.Bounds().Dy(), widthPx, func(ctx *gg.Context) {
		x := (widthPx - code.Bounds().Dx()) / 2
		ctx.DrawImage(code, x, 0)
	})
}

// QRCode renders value as a centered QR code bitmap at the print width.
func QRCode(value string, widthPx int) (*raster.Bitmap, error) {
	if value == "" {
		return nil, fmt.Errorf("empty QR value")
	}

	qr, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	size := widthPx - 2*barcodeMargin
	if size > 400 {
		size = 400
	}
	if size <= 0 {
		return nil, fmt.Errorf("print width %d is too narrow for a QR code", widthPx)
	}
	img := qr.Image(size)

	return compose(img.Bounds().Dy(), widthPx, func(ctx *gg.Context) {
		x := (widthPx - img.Bounds().Dx()) / 2
		ctx.DrawImage(img, x, 0)
	})
}

// compose draws onto a white canvas at the print width and packs it.
func compose(height, widthPx int, draw func(*gg.Context)) (*raster.Bitmap, error) {
	ctx := gg.NewContext(widthPx, height)
	ctx.SetColor(color.White)
	ctx.Clear()
	draw(ctx)
	return raster.FromImage(ctx.Image(), widthPx, raster.ConvertOptions{})
}
