// Package dialect converts print content into the command byte streams
// spoken by the supported printer families. Encoding is pure: identical
// inputs always produce identical streams, and nothing is written to any
// transport here.
package dialect

import (
	"errors"
	"fmt"

	"github.com/minithermal/print-engine/pkg/profile"
	"github.com/minithermal/print-engine/pkg/raster"
)

// Encoding errors. Callers test with errors.Is.
var (
	// ErrDimensionMismatch means the bitmap width does not equal the
	// profile's print width. The caller resamples; the encoder rejects.
	ErrDimensionMismatch = errors.New("bitmap width does not match print width")
	// ErrEmptyPayload means there is nothing to print.
	ErrEmptyPayload = errors.New("empty print payload")
	// ErrUnsupportedDialect means the profile references a framing this
	// encoder does not implement.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
)

// Mode selects the printer's parameter set and mode directive.
type Mode int

const (
	// ModeAuto follows the content's natural mode (the zero value).
	ModeAuto Mode = iota
	// ModeImage forces image-mode parameters.
	ModeImage
	// ModeText forces text-mode parameters.
	ModeText
)

// String returns a short tag for logs.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeImage:
		return "image"
	case ModeText:
		return "text"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// EncodedStream is the complete command payload for one print job,
// ready to be chunked by the transport pacer. Immutable once produced.
type EncodedStream []byte

// Content is a print payload: either a Bitmap or a Text.
type Content interface {
	naturalMode() Mode
}

// Bitmap is packed monochrome bitmap content. The bitmap must already be
// at the profile's print width.
type Bitmap struct {
	Bits *raster.Bitmap
}

func (Bitmap) naturalMode() Mode { return ModeImage }

// Text is string content, rasterized by a TextRenderer during encoding.
// Bold asks the renderer for doubled strokes; renderers that cannot
// produce bold fall back to regular strokes rather than failing.
type Text struct {
	Value string
	Bold  bool
}

func (Text) naturalMode() Mode { return ModeText }

// TextRenderer rasterizes text at a print width. Implementations live
// outside this package (font handling is the collaborator's concern).
type TextRenderer interface {
	RenderText(text string, widthPx int, bold bool) (*raster.Bitmap, error)
}

// Options adjusts encoding for one job.
type Options struct {
	// ModeOverride forces the parameter set and mode directive;
	// ModeAuto keeps the content's natural mode.
	ModeOverride Mode
	// Renderer rasterizes Text content. Required for Text, unused for
	// Bitmap.
	Renderer TextRenderer
	// FeedLines is how many blank lines follow the content, feeding
	// the printed tail past the tear bar.
	FeedLines int
}

// params is the per-mode slice of a profile.
type params struct {
	energy int
	speed  int
}

// Encode converts content into the dialect byte stream for the given
// profile. The mode override takes precedence over the content's natural
// mode; text content is rasterized through opts.Renderer either way.
func Encode(content Content, prof profile.DeviceProfile, opts Options) (EncodedStream, error) {
	bits, mode, err := prepare(content, prof, opts)
	if err != nil {
		return nil, err
	}

	p := params{energy: prof.ImageEnergy, speed: prof.ImageSpeed}
	if mode == ModeText {
		p = params{energy: prof.TextEnergy, speed: prof.TextSpeed}
	}

	switch prof.Dialect {
	case profile.DialectStandardV1:
		return encodeStandardV1(bits, mode, p), nil
	case profile.DialectExtendedV2:
		return encodeExtendedV2(bits, p), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, prof.Dialect)
	}
}

// prepare resolves the effective mode and produces the bitmap to encode,
// rendering text content through the collaborator.
func prepare(content Content, prof profile.DeviceProfile, opts Options) (*raster.Bitmap, Mode, error) {
	if content == nil {
		return nil, ModeAuto, fmt.Errorf("%w: nil content", ErrEmptyPayload)
	}

	mode := opts.ModeOverride
	if mode == ModeAuto {
		mode = content.naturalMode()
	}

	var bits *raster.Bitmap
	switch c := content.(type) {
	case Bitmap:
		bits = c.Bits
	case *Bitmap:
		if c != nil {
			bits = c.Bits
		}
	case Text:
		rendered, err := renderText(c, prof, opts.Renderer)
		if err != nil {
			return nil, mode, err
		}
		bits = rendered
	case *Text:
		if c == nil {
			return nil, ModeAuto, fmt.Errorf("%w: nil content", ErrEmptyPayload)
		}
		rendered, err := renderText(*c, prof, opts.Renderer)
		if err != nil {
			return nil, mode, err
		}
		bits = rendered
	default:
		return nil, mode, fmt.Errorf("unsupported content type %T", content)
	}

	if bits == nil || bits.Height == 0 || len(bits.Data) == 0 {
		return nil, mode, fmt.Errorf("%w: zero-size bitmap", ErrEmptyPayload)
	}
	if bits.Width != prof.PrintWidthPx {
		return nil, mode, fmt.Errorf("%w: bitmap is %dpx, profile %s wants %dpx",
			ErrDimensionMismatch, bits.Width, prof.ModelID, prof.PrintWidthPx)
	}
	if opts.FeedLines > 0 {
		// Copy before padding so the caller's bitmap stays untouched.
		bits = bits.Clone()
		bits.AppendBlankLines(opts.FeedLines)
	}
	return bits, mode, nil
}

func renderText(t Text, prof profile.DeviceProfile, renderer TextRenderer) (*raster.Bitmap, error) {
	if t.Value == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmptyPayload)
	}
	if renderer == nil {
		return nil, fmt.Errorf("text content requires a renderer")
	}
	bits, err := renderer.RenderText(t.Value, prof.PrintWidthPx, t.Bold)
	if err != nil {
		return nil, fmt.Errorf("failed to render text: %w", err)
	}
	return bits, nil
}

// clampByte narrows a device-scale parameter to one wire byte.
func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 0xFF {
		return 0xFF
	}
	return byte(v)
}
