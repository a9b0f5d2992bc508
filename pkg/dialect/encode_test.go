package dialect

import (
	"bytes"
	"errors"
	"testing"

	"github.com/minithermal/print-engine/pkg/profile"
	"github.com/minithermal/print-engine/pkg/raster"
)

type fakeRenderer struct {
	bits     *raster.Bitmap
	err      error
	gotWidth int
	gotBold  bool
}

func (f *fakeRenderer) RenderText(text string, widthPx int, bold bool) (*raster.Bitmap, error) {
	f.gotWidth = widthPx
	f.gotBold = bold
	if f.err != nil {
		return nil, f.err
	}
	return f.bits, nil
}

func testBitmap(t *testing.T, width, height int) *raster.Bitmap {
	t.Helper()
	bits, err := raster.New(width, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return bits
}

func TestEncode_Deterministic(t *testing.T) {
	bits := testBitmap(t, 8, 12)
	bits.Data[3] = 0x5C
	bits.Data[7] = 0xE1

	first, err := Encode(Bitmap{Bits: bits}, v1TestProfile(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Encode(Bitmap{Bits: bits}, v1TestProfile(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bytes.Equal([]byte(first), []byte(second)) {
		t.Error("expected identical streams for identical inputs")
	}
}

func TestEncode_ModeOverrideText(t *testing.T) {
	bits := testBitmap(t, 8, 2)

	stream, err := Encode(Bitmap{Bits: bits}, v1TestProfile(), Options{ModeOverride: ModeText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Intensity frame carries the text energy, the print request the
	// text speed and the text directive.
	if stream[6] != 0xC0 {
		t.Errorf("expected text energy 0xC0, got 0x%02X", stream[6])
	}
	if stream[9+8] != 0x38 {
		t.Errorf("expected text speed 0x38, got 0x%02X", stream[9+8])
	}
	if stream[9+9] != v1ModeText {
		t.Errorf("expected mode byte 0x01, got 0x%02X", stream[9+9])
	}
}

func TestEncode_ModeOverrideImage(t *testing.T) {
	bits := testBitmap(t, 8, 2)
	renderer := &fakeRenderer{bits: bits}

	stream, err := Encode(Text{Value: "hello"}, v1TestProfile(), Options{
		ModeOverride: ModeImage,
		Renderer:     renderer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Text content still goes through the renderer, but the parameter
	// frames switch to the image set.
	if stream[6] != 0xA0 {
		t.Errorf("expected image energy 0xA0, got 0x%02X", stream[6])
	}
	if stream[9+8] != 0x30 {
		t.Errorf("expected image speed 0x30, got 0x%02X", stream[9+8])
	}
	if stream[9+9] != v1ModeImage {
		t.Errorf("expected mode byte 0x00, got 0x%02X", stream[9+9])
	}
}

func TestEncode_TextUsesTextParams(t *testing.T) {
	bits := testBitmap(t, 8, 2)
	renderer := &fakeRenderer{bits: bits}

	stream, err := Encode(Text{Value: "hello", Bold: true}, v1TestProfile(), Options{Renderer: renderer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stream[6] != 0xC0 {
		t.Errorf("expected text energy 0xC0, got 0x%02X", stream[6])
	}
	if renderer.gotWidth != 8 {
		t.Errorf("expected render width 8, got %d", renderer.gotWidth)
	}
	if !renderer.gotBold {
		t.Error("expected bold to reach the renderer")
	}
}

func TestEncode_DimensionMismatch(t *testing.T) {
	bits := testBitmap(t, 400, 10)
	prof := v1TestProfile()
	prof.PrintWidthPx = 384

	_, err := Encode(Bitmap{Bits: bits}, prof, Options{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEncode_EmptyBitmap(t *testing.T) {
	_, err := Encode(Bitmap{}, v1TestProfile(), Options{})
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestEncode_NilContent(t *testing.T) {
	_, err := Encode(nil, v1TestProfile(), Options{})
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestEncode_EmptyText(t *testing.T) {
	renderer := &fakeRenderer{bits: testBitmap(t, 8, 2)}

	_, err := Encode(Text{Value: ""}, v1TestProfile(), Options{Renderer: renderer})
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestEncode_TextWithoutRenderer(t *testing.T) {
	_, err := Encode(Text{Value: "hello"}, v1TestProfile(), Options{})
	if err == nil {
		t.Fatal("expected an error for text without a renderer")
	}
}

func TestEncode_RendererFailure(t *testing.T) {
	rendererErr := errors.New("no usable font")
	renderer := &fakeRenderer{err: rendererErr}

	_, err := Encode(Text{Value: "hello"}, v1TestProfile(), Options{Renderer: renderer})
	if !errors.Is(err, rendererErr) {
		t.Errorf("expected wrapped renderer error, got %v", err)
	}
}

func TestEncode_UnsupportedDialect(t *testing.T) {
	prof := v1TestProfile()
	prof.Dialect = profile.Dialect(9)

	_, err := Encode(Bitmap{Bits: testBitmap(t, 8, 2)}, prof, Options{})
	if !errors.Is(err, ErrUnsupportedDialect) {
		t.Errorf("expected ErrUnsupportedDialect, got %v", err)
	}
}

func TestEncode_DialectsDiverge(t *testing.T) {
	bits := testBitmap(t, 8, 4)
	bits.Data[0] = 0x42

	v1, err := Encode(Bitmap{Bits: bits}, v1TestProfile(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := Encode(Bitmap{Bits: bits}, v2TestProfile(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bytes.Equal([]byte(v1), []byte(v2)) {
		t.Error("expected different streams for different dialects")
	}
}

func TestEncode_FeedLines(t *testing.T) {
	bits := testBitmap(t, 8, 2)

	stream, err := Encode(Bitmap{Bits: bits}, v1TestProfile(), Options{FeedLines: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The feed is part of the job: twelve lines total.
	if stream[9+6] != 12 || stream[9+7] != 0 {
		t.Errorf("expected line count bytes 0C 00, got %02X %02X", stream[9+6], stream[9+7])
	}
	if bits.Height != 2 {
		t.Errorf("caller's bitmap grew to %d rows", bits.Height)
	}
}

func TestEncode_FeedLinesExtendV2Packets(t *testing.T) {
	bits := testBitmap(t, 8, 3)

	stream, err := Encode(Bitmap{Bits: bits}, v2TestProfile(), Options{FeedLines: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Eight rows make four packets of two rows each.
	wantLen := v2HandshakeLen + 4*(3+2+1)
	if len(stream) != wantLen {
		t.Errorf("expected %d bytes, got %d", wantLen, len(stream))
	}
}

func TestMode_String(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{ModeAuto, "auto"},
		{ModeImage, "image"},
		{ModeText, "text"},
	}
	for _, c := range cases {
		if got := c.mode.String(); got != c.want {
			t.Errorf("Mode(%d).String(): expected %q, got %q", int(c.mode), c.want, got)
		}
	}
}
