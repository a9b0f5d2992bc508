package render

import "testing"

func TestRenderText_WidthMatches(t *testing.T) {
	bits, err := NewTextRenderer().RenderText("hello printer", 384, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bits.Width != 384 {
		t.Errorf("expected width 384, got %d", bits.Width)
	}
	if bits.Height == 0 {
		t.Error("expected a non-empty bitmap")
	}
}

func TestRenderText_BoldNeverFails(t *testing.T) {
	regular, err := NewTextRenderer().RenderText("hello", 384, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bold, err := NewTextRenderer().RenderText("hello", 384, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if regular.Width != bold.Width {
		t.Errorf("bold changed the width: %d vs %d", regular.Width, bold.Width)
	}
}

func TestRenderText_DrawsInk(t *testing.T) {
	bits, err := NewTextRenderer().RenderText("XXXX", 384, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ink := 0
	for _, b := range bits.Data {
		if b != 0 {
			ink++
		}
	}
	if ink == 0 {
		t.Error("expected some black pixels")
	}
}

func TestRenderText_WrapsLongText(t *testing.T) {
	short, err := NewTextRenderer().RenderText("hi", 384, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long, err := NewTextRenderer().RenderText(
		"a considerably longer line of text that cannot possibly fit on one row of narrow paper", 384, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if long.Height <= short.Height {
		t.Errorf("expected wrapping to add rows: %d vs %d", long.Height, short.Height)
	}
}

func TestRenderText_InvalidWidth(t *testing.T) {
	if _, err := NewTextRenderer().RenderText("hello", 0, false); err == nil {
		t.Error("expected an error for zero width")
	}
}

func TestBarcode_Code128(t *testing.T) {
	bits, err := Barcode("ORDER-1234", FormatCode128, 384, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bits.Width != 384 {
		t.Errorf("expected width 384, got %d", bits.Width)
	}
	if bits.Height != 80 {
		t.Errorf("expected default height 80, got %d", bits.Height)
	}
}

func TestBarcode_EmptyValue(t *testing.T) {
	if _, err := Barcode("", FormatCode128, 384, 0); err == nil {
		t.Error("expected an error for an empty value")
	}
}

func TestBarcode_InvalidEAN(t *testing.T) {
	if _, err := Barcode("not-a-number", FormatEAN13, 384, 0); err == nil {
		t.Error("expected an error for a non-numeric EAN value")
	}
}

func TestBarcode_UnknownFormat(t *testing.T) {
	if _, err := Barcode("1234", BarcodeFormat("AZTEC"), 384, 0); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestQRCode_Size(t *testing.T) {
	bits, err := QRCode("https://example.com/receipt/42", 384)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bits.Width != 384 {
		t.Errorf("expected width 384, got %d", bits.Width)
	}
	if bits.Height == 0 {
		t.Error("expected a non-empty bitmap")
	}
}

func TestQRCode_EmptyValue(t *testing.T) {
	if _, err := QRCode("", 384); err == nil {
		t.Error("expected an error for an empty value")
	}
}
