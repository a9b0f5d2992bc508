package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/minithermal/print-engine/pkg/dialect"
	"github.com/minithermal/print-engine/pkg/profile"
	"github.com/minithermal/print-engine/pkg/raster"
	"github.com/minithermal/print-engine/pkg/transport"
)

const testProfiles = `[
  {
    "modelId": "TEST",
    "namePrefixes": ["TP01"],
    "printWidthPx": 8,
    "imageEnergy": 160,
    "imageSpeed": 48,
    "textEnergy": 192,
    "textSpeed": 56,
    "chunkSizeBytes": 4,
    "interChunkDelayMs": 0,
    "dialect": "standard-v1"
  },
  {
    "modelId": "TEST-V2",
    "macSuffixes": ["4D5E6F"],
    "printWidthPx": 8,
    "imageEnergy": 2,
    "imageSpeed": 34,
    "textEnergy": 3,
    "textSpeed": 30,
    "chunkSizeBytes": 100,
    "interChunkDelayMs": 0,
    "dialect": "extended-v2"
  }
]`

func testRegistry(t *testing.T) *profile.Registry {
	t.Helper()
	reg, err := profile.Load([]byte(testProfiles))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return reg
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{Registry: testRegistry(t), FeedLines: -1})
}

func testContent(t *testing.T, height int) dialect.Content {
	t.Helper()
	bits, err := raster.New(8, height)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return dialect.Bitmap{Bits: bits}
}

// sessionHandle records writes and close calls, and can be scripted to
// fail partway through a send.
type sessionHandle struct {
	received        bytes.Buffer
	writes          int
	failAfterWrites int
	failErr         error
	closed          int
}

func (h *sessionHandle) Write(p []byte) (int, error) {
	if h.failErr != nil && h.writes >= h.failAfterWrites {
		return 0, h.failErr
	}
	h.writes++
	h.received.Write(p)
	return len(p), nil
}

func (h *sessionHandle) Close() error {
	h.closed++
	return nil
}

// identifiedHandle also reports the identity learned while connecting.
type identifiedHandle struct {
	sessionHandle
	name    string
	address string
}

func (h *identifiedHandle) DiscoveredName() string    { return h.name }
func (h *identifiedHandle) DiscoveredAddress() string { return h.address }

func TestPrintOnce_Success(t *testing.T) {
	handle := &sessionHandle{}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "TEST",
	})

	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}
	// Two parameter frames, 90 padded raster bytes, one flush frame.
	if result.BytesSent != 9+12+90+9 {
		t.Errorf("expected %d bytes, got %d", 9+12+90+9, result.BytesSent)
	}
	if result.FailedStage != StageNone {
		t.Errorf("expected no failed stage, got %s", result.FailedStage)
	}
	if handle.closed != 1 {
		t.Errorf("expected one close, got %d", handle.closed)
	}
}

func TestPrintOnce_ResolveFailureClosesHandle(t *testing.T) {
	handle := &sessionHandle{}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "NOPE",
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailedStage != StageResolve {
		t.Errorf("expected resolve stage, got %s", result.FailedStage)
	}
	if !errors.Is(result.Err, profile.ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", result.Err)
	}
	if result.BytesSent != 0 {
		t.Errorf("expected 0 bytes sent, got %d", result.BytesSent)
	}
	if handle.closed != 1 {
		t.Errorf("expected one close, got %d", handle.closed)
	}
}

func TestPrintOnce_EncodeFailureClosesHandle(t *testing.T) {
	handle := &sessionHandle{}
	bits, err := raster.New(16, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: dialect.Bitmap{Bits: bits},
		Model:   "TEST",
	})

	if result.FailedStage != StageEncode {
		t.Errorf("expected encode stage, got %s", result.FailedStage)
	}
	if !errors.Is(result.Err, dialect.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", result.Err)
	}
	if handle.closed != 1 {
		t.Errorf("expected one close, got %d", handle.closed)
	}
}

func TestPrintOnce_SendFailureCarriesOffset(t *testing.T) {
	linkErr := errors.New("link dropped")
	handle := &sessionHandle{failAfterWrites: 3, failErr: linkErr}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "TEST",
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailedStage != StageSend {
		t.Errorf("expected send stage, got %s", result.FailedStage)
	}
	// Three 4-byte chunks made it out.
	if result.BytesSent != 12 {
		t.Errorf("expected 12 bytes sent, got %d", result.BytesSent)
	}
	var failure *transport.FailureError
	if !errors.As(result.Err, &failure) {
		t.Fatalf("expected a FailureError, got %v", result.Err)
	}
	if failure.Offset != result.BytesSent {
		t.Errorf("offset %d disagrees with bytes sent %d", failure.Offset, result.BytesSent)
	}
	if handle.closed != 1 {
		t.Errorf("expected one close, got %d", handle.closed)
	}
}

func TestPrintOnce_IdentityFromHandle(t *testing.T) {
	handle := &identifiedHandle{name: "TP01-7C2A"}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
	})

	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}
}

func TestPrintOnce_AddressFromHandle(t *testing.T) {
	handle := &identifiedHandle{name: "Mystery Device", address: "0A:1B:2C:4D:5E:6F"}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
	})

	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}
	// The extended-v2 stream starts with the 0x5A handshake.
	first := handle.received.Bytes()[0]
	if first != 0x5A {
		t.Errorf("expected an extended-v2 stream, first byte 0x%02X", first)
	}
}

func TestPrintOnce_ExplicitModelIgnoresIdentity(t *testing.T) {
	handle := &identifiedHandle{name: "Mystery Device", address: "0A:1B:2C:4D:5E:6F"}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "TEST",
	})

	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}
	first := handle.received.Bytes()[0]
	if first != 0x22 {
		t.Errorf("expected a standard-v1 stream, first byte 0x%02X", first)
	}
}

func TestPrintOnce_DefaultFeed(t *testing.T) {
	engine := NewEngine(Config{Registry: testRegistry(t)})
	handle := &sessionHandle{}

	result := engine.PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "TEST",
	})
	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}

	// Two content lines plus the default feed.
	stream := handle.received.Bytes()
	lines := int(stream[9+6]) | int(stream[9+7])<<8
	if lines != 2+DefaultFeedLines {
		t.Errorf("expected %d lines, got %d", 2+DefaultFeedLines, lines)
	}
}

func TestPrintOnce_RequestFeedOverride(t *testing.T) {
	engine := NewEngine(Config{Registry: testRegistry(t)})
	handle := &sessionHandle{}

	result := engine.PrintOnce(context.Background(), handle, Request{
		Content:   testContent(t, 2),
		Model:     "TEST",
		FeedLines: -1,
	})
	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}

	stream := handle.received.Bytes()
	lines := int(stream[9+6]) | int(stream[9+7])<<8
	if lines != 2 {
		t.Errorf("expected 2 lines with the feed disabled, got %d", lines)
	}
}

func TestPrintOnce_ModeOverrideReachesWire(t *testing.T) {
	handle := &sessionHandle{}

	result := testEngine(t).PrintOnce(context.Background(), handle, Request{
		Content: testContent(t, 2),
		Model:   "TEST",
		Mode:    dialect.ModeText,
	})
	if !result.Success {
		t.Fatalf("expected success, got stage %s: %v", result.FailedStage, result.Err)
	}

	stream := handle.received.Bytes()
	if stream[6] != 0xC0 {
		t.Errorf("expected text energy 0xC0, got 0x%02X", stream[6])
	}
}

func TestStage_String(t *testing.T) {
	cases := []struct {
		stage Stage
		want  string
	}{
		{StageNone, "none"},
		{StageResolve, "resolve"},
		{StageEncode, "encode"},
		{StageSend, "send"},
	}
	for _, c := range cases {
		if got := c.stage.String(); got != c.want {
			t.Errorf("Stage(%d).String(): expected %q, got %q", int(c.stage), c.want, got)
		}
	}
}
