package dialect

import (
	"bytes"
	"errors"
	"testing"
)

func TestV1StatusRequest_Frame(t *testing.T) {
	want := []byte{0x22, 0x21, 0xA1, 0x00, 0x01, 0x00, 0x00, 0x00, 0xFF}
	if got := V1StatusRequest(); !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestV1QueryFrames_CommandIDs(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		cmd   byte
	}{
		{"battery", V1BatteryRequest(), 0xAB},
		{"version", V1VersionRequest(), 0xB1},
		{"cancel", V1CancelRequest(), 0xAC},
	}
	for _, c := range cases {
		if c.frame[2] != c.cmd {
			t.Errorf("%s: expected command 0x%02X, got 0x%02X", c.name, c.cmd, c.frame[2])
		}
		if c.frame[0] != 0x22 || c.frame[1] != 0x21 || c.frame[len(c.frame)-1] != 0xFF {
			t.Errorf("%s: bad frame envelope % X", c.name, c.frame)
		}
	}
}

func v1StatusFrame(state, battery, temp, errFlag, errCode byte) []byte {
	buf := make([]byte, 16)
	buf[0], buf[1] = 0x22, 0x21
	buf[2] = 0xA1
	buf[4] = 0x08
	buf[v1StatusOffState] = state
	buf[v1StatusOffBattery] = battery
	buf[v1StatusOffTemp] = temp
	buf[v1StatusOffErrFlag] = errFlag
	buf[v1StatusOffErrCode] = errCode
	return buf
}

func TestParseV1Status(t *testing.T) {
	st, err := ParseV1Status(v1StatusFrame(0x01, 85, 32, 0x00, 0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !st.Printing {
		t.Error("expected printing state")
	}
	if st.Battery != 85 {
		t.Errorf("expected battery 85, got %d", st.Battery)
	}
	if st.Temperature != 32 {
		t.Errorf("expected temperature 32, got %d", st.Temperature)
	}
	if st.ErrorCode != 0 {
		t.Errorf("expected no error code, got %d", st.ErrorCode)
	}
}

func TestParseV1Status_Standby(t *testing.T) {
	st, err := ParseV1Status(v1StatusFrame(0x00, 100, 28, 0x00, 0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Printing {
		t.Error("expected standby state")
	}
}

func TestParseV1Status_DeviceFault(t *testing.T) {
	st, err := ParseV1Status(v1StatusFrame(0x00, 40, 30, 0x01, 0x03))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ErrorCode != 3 {
		t.Errorf("expected error code 3, got %d", st.ErrorCode)
	}
}

func TestParseV1Status_ErrorCodeNeedsFlag(t *testing.T) {
	st, err := ParseV1Status(v1StatusFrame(0x00, 40, 30, 0x00, 0x03))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ErrorCode != 0 {
		t.Errorf("expected error code 0 with the flag clear, got %d", st.ErrorCode)
	}
}

func TestParseV1Status_TooShort(t *testing.T) {
	_, err := ParseV1Status([]byte{0x22, 0x21, 0xA1})
	if !errors.Is(err, ErrBadStatusFrame) {
		t.Errorf("expected ErrBadStatusFrame, got %v", err)
	}
}

func TestParseV1Status_BadPreamble(t *testing.T) {
	frame := v1StatusFrame(0x00, 50, 30, 0x00, 0x00)
	frame[0] = 0x55

	_, err := ParseV1Status(frame)
	if !errors.Is(err, ErrBadStatusFrame) {
		t.Errorf("expected ErrBadStatusFrame, got %v", err)
	}
}

func TestParseV1Status_WrongCommand(t *testing.T) {
	frame := v1StatusFrame(0x00, 50, 30, 0x00, 0x00)
	frame[2] = 0xAB

	_, err := ParseV1Status(frame)
	if !errors.Is(err, ErrBadStatusFrame) {
		t.Errorf("expected ErrBadStatusFrame, got %v", err)
	}
}

func TestIsV1PrintComplete(t *testing.T) {
	if !IsV1PrintComplete([]byte{0x22, 0x21, 0xAA, 0x00, 0x01, 0x00, 0x00, 0x00, 0xFF}) {
		t.Error("expected completion frame to be recognized")
	}
	if IsV1PrintComplete([]byte{0x22, 0x21, 0xA1, 0x00}) {
		t.Error("status frame is not a completion signal")
	}
	if IsV1PrintComplete([]byte{0x22}) {
		t.Error("short buffer is not a completion signal")
	}
}
