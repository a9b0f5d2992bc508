package dialect

import (
	"errors"
	"fmt"
)

// ErrMalformedStream means bytes fed to a router do not follow the
// standard-v1 stream grammar.
var ErrMalformedStream = errors.New("malformed command stream")

// V1Router splits a standard-v1 stream into control frames and raster
// data runs. Transports with separate command and data channels feed
// every written byte through it; single-pipe transports do not need it.
//
// The raster segment after a print request carries no framing of its
// own, so the router needs the head's row stride to know where the
// segment ends.
type V1Router struct {
	widthBytes int

	frame    []byte
	dataLeft int
}

// NewV1Router returns a router for a head whose rows are widthBytes
// wide.
func NewV1Router(widthBytes int) *V1Router {
	return &V1Router{widthBytes: widthBytes}
}

// Feed consumes stream bytes in order, calling frame with each complete
// control frame and data with each run of raster bytes. Fragmentation
// does not matter: a frame split across calls is delivered once it is
// whole. Feed returns how many bytes of p it accepted; a callback error
// stops consumption there.
func (r *V1Router) Feed(p []byte, frame func([]byte) error, data func([]byte) error) (int, error) {
	consumed := 0
	for len(p) > 0 {
		if r.dataLeft > 0 {
			n := r.dataLeft
			if n > len(p) {
				n = len(p)
			}
			if err := data(p[:n]); err != nil {
				return consumed, err
			}
			r.dataLeft -= n
			consumed += n
			p = p[n:]
			continue
		}

		need := v1HeaderLen - len(r.frame)
		if len(r.frame) >= v1HeaderLen {
			need = r.frameLen() - len(r.frame)
		}
		if need > len(p) {
			need = len(p)
		}
		r.frame = append(r.frame, p[:need]...)
		consumed += need
		p = p[need:]

		if len(r.frame) >= 2 && (r.frame[0] != v1Preamble0 || r.frame[1] != v1Preamble1) {
			r.frame = nil
			return consumed, fmt.Errorf("%w: expected frame preamble", ErrMalformedStream)
		}
		if len(r.frame) < v1HeaderLen || len(r.frame) < r.frameLen() {
			continue
		}

		full := r.frame
		r.frame = nil
		if err := frame(full); err != nil {
			return consumed, err
		}
		if full[2] == v1CmdPrintRequest && len(full) >= v1HeaderLen+2 {
			lines := int(full[6]) | int(full[7])<<8
			if lines < v1MinLines {
				lines = v1MinLines
			}
			r.dataLeft = lines * r.widthBytes
		}
	}
	return consumed, nil
}

// v1HeaderLen is the fixed prefix before a frame's payload.
const v1HeaderLen = 6

func (r *V1Router) frameLen() int {
	return r.frameLenOf(r.frame)
}

func (r *V1Router) frameLenOf(frame []byte) int {
	payload := int(frame[4]) | int(frame[5])<<8
	return v1HeaderLen + payload + 2
}
