package transport

import (
	"context"
	"time"
)

// maxZeroWrites bounds how many consecutive zero-length writes the
// pacer tolerates before declaring the link stalled.
const maxZeroWrites = 5

// Pacer writes a command stream in fixed-size chunks with a fixed pause
// between them. Cheap printer heads have tiny receive buffers and no
// flow control, so pushing the stream in one write drops bytes; the
// chunk size and delay come from the device profile.
type Pacer struct {
	// ChunkSize is the most bytes handed to one Write call. A value
	// larger than the stream sends everything in a single chunk.
	ChunkSize int
	// Delay is the pause between chunks. There is no pause after the
	// final chunk.
	Delay time.Duration
	// Logger receives per-send diagnostics. Nil discards them.
	Logger Logger
}

// NewPacer returns a pacer with the given chunk size and inter-chunk
// delay.
func NewPacer(chunkSize int, delay time.Duration) *Pacer {
	return &Pacer{ChunkSize: chunkSize, Delay: delay}
}

// Send writes the whole stream to h, honoring the chunk size and delay.
// It returns the byte count the link accepted. Any mid-stream error,
// including context cancellation, comes back as a *FailureError
// carrying that count as the offset. Cancellation is observed at chunk
// boundaries; an in-flight Write is never interrupted.
func (p *Pacer) Send(ctx context.Context, h Handle, stream []byte) (int, error) {
	logger := p.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	chunkSize := p.ChunkSize
	if chunkSize <= 0 || chunkSize > len(stream) {
		chunkSize = len(stream)
	}

	sent := 0
	chunks := 0
	for sent < len(stream) {
		if err := ctx.Err(); err != nil {
			return sent, &FailureError{Offset: sent, Cause: err}
		}

		end := sent + chunkSize
		if end > len(stream) {
			end = len(stream)
		}

		zeroWrites := 0
		for sent < end {
			n, err := h.Write(stream[sent:end])
			if n > 0 {
				sent += n
				zeroWrites = 0
			}
			if err != nil {
				logger.Errorf("send failed after %d of %d bytes: %v", sent, len(stream), err)
				return sent, &FailureError{Offset: sent, Cause: err}
			}
			if n == 0 {
				zeroWrites++
				if zeroWrites >= maxZeroWrites {
					logger.Errorf("send stalled after %d of %d bytes", sent, len(stream))
					return sent, &FailureError{Offset: sent, Cause: ErrStalled}
				}
			}
		}
		chunks++

		if sent < len(stream) && p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return sent, &FailureError{Offset: sent, Cause: ctx.Err()}
			case <-timer.C:
			}
		}
	}

	logger.Debugf("sent %d bytes in %d chunks", sent, chunks)
	return sent, nil
}
