package serial

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// BytesPerSecond is the payload rate of an 8N1 link at baud
func BytesPerSecond(baud int) int {
	return baud / 10
}

// ThrottledWriter paces writes to a fixed byte rate so a fast writer such
// as stdout behaves like a UART at the configured baud.
type ThrottledWriter struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewThrottledWriter limits w to bytesPerSec. Writes block until the
// budget allows them or ctx is done.
func NewThrottledWriter(ctx context.Context, w io.Writer, bytesPerSec int) *ThrottledWriter {
	if bytesPerSec < 1 {
		bytesPerSec = 1
	}
	// One line per burst keeps pacing smooth
	burst := 64
	if bytesPerSec < burst {
		burst = bytesPerSec
	}
	return &ThrottledWriter{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := len(p)
		if burst := t.limiter.Burst(); chunk > burst {
			chunk = burst
		}
		if err := t.limiter.WaitN(t.ctx, chunk); err != nil {
			return written, err
		}
		n, err := t.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		if n < chunk {
			return written, io.ErrShortWrite
		}
		p = p[chunk:]
	}
	return written, nil
}
