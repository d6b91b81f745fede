package tracking

import "time"

var epoch = time.Now()

// Now returns monotonic milliseconds elapsed since the process started. It
// is never zero after the first millisecond and never jumps with wall-clock
// adjustments.
func Now() float64 {
	return float64(time.Since(epoch).Nanoseconds()) / 1e6
}
