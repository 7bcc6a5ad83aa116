package esplog

import (
	"io"
	"log/slog"
	"math"
)

// DefaultChunkSize is the number of bytes read for one compressed gyro record.
// A block larger than the chunk cannot be decoded.
const DefaultChunkSize = 16 << 10

// Option configures a parse.
type Option func(*options)

type options struct {
	chunkSize  int
	logger     *slog.Logger
	accelRange bool
}

func defaultOptions() options {
	return options{
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
}

// WithChunkSize sets how many bytes are read for each compressed gyro record.
// Values below the gyro block header size are ignored.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > minChunkSize {
			o.chunkSize = n
		}
	}
}

// WithLogger sets the logger that receives record and early-stop events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAccelRangeScaling scales accelerometer readings by the range exponent
// of the accelerometer setup record, 2^(range+1) g full scale, instead of
// the fixed 16 g.
func WithAccelRangeScaling(enabled bool) Option {
	return func(o *options) {
		o.accelRange = enabled
	}
}
