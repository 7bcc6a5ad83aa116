// Package esplog decodes embedded flight logger recordings into timestamped
// gyroscope and accelerometer samples.
//
// A log is a 7-byte header followed by tagged records. Compressed gyro
// records are decoded with package gyro; raw samples accumulate until a
// delta time record assigns them evenly spaced timestamps.
//
// Recorders may lose power mid-write, so truncated or corrupt records end
// the stream without failing the parse: everything flushed before the
// damaged record is returned.
package esplog

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"unicode/utf8"

	"github.com/egonelbre/exp-esplog/gyro"
	"github.com/egonelbre/exp-esplog/rans"
)

var (
	// ErrRevision is returned for a gyro setup record with an unsupported revision.
	ErrRevision = errors.New("esplog: unsupported gyro setup revision")
	// ErrMissingSetup ends the stream when gyro data precedes any gyro setup.
	ErrMissingSetup = errors.New("esplog: gyro data before gyro setup")
	// ErrNoSamples is returned when a log yields no samples at all.
	ErrNoSamples = errors.New("esplog: no samples decoded")
)

const (
	minChunkSize = gyro.HeaderSize

	// gyroScale converts one fixed-point angle step (2^27 per radian) to degrees.
	gyroScale = 180 / math.Pi / (1 << 27)
	// accelScale converts a raw accelerometer reading to g at 16 g full scale.
	accelScale = 16.0 / 32767
	// accelFullScale is the raw reading corresponding to full scale.
	accelFullScale = 32767
)

// Parse decodes the log read from r.
//
// The context is checked once per record. When it is cancelled Parse
// returns the samples finalized so far together with the context error.
// Otherwise the error is non-nil only when the log is malformed, an I/O
// error other than end of input occurs, or no samples could be decoded.
func Parse(ctx context.Context, r io.ReadSeeker, opts ...Option) (*Result, error) {
	return newParser(r, opts).run(ctx)
}

// ParseBytes decodes a log held in memory.
func ParseBytes(ctx context.Context, data []byte, opts ...Option) (*Result, error) {
	return Parse(ctx, bytes.NewReader(data), opts...)
}

// Inspect parses the log read from r and returns the stream statistics,
// also when no samples could be decoded.
func Inspect(ctx context.Context, r io.ReadSeeker, opts ...Option) (Stats, error) {
	p := newParser(r, opts)
	_, err := p.run(ctx)
	return p.result.Stats, err
}

type parser struct {
	r    io.ReadSeeker
	opts options
	log  *slog.Logger

	offset int64
	clock  int64 // microseconds

	haveSetup  bool
	state      gyro.State
	scratch    []gyro.State
	chunk      []byte
	accelCount int
	accelBuf   []byte

	gyro  []gyro.State
	accel [][3]int32

	result *Result
}

func newParser(r io.ReadSeeker, opts []Option) *parser {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &parser{
		r:     r,
		opts:  o,
		log:   o.logger,
		chunk: make([]byte, o.chunkSize),
		result: &Result{
			Orientation: DefaultOrientation,
			Stats: Stats{
				Records: make(map[Tag]int),
			},
		},
	}
}

func (p *parser) run(ctx context.Context) (*Result, error) {
	var header [HeaderSize]byte
	if err := p.read(header[:]); err != nil {
		return p.stop(fmt.Errorf("file header: %w", err))
	}
	if !Detect(header[:]) {
		p.log.Debug("unexpected file header", "header", fmt.Sprintf("%q", header[:]))
	}

	for {
		if err := ctx.Err(); err != nil {
			p.log.Warn("parse cancelled", "offset", p.offset, "err", err)
			p.result.Stats.Stopped = err
			p.finish()
			return p.result, err
		}

		var tag [1]byte
		if err := p.read(tag[:]); err != nil {
			if err == io.EOF {
				break
			}
			return p.stop(err)
		}

		t := Tag(tag[0])
		if !t.Known() {
			p.log.Debug("end of records", "offset", p.offset-1, "tag", t)
			break
		}
		p.result.Stats.Records[t]++

		if err := p.record(t); err != nil {
			return p.stop(fmt.Errorf("%v record at offset %d: %w", t, p.offset, err))
		}
	}

	return p.done()
}

func (p *parser) record(t Tag) error {
	switch t {
	case TagGyroSetup:
		return p.gyroSetup()
	case TagDeltaTime:
		return p.deltaTime()
	case TagGyroData:
		return p.gyroData()
	case TagAccelSetup:
		return p.accelSetup()
	case TagAccelData:
		return p.accelData()
	case TagTimeOffset:
		return p.timeOffset()
	case TagOrientation:
		return p.orientation()
	}
	return nil
}

func (p *parser) gyroSetup() error {
	var buf [3]byte
	if err := p.read(buf[:]); err != nil {
		return err
	}

	revision := buf[0]
	if revision != SupportedRevision {
		return fmt.Errorf("%w: %d", ErrRevision, revision)
	}

	capacity := int(binary.LittleEndian.Uint16(buf[1:]))
	if cap(p.scratch) < capacity {
		p.scratch = make([]gyro.State, capacity)
	}
	p.scratch = p.scratch[:capacity]
	p.haveSetup = true

	p.log.Debug("gyro setup", "revision", revision, "capacity", capacity)
	return nil
}

func (p *parser) deltaTime() error {
	var buf [4]byte
	if err := p.read(buf[:]); err != nil {
		return err
	}
	p.flush(binary.LittleEndian.Uint32(buf[:]))
	return nil
}

func (p *parser) gyroData() error {
	if !p.haveSetup {
		return ErrMissingSetup
	}

	n, err := io.ReadFull(p.r, p.chunk)
	p.offset += int64(n)
	switch {
	case err == io.EOF:
		return err
	case err != nil && err != io.ErrUnexpectedEOF:
		return err
	}

	state, stats, err := gyro.DecodeBlock(p.state, p.chunk[:n], p.scratch)
	if err != nil {
		if n == len(p.chunk) && errors.Is(err, rans.ErrTruncated) {
			return fmt.Errorf("block exceeds %d byte read chunk: %w", n, err)
		}
		return err
	}

	// One read may span several records; continue right after the block.
	if _, err := p.r.Seek(int64(stats.Consumed-n), io.SeekCurrent); err != nil {
		return err
	}
	p.offset += int64(stats.Consumed - n)

	p.state = state
	p.gyro = append(p.gyro, p.scratch[:stats.Samples]...)
	p.result.Stats.Blocks++
	p.result.Stats.Saturated += stats.Saturated

	p.log.Debug("gyro block",
		"consumed", stats.Consumed,
		"samples", stats.Samples,
		"quant_shift", stats.Header.QuantShift,
		"model", stats.Header.ModelIndex)
	return nil
}

func (p *parser) accelSetup() error {
	var buf [2]byte
	if err := p.read(buf[:]); err != nil {
		return err
	}

	p.accelCount = int(buf[0])
	p.result.AccelRange = buf[1]

	p.log.Debug("accel setup", "samples", p.accelCount, "range", buf[1])
	return nil
}

func (p *parser) accelData() error {
	size := 6 * p.accelCount
	if cap(p.accelBuf) < size {
		p.accelBuf = make([]byte, size)
	}
	buf := p.accelBuf[:size]
	if err := p.read(buf); err != nil {
		return err
	}

	for i := 0; i < len(buf); i += 6 {
		x := int16(binary.LittleEndian.Uint16(buf[i:]))
		y := int16(binary.LittleEndian.Uint16(buf[i+2:]))
		z := int16(binary.LittleEndian.Uint16(buf[i+4:]))
		p.accel = append(p.accel, [3]int32{-int32(x), -int32(y), -int32(z)})
	}
	return nil
}

func (p *parser) timeOffset() error {
	var buf [4]byte
	if err := p.read(buf[:]); err != nil {
		return err
	}

	offset := int32(binary.LittleEndian.Uint32(buf[:]))
	p.clock += int64(offset)

	p.log.Debug("time offset", "us", offset)
	return nil
}

func (p *parser) orientation() error {
	var buf [3]byte
	if err := p.read(buf[:]); err != nil {
		return err
	}

	if utf8.Valid(buf[:]) {
		p.result.Orientation = string(buf[:])
	} else {
		p.result.Orientation = DefaultOrientation
	}
	return nil
}

// flush timestamps the accumulated raw samples by spreading dt evenly
// across them and advances the clock.
func (p *parser) flush(dt uint32) {
	if dt == 0 {
		// No time base; keep accumulating until the next delta.
		return
	}

	span := float64(dt)
	start := float64(p.clock)

	if n := len(p.gyro); n > 0 {
		scale := float64(n) / span * 1e6 * gyroScale
		for i, v := range p.gyro {
			p.result.Gyro = append(p.result.Gyro, Sample{
				Timestamp: (start + span*float64(i)/float64(n)) / 1e6,
				Axis:      Gyro,
				X:         float64(v[0]) * scale,
				Y:         float64(v[1]) * scale,
				Z:         float64(v[2]) * scale,
			})
		}
	}

	if n := len(p.accel); n > 0 {
		scale := p.accelScale()
		for i, v := range p.accel {
			p.result.Accel = append(p.result.Accel, Sample{
				Timestamp: (start + span*float64(i)/float64(n)) / 1e6,
				Axis:      Accel,
				X:         float64(v[0]) * scale,
				Y:         float64(v[1]) * scale,
				Z:         float64(v[2]) * scale,
			})
		}
	}

	p.clock += int64(dt)
	p.gyro = p.gyro[:0]
	p.accel = p.accel[:0]
}

func (p *parser) accelScale() float64 {
	if p.opts.accelRange {
		return math.Ldexp(1, int(p.result.AccelRange)+1) / accelFullScale
	}
	return accelScale
}

func (p *parser) read(buf []byte) error {
	n, err := io.ReadFull(p.r, buf)
	p.offset += int64(n)
	return err
}

// stop ends the stream on err. Truncated and corrupt records keep the
// partial result, any other error fails the parse.
func (p *parser) stop(err error) (*Result, error) {
	if !recoverable(err) {
		p.finish()
		return nil, err
	}

	p.log.Warn("log ends with an unreadable record", "offset", p.offset, "err", err)
	p.result.Stats.Stopped = err
	return p.done()
}

func (p *parser) finish() {
	p.result.Stats.Bytes = p.offset
	p.result.Stats.Dropped = len(p.gyro) + len(p.accel)
}

func (p *parser) done() (*Result, error) {
	p.finish()

	if p.result.Len() == 0 {
		if cause := p.result.Stats.Stopped; cause != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoSamples, cause)
		}
		return nil, ErrNoSamples
	}
	return p.result, nil
}

var recoverableErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	rans.ErrTruncated,
	rans.ErrCorrupt,
	gyro.ErrChecksum,
	gyro.ErrModelIndex,
	ErrMissingSetup,
}

func recoverable(err error) bool {
	for _, target := range recoverableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
