package gyro

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/egonelbre/exp-esplog/rans"
)

const (
	// HeaderSize is the size of the block header in bytes.
	HeaderSize = 6
	// ScaleBits is the precision of the block symbol models.
	ScaleBits = 12
)

// Variances lists the Laplace variances a block header can select.
var Variances = [16]float64{
	0.25, 0.5, 1, 2,
	4, 8, 16, 32,
	64, 128, 256, 512,
	1024, 2048, 4096, 8192,
}

var (
	// ErrChecksum is returned when the decoded symbols do not match the header checksum.
	ErrChecksum = errors.New("gyro: block checksum mismatch")
	// ErrModelIndex is returned for a header selecting a variance outside Variances.
	ErrModelIndex = errors.New("gyro: model index out of range")
)

// models holds one read-only model per entry of Variances.
var models = func() (m [len(Variances)]*rans.LaplaceModel) {
	for i, v := range Variances {
		m[i] = rans.NewLaplaceModel(v, ScaleBits)
	}
	return m
}()

// Model returns the symbol model selected by a header model index.
func Model(index uint8) (*rans.LaplaceModel, error) {
	if int(index) >= len(models) {
		return nil, fmt.Errorf("%w: %d", ErrModelIndex, index)
	}
	return models[index], nil
}

// Header is the fixed prefix of a compressed block.
type Header struct {
	QuantShift uint8  // left shift applied to every decoded delta
	ModelIndex uint8  // 5-bit index into Variances
	Checksum   uint8  // low 3 bits of the symbol sum
	Seed       uint32 // initial rANS register
}

// ParseHeader parses the first HeaderSize bytes of a block.
func ParseHeader(block []byte) (Header, error) {
	if len(block) < HeaderSize {
		return Header{}, fmt.Errorf("gyro: block header: %w", io.ErrUnexpectedEOF)
	}
	return Header{
		QuantShift: block[0],
		ModelIndex: block[1] & 0x1f,
		Checksum:   block[1] >> 5,
		Seed:       binary.LittleEndian.Uint32(block[2:HeaderSize]),
	}, nil
}

// BlockStats describes one decoded block.
type BlockStats struct {
	Header    Header
	Consumed  int // bytes of the block actually read, header included
	Samples   int // finished samples written to out
	Saturated int // saturated triples merged into following ones
}

// DecodeBlock decodes len(out) samples from block, starting from state.
//
// It returns the state after the last sample. block may extend past the end
// of the compressed data; stats.Consumed reports how far decoding went and
// is where the next record starts. On error the input state is returned
// unchanged and out holds stats.Samples valid samples.
func DecodeBlock(state State, block []byte, out []State) (State, BlockStats, error) {
	var stats BlockStats

	header, err := ParseHeader(block)
	if err != nil {
		return state, stats, err
	}
	stats.Header = header
	stats.Consumed = HeaderSize

	model, err := Model(header.ModelIndex)
	if err != nil {
		return state, stats, err
	}

	dec := rans.NewDecoder(block[HeaderSize:], header.Seed)
	current := state

	var checksum uint8
	for stats.Samples < len(out) {
		var delta [3]int32
		for axis := range delta {
			symbol, err := dec.Decode(model)
			stats.Consumed = HeaderSize + dec.Consumed()
			if err != nil {
				return state, stats, fmt.Errorf("gyro: sample %d axis %d: %w", stats.Samples, axis, err)
			}
			delta[axis] = int32(symbol)
			checksum += uint8(symbol)
		}

		var done bool
		current, done = Apply(current, delta, header.QuantShift)
		if !done {
			stats.Saturated++
			continue
		}

		out[stats.Samples] = current
		stats.Samples++
	}

	if checksum&0x07 != header.Checksum {
		return state, stats, fmt.Errorf("%w: header %d, decoded %d", ErrChecksum, header.Checksum, checksum&0x07)
	}

	return current, stats, nil
}
