package rans

import "errors"

// RegisterLow is the lower bound of the normalized register interval.
// Before every decode the register lies in [RegisterLow, 1<<32).
const RegisterLow = 1 << 23

var (
	// ErrTruncated is returned when renormalization runs out of input.
	ErrTruncated = errors.New("rans: input exhausted during renormalization")
	// ErrCorrupt is returned when the register decodes to the escape symbol MinSymbol.
	ErrCorrupt = errors.New("rans: escape symbol decoded")
)

// Decoder decodes symbols from a borrowed byte slice.
type Decoder struct {
	input []byte
	pos   int
	state uint32
}

// NewDecoder creates a decoder that starts from the register value state
// and pulls renormalization bytes from input.
func NewDecoder(input []byte, state uint32) *Decoder {
	return &Decoder{
		input: input,
		state: state,
	}
}

// Decode reads and returns the next symbol using the given model.
//
// The escape symbol MinSymbol is reported as ErrCorrupt. When the input ends
// before the register is renormalized, Decode returns ErrTruncated; in both
// cases the decoder must not be used further.
func (d *Decoder) Decode(model Model) (int, error) {
	scale := model.ScaleBits()
	mask := uint32(1)<<scale - 1

	cum := d.state & mask
	symbol := model.ICDF(cum)
	if symbol == MinSymbol {
		return 0, ErrCorrupt
	}

	start := model.CDF(symbol)
	freq := model.CDF(symbol+1) - start
	d.state = freq*(d.state>>scale) + cum - start

	for d.state < RegisterLow {
		if d.pos >= len(d.input) {
			return 0, ErrTruncated
		}
		d.state = d.state<<8 | uint32(d.input[d.pos])
		d.pos++
	}

	return symbol, nil
}

// Consumed returns the number of input bytes pulled into the register so far.
func (d *Decoder) Consumed() int { return d.pos }

// State returns the current register value.
func (d *Decoder) State() uint32 { return d.state }
