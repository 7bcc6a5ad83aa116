// Package ranstest builds encoded fixtures for decoder tests: rANS symbol
// streams, compressed gyro blocks and complete log files.
package ranstest

import (
	"encoding/binary"

	"github.com/egonelbre/exp-esplog/rans"
)

// Encode encodes symbols with model so that rans.Decoder returns them in
// order when started from state and fed payload.
//
// After the last symbol is decoded the register is back at rans.RegisterLow
// and the payload has been consumed exactly.
func Encode(model rans.Model, symbols []int) (state uint32, payload []byte) {
	scale := model.ScaleBits()
	x := uint64(rans.RegisterLow)

	// Bytes are emitted in reverse and flipped at the end.
	for i := len(symbols) - 1; i >= 0; i-- {
		s := symbols[i]
		start := uint64(model.CDF(s))
		freq := uint64(model.CDF(s+1)) - start
		if freq == 0 {
			panic("symbol has an empty interval")
		}

		xmax := ((rans.RegisterLow >> scale) << 8) * freq
		for x >= xmax {
			payload = append(payload, byte(x))
			x >>= 8
		}
		x = (x/freq)<<scale + x%freq + start
	}

	for i, j := 0, len(payload)-1; i < j; i, j = i+1, j-1 {
		payload[i], payload[j] = payload[j], payload[i]
	}
	return uint32(x), payload
}

// Checksum returns the wrapping byte sum of all symbols.
func Checksum(triples [][3]int) uint8 {
	var sum uint8
	for _, t := range triples {
		for _, s := range t {
			sum += uint8(s)
		}
	}
	return sum
}

// EncodeBlock builds a compressed gyro block: the 6-byte header followed by
// the entropy coded triples.
func EncodeBlock(model rans.Model, quantShift, modelIndex uint8, triples [][3]int) []byte {
	symbols := make([]int, 0, 3*len(triples))
	for _, t := range triples {
		symbols = append(symbols, t[0], t[1], t[2])
	}

	state, payload := Encode(model, symbols)

	block := make([]byte, 6, 6+len(payload))
	block[0] = quantShift
	block[1] = (Checksum(triples)&0x07)<<5 | modelIndex&0x1f
	binary.LittleEndian.PutUint32(block[2:], state)
	return append(block, payload...)
}

// SplitDelta splits a per-axis delta into the chain of triples a block
// carries for it: saturated steps of magnitude 127 followed by the remainder.
func SplitDelta(delta [3]int) [][3]int {
	var chain [][3]int
	rest := delta
	for {
		var step [3]int
		saturated := false
		for i, v := range rest {
			switch {
			case v >= 127:
				step[i] = 127
				saturated = true
			case v <= -127:
				step[i] = -127
				saturated = true
			default:
				step[i] = v
			}
		}
		chain = append(chain, step)
		if !saturated {
			return chain
		}
		for i := range rest {
			rest[i] -= step[i]
		}
	}
}
