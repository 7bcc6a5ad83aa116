// Package rans implements a byte-oriented range asymmetric numeral system
// (rANS) decoder. The decoder keeps a single 32-bit register and inverts a
// static cumulative distribution one symbol at a time, pulling input bytes
// whenever the register drops below its normalization bound.
package rans

import "math"

const (
	// MinSymbol is the smallest symbol a LaplaceModel assigns an interval to.
	// The decoder treats it as an escape that signals corrupt input.
	MinSymbol = -128
	// MaxSymbol is the largest symbol a LaplaceModel assigns an interval to.
	MaxSymbol = 128

	// reservedSlots is one guaranteed slot per symbol in [MinSymbol, MaxSymbol].
	reservedSlots = MaxSymbol - MinSymbol + 1

	minScaleBits = 9
	maxScaleBits = 16
)

// Model defines the cumulative distribution a Decoder inverts.
type Model interface {
	// ScaleBits returns the precision of the distribution.
	// Cumulative values lie in [0, 1<<ScaleBits()].
	ScaleBits() uint

	// CDF returns the cumulative value of all symbols below x.
	// It must be non-decreasing in x.
	CDF(x int) uint32

	// ICDF returns the symbol x such that CDF(x) <= cum < CDF(x+1).
	ICDF(cum uint32) int
}

// LaplaceModel is a fixed-point discretization of a zero-mean Laplace
// distribution over the symbols [MinSymbol, MaxSymbol].
//
// Every symbol owns at least one slot of the cumulative range, so any
// cumulative value maps back to exactly one symbol.
type LaplaceModel struct {
	variance float64
	b        float64
	scale    uint
	total    uint32

	// cdf[i] holds CDF(MinSymbol + i) for i in [0, reservedSlots].
	cdf [reservedSlots + 1]uint32
}

// NewLaplaceModel creates a model for the given variance with a cumulative
// range of 1<<scale.
func NewLaplaceModel(variance float64, scale uint) *LaplaceModel {
	if !(variance > 0) || math.IsInf(variance, 0) {
		panic("variance must be positive and finite")
	}
	if scale < minScaleBits || scale > maxScaleBits {
		panic("scale out of range")
	}

	m := &LaplaceModel{
		variance: variance,
		b:        math.Sqrt(variance / 2),
		scale:    scale,
		total:    1 << scale,
	}
	for i := range m.cdf {
		m.cdf[i] = m.compute(MinSymbol + i)
	}
	return m
}

// compute evaluates the quantized distribution without the lookup table.
func (m *LaplaceModel) compute(x int) uint32 {
	if x <= MinSymbol {
		return 0
	}
	if x > MaxSymbol {
		return m.total
	}

	p := laplaceCDF(float64(x)-0.5, m.b)
	return uint32(p*float64(m.total-reservedSlots)) + uint32(x-MinSymbol)
}

// laplaceCDF is the analytic CDF of a zero-mean Laplace distribution with scale b.
func laplaceCDF(x, b float64) float64 {
	if x < 0 {
		return 0.5 * math.Exp(x/b)
	}
	return 1 - 0.5*math.Exp(-x/b)
}

// Variance returns the variance the model was built from.
func (m *LaplaceModel) Variance() float64 { return m.variance }

func (m *LaplaceModel) ScaleBits() uint { return m.scale }

func (m *LaplaceModel) CDF(x int) uint32 {
	if x <= MinSymbol {
		return 0
	}
	if x > MaxSymbol {
		return m.total
	}
	return m.cdf[x-MinSymbol]
}

func (m *LaplaceModel) ICDF(cum uint32) int {
	// Invariant: CDF(lo) <= cum < CDF(hi).
	lo, hi := MinSymbol-1, MaxSymbol+1
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if m.CDF(mid) <= cum {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
