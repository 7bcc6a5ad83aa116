package gyro_test

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/egonelbre/exp-esplog/gyro"
	"github.com/egonelbre/exp-esplog/internal/ranstest"
	"github.com/egonelbre/exp-esplog/rans"
)

func encodeBlock(t testing.TB, quantShift, modelIndex uint8, triples [][3]int) []byte {
	t.Helper()
	model, err := gyro.Model(modelIndex)
	if err != nil {
		t.Fatalf("Model(%d) failed: %v", modelIndex, err)
	}
	return ranstest.EncodeBlock(model, quantShift, modelIndex, triples)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		state      gyro.State
		delta      [3]int32
		quantShift uint8
		expected   gyro.State
		done       bool
	}{
		{"Zero", gyro.State{}, [3]int32{0, 0, 0}, 0, gyro.State{}, true},
		{"Plain", gyro.State{1, 2, 3}, [3]int32{5, -5, 0}, 0, gyro.State{6, -3, 3}, true},
		{"Shifted", gyro.State{}, [3]int32{2, -1, 3}, 4, gyro.State{32, -16, 48}, true},
		{"SaturatedPositive", gyro.State{}, [3]int32{127, 0, 0}, 0, gyro.State{127, 0, 0}, false},
		{"SaturatedNegative", gyro.State{10, 10, 10}, [3]int32{0, 0, -127}, 1, gyro.State{10, 10, -244}, false},
		{"NotSaturated128", gyro.State{}, [3]int32{128, 126, -126}, 0, gyro.State{128, 126, -126}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, done := gyro.Apply(tt.state, tt.delta, tt.quantShift)
			if got != tt.expected {
				t.Errorf("state: expected %v, got %v", tt.expected, got)
			}
			if done != tt.done {
				t.Errorf("done: expected %v, got %v", tt.done, done)
			}
		})
	}
}

func TestParseHeader(t *testing.T) {
	block := []byte{3, 0xA7, 0x78, 0x56, 0x34, 0x12, 0xFF}
	header, err := gyro.ParseHeader(block)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}

	expected := gyro.Header{QuantShift: 3, ModelIndex: 7, Checksum: 5, Seed: 0x12345678}
	if header != expected {
		t.Errorf("expected %+v, got %+v", expected, header)
	}

	if _, err := gyro.ParseHeader(block[:5]); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short header: expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestModel(t *testing.T) {
	for i, variance := range gyro.Variances {
		model, err := gyro.Model(uint8(i))
		if err != nil {
			t.Fatalf("Model(%d) failed: %v", i, err)
		}
		if model.Variance() != variance {
			t.Errorf("Model(%d) variance = %v, expected %v", i, model.Variance(), variance)
		}
	}

	for _, index := range []uint8{16, 20, 31} {
		if _, err := gyro.Model(index); !errors.Is(err, gyro.ErrModelIndex) {
			t.Errorf("Model(%d): expected ErrModelIndex, got %v", index, err)
		}
	}
}

func TestSaturationChaining(t *testing.T) {
	block := encodeBlock(t, 0, 6, [][3]int{{127, 0, 0}, {5, 0, 0}})

	out := make([]gyro.State, 1)
	state, stats, err := gyro.DecodeBlock(gyro.State{}, block, out)
	if err != nil {
		t.Fatalf("DecodeBlock failed: %v", err)
	}

	if stats.Samples != 1 {
		t.Fatalf("expected 1 sample, got %d", stats.Samples)
	}
	if out[0] != (gyro.State{132, 0, 0}) {
		t.Errorf("expected sample {132 0 0}, got %v", out[0])
	}
	if state != out[0] {
		t.Errorf("returned state %v does not match last sample %v", state, out[0])
	}
	if stats.Saturated != 1 {
		t.Errorf("expected 1 saturated triple, got %d", stats.Saturated)
	}
	if stats.Consumed != len(block) {
		t.Errorf("consumed %d bytes, expected %d", stats.Consumed, len(block))
	}
}

func TestDecodeBlockRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for modelIndex := range gyro.Variances {
		for _, quantShift := range []uint8{0, 2, 7} {
			var triples [][3]int
			var expected []gyro.State
			current := gyro.State{-1000, 50, 7}
			start := current

			for i := 0; i < 64; i++ {
				var delta [3]int
				for axis := range delta {
					delta[axis] = rng.Intn(601) - 300
				}
				triples = append(triples, ranstest.SplitDelta(delta)...)
				for axis := range current {
					current[axis] += int32(delta[axis]) << quantShift
				}
				expected = append(expected, current)
			}

			block := encodeBlock(t, quantShift, uint8(modelIndex), triples)
			out := make([]gyro.State, len(expected))
			state, stats, err := gyro.DecodeBlock(start, block, out)
			if err != nil {
				t.Fatalf("model %d shift %d: DecodeBlock failed: %v", modelIndex, quantShift, err)
			}

			for i := range expected {
				if out[i] != expected[i] {
					t.Fatalf("model %d shift %d: sample %d: expected %v, got %v",
						modelIndex, quantShift, i, expected[i], out[i])
				}
			}
			if state != current {
				t.Errorf("model %d shift %d: final state %v, expected %v", modelIndex, quantShift, state, current)
			}
			if stats.Consumed != len(block) {
				t.Errorf("model %d shift %d: consumed %d, expected %d", modelIndex, quantShift, stats.Consumed, len(block))
			}
		}
	}
}

func TestDecodeBlockDeterministic(t *testing.T) {
	block := encodeBlock(t, 1, 9, [][3]int{{10, -20, 30}, {127, 127, -127}, {1, 2, 3}, {-4, 0, 60}})

	first := make([]gyro.State, 3)
	second := make([]gyro.State, 3)
	start := gyro.State{100, 200, 300}

	stateA, statsA, errA := gyro.DecodeBlock(start, block, first)
	stateB, statsB, errB := gyro.DecodeBlock(start, block, second)
	if errA != nil || errB != nil {
		t.Fatalf("DecodeBlock failed: %v, %v", errA, errB)
	}

	if stateA != stateB || statsA != statsB {
		t.Errorf("results differ: %v %+v vs %v %+v", stateA, statsA, stateB, statsB)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("sample %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestDecodeBlockContinuity(t *testing.T) {
	first := encodeBlock(t, 0, 5, [][3]int{{1, 1, 1}, {2, 2, 2}})
	second := encodeBlock(t, 0, 5, [][3]int{{-3, 0, 3}, {0, 0, 0}})

	out := make([]gyro.State, 2)
	state, _, err := gyro.DecodeBlock(gyro.State{}, first, out)
	if err != nil {
		t.Fatalf("first block failed: %v", err)
	}

	state, _, err = gyro.DecodeBlock(state, second, out)
	if err != nil {
		t.Fatalf("second block failed: %v", err)
	}

	if out[0] != (gyro.State{0, 3, 6}) || out[1] != (gyro.State{0, 3, 6}) {
		t.Errorf("unexpected samples %v", out)
	}
	if state != (gyro.State{0, 3, 6}) {
		t.Errorf("unexpected state %v", state)
	}
}

func TestDecodeBlockTrailingData(t *testing.T) {
	block := encodeBlock(t, 0, 4, [][3]int{{1, -2, 3}, {4, -5, 6}, {-7, 8, -9}})
	padded := append(bytes.Clone(block), 0x02, 0x10, 0x27, 0x00, 0x00, 0xAA, 0xBB)

	out := make([]gyro.State, 3)
	_, stats, err := gyro.DecodeBlock(gyro.State{}, padded, out)
	if err != nil {
		t.Fatalf("DecodeBlock failed: %v", err)
	}
	if stats.Consumed != len(block) {
		t.Errorf("consumed %d bytes, expected %d", stats.Consumed, len(block))
	}
}

func TestDecodeBlockChecksumHeader(t *testing.T) {
	block := encodeBlock(t, 0, 3, [][3]int{{3, 1, 4}, {1, 5, 9}, {2, 6, 5}})

	for flip := byte(1); flip < 8; flip++ {
		corrupt := bytes.Clone(block)
		corrupt[1] ^= flip << 5

		start := gyro.State{9, 9, 9}
		out := make([]gyro.State, 3)
		state, _, err := gyro.DecodeBlock(start, corrupt, out)
		if !errors.Is(err, gyro.ErrChecksum) {
			t.Fatalf("flip %d: expected ErrChecksum, got %v", flip, err)
		}
		if state != start {
			t.Errorf("flip %d: state changed on error: %v", flip, state)
		}
	}
}

func TestDecodeBlockChecksumPayload(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var triples [][3]int
	for i := 0; i < 32; i++ {
		triples = append(triples, [3]int{rng.Intn(61) - 30, rng.Intn(61) - 30, rng.Intn(61) - 30})
	}
	block := encodeBlock(t, 0, 6, triples)
	if len(block) < gyro.HeaderSize+16 {
		t.Fatalf("payload too short: %d bytes", len(block)-gyro.HeaderSize)
	}

	rejected := 0
	for i := gyro.HeaderSize; i < len(block); i++ {
		corrupt := bytes.Clone(block)
		corrupt[i] ^= 0x5A

		out := make([]gyro.State, len(triples))
		if _, _, err := gyro.DecodeBlock(gyro.State{}, corrupt, out); err != nil {
			rejected++
		}
	}

	if rejected == 0 {
		t.Errorf("no single-byte corruption was rejected")
	}
}

func TestDecodeBlockErrors(t *testing.T) {
	valid := encodeBlock(t, 0, 2, [][3]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}})

	badModel := bytes.Clone(valid)
	badModel[1] = badModel[1]&0xE0 | 20

	escape := []byte{0, 0, 0x00, 0x00, 0x80, 0x00}

	tests := []struct {
		name     string
		block    []byte
		expected error
	}{
		{"ShortHeader", valid[:4], io.ErrUnexpectedEOF},
		{"ModelIndex", badModel, gyro.ErrModelIndex},
		{"Truncated", valid[:len(valid)-1], rans.ErrTruncated},
		{"HeaderOnly", valid[:gyro.HeaderSize], rans.ErrTruncated},
		{"Escape", escape, rans.ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := gyro.State{1, 2, 3}
			out := make([]gyro.State, 4)
			state, stats, err := gyro.DecodeBlock(start, tt.block, out)
			if !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, err)
			}
			if state != start {
				t.Errorf("state changed on error: %v", state)
			}
			if stats.Consumed > len(tt.block) {
				t.Errorf("consumed %d bytes of %d", stats.Consumed, len(tt.block))
			}
		})
	}
}

func FuzzDecodeBlock(f *testing.F) {
	model, _ := gyro.Model(6)
	f.Add(ranstest.EncodeBlock(model, 0, 6, [][3]int{{127, 0, 0}, {5, 0, 0}}))
	f.Add([]byte{0, 0, 0, 0, 0x80, 0})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, block []byte) {
		out := make([]gyro.State, 8)
		_, stats, err := gyro.DecodeBlock(gyro.State{}, block, out)
		if stats.Consumed > len(block) && len(block) >= gyro.HeaderSize {
			t.Fatalf("consumed %d bytes of %d", stats.Consumed, len(block))
		}
		if err == nil && stats.Samples != len(out) {
			t.Fatalf("success with %d of %d samples", stats.Samples, len(out))
		}
	})
}

func BenchmarkDecodeBlock(b *testing.B) {
	rng := rand.New(rand.NewSource(3))
	var triples [][3]int
	for i := 0; i < 1024; i++ {
		triples = append(triples, [3]int{int(rng.NormFloat64() * 8), int(rng.NormFloat64() * 8), int(rng.NormFloat64() * 8)})
	}
	block := encodeBlock(b, 0, 6, triples)
	out := make([]gyro.State, len(triples))

	b.SetBytes(int64(len(block)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, _, err := gyro.DecodeBlock(gyro.State{}, block, out); err != nil {
			b.Fatal(err)
		}
	}
}
