package huffman

import (
	"math"
	"sort"
)

// Analysis summarizes the symbol distribution of an input and the
// compression Huffman coding could achieve on it.
type Analysis struct {
	TotalBytes      int64
	DistinctSymbols int
	Counts          map[byte]uint64
	EntropyBits     float64 // Shannon entropy in bits per symbol
	EstimatedRatio  float64 // theoretical space saving percentage, 0..100
}

// SymbolCount pairs a symbol with its occurrence count.
type SymbolCount struct {
	Symbol byte
	Count  uint64
}

// Analyze builds the frequency profile of data. The estimated ratio is
// (1 - entropy/8) * 100 clamped to [0,100]; an empty input reports zero.
func Analyze(data []byte) Analysis {
	a := Analysis{
		TotalBytes: int64(len(data)),
		Counts:     BuildFrequencyTable(data),
	}
	a.DistinctSymbols = len(a.Counts)
	if a.TotalBytes == 0 {
		return a
	}

	total := float64(a.TotalBytes)
	for _, c := range a.Counts {
		p := float64(c) / total
		a.EntropyBits -= p * math.Log2(p)
	}

	a.EstimatedRatio = (1 - a.EntropyBits/8) * 100
	if a.EstimatedRatio < 0 {
		a.EstimatedRatio = 0
	} else if a.EstimatedRatio > 100 {
		a.EstimatedRatio = 100
	}
	return a
}

// TopSymbols returns the n most frequent symbols, ties broken by symbol
// value ascending.
func (a Analysis) TopSymbols(n int) []SymbolCount {
	out := make([]SymbolCount, 0, len(a.Counts))
	for s, c := range a.Counts {
		out = append(out, SymbolCount{Symbol: s, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symbol < out[j].Symbol
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// CompressionRatio is the observed space saving percentage for a
// compressed output against its original size.
func CompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return (1 - float64(compressedSize)/float64(originalSize)) * 100
}
