package huffman

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/nexuscatalog/core"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	allBytes := make([]byte, 256)
	for i := range allBytes {
		allBytes[i] = byte(i)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x42}},
		{"single byte repeated", bytes.Repeat([]byte{0xAA}, 1000)},
		{"two symbols", []byte("abababab")},
		{"ascii text", []byte("the quick brown fox jumps over the lazy dog")},
		{"full byte range", allBytes},
		{"full byte range repeated", bytes.Repeat(allBytes, 3)},
		{"null bytes", make([]byte, 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.data)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.data, decoded)
		})
	}
}

func TestEncodeDecodeRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sizes := []int{1, 7, 8, 63, 64, 1000, 4096, 65537}

	for _, size := range sizes {
		data := make([]byte, size)
		rng.Read(data)

		encoded, err := Encode(data)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err, "size %d", size)
		require.True(t, bytes.Equal(data, decoded), "round trip mismatch at size %d", size)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	data := []byte("determinism matters: equal inputs must give byte-identical streams")

	first, err := Encode(data)
	require.NoError(t, err)
	second, err := Encode(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPrefixProperty(t *testing.T) {
	inputs := [][]byte{
		[]byte("abracadabra"),
		bytes.Repeat([]byte("nexus"), 17),
		{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233},
	}

	for _, data := range inputs {
		codes, err := BuildCodes(BuildTree(BuildFrequencyTable(data)))
		require.NoError(t, err)

		rendered := make(map[byte]string, len(codes))
		for s, c := range codes {
			require.Greater(t, c.Len, 0, "every symbol must get a non-empty code")
			rendered[s] = c.String()
		}
		for a, ca := range rendered {
			for b, cb := range rendered {
				if a == b {
					continue
				}
				assert.False(t, strings.HasPrefix(ca, cb),
					"code %s of 0x%02x is prefixed by code %s of 0x%02x", ca, a, cb, b)
			}
		}
	}
}

func TestEntropyBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := [][]byte{
		[]byte("aaaaaaaaaab"),
		bytes.Repeat([]byte{0xFF}, 100),
		make([]byte, 2048),
	}
	random := make([]byte, 2048)
	rng.Read(random)
	inputs = append(inputs, random)

	for _, data := range inputs {
		freqs := BuildFrequencyTable(data)
		codes, err := BuildCodes(BuildTree(freqs))
		require.NoError(t, err)

		bits := payloadBits(freqs, codes)
		assert.LessOrEqual(t, bits, uint64(len(data))*8,
			"payload must never exceed verbatim bit length")
	}
}

func TestHuffmanOptimalityScenario(t *testing.T) {
	freqs := map[byte]uint64{'a': 4, 'b': 3, 'c': 2, 'd': 5, 'e': 6, 'f': 10}

	codes, err := BuildCodes(BuildTree(freqs))
	require.NoError(t, err)
	require.Len(t, codes, 6)

	// Sorted by ascending frequency, code lengths must be non-increasing.
	order := []byte{'c', 'b', 'a', 'd', 'e', 'f'}
	for i := 1; i < len(order); i++ {
		rarer, commoner := order[i-1], order[i]
		assert.GreaterOrEqual(t, codes[rarer].Len, codes[commoner].Len,
			"code for %q (freq lower) must not be shorter than for %q", rarer, commoner)
	}
	assert.NotEqual(t, codes['a'], codes['f'])
}

func TestSingleSymbolTreeShape(t *testing.T) {
	root := BuildTree(map[byte]uint64{'z': 9})
	require.NotNil(t, root)
	require.False(t, root.Leaf)
	require.NotNil(t, root.Left)
	require.NotNil(t, root.Right)

	assert.True(t, root.Left.Leaf)
	assert.Equal(t, byte('z'), root.Left.Symbol)
	assert.True(t, root.Right.placeholder())

	codes, err := BuildCodes(root)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, Code{Bits: 0, Len: 1}, codes['z'], "the lone symbol gets a 1-bit code")
}

func TestBuildTreeEmpty(t *testing.T) {
	assert.Nil(t, BuildTree(nil))
	assert.Nil(t, BuildTree(map[byte]uint64{}))

	codes, err := BuildCodes(nil)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestBuildCodesDepthLimit(t *testing.T) {
	fib := func(n int) map[byte]uint64 {
		freqs := make(map[byte]uint64, n)
		a, b := uint64(1), uint64(1)
		for i := 0; i < n; i++ {
			freqs[byte(i)] = a
			a, b = b, a+b
		}
		return freqs
	}

	codes, err := BuildCodes(BuildTree(fib(30)))
	require.NoError(t, err)
	assert.Len(t, codes, 30)

	_, err = BuildCodes(BuildTree(fib(70)))
	require.Error(t, err, "fibonacci frequencies past 64 symbols exceed the code width")
	assert.Contains(t, err.Error(), "longer than 64 bits")
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "101", Code{Bits: 0b101, Len: 3}.String())
	assert.Equal(t, "0001", Code{Bits: 0b0001, Len: 4}.String())
	assert.Equal(t, "", Code{}.String())
}

func TestPaddingWithinRange(t *testing.T) {
	// Seven symbols of length 1..n bit payloads exercise every padding value.
	for n := 1; n <= 16; n++ {
		data := bytes.Repeat([]byte{'x'}, n)
		encoded, err := Encode(data)
		require.NoError(t, err)

		r := bytes.NewReader(encoded)
		h, err := readHeader(r)
		require.NoError(t, err)
		assert.LessOrEqual(t, h.padding, uint8(7), "padding is always 0..7, even at byte alignment")
		if n%8 == 0 {
			assert.Equal(t, uint8(0), h.padding, "aligned payloads store zero padding")
		}
	}
}

func TestDecodeRejectsTamperedStreams(t *testing.T) {
	valid, err := Encode([]byte("mississippi river basin"))
	require.NoError(t, err)

	t.Run("bad magic", func(t *testing.T) {
		tampered := append([]byte(nil), valid...)
		tampered[0] ^= 0xFF
		_, err := Decode(tampered)
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "bad magic")
	})

	t.Run("unsupported version", func(t *testing.T) {
		tampered := append([]byte(nil), valid...)
		tampered[4] = 9
		_, err := Decode(tampered)
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "unsupported format version")
	})

	t.Run("header checksum mismatch", func(t *testing.T) {
		tampered := append([]byte(nil), valid...)
		tampered[7] ^= 0x01 // first table entry's symbol byte
		_, err := Decode(tampered)
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "checksum mismatch")
	})

	t.Run("truncated anywhere", func(t *testing.T) {
		for i := 0; i < len(valid); i++ {
			_, err := Decode(valid[:i])
			require.Error(t, err, "prefix of length %d must not decode", i)
			assert.True(t, core.IsCorruptStream(err), "prefix of length %d: %v", i, err)
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		tampered := append(append([]byte(nil), valid...), 0x00)
		_, err := Decode(tampered)
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
	})
}

func TestDecodeCraftedHeaders(t *testing.T) {
	t.Run("payload ends mid-code", func(t *testing.T) {
		// Codes for {a,b,c} each once: c=0, a=10, b=11. The payload byte
		// holds "abc" in 5 bits; declaring padding 5 cuts the stream one
		// bit into the second code.
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 1, 'b': 1, 'c': 1}, 3, 5))
		buf.WriteByte(0b10110000)

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "mid-code")
	})

	t.Run("missing symbols", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 1, 'b': 1, 'c': 1}, 3, 4))
		buf.WriteByte(0b10110000)

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("padding out of range", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 2}, 2, 9))
		buf.WriteByte(0x00)

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "padding length 9 out of range")
	})

	t.Run("zero count entry", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 0}, 0, 0))

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "zero count")
	})

	t.Run("total does not match table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 2}, 3, 0))
		buf.WriteByte(0x00)

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "does not match table sum")
	})

	t.Run("missing payload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeHeader(&buf, map[byte]uint64{'a': 4}, 4, 4))

		_, err := Decode(buf.Bytes())
		require.Error(t, err)
		assert.True(t, core.IsCorruptStream(err))
		assert.Contains(t, err.Error(), "missing bit payload")
	})
}

func TestDecodeEmptyStreamVariants(t *testing.T) {
	encoded, err := Encode(nil)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)

	withTrailing := append(append([]byte(nil), encoded...), 0xAB)
	_, err = Decode(withTrailing)
	require.Error(t, err)
	assert.True(t, core.IsCorruptStream(err))
	assert.Contains(t, err.Error(), "trailing data")
}

func TestEncodeToAppends(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("prefix:")
	prefixLen := buf.Len()

	require.NoError(t, EncodeTo(&buf, []byte("payload")))

	decoded, err := Decode(buf.Bytes()[prefixLen:])
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), decoded)
	assert.Equal(t, "prefix:", string(buf.Bytes()[:prefixLen]))
}
