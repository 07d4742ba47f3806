package huffman

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"sort"

	"github.com/INLOpen/nexuscatalog/core"
)

const (
	// formatMagicNumber spells "HUFF" when written little-endian.
	formatMagicNumber uint32 = 0x46465548
	formatVersion     uint8  = 1
)

// Stream layout:
//
//	magic   uint32 LE
//	version uint8
//	N       uint16 LE            distinct symbol count
//	entries N * (symbol uint8, count uvarint), ascending symbol order
//	total   uint64 LE            total symbol count
//	padding uint8                zero bits appended to the final byte, 0..7
//	crc     uint32 LE            CRC32 (IEEE) over version..padding
//	payload packed code bits, MSB-first
type header struct {
	freqs   map[byte]uint64
	total   uint64
	padding uint8
}

// writeHeader appends the stream header for a frequency table to dst.
func writeHeader(dst *bytes.Buffer, freqs map[byte]uint64, total uint64, padding uint8) error {
	symbols := make([]int, 0, len(freqs))
	for s := range freqs {
		symbols = append(symbols, int(s))
	}
	sort.Ints(symbols)

	var body bytes.Buffer
	body.WriteByte(formatVersion)

	var scratch [binary.MaxVarintLen64]byte
	binary.LittleEndian.PutUint16(scratch[:2], uint16(len(symbols)))
	body.Write(scratch[:2])
	for _, s := range symbols {
		body.WriteByte(byte(s))
		n := binary.PutUvarint(scratch[:], freqs[byte(s)])
		body.Write(scratch[:n])
	}

	binary.LittleEndian.PutUint64(scratch[:8], total)
	body.Write(scratch[:8])
	body.WriteByte(padding)

	binary.LittleEndian.PutUint32(scratch[:4], formatMagicNumber)
	dst.Write(scratch[:4])
	dst.Write(body.Bytes())
	binary.LittleEndian.PutUint32(scratch[:4], crc32.ChecksumIEEE(body.Bytes()))
	dst.Write(scratch[:4])
	return nil
}

// crcByteReader hashes every byte it hands out so readHeader can verify
// the trailing checksum without buffering the header twice.
type crcByteReader struct {
	r     io.ByteReader
	crc   uint32
	count int64
}

func (cr *crcByteReader) ReadByte() (byte, error) {
	b, err := cr.r.ReadByte()
	if err != nil {
		return 0, err
	}
	cr.crc = crc32.Update(cr.crc, crc32.IEEETable, []byte{b})
	cr.count++
	return b, nil
}

func (cr *crcByteReader) readN(p []byte) error {
	for i := range p {
		b, err := cr.ReadByte()
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}

// readHeader parses and verifies the stream header. It consumes exactly
// the header bytes from r, leaving the reader positioned at the payload.
func readHeader(r io.ByteReader) (*header, error) {
	var word [8]byte
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, truncated(int64(i), err)
		}
		word[i] = b
	}
	if magic := binary.LittleEndian.Uint32(word[:4]); magic != formatMagicNumber {
		return nil, core.NewCorruptStreamError(0, "bad magic number 0x%08x", magic)
	}

	cr := &crcByteReader{r: r}
	version, err := cr.ReadByte()
	if err != nil {
		return nil, truncated(4, err)
	}
	if version != formatVersion {
		return nil, core.NewCorruptStreamError(4, "unsupported format version %d", version)
	}

	if err := cr.readN(word[:2]); err != nil {
		return nil, truncated(4+cr.count, err)
	}
	distinct := int(binary.LittleEndian.Uint16(word[:2]))

	h := &header{freqs: make(map[byte]uint64, distinct)}
	var sum uint64
	for i := 0; i < distinct; i++ {
		sym, err := cr.ReadByte()
		if err != nil {
			return nil, truncated(4+cr.count, err)
		}
		count, err := binary.ReadUvarint(cr)
		if err != nil {
			return nil, truncated(4+cr.count, err)
		}
		if count == 0 {
			return nil, core.NewCorruptStreamError(4+cr.count, "zero count for symbol 0x%02x", sym)
		}
		if _, dup := h.freqs[sym]; dup {
			return nil, core.NewCorruptStreamError(4+cr.count, "duplicate table entry for symbol 0x%02x", sym)
		}
		h.freqs[sym] = count
		if sum += count; sum < count {
			return nil, core.NewCorruptStreamError(4+cr.count, "frequency table overflows total count")
		}
	}

	if err := cr.readN(word[:8]); err != nil {
		return nil, truncated(4+cr.count, err)
	}
	h.total = binary.LittleEndian.Uint64(word[:8])
	if h.total != sum {
		return nil, core.NewCorruptStreamError(4+cr.count, "declared total %d does not match table sum %d", h.total, sum)
	}

	pad, err := cr.ReadByte()
	if err != nil {
		return nil, truncated(4+cr.count, err)
	}
	if pad > 7 {
		return nil, core.NewCorruptStreamError(4+cr.count-1, "padding length %d out of range", pad)
	}
	h.padding = pad

	computed := cr.crc
	if err := cr.readN(word[:4]); err != nil {
		return nil, truncated(4+cr.count, err)
	}
	if stored := binary.LittleEndian.Uint32(word[:4]); stored != computed {
		return nil, core.NewCorruptStreamError(4+cr.count-core.ChecksumSize, "header checksum mismatch: stored 0x%08x, computed 0x%08x", stored, computed)
	}
	return h, nil
}

func truncated(offset int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return core.NewCorruptStreamError(offset, "truncated header")
	}
	return err
}
