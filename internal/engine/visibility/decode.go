package visibility

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Visibility decoding errors.
var (
	ErrTruncated        = errors.New("truncated visibility lump")
	ErrOffsetOutOfRange = errors.New("visibility row offset out of range")
	ErrOverrun          = errors.New("visibility row overruns its data")
	ErrTooManyClusters  = errors.New("visibility cluster count out of range")
)

// MaxClusters is the compiler's cluster limit.
const MaxClusters = 65536

// maxBitsPerByte is the most clusters one compressed byte can cover: a
// two-byte run escape spans 255 zero bytes.
const maxBitsPerByte = 255 * 8 / 2

// Decode builds the cluster matrix from a visibility lump: a cluster count,
// one (visofs, audofs) pair per cluster with offsets relative to the lump,
// then run-length encoded rows. An empty lump yields a 0-cluster matrix.
func Decode(lump []byte) (*Matrix, error) {
	if len(lump) == 0 {
		return NewMatrix(0), nil
	}
	if len(lump) < 4 {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncated, len(lump))
	}

	n := int(int32(binary.LittleEndian.Uint32(lump)))
	if n < 0 || 4+8*n > len(lump) {
		return nil, fmt.Errorf("%w: offset table for %d clusters needs %d bytes, have %d",
			ErrTruncated, n, 4+8*n, len(lump))
	}

	if n > MaxClusters {
		return nil, fmt.Errorf("%w: %d clusters, limit is %d", ErrTooManyClusters, n, MaxClusters)
	}
	if blob, need := len(lump)-(4+8*n), (n+maxBitsPerByte-1)/maxBitsPerByte; blob < need {
		return nil, fmt.Errorf("%w: %d clusters need at least %d row bytes, have %d",
			ErrTruncated, n, need, blob)
	}

	m := NewMatrix(n)
	for i := 0; i < n; i++ {
		ofs := int(int32(binary.LittleEndian.Uint32(lump[4+8*i:])))
		if ofs < 0 || ofs >= len(lump) {
			return nil, fmt.Errorf("%w: cluster %d at %d, lump is %d bytes",
				ErrOffsetOutOfRange, i, ofs, len(lump))
		}
		if err := m.decodeRow(i, lump, ofs); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	return m, nil
}

// decodeRow expands one compressed row starting at data[v].
// A zero byte is always a run escape: the following byte counts whole
// bytes of zero bits. Any other byte is a literal mask of 8 clusters.
func (m *Matrix) decodeRow(row int, data []byte, v int) error {
	limit := (m.n + 7) / 8 * 8
	for c := 0; c < m.n; {
		if v >= len(data) {
			return fmt.Errorf("%w: compressed cursor at %d, decoded %d of %d bits", ErrOverrun, v, c, m.n)
		}
		b := data[v]
		v++

		if b == 0 {
			if v >= len(data) {
				return fmt.Errorf("%w: run escape without a count at %d", ErrOverrun, v-1)
			}
			c += 8 * int(data[v])
			v++
			if c > limit {
				return fmt.Errorf("%w: zero run ends at bit %d, row has %d", ErrOverrun, c, limit)
			}
			continue
		}

		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 && c+bit < m.n {
				m.Set(row, c+bit)
			}
		}
		c += 8
	}
	return nil
}

// CompressRow run-length encodes a row the way vvis does. Each run of
// zero bytes is written as 0 followed by its length, split at 255.
func CompressRow(row []bool) []byte {
	packed := make([]byte, (len(row)+7)/8)
	for i, set := range row {
		if set {
			packed[i/8] |= 1 << (i % 8)
		}
	}

	out := make([]byte, 0, len(packed))
	for i := 0; i < len(packed); {
		if packed[i] != 0 {
			out = append(out, packed[i])
			i++
			continue
		}
		run := 0
		for i < len(packed) && packed[i] == 0 && run < 255 {
			run++
			i++
		}
		out = append(out, 0, byte(run))
	}
	return out
}

// Encode builds a visibility lump from rows, one per cluster. Audibility
// offsets point at the same data as the visibility rows.
func Encode(rows [][]bool) []byte {
	n := len(rows)
	out := make([]byte, 4+8*n)
	binary.LittleEndian.PutUint32(out, uint32(n))
	for i, row := range rows {
		ofs := uint32(len(out))
		binary.LittleEndian.PutUint32(out[4+8*i:], ofs)
		binary.LittleEndian.PutUint32(out[8+8*i:], ofs)
		out = append(out, CompressRow(row)...)
	}
	return out
}
