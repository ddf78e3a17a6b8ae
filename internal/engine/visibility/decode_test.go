package visibility

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"
)

// lumpWithRow builds a single-purpose lump: n clusters, every row pointing
// at the same compressed bytes.
func lumpWithRow(n int, row []byte) []byte {
	out := make([]byte, 4+8*n)
	binary.LittleEndian.PutUint32(out, uint32(n))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[4+8*i:], uint32(4+8*n))
	}
	return append(out, row...)
}

func TestDecode_ZeroRunThenLiteral(t *testing.T) {
	m, err := Decode(lumpWithRow(24, []byte{0x00, 0x02, 0xFF}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	for j := 0; j < 24; j++ {
		want := j >= 16
		if got := m.Visible(0, j); got != want {
			t.Errorf("cluster %d: expected visible=%v, got %v", j, want, got)
		}
	}
	if got := m.CountVisible(0); got != 8 {
		t.Errorf("expected 8 visible clusters, got %d", got)
	}
}

func TestCompressRow_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{1, 7, 8, 9, 63, 64, 65, 300, 2100}

	for _, n := range sizes {
		for trial := 0; trial < 20; trial++ {
			// Sparse rows exercise long zero runs, dense rows literals.
			density := rng.Float64() * 0.3
			row := make([]bool, n)
			for j := range row {
				row[j] = rng.Float64() < density
			}

			m, err := Decode(lumpWithRow(n, CompressRow(row)))
			if err != nil {
				t.Fatalf("n=%d: Decode failed: %v", n, err)
			}
			for i := 0; i < n; i += max(1, n/5) {
				got := m.Row(i)
				for j := range row {
					if got[j] != row[j] {
						t.Fatalf("n=%d row %d: bit %d expected %v, got %v", n, i, j, row[j], got[j])
					}
				}
			}
		}
	}
}

func TestCompressRow_LongRunSplits(t *testing.T) {
	row := make([]bool, 8*300)
	row[len(row)-1] = true

	got := CompressRow(row)
	want := []byte{0x00, 255, 0x00, 44, 0x80}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEncode_AsymmetricRows(t *testing.T) {
	rows := [][]bool{
		{true, true, false},
		{false, true, false},
		{false, false, true},
	}
	m, err := Decode(Encode(rows))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.NumClusters() != 3 {
		t.Fatalf("expected 3 clusters, got %d", m.NumClusters())
	}
	if !m.Visible(0, 1) || m.Visible(1, 0) {
		t.Error("rows must decode independently; matrix is not symmetrized")
	}
}

func TestDecode_PaddingBitsIgnored(t *testing.T) {
	// 4 clusters, literal byte with bits 4..7 set in the padding.
	m, err := Decode(lumpWithRow(4, []byte{0xF3}))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := m.CountVisible(0); got != 2 {
		t.Errorf("expected 2 visible clusters, got %d", got)
	}
}

func TestDecode_Empty(t *testing.T) {
	m, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.NumClusters() != 0 {
		t.Errorf("expected 0 clusters, got %d", m.NumClusters())
	}
}

func TestDecode_Errors(t *testing.T) {
	badOffset := lumpWithRow(2, []byte{0xFF})
	binary.LittleEndian.PutUint32(badOffset[4:], 9999)

	tests := []struct {
		name string
		lump []byte
		want error
	}{
		{"short header", []byte{1, 0}, ErrTruncated},
		{"offset table past end", []byte{5, 0, 0, 0, 0, 0, 0, 0}, ErrTruncated},
		{"negative count", []byte{0xFF, 0xFF, 0xFF, 0xFF}, ErrTruncated},
		{"row offset past end", badOffset, ErrOffsetOutOfRange},
		{"compressed data ends early", lumpWithRow(24, []byte{0xFF}), ErrOverrun},
		{"escape without count", lumpWithRow(24, []byte{0xFF, 0x00}), ErrOverrun},
		{"zero run past row end", lumpWithRow(16, []byte{0x00, 0x03}), ErrOverrun},
		{"row data too small for count", lumpWithRow(3000, []byte{0x00, 0xFF}), ErrTruncated},
		{"cluster count over limit", lumpWithRow(MaxClusters+1, []byte{0x00, 0xFF}), ErrTooManyClusters},
	}

	for _, tt := range tests {
		if _, err := Decode(tt.lump); !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}
