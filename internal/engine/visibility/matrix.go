// Package visibility decodes the potentially visible set (PVS) of a BSP
// map into a cluster-to-cluster matrix.
package visibility

import "math/bits"

// Matrix is a bit-packed NumClusters x NumClusters visibility matrix.
// Entry (i, j) is set when a viewer in cluster i may see cluster j.
// Rows are decoded independently; the matrix is not assumed symmetric.
type Matrix struct {
	n     int
	words int // uint64 words per row
	bits  []uint64
}

// NewMatrix returns an all-zero matrix for n clusters.
func NewMatrix(n int) *Matrix {
	words := (n + 63) / 64
	return &Matrix{n: n, words: words, bits: make([]uint64, n*words)}
}

// NumClusters returns the matrix dimension.
func (m *Matrix) NumClusters() int {
	return m.n
}

// Visible reports whether cluster to is potentially visible from cluster from.
func (m *Matrix) Visible(from, to int) bool {
	return m.bits[from*m.words+to/64]&(1<<(uint(to)%64)) != 0
}

// Set marks cluster to as visible from cluster from.
func (m *Matrix) Set(from, to int) {
	m.bits[from*m.words+to/64] |= 1 << (uint(to) % 64)
}

// Row returns cluster i's row as booleans.
func (m *Matrix) Row(i int) []bool {
	row := make([]bool, m.n)
	for j := range row {
		row[j] = m.Visible(i, j)
	}
	return row
}

// CountVisible returns the number of clusters visible from cluster i.
func (m *Matrix) CountVisible(i int) int {
	n := 0
	for _, w := range m.bits[i*m.words : (i+1)*m.words] {
		n += bits.OnesCount64(w)
	}
	return n
}
