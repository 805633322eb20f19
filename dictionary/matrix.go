package dictionary

import (
	"fmt"
	"slices"
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	rows, cols int
	data       []float32
}

// NewMatrix returns a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// NewMatrixFrom wraps data without copying.
func NewMatrixFrom(data []float32, rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("dictionary: %d values do not form a (%d, %d) matrix", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Row returns row i as a slice into the matrix.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// SetRow copies v into row i.
func (m *Matrix) SetRow(i int, v []float32) {
	copy(m.Row(i), v)
}

// Data returns the backing slice.
func (m *Matrix) Data() []float32 { return m.data }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{rows: m.rows, cols: m.cols, data: slices.Clone(m.data)}
}

func (m *Matrix) appendZeroRow() {
	m.data = append(m.data, make([]float32, m.cols)...)
	m.rows++
}
