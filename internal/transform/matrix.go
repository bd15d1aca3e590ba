package transform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// TargetColumn names the target in preprocessed partition CSVs.
const TargetColumn = "amount"

// Matrix is an encoded feature matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.Rows) }

// Col copies column j.
func (m *Matrix) Col(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r[j]
	}
	return out
}

// Dense copies the matrix into a gonum Dense.
func (m *Matrix) Dense() *mat.Dense {
	if len(m.Rows) == 0 {
		return nil
	}
	d := mat.NewDense(len(m.Rows), len(m.Columns), nil)
	for i, r := range m.Rows {
		d.SetRow(i, r)
	}
	return d
}

// Select returns a matrix holding only cols, in that order. A column the
// matrix does not have is a schema mismatch.
func (m *Matrix) Select(cols []string) (*Matrix, error) {
	pos := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		pos[c] = i
	}
	idx := make([]int, len(cols))
	for j, c := range cols {
		p, ok := pos[c]
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrSchemaMismatch, http.StatusInternalServerError,
				"column %q not produced by transformer", c)
		}
		idx[j] = p
	}
	out := &Matrix{Columns: append([]string(nil), cols...), Rows: make([][]float64, len(m.Rows))}
	for i, r := range m.Rows {
		row := make([]float64, len(idx))
		for j, p := range idx {
			row[j] = r[p]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// WriteCSV writes the matrix with the target appended as the last column.
func WriteCSV(w io.Writer, m *Matrix, y []float64) error {
	if len(y) != m.Len() {
		return fmt.Errorf("target length %d does not match %d rows", len(y), m.Len())
	}
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), m.Columns...), TargetColumn)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, r := range m.Rows {
		for j, v := range r {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		rec[len(r)] = strconv.FormatFloat(y[i], 'g', -1, 64)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a matrix written by WriteCSV and splits off the target.
func ReadCSV(r io.Reader) (*Matrix, []float64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading matrix header: %w", err)
	}
	if len(header) < 2 || header[len(header)-1] != TargetColumn {
		return nil, nil, apperrors.Newf(apperrors.ErrSchemaMismatch, http.StatusInternalServerError,
			"matrix csv must end with %q column", TargetColumn)
	}
	m := &Matrix{Columns: header[:len(header)-1]}
	var y []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading matrix line %d: %w", line, err)
		}
		row := make([]float64, len(m.Columns))
		for j := range row {
			if row[j], err = strconv.ParseFloat(rec[j], 64); err != nil {
				return nil, nil, fmt.Errorf("line %d column %s: %w", line, m.Columns[j], err)
			}
		}
		target, err := strconv.ParseFloat(rec[len(rec)-1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d target: %w", line, err)
		}
		m.Rows = append(m.Rows, row)
		y = append(y, target)
	}
	return m, y, nil
}
