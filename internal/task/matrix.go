package task

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var IncompatibleDimensionsErr = errors.New("incompatible matrix dimensions for multiplication")

// MatrixParams is the payload of matrix_multiply.
type MatrixParams struct {
	A [][]float64
	B [][]float64
}

func (p MatrixParams) Complexity() Complexity {
	return Complexity{MatrixOrder: len(p.A)}
}

// MultiplyLocally computes A x B in process.
func MultiplyLocally(_ context.Context, p Params) (Output, error) {
	mp, ok := p.(MatrixParams)
	if !ok {
		return Output{}, fmt.Errorf("%w: expected matrices, got %T", InvalidParamsErr, p)
	}
	product, err := Multiply(mp.A, mp.B)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: product}, nil
}

// Multiply returns the product of two row-major matrices.
func Multiply(a, b [][]float64) ([][]float64, error) {
	ra, ca, err := dims(a)
	if err != nil {
		return nil, err
	}
	rb, cb, err := dims(b)
	if err != nil {
		return nil, err
	}
	if ca != rb {
		return nil, fmt.Errorf("%w: %dx%d * %dx%d", IncompatibleDimensionsErr, ra, ca, rb, cb)
	}

	var prod mat.Dense
	prod.Mul(toDense(a, ra, ca), toDense(b, rb, cb))

	out := make([][]float64, ra)
	for i := 0; i < ra; i++ {
		out[i] = make([]float64, cb)
		copy(out[i], prod.RawRowView(i))
	}
	return out, nil
}

func dims(m [][]float64) (int, int, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return 0, 0, fmt.Errorf("%w: empty matrix", IncompatibleDimensionsErr)
	}
	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return 0, 0, fmt.Errorf("%w: row %d has %d columns, expected %d", IncompatibleDimensionsErr, i, len(row), cols)
		}
	}
	return len(m), cols, nil
}

func toDense(m [][]float64, rows, cols int) *mat.Dense {
	data := make([]float64, 0, rows*cols)
	for _, row := range m {
		data = append(data, row...)
	}
	return mat.NewDense(rows, cols, data)
}
