package fvq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// A CoordMap is an invertible map on coefficient vectors. The quantizer
// scales every coefficient triplet through one before searching the
// lattice and back through Inverse when reconstructing, so
// Inverse(Forward(x)) = x is the contract; the maps built here guarantee
// it, custom implementations must. dst and src have length Dim() and must
// not overlap. Implementations must be safe for concurrent use.
type CoordMap interface {
	Dim() int
	Forward(dst, src []float64)
	Inverse(dst, src []float64)
}

// A ScaleModel supplies the coefficient map for each generation. How the
// factors are chosen (perceptual weighting, gamma, flat) is the caller's
// business.
type ScaleModel func(gen int) CoordMap

// FlatModel applies the same map to every generation.
func FlatModel(m CoordMap) ScaleModel {
	return func(int) CoordMap { return m }
}

type diagonal struct {
	factors []float64
	inverse []float64
}

// Diagonal returns the map that multiplies coordinate i by factors[i].
// Zero or non-finite factors are not invertible.
func Diagonal(factors ...float64) (CoordMap, error) {
	if len(factors) == 0 {
		return nil, fmt.Errorf("diagonal map: no factors: %w", ErrInvalidScale)
	}
	d := &diagonal{
		factors: append([]float64(nil), factors...),
		inverse: make([]float64, len(factors)),
	}
	for i, f := range factors {
		if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("diagonal map: factor %d is %v: %w", i, f, ErrInvalidScale)
		}
		d.inverse[i] = 1 / f
	}
	return d, nil
}

// Identity returns the identity map of the given dimension.
func Identity(dim int) CoordMap {
	d := &diagonal{
		factors: make([]float64, dim),
		inverse: make([]float64, dim),
	}
	for i := range dim {
		d.factors[i] = 1
		d.inverse[i] = 1
	}
	return d
}

func (d *diagonal) Dim() int { return len(d.factors) }

func (d *diagonal) Forward(dst, src []float64) {
	for i, f := range d.factors {
		dst[i] = f * src[i]
	}
}

func (d *diagonal) Inverse(dst, src []float64) {
	for i, f := range d.inverse {
		dst[i] = f * src[i]
	}
}

type linear struct {
	dim int
	fwd []float64 // row-major
	inv []float64
}

// NewLinear returns the general linear map given by the square matrix m.
// The inverse is computed once up front; a singular or ill-conditioned
// matrix is a configuration error.
func NewLinear(m *mat.Dense) (CoordMap, error) {
	r, c := m.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("linear map: %dx%d matrix is not square: %w", r, c, ErrInvalidScale)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("linear map: %v: %w", err, ErrInvalidScale)
	}

	l := &linear{
		dim: r,
		fwd: make([]float64, r*r),
		inv: make([]float64, r*r),
	}
	for i := range r {
		for j := range r {
			l.fwd[i*r+j] = m.At(i, j)
			l.inv[i*r+j] = inv.At(i, j)
		}
	}
	return l, nil
}

func (l *linear) Dim() int { return l.dim }

func (l *linear) Forward(dst, src []float64) {
	apply(l.fwd, dst, src, l.dim)
}

func (l *linear) Inverse(dst, src []float64) {
	apply(l.inv, dst, src, l.dim)
}

func apply(m, dst, src []float64, dim int) {
	for i := range dim {
		row := m[i*dim : (i+1)*dim]
		var sum float64
		for j, w := range row {
			sum += w * src[j]
		}
		dst[i] = sum
	}
}
