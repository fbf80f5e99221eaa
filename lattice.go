package fvq

import (
	"fmt"
	"math"
)

// A Point identifies one lattice point: the coset it lies in and the
// integer coordinates of its sublattice vector. The real-space position
// comes from Lattice.Expand; distinct points of one lattice always expand
// to distinct vectors.
type Point struct {
	Coset int
	Coord []int32
}

// Clone returns a copy whose Coord does not alias p's.
func (p Point) Clone() Point {
	return Point{Coset: p.Coset, Coord: append([]int32(nil), p.Coord...)}
}

// A Lattice is a discrete point set with a coset structure: the union of
// Cosets translates of a scaled integer sublattice, closed under addition
// and subtraction.
type Lattice interface {
	// Dim is the dimension of the ambient space.
	Dim() int

	// Cosets is the number of cosets; Point.Coset ranges over [0, Cosets()).
	Cosets() int

	// Nearest returns the closest lattice point to x, len(x) = Dim(), and
	// the squared distance to it. An exact tie goes to the lowest coset,
	// then to the lexicographically smallest coordinate vector.
	Nearest(x []float64) (Point, float64)

	// Expand writes the real-space vector of p into dst, len(dst) = Dim().
	Expand(dst []float64, p Point)

	// Add and Sub combine points; the result is again a lattice point.
	Add(a, b Point) Point
	Sub(a, b Point) Point
}

// nearestInt rounds to the closest integer, half-way cases toward minus
// infinity, so the winner of an exact tie is the smaller integer.
func nearestInt(v float64) float64 {
	return math.Ceil(v - 0.5)
}

// Product is the lattice of all integer multiples of a per-coordinate
// spacing. It has a single coset.
type Product struct {
	spacing []float64
}

// NewProduct returns the product lattice with the given spacings, one per
// coordinate. Spacings must be positive and finite.
func NewProduct(spacing ...float64) (*Product, error) {
	if len(spacing) == 0 {
		return nil, fmt.Errorf("product lattice: no spacings: %w", ErrInvalidLattice)
	}
	for i, s := range spacing {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("product lattice: spacing %d is %v: %w", i, s, ErrInvalidLattice)
		}
	}
	return &Product{spacing: append([]float64(nil), spacing...)}, nil
}

func (l *Product) Dim() int    { return len(l.spacing) }
func (l *Product) Cosets() int { return 1 }

func (l *Product) Nearest(x []float64) (Point, float64) {
	coord := make([]int32, len(l.spacing))
	var dist float64
	for i, s := range l.spacing {
		n := nearestInt(x[i] / s)
		coord[i] = int32(n)
		d := x[i] - n*s
		dist += d * d
	}
	return Point{Coord: coord}, dist
}

func (l *Product) Expand(dst []float64, p Point) {
	for i, s := range l.spacing {
		dst[i] = s * float64(p.Coord[i])
	}
}

func (l *Product) Add(a, b Point) Point {
	coord := make([]int32, len(l.spacing))
	for i := range coord {
		coord[i] = a.Coord[i] + b.Coord[i]
	}
	return Point{Coord: coord}
}

func (l *Product) Sub(a, b Point) Point {
	coord := make([]int32, len(l.spacing))
	for i := range coord {
		coord[i] = a.Coord[i] - b.Coord[i]
	}
	return Point{Coord: coord}
}

// glueEps is the tolerance for recognizing integer congruences between
// coset offsets.
const glueEps = 1e-9

// Glued is a union of cosets of a scaled integer sublattice: every point
// expands to spacing*(coord+offset[coset]). The offsets must start at zero
// and form a group modulo the sublattice; the constructor proves this and
// precomputes the composition tables Add and Sub run on.
type Glued struct {
	dim      int
	spacing  float64
	offsets  [][]float64
	addCoset [][]int
	addCarry [][][]int32
	negCoset []int
	negCarry [][]int32
}

// NewGlued returns the glued lattice with the given sublattice spacing and
// coset offsets, each in units of the spacing. The first offset must be
// the origin, no two offsets may coincide modulo the integer grid, and the
// offset set must be closed under addition and negation modulo the grid.
func NewGlued(spacing float64, offsets ...[]float64) (*Glued, error) {
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, fmt.Errorf("glued lattice: spacing %v: %w", spacing, ErrInvalidLattice)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("glued lattice: no cosets: %w", ErrInvalidLattice)
	}
	dim := len(offsets[0])
	if dim == 0 {
		return nil, fmt.Errorf("glued lattice: zero dimension: %w", ErrInvalidLattice)
	}
	for k, off := range offsets {
		if len(off) != dim {
			return nil, fmt.Errorf("glued lattice: offset %d has %d coordinates, want %d: %w",
				k, len(off), dim, ErrInvalidLattice)
		}
		for i, v := range off {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("glued lattice: offset %d coordinate %d is %v: %w",
					k, i, v, ErrInvalidLattice)
			}
		}
	}
	for _, v := range offsets[0] {
		if v != 0 {
			return nil, fmt.Errorf("glued lattice: first offset is not the origin: %w", ErrInvalidLattice)
		}
	}
	for j := range offsets {
		for k := j + 1; k < len(offsets); k++ {
			if _, ok := integerDelta(offsets[j], offsets[k]); ok {
				return nil, fmt.Errorf("glued lattice: cosets %d and %d coincide: %w", j, k, ErrInvalidLattice)
			}
		}
	}

	l := &Glued{dim: dim, spacing: spacing}
	l.offsets = make([][]float64, len(offsets))
	for k, off := range offsets {
		l.offsets[k] = append([]float64(nil), off...)
	}

	k := len(offsets)
	l.addCoset = make([][]int, k)
	l.addCarry = make([][][]int32, k)
	l.negCoset = make([]int, k)
	l.negCarry = make([][]int32, k)
	sum := make([]float64, dim)
	for a := range k {
		l.addCoset[a] = make([]int, k)
		l.addCarry[a] = make([][]int32, k)
		for b := range k {
			for i := range sum {
				sum[i] = offsets[a][i] + offsets[b][i]
			}
			coset, carry, ok := l.matchCoset(sum)
			if !ok {
				return nil, fmt.Errorf("glued lattice: cosets %d+%d leave the system: %w", a, b, ErrInvalidLattice)
			}
			l.addCoset[a][b] = coset
			l.addCarry[a][b] = carry
		}
	}
	for a := range k {
		for i := range sum {
			sum[i] = -offsets[a][i]
		}
		coset, carry, ok := l.matchCoset(sum)
		if !ok {
			return nil, fmt.Errorf("glued lattice: coset %d has no negative: %w", a, ErrInvalidLattice)
		}
		l.negCoset[a] = coset
		l.negCarry[a] = carry
	}
	return l, nil
}

// integerDelta reports whether a-b is an integer vector, and returns it.
func integerDelta(a, b []float64) ([]int32, bool) {
	delta := make([]int32, len(a))
	for i := range a {
		d := a[i] - b[i]
		r := math.Round(d)
		if math.Abs(d-r) > glueEps {
			return nil, false
		}
		delta[i] = int32(r)
	}
	return delta, true
}

// matchCoset finds the coset congruent to v modulo the integer grid.
func (l *Glued) matchCoset(v []float64) (int, []int32, bool) {
	for k, off := range l.offsets {
		if delta, ok := integerDelta(v, off); ok {
			return k, delta, true
		}
	}
	return 0, nil, false
}

// NewBCC returns the three-dimensional body-centred lattice: the unit
// integer grid glued with its half-shifted copy.
func NewBCC() *Glued {
	lat, err := NewGlued(1, []float64{0, 0, 0}, []float64{0.5, 0.5, 0.5})
	if err != nil {
		panic(err)
	}
	return lat
}

func (l *Glued) Dim() int    { return l.dim }
func (l *Glued) Cosets() int { return len(l.offsets) }

func (l *Glued) Nearest(x []float64) (Point, float64) {
	best := 0
	bestDist := math.Inf(1)
	for k, off := range l.offsets {
		var dist float64
		for i := range off {
			n := nearestInt(x[i]/l.spacing - off[i])
			d := x[i] - l.spacing*(n+off[i])
			dist += d * d
		}
		if dist < bestDist {
			best, bestDist = k, dist
		}
	}

	off := l.offsets[best]
	coord := make([]int32, l.dim)
	for i := range coord {
		coord[i] = int32(nearestInt(x[i]/l.spacing - off[i]))
	}
	return Point{Coset: best, Coord: coord}, bestDist
}

func (l *Glued) Expand(dst []float64, p Point) {
	off := l.offsets[p.Coset]
	for i := range off {
		dst[i] = l.spacing * (float64(p.Coord[i]) + off[i])
	}
}

func (l *Glued) Add(a, b Point) Point {
	carry := l.addCarry[a.Coset][b.Coset]
	coord := make([]int32, l.dim)
	for i := range coord {
		coord[i] = a.Coord[i] + b.Coord[i] + carry[i]
	}
	return Point{Coset: l.addCoset[a.Coset][b.Coset], Coord: coord}
}

func (l *Glued) Sub(a, b Point) Point {
	carry := l.negCarry[b.Coset]
	neg := Point{Coset: l.negCoset[b.Coset], Coord: make([]int32, l.dim)}
	for i := range neg.Coord {
		neg.Coord[i] = carry[i] - b.Coord[i]
	}
	return l.Add(a, neg)
}
