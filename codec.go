package fvq

import (
	"fmt"
	"math"
)

// A Codec packs the lattice points within a bounded coordinate range into
// a dense integer alphabet for the entropy coder. Indices run coset-major:
// index = ((coset*side + c0+R)*side + c1+R)*side + ..., side = 2R+1. The
// packing is a bijection, so encode and decode are exact inverses and
// distinct points never share an index.
type Codec struct {
	lat        Lattice
	coordRange int32
	side       int64
	alphabet   int64
}

// NewCodec returns a codec for points of lat whose coordinates all satisfy
// |coord| <= coordRange. The alphabet has Cosets * (2*coordRange+1)^Dim
// symbols and must fit an int64.
func NewCodec(lat Lattice, coordRange int) (*Codec, error) {
	if lat == nil {
		return nil, fmt.Errorf("codec: no lattice: %w", ErrInvalidLattice)
	}
	if coordRange < 0 {
		return nil, fmt.Errorf("codec: coordinate range %d is negative: %w", coordRange, ErrCoordinateRange)
	}
	if int64(coordRange) > math.MaxInt32 {
		return nil, fmt.Errorf("codec: coordinate range %d exceeds int32 coordinates: %w",
			coordRange, ErrAlphabetOverflow)
	}
	side := 2*int64(coordRange) + 1
	alphabet := int64(lat.Cosets())
	for range lat.Dim() {
		if alphabet > math.MaxInt64/side {
			return nil, fmt.Errorf("codec: %d cosets with %d coordinate values each: %w",
				lat.Cosets(), side, ErrAlphabetOverflow)
		}
		alphabet *= side
	}
	return &Codec{lat: lat, coordRange: int32(coordRange), side: side, alphabet: alphabet}, nil
}

// Cosets returns the coset count of the underlying lattice.
func (c *Codec) Cosets() int { return c.lat.Cosets() }

// CoordRange returns the configured coordinate bound R.
func (c *Codec) CoordRange() int { return int(c.coordRange) }

// Alphabet returns the number of distinct indices, Cosets * (2R+1)^Dim.
// Valid indices are [0, Alphabet).
func (c *Codec) Alphabet() int64 { return c.alphabet }

// Encode returns the index of p. Points with a coordinate outside
// [-R, R], a coset outside the lattice, or the wrong dimension are
// reported, never clamped.
func (c *Codec) Encode(p Point) (int64, error) {
	if len(p.Coord) != c.lat.Dim() {
		return 0, fmt.Errorf("codec: point has %d coordinates, lattice has %d: %w",
			len(p.Coord), c.lat.Dim(), ErrDimensionMismatch)
	}
	if p.Coset < 0 || p.Coset >= c.lat.Cosets() {
		return 0, fmt.Errorf("codec: coset %d outside [0,%d): %w", p.Coset, c.lat.Cosets(), ErrCoordinateRange)
	}
	idx := int64(p.Coset)
	for i, v := range p.Coord {
		if v < -c.coordRange || v > c.coordRange {
			return 0, fmt.Errorf("codec: coordinate %d is %d, range is %d: %w", i, v, c.coordRange, ErrCoordinateRange)
		}
		idx = idx*c.side + int64(v+c.coordRange)
	}
	return idx, nil
}

// Decode returns the point with the given index, the exact inverse of
// Encode. Indices outside [0, Alphabet) are an error.
func (c *Codec) Decode(idx int64) (Point, error) {
	coord := make([]int32, c.lat.Dim())
	coset, err := c.decodeInto(idx, coord)
	if err != nil {
		return Point{}, err
	}
	return Point{Coset: coset, Coord: coord}, nil
}

// decodeInto is Decode with caller-owned coordinate storage,
// len(coord) = Dim().
func (c *Codec) decodeInto(idx int64, coord []int32) (int, error) {
	if idx < 0 || idx >= c.alphabet {
		return 0, fmt.Errorf("codec: index %d outside [0,%d): %w", idx, c.alphabet, ErrCoordinateRange)
	}
	for i := len(coord) - 1; i >= 0; i-- {
		coord[i] = int32(idx%c.side) - c.coordRange
		idx /= c.side
	}
	return int(idx), nil
}

// Add returns the index of the lattice sum of the points at i and j.
// The sum can leave the configured coordinate range even when both
// operands are inside it; that is reported as a range error.
func (c *Codec) Add(i, j int64) (int64, error) {
	a, err := c.Decode(i)
	if err != nil {
		return 0, err
	}
	b, err := c.Decode(j)
	if err != nil {
		return 0, err
	}
	return c.Encode(c.lat.Add(a, b))
}

// Sub returns the index of the lattice difference of the points at i and j.
func (c *Codec) Sub(i, j int64) (int64, error) {
	a, err := c.Decode(i)
	if err != nil {
		return 0, err
	}
	b, err := c.Decode(j)
	if err != nil {
		return 0, err
	}
	return c.Encode(c.lat.Sub(a, b))
}
