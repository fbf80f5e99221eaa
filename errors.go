package fvq

import "errors"

// Configuration errors: the caller asked for something the core cannot set
// up. Reported before any transform or quantization work starts.
var (
	ErrEmptyImage         = errors.New("fvq: image has a zero dimension")
	ErrInvalidGenerations = errors.New("fvq: invalid generation count")
	ErrInvalidLattice     = errors.New("fvq: invalid lattice definition")
	ErrInvalidScale       = errors.New("fvq: coefficient scale is not invertible")
	ErrDimensionMismatch  = errors.New("fvq: vector dimension mismatch")
	ErrAlphabetOverflow   = errors.New("fvq: index alphabet exceeds int64 range")
)

// Range errors: a value is representable by the lattice but not by the
// configured codec. Reported, never clamped.
var (
	ErrCoordinateRange = errors.New("fvq: coordinate outside codec range")
)

// Invariant errors: the core caught itself producing a point outside the
// claimed lattice. Always a bug.
var (
	ErrNotLatticePoint = errors.New("fvq: not a lattice point")
)
