package fvq

import (
	"github.com/ajroetker/go-highway/hwy"
)

// A Tile is a 2x2 block of samples from one channel, in row-major order:
// S00 S01 on the top row, S10 S11 below.
type Tile struct {
	S00, S01, S10, S11 float64
}

// Coeffs holds the wavelet re-expression of a Tile: one low-pass value and
// three detail coefficients. V responds to intensity varying down the tile,
// H to intensity varying across it, and C to the diagonal checker pattern.
type Coeffs struct {
	Low, V, H, C float64
}

// Transform computes the 2x2 orthonormal wavelet basis:
//
//	Low = ( S00+S01+S10+S11)/2
//	V   = ( S00+S01-S10-S11)/2
//	H   = ( S00-S01+S10-S11)/2
//	C   = ( S00-S01-S10+S11)/2
//
// The matrix is symmetric orthogonal, so the map is its own inverse and
// preserves the sum of squares of the four values.
func (t Tile) Transform() Coeffs {
	a := 0.5 * t.S00
	b := 0.5 * t.S01
	c := 0.5 * t.S10
	d := 0.5 * t.S11
	return Coeffs{
		Low: (a + b) + (c + d),
		V:   (a + b) - (c + d),
		H:   (a - b) + (c - d),
		C:   (a - b) - (c - d),
	}
}

// Invert applies the same butterfly to (Low, V, H, C), reconstructing the
// original four samples exactly (up to float64 rounding).
func (c Coeffs) Invert() Tile {
	a := 0.5 * c.Low
	b := 0.5 * c.V
	cc := 0.5 * c.H
	d := 0.5 * c.C
	return Tile{
		S00: (a + b) + (cc + d),
		S01: (a + b) - (cc + d),
		S10: (a - b) + (cc - d),
		S11: (a - b) - (cc - d),
	}
}

// haarButterfly runs the self-inverse 2x2 basis over n parallel tiles.
//
// Forward direction: p,q,r,s are the deinterleaved samples of one tile row
// (top-even, top-odd, bottom-even, bottom-odd) and w,x,y,z receive
// Low,V,H,C. Inverse direction: feed Low,V,H,C and read back the four
// sample streams. Destinations must not alias the sources.
func haarButterfly(p, q, r, s, w, x, y, z []float64, n int) {
	half := hwy.Set(0.5)
	lanes := hwy.MaxLanes[float64]()
	i := 0
	for ; i+lanes <= n; i += lanes {
		a := hwy.Mul(hwy.Load(p[i:]), half)
		b := hwy.Mul(hwy.Load(q[i:]), half)
		c := hwy.Mul(hwy.Load(r[i:]), half)
		d := hwy.Mul(hwy.Load(s[i:]), half)
		ab := hwy.Add(a, b)
		amb := hwy.Sub(a, b)
		cd := hwy.Add(c, d)
		cmd := hwy.Sub(c, d)
		hwy.Store(hwy.Add(ab, cd), w[i:])
		hwy.Store(hwy.Sub(ab, cd), x[i:])
		hwy.Store(hwy.Add(amb, cmd), y[i:])
		hwy.Store(hwy.Sub(amb, cmd), z[i:])
	}
	for ; i < n; i++ {
		a := 0.5 * p[i]
		b := 0.5 * q[i]
		c := 0.5 * r[i]
		d := 0.5 * s[i]
		w[i] = (a + b) + (c + d)
		x[i] = (a + b) - (c + d)
		y[i] = (a - b) + (c - d)
		z[i] = (a - b) - (c - d)
	}
}
