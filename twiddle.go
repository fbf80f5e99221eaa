package fvq

import (
	"github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// The smoothing pass rotates neighbouring quads into each other so that a
// coarse reconstruction fades across tile boundaries instead of stepping.
// Each line of quads is treated as a ring, lows in order followed by the
// highs reversed, and adjacent ring elements are rotated by 1/16 radian in
// four offset passes. Mixing is orthonormal and exactly invertible.
const (
	twiddleCos = 0.9980475107000991 // cos(1/16)
	twiddleSin = 0.0624593178423802 // sin(1/16)
)

// twiddleLine runs the four rotation passes over one line of n quads,
// n >= 1. lo[i] and hi[i] are the two band values of quad i along the
// mixing axis. Negating sin inverts the line exactly.
func twiddleLine(lo, hi []float64, n int, sin float64) {
	const cos = twiddleCos
	rotLow := func(x, y int) {
		oldX, oldY := lo[x], hi[y]
		lo[x] = cos*oldX + sin*oldY
		hi[y] = cos*oldY - sin*oldX
	}
	rotHigh := func(x, y int) {
		oldX, oldY := hi[x], lo[y]
		hi[x] = cos*oldX + sin*oldY
		lo[y] = cos*oldY - sin*oldX
	}
	for _, start := range [...]int{0, 1, 1, 0} {
		i := start
		if i == 0 {
			rotLow(0, 0)
			i = 2
		}
		for ; i < n; i += 2 {
			rotLow(i-1, i)
			rotHigh(i-1, i)
		}
		if i == n {
			rotHigh(n-1, n-1)
		}
	}
}

// twiddleGrid smooths the four coefficient planes of one generation in
// place. Down each column it mixes Low with V and H with C; along each row
// it mixes Low with H and V with C. The passes commute, so the inverse runs
// them in the same order with the angle negated.
func twiddleGrid(low, v, h, c *image.Image[float64], inverse bool, pool *workerpool.Pool) {
	sin := twiddleSin
	if inverse {
		sin = -sin
	}
	width := low.Width()
	height := low.Height()

	forLines(pool, width, func(start, end int) {
		buf := getQuadBuf(height)
		defer putQuadBuf(buf)
		for x := start; x < end; x++ {
			for y := range height {
				buf.a[y] = low.At(x, y)
				buf.b[y] = v.At(x, y)
				buf.c[y] = h.At(x, y)
				buf.d[y] = c.At(x, y)
			}
			twiddleLine(buf.a, buf.b, height, sin)
			twiddleLine(buf.c, buf.d, height, sin)
			for y := range height {
				low.Set(x, y, buf.a[y])
				v.Set(x, y, buf.b[y])
				h.Set(x, y, buf.c[y])
				c.Set(x, y, buf.d[y])
			}
		}
	})

	forLines(pool, height, func(start, end int) {
		for y := start; y < end; y++ {
			twiddleLine(low.RowSlice(y), h.RowSlice(y), width, sin)
			twiddleLine(v.RowSlice(y), c.RowSlice(y), width, sin)
		}
	})
}
