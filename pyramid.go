package fvq

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/wavelet"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// Band indexes the three detail planes of a generation.
type Band int

const (
	BandV Band = iota // intensity varying down the tile
	BandH             // intensity varying across the tile
	BandC             // diagonal checker pattern
)

// A Generation holds the three detail planes produced by one halving step.
// Generation g of an H x W image has planes of size (H>>(g+1)) x (W>>(g+1)).
type Generation struct {
	bands *image.Image3[float64]
}

func newGeneration(width, height int) Generation {
	return Generation{bands: image.NewImage3[float64](width, height)}
}

// Plane returns the detail plane for one band.
func (g Generation) Plane(b Band) *image.Image[float64] {
	return g.bands.Plane(int(b))
}

// Width returns the plane width in coefficients.
func (g Generation) Width() int { return g.bands.Width() }

// Height returns the plane height in coefficients.
func (g Generation) Height() int { return g.bands.Height() }

// At reads the coefficient triplet of the quad at (x, y).
func (g Generation) At(x, y int) (v, h, c float64) {
	return g.bands.Plane(0).At(x, y), g.bands.Plane(1).At(x, y), g.bands.Plane(2).At(x, y)
}

// Set writes the coefficient triplet of the quad at (x, y).
func (g Generation) Set(x, y int, v, h, c float64) {
	g.bands.Plane(0).Set(x, y, v)
	g.bands.Plane(1).Set(x, y, h)
	g.bands.Plane(2).Set(x, y, c)
}

// A Pyramid is the multi-resolution decomposition of one channel: the
// residual low-pass plane plus the detail generations, finest first.
// Reconstruct and Montage leave the pyramid unchanged; SetTree is the one
// sanctioned writer. A Pyramid never aliases the image it was built from.
type Pyramid struct {
	// Low is the low-pass plane left after the last generation.
	Low *image.Image[float64]
	// Generations are ordered finest first; index 0 was produced from the
	// full-resolution image.
	Generations []Generation
	// Smooth records whether the decorrelating pass was applied, so the
	// inverse direction can mirror it.
	Smooth bool
}

// Order returns the number of generations.
func (p *Pyramid) Order() int { return len(p.Generations) }

// DecomposeOptions configures Decompose. The zero value decomposes as far
// as the image dimensions allow, without smoothing, on the calling
// goroutine.
type DecomposeOptions struct {
	// Generations caps how many halving steps run. Zero means as many as
	// the dimensions allow; negative is a configuration error.
	Generations int

	// Smooth applies the decorrelating rotation pass after each step.
	Smooth bool

	// Stop, when non-nil, is consulted before each step with the index of
	// the generation about to be produced and the current low plane.
	// Returning true stops the decomposition early; the plane must not be
	// modified or retained.
	Stop func(gen int, low *image.Image[float64]) bool

	// Pool, when non-nil, runs row work within each step in parallel.
	Pool *workerpool.Pool
}

// Decompose splits img into a Pyramid. Each step partitions the current
// low plane into 2x2 tiles, transforms them, and splits the results into
// the next low plane and one Generation. Steps run until the configured
// count is reached, a dimension can no longer be halved, or Stop says so.
// The input image is never modified.
func Decompose(img *image.Image[float64], opts DecomposeOptions) (*Pyramid, error) {
	if img == nil || img.Width() == 0 || img.Height() == 0 {
		return nil, fmt.Errorf("decompose: %w", ErrEmptyImage)
	}
	if opts.Generations < 0 {
		return nil, fmt.Errorf("decompose: %d generations: %w", opts.Generations, ErrInvalidGenerations)
	}

	low := img
	var gens []Generation
	for opts.Generations == 0 || len(gens) < opts.Generations {
		if low.Width()%2 != 0 || low.Height()%2 != 0 {
			break
		}
		if opts.Stop != nil && opts.Stop(len(gens), low) {
			break
		}
		next, gen := decomposeStep(low, opts.Smooth, opts.Pool)
		gens = append(gens, gen)
		low = next
	}
	if len(gens) == 0 {
		low = img.Clone()
	}
	return &Pyramid{Low: low, Generations: gens, Smooth: opts.Smooth}, nil
}

// decomposeStep runs one halving step over src, whose dimensions are even.
func decomposeStep(src *image.Image[float64], smooth bool, pool *workerpool.Pool) (*image.Image[float64], Generation) {
	w := src.Width() / 2
	h := src.Height() / 2
	low := image.NewImage[float64](w, h)
	gen := newGeneration(w, h)

	forLines(pool, h, func(start, end int) {
		buf := getQuadBuf(w)
		defer putQuadBuf(buf)
		for y := start; y < end; y++ {
			wavelet.Deinterleave(src.RowSlice(2*y), buf.a, w, buf.b, w, 0)
			wavelet.Deinterleave(src.RowSlice(2*y+1), buf.c, w, buf.d, w, 0)
			haarButterfly(buf.a, buf.b, buf.c, buf.d,
				low.RowSlice(y),
				gen.bands.PlaneRow(0, y),
				gen.bands.PlaneRow(1, y),
				gen.bands.PlaneRow(2, y),
				w)
		}
	})

	if smooth {
		twiddleGrid(low, gen.Plane(BandV), gen.Plane(BandH), gen.Plane(BandC), false, pool)
	}
	return low, gen
}

// Reconstruct runs the exact inverse of Decompose, coarsest generation
// first, and returns the rebuilt image. The round trip is exact up to
// float64 rounding. pool may be nil.
func (p *Pyramid) Reconstruct(pool *workerpool.Pool) (*image.Image[float64], error) {
	if p.Low == nil || p.Low.Width() == 0 || p.Low.Height() == 0 {
		return nil, fmt.Errorf("reconstruct: %w", ErrEmptyImage)
	}
	if len(p.Generations) == 0 {
		return p.Low.Clone(), nil
	}

	low := p.Low
	owned := false
	for gi := len(p.Generations) - 1; gi >= 0; gi-- {
		gen := p.Generations[gi]
		if gen.Width() != low.Width() || gen.Height() != low.Height() {
			return nil, fmt.Errorf("reconstruct: generation %d is %dx%d, low plane is %dx%d: %w",
				gi, gen.Width(), gen.Height(), low.Width(), low.Height(), ErrDimensionMismatch)
		}
		low = reconstructStep(low, gen, p.Smooth, pool, owned)
		owned = true
	}
	return low, nil
}

// reconstructStep doubles low by one generation. ownedLow reports whether
// low is a scratch plane this call may modify; the generation's planes are
// never modified.
func reconstructStep(low *image.Image[float64], gen Generation, smooth bool, pool *workerpool.Pool, ownedLow bool) *image.Image[float64] {
	w := low.Width()
	h := low.Height()
	v := gen.Plane(BandV)
	hb := gen.Plane(BandH)
	c := gen.Plane(BandC)

	if smooth {
		if !ownedLow {
			low = low.Clone()
		}
		v, hb, c = v.Clone(), hb.Clone(), c.Clone()
		twiddleGrid(low, v, hb, c, true, pool)
	}

	dst := image.NewImage[float64](2*w, 2*h)
	forLines(pool, h, func(start, end int) {
		buf := getQuadBuf(w)
		defer putQuadBuf(buf)
		for y := start; y < end; y++ {
			haarButterfly(low.RowSlice(y), v.RowSlice(y), hb.RowSlice(y), c.RowSlice(y),
				buf.a, buf.b, buf.c, buf.d, w)
			wavelet.Interleave(dst.RowSlice(2*y), buf.a, w, buf.b, w, 0)
			wavelet.Interleave(dst.RowSlice(2*y+1), buf.c, w, buf.d, w, 0)
		}
	})
	return dst
}

// Montage renders the classic subband mosaic for inspection: the low plane
// in the top-left corner and each generation's detail planes, offset by
// +0.5 so zero is mid-grey, in the other three quadrants. The smoothing
// pass is not undone; the mosaic shows the planes as stored.
func (p *Pyramid) Montage() *image.Image[float64] {
	if len(p.Generations) == 0 {
		return p.Low.Clone()
	}
	low := p.Low
	for gi := len(p.Generations) - 1; gi >= 0; gi-- {
		gen := p.Generations[gi]
		w, h := gen.Width(), gen.Height()
		dst := image.NewImage[float64](2*w, 2*h)
		for y := range h {
			lowRow := low.RowSlice(y)
			vRow := gen.Plane(BandV).RowSlice(y)
			hRow := gen.Plane(BandH).RowSlice(y)
			cRow := gen.Plane(BandC).RowSlice(y)

			top := dst.RowSlice(y)
			copy(top[:w], lowRow)
			for x := range w {
				top[w+x] = hRow[x] + 0.5
			}
			bottom := dst.RowSlice(h + y)
			for x := range w {
				bottom[x] = vRow[x] + 0.5
				bottom[w+x] = cRow[x] + 0.5
			}
		}
		low = dst
	}
	return low
}
