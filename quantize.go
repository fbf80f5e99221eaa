package fvq

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// QuantizerOptions configures a Quantizer.
type QuantizerOptions struct {
	// Lattice is the quantization grid, dimension 3 to match the three
	// detail bands. Required.
	Lattice Lattice

	// Scale maps each generation's coefficient triplets into the space
	// the lattice lives in. Nil means unscaled at every generation.
	Scale ScaleModel

	// CoordRange bounds the lattice coordinates the codec can represent.
	// Scaled coefficients quantizing outside it are reported as range
	// errors, never clamped.
	CoordRange int

	// Pool, when set, distributes rows across its workers.
	Pool *workerpool.Pool
}

// A Quantizer maps pyramid coefficient grids to integer index grids and
// back. The forward direction scales each (V,H,C) triplet, snaps it to
// the nearest lattice point and encodes the point; the inverse decodes,
// expands and unscales. Methods are safe for concurrent use.
type Quantizer struct {
	lat   Lattice
	scale ScaleModel
	codec *Codec
	pool  *workerpool.Pool
}

// NewQuantizer returns a Quantizer for the given lattice and scale model.
func NewQuantizer(opts QuantizerOptions) (*Quantizer, error) {
	if opts.Lattice == nil {
		return nil, fmt.Errorf("quantizer: no lattice: %w", ErrInvalidLattice)
	}
	if d := opts.Lattice.Dim(); d != 3 {
		return nil, fmt.Errorf("quantizer: lattice dimension %d, coefficient space has 3: %w",
			d, ErrDimensionMismatch)
	}
	codec, err := NewCodec(opts.Lattice, opts.CoordRange)
	if err != nil {
		return nil, fmt.Errorf("quantizer: %w", err)
	}
	scale := opts.Scale
	if scale == nil {
		scale = FlatModel(Identity(3))
	}
	return &Quantizer{lat: opts.Lattice, scale: scale, codec: codec, pool: opts.Pool}, nil
}

// Codec returns the index codec, whose coset count, coordinate range and
// alphabet size describe the symbol stream to the entropy coder.
func (q *Quantizer) Codec() *Codec { return q.codec }

// An IndexGrid is one generation's quantized coefficients: one codec
// index per tile.
type IndexGrid struct {
	// Generation is the pyramid level the grid came from.
	Generation int

	// Indices holds the codec index of each tile's (V,H,C) triplet.
	Indices *image.Image[int64]

	// SquaredError is the total squared quantization error across the
	// grid, measured in the scaled space the lattice quantizes.
	SquaredError float64
}

// scaleMap resolves and checks the coordinate map for one generation.
func (q *Quantizer) scaleMap(gen int) (CoordMap, error) {
	m := q.scale(gen)
	if m == nil {
		return nil, fmt.Errorf("quantizer: generation %d has no coordinate map: %w", gen, ErrInvalidScale)
	}
	if d := m.Dim(); d != 3 {
		return nil, fmt.Errorf("quantizer: generation %d map has dimension %d, want 3: %w",
			gen, d, ErrDimensionMismatch)
	}
	return m, nil
}

// QuantizeGeneration quantizes one generation's coefficient grid.
// Coefficients whose scaled lattice point falls outside the codec's
// coordinate range fail with the generation and tile position attached.
func (q *Quantizer) QuantizeGeneration(gen int, g Generation) (*IndexGrid, error) {
	w, h := g.Width(), g.Height()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("quantize generation %d: %w", gen, ErrEmptyImage)
	}
	m, err := q.scaleMap(gen)
	if err != nil {
		return nil, err
	}

	grid := &IndexGrid{Generation: gen, Indices: image.NewImage[int64](w, h)}
	rowErr := make([]float64, h)
	errs := make([]error, h)
	forLines(q.pool, h, func(start, end int) {
		src := make([]float64, 3)
		dst := make([]float64, 3)
		for y := start; y < end; y++ {
			vs := g.Plane(BandV).RowSlice(y)
			hs := g.Plane(BandH).RowSlice(y)
			cs := g.Plane(BandC).RowSlice(y)
			out := grid.Indices.RowSlice(y)
			for x := range w {
				src[0], src[1], src[2] = vs[x], hs[x], cs[x]
				m.Forward(dst, src)
				p, d := q.lat.Nearest(dst)
				idx, err := q.codec.Encode(p)
				if err != nil {
					errs[y] = fmt.Errorf("quantize generation %d, tile (%d,%d): %w", gen, x, y, err)
					return
				}
				out[x] = idx
				rowErr[y] += d
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	// Summing per-row totals in row order keeps the result independent
	// of the worker schedule.
	for _, e := range rowErr {
		grid.SquaredError += e
	}
	return grid, nil
}

// DequantizeGeneration rebuilds a generation's coefficient planes from
// an index grid: decode, expand to the scaled space, unscale.
func (q *Quantizer) DequantizeGeneration(grid *IndexGrid) (Generation, error) {
	if grid == nil || grid.Indices == nil {
		return Generation{}, fmt.Errorf("dequantize: no index grid: %w", ErrEmptyImage)
	}
	gen := grid.Generation
	w, h := grid.Indices.Width(), grid.Indices.Height()
	if w == 0 || h == 0 {
		return Generation{}, fmt.Errorf("dequantize generation %d: %w", gen, ErrEmptyImage)
	}
	m, err := q.scaleMap(gen)
	if err != nil {
		return Generation{}, err
	}

	g := newGeneration(w, h)
	errs := make([]error, h)
	forLines(q.pool, h, func(start, end int) {
		coord := make([]int32, 3)
		vec := make([]float64, 3)
		dst := make([]float64, 3)
		for y := start; y < end; y++ {
			in := grid.Indices.RowSlice(y)
			vs := g.Plane(BandV).RowSlice(y)
			hs := g.Plane(BandH).RowSlice(y)
			cs := g.Plane(BandC).RowSlice(y)
			for x := range w {
				coset, err := q.codec.decodeInto(in[x], coord)
				if err != nil {
					errs[y] = fmt.Errorf("dequantize generation %d, tile (%d,%d): %w", gen, x, y, err)
					return
				}
				q.lat.Expand(vec, Point{Coset: coset, Coord: coord})
				m.Inverse(dst, vec)
				vs[x], hs[x], cs[x] = dst[0], dst[1], dst[2]
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return Generation{}, err
		}
	}
	return g, nil
}

// A Quantized is the codec-side form of a pyramid: the base plane plus
// one index grid per generation, finest first like Pyramid.Generations.
type Quantized struct {
	Low    *image.Image[float64]
	Grids  []*IndexGrid
	Smooth bool
}

// QuantizePyramid quantizes every generation of p. The returned value
// carries a copy of the base plane, so later reconstruction cannot
// disturb p.
func (q *Quantizer) QuantizePyramid(p *Pyramid) (*Quantized, error) {
	if p == nil || p.Low == nil || p.Low.Width() == 0 || p.Low.Height() == 0 {
		return nil, fmt.Errorf("quantize pyramid: %w", ErrEmptyImage)
	}
	qz := &Quantized{
		Low:    p.Low.Clone(),
		Grids:  make([]*IndexGrid, len(p.Generations)),
		Smooth: p.Smooth,
	}
	for gen, g := range p.Generations {
		grid, err := q.QuantizeGeneration(gen, g)
		if err != nil {
			return nil, err
		}
		qz.Grids[gen] = grid
	}
	return qz, nil
}

// SquaredError returns the total squared quantization error across all
// generations.
func (qz *Quantized) SquaredError() float64 {
	var sum float64
	for _, g := range qz.Grids {
		sum += g.SquaredError
	}
	return sum
}

// DequantizePyramid rebuilds a Pyramid from quantized form. The result
// owns its planes and is ready for Reconstruct.
func (q *Quantizer) DequantizePyramid(qz *Quantized) (*Pyramid, error) {
	if qz == nil || qz.Low == nil || qz.Low.Width() == 0 || qz.Low.Height() == 0 {
		return nil, fmt.Errorf("dequantize pyramid: %w", ErrEmptyImage)
	}
	p := &Pyramid{
		Low:         qz.Low.Clone(),
		Generations: make([]Generation, len(qz.Grids)),
		Smooth:      qz.Smooth,
	}
	for i, grid := range qz.Grids {
		g, err := q.DequantizeGeneration(grid)
		if err != nil {
			return nil, err
		}
		p.Generations[i] = g
	}
	return p, nil
}
