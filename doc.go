// Package fvq implements the numeric core of the FVQ lossy image codec.
//
// An image is decomposed into a multi-resolution pyramid by a 2x2
// orthonormal wavelet, optionally smoothed by a lattice of small
// rotations. The detail coefficients are quantized as (V,H,C) triplets
// onto a lattice, either a per-generation scaled grid through Quantizer
// or the brightness-adaptive shifted BCC tree digitizer, and packed
// into bounded integer alphabets ready for an entropy coder. Every
// stage has an exact inverse, so decompression is the same pipeline run
// backwards.
//
// Decomposing and reconstructing:
//
//	p, err := fvq.Decompose(img, fvq.DecomposeOptions{Generations: 5, Smooth: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := p.Reconstruct(nil)
//
// Quantizing the coefficients:
//
//	q, err := fvq.NewQuantizer(fvq.QuantizerOptions{Lattice: fvq.NewBCC(), CoordRange: 255})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	symbols, err := q.QuantizePyramid(p)
//
// Entropy coding of the resulting index grids, container formats and
// color handling are out of scope; the package deals in float64 planes
// and integer symbols only.
package fvq
