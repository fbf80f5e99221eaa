package fvq

import (
	"fmt"
	"math"
)

// A Step function picks the quantization step for one tile's detail
// coefficients from the tile's low-pass value. Perceptual models plug
// in here: a step tracking the smallest visible difference at that
// brightness spends precision where the eye can use it. Steps must be
// positive and finite for every low value the pyramid can produce.
type Step func(low float64) float64

// FlatStep returns a Step that quantizes uniformly, ignoring brightness.
func FlatStep(step float64) Step {
	return func(float64) float64 { return step }
}

// Digitize quantizes a coefficient tree onto the shifted BCC grid.
//
// Each node's triplet is divided by the step chosen for the node,
// snapped to the grid, and the four child low values are rebuilt from
// the quantized coefficients before recursing, so the decoder derives
// the same lows and quantization error cannot compound. A subtree whose
// coefficients cost less to zero outright than to keep quantized is
// pruned to a blank leaf.
//
// low is the tile's low-pass value and order the tree's height. The
// root's step is chosen from low*0.5^order and the factor doubles at
// each level down, undoing the gain the repeated tile transform applies.
func Digitize(order int, low float64, t *Branch[VHC], step Step) (*Branch[ShiftedBCC], error) {
	if order < 0 {
		return nil, fmt.Errorf("digitize: order %d: %w", order, ErrInvalidGenerations)
	}
	if step == nil {
		return nil, fmt.Errorf("digitize: no step function: %w", ErrInvalidScale)
	}
	digital, _, _ := digitizeNode(low, t, math.Ldexp(1, -order), step)
	return digital, nil
}

// digitizeNode returns the digital subtree, its accumulated quantization
// error and the raw norm of the analogue subtree. Errors are measured in
// step units so they are comparable across levels.
func digitizeNode(low float64, t *Branch[VHC], gain float64, step Step) (*Branch[ShiftedBCC], float64, float64) {
	if t == nil {
		return nil, 0, 0
	}
	tol := step(low * gain)
	sens := 1 / tol
	v, h, c := t.Payload.V, t.Payload.H, t.Payload.C
	leafNorm := v*v + h*h + c*c

	q, branchErr := QuantizeBCC(sens*v, sens*h, sens*c)
	tile := Coeffs{Low: low, V: tol * q.V(), H: tol * q.H(), C: tol * q.C()}.Invert()

	digital := &Branch[ShiftedBCC]{Payload: q}
	for i, childLow := range [4]float64{tile.S00, tile.S01, tile.S10, tile.S11} {
		child, childErr, childNorm := digitizeNode(childLow, t.Children[i], 2*gain, step)
		digital.Children[i] = child
		branchErr += childErr
		leafNorm += childNorm
	}

	if leafErr := leafNorm * sens * sens; leafErr < branchErr {
		return nil, leafErr, leafNorm
	}
	return digital, branchErr, leafNorm
}

// FromDigital rebuilds the analogue tree a digital tree encodes: each
// node's grid point is multiplied by its step and the child lows are
// derived exactly as Digitize derived them. Digitizing the result with
// the same step function returns the identical digital tree.
func FromDigital(order int, low float64, t *Branch[ShiftedBCC], step Step) (*Branch[VHC], error) {
	if order < 0 {
		return nil, fmt.Errorf("undigitize: order %d: %w", order, ErrInvalidGenerations)
	}
	if step == nil {
		return nil, fmt.Errorf("undigitize: no step function: %w", ErrInvalidScale)
	}
	return undigitizeNode(low, t, math.Ldexp(1, -order), step), nil
}

func undigitizeNode(low float64, t *Branch[ShiftedBCC], gain float64, step Step) *Branch[VHC] {
	if t == nil {
		return nil
	}
	tol := step(low * gain)
	v, h, c := tol*t.Payload.V(), tol*t.Payload.H(), tol*t.Payload.C()
	tile := Coeffs{Low: low, V: v, H: h, C: c}.Invert()

	analogue := &Branch[VHC]{Payload: VHC{V: v, H: h, C: c}}
	for i, childLow := range [4]float64{tile.S00, tile.S01, tile.S10, tile.S11} {
		analogue.Children[i] = undigitizeNode(childLow, t.Children[i], 2*gain, step)
	}
	return analogue
}

// DigitizePyramid digitizes the coefficient tree under every base cell,
// row-major over the coarsest generation. p itself is unchanged.
func DigitizePyramid(p *Pyramid, step Step) ([]*Branch[ShiftedBCC], error) {
	if p == nil || p.Low == nil || p.Low.Width() == 0 || p.Low.Height() == 0 {
		return nil, fmt.Errorf("digitize pyramid: %w", ErrEmptyImage)
	}
	if step == nil {
		return nil, fmt.Errorf("digitize pyramid: no step function: %w", ErrInvalidScale)
	}
	order := p.Order()
	w, h := p.Low.Width(), p.Low.Height()
	trees := make([]*Branch[ShiftedBCC], 0, w*h)
	for y := range h {
		row := p.Low.RowSlice(y)
		for x := range w {
			digital, err := Digitize(order, row[x], p.Tree(y, x), step)
			if err != nil {
				return nil, err
			}
			trees = append(trees, digital)
		}
	}
	return trees, nil
}

// UndigitizePyramid rebuilds each base cell's analogue tree and writes
// it into p's detail planes, zeroing everything under pruned subtrees.
// Chaining it after DigitizePyramid leaves p carrying exactly the
// coefficients a decoder would see.
func UndigitizePyramid(p *Pyramid, trees []*Branch[ShiftedBCC], step Step) error {
	if p == nil || p.Low == nil || p.Low.Width() == 0 || p.Low.Height() == 0 {
		return fmt.Errorf("undigitize pyramid: %w", ErrEmptyImage)
	}
	if step == nil {
		return fmt.Errorf("undigitize pyramid: no step function: %w", ErrInvalidScale)
	}
	w, h := p.Low.Width(), p.Low.Height()
	if len(trees) != w*h {
		return fmt.Errorf("undigitize pyramid: %d trees for %dx%d base cells: %w",
			len(trees), w, h, ErrDimensionMismatch)
	}
	order := p.Order()
	for y := range h {
		row := p.Low.RowSlice(y)
		for x := range w {
			analogue, err := FromDigital(order, row[x], trees[y*w+x], step)
			if err != nil {
				return err
			}
			p.SetTree(y, x, analogue)
		}
	}
	return nil
}
