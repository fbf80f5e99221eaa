package fvq

import (
	"fmt"
	"math"
)

// A ShiftedBCC is a point of the production quantization grid for
// coefficient triplets: the body-centred cubic lattice, the optimal 3-D
// quantizer, oriented so its shortest vectors are (±1,±1,±1) and shifted
// so that (±1,0,½) and (0,±1,-½) are grid points. Those four are the
// nearest grid points to the origin; the origin itself is not on the grid,
// which is what lets Arrow halve points without ever stalling at zero.
//
// Storage is the integer triple (v-1, h, c-½). A triple is on the grid
// exactly when its three stored coordinates share one parity. Behaviour is
// undefined for coordinates beyond about 32767.
type ShiftedBCC struct {
	v, h, c int16
}

// NewShiftedBCC validates that (v, h, c) lies on the grid and returns it.
func NewShiftedBCC(v, h, c float64) (ShiftedBCC, error) {
	sv, sh, sc := v-1, h, c-0.5
	if sv != math.Trunc(sv) || sh != math.Trunc(sh) || sc != math.Trunc(sc) {
		return ShiftedBCC{}, fmt.Errorf("shifted bcc (%v,%v,%v): %w", v, h, c, ErrNotLatticePoint)
	}
	p := ShiftedBCC{int16(sv), int16(sh), int16(sc)}
	if p.v&1 != p.c&1 || p.h&1 != p.c&1 {
		return ShiftedBCC{}, fmt.Errorf("shifted bcc (%v,%v,%v): %w", v, h, c, ErrNotLatticePoint)
	}
	return p, nil
}

// V returns the first coordinate.
func (p ShiftedBCC) V() float64 { return float64(p.v) + 1 }

// H returns the second coordinate.
func (p ShiftedBCC) H() float64 { return float64(p.h) }

// C returns the third coordinate.
func (p ShiftedBCC) C() float64 { return float64(p.c) + 0.5 }

// VHC returns all three coordinates.
func (p ShiftedBCC) VHC() (v, h, c float64) { return p.V(), p.H(), p.C() }

// round2 rounds to the nearest even integer.
func round2(x float64) float64 { return 2 * math.Round(x*0.5) }

func norm(v, h, c float64) float64 { return v*v + h*h + c*c }

// QuantizeBCC returns the nearest grid point to (v, h, c) and the squared
// distance to it. The two closed-form candidates are the nearest points of
// the even and odd parity classes; an exact tie keeps the odd one.
func QuantizeBCC(v, h, c float64) (ShiftedBCC, float64) {
	v1 := round2(v-1) + 1
	h1 := round2(h)
	c1 := round2(c-0.5) + 0.5
	norm1 := norm(v-v1, h-h1, c-c1)
	v2 := round2(v)
	h2 := round2(h+1) - 1
	c2 := round2(c+0.5) - 0.5
	norm2 := norm(v-v2, h-h2, c-c2)
	if norm1 < norm2 {
		return ShiftedBCC{int16(v1 - 1), int16(h1), int16(c1 - 0.5)}, norm1
	}
	return ShiftedBCC{int16(v2 - 1), int16(h2), int16(c2 - 0.5)}, norm2
}

// Arrow returns the nearest grid point to ½p together with the Residual
// ½p minus that point. Exactly eight points map to themselves; every other
// point moves strictly closer to the origin, so repeated Arrow steps reach
// a fixed point.
func (p ShiftedBCC) Arrow() (ShiftedBCC, Residual) {
	vBit := int(p.v>>1) & 1
	hBit := int(p.h>>1) & 1
	cBits := int(p.c) & 3
	r := syndromes[vBit][hBit][cBits]
	d := deltas[r]
	return ShiftedBCC{(p.v - d.v) >> 1, (p.h - d.h) >> 1, (p.c - d.c) >> 1}, r
}

// A Residual is ½A-B where B is the Arrow destination of A. There are
// eight possible values, forming the alphabet the entropy coder models.
type Residual uint8

// NumResiduals is the size of the residual alphabet.
const NumResiduals = 8

// residualVHC lists the components of each Residual.
var residualVHC = [NumResiduals]struct{ v, h, c float64 }{
	{-0.5, 0, 0.75},
	{0, -0.5, -0.75},
	{0, 0.5, -0.75},
	{0.5, 0, 0.75},
	{-0.5, 0, -0.25},
	{0, -0.5, 0.25},
	{0, 0.5, 0.25},
	{0.5, 0, -0.25},
}

// deltas[r] is 2*residualVHC[r] plus the constant shift, in stored
// coordinates; Arrow subtracts it before halving.
var deltas = [NumResiduals]struct{ v, h, c int16 }{
	{0, 0, 2},
	{1, -1, -1},
	{1, 1, -1},
	{2, 0, 2},
	{0, 0, 0},
	{1, -1, 1},
	{1, 1, 1},
	{2, 0, 0},
}

// syndromes picks the Residual of a point from bit 1 of its stored v and h
// and the low two bits of its stored c.
var syndromes = [2][2][4]Residual{
	{
		{4, 6, 0, 2},
		{3, 5, 7, 1},
	},
	{
		{7, 1, 3, 5},
		{0, 2, 4, 6},
	},
}

// VHC returns the components of the residual.
func (r Residual) VHC() (v, h, c float64) {
	e := residualVHC[r]
	return e.v, e.h, e.c
}

// FixedPoint returns the coordinates of the unique grid point fp whose
// Arrow destination is fp itself with residual r.
func (r Residual) FixedPoint() (v, h, c float64) {
	v, h, c = r.VHC()
	return -2 * v, -2 * h, -2 * c
}

// RecommendSymmetry returns the unique Symmetry mapping r onto residual 0
// or residual 4.
func (r Residual) RecommendSymmetry() Symmetry {
	return Symmetry(r & 3)
}

// ApplySymmetry applies s to r. The operation is its own inverse.
func (r Residual) ApplySymmetry(s Symmetry) Residual {
	return r ^ Residual(s)
}

// A Symmetry is one of the four self-inverse coordinate permutations that
// the grid admits: 0 is the identity, 1 exchanges v with h and negates c,
// 2 exchanges v with -h and negates c, 3 composes the other two, negating
// v and h. Applying one to every Residual of a Chain commutes with the
// chain's reconstruction.
type Symmetry uint8

// NumSymmetries is the number of symmetries.
const NumSymmetries = 4

// A Chain is the variable-length encoding of a ShiftedBCC: the residuals
// of repeated Arrow steps, least significant first, ending at a fixed
// point identified by Last.
type Chain struct {
	Residuals []Residual
	Last      Residual
}

// ChainFromPoint walks p down to a fixed point, recording residuals.
func ChainFromPoint(p ShiftedBCC) Chain {
	var residuals []Residual
	for {
		half, r := p.Arrow()
		if half == p {
			return Chain{Residuals: residuals, Last: r}
		}
		residuals = append(residuals, r)
		p = half
	}
}

// QuantizeChain quantizes (v, h, c) onto the grid and encodes the result.
func QuantizeChain(v, h, c float64) Chain {
	p, _ := QuantizeBCC(v, h, c)
	return ChainFromPoint(p)
}

// VHC rebuilds the coordinates, doubling back up from the fixed point.
func (ch Chain) VHC() (v, h, c float64) {
	v, h, c = ch.Last.FixedPoint()
	for i := len(ch.Residuals) - 1; i >= 0; i-- {
		rv, rh, rc := ch.Residuals[i].VHC()
		v = (v + rv) * 2
		h = (h + rh) * 2
		c = (c + rc) * 2
	}
	return v, h, c
}

// Point rebuilds the grid point the chain encodes.
func (ch Chain) Point() ShiftedBCC {
	v, h, c := ch.VHC()
	return ShiftedBCC{int16(v - 1), int16(h), int16(c - 0.5)}
}

// ApplySymmetry applies s to every residual. It is its own inverse and
// commutes with Point.
func (ch Chain) ApplySymmetry(s Symmetry) Chain {
	out := Chain{
		Residuals: make([]Residual, len(ch.Residuals)),
		Last:      ch.Last.ApplySymmetry(s),
	}
	for i, r := range ch.Residuals {
		out.Residuals[i] = r.ApplySymmetry(s)
	}
	return out
}
