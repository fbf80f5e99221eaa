package fvq

import "math/bits"

// VHC bundles one tile's three detail coefficients.
type VHC struct {
	V, H, C float64
}

// A Quad is a 2x2 block in row order: top-left, top-right, bottom-left,
// bottom-right.
type Quad[T any] [4]T

// At returns the element in row y, column x; y and x must be 0 or 1.
func (q Quad[T]) At(y, x int) T { return q[y<<1|x] }

// A Branch is a non-blank coefficient tree: a payload for the current
// tile plus four half-size subtrees. A nil *Branch is a blank subtree,
// everywhere equal to its mean, so its coefficients are all zero.
type Branch[P any] struct {
	Payload  P
	Children Quad[*Branch[P]]
}

// At returns the payload of the node path leads to, or false if the
// path runs into a blank subtree.
func (b *Branch[P]) At(path Path) (P, bool) {
	for b != nil {
		y, x, ok := path.Pop()
		if !ok {
			return b.Payload, true
		}
		b = b.Children.At(y, x)
	}
	var zero P
	return zero, false
}

const (
	pathLimit  = 0x55555555
	pathTopBit = pathLimit ^ (pathLimit >> 2)
	pathEmpty  = pathLimit - 1
)

// A Path is a stack of quadrant selectors addressing a tree node, up to
// 15 deep, packed two bits per selector in a uint32. Pop consumes
// selectors root-first, so build a path by pushing the deepest selector
// first and the root's selector last. Start from EmptyPath.
type Path uint32

// EmptyPath addresses the root of a tree.
const EmptyPath Path = pathEmpty

// Len returns the number of selectors on the path.
func (p Path) Len() int {
	return (31 - bits.LeadingZeros32(uint32(p)^pathLimit)) / 2
}

// Push adds a selector. It panics after 15 pushes.
func (p *Path) Push(y, x int) {
	if uint32(*p) < pathTopBit {
		panic("fvq: path overflow")
	}
	*p = *p<<2 | Path(y&1) | Path(x&1)<<1
}

// Pop removes and returns the next selector, root-first.
func (p *Path) Pop() (y, x int, ok bool) {
	if uint32(*p) >= pathEmpty {
		return 0, 0, false
	}
	y = int(uint32(*p) & 1)
	x = int(uint32(*p) >> 1 & 1)
	*p = *p>>2 | pathTopBit
	return y, x, true
}

// A Position locates a tree node within a pyramid.
type Position struct {
	// Level counts generations from the coarsest: a tree's root reads
	// generation Order()-1, its children generation Order()-2, and so
	// on down to the finest at Level Order()-1.
	Level int

	// Y, X are tile coordinates within that generation's planes.
	Y, X int
}

// Child returns the position of the (y, x) quadrant one level finer.
func (pos Position) Child(y, x int) Position {
	return Position{Level: pos.Level + 1, Y: 2*pos.Y + y, X: 2*pos.X + x}
}

// Locate resolves the path against a base cell of the coarsest
// generation, descending one quadrant per selector.
func (p Path) Locate(y, x int) Position {
	pos := Position{Y: y, X: x}
	for {
		sy, sx, ok := p.Pop()
		if !ok {
			return pos
		}
		pos = pos.Child(sy, sx)
	}
}

// Tree copies the coefficient tree rooted at base cell (y, x) of the
// coarsest generation: the root carries that cell's (V, H, C) triplet
// and each child one quadrant of the next finer generation. A base
// cell outside the coarsest planes, or a pyramid with no generations,
// yields nil, the blank tree.
func (p *Pyramid) Tree(y, x int) *Branch[VHC] {
	return p.readTree(len(p.Generations)-1, y, x)
}

func (p *Pyramid) readTree(gen, y, x int) *Branch[VHC] {
	if gen < 0 {
		return nil
	}
	g := p.Generations[gen]
	if x < 0 || x >= g.Width() || y < 0 || y >= g.Height() {
		return nil
	}
	v, h, c := g.At(x, y)
	b := &Branch[VHC]{Payload: VHC{V: v, H: h, C: c}}
	for i := range b.Children {
		b.Children[i] = p.readTree(gen-1, 2*y+(i>>1), 2*x+(i&1))
	}
	return b
}

// SetTree writes a coefficient tree back under base cell (y, x). Blank
// subtrees zero every cell they cover, so writing a pruned tree erases
// the detail the pruning dropped. SetTree is the sanctioned way to
// rewrite a Pyramid's detail planes in place.
func (p *Pyramid) SetTree(y, x int, t *Branch[VHC]) {
	p.writeTree(len(p.Generations)-1, y, x, t)
}

func (p *Pyramid) writeTree(gen, y, x int, t *Branch[VHC]) {
	if gen < 0 {
		return
	}
	g := p.Generations[gen]
	if t == nil {
		g.Set(x, y, 0, 0, 0)
		for i := range 4 {
			p.writeTree(gen-1, 2*y+(i>>1), 2*x+(i&1), nil)
		}
		return
	}
	g.Set(x, y, t.Payload.V, t.Payload.H, t.Payload.C)
	for i, child := range t.Children {
		p.writeTree(gen-1, 2*y+(i>>1), 2*x+(i&1), child)
	}
}
