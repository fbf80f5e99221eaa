package fvq

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// perceptualStep is the kind of brightness-dependent step a perceptual
// model supplies: wider steps in bright tiles, clamped in the dark.
func perceptualStep(low float64) float64 {
	if low < 0.001 {
		low = 0.001
	}
	return low / (3 * math.Cbrt(low))
}

func treesEqual[P comparable](a, b *Branch[P]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Payload != b.Payload {
		return false
	}
	for i := range a.Children {
		if !treesEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func mustBCC(t testing.TB, v, h, c float64) ShiftedBCC {
	t.Helper()
	p, err := NewShiftedBCC(v, h, c)
	if err != nil {
		t.Fatalf("NewShiftedBCC(%v,%v,%v): %v", v, h, c, err)
	}
	return p
}

func TestDigitizeRoundTrip(t *testing.T) {
	low := 0.5
	digital := &Branch[ShiftedBCC]{Payload: mustBCC(t, 2, -1, -0.5)}
	digital.Children[3] = &Branch[ShiftedBCC]{Payload: mustBCC(t, 1, -2, 0.5)}

	analogue, err := FromDigital(2, low, digital, perceptualStep)
	if err != nil {
		t.Fatalf("FromDigital: %v", err)
	}
	back, err := Digitize(2, low, analogue, perceptualStep)
	if err != nil {
		t.Fatalf("Digitize: %v", err)
	}
	if !treesEqual(digital, back) {
		t.Errorf("digitized tree differs from the original\nwant root %+v\ngot  root %+v", digital.Payload, back.Payload)
	}
}

func TestDigitizeKeepsLargeCoefficients(t *testing.T) {
	tree := &Branch[VHC]{Payload: VHC{V: 1, H: -2, C: 0.5}}

	digital, err := Digitize(1, 0.5, tree, FlatStep(1.0/6))
	if err != nil {
		t.Fatalf("Digitize: %v", err)
	}
	if digital == nil {
		t.Fatal("large coefficients were pruned")
	}
	// (6,-12,3) in step units; the best even and odd candidates tie at
	// squared distance 1.25 and the odd class wins.
	if want := mustBCC(t, 6, -13, 3.5); digital.Payload != want {
		t.Errorf("payload = %+v, want %+v", digital.Payload, want)
	}
}

func TestDigitizePrunesSmallCoefficients(t *testing.T) {
	tree := &Branch[VHC]{Payload: VHC{V: 1e-4, H: -1e-4, C: 1e-4}}
	for i := range tree.Children {
		tree.Children[i] = &Branch[VHC]{Payload: VHC{V: 1e-5}}
	}

	digital, err := Digitize(1, 0.5, tree, FlatStep(1.0/6))
	if err != nil {
		t.Fatalf("Digitize: %v", err)
	}
	// The grid has no origin, so keeping the node costs at least the
	// squared distance 1.25 to a near-origin point; zeroing costs next
	// to nothing.
	if digital != nil {
		t.Errorf("near-zero tree survived as %+v", digital.Payload)
	}
}

func TestFromDigitalValues(t *testing.T) {
	digital := &Branch[ShiftedBCC]{Payload: mustBCC(t, 2, -1, -0.5)}

	analogue, err := FromDigital(1, 0.6, digital, FlatStep(0.5))
	if err != nil {
		t.Fatalf("FromDigital: %v", err)
	}
	if analogue == nil {
		t.Fatal("FromDigital returned a blank tree")
	}
	if want := (VHC{V: 1, H: -0.5, C: -0.25}); analogue.Payload != want {
		t.Errorf("payload = %+v, want %+v", analogue.Payload, want)
	}
	for i, child := range analogue.Children {
		if child != nil {
			t.Errorf("child %d of a childless digital tree is not blank", i)
		}
	}
}

func TestDigitizeErrors(t *testing.T) {
	tree := &Branch[VHC]{Payload: VHC{V: 1}}

	if _, err := Digitize(-1, 0.5, tree, FlatStep(1)); !errors.Is(err, ErrInvalidGenerations) {
		t.Errorf("negative order: err = %v, want ErrInvalidGenerations", err)
	}
	if _, err := Digitize(2, 0.5, tree, nil); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("nil step: err = %v, want ErrInvalidScale", err)
	}
	if digital, err := Digitize(2, 0.5, nil, FlatStep(1)); err != nil || digital != nil {
		t.Errorf("blank tree: got %v, %v", digital, err)
	}
	if _, err := FromDigital(-1, 0.5, nil, FlatStep(1)); !errors.Is(err, ErrInvalidGenerations) {
		t.Errorf("negative order: err = %v, want ErrInvalidGenerations", err)
	}
}

// Digitizing, writing back and digitizing again must reproduce the same
// trees: the closed loop re-quantizes its own output exactly.
func TestDigitizePyramidRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(61))
	img := randImage(rng, 16, 16)
	for y := range img.Height() {
		row := img.RowSlice(y)
		for x := range row {
			row[x] += 0.2
		}
	}

	p, err := Decompose(img, DecomposeOptions{Generations: 2, Smooth: true})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	trees, err := DigitizePyramid(p, perceptualStep)
	if err != nil {
		t.Fatalf("DigitizePyramid: %v", err)
	}
	if len(trees) != p.Low.Width()*p.Low.Height() {
		t.Fatalf("%d trees for %d base cells", len(trees), p.Low.Width()*p.Low.Height())
	}

	if err := UndigitizePyramid(p, trees, perceptualStep); err != nil {
		t.Fatalf("UndigitizePyramid: %v", err)
	}
	again, err := DigitizePyramid(p, perceptualStep)
	if err != nil {
		t.Fatalf("second DigitizePyramid: %v", err)
	}
	for i := range trees {
		if !treesEqual(trees[i], again[i]) {
			t.Fatalf("tree %d changed across the round trip", i)
		}
	}

	rec, err := p.Reconstruct(nil)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	var sum float64
	for y := range img.Height() {
		a, b := img.RowSlice(y), rec.RowSlice(y)
		for x := range a {
			sum += math.Abs(a[x] - b[x])
		}
	}
	if mean := sum / float64(img.Width()*img.Height()); mean > 0.5 {
		t.Errorf("mean pixel error %v after digitizing", mean)
	}
}

func TestDigitizePyramidErrors(t *testing.T) {
	if _, err := DigitizePyramid(nil, FlatStep(1)); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil pyramid: err = %v, want ErrEmptyImage", err)
	}

	rng := rand.New(rand.NewSource(67))
	p, err := Decompose(randImage(rng, 8, 8), DecomposeOptions{Generations: 1})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if _, err := DigitizePyramid(p, nil); !errors.Is(err, ErrInvalidScale) {
		t.Errorf("nil step: err = %v, want ErrInvalidScale", err)
	}
	if err := UndigitizePyramid(p, make([]*Branch[ShiftedBCC], 3), FlatStep(1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("tree count mismatch: err = %v, want ErrDimensionMismatch", err)
	}
}

func BenchmarkDigitizePyramid(b *testing.B) {
	rng := rand.New(rand.NewSource(3))
	img := randImage(rng, 64, 64)
	p, err := Decompose(img, DecomposeOptions{Generations: 3, Smooth: true})
	if err != nil {
		b.Fatalf("Decompose: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := DigitizePyramid(p, perceptualStep); err != nil {
			b.Fatal(err)
		}
	}
}
