package fvq

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ajroetker/go-highway/hwy/contrib/image"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"github.com/google/go-cmp/cmp"
)

func randImage(rng *rand.Rand, width, height int) *image.Image[float64] {
	img := image.NewImage[float64](width, height)
	for y := range height {
		row := img.RowSlice(y)
		for x := range row {
			row[x] = rng.Float64()*2 - 1
		}
	}
	return img
}

func imagesClose(t *testing.T, got, want *image.Image[float64], eps float64) {
	t.Helper()
	if got.Width() != want.Width() || got.Height() != want.Height() {
		t.Fatalf("size mismatch: got %dx%d, want %dx%d",
			got.Width(), got.Height(), want.Width(), want.Height())
	}
	for y := range want.Height() {
		g := got.RowSlice(y)
		w := want.RowSlice(y)
		for x := range w {
			if math.Abs(g[x]-w[x]) > eps*math.Max(1, math.Abs(w[x])) {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, g[x], w[x])
			}
		}
	}
}

func TestDecomposeErrors(t *testing.T) {
	if _, err := Decompose(nil, DecomposeOptions{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil image: err = %v, want ErrEmptyImage", err)
	}
	if _, err := Decompose(image.NewImage[float64](0, 8), DecomposeOptions{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("zero width: err = %v, want ErrEmptyImage", err)
	}
	img := image.NewImage[float64](8, 8)
	if _, err := Decompose(img, DecomposeOptions{Generations: -1}); !errors.Is(err, ErrInvalidGenerations) {
		t.Errorf("negative generations: err = %v, want ErrInvalidGenerations", err)
	}
}

func TestDecomposeGenerationCount(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		requested int
		wantGens  int
		wantLowW  int
		wantLowH  int
	}{
		{name: "full depth square", w: 16, h: 16, requested: 0, wantGens: 4, wantLowW: 1, wantLowH: 1},
		{name: "capped", w: 16, h: 16, requested: 2, wantGens: 2, wantLowW: 4, wantLowH: 4},
		{name: "stops at odd", w: 12, h: 8, requested: 0, wantGens: 2, wantLowW: 3, wantLowH: 2},
		{name: "odd input", w: 7, h: 7, requested: 0, wantGens: 0, wantLowW: 7, wantLowH: 7},
		{name: "single tile", w: 2, h: 2, requested: 0, wantGens: 1, wantLowW: 1, wantLowH: 1},
		{name: "one pixel tall", w: 16, h: 1, requested: 0, wantGens: 0, wantLowW: 16, wantLowH: 1},
	}

	rng := rand.New(rand.NewSource(21))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decompose(randImage(rng, tt.w, tt.h), DecomposeOptions{Generations: tt.requested})
			if err != nil {
				t.Fatalf("Decompose: %v", err)
			}
			if p.Order() != tt.wantGens {
				t.Fatalf("Order() = %d, want %d", p.Order(), tt.wantGens)
			}
			if p.Low.Width() != tt.wantLowW || p.Low.Height() != tt.wantLowH {
				t.Errorf("low plane = %dx%d, want %dx%d",
					p.Low.Width(), p.Low.Height(), tt.wantLowW, tt.wantLowH)
			}
			for g, gen := range p.Generations {
				wantW := tt.w >> (g + 1)
				wantH := tt.h >> (g + 1)
				if gen.Width() != wantW || gen.Height() != wantH {
					t.Errorf("generation %d = %dx%d, want %dx%d",
						g, gen.Width(), gen.Height(), wantW, wantH)
				}
			}
		})
	}
}

func TestDecomposeStop(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	var seen []int
	p, err := Decompose(randImage(rng, 64, 64), DecomposeOptions{
		Stop: func(gen int, low *image.Image[float64]) bool {
			seen = append(seen, low.Width())
			return gen == 2
		},
	})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if p.Order() != 2 {
		t.Fatalf("Order() = %d, want 2", p.Order())
	}
	if d := cmp.Diff([]int{64, 32, 16}, seen); d != "" {
		t.Errorf("Stop saw wrong low widths (-want +got):\n%s", d)
	}
	if p.Low.Width() != 16 || p.Low.Height() != 16 {
		t.Errorf("low plane = %dx%d, want 16x16", p.Low.Width(), p.Low.Height())
	}
}

func TestDecomposeKnownTiles(t *testing.T) {
	t.Run("symmetric diagonal", func(t *testing.T) {
		img := slicesToImage([][]float64{
			{4, 2},
			{2, 4},
		})
		p, err := Decompose(img, DecomposeOptions{})
		if err != nil {
			t.Fatalf("Decompose: %v", err)
		}
		if got := p.Low.At(0, 0); got != 6 {
			t.Errorf("low = %v, want 6", got)
		}
		v, h, c := p.Generations[0].At(0, 0)
		if v != 0 || h != 0 || c != 2 {
			t.Errorf("bands = (%v,%v,%v), want (0,0,2)", v, h, c)
		}
	})

	t.Run("vertical edge", func(t *testing.T) {
		img := slicesToImage([][]float64{
			{1, 1},
			{-1, -1},
		})
		p, err := Decompose(img, DecomposeOptions{})
		if err != nil {
			t.Fatalf("Decompose: %v", err)
		}
		v, h, c := p.Generations[0].At(0, 0)
		if v != 2 || h != 0 || c != 0 {
			t.Errorf("bands = (%v,%v,%v), want (2,0,0)", v, h, c)
		}
	})

	t.Run("two tiles", func(t *testing.T) {
		img := slicesToImage([][]float64{
			{1, 1, -1, -1},
			{1, 1, -1, -1},
		})
		p, err := Decompose(img, DecomposeOptions{})
		if err != nil {
			t.Fatalf("Decompose: %v", err)
		}
		if p.Order() != 1 {
			t.Fatalf("Order() = %d, want 1", p.Order())
		}
		if got := p.Low.At(0, 0); got != 2 {
			t.Errorf("low[0] = %v, want 2", got)
		}
		if got := p.Low.At(1, 0); got != -2 {
			t.Errorf("low[1] = %v, want -2", got)
		}
		for x := range 2 {
			v, h, c := p.Generations[0].At(x, 0)
			if v != 0 || h != 0 || c != 0 {
				t.Errorf("tile %d bands = (%v,%v,%v), want zeros", x, v, h, c)
			}
		}
	})
}

func TestPyramidRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		smooth bool
		pooled bool
	}{
		{name: "plain", w: 64, h: 48, smooth: false},
		{name: "smooth", w: 64, h: 48, smooth: true},
		{name: "plain pooled", w: 96, h: 80, smooth: false, pooled: true},
		{name: "smooth pooled", w: 96, h: 80, smooth: true, pooled: true},
		{name: "odd stop", w: 24, h: 20, smooth: true},
	}

	rng := rand.New(rand.NewSource(17))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pool *workerpool.Pool
			if tt.pooled {
				pool = workerpool.New(4)
				defer pool.Close()
			}
			img := randImage(rng, tt.w, tt.h)
			p, err := Decompose(img, DecomposeOptions{Smooth: tt.smooth, Pool: pool})
			if err != nil {
				t.Fatalf("Decompose: %v", err)
			}
			back, err := p.Reconstruct(pool)
			if err != nil {
				t.Fatalf("Reconstruct: %v", err)
			}
			imagesClose(t, back, img, 1e-9)
		})
	}
}

// The basis and the smoothing rotations are orthonormal, so the sum of
// squares over the pyramid equals the sum of squares over the image.
func TestPyramidEnergy(t *testing.T) {
	for _, smooth := range []bool{false, true} {
		name := "plain"
		if smooth {
			name = "smooth"
		}
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(29))
			img := randImage(rng, 32, 32)
			var inE float64
			for y := range img.Height() {
				for _, s := range img.RowSlice(y) {
					inE += s * s
				}
			}

			p, err := Decompose(img, DecomposeOptions{Smooth: smooth})
			if err != nil {
				t.Fatalf("Decompose: %v", err)
			}
			var outE float64
			for y := range p.Low.Height() {
				for _, s := range p.Low.RowSlice(y) {
					outE += s * s
				}
			}
			for _, gen := range p.Generations {
				for _, b := range []Band{BandV, BandH, BandC} {
					plane := gen.Plane(b)
					for y := range plane.Height() {
						for _, s := range plane.RowSlice(y) {
							outE += s * s
						}
					}
				}
			}
			if math.Abs(inE-outE) > 1e-9*inE {
				t.Errorf("energy drifted: image %v, pyramid %v", inE, outE)
			}
		})
	}
}

func TestReconstructMismatch(t *testing.T) {
	p := &Pyramid{
		Low:         image.NewImage[float64](2, 2),
		Generations: []Generation{newGeneration(3, 3)},
	}
	if _, err := p.Reconstruct(nil); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestMontage(t *testing.T) {
	img := image.NewImage[float64](8, 8)
	img.Fill(1)
	p, err := Decompose(img, DecomposeOptions{Generations: 2})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	m := p.Montage()
	want := make([][]float64, 8)
	for y := range want {
		want[y] = make([]float64, 8)
		for x := range want[y] {
			switch {
			case x < 2 && y < 2:
				want[y][x] = 4 // low plane, constant doubled per step
			default:
				want[y][x] = 0.5 // zero details offset to mid-grey
			}
		}
	}
	if d := cmp.Diff(want, imageToSlices(m)); d != "" {
		t.Errorf("montage mismatch (-want +got):\n%s", d)
	}

	// Montage reads the pyramid without modifying it.
	if got := p.Low.At(0, 0); got != 4 {
		t.Errorf("low plane changed to %v", got)
	}
	if v, h, c := p.Generations[0].At(1, 1); v != 0 || h != 0 || c != 0 {
		t.Errorf("generation 0 changed to (%v,%v,%v)", v, h, c)
	}
}

func TestDecomposeParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	img := randImage(rng, 96, 64)

	pool := workerpool.New(4)
	defer pool.Close()

	for _, smooth := range []bool{false, true} {
		serial, err := Decompose(img, DecomposeOptions{Smooth: smooth})
		if err != nil {
			t.Fatalf("serial Decompose: %v", err)
		}
		pooled, err := Decompose(img, DecomposeOptions{Smooth: smooth, Pool: pool})
		if err != nil {
			t.Fatalf("pooled Decompose: %v", err)
		}
		if d := cmp.Diff(imageToSlices(serial.Low), imageToSlices(pooled.Low)); d != "" {
			t.Fatalf("smooth=%v low plane differs (-serial +pool):\n%s", smooth, d)
		}
		for g := range serial.Generations {
			for _, b := range []Band{BandV, BandH, BandC} {
				sp := serial.Generations[g].Plane(b)
				pp := pooled.Generations[g].Plane(b)
				if d := cmp.Diff(imageToSlices(sp), imageToSlices(pp)); d != "" {
					t.Fatalf("smooth=%v generation %d band %d differs:\n%s", smooth, g, b, d)
				}
			}
		}
	}
}

func BenchmarkDecompose(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	img := randImage(rng, 512, 512)

	b.ResetTimer()
	for b.Loop() {
		if _, err := Decompose(img, DecomposeOptions{Smooth: true}); err != nil {
			b.Fatal(err)
		}
	}
}
