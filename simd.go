// Copyright 2025 go-fvq Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fvq

import (
	"sync"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/ajroetker/go-highway/hwy/contrib/image"
)

// slicesToImage converts a 2D slice to a SIMD-aligned Image.
// The returned image shares no data with the input; it's a copy.
func slicesToImage[T hwy.Lanes](data [][]T) *image.Image[T] {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil
	}
	height := len(data)
	width := len(data[0])

	img := image.NewImage[T](width, height)
	for y := range height {
		row := img.Row(y)
		copy(row[:width], data[y])
	}
	return img
}

// imageToSlices converts a SIMD-aligned Image back to a 2D slice.
// The returned slices share no data with the image; they're copies.
func imageToSlices[T hwy.Lanes](img *image.Image[T]) [][]T {
	if img == nil || img.Width() == 0 || img.Height() == 0 {
		return nil
	}
	width := img.Width()
	height := img.Height()

	data := make([][]T, height)
	for y := range height {
		data[y] = make([]T, width)
		row := img.Row(y)
		copy(data[y], row[:width])
	}
	return data
}

// quadBuf holds four pooled scratch lines for tile and smoothing loops:
// either the deinterleaved samples of a row pair, or the four band values
// along one quad column. Grown on demand, reused across rows/columns.
type quadBuf struct {
	a, b, c, d []float64
	n          int
}

// ensure grows the scratch lines to hold n values each, padded to a whole
// number of SIMD vectors so full-vector loads stay in bounds.
func (q *quadBuf) ensure(n int) {
	if q.n >= n {
		return
	}
	lanes := hwy.MaxLanes[float64]()
	padded := ((n + lanes - 1) / lanes) * lanes
	q.a = make([]float64, padded)
	q.b = make([]float64, padded)
	q.c = make([]float64, padded)
	q.d = make([]float64, padded)
	q.n = padded
}

var quadBufPool = sync.Pool{New: func() any { return new(quadBuf) }}

func getQuadBuf(n int) *quadBuf {
	buf := quadBufPool.Get().(*quadBuf)
	buf.ensure(n)
	return buf
}

func putQuadBuf(buf *quadBuf) {
	quadBufPool.Put(buf)
}
