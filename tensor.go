// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package nn implements separable fully-connected and cosine-normalized dense
// layers as building blocks for a host training framework.
//
// All tensor storage uses flat []float64 slices in row-major order.
// Matrix multiplication is delegated to gonum (gonum.org/v1/gonum/mat).
// The host framework owns the training loop, gradients, and optimizer;
// this package only defines parameter shapes and forward transforms.
package nn

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Epsilon is the numerical stabilizer added under square roots and into
// denominators to keep divisions finite for all-zero inputs or weights.
const Epsilon = 1e-7

// Shape represents the dimensions of a tensor. Internally stored as a
// private slice to prevent external mutation.
type Shape struct{ dims []int }

// NewShape creates a Shape from variadic dimension sizes.
func NewShape(dims ...int) Shape {
	d := make([]int, len(dims))
	copy(d, dims)
	return Shape{dims: d}
}

// Dims returns a copy of the dimension sizes.
func (s Shape) Dims() []int {
	d := make([]int, len(s.dims))
	copy(d, s.dims)
	return d
}

// DimsRef returns a direct reference to the internal dimension slice.
// The caller must NOT mutate the returned slice.
func (s Shape) DimsRef() []int {
	return s.dims
}

// NDim returns the number of dimensions.
func (s Shape) NDim() int { return len(s.dims) }

// Numel returns the total number of elements (product of all dimensions).
func (s Shape) Numel() int {
	if len(s.dims) == 0 {
		return 0
	}
	return prod(s.dims)
}

// At returns the size of dimension dim. Negative indices count from the end
// (e.g., At(-1) returns the last dimension), matching NumPy convention.
func (s Shape) At(dim int) int {
	if dim < 0 {
		dim += len(s.dims)
	}
	if dim < 0 || dim >= len(s.dims) {
		return 0
	}
	return s.dims[dim]
}

// Strides returns row-major strides for the shape.
// For shape [2, 3, 4] the strides are [12, 4, 1].
func (s Shape) Strides() []int {
	if len(s.dims) == 0 {
		return nil
	}
	strides := make([]int, len(s.dims))
	strides[len(s.dims)-1] = 1
	for i := len(s.dims) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s.dims[i+1]
	}
	return strides
}

// Equal returns true if two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s.dims) != len(other.dims) {
		return false
	}
	for i := range s.dims {
		if s.dims[i] != other.dims[i] {
			return false
		}
	}
	return true
}

// String formats the shape as "[d0, d1, ...]".
func (s Shape) String() string {
	parts := make([]string, len(s.dims))
	for i, d := range s.dims {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// normalizeAxis resolves a possibly-negative axis against ndim.
// Panics if the axis is out of range.
func normalizeAxis(axis, ndim int) int {
	a := axis
	if a < 0 {
		a += ndim
	}
	if a < 0 || a >= ndim {
		panic(fmt.Sprintf("axis %d out of range for %d dimensions", axis, ndim))
	}
	return a
}

// Broadcast computes the broadcast-compatible output shape for two inputs,
// following NumPy broadcasting rules: dimensions are compared right-to-left,
// and each pair must either be equal or one of them must be 1.
func Broadcast(a, b Shape) (Shape, error) {
	maxLen := len(a.dims)
	if len(b.dims) > maxLen {
		maxLen = len(b.dims)
	}
	result := make([]int, maxLen)
	for i := range result {
		dimA, dimB := 1, 1
		if i < len(a.dims) {
			dimA = a.dims[len(a.dims)-1-i]
		}
		if i < len(b.dims) {
			dimB = b.dims[len(b.dims)-1-i]
		}
		if dimA != dimB && dimA != 1 && dimB != 1 {
			return Shape{}, fmt.Errorf("cannot broadcast shapes %v and %v", a, b)
		}
		if dimA > dimB {
			result[maxLen-1-i] = dimA
		} else {
			result[maxLen-1-i] = dimB
		}
	}
	return Shape{dims: result}, nil
}

// ---------------------------------------------------------------------------
// Tensor
// ---------------------------------------------------------------------------

// Tensor stores multi-dimensional float64 data in a contiguous flat slice.
// Row-major layout: the last dimension varies fastest. All operations
// allocate new tensors unless documented otherwise.
type Tensor struct {
	data  []float64
	shape Shape
}

// New allocates a zero-filled tensor of the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{data: make([]float64, shape.Numel()), shape: shape}
}

// Zeros is an alias for New (zero-filled tensor).
func Zeros(shape Shape) *Tensor { return New(shape) }

// Ones allocates a tensor filled with 1.0.
func Ones(shape Shape) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = 1
	}
	return t
}

// FromSlice creates a tensor by copying the provided data.
// Panics if len(data) != shape.Numel().
func FromSlice(data []float64, shape Shape) *Tensor {
	if len(data) != shape.Numel() {
		panic(fmt.Sprintf("data length %d != shape numel %d", len(data), shape.Numel()))
	}
	d := make([]float64, len(data))
	copy(d, data)
	return &Tensor{data: d, shape: shape}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape { return t.shape }

// DataPtr returns the underlying storage slice directly (no copy).
// Callers may mutate elements in-place; use Data() for a safe copy.
func (t *Tensor) DataPtr() []float64 { return t.data }

// Data returns a copy of the underlying storage.
func (t *Tensor) Data() []float64 {
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return d
}

// flatIndex converts multi-dimensional indices to a flat offset using
// row-major strides. Panics on out-of-bounds access.
func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != t.shape.NDim() {
		panic(fmt.Sprintf("expected %d indices, got %d", t.shape.NDim(), len(indices)))
	}
	idx := 0
	strides := t.shape.Strides()
	for i, index := range indices {
		if index < 0 || index >= t.shape.At(i) {
			panic(fmt.Sprintf("index %d out of bounds for dim %d with size %d", index, i, t.shape.At(i)))
		}
		idx += index * strides[i]
	}
	return idx
}

// At reads a single element by multi-dimensional index.
func (t *Tensor) At(indices ...int) float64 { return t.data[t.flatIndex(indices)] }

// Set writes a single element by multi-dimensional index.
func (t *Tensor) Set(value float64, indices ...int) { t.data[t.flatIndex(indices)] = value }

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor { return FromSlice(t.data, t.shape) }

// Reshape returns a new tensor sharing the same backing data but with a
// different shape. The total number of elements must be unchanged.
// WARNING: because data is shared, mutations to one affect the other.
func (t *Tensor) Reshape(s Shape) *Tensor {
	if t.shape.Numel() != s.Numel() {
		panic(fmt.Sprintf("cannot reshape %v to %v: different numel", t.shape, s))
	}
	return &Tensor{data: t.data, shape: s}
}

// ExpandDims returns a view with a size-1 dimension inserted at axis.
// axis may equal NDim() to append a trailing dimension.
func (t *Tensor) ExpandDims(axis int) *Tensor {
	ndim := t.shape.NDim()
	a := axis
	if a < 0 {
		a += ndim + 1
	}
	if a < 0 || a > ndim {
		panic(fmt.Sprintf("axis %d out of range for expand on %d dimensions", axis, ndim))
	}
	dims := make([]int, 0, ndim+1)
	dims = append(dims, t.shape.dims[:a]...)
	dims = append(dims, 1)
	dims = append(dims, t.shape.dims[a:]...)
	return &Tensor{data: t.data, shape: NewShape(dims...)}
}

func (t *Tensor) assertShape(other *Tensor) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("shape mismatch: %v vs %v", t.shape, other.shape))
	}
}

// Add returns element-wise t + o.
func (t *Tensor) Add(o *Tensor) *Tensor {
	t.assertShape(o)
	r := New(t.shape)
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
	return r
}

// Sub returns element-wise t - o.
func (t *Tensor) Sub(o *Tensor) *Tensor {
	t.assertShape(o)
	r := New(t.shape)
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
	return r
}

// Mul returns element-wise t * o (Hadamard product).
func (t *Tensor) Mul(o *Tensor) *Tensor {
	t.assertShape(o)
	r := New(t.shape)
	a, b, dst := t.data, o.data, r.data
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
	return r
}

// Scale returns t * s (scalar multiplication).
func (t *Tensor) Scale(s float64) *Tensor {
	r := New(t.shape)
	src, dst := t.data, r.data
	for i := range dst {
		dst[i] = src[i] * s
	}
	return r
}

// AddScalar returns t + s applied element-wise.
func (t *Tensor) AddScalar(s float64) *Tensor {
	r := New(t.shape)
	src, dst := t.data, r.data
	for i := range dst {
		dst[i] = src[i] + s
	}
	return r
}

// Square returns t * t element-wise.
func (t *Tensor) Square() *Tensor {
	r := New(t.shape)
	src, dst := t.data, r.data
	for i := range dst {
		dst[i] = src[i] * src[i]
	}
	return r
}

// Sqrt returns sqrt(t) element-wise.
func (t *Tensor) Sqrt() *Tensor {
	r := New(t.shape)
	src, dst := t.data, r.data
	for i := range dst {
		dst[i] = math.Sqrt(src[i])
	}
	return r
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	sum := 0.0
	for _, v := range t.data {
		sum += v
	}
	return sum
}

// SumAxis reduces along axis by summation. With keepdims the reduced axis is
// retained as size 1; otherwise it is removed from the output shape.
func (t *Tensor) SumAxis(axis int, keepdims bool) *Tensor {
	a := normalizeAxis(axis, t.shape.NDim())
	dims := t.shape.dims
	outer, n, inner := prod(dims[:a]), dims[a], prod(dims[a+1:])

	outDims := make([]int, 0, len(dims))
	outDims = append(outDims, dims[:a]...)
	if keepdims {
		outDims = append(outDims, 1)
	}
	outDims = append(outDims, dims[a+1:]...)

	r := New(NewShape(outDims...))
	src, dst := t.data, r.data
	for o := 0; o < outer; o++ {
		srcOff := o * n * inner
		dstOff := o * inner
		for k := 0; k < n; k++ {
			row := src[srcOff+k*inner : srcOff+(k+1)*inner]
			for i, v := range row {
				dst[dstOff+i] += v
			}
		}
	}
	return r
}

// Concat concatenates tensors along axis. All inputs must agree on every
// dimension except the concatenation axis.
func Concat(axis int, tensors ...*Tensor) *Tensor {
	if len(tensors) == 0 {
		panic("concat requires at least one tensor")
	}
	first := tensors[0].shape
	a := normalizeAxis(axis, first.NDim())

	axisTotal := 0
	for _, t := range tensors {
		if t.shape.NDim() != first.NDim() {
			panic(fmt.Sprintf("concat rank mismatch: %v vs %v", first, t.shape))
		}
		for d := 0; d < first.NDim(); d++ {
			if d != a && t.shape.dims[d] != first.dims[d] {
				panic(fmt.Sprintf("concat shape mismatch on dim %d: %v vs %v", d, first, t.shape))
			}
		}
		axisTotal += t.shape.dims[a]
	}

	outDims := first.Dims()
	outDims[a] = axisTotal
	r := New(NewShape(outDims...))

	outer := prod(first.dims[:a])
	inner := prod(first.dims[a+1:])
	dstRow := axisTotal * inner
	colOff := 0
	for _, t := range tensors {
		srcRow := t.shape.dims[a] * inner
		for o := 0; o < outer; o++ {
			copy(r.data[o*dstRow+colOff:o*dstRow+colOff+srcRow], t.data[o*srcRow:(o+1)*srcRow])
		}
		colOff += srcRow
	}
	return r
}

// broadcastOp applies f element-wise over the broadcast of a and b.
// Size-1 dimensions are stepped with stride 0, NumPy-style.
func broadcastOp(a, b *Tensor, f func(x, y float64) float64) *Tensor {
	outShape, err := Broadcast(a.shape, b.shape)
	if err != nil {
		panic(err.Error())
	}
	r := New(outShape)
	ndim := outShape.NDim()

	stridesFor := func(t *Tensor) []int {
		s := make([]int, ndim)
		own := t.shape.Strides()
		offset := ndim - t.shape.NDim()
		for i := 0; i < t.shape.NDim(); i++ {
			if t.shape.dims[i] == 1 {
				s[offset+i] = 0
			} else {
				s[offset+i] = own[i]
			}
		}
		return s
	}
	aStrides, bStrides := stridesFor(a), stridesFor(b)

	idx := make([]int, ndim)
	dims := outShape.dims
	for flat := 0; flat < len(r.data); flat++ {
		aOff, bOff := 0, 0
		for d := 0; d < ndim; d++ {
			aOff += idx[d] * aStrides[d]
			bOff += idx[d] * bStrides[d]
		}
		r.data[flat] = f(a.data[aOff], b.data[bOff])

		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
	}
	return r
}

// MulBroadcast returns a * b with NumPy broadcasting.
func MulBroadcast(a, b *Tensor) *Tensor {
	return broadcastOp(a, b, func(x, y float64) float64 { return x * y })
}

// DivBroadcast returns a / b with NumPy broadcasting.
func DivBroadcast(a, b *Tensor) *Tensor {
	return broadcastOp(a, b, func(x, y float64) float64 { return x / y })
}

// AddBroadcast returns a + b with NumPy broadcasting.
func AddBroadcast(a, b *Tensor) *Tensor {
	return broadcastOp(a, b, func(x, y float64) float64 { return x + y })
}

// asDense wraps a 2-D tensor as a gonum matrix without copying.
func asDense(t *Tensor) *mat.Dense {
	if t.shape.NDim() != 2 {
		panic(fmt.Sprintf("expected 2D tensor, got %v", t.shape))
	}
	return mat.NewDense(t.shape.dims[0], t.shape.dims[1], t.data)
}

// Matmul computes matrix multiplication C = A @ B.
//
//	C[i,j] = sum_k A[i,k] * B[k,j]
//
// 2D only: [M,K] x [K,N] -> [M,N]. Delegates to gonum's mat.Dense, which
// dispatches to its internal BLAS implementation.
func Matmul(a, b *Tensor) *Tensor {
	if a.shape.NDim() != 2 || b.shape.NDim() != 2 {
		panic("matmul requires 2D tensors")
	}
	aM := a.shape.dims[0]
	aK := a.shape.dims[1]
	bK, bN := b.shape.dims[0], b.shape.dims[1]
	if aK != bK {
		panic(fmt.Sprintf("matmul dimension mismatch: %d vs %d", aK, bK))
	}
	result := New(NewShape(aM, bN))
	asDense(result).Mul(asDense(a), asDense(b))
	return result
}

// MatmulTransposedB computes C = A @ B^T without materializing the transpose.
// A: [M, K], B: [N, K] -> C: [M, N]. Uses gonum's lazy transpose view.
// This is the hot path for both layers' forward transforms.
func MatmulTransposedB(a, b *Tensor) *Tensor {
	if a.shape.NDim() != 2 || b.shape.NDim() != 2 {
		panic("MatmulTransposedB requires 2D tensors")
	}
	aM, aK := a.shape.dims[0], a.shape.dims[1]
	bN, bK := b.shape.dims[0], b.shape.dims[1]
	if aK != bK {
		panic(fmt.Sprintf("matmulT dimension mismatch: %d vs %d", aK, bK))
	}
	result := New(NewShape(aM, bN))
	asDense(result).Mul(asDense(a), asDense(b).T())
	return result
}

// Transpose swaps the last two dimensions.
// For a [B, M, N] tensor, produces [B, N, M] by explicit element copy.
func (t *Tensor) Transpose() *Tensor {
	if t.shape.NDim() < 2 {
		panic("transpose requires at least 2D tensor")
	}
	dims := t.shape.Dims()
	dims[len(dims)-1], dims[len(dims)-2] = dims[len(dims)-2], dims[len(dims)-1]
	result := New(NewShape(dims...))
	rows, cols := t.shape.At(-2), t.shape.At(-1)
	batchSize := t.shape.Numel() / (rows * cols)
	for batch := 0; batch < batchSize; batch++ {
		srcOff, dstOff := batch*rows*cols, batch*cols*rows
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				result.data[dstOff+j*rows+i] = t.data[srcOff+i*cols+j]
			}
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// prod returns the product of all integers in xs.
func prod(xs []int) int {
	n := 1
	for _, x := range xs {
		n *= x
	}
	return n
}

// splitLast splits dims into (leading dims, product of leading dims, last dim).
// Used to treat [batch, ..., features] as (flat_batch, features) for 2D matmul.
func splitLast(dims []int) (leading []int, leadingSize int, last int) {
	if len(dims) == 0 {
		panic("shape must have at least one dimension")
	}
	last = dims[len(dims)-1]
	leading = dims[:len(dims)-1]
	leadingSize = prod(leading)
	return leading, leadingSize, last
}

// withLastDim creates a new shape by appending last to the leading dimensions.
// Restores the original batch dims after a flattened matmul.
func withLastDim(dims []int, last int) Shape {
	out := append(append([]int(nil), dims...), last)
	return NewShape(out...)
}
