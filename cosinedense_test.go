// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

// Tests for the cosine-normalized dense layer.
//
// The defining property is magnitude invariance: without a bias, rescaling
// the kernel by any positive factor must leave the output unchanged (up to
// the epsilon stabilizer). The remaining tests pin down the two checked
// failure conditions and the bias-folding behavior.

import (
	"math"
	"testing"
)

// Reference check with a unit kernel column: cosine of x against a basis
// vector is x_i / |x|.
func TestCosineDenseReference(t *testing.T) {
	layer := NewCosineDense(2).UseBias(false)
	input := FromSlice([]float64{3, 4}, NewShape(1, 2))

	if err := layer.Build(input.Shape()); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// Kernel columns are the standard basis vectors e_0, e_1.
	copy(layer.kernel.Value.DataPtr(), []float64{
		1, 0,
		0, 1,
	})

	output, err := layer.Forward(input)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}

	// |x| = 5, so cosines are 3/5 and 4/5.
	want := []float64{0.6, 0.8}
	for i, w := range want {
		if math.Abs(output.At(0, i)-w) > 1e-4 {
			t.Errorf("output[0,%d]: expected %f, got %f", i, w, output.At(0, i))
		}
	}
}

// Without a bias, scaling the kernel by k > 0 must not change the output.
func TestCosineDenseKernelScaleInvariance(t *testing.T) {
	kernel := FromSlice([]float64{
		0.5, -1.2, 2.0,
		1.5, 0.3, -0.7,
		-0.4, 0.8, 1.1,
		0.9, -0.6, 0.2,
	}, NewShape(4, 3))
	input := FromSlice([]float64{1, -2, 0.5, 3, 0.1, 0.2, -0.3, 0.4}, NewShape(2, 4))

	baseline := forwardWithKernel(t, kernel, input)
	for _, k := range []float64{1, 2, 10} {
		scaled := forwardWithKernel(t, kernel.Scale(k), input)
		for i := range baseline.DataPtr() {
			got, want := scaled.DataPtr()[i], baseline.DataPtr()[i]
			if math.Abs(got-want) > 1e-5 {
				t.Errorf("k=%v: output[%d] changed from %f to %f", k, i, want, got)
			}
		}
	}
}

func forwardWithKernel(t *testing.T, kernel, input *Tensor) *Tensor {
	t.Helper()
	layer := NewCosineDense(kernel.Shape().At(1)).UseBias(false).InitialWeights(kernel, nil)
	output, err := layer.Forward(input)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	return output
}

// Build must reject a rank-1 input shape with a ConfigError.
func TestCosineDenseRankOneRejected(t *testing.T) {
	layer := NewCosineDense(4)
	err := layer.Build(NewShape(8))
	if err == nil {
		t.Fatal("expected error for rank-1 input shape")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

// A second build observing a different trailing dimension must fail.
func TestCosineDenseRebuildDifferentDim(t *testing.T) {
	layer := NewCosineDense(4)
	if err := layer.Build(NewShape(2, 8)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := layer.Build(NewShape(2, 8)); err != nil {
		t.Fatalf("rebuild with same shape should be a no-op, got %v", err)
	}
	err := layer.Build(NewShape(2, 16))
	if err == nil {
		t.Fatal("expected error for rebuild with different trailing dimension")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

// Forward must reject inputs whose trailing dimension disagrees with the
// dimension the layer was built for.
func TestCosineDenseForwardDimMismatch(t *testing.T) {
	layer := NewCosineDense(4)
	if err := layer.Build(NewShape(2, 8)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	_, err := layer.Forward(Ones(NewShape(2, 2, 16)))
	if err == nil {
		t.Fatal("expected error for mismatched trailing dimension")
	}
	if !IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %T: %v", err, err)
	}
}

// An all-zero input with nonzero weights must produce finite output thanks
// to the epsilon stabilizer.
func TestCosineDenseZeroInputFinite(t *testing.T) {
	for _, useBias := range []bool{true, false} {
		layer := NewCosineDense(3).UseBias(useBias)
		input := Zeros(NewShape(2, 5))
		output, err := layer.Forward(input)
		if err != nil {
			t.Fatalf("useBias=%v: forward failed: %v", useBias, err)
		}
		for i, v := range output.DataPtr() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("useBias=%v: output[%d] not finite: %v", useBias, i, v)
			}
		}
	}
}

// The bias folds into both norms: with the kernel column zeroed and bias b,
// the output is b / (sqrt(|x|^2+1+eps) * sqrt(b^2+eps)).
func TestCosineDenseBiasFolding(t *testing.T) {
	const b = 2.0
	kernel := Zeros(NewShape(2, 1))
	bias := FromSlice([]float64{b}, NewShape(1))

	layer := NewCosineDense(1).InitialWeights(kernel, bias)
	input := FromSlice([]float64{3, 4}, NewShape(1, 2)) // |x|^2 = 25

	output, err := layer.Forward(input)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}

	want := b / (math.Sqrt(25+1+Epsilon) * math.Sqrt(b*b+Epsilon))
	if math.Abs(output.At(0, 0)-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, output.At(0, 0))
	}
}

// Higher-rank inputs are flattened to a batch and restored: the last axis
// becomes units and leading dims are preserved.
func TestCosineDenseRank3(t *testing.T) {
	layer := NewCosineDense(6)
	input := Ones(NewShape(2, 3, 5))
	output, err := layer.Forward(input)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if !output.Shape().Equal(NewShape(2, 3, 6)) {
		t.Fatalf("expected shape [2, 3, 6], got %v", output.Shape())
	}

	shape, err := layer.OutputShape(NewShape(2, 3, 5))
	if err != nil {
		t.Fatalf("output shape failed: %v", err)
	}
	if !shape.Equal(NewShape(2, 3, 6)) {
		t.Fatalf("expected inferred shape [2, 3, 6], got %v", shape)
	}
}

// OutputShape must enforce the resolved trailing dimension.
func TestCosineDenseOutputShapeChecks(t *testing.T) {
	layer := NewCosineDense(4).InputDim(8)

	if _, err := layer.OutputShape(NewShape(8)); err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for rank-1 shape, got %v", err)
	}
	if _, err := layer.OutputShape(NewShape(2, 16)); err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for mismatched trailing dim, got %v", err)
	}
	shape, err := layer.OutputShape(NewShape(2, 8))
	if err != nil {
		t.Fatalf("output shape failed: %v", err)
	}
	if !shape.Equal(NewShape(2, 4)) {
		t.Fatalf("expected [2, 4], got %v", shape)
	}
}

// Sigmoid activation bounds outputs to (0, 1); the raw cosine output would
// include negative values for this input.
func TestCosineDenseActivation(t *testing.T) {
	layer := NewCosineDense(3).Activation("sigmoid")
	input := FromSlice([]float64{-1, 2, -3, 4}, NewShape(2, 2))
	output, err := layer.Forward(input)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	for i, v := range output.DataPtr() {
		if v <= 0 || v >= 1 {
			t.Errorf("output[%d] = %f outside (0, 1)", i, v)
		}
	}

	bad := NewCosineDense(3).Activation("swish")
	if err := bad.Build(NewShape(1, 2)); err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for unknown activation, got %v", err)
	}
}

// Initial weights are applied exactly once at build and the seed released.
func TestCosineDenseInitialWeights(t *testing.T) {
	kernel := FromSlice([]float64{1, 2, 3, 4, 5, 6}, NewShape(3, 2))
	bias := FromSlice([]float64{7, 8}, NewShape(2))

	layer := NewCosineDense(2).InitialWeights(kernel, bias)
	if err := layer.Build(NewShape(1, 3)); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	for i, w := range kernel.DataPtr() {
		if layer.kernel.Value.DataPtr()[i] != w {
			t.Fatalf("kernel[%d]: expected %f, got %f", i, w, layer.kernel.Value.DataPtr()[i])
		}
	}
	for i, w := range bias.DataPtr() {
		if layer.bias.Value.DataPtr()[i] != w {
			t.Fatalf("bias[%d]: expected %f, got %f", i, w, layer.bias.Value.DataPtr()[i])
		}
	}
	if layer.initialKernel != nil || layer.initialBias != nil {
		t.Error("initial weight seeds must be released after build")
	}

	wrong := NewCosineDense(2).InitialWeights(FromSlice([]float64{1, 2}, NewShape(1, 2)), nil)
	if err := wrong.Build(NewShape(1, 3)); err == nil || !IsConfigError(err) {
		t.Fatalf("expected ConfigError for mismatched initial kernel, got %v", err)
	}
}

// UseBias(false) must leave no bias parameter.
func TestCosineDenseNoBiasParams(t *testing.T) {
	layer := NewCosineDense(4).UseBias(false)
	if err := layer.Build(NewShape(1, 3)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	params := layer.Params()
	if len(params) != 1 {
		t.Fatalf("expected 1 param without bias, got %d", len(params))
	}
	if params[0].Name != "cosine_dense_W" {
		t.Errorf("unexpected param name %q", params[0].Name)
	}
}
