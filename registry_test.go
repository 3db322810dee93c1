// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// roundTrip serializes a layer's config through JSON and reconstructs it via
// the registry, mirroring how a host framework persists model definitions.
func roundTrip(t *testing.T, l Layer) Layer {
	t.Helper()
	RegisterBuiltins()

	raw, err := json.Marshal(l.Config())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var cfg LayerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	restored, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	return restored
}

func TestSeparableFCConfigRoundTrip(t *testing.T) {
	original := NewSeparableFC(8).
		WithName("sfc_1").
		Symmetric(true).
		SmoothnessRegularizer(Smoothness(0.05)).
		PositionalConstraint(NonNeg())

	restored := roundTrip(t, original)
	if !reflect.DeepEqual(original.Config(), restored.Config()) {
		t.Fatalf("config mismatch:\n  original: %v\n  restored: %v",
			original.Config(), restored.Config())
	}

	// The restored layer must behave identically given the same weights.
	shape := NewShape(2, 5, 3)
	if err := restored.Build(shape); err != nil {
		t.Fatalf("restored build failed: %v", err)
	}
	out, err := restored.OutputShape(shape)
	if err != nil {
		t.Fatalf("restored OutputShape failed: %v", err)
	}
	if !out.Equal(NewShape(2, 8)) {
		t.Fatalf("restored output shape = %v", out)
	}
}

func TestCosineDenseConfigRoundTrip(t *testing.T) {
	original := NewCosineDense(4).
		WithName("cos_1").
		Activation("tanh").
		KernelInitializer(Uniform(-0.1, 0.1)).
		KernelRegularizer(L2(0.01)).
		BiasRegularizer(L1(0.02)).
		KernelConstraint(MaxNorm(3)).
		UseBias(false).
		InputDim(6)

	restored := roundTrip(t, original)
	if !reflect.DeepEqual(original.Config(), restored.Config()) {
		t.Fatalf("config mismatch:\n  original: %v\n  restored: %v",
			original.Config(), restored.Config())
	}
}

func TestCosineDenseConfigDefaults(t *testing.T) {
	// A minimal config exercises the decode-side defaults: bias on, linear
	// activation, glorot kernel initializer.
	RegisterBuiltins()
	layer, err := FromConfig(LayerConfig{"type": "CosineDense", "units": float64(3)})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	cd, ok := layer.(*CosineDense)
	if !ok {
		t.Fatalf("expected *CosineDense, got %T", layer)
	}
	if err := cd.Build(NewShape(1, 2)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(cd.Params()) != 2 {
		t.Fatalf("expected kernel and bias, got %d params", len(cd.Params()))
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	factory := func(LayerConfig) (Layer, error) { return NewCosineDense(1), nil }
	if err := Register("custom_dense", factory); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := Register("custom_dense", factory); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRegisterBuiltinsIdempotent(t *testing.T) {
	RegisterBuiltins()
	RegisterBuiltins()
	if _, err := FromConfig(LayerConfig{"type": "SeparableFC", "output_dim": 2}); err != nil {
		t.Fatalf("builtin lookup failed after repeated registration: %v", err)
	}
}

func TestFromConfigErrors(t *testing.T) {
	RegisterBuiltins()

	if _, err := FromConfig(LayerConfig{"units": 3}); err == nil {
		t.Fatal("expected error for missing type")
	}
	if _, err := FromConfig(LayerConfig{"type": "Recurrent"}); err == nil {
		t.Fatal("expected error for unregistered type")
	}
	// Factory errors carry the type name for context.
	_, err := FromConfig(LayerConfig{"type": "CosineDense"})
	if err == nil {
		t.Fatal("expected error for missing units")
	}
	if !strings.Contains(err.Error(), "CosineDense") {
		t.Fatalf("error does not name the layer type: %v", err)
	}
}

func TestConfigPolicyDecodeErrors(t *testing.T) {
	RegisterBuiltins()

	_, err := FromConfig(LayerConfig{
		"type":       "SeparableFC",
		"output_dim": 2,
		"smoothness_regularizer": map[string]interface{}{
			"name": "warp",
		},
	})
	if err == nil {
		t.Fatal("expected error for unknown regularizer name")
	}

	_, err = FromConfig(LayerConfig{
		"type":                  "SeparableFC",
		"output_dim":            2,
		"positional_constraint": "non_neg",
	})
	if err == nil {
		t.Fatal("expected error for malformed policy spec")
	}
}
