// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import "github.com/pkg/errors"

// LayerConfig is the flat key-value mapping a layer's Config method produces
// and FromConfig consumes. It is JSON-friendly: round-tripping through
// encoding/json yields an equivalent layer, so the accessors below accept
// both native Go values and their JSON decodings (float64 numbers,
// map[string]interface{} policy specs, []interface{} argument lists).
type LayerConfig map[string]interface{}

// policySpec serializes a (name, args) policy pair; nil policies serialize
// to nil so absent and unset policies are indistinguishable.
func policySpec(name string, args []float64) interface{} {
	spec := map[string]interface{}{"name": name}
	if len(args) > 0 {
		spec["args"] = args
	}
	return spec
}

func initializerSpec(i Initializer) interface{} {
	if i == nil {
		return nil
	}
	return policySpec(i.Name(), i.Args())
}

func regularizerSpec(r Regularizer) interface{} {
	if r == nil {
		return nil
	}
	return policySpec(r.Name(), r.Args())
}

func constraintSpec(c Constraint) interface{} {
	if c == nil {
		return nil
	}
	return policySpec(c.Name(), c.Args())
}

// cfgInt reads a required integer entry. JSON decodes numbers as float64,
// so both int and float64 are accepted.
func cfgInt(cfg LayerConfig, key string) (int, error) {
	v, ok := cfg[key]
	if !ok {
		return 0, errors.Errorf("config is missing %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, errors.Errorf("config entry %q is %T, expected a number", key, v)
	}
}

// cfgBool reads an optional boolean entry, returning def when absent.
func cfgBool(cfg LayerConfig, key string, def bool) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("config entry %q is %T, expected bool", key, v)
	}
	return b, nil
}

// cfgString reads an optional string entry, returning "" when absent.
func cfgString(cfg LayerConfig, key string) (string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("config entry %q is %T, expected string", key, v)
	}
	return s, nil
}

// cfgPolicy decodes an optional (name, args) policy spec. Absent or nil
// entries mean "no policy". Args tolerate both []float64 and the
// []interface{} form produced by JSON decoding.
func cfgPolicy(cfg LayerConfig, key string) (name string, args []float64, ok bool, err error) {
	v, present := cfg[key]
	if !present || v == nil {
		return "", nil, false, nil
	}
	spec, isMap := v.(map[string]interface{})
	if !isMap {
		return "", nil, false, errors.Errorf("config entry %q is %T, expected a policy spec", key, v)
	}
	rawName, isStr := spec["name"].(string)
	if !isStr {
		return "", nil, false, errors.Errorf("policy spec %q has no name", key)
	}
	switch raw := spec["args"].(type) {
	case nil:
	case []float64:
		args = raw
	case []interface{}:
		args = make([]float64, len(raw))
		for i, a := range raw {
			f, isNum := a.(float64)
			if !isNum {
				return "", nil, false, errors.Errorf("policy spec %q arg %d is %T, expected a number", key, i, a)
			}
			args[i] = f
		}
	default:
		return "", nil, false, errors.Errorf("policy spec %q args are %T", key, raw)
	}
	return rawName, args, true, nil
}

func cfgInitializer(cfg LayerConfig, key string) (Initializer, error) {
	name, args, ok, err := cfgPolicy(cfg, key)
	if err != nil || !ok {
		return nil, err
	}
	init, err := InitializerFromConfig(name, args)
	if err != nil {
		return nil, errors.Wrapf(err, "config entry %q", key)
	}
	return init, nil
}

func cfgRegularizer(cfg LayerConfig, key string) (Regularizer, error) {
	name, args, ok, err := cfgPolicy(cfg, key)
	if err != nil || !ok {
		return nil, err
	}
	reg, err := RegularizerFromConfig(name, args)
	if err != nil {
		return nil, errors.Wrapf(err, "config entry %q", key)
	}
	return reg, nil
}

func cfgConstraint(cfg LayerConfig, key string) (Constraint, error) {
	name, args, ok, err := cfgPolicy(cfg, key)
	if err != nil || !ok {
		return nil, err
	}
	cons, err := ConstraintFromConfig(name, args)
	if err != nil {
		return nil, errors.Wrapf(err, "config entry %q", key)
	}
	return cons, nil
}
