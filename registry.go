// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import (
	"sync"

	"github.com/pkg/errors"
)

// LayerFactory reconstructs a layer from its serialized configuration.
type LayerFactory func(LayerConfig) (Layer, error)

var (
	registryMu    sync.RWMutex
	layerRegistry = map[string]LayerFactory{}
	builtinsOnce  sync.Once
)

// Register adds a layer factory under a type name so serialized models can
// be reconstructed by name lookup. Duplicate names are rejected.
func Register(name string, factory LayerFactory) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := layerRegistry[name]; exists {
		return errors.Errorf("layer type %q is already registered", name)
	}
	layerRegistry[name] = factory
	return nil
}

// RegisterBuiltins registers SeparableFC and CosineDense. Callers invoke it
// once at startup; repeated calls are no-ops. Nothing registers itself at
// import time.
func RegisterBuiltins() {
	builtinsOnce.Do(func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		layerRegistry["SeparableFC"] = separableFCFromConfig
		layerRegistry["CosineDense"] = cosineDenseFromConfig
	})
}

// FromConfig reconstructs a layer from a configuration mapping by looking up
// its "type" entry in the registry.
func FromConfig(cfg LayerConfig) (Layer, error) {
	typeName, err := cfgString(cfg, "type")
	if err != nil {
		return nil, err
	}
	if typeName == "" {
		return nil, errors.New("config is missing \"type\"")
	}

	registryMu.RLock()
	factory, ok := layerRegistry[typeName]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown layer type %q (did you call RegisterBuiltins?)", typeName)
	}

	layer, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "reconstructing %q", typeName)
	}
	return layer, nil
}
