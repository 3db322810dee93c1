// SPDX-License-Identifier: CC-BY-NC-4.0
// Copyright (c) 2025-2026 fumi-engineer

package nn

import "github.com/pkg/errors"

// ConfigError reports a layer configuration or build-contract violation:
// input rank below the layer's minimum, a trailing dimension that disagrees
// with a previously resolved one, or a rebuild with a different shape.
// Shape violations inside tensor operations panic instead; only the
// contract checks the layers perform themselves produce ConfigError.
type ConfigError struct {
	Layer string
	Msg   string
}

func (e *ConfigError) Error() string {
	return e.Layer + ": " + e.Msg
}

// configErrorf builds a ConfigError for the named layer.
func configErrorf(layer, format string, args ...interface{}) error {
	return &ConfigError{Layer: layer, Msg: errors.Errorf(format, args...).Error()}
}

// IsConfigError reports whether err (or any error it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
