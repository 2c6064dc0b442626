package config

import "errors"

// Sentinel error kinds for this package, matchable with errors.Is.
var (
	// ErrInvalidConfig wraps validation failures on loaded values.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps failures reading the file or env layers.
	ErrLoadConfig = errors.New("load config failed")
)
