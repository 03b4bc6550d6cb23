package config

import "errors"

// Sentinel kinds for configuration errors, checkable with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLoadConfig    = errors.New("configuration load failed")
)
