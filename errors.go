package memtbx

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("memtbx: invalid config")

// ConfigError describes an invalid configuration field.
//
// It unwraps to ErrInvalidConfig.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("memtbx: invalid config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// ProvisionError reports a pool from the start-up plan that could not be
// created.
//
// The underlying error can be accessed via errors.Unwrap.
type ProvisionError struct {
	Pool  PoolSpec
	cause error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("memtbx: provision %d blocks of %d bytes: %v", e.Pool.Blocks, e.Pool.BlockSize, e.cause)
}

func (e *ProvisionError) Unwrap() error { return e.cause }
