// Package dberr holds the error taxonomy shared by the builder, the pool
// registry and the transaction manager.
//
// Driver and network failures are never wrapped by this package; they reach
// callers exactly as the driver produced them.
package dberr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing or invalid setting, such as an
	// unregistered pool name.
	ErrConfiguration = errors.New("txscope: configuration error")

	// ErrUsage marks a caller mistake: malformed builder arguments, invalid
	// pagination bounds, or destructive writes without a target.
	ErrUsage = errors.New("txscope: usage error")
)

// ConfigurationError reports a setting that cannot be resolved.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Setting, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// PoolNotFound builds the error returned for an unregistered pool name.
func PoolNotFound(name string) *ConfigurationError {
	return &ConfigurationError{
		Setting: "pool",
		Reason:  fmt.Sprintf("database pool %q not found", name),
	}
}

// UsageError reports an API misuse detected before any I/O happens.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	if e.Op == "" {
		return e.Reason
	}
	return e.Op + ": " + e.Reason
}

// Is reports whether target is ErrUsage.
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// Usage formats a UsageError for op.
func Usage(op, format string, args ...any) *UsageError {
	return &UsageError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsUsage reports whether err is, or wraps, a usage error.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}

// IsConfiguration reports whether err is, or wraps, a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
