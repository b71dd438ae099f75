// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is wrapped by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid engine configuration")
	// ErrInvalidState is returned for lifecycle calls that make no sense in
	// the current state, e.g. Configure while processing.
	ErrInvalidState = errors.New("invalid engine state")
)

// ConfigurationError reports which Setup field was rejected.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s=%v: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func stateError(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, s)
}
