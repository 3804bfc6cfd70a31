package netlist

import (
	"errors"
	"fmt"
)

// Conversion failures are terminal: the orchestrator never retries a
// schematic that cannot be built.
var (
	// ErrMissingConnectivity indicates a component with no usable pins.
	ErrMissingConnectivity = errors.New("netlist: component has no connectivity")
	// ErrUnsupportedType indicates a component type the builder cannot place.
	ErrUnsupportedType = errors.New("netlist: unsupported component type")
	// ErrPinCount indicates fewer pins than the component type requires.
	ErrPinCount = errors.New("netlist: insufficient pins for component type")
	// ErrMissingParam indicates a required device parameter is absent.
	ErrMissingParam = errors.New("netlist: required parameter missing")
)

// ConversionError wraps a build failure with the offending component.
type ConversionError struct {
	ComponentID string
	Wrapped     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("component %q: %v", e.ComponentID, e.Wrapped)
}

func (e *ConversionError) Unwrap() error {
	return e.Wrapped
}

func conversionErr(id string, err error) error {
	return &ConversionError{ComponentID: id, Wrapped: err}
}
