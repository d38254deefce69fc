package factory

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/clones/address"
)

// Sentinel errors for factory operations.
var (
	// ErrCollision means an account already occupies the derived identity.
	// Pick a different salt.
	ErrCollision = errors.New("instance already exists")
	// ErrInitialization means the forwarded initialization call failed and
	// the instance was discarded with it. Returned as *InitializationError.
	ErrInitialization = errors.New("initialization failed")
	// ErrInvalidImplementation means the implementation reference does not
	// resolve to contract logic.
	ErrInvalidImplementation = errors.New("invalid implementation")
	// ErrNotInstance means an address is not a clone created by this factory.
	ErrNotInstance = errors.New("not an instance of this factory")
	// ErrBadCall means calldata sent to the factory could not be decoded.
	ErrBadCall = errors.New("malformed factory call")
)

// InitializationError carries the cause of a failed initialization along
// with the identity the discarded instance would have had.
type InitializationError struct {
	Instance       address.Address
	Implementation address.Address
	Err            error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s (implementation %s): %v", e.Instance, e.Implementation, e.Err)
}

// Unwrap exposes both ErrInitialization and the implementation's error to
// errors.Is and errors.As.
func (e *InitializationError) Unwrap() []error {
	return []error{ErrInitialization, e.Err}
}
