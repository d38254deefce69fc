// Package factory creates clones: minimal delegating instances that share
// one implementation's logic while each keeps its own storage.
//
// A clone's identity is a pure function of the factory, the implementation,
// and a salt, so it can be known before the clone exists:
//
//	f, err := factory.Deploy(ctx, l, deployer)
//	want := f.Predict(impl, salt)
//	got, err := f.Create(ctx, impl, abi.EncodeCall("initialize()"), salt)
//	// got == want
//
// Create installs the clone and forwards the initialization payload to it in
// one ledger transaction. If initialization fails nothing remains: no clone,
// no creation record. Every successful Create emits exactly one
// CreationRecord.
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/observability"
)

// Option configures a Factory handle.
type Option func(*Factory)

// WithObserver sets the observer for factory events.
func WithObserver(o observability.Observer) Option {
	return func(f *Factory) { f.observer = o }
}

// WithSender sets the account that calls the factory on Create. Defaults to
// the deployer. The clone's initializer sees the factory, not the sender, as
// its caller.
func WithSender(sender address.Address) Option {
	return func(f *Factory) { f.sender = sender }
}

// Factory is a handle on a factory deployed to a ledger. It is safe for
// concurrent use; the ledger serializes creations.
type Factory struct {
	address  address.Address
	sender   address.Address
	ledger   *ledger.Ledger
	observer observability.Observer
}

// Deploy puts a new factory on l, created by deployer.
func Deploy(ctx context.Context, l *ledger.Ledger, deployer address.Address, opts ...Option) (*Factory, error) {
	var addr address.Address
	err := l.Update(ctx, func(tx *ledger.Tx) error {
		var err error
		addr, err = tx.Deploy(deployer, contract{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy factory: %w", err)
	}

	f := &Factory{
		address:  addr,
		sender:   deployer,
		ledger:   l,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}

	observability.Emit(ctx, f.observer, observability.Event{
		Type:   EventDeploy,
		Level:  observability.LevelInfo,
		Source: "factory.Deploy",
		Data: map[string]any{
			"factory":  addr.String(),
			"deployer": deployer.String(),
		},
	})

	return f, nil
}

// Address is the factory's own identity, the creator input to every
// derived instance identity.
func (f *Factory) Address() address.Address {
	return f.address
}

// Predict returns the identity Create(ctx, impl, _, salt) produces. It reads
// no state and does not validate impl.
func (f *Factory) Predict(impl address.Address, salt address.Salt) address.Address {
	return PredictAddress(f.address, impl, salt)
}

// PredictNext returns the identity CreateNext(ctx, impl, _) would produce if
// no other creation commits first.
func (f *Factory) PredictNext(impl address.Address) address.Address {
	return f.Predict(impl, address.SaltFromUint64(f.Counter()))
}

// Counter is the number of instances this factory has created.
func (f *Factory) Counter() uint64 {
	return abi.WordUint64(f.ledger.StorageAt(f.address, slotCounter))
}

// Create clones impl at Predict(impl, salt) and forwards payload to the new
// instance as its initialization call, atomically.
//
// Errors: ErrInvalidImplementation, ErrCollision, and *InitializationError
// (matching ErrInitialization and the implementation's own error).
func (f *Factory) Create(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error) {
	input := abi.Pack(SigMinimalProxy,
		abi.Bytes(payload),
		abi.Static(abi.AddressWord(impl)),
		abi.Static(salt),
	)
	return f.create(ctx, "factory.Create", impl, input)
}

// CreateNext is Create with the factory's counter as the salt.
func (f *Factory) CreateNext(ctx context.Context, impl address.Address, payload []byte) (address.Address, error) {
	input := abi.Pack(SigMinimalProxyNext,
		abi.Bytes(payload),
		abi.Static(abi.AddressWord(impl)),
	)
	return f.create(ctx, "factory.CreateNext", impl, input)
}

// Simulate runs Create against current state and discards the result,
// reporting the identity or the error a real Create would produce now.
func (f *Factory) Simulate(ctx context.Context, impl address.Address, payload []byte, salt address.Salt) (address.Address, error) {
	input := abi.Pack(SigMinimalProxy,
		abi.Bytes(payload),
		abi.Static(abi.AddressWord(impl)),
		abi.Static(salt),
	)
	out, err := f.ledger.StaticCall(ctx, f.sender, f.address, input)
	if err != nil {
		return address.Zero, err
	}
	return address.BytesToAddress(out), nil
}

func (f *Factory) create(ctx context.Context, source string, impl address.Address, input []byte) (address.Address, error) {
	operation := uuid.Must(uuid.NewV7()).String()

	observability.Emit(ctx, f.observer, observability.Event{
		Type:   EventCreateStart,
		Level:  observability.LevelVerbose,
		Source: source,
		Data: map[string]any{
			"operation":      operation,
			"implementation": impl.String(),
		},
	})

	out, err := f.ledger.Call(ctx, f.sender, f.address, input)
	if err != nil {
		observability.Emit(ctx, f.observer, observability.Event{
			Type:   EventCreateFailed,
			Level:  observability.LevelWarning,
			Source: source,
			Data: map[string]any{
				"operation":      operation,
				"implementation": impl.String(),
				"kind":           errorKind(err),
				"error":          err.Error(),
			},
		})
		return address.Zero, err
	}

	instance := address.BytesToAddress(out)
	observability.Emit(ctx, f.observer, observability.Event{
		Type:   EventCreateComplete,
		Level:  observability.LevelInfo,
		Source: source,
		Data: map[string]any{
			"operation":      operation,
			"implementation": impl.String(),
			"instance":       instance.String(),
		},
	})

	return instance, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrCollision):
		return "collision"
	case errors.Is(err, ErrInitialization):
		return "initialization"
	case errors.Is(err, ErrInvalidImplementation):
		return "invalid_implementation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
