package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/proxy"
)

// Function and event signatures of the on-ledger factory.
const (
	SigMinimalProxy     = "minimalProxy(bytes,address,uint256)"
	SigMinimalProxyNext = "minimalProxy(bytes,address)"
	SigPredict          = "predictDeterministicAddress(address,uint256)"
	SigCounter          = "counter()"
	SigProxyCreated     = "ProxyCreated(address,address,bytes32)"
)

// TopicProxyCreated is topic 0 of every creation log. Topics 1 and 2 hold
// the instance and the implementation; the data is the salt.
var TopicProxyCreated = address.Keccak256([]byte(SigProxyCreated))

var (
	selMinimalProxy     = abi.NewSelector(SigMinimalProxy)
	selMinimalProxyNext = abi.NewSelector(SigMinimalProxyNext)
	selPredict          = abi.NewSelector(SigPredict)
	selCounter          = abi.NewSelector(SigCounter)

	slotCounter = ledger.Slot("factory.counter")
)

// PredictAddress derives the identity a factory at factory gives the clone
// of impl created with salt. Prediction and creation both use it.
func PredictAddress(factory, impl address.Address, salt address.Salt) address.Address {
	return address.CreateAddress2(factory, salt, proxy.TemplateHash(impl))
}

// contract is the factory logic bound on the ledger. It keeps one storage
// slot, the number of instances created so far.
type contract struct{}

func (contract) Call(ctx context.Context, env *ledger.Env, input []byte) ([]byte, error) {
	sel, args, err := abi.SplitCall(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCall, err)
	}

	switch sel {
	case selMinimalProxy, selMinimalProxyNext:
		fixed := 3
		if sel == selMinimalProxyNext {
			fixed = 2
		}
		if len(args) < fixed {
			return nil, fmt.Errorf("%w: want %d head words, got %d", ErrBadCall, fixed, len(args))
		}
		payload, err := abi.DecodeBytes(args, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadCall, err)
		}

		salt := address.SaltFromUint64(counter(env.Storage))
		if sel == selMinimalProxy {
			salt = args[2]
		}

		instance, err := create(ctx, env, abi.WordAddress(args[1]), payload, salt)
		if err != nil {
			return nil, err
		}
		return abi.EncodeWords(abi.AddressWord(instance)), nil

	case selPredict:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: %s takes 2 arguments, got %d", ErrBadCall, SigPredict, len(args))
		}
		predicted := PredictAddress(env.Self, abi.WordAddress(args[0]), args[1])
		return abi.EncodeWords(abi.AddressWord(predicted)), nil

	case selCounter:
		return abi.EncodeWords(abi.Uint64Word(counter(env.Storage))), nil
	}

	return nil, fmt.Errorf("%w: unknown selector %s", ErrBadCall, sel)
}

// create runs inside the factory's call frame. Any error discards the frame,
// so a clone whose initialization fails never outlives this call.
func create(ctx context.Context, env *ledger.Env, impl address.Address, payload []byte, salt address.Salt) (address.Address, error) {
	if impl.IsZero() || !env.HasLogic(impl) {
		return address.Zero, fmt.Errorf("%w: %s", ErrInvalidImplementation, impl)
	}

	instance, err := env.Create2(salt, proxy.InitCode(impl))
	if err != nil {
		if errors.Is(err, ledger.ErrCollision) {
			return address.Zero, fmt.Errorf("%w: %s", ErrCollision, PredictAddress(env.Self, impl, salt))
		}
		return address.Zero, err
	}

	if _, err := env.Call(ctx, instance, payload); err != nil {
		return address.Zero, &InitializationError{
			Instance:       instance,
			Implementation: impl,
			Err:            err,
		}
	}

	env.Storage.Store(slotCounter, abi.Uint64Word(counter(env.Storage)+1))
	env.Emit([]address.Hash{
		TopicProxyCreated,
		abi.AddressWord(instance),
		abi.AddressWord(impl),
	}, salt[:])

	return instance, nil
}

func counter(s ledger.Storage) uint64 {
	return abi.WordUint64(s.Load(slotCounter))
}
