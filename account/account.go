// Package account is a sample implementation for clones: a minimal owned
// account with a counter. It is written to be shared: every piece of state
// lives in the storage of whichever clone the call arrived through.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/ledger"
)

// Function signatures understood by Account.
const (
	SigInitialize      = "initialize()"
	SigInitializeOwner = "initialize(address)"
	SigOwner           = "owner()"
	SigInitialized     = "initialized()"
	SigIncrement       = "increment()"
	SigCount           = "count()"
)

var (
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrDirectInitialize   = errors.New("implementation cannot be initialized directly")
	ErrZeroOwner          = errors.New("owner is the zero address")
	ErrNoFallback         = errors.New("empty call data")
	ErrUnknownSelector    = errors.New("unknown selector")
	ErrBadCall            = errors.New("malformed call")
)

var (
	selInitialize      = abi.NewSelector(SigInitialize)
	selInitializeOwner = abi.NewSelector(SigInitializeOwner)
	selOwner           = abi.NewSelector(SigOwner)
	selInitialized     = abi.NewSelector(SigInitialized)
	selIncrement       = abi.NewSelector(SigIncrement)
	selCount           = abi.NewSelector(SigCount)

	slotOwner = ledger.Slot("account.owner")
	slotCount = ledger.Slot("account.count")
)

// Initialized is the topic of the log emitted on initialization.
var Initialized = address.Keccak256([]byte("Initialized(address)"))

// Account implements ledger.Contract.
type Account struct{}

// New returns the Account logic. It holds no state; one value can back any
// number of clones.
func New() *Account {
	return &Account{}
}

func (a *Account) Call(_ context.Context, env *ledger.Env, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrNoFallback
	}

	sel, args, err := abi.SplitCall(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCall, err)
	}

	switch sel {
	case selInitialize:
		return nil, a.initialize(env, env.Caller)
	case selInitializeOwner:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes 1 argument, got %d", ErrBadCall, SigInitializeOwner, len(args))
		}
		return nil, a.initialize(env, abi.WordAddress(args[0]))
	case selOwner:
		return env.Storage.Load(slotOwner).Bytes(), nil
	case selInitialized:
		return abi.EncodeWords(abi.BoolWord(isInitialized(env.Storage))), nil
	case selIncrement:
		if !isInitialized(env.Storage) {
			return nil, ErrNotInitialized
		}
		n := abi.WordUint64(env.Storage.Load(slotCount)) + 1
		env.Storage.Store(slotCount, abi.Uint64Word(n))
		return abi.EncodeWords(abi.Uint64Word(n)), nil
	case selCount:
		return env.Storage.Load(slotCount).Bytes(), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, sel)
}

func (a *Account) initialize(env *ledger.Env, owner address.Address) error {
	if !env.Delegated() {
		return ErrDirectInitialize
	}
	if owner.IsZero() {
		return ErrZeroOwner
	}

	return initializeOnce(env.Storage, func() error {
		env.Storage.Store(slotOwner, abi.AddressWord(owner))
		env.Emit([]address.Hash{Initialized, abi.AddressWord(owner)}, nil)
		return nil
	})
}
