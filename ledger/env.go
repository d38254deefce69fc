package ledger

import (
	"context"

	"github.com/tailored-agentic-units/clones/address"
)

// Env is the execution context handed to a Contract.
type Env struct {
	// Self is the account whose storage and identity the call runs under.
	Self address.Address
	// CodeAddress is where the running logic is bound. It differs from Self
	// when the call arrived through a clone.
	CodeAddress address.Address
	// Caller is the immediate caller; delegation through a clone keeps it.
	Caller address.Address
	// Storage is Self's storage.
	Storage Storage

	tx *Tx
}

// Delegated reports whether the call arrived through a clone.
func (e *Env) Delegated() bool {
	return e.Self != e.CodeAddress
}

// Emit appends a log attributed to Self.
func (e *Env) Emit(topics []address.Hash, data []byte) {
	e.tx.Emit(e.Self, topics, data)
}

// Call makes a nested call with Self as the caller.
func (e *Env) Call(ctx context.Context, to address.Address, input []byte) ([]byte, error) {
	return e.tx.Call(ctx, e.Self, to, input)
}

// Create2 deploys initCode with Self as the creator. See Tx.Create2.
func (e *Env) Create2(salt address.Salt, initCode []byte) (address.Address, error) {
	return e.tx.Create2(e.Self, salt, initCode)
}

// HasLogic reports whether a call to addr would reach contract logic,
// following clone stubs.
func (e *Env) HasLogic(addr address.Address) bool {
	_, _, err := e.tx.resolve(addr)
	return err == nil
}
