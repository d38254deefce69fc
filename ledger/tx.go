package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/proxy"
)

// Tx is a buffered view over the ledger. Reads fall through to the parent
// frame (or the ledger); writes copy the account into this frame first.
// A Tx is only valid inside the Update or Simulate callback that produced it.
type Tx struct {
	ledger   *Ledger
	parent   *Tx
	depth    int
	accounts map[address.Address]*account
	logs     []Log
}

func newTx(l *Ledger, parent *Tx) *Tx {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	return &Tx{
		ledger:   l,
		parent:   parent,
		depth:    depth,
		accounts: make(map[address.Address]*account),
	}
}

func (tx *Tx) read(addr address.Address) *account {
	for t := tx; t != nil; t = t.parent {
		if a, ok := t.accounts[addr]; ok {
			return a
		}
	}
	return tx.ledger.accounts[addr]
}

func (tx *Tx) write(addr address.Address) *account {
	if a, ok := tx.accounts[addr]; ok {
		return a
	}

	var a *account
	if base := tx.read(addr); base != nil {
		a = base.clone()
	} else {
		a = &account{}
	}
	if a.storage == nil {
		a.storage = make(map[address.Hash]address.Hash)
	}
	tx.accounts[addr] = a
	return a
}

// merge folds a successful child frame into tx.
func (tx *Tx) merge(child *Tx) {
	for addr, a := range child.accounts {
		tx.accounts[addr] = a
	}
	tx.logs = append(tx.logs, child.logs...)
}

// Code returns the code at addr as seen by this transaction.
func (tx *Tx) Code(addr address.Address) []byte {
	if a := tx.read(addr); a != nil {
		return slices.Clone(a.code)
	}
	return nil
}

// Nonce returns the nonce at addr as seen by this transaction.
func (tx *Tx) Nonce(addr address.Address) uint64 {
	if a := tx.read(addr); a != nil {
		return a.nonce
	}
	return 0
}

// HasContract reports whether addr is bound to Go contract logic.
func (tx *Tx) HasContract(addr address.Address) bool {
	a := tx.read(addr)
	return a != nil && a.contract != nil
}

// Occupied reports whether a create targeting addr would collide.
func (tx *Tx) Occupied(addr address.Address) bool {
	return tx.read(addr).occupied()
}

// Storage returns read/write access to the storage of addr.
func (tx *Tx) Storage(addr address.Address) Storage {
	return &accountStorage{tx: tx, addr: addr}
}

// Emit appends a log attributed to addr.
func (tx *Tx) Emit(addr address.Address, topics []address.Hash, data []byte) {
	tx.logs = append(tx.logs, Log{
		Address: addr,
		Topics:  slices.Clone(topics),
		Data:    slices.Clone(data),
	})
}

// Deploy binds contract to a fresh address derived from creator and its
// current nonce, and bumps that nonce.
func (tx *Tx) Deploy(creator address.Address, contract Contract) (address.Address, error) {
	if contract == nil {
		return address.Zero, ErrNilContract
	}

	addr := address.CreateAddress(creator, tx.Nonce(creator))
	if tx.Occupied(addr) {
		return address.Zero, fmt.Errorf("%w: %s", ErrCollision, addr)
	}

	tx.write(creator).nonce++

	a := tx.write(addr)
	a.contract = contract
	a.nonce = 1
	return addr, nil
}

// Create2 deploys initCode at the address derived from creator, salt, and
// the hash of initCode. Only the minimal proxy template is accepted as
// creation code. The new account is left with its runtime code installed;
// callers that need initialization run it in the same transaction.
func (tx *Tx) Create2(creator address.Address, salt address.Salt, initCode []byte) (address.Address, error) {
	runtime, err := proxy.RuntimeFromInitCode(initCode)
	if err != nil {
		return address.Zero, fmt.Errorf("%w: %v", ErrUnsupportedCode, err)
	}

	addr := address.CreateAddress2(creator, salt, address.Keccak256(initCode))
	if tx.Occupied(addr) {
		return address.Zero, fmt.Errorf("%w: %s", ErrCollision, addr)
	}

	tx.write(creator).nonce++

	a := tx.write(addr)
	a.code = runtime
	a.nonce = 1
	return addr, nil
}

// Call invokes the logic at to. For a clone the logic is the implementation
// it delegates to, run against the clone's own storage with caller preserved.
// The call runs in a child frame: on error its writes and logs are dropped
// and the error is returned unchanged.
func (tx *Tx) Call(ctx context.Context, caller, to address.Address, input []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx.depth >= tx.ledger.maxDepth {
		return nil, ErrDepth
	}

	contract, codeAddr, err := tx.resolve(to)
	if err != nil {
		return nil, err
	}

	child := newTx(tx.ledger, tx)
	env := &Env{
		Self:        to,
		CodeAddress: codeAddr,
		Caller:      caller,
		Storage:     child.Storage(to),
		tx:          child,
	}

	out, err := contract.Call(ctx, env, slices.Clone(input))
	if err != nil {
		return nil, err
	}

	tx.merge(child)
	return out, nil
}

// resolve follows clone stubs until it reaches bound contract logic.
func (tx *Tx) resolve(addr address.Address) (Contract, address.Address, error) {
	target := addr
	for hops := 0; hops <= tx.ledger.maxDepth; hops++ {
		a := tx.read(target)
		if a == nil {
			return nil, address.Zero, fmt.Errorf("%w: %s", ErrNoCode, target)
		}
		if a.contract != nil {
			return a.contract, target, nil
		}
		impl, ok := proxy.Implementation(a.code)
		if !ok {
			return nil, address.Zero, fmt.Errorf("%w: %s", ErrNoCode, target)
		}
		target = impl
	}
	return nil, address.Zero, ErrDepth
}
