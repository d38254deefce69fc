// Package ledger is the execution environment clones live in. It holds
// accounts (code, bound contract logic, nonce, storage) and an append-only
// log, and serializes every mutation into one global order.
//
// All mutation goes through Update, which hands the caller a Tx. Writes made
// through a Tx are buffered and reach the ledger only if the callback returns
// nil; otherwise they are dropped together with any logs emitted on the way.
//
//	err := l.Update(ctx, func(tx *ledger.Tx) error {
//		addr, err := tx.Create2(factory, salt, proxy.InitCode(impl))
//		if err != nil {
//			return err
//		}
//		_, err = tx.Call(ctx, factory, addr, payload)
//		return err
//	})
package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/observability"
)

const defaultMaxDepth = 1024

// Sentinel errors for ledger operations.
var (
	ErrNoCode          = errors.New("no code at address")
	ErrCollision       = errors.New("address already occupied")
	ErrDepth           = errors.New("max call depth exceeded")
	ErrNilContract     = errors.New("contract is nil")
	ErrUnsupportedCode = errors.New("unsupported creation code")
	ErrPanic           = errors.New("transaction panicked")
)

// Contract is executable logic bound to an address. Call runs with env
// describing whose storage is in use; for clones that is the clone, not the
// contract's own address.
type Contract interface {
	Call(ctx context.Context, env *Env, input []byte) ([]byte, error)
}

// ContractFunc adapts a function to Contract.
type ContractFunc func(ctx context.Context, env *Env, input []byte) ([]byte, error)

func (f ContractFunc) Call(ctx context.Context, env *Env, input []byte) ([]byte, error) {
	return f(ctx, env, input)
}

type account struct {
	code     []byte
	contract Contract
	nonce    uint64
	storage  map[address.Hash]address.Hash
}

func (a *account) clone() *account {
	return &account{
		code:     a.code,
		contract: a.contract,
		nonce:    a.nonce,
		storage:  maps.Clone(a.storage),
	}
}

// occupied reports whether a create at this account must fail. Storage
// alone counts, so a new instance never inherits state.
func (a *account) occupied() bool {
	return a != nil && (len(a.code) > 0 || a.contract != nil || a.nonce > 0 || len(a.storage) > 0)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithObserver sets the observer for commit and rollback events.
func WithObserver(o observability.Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// WithMaxDepth bounds nested calls and delegation hops.
func WithMaxDepth(depth int) Option {
	return func(l *Ledger) {
		if depth > 0 {
			l.maxDepth = depth
		}
	}
}

// Ledger is safe for concurrent use. Updates are serialized; reads may run
// alongside each other but not alongside an Update.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[address.Address]*account
	logs     []Log
	observer observability.Observer
	maxDepth int

	subsMu sync.RWMutex
	subs   map[int]func(Log)
	nextID int

	// pending holds committed logs not yet delivered, in commit order.
	// Lock order is mu before pubMu.
	pubMu      sync.Mutex
	pending    []Log
	delivering bool
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[address.Address]*account),
		observer: observability.NoOpObserver{},
		maxDepth: defaultMaxDepth,
		subs:     make(map[int]func(Log)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update runs fn as one indivisible transaction. If fn returns an error or
// panics no state and no logs from it survive; a panic is returned as
// ErrPanic. Committed logs are delivered to subscribers in commit order; see
// Subscribe.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	committed, accounts, err := l.apply(fn)
	if err != nil {
		observability.Emit(ctx, l.observer, observability.Event{
			Type:   EventRollback,
			Level:  observability.LevelVerbose,
			Source: "ledger.Update",
			Data:   map[string]any{"error": err.Error()},
		})
		return err
	}

	observability.Emit(ctx, l.observer, observability.Event{
		Type:   EventCommit,
		Level:  observability.LevelVerbose,
		Source: "ledger.Update",
		Data: map[string]any{
			"accounts": accounts,
			"logs":     len(committed),
		},
	})

	l.drain()
	return nil
}

// apply runs fn under the write lock and commits its frame on success. The
// committed logs are queued for delivery before the lock is released, so the
// queue holds them in commit order.
func (l *Ledger) apply(fn func(tx *Tx) error) ([]Log, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l, nil)
	if err := run(fn, tx); err != nil {
		return nil, 0, err
	}

	committed := l.commit(tx)
	l.enqueue(committed)
	return committed, len(tx.accounts), nil
}

// run calls fn, converting a panic into ErrPanic.
func run(fn func(tx *Tx) error, tx *Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(tx)
}

// Simulate runs fn like Update but always discards its effects, returning
// fn's error. It is the ledger's equivalent of a static call.
func (l *Ledger) Simulate(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return run(fn, newTx(l, nil))
}

// Call runs a single call as its own transaction.
func (l *Ledger) Call(ctx context.Context, caller, to address.Address, input []byte) ([]byte, error) {
	var out []byte
	err := l.Update(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Call(ctx, caller, to, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StaticCall runs a call against current state and discards its effects.
func (l *Ledger) StaticCall(ctx context.Context, caller, to address.Address, input []byte) ([]byte, error) {
	var out []byte
	err := l.Simulate(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Call(ctx, caller, to, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Code returns the deployed code at addr. Accounts bound to a Go contract
// have no code.
func (l *Ledger) Code(addr address.Address) []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a := l.accounts[addr]; a != nil {
		return slices.Clone(a.code)
	}
	return nil
}

// Nonce returns the account nonce at addr.
func (l *Ledger) Nonce(addr address.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a := l.accounts[addr]; a != nil {
		return a.nonce
	}
	return 0
}

// StorageAt reads one storage slot of addr.
func (l *Ledger) StorageAt(addr address.Address, key address.Hash) address.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a := l.accounts[addr]; a != nil {
		return a.storage[key]
	}
	return address.Hash{}
}

// HasContract reports whether addr is bound to Go contract logic.
func (l *Ledger) HasContract(addr address.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a := l.accounts[addr]
	return a != nil && a.contract != nil
}

// Occupied reports whether a create targeting addr would collide.
func (l *Ledger) Occupied(addr address.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr].occupied()
}

func (l *Ledger) commit(tx *Tx) []Log {
	for addr, a := range tx.accounts {
		l.accounts[addr] = a
	}

	committed := make([]Log, len(tx.logs))
	for i, lg := range tx.logs {
		lg.Index = uint64(len(l.logs))
		l.logs = append(l.logs, lg)
		committed[i] = lg
	}
	return committed
}
