// Package node assembles a runnable clone deployment: a ledger, a factory
// deployed on it, and the catalog implementations named in configuration.
//
// The node initializes from configuration via New. Functional options
// override config-created pieces for testing.
//
//	n, err := node.New(ctx, &cfg)
//	impl, err := n.Implementation("account")
//	instance, err := n.Factory().Create(ctx, impl, payload, salt)
package node

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/catalog"
	"github.com/tailored-agentic-units/clones/factory"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/observability"
	"github.com/tailored-agentic-units/clones/rpc"
)

// ErrUnknownImplementation is returned by Implementation for names the node
// did not deploy.
var ErrUnknownImplementation = errors.New("implementation not deployed")

// Option configures a Node before its subsystems are created.
type Option func(*Node)

// WithObserver overrides the observer named in configuration.
func WithObserver(o observability.Observer) Option {
	return func(n *Node) { n.observer = o }
}

// Node owns one ledger and one factory on it. It is safe for concurrent use.
type Node struct {
	ledger          *ledger.Ledger
	factory         *factory.Factory
	deployer        address.Address
	mu              sync.RWMutex
	implementations map[string]address.Address
	observer        observability.Observer
	rpc             rpc.Config
}

// New creates a Node from configuration. The factory is deployed first, then
// each configured implementation in order.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Node, error) {
	n := &Node{
		implementations: make(map[string]address.Address),
		rpc:             cfg.RPC,
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.observer == nil {
		obs, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		n.observer = obs
	}

	deployer, err := address.ParseAddress(cfg.Deployer)
	if err != nil {
		return nil, fmt.Errorf("invalid deployer: %w", err)
	}
	n.deployer = deployer

	n.ledger = ledger.NewFromConfig(&cfg.Ledger, ledger.WithObserver(n.observer))

	n.factory, err = factory.Deploy(ctx, n.ledger, deployer, factory.WithObserver(n.observer))
	if err != nil {
		return nil, err
	}

	for _, name := range cfg.Implementations {
		if _, err := n.Deploy(ctx, name); err != nil {
			return nil, err
		}
	}

	return n, nil
}

// Deploy puts the named catalog implementation on the ledger. Deploying a
// name twice replaces the recorded address with the newer deployment.
func (n *Node) Deploy(ctx context.Context, name string) (address.Address, error) {
	contract, err := catalog.New(name)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to build implementation %q: %w", name, err)
	}

	var addr address.Address
	err = n.ledger.Update(ctx, func(tx *ledger.Tx) error {
		var err error
		addr, err = tx.Deploy(n.deployer, contract)
		return err
	})
	if err != nil {
		return address.Zero, fmt.Errorf("failed to deploy implementation %q: %w", name, err)
	}

	n.mu.Lock()
	n.implementations[name] = addr
	n.mu.Unlock()

	observability.Emit(ctx, n.observer, observability.Event{
		Type:   EventImplementationDeployed,
		Level:  observability.LevelInfo,
		Source: "node.Deploy",
		Data: map[string]any{
			"name":    name,
			"address": addr.String(),
		},
	})

	return addr, nil
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Factory returns the node's factory.
func (n *Node) Factory() *factory.Factory {
	return n.factory
}

// Implementation returns the address the named implementation was deployed
// to.
func (n *Node) Implementation(name string) (address.Address, error) {
	n.mu.RLock()
	addr, ok := n.implementations[name]
	n.mu.RUnlock()
	if !ok {
		return address.Zero, fmt.Errorf("%w: %s", ErrUnknownImplementation, name)
	}
	return addr, nil
}

// Implementations returns the deployed implementation names, sorted.
func (n *Node) Implementations() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Sorted(maps.Keys(n.implementations))
}

// Server builds the RPC server for the node's factory.
func (n *Node) Server() *rpc.Server {
	return rpc.NewServer(&n.rpc, n.factory, n.observer)
}
