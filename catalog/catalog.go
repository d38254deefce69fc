// Package catalog names the implementations a deployment can put on the
// ledger. Configuration refers to implementations by these names; the
// catalog turns a name into fresh contract logic.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/clones/ledger"
)

// Constructor returns new contract logic for an implementation.
type Constructor func() ledger.Contract

// Info describes a registered implementation.
type Info struct {
	Name        string
	Description string
}

type entry struct {
	info Info
	ctor Constructor
}

type registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

var register = &registry{
	entries: make(map[string]entry),
}

// Register adds an implementation under info.Name.
// Returns ErrAlreadyExists if the name is taken; use Replace to swap it.
func Register(info Info, ctor Constructor) error {
	if info.Name == "" {
		return ErrEmptyName
	}
	if ctor == nil {
		return ErrNilFactory
	}

	register.mu.Lock()
	defer register.mu.Unlock()

	if _, exists := register.entries[info.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, info.Name)
	}

	register.entries[info.Name] = entry{info: info, ctor: ctor}
	return nil
}

// Replace swaps the constructor of an existing implementation.
func Replace(info Info, ctor Constructor) error {
	if info.Name == "" {
		return ErrEmptyName
	}
	if ctor == nil {
		return ErrNilFactory
	}

	register.mu.Lock()
	defer register.mu.Unlock()

	if _, exists := register.entries[info.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, info.Name)
	}

	register.entries[info.Name] = entry{info: info, ctor: ctor}
	return nil
}

// Get returns the constructor registered under name.
func Get(name string) (Constructor, bool) {
	register.mu.RLock()
	defer register.mu.RUnlock()

	e, exists := register.entries[name]
	if !exists {
		return nil, false
	}
	return e.ctor, true
}

// New builds contract logic for the named implementation.
func New(name string) (ledger.Contract, error) {
	ctor, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	c := ctor()
	if c == nil {
		return nil, fmt.Errorf("%w: %s returned nil", ErrNilFactory, name)
	}
	return c, nil
}

// List describes every registered implementation, sorted by name.
func List() []Info {
	register.mu.RLock()
	defer register.mu.RUnlock()

	infos := make([]Info, 0, len(register.entries))
	for _, e := range register.entries {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
