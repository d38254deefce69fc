package factory

import (
	"fmt"

	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/ledger"
	"github.com/tailored-agentic-units/clones/proxy"
)

// State is an instance's lifecycle position. Initializing exists only inside
// the creating transaction and is never observed from outside it.
type State int

const (
	StateUninstantiated State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninstantiated:
		return "uninstantiated"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InstanceInfo describes a clone created by this factory.
type InstanceInfo struct {
	Address        address.Address `json:"address"`
	Implementation address.Address `json:"implementation"`
	Salt           address.Salt    `json:"salt"`
	State          State           `json:"state"`
}

// Instance looks up a clone this factory created.
func (f *Factory) Instance(addr address.Address) (InstanceInfo, error) {
	impl, ok := proxy.Implementation(f.ledger.Code(addr))
	if !ok {
		return InstanceInfo{}, fmt.Errorf("%w: %s", ErrNotInstance, addr)
	}

	recs := f.records(ledger.Filter{Topics: []address.Hash{
		TopicProxyCreated,
		abi.AddressWord(addr),
	}})
	if len(recs) == 0 {
		return InstanceInfo{}, fmt.Errorf("%w: %s", ErrNotInstance, addr)
	}

	return InstanceInfo{
		Address:        addr,
		Implementation: impl,
		Salt:           recs[0].Salt,
		State:          StateReady,
	}, nil
}

// State reports the lifecycle state of the identity addr from outside any
// transaction: ready if this factory created a clone there, otherwise
// uninstantiated.
func (f *Factory) State(addr address.Address) State {
	if _, err := f.Instance(addr); err != nil {
		return StateUninstantiated
	}
	return StateReady
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
