package factory

import (
	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/address"
	"github.com/tailored-agentic-units/clones/ledger"
)

// CreationRecord is the observable trace of one successful Create. Records
// are append-only and never retracted.
type CreationRecord struct {
	Factory        address.Address `json:"factory"`
	Instance       address.Address `json:"instance"`
	Implementation address.Address `json:"implementation"`
	Salt           address.Salt    `json:"salt"`
	// Index is the position of the underlying log in the ledger.
	Index uint64 `json:"index"`
}

func decodeRecord(lg ledger.Log) (CreationRecord, bool) {
	if len(lg.Topics) != 3 || lg.Topics[0] != TopicProxyCreated || len(lg.Data) != address.HashLength {
		return CreationRecord{}, false
	}
	return CreationRecord{
		Factory:        lg.Address,
		Instance:       abi.WordAddress(lg.Topics[1]),
		Implementation: abi.WordAddress(lg.Topics[2]),
		Salt:           address.BytesToHash(lg.Data),
		Index:          lg.Index,
	}, true
}

func (f *Factory) records(filter ledger.Filter) []CreationRecord {
	filter.Address = f.address

	var out []CreationRecord
	for _, lg := range f.ledger.Logs(filter) {
		if rec, ok := decodeRecord(lg); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Records returns every creation record of this factory in commit order.
func (f *Factory) Records() []CreationRecord {
	return f.records(ledger.Filter{Topics: []address.Hash{TopicProxyCreated}})
}

// RecordsFor returns the creation records of clones of impl.
func (f *Factory) RecordsFor(impl address.Address) []CreationRecord {
	return f.records(ledger.Filter{Topics: []address.Hash{
		TopicProxyCreated,
		{},
		abi.AddressWord(impl),
	}})
}

// Subscribe calls fn with each new creation record of this factory, in
// commit order. Delivery follows ledger.Subscribe: fn runs outside the
// ledger locks and may create instances itself. The returned function ends
// the subscription.
func (f *Factory) Subscribe(fn func(CreationRecord)) (unsubscribe func()) {
	return f.ledger.Subscribe(func(lg ledger.Log) {
		if lg.Address != f.address {
			return
		}
		if rec, ok := decodeRecord(lg); ok {
			fn(rec)
		}
	})
}
