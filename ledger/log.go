package ledger

import (
	"slices"

	"github.com/tailored-agentic-units/clones/address"
)

// Log is an event emitted by a contract and committed with its transaction.
type Log struct {
	Address address.Address
	Topics  []address.Hash
	Data    []byte
	// Index is the log's position in the ledger, assigned at commit.
	Index uint64
}

// Filter selects logs. A zero Address matches any emitter; Topics match
// positionally and a zero topic matches anything.
type Filter struct {
	Address address.Address
	Topics  []address.Hash
}

func (f Filter) matches(lg Log) bool {
	if !f.Address.IsZero() && lg.Address != f.Address {
		return false
	}
	if len(f.Topics) > len(lg.Topics) {
		return false
	}
	for i, topic := range f.Topics {
		if !topic.IsZero() && lg.Topics[i] != topic {
			return false
		}
	}
	return true
}

func (lg Log) clone() Log {
	lg.Topics = slices.Clone(lg.Topics)
	lg.Data = slices.Clone(lg.Data)
	return lg
}

// Logs returns committed logs matching f in commit order.
func (l *Ledger) Logs(f Filter) []Log {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Log
	for _, lg := range l.logs {
		if f.matches(lg) {
			out = append(out, lg.clone())
		}
	}
	return out
}

// Subscribe registers fn to receive every committed log. Logs are delivered
// one at a time in commit order, outside every ledger lock, so fn may read
// the ledger and may itself call Update. Delivery normally finishes before
// the committing Update returns; when another goroutine is already
// delivering (or fn commits from inside a delivery), that delivery carries
// the new logs instead. The returned function removes the subscription.
func (l *Ledger) Subscribe(fn func(Log)) (unsubscribe func()) {
	l.subsMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.subsMu.Unlock()

	return func() {
		l.subsMu.Lock()
		delete(l.subs, id)
		l.subsMu.Unlock()
	}
}

// enqueue is called with mu held.
func (l *Ledger) enqueue(logs []Log) {
	if len(logs) == 0 {
		return
	}
	l.pubMu.Lock()
	l.pending = append(l.pending, logs...)
	l.pubMu.Unlock()
}

// drain delivers pending logs unless another call is already doing so.
func (l *Ledger) drain() {
	l.pubMu.Lock()
	if l.delivering {
		l.pubMu.Unlock()
		return
	}
	l.delivering = true

	for len(l.pending) > 0 {
		batch := l.pending
		l.pending = nil
		l.pubMu.Unlock()

		l.deliver(batch)

		l.pubMu.Lock()
	}
	l.delivering = false
	l.pubMu.Unlock()
}

func (l *Ledger) deliver(batch []Log) {
	defer func() {
		if r := recover(); r != nil {
			l.pubMu.Lock()
			l.delivering = false
			l.pubMu.Unlock()
			panic(r)
		}
	}()

	l.subsMu.RLock()
	ids := make([]int, 0, len(l.subs))
	for id := range l.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Log), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, l.subs[id])
	}
	l.subsMu.RUnlock()

	for _, lg := range batch {
		for _, fn := range subs {
			fn(lg.clone())
		}
	}
}
