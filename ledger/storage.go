package ledger

import "github.com/tailored-agentic-units/clones/address"

// Storage is one account's slot map. Unset slots read as zero; storing zero
// clears the slot.
type Storage interface {
	Load(key address.Hash) address.Hash
	Store(key, value address.Hash)
}

type accountStorage struct {
	tx   *Tx
	addr address.Address
}

func (s *accountStorage) Load(key address.Hash) address.Hash {
	if a := s.tx.read(s.addr); a != nil {
		return a.storage[key]
	}
	return address.Hash{}
}

func (s *accountStorage) Store(key, value address.Hash) {
	a := s.tx.write(s.addr)
	if value.IsZero() {
		delete(a.storage, key)
		return
	}
	a.storage[key] = value
}

// Slot returns the storage key for a named variable.
func Slot(name string) address.Hash {
	return address.Keccak256([]byte(name))
}
