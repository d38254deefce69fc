package account

import (
	"github.com/tailored-agentic-units/clones/abi"
	"github.com/tailored-agentic-units/clones/ledger"
)

var slotInitialized = ledger.Slot("initializable.initialized")

func isInitialized(s ledger.Storage) bool {
	return !s.Load(slotInitialized).IsZero()
}

// initializeOnce runs fn the first time it is called against s and fails
// with ErrAlreadyInitialized afterwards. The flag is set before fn runs; if
// fn fails the enclosing call frame is discarded and the flag with it.
func initializeOnce(s ledger.Storage, fn func() error) error {
	if isInitialized(s) {
		return ErrAlreadyInitialized
	}
	s.Store(slotInitialized, abi.BoolWord(true))
	return fn()
}
